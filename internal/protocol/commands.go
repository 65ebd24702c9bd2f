package protocol

import (
	"context"

	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/logger"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/stomp"
)

func (e *Engine) send(frame *stomp.Frame) error {
	destination, err := requireHeader(frame, stomp.HeaderDestination)
	if err != nil {
		return err
	}
	if _, ok := e.subscriptions[destination]; !ok {
		return newError(KindProtocol, "not subscribed to "+destination, "")
	}

	if file, ok := frame.Headers.Get(stomp.HeaderFile); ok {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		err := e.broker.store.TrackFileUpload(ctx, e.user, file, destination)
		cancel()
		if err != nil {
			logger.WarnF("[conn %d] Fail to track upload of %s, details: %v", e.connID, file, err)
		}
	}

	message := stomp.Message(destination, frame.Body)
	if contentType, ok := frame.Headers.Get(stomp.HeaderContentType); ok {
		message.Headers.Set(stomp.HeaderContentType, contentType)
	}

	delivered := e.broker.registry.Publish(destination, message)
	logger.DebugF("[conn %d] Delivered message to %d subscribers of %s", e.connID, delivered, destination)

	if e.broker.relay != nil {
		e.broker.relay.Relay(destination, message)
	}
	return nil
}

func (e *Engine) subscribe(frame *stomp.Frame) error {
	destination, err := requireHeader(frame, stomp.HeaderDestination)
	if err != nil {
		return err
	}
	id, err := requireHeader(frame, stomp.HeaderID)
	if err != nil {
		return err
	}

	sub := e.broker.registry.Subscribe(destination, e.connID, id)
	e.subscriptions[sub.Destination] = sub.ID
	if sub.Replaced && sub.Previous != sub.ID {
		logger.DebugF("[conn %d] Subscription to %s changed from %s to %s", e.connID, destination, sub.Previous, sub.ID)
	}
	logger.DebugF("[conn %d] Subscribed to %s as %s", e.connID, destination, id)
	return nil
}

func (e *Engine) unsubscribe(frame *stomp.Frame) error {
	id, err := requireHeader(frame, stomp.HeaderID)
	if err != nil {
		return err
	}

	found := false
	for destination, subscriptionID := range e.subscriptions {
		if subscriptionID != id {
			continue
		}
		found = true
		delete(e.subscriptions, destination)
		e.broker.registry.Unsubscribe(destination, e.connID)
		logger.DebugF("[conn %d] Unsubscribed %s from %s", e.connID, id, destination)
	}
	if !found {
		logger.DebugF("[conn %d] Ignoring unsubscribe of unknown id %s", e.connID, id)
	}
	return nil
}

func (e *Engine) disconnect(frame *stomp.Frame) error {
	receipt, err := requireHeader(frame, stomp.HeaderReceipt)
	if err != nil {
		return err
	}
	e.reply(stomp.Receipt(receipt))
	logger.InfoF("[conn %d] Client disconnect", e.connID)
	e.terminate()
	return nil
}
