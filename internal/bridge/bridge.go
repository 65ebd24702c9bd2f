// Package bridge relays published messages between broker instances.
package bridge

import (
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/stomp"
)

// Bridge carries messages published on this instance to every other instance.
type Bridge interface {
	// Relay forwards a MESSAGE published locally on destination.
	Relay(destination string, frame *stomp.Frame)
	Start() error
	Stop() error
	Available() bool
}

// BroadcastTarget receives messages relayed from other instances.
type BroadcastTarget interface {
	Publish(destination string, frame *stomp.Frame) int
}
