// Package protocol interprets STOMP frames for one connection at a time.
package protocol

import (
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/connection"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/database"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/session"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/stomp"
)

// Relay forwards a published MESSAGE beyond this process.
type Relay interface {
	Relay(destination string, frame *stomp.Frame)
}

type Options struct {
	// Version is the only accept-version value the broker speaks.
	Version string
	// Host must match the host header of CONNECT.
	Host string
	// ServerName is advertised in CONNECTED when not empty.
	ServerName string
}

// Broker holds the state shared by every engine.
type Broker struct {
	registry *connection.Registry
	logins   *session.Logins
	store    database.CredentialStore
	relay    Relay
	options  Options
}

func NewBroker(registry *connection.Registry, logins *session.Logins, store database.CredentialStore, options Options) *Broker {
	return &Broker{
		registry: registry,
		logins:   logins,
		store:    store,
		options:  options,
	}
}

// SetRelay installs r. It must be called before the first engine is created.
func (b *Broker) SetRelay(r Relay) {
	b.relay = r
}

func (b *Broker) Registry() *connection.Registry {
	return b.registry
}

func (b *Broker) Logins() *session.Logins {
	return b.logins
}

// NewEngine returns an engine for a connection that has not been started yet.
func (b *Broker) NewEngine() *Engine {
	return &Engine{
		broker:        b,
		connID:        -1,
		subscriptions: make(map[string]string),
	}
}
