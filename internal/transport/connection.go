// SPDX-License-Identifier: Apache-2.0
// Package transport implements component C8: a message-oriented duplex
// Connection over a pluggable byte transport (default WebSocket, pluggable
// QUIC), with an ordered bidirectional plugin chain transforming events in
// both directions.
package transport

import (
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

func SetTransportLogger(l *log.Logger) { transportLog = l }

var transportLog = log.New()

// CloseOrigin names which side initiated a Connection's closure.
type CloseOrigin string

const (
	OriginLocal  CloseOrigin = "local"
	OriginRemote CloseOrigin = "remote"
)

// Message is one inbound or outbound frame. Exactly one of Data/Text is set.
type Message struct {
	Data []byte
	Text string
	IsText bool
}

// ErrConnectionClosed is delivered to pending reads when Close is called.
type ErrConnectionClosed struct {
	Reason string
	Origin CloseOrigin
}

func (e *ErrConnectionClosed) Error() string {
	return "transport: connection closed (" + string(e.Origin) + "): " + e.Reason
}

// ErrReadTimeout is returned by a read that hits its per-call timeout
// without the connection itself closing.
var ErrReadTimeout = errors.New("transport: read timeout")

// rawTransport is the minimal byte-transport surface both the WebSocket and
// QUIC backends satisfy; Connection is built on top of one of these.
type rawTransport interface {
	ReadMessage() (Message, error)
	WriteMessage(Message) error
	Close() error
}

// Plugin transforms events flowing through a Connection in both directions.
// Returning (nil, false) from either hook consumes the event — it is not
// delivered further up (Incoming) or sent further down (Outgoing).
type Plugin interface {
	Name() string
	Incoming(msg Message) (Message, bool)
	Outgoing(msg Message) (Message, bool)
	// Closed is notified once, in installation order, when the owning
	// Connection closes.
	Closed(reason string, origin CloseOrigin)
}

// Connection is a message-oriented duplex with an ordered plugin chain.
// Readers call ReadMessage (typically via the Promise plugin's typed
// variants); writers call WriteMessage. Close cancels all pending reads.
type Connection struct {
	raw     rawTransport
	plugins []Plugin

	mu     sync.Mutex
	closed bool
	reason string
	origin CloseOrigin

	incoming chan Message
	readErr  chan error
	stopOnce sync.Once
	stop     chan struct{}
}

// NewConnection wraps raw in a Connection with the given plugin chain
// installed in order; Outgoing runs first-to-last, Incoming last-to-first,
// so the plugin nearest the wire should be listed last (e.g. list Encryption
// after Statistics: outgoing frames are counted as plaintext and encrypted
// right before hitting raw.WriteMessage; incoming frames are decrypted
// first, before any other plugin — including Statistics — sees them).
func NewConnection(raw rawTransport, plugins ...Plugin) *Connection {
	c := &Connection{
		raw:      raw,
		plugins:  plugins,
		incoming: make(chan Message, 64),
		readErr:  make(chan error, 1),
		stop:     make(chan struct{}),
	}
	go c.pump()
	return c
}

func (c *Connection) pump() {
	for {
		msg, err := c.raw.ReadMessage()
		if err != nil {
			c.closeLocal("transport error: "+err.Error(), OriginRemote)
			return
		}

		consumed := false
		for i := len(c.plugins) - 1; i >= 0; i-- {
			var ok bool
			msg, ok = c.plugins[i].Incoming(msg)
			if !ok {
				consumed = true
				break
			}
		}
		if consumed {
			continue
		}

		select {
		case c.incoming <- msg:
		case <-c.stop:
			return
		}
	}
}

// WriteMessage sends msg through the outgoing plugin chain and onto the
// wire. Writing after Close fails synchronously with ErrConnectionClosed.
func (c *Connection) WriteMessage(msg Message) error {
	c.mu.Lock()
	if c.closed {
		err := &ErrConnectionClosed{Reason: c.reason, Origin: c.origin}
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	ok := true
	for _, p := range c.plugins {
		if msg, ok = p.Outgoing(msg); !ok {
			return nil // a plugin consumed the outgoing message
		}
	}
	return c.raw.WriteMessage(msg)
}

// ReadMessage blocks for the next post-plugin inbound message, or until
// timeout elapses (0 means wait forever), or until the connection closes.
func (c *Connection) ReadMessage(timeout time.Duration) (Message, error) {
	var after <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		after = timer.C
	}
	select {
	case msg := <-c.incoming:
		return msg, nil
	case <-after:
		return Message{}, ErrReadTimeout
	case <-c.stop:
		c.mu.Lock()
		err := &ErrConnectionClosed{Reason: c.reason, Origin: c.origin}
		c.mu.Unlock()
		return Message{}, err
	}
}

// Close closes the underlying transport and cancels all pending reads.
func (c *Connection) Close(reason string) error {
	return c.closeLocal(reason, OriginLocal)
}

func (c *Connection) closeLocal(reason string, origin CloseOrigin) error {
	var err error
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.reason = reason
		c.origin = origin
		c.mu.Unlock()
		close(c.stop)
		err = c.raw.Close()
		for _, p := range c.plugins {
			p.Closed(reason, origin)
		}
	})
	return err
}
