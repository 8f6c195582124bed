// SPDX-License-Identifier: Apache-2.0
package routing

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"onestore/internal/transport"
)

// RouteKind names one of the four concrete ways to establish a connection
// (§4.9).
type RouteKind string

const (
	RouteOutgoingDirect     RouteKind = "outgoing-direct"
	RouteIncomingDirect     RouteKind = "incoming-direct"
	RouteOutgoingCommserver RouteKind = "outgoing-via-commserver"
	RouteIncomingCommserver RouteKind = "incoming-via-commserver"
)

// Route is one concrete means of establishing a connection to a peer,
// carrying enough state to attempt it again after a failure. A
// ConnectionRoutesGroup holds a list of Routes and races/retries them.
type Route interface {
	Kind() RouteKind
	Disabled() bool
	SetDisabled(bool)
	// Connect blocks until a handshaken Connection is established or the
	// attempt fails; of the routes in this package only the incoming-direct
	// route also returns early when ctx is done. The caller owns the
	// returned Connection's lifetime.
	Connect(ctx context.Context) (*transport.Connection, *HandshakeResult, error)
}

type baseRoute struct {
	kind     RouteKind
	disabled bool
	ids      HandshakeIdentities
	cfg      HandshakeConfig
}

func (r *baseRoute) Kind() RouteKind    { return r.kind }
func (r *baseRoute) Disabled() bool     { return r.disabled }
func (r *baseRoute) SetDisabled(v bool) { r.disabled = v }

// outgoingDirectRoute dials a peer's WebSocket listener directly.
type outgoingDirectRoute struct {
	baseRoute
	url string
}

// NewOutgoingDirectRoute builds a route that dials url (the peer's
// incoming-direct listener address) and runs the handshake as initiator.
func NewOutgoingDirectRoute(url string, ids HandshakeIdentities, cfg HandshakeConfig) Route {
	return &outgoingDirectRoute{baseRoute: baseRoute{kind: RouteOutgoingDirect, ids: ids, cfg: cfg}, url: url}
}

func (r *outgoingDirectRoute) Connect(ctx context.Context) (*transport.Connection, *HandshakeResult, error) {
	sessionID := uuid.NewString()
	set := transport.NewPluginSet([]byte(sessionID), 0, 0)
	conn, err := transport.DialWebSocket(r.url, set.Plugins()...)
	if err != nil {
		return nil, nil, fmt.Errorf("routing: dial %s: %w", r.url, err)
	}
	set.Ping.Attach(conn)
	result, err := RunHandshake(conn, set.Promise, set.Encryption, r.ids, r.cfg)
	if err != nil {
		conn.Close("handshake failed")
		return nil, nil, err
	}
	return conn, result, nil
}

// IncomingListener accepts WebSocket upgrades for an incoming-direct route
// and hands each handshaken Connection to the route that reads Accept.
type IncomingListener struct {
	httpSrv *http.Server
	accept  chan incomingAttempt
	closed  chan struct{}
}

type incomingAttempt struct {
	conn *transport.Connection
	set  *transport.PluginSet
}

// NewIncomingDirectListener starts an HTTP server on addr upgrading every
// request to a WebSocket; each accepted socket is queued for a matching
// incomingDirectRoute's Connect call to run the handshake as responder.
func NewIncomingDirectListener(addr string) *IncomingListener {
	l := &IncomingListener{
		accept: make(chan incomingAttempt, 8),
		closed: make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		sessionID := uuid.NewString()
		set := transport.NewPluginSet([]byte(sessionID), 0, 0)
		conn, err := transport.AcceptWebSocket(w, r, set.Plugins()...)
		if err != nil {
			routingLog.WithError(err).Warn("incoming-direct: upgrade failed")
			return
		}
		set.Ping.Attach(conn)
		select {
		case l.accept <- incomingAttempt{conn: conn, set: set}:
		case <-l.closed:
			conn.Close("listener stopped")
		default:
			conn.Close("incoming-direct: listener backlog full")
		}
	})
	l.httpSrv = &http.Server{Addr: addr, Handler: mux}
	return l
}

// Serve blocks running the HTTP server until Close is called.
func (l *IncomingListener) Serve() error {
	err := l.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close stops accepting new connections and shuts down the HTTP server.
func (l *IncomingListener) Close() error {
	close(l.closed)
	return l.httpSrv.Close()
}

// incomingDirectRoute waits for the next socket an IncomingListener accepts
// and runs the handshake as responder.
type incomingDirectRoute struct {
	baseRoute
	listener *IncomingListener
}

// NewIncomingDirectRoute builds a route bound to an already-running
// IncomingListener.
func NewIncomingDirectRoute(listener *IncomingListener, ids HandshakeIdentities, cfg HandshakeConfig) Route {
	return &incomingDirectRoute{baseRoute: baseRoute{kind: RouteIncomingDirect, ids: ids, cfg: cfg}, listener: listener}
}

func (r *incomingDirectRoute) Connect(ctx context.Context) (*transport.Connection, *HandshakeResult, error) {
	select {
	case attempt := <-r.listener.accept:
		result, err := RunHandshake(attempt.conn, attempt.set.Promise, attempt.set.Encryption, r.ids, r.cfg)
		if err != nil {
			attempt.conn.Close("handshake failed")
			return nil, nil, err
		}
		return attempt.conn, result, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

// pollInterval bounds how long ConnectionRoutesGroup waits between Connect
// attempts while no route has succeeded, so a Stop can interrupt promptly.
const pollInterval = 200 * time.Millisecond
