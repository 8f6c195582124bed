// SPDX-License-Identifier: Apache-2.0
package routing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"

	"onestore/internal/transport"
)

// GroupKey identifies a ConnectionRoutesGroup: one per (groupName,
// localPubKey, remotePubKey) triple, per §4.9.
type GroupKey struct {
	GroupName    string
	LocalPubKey  [32]byte
	RemotePubKey [32]byte
}

type routeEntry struct {
	route  Route
	failed bool
}

// ConnectionRoutesGroup holds at most one active connection for a given
// (groupName, localPubKey, remotePubKey) and manages reconnecting through
// its list of routes after a backoff delay (see backoffWait), grounded on the
// teacher's connection_pool.go keyed-map-plus-reaper idiom (here: one
// goroutine per group instead of a shared background reaper, since each
// group's reconnect cadence is independent).
type ConnectionRoutesGroup struct {
	key GroupKey

	mu              sync.Mutex
	routes          []*routeEntry
	activeConn      *transport.Connection
	activeRoute     Route
	activeResult    *HandshakeResult
	onConnected     func(*transport.Connection, *HandshakeResult)
	stopped         bool
	stopCh          chan struct{}
	reconnecting    bool
	dedup           *lru.Cache[string, time.Time]
	dedupGraceWindow time.Duration
}

// NewConnectionRoutesGroup builds an empty group; AddRoute populates it.
// onConnected, if non-nil, is called once per successful connection (not
// holding the group's lock).
func NewConnectionRoutesGroup(key GroupKey, onConnected func(*transport.Connection, *HandshakeResult)) *ConnectionRoutesGroup {
	dedup, _ := lru.New[string, time.Time](32)
	return &ConnectionRoutesGroup{
		key:              key,
		stopCh:           make(chan struct{}),
		onConnected:      onConnected,
		dedup:            dedup,
		dedupGraceWindow: 2 * time.Second,
	}
}

// AddRoute registers a route this group may use to (re)connect.
func (g *ConnectionRoutesGroup) AddRoute(r Route) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.routes = append(g.routes, &routeEntry{route: r})
}

// SetRouteDisabled administratively enables/disables one route by kind; a
// disabled route is skipped by the reconnect loop.
func (g *ConnectionRoutesGroup) SetRouteDisabled(kind RouteKind, disabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range g.routes {
		if e.route.Kind() == kind {
			e.route.SetDisabled(disabled)
		}
	}
}

// ActiveConnection returns the group's current connection, if any.
func (g *ConnectionRoutesGroup) ActiveConnection() (*transport.Connection, *HandshakeResult, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.activeConn, g.activeResult, g.activeConn != nil
}

// Start attempts every enabled route in order until one connects, then
// watches for its close and reconnects after a backoff delay (see
// backoffWait) until Stop is called or no route remains enabled.
func (g *ConnectionRoutesGroup) Start(ctx context.Context) {
	go g.run(ctx)
}

func (g *ConnectionRoutesGroup) run(ctx context.Context) {
	for {
		g.mu.Lock()
		if g.stopped {
			g.mu.Unlock()
			return
		}
		g.mu.Unlock()

		conn, route, result, err := g.tryConnect(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-g.stopCh:
				return
			case <-time.After(pollInterval):
			}
			continue
		}

		g.mu.Lock()
		if g.stopped {
			g.mu.Unlock()
			conn.Close("group stopped")
			return
		}
		dedupKey := fmt.Sprintf("%x", result.PeerInstancePub.Encrypt)
		if last, ok := g.dedup.Get(dedupKey); g.activeConn != nil || (ok && time.Since(last) < g.dedupGraceWindow) {
			// Either another route's success is already active, or this
			// same peer reconnected within the grace window of its last
			// connection going active — drop the duplicate (§4.9 invariant:
			// at most one activeConnection per group).
			g.mu.Unlock()
			conn.Close("duplicate connection dropped")
			continue
		}
		g.dedup.Add(dedupKey, time.Now())
		g.activeConn = conn
		g.activeRoute = route
		g.activeResult = result
		g.mu.Unlock()

		if g.onConnected != nil {
			g.onConnected(conn, result)
		}

		g.waitForClose(conn)

		g.mu.Lock()
		g.activeConn = nil
		g.activeRoute = nil
		g.activeResult = nil
		stopped := g.stopped
		anyEnabled := g.anyRouteEnabledLocked()
		g.mu.Unlock()
		if stopped || !anyEnabled {
			return
		}
		// Wait out one backoff delay before the next tryConnect pass.
		g.backoffWait(ctx)
	}
}

func (g *ConnectionRoutesGroup) anyRouteEnabledLocked() bool {
	for _, e := range g.routes {
		if !e.route.Disabled() {
			return true
		}
	}
	return false
}

func (g *ConnectionRoutesGroup) tryConnect(ctx context.Context) (*transport.Connection, Route, *HandshakeResult, error) {
	g.mu.Lock()
	routes := append([]*routeEntry(nil), g.routes...)
	g.mu.Unlock()

	var lastErr error
	for _, e := range routes {
		if e.route.Disabled() {
			continue
		}
		conn, result, err := e.route.Connect(ctx)
		if err == nil {
			e.failed = false
			return conn, e.route, result, nil
		}
		if errors.Is(err, ErrImpersonation) {
			routingLog.WithField("group", g.key.GroupName).Error("routing: impersonation attempt, disabling route")
			e.route.SetDisabled(true)
			lastErr = err
			continue
		}
		// Any other failure marks only this route failed and leaves it
		// enabled, so the next pass tries it again; the failed mark does not
		// affect which routes are tried.
		e.failed = true
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrGroupStopped
	}
	return nil, nil, nil, lastErr
}

func (g *ConnectionRoutesGroup) waitForClose(conn *transport.Connection) {
	for {
		_, err := conn.ReadMessage(time.Second)
		if err == nil {
			continue
		}
		if _, ok := err.(*transport.ErrConnectionClosed); ok {
			return
		}
		if err == transport.ErrReadTimeout {
			select {
			case <-g.stopCh:
				conn.Close("group stopped")
				return
			default:
				continue
			}
		}
		return
	}
}

// backoffWait sleeps for the first interval of a fresh exponential schedule
// (500ms, randomized), or until ctx is done or Stop is called. The schedule
// is rebuilt on every call, so the delay does not grow across consecutive
// reconnects.
func (g *ConnectionRoutesGroup) backoffWait(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0 // retry indefinitely until Stop/ctx cancellation
	d := b.NextBackOff()
	select {
	case <-time.After(d):
	case <-ctx.Done():
	case <-g.stopCh:
	}
}

// Stop disables every route, closes the active connection if any, and
// halts the reconnect loop.
func (g *ConnectionRoutesGroup) Stop() {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return
	}
	g.stopped = true
	for _, e := range g.routes {
		e.route.SetDisabled(true)
	}
	conn := g.activeConn
	g.mu.Unlock()
	close(g.stopCh)
	if conn != nil {
		conn.Close("group stopped")
	}
}
