// SPDX-License-Identifier: Apache-2.0
// Package routing implements component C9: the peer handshake, the
// ConnectionRoute variants (direct and comm-server relayed), and
// ConnectionRoutesGroup reconnect/dedup bookkeeping, grounded on the
// teacher's core/network.go Dialer and core/connection_pool.go keyed-map
// reaper idiom.
package routing

import "errors"

// HandshakeError wraps a failure during the 5-step handshake (§4.9). Step
// names the protocol step that failed, for logging and for distinguishing
// transient transport failures from authentication failures in the caller.
type HandshakeError struct {
	Step string
	Err  error
}

func (e *HandshakeError) Error() string {
	return "routing: handshake failed at " + e.Step + ": " + e.Err.Error()
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// ErrImpersonation is fatal: a handshake signature verified against a
// different public key than the one the initiator expected, per §4.9's
// failure semantics ("fatal if a handshake receives a signature that
// verifies against a different key than expected").
var ErrImpersonation = errors.New("routing: signature verifies against unexpected key (impersonation attempt)")

// ErrHandshakeTimeout names a handshake that ran out of time. No function in
// this package returns it: RunHandshake reports a timed-out read as a
// HandshakeError wrapping transport.ErrReadTimeout.
var ErrHandshakeTimeout = errors.New("routing: handshake timed out")

// ErrAuthFailed marks a route as failed without taking down the group — the
// group keeps trying its other routes (§4.9).
var ErrAuthFailed = errors.New("routing: authentication failed")

// ErrGroupStopped is returned by operations attempted after Stop.
var ErrGroupStopped = errors.New("routing: connection routes group stopped")

// ErrInvalidInvitation is returned by ParseInvitation for a malformed URL.
var ErrInvalidInvitation = errors.New("routing: invalid invitation")
