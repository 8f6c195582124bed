// SPDX-License-Identifier: Apache-2.0
package routing

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"onestore/internal/transport"
)

// Comm-server relay protocol frames (§6): the relay registers a listening
// key, authenticates an incoming caller's target key, and hands the socket
// off to the registered listener.
type commRequestFrame struct {
	Command         string `json:"command"`
	SourcePublicKey string `json:"sourcePublicKey"`
	TargetPublicKey string `json:"targetPublicKey"`
}

type registerFrame struct {
	Command   string `json:"command"`
	PublicKey string `json:"publicKey"`
}

type authRequestFrame struct {
	Command   string `json:"command"`
	PublicKey string `json:"publicKey"`
	Challenge string `json:"challenge"`
}

type authResponseFrame struct {
	Command  string `json:"command"`
	Response string `json:"response"`
}

type authSuccessFrame struct {
	Command      string `json:"command"`
	PingInterval int64  `json:"pingInterval"`
	ClientIP     string `json:"clientIp,omitempty"`
	ClientPort   int    `json:"clientPort,omitempty"`
}

type handoverFrame struct {
	Command string `json:"command"`
}

// outgoingCommserverRoute dials the comm-server, sends a communication
// request naming the target key, authenticates, and receives control of the
// handed-over socket for the handshake.
type outgoingCommserverRoute struct {
	baseRoute
	commserverURL   string
	localPublicKey  [32]byte
	targetPublicKey [32]byte
	authenticate    func(challenge []byte) ([]byte, error)
}

// NewOutgoingCommserverRoute builds a route that asks commserverURL to
// connect this side to targetPublicKey, authenticating with authenticate
// (normally ids.Instance.Sign applied to the server's challenge).
func NewOutgoingCommserverRoute(commserverURL string, localPublicKey, targetPublicKey [32]byte, authenticate func([]byte) ([]byte, error), ids HandshakeIdentities, cfg HandshakeConfig) Route {
	return &outgoingCommserverRoute{
		baseRoute:       baseRoute{kind: RouteOutgoingCommserver, ids: ids, cfg: cfg},
		commserverURL:   commserverURL,
		localPublicKey:  localPublicKey,
		targetPublicKey: targetPublicKey,
		authenticate:    authenticate,
	}
}

func (r *outgoingCommserverRoute) Connect(ctx context.Context) (*transport.Connection, *HandshakeResult, error) {
	set := transport.NewPluginSet(nil, 0, 0)
	conn, err := transport.DialWebSocket(r.commserverURL, set.Plugins()...)
	if err != nil {
		return nil, nil, fmt.Errorf("routing: dial comm-server %s: %w", r.commserverURL, err)
	}

	if err := writeJSON(conn, commRequestFrame{
		Command:         "communication_request",
		SourcePublicKey: hex.EncodeToString(r.localPublicKey[:]),
		TargetPublicKey: hex.EncodeToString(r.targetPublicKey[:]),
	}); err != nil {
		conn.Close("comm-server request failed")
		return nil, nil, fmt.Errorf("routing: comm-server request: %w", err)
	}

	var authReq authRequestFrame
	if err := set.Promise.ReadTypedJSON(30*time.Second, "authentication_request", &authReq); err != nil {
		conn.Close("comm-server auth request missing")
		return nil, nil, fmt.Errorf("routing: comm-server authentication_request: %w", err)
	}
	challenge, err := hex.DecodeString(authReq.Challenge)
	if err != nil {
		conn.Close("comm-server bad challenge")
		return nil, nil, fmt.Errorf("routing: comm-server challenge decode: %w", err)
	}
	response, err := r.authenticate(challenge)
	if err != nil {
		conn.Close("comm-server auth failed")
		return nil, nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if err := writeJSON(conn, authResponseFrame{Command: "authentication_response", Response: hex.EncodeToString(response)}); err != nil {
		conn.Close("comm-server response failed")
		return nil, nil, err
	}

	var success authSuccessFrame
	if err := set.Promise.ReadTypedJSON(30*time.Second, "authentication_success", &success); err != nil {
		conn.Close("comm-server auth not confirmed")
		return nil, nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	var handover handoverFrame
	if err := set.Promise.ReadTypedJSON(30*time.Second, "connection_handover", &handover); err != nil {
		conn.Close("comm-server handover missing")
		return nil, nil, fmt.Errorf("routing: comm-server connection_handover: %w", err)
	}

	// Beyond this point the relay is transparent; run the normal peer
	// handshake over the same socket. Ping's keepalive starts here and the
	// handshake installs the Encryption key.
	enc := set.Encryption
	ping := set.Ping
	ping.Attach(conn)
	result, err := RunHandshake(conn, set.Promise, enc, r.ids, r.cfg)
	if err != nil {
		conn.Close("handshake failed")
		return nil, nil, err
	}
	return conn, result, nil
}

// incomingCommserverRoute registers a listening key at a comm-server and
// waits for the relay to hand over an authenticated caller's socket.
type incomingCommserverRoute struct {
	baseRoute
	commserverURL  string
	localPublicKey [32]byte
}

// NewIncomingCommserverRoute builds a route that registers localPublicKey at
// commserverURL and accepts relayed connections as responder.
func NewIncomingCommserverRoute(commserverURL string, localPublicKey [32]byte, ids HandshakeIdentities, cfg HandshakeConfig) Route {
	return &incomingCommserverRoute{
		baseRoute:      baseRoute{kind: RouteIncomingCommserver, ids: ids, cfg: cfg},
		commserverURL:  commserverURL,
		localPublicKey: localPublicKey,
	}
}

func (r *incomingCommserverRoute) Connect(ctx context.Context) (*transport.Connection, *HandshakeResult, error) {
	set := transport.NewPluginSet(nil, 0, 0)
	conn, err := transport.DialWebSocket(r.commserverURL, set.Plugins()...)
	if err != nil {
		return nil, nil, fmt.Errorf("routing: dial comm-server %s: %w", r.commserverURL, err)
	}
	if err := writeJSON(conn, registerFrame{Command: "register", PublicKey: hex.EncodeToString(r.localPublicKey[:])}); err != nil {
		conn.Close("comm-server register failed")
		return nil, nil, err
	}

	var handover handoverFrame
	if err := set.Promise.ReadTypedJSON(0, "connection_handover", &handover); err != nil {
		conn.Close("comm-server handover missing")
		return nil, nil, fmt.Errorf("routing: comm-server connection_handover: %w", err)
	}

	set.Ping.Attach(conn)
	result, err := RunHandshake(conn, set.Promise, set.Encryption, r.ids, r.cfg)
	if err != nil {
		conn.Close("handshake failed")
		return nil, nil, err
	}
	return conn, result, nil
}
