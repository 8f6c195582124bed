// SPDX-License-Identifier: Apache-2.0
package routing

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
)

// Invitation is the parsed form of the URL-fragment invitation format
// (§6): a URL-encoded JSON object carrying the inviter's comm-server URL,
// public key, and a one-time token.
type Invitation struct {
	URL       string
	PublicKey [32]byte
	Token     string
}

type invitationPayload struct {
	URL       string `json:"url"`
	PublicKey string `json:"publicKey"`
	Token     string `json:"token"`
}

// ParseInvitation parses the URL-encoded JSON fragment of an invitation URL
// into an Invitation (Supplement 4 — §6 names the wire format but not an
// operation to consume it).
func ParseInvitation(raw string) (Invitation, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Invitation{}, fmt.Errorf("%w: %v", ErrInvalidInvitation, err)
	}
	// url.Parse already percent-decodes the fragment into u.Fragment; do not
	// run it through QueryUnescape again, or a literal '%' or '+' in the
	// payload would be unescaped a second time.
	decoded := u.Fragment
	if decoded == "" {
		return Invitation{}, fmt.Errorf("%w: missing fragment", ErrInvalidInvitation)
	}
	var payload invitationPayload
	if err := json.Unmarshal([]byte(decoded), &payload); err != nil {
		return Invitation{}, fmt.Errorf("%w: %v", ErrInvalidInvitation, err)
	}
	if payload.URL == "" || payload.PublicKey == "" {
		return Invitation{}, fmt.Errorf("%w: missing url or publicKey", ErrInvalidInvitation)
	}
	keyBytes, err := hex.DecodeString(payload.PublicKey)
	if err != nil || len(keyBytes) != 32 {
		return Invitation{}, fmt.Errorf("%w: publicKey must be 32 hex-encoded bytes", ErrInvalidInvitation)
	}
	var pub [32]byte
	copy(pub[:], keyBytes)
	return Invitation{URL: payload.URL, PublicKey: pub, Token: payload.Token}, nil
}

// AcceptInvitation builds, without starting it, the outgoing-direct route
// an accepted invitation implies: a route that dials inv.URL and runs the
// handshake as initiator with ids and cfg. inv.PublicKey and inv.Token are
// not passed on; neither the route nor the handshake checks the peer's
// Instance key against the invitation.
func AcceptInvitation(inv Invitation, ids HandshakeIdentities, cfg HandshakeConfig) Route {
	return NewOutgoingDirectRoute(inv.URL, ids, cfg)
}
