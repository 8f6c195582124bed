// SPDX-License-Identifier: Apache-2.0
package routing

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"onestore/internal/crypto"
	"onestore/internal/transport"
)

// SetRoutingLogger overrides the package-level logger, following the
// teacher's SetXLogger pattern.
func SetRoutingLogger(l *log.Logger) { routingLog = l }

var routingLog = log.New()

// HandshakeIdentities bundles the two keypairs a local side authenticates
// with: the Instance keypair (static pubkey exchange, symmetric key
// derivation) and the Person keypair (personId signature challenge), per
// §4.7's "(Person|Instance) idHash" distinction.
type HandshakeIdentities struct {
	Instance *crypto.CryptoApi
	Person   *crypto.CryptoApi
}

// HandshakeConfig parameterizes one run of the 5-step handshake (§4.9).
type HandshakeConfig struct {
	GroupName string
	// ExpectedPersonSignPub is the peer's Person sign public key known in
	// advance (e.g. from an accepted invitation). Nil for a listener that
	// accepts any caller and records whichever identity presents itself.
	ExpectedPersonSignPub ed25519.PublicKey
	// InstanceIdObject is marshaled as the step-5 payload (Supplement 2/3's
	// identity object, or any JSON-serializable descriptor of this instance).
	InstanceIdObject interface{}
	Timeout          time.Duration
}

// HandshakeResult is what both sides learn about each other once the
// handshake completes.
type HandshakeResult struct {
	PeerInstancePub      crypto.PublicKeys
	PeerPersonSignPub    ed25519.PublicKey
	GroupName            string
	PeerInstanceIdObject json.RawMessage
	SharedKey            [32]byte
}

type staticPubkeyFrame struct {
	Command    string `json:"command"`
	EncryptPub string `json:"encryptPub"`
	SignPub    string `json:"signPub"`
}

type groupFrame struct {
	Command   string `json:"command"`
	GroupName string `json:"groupName"`
}

type syncFrame struct {
	Command string `json:"command"`
}

type challengeFrame struct {
	Command       string `json:"command"`
	Nonce         string `json:"nonce"`
	PersonSignPub string `json:"personSignPub"`
}

type challengeResponseFrame struct {
	Command   string `json:"command"`
	Signature string `json:"signature"`
}

type instanceIdFrame struct {
	Command string          `json:"command"`
	Payload json.RawMessage `json:"payload"`
}

// RunHandshake drives the 5-step handshake (§4.9) over conn, installing the
// derived symmetric key into enc once step 2 completes. Both the initiating
// and accepting side call this with the same code path. cfg.Timeout
// (default 30s) bounds each read of a peer frame, not the exchange as a
// whole; a read that exceeds it fails with that step's HandshakeError
// wrapping transport.ErrReadTimeout.
func RunHandshake(conn *transport.Connection, promise *transport.Promise, enc *transport.Encryption, ids HandshakeIdentities, cfg HandshakeConfig) (*HandshakeResult, error) {
	deadline := cfg.Timeout
	if deadline <= 0 {
		deadline = 30 * time.Second
	}

	// Step 1: exchange static Instance public keys.
	localPub := ids.Instance.PublicKeys()
	out := staticPubkeyFrame{
		Command:    "static_pubkey",
		EncryptPub: hex.EncodeToString(localPub.Encrypt[:]),
		SignPub:    hex.EncodeToString(localPub.Sign),
	}
	if err := writeJSON(conn, out); err != nil {
		return nil, &HandshakeError{Step: "static_pubkey", Err: err}
	}
	var peerStatic staticPubkeyFrame
	if err := promise.ReadTypedJSON(deadline, "static_pubkey", &peerStatic); err != nil {
		return nil, &HandshakeError{Step: "static_pubkey", Err: err}
	}
	peerEncryptPub, err := decodeKey32(peerStatic.EncryptPub)
	if err != nil {
		return nil, &HandshakeError{Step: "static_pubkey", Err: err}
	}
	peerSignPub, err := hex.DecodeString(peerStatic.SignPub)
	if err != nil {
		return nil, &HandshakeError{Step: "static_pubkey", Err: err}
	}

	// Step 2: derive the symmetric key and install Encryption.
	shared, err := ids.Instance.SharedSecret(peerEncryptPub)
	if err != nil {
		return nil, &HandshakeError{Step: "shared_key", Err: err}
	}
	enc.Install(shared)
	routingLog.WithField("group", cfg.GroupName).Debug("handshake: encryption installed")

	// Step 3: connectionGroupName exchange plus a sync round-trip.
	if err := writeJSON(conn, groupFrame{Command: "group", GroupName: cfg.GroupName}); err != nil {
		return nil, &HandshakeError{Step: "group", Err: err}
	}
	var peerGroup groupFrame
	if err := promise.ReadTypedJSON(deadline, "group", &peerGroup); err != nil {
		return nil, &HandshakeError{Step: "group", Err: err}
	}
	if err := writeJSON(conn, syncFrame{Command: "sync"}); err != nil {
		return nil, &HandshakeError{Step: "sync", Err: err}
	}
	var peerSync syncFrame
	if err := promise.ReadTypedJSON(deadline, "sync", &peerSync); err != nil {
		return nil, &HandshakeError{Step: "sync", Err: err}
	}

	// Step 4: personId signature challenge.
	localNonce := make([]byte, 32)
	if _, err := rand.Read(localNonce); err != nil {
		return nil, &HandshakeError{Step: "challenge", Err: err}
	}
	localPersonPub := ids.Person.PublicKeys()
	if err := writeJSON(conn, challengeFrame{
		Command:       "challenge",
		Nonce:         hex.EncodeToString(localNonce),
		PersonSignPub: hex.EncodeToString(localPersonPub.Sign),
	}); err != nil {
		return nil, &HandshakeError{Step: "challenge", Err: err}
	}
	var peerChallenge challengeFrame
	if err := promise.ReadTypedJSON(deadline, "challenge", &peerChallenge); err != nil {
		return nil, &HandshakeError{Step: "challenge", Err: err}
	}
	peerNonce, err := hex.DecodeString(peerChallenge.Nonce)
	if err != nil {
		return nil, &HandshakeError{Step: "challenge", Err: err}
	}
	presentedPersonSignPub, err := hex.DecodeString(peerChallenge.PersonSignPub)
	if err != nil {
		return nil, &HandshakeError{Step: "challenge", Err: err}
	}

	sig, err := ids.Person.Sign(peerNonce)
	if err != nil {
		return nil, &HandshakeError{Step: "challenge_response", Err: err}
	}
	if err := writeJSON(conn, challengeResponseFrame{Command: "challenge_response", Signature: hex.EncodeToString(sig)}); err != nil {
		return nil, &HandshakeError{Step: "challenge_response", Err: err}
	}
	var peerResponse challengeResponseFrame
	if err := promise.ReadTypedJSON(deadline, "challenge_response", &peerResponse); err != nil {
		return nil, &HandshakeError{Step: "challenge_response", Err: err}
	}
	peerSig, err := hex.DecodeString(peerResponse.Signature)
	if err != nil {
		return nil, &HandshakeError{Step: "challenge_response", Err: err}
	}
	if !ed25519.Verify(presentedPersonSignPub, localNonce, peerSig) {
		return nil, &HandshakeError{Step: "challenge_response", Err: ErrAuthFailed}
	}
	if cfg.ExpectedPersonSignPub != nil && !bytes.Equal(presentedPersonSignPub, cfg.ExpectedPersonSignPub) {
		// The signature is valid, but for a different identity than the one
		// this side was told to expect (e.g. from an invitation) — a
		// legitimate keyholder impersonating the expected peer.
		return nil, &HandshakeError{Step: "challenge_response", Err: ErrImpersonation}
	}

	// Step 5: instanceIdObject exchange.
	localPayload, err := json.Marshal(cfg.InstanceIdObject)
	if err != nil {
		return nil, &HandshakeError{Step: "instance_id", Err: err}
	}
	if err := writeJSON(conn, instanceIdFrame{Command: "instance_id", Payload: localPayload}); err != nil {
		return nil, &HandshakeError{Step: "instance_id", Err: err}
	}
	var peerInstanceId instanceIdFrame
	if err := promise.ReadTypedJSON(deadline, "instance_id", &peerInstanceId); err != nil {
		return nil, &HandshakeError{Step: "instance_id", Err: err}
	}

	return &HandshakeResult{
		PeerInstancePub:      crypto.PublicKeys{Encrypt: peerEncryptPub, Sign: peerSignPub},
		PeerPersonSignPub:    presentedPersonSignPub,
		GroupName:            peerGroup.GroupName,
		PeerInstanceIdObject: peerInstanceId.Payload,
		SharedKey:            shared,
	}, nil
}

func writeJSON(conn *transport.Connection, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteMessage(transport.Message{IsText: true, Text: string(raw)})
}

func decodeKey32(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("routing: expected 32-byte key, got %d bytes", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
