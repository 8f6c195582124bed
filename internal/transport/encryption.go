// SPDX-License-Identifier: Apache-2.0
package transport

import "onestore/internal/crypto"

// Encryption transparently seals outgoing frames and opens incoming ones
// with a symmetric key installed once the handshake completes, per §4.8.
// Before the key is installed, frames pass through unchanged — the
// handshake itself runs in plaintext over the same Connection before
// Install is called.
type Encryption struct {
	key [32]byte
	set bool
	aad []byte
}

func NewEncryption(aad []byte) *Encryption { return &Encryption{aad: aad} }

func (e *Encryption) Name() string { return "encryption" }

// Install sets the symmetric key derived during the handshake (§4.9 step 2).
func (e *Encryption) Install(key [32]byte) {
	e.key = key
	e.set = true
}

func (e *Encryption) Incoming(msg Message) (Message, bool) {
	if !e.set {
		return msg, true
	}
	plain, err := crypto.Decrypt(e.key[:], msg.Data, e.aad)
	if err != nil {
		transportLog.WithError(err).Warn("encryption: dropping frame that failed to decrypt")
		return msg, false
	}
	return decodeDecrypted(plain), true
}

func (e *Encryption) Outgoing(msg Message) (Message, bool) {
	if !e.set {
		return msg, true
	}
	sealed, err := crypto.Encrypt(e.key[:], encodeForSealing(msg), e.aad)
	if err != nil {
		transportLog.WithError(err).Error("encryption: failed to seal outgoing frame")
		return msg, false
	}
	return Message{Data: sealed}, true
}

func (e *Encryption) Closed(reason string, origin CloseOrigin) {}

// encodeForSealing/decodeDecrypted preserve the IsText distinction across
// encryption by prefixing a one-byte tag, since ciphertext is always opaque
// binary on the wire.
func encodeForSealing(msg Message) []byte {
	tag := byte(0)
	payload := msg.Data
	if msg.IsText {
		tag = 1
		payload = []byte(msg.Text)
	}
	return append([]byte{tag}, payload...)
}

func decodeDecrypted(plain []byte) Message {
	if len(plain) == 0 {
		return Message{}
	}
	if plain[0] == 1 {
		return Message{IsText: true, Text: string(plain[1:])}
	}
	return Message{Data: append([]byte(nil), plain[1:]...)}
}
