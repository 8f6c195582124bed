// SPDX-License-Identifier: Apache-2.0
package crypto

import (
	"crypto/ed25519"
	crand "crypto/rand"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/nacl/box"
)

// CryptoApi exposes operations over one owned keypair without ever handing
// the secret bytes back to the caller, per §4.7. It is built from an
// Identity via NewCryptoApi (for a local instance) or, as a
// verification-only view holding no secrets, from a peer's public keys via
// NewVerifyOnlyApi.
type CryptoApi struct {
	hasEncrypt bool
	encryptPriv [32]byte
	encryptPub  [32]byte

	hasSign bool
	signPriv ed25519.PrivateKey
	signPub  ed25519.PublicKey
}

// NewCryptoApi builds a full API (encryption and signing) over id.
func NewCryptoApi(id *Identity) *CryptoApi {
	return &CryptoApi{
		hasEncrypt: true, encryptPriv: id.EncryptPriv, encryptPub: id.EncryptPub,
		hasSign: true, signPriv: id.SignPriv, signPub: id.SignPub,
	}
}

// NewVerifyOnlyApi builds an API over a known peer's public keys that can
// only Verify signatures; it holds no secrets, so Sign, SharedSecret,
// EncryptFor and DecryptFrom fail on it — used for a remote Instance, which
// the Keychain never holds secrets for.
func NewVerifyOnlyApi(pub PublicKeys) *CryptoApi {
	return &CryptoApi{encryptPub: pub.Encrypt, signPub: pub.Sign}
}

// PublicKeys returns the public halves this API was built with, suitable
// for sending to a peer during a handshake.
func (c *CryptoApi) PublicKeys() PublicKeys {
	return PublicKeys{Encrypt: c.encryptPub, Sign: c.signPub}
}

// Sign signs msg with the Ed25519 secret key, failing with ErrNoSignKey if
// this API was built without one (§4.7).
func (c *CryptoApi) Sign(msg []byte) ([]byte, error) {
	if !c.hasSign {
		return nil, ErrNoSignKey
	}
	return ed25519.Sign(c.signPriv, msg), nil
}

// Verify checks a signature against this API's own public sign key (the
// common case: verifying a peer's signed challenge against their known
// public key, as in the handshake's step 4).
func (c *CryptoApi) Verify(msg, sig []byte) bool {
	if len(c.signPub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(c.signPub, msg, sig)
}

// SharedSecret computes the symmetric key for communicating with peerPub,
// via box.Precompute (crypto_box_beforenm: X25519 scalar multiplication then
// HSalsa20) — exposed here because the handshake in package routing derives
// and installs this key once per connection rather than per message.
func (c *CryptoApi) SharedSecret(peerPub [32]byte) ([32]byte, error) {
	var shared [32]byte
	if !c.hasEncrypt {
		return shared, errors.New("crypto: no encryption key on this CryptoApi")
	}
	box.Precompute(&shared, &peerPub, &c.encryptPriv)
	return shared, nil
}

// Encrypt seals plaintext with the given symmetric key (normally the output
// of SharedSecret), returning nonce||ciphertext||tag, mirroring the
// teacher's own XChaCha20-Poly1305 envelope format.
func Encrypt(key, plaintext, aad []byte) ([]byte, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, errors.New("crypto: key must be 32 bytes")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := crand.Read(nonce); err != nil {
		return nil, err
	}
	ct := aead.Seal(nil, nonce, plaintext, aad)
	return append(nonce, ct...), nil
}

// Decrypt opens a blob produced by Encrypt.
func Decrypt(key, blob, aad []byte) ([]byte, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, errors.New("crypto: key must be 32 bytes")
	}
	minLen := chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead
	if len(blob) < minLen {
		return nil, errors.New("crypto: ciphertext too short")
	}
	nonce, ciphertext := blob[:chacha20poly1305.NonceSizeX], blob[chacha20poly1305.NonceSizeX:]
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ciphertext, aad)
}

// EncryptFor is a convenience wrapper combining SharedSecret and Encrypt for
// a one-shot asymmetric envelope to peerPub.
func (c *CryptoApi) EncryptFor(peerPub [32]byte, plaintext, aad []byte) ([]byte, error) {
	key, err := c.SharedSecret(peerPub)
	if err != nil {
		return nil, err
	}
	return Encrypt(key[:], plaintext, aad)
}

// DecryptFrom is EncryptFor's counterpart.
func (c *CryptoApi) DecryptFrom(peerPub [32]byte, blob, aad []byte) ([]byte, error) {
	key, err := c.SharedSecret(peerPub)
	if err != nil {
		return nil, err
	}
	return Decrypt(key[:], blob, aad)
}
