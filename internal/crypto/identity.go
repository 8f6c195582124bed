// SPDX-License-Identifier: Apache-2.0
package crypto

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"fmt"

	bip39 "github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/curve25519"
)

// hkdfLabel derives one domain-separated 32-byte sub-key from a master seed,
// the same HMAC-SHA512 construction the wallet's SLIP-0010 derivation uses
// (master key || chain code), here with a fixed textual label standing in
// for the derivation index.
func hkdfLabel(masterSeed []byte, label string) []byte {
	h := hmac.New(sha512.New, masterSeed)
	h.Write([]byte(label))
	return h.Sum(nil)[:32]
}

// Identity holds one (Person|Instance)'s full keypair material: an X25519
// encryption pair and an Ed25519 signing pair. Only local instances keep a
// populated Identity; remote instances are represented by PublicKeys alone.
type Identity struct {
	EncryptPriv [32]byte
	EncryptPub  [32]byte
	SignPriv    ed25519.PrivateKey
	SignPub     ed25519.PublicKey
}

// Wipe zeroes the secret material in place. Best-effort, as with the
// wallet's own Wipe helper — the GC may still have made copies.
func (id *Identity) Wipe() {
	for i := range id.EncryptPriv {
		id.EncryptPriv[i] = 0
	}
	for i := range id.SignPriv {
		id.SignPriv[i] = 0
	}
}

// PublicKeys is the shareable half of an Identity — what gets stored as a
// TypedObject referenced by others (§4.7).
type PublicKeys struct {
	Encrypt [32]byte
	Sign    ed25519.PublicKey
}

func (id *Identity) PublicKeys() PublicKeys {
	return PublicKeys{Encrypt: id.EncryptPub, Sign: id.SignPub}
}

// DeriveIdentity expands a 32-byte master seed into a full Identity via two
// domain-separated HMAC-SHA512 derivations, mirroring the wallet's SLIP-0010
// style derivation but with textual labels instead of hardened path indices
// (this identity scheme has no child keys to derive, only the one encrypt
// pair and one sign pair per seed).
func DeriveIdentity(masterSeed []byte) (*Identity, error) {
	if len(masterSeed) < 16 {
		return nil, fmt.Errorf("crypto: master seed too short (%d bytes)", len(masterSeed))
	}
	id := &Identity{}

	encSeed := hkdfLabel(masterSeed, "onestore-identity-encrypt")
	copy(id.EncryptPriv[:], encSeed)
	pub, err := deriveEncryptPub(id.EncryptPriv)
	if err != nil {
		return nil, err
	}
	id.EncryptPub = pub

	signSeed := hkdfLabel(masterSeed, "onestore-identity-sign")
	id.SignPriv = ed25519.NewKeyFromSeed(signSeed)
	id.SignPub = id.SignPriv.Public().(ed25519.PublicKey)

	return id, nil
}

// deriveEncryptPub computes the X25519 public key for a raw 32-byte scalar.
func deriveEncryptPub(priv [32]byte) ([32]byte, error) {
	var pub [32]byte
	out, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return pub, fmt.Errorf("crypto: derive encryption public key: %w", err)
	}
	copy(pub[:], out)
	return pub, nil
}

// NewMasterSeed generates entropyBits (128 or 256) of randomness, returning
// both the raw master seed (ready for DeriveIdentity) and its
// human-recoverable BIP-39 mnemonic. The caller must wipe the seed once the
// derived Identity is safely persisted, exactly as the wallet's
// NewRandomWallet documents for its own mnemonic.
func NewMasterSeed(entropyBits int) (seed []byte, mnemonic string, err error) {
	if entropyBits != 128 && entropyBits != 256 {
		return nil, "", fmt.Errorf("crypto: unsupported entropy size %d", entropyBits)
	}
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return nil, "", fmt.Errorf("crypto: entropy: %w", err)
	}
	mnemonic, err = bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, "", fmt.Errorf("crypto: mnemonic: %w", err)
	}
	seed = bip39.NewSeed(mnemonic, "")[:32]
	return seed, mnemonic, nil
}

// RecoverMasterSeedFromMnemonic reconstructs the master seed from a
// previously issued mnemonic and optional passphrase, for re-deriving an
// Identity on a new device.
func RecoverMasterSeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	return bip39.NewSeed(mnemonic, passphrase)[:32], nil
}
