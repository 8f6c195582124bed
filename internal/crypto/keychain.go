// SPDX-License-Identifier: Apache-2.0
package crypto

import (
	"crypto/ed25519"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/text/unicode/norm"
)

func SetKeychainLogger(l *log.Logger) { keychainLogger = l }

var keychainLogger = log.New()

// scrypt cost parameters fixed per §4.7; the salt itself is generated fresh
// per StoreLocalSecret call and persisted alongside the wrapped secret so
// two identities sharing a passphrase never derive the same wrapping key.
const (
	scryptN     = 1024
	scryptR     = 8
	scryptP     = 1
	scryptDKLen = 32
	scryptSaltLen = 16
)

// storedPublicKeys is the on-disk JSON shape of a peer's public half.
type storedPublicKeys struct {
	Encrypt [32]byte `json:"encrypt"`
	Sign    []byte   `json:"sign"`
}

// storedSecret is the on-disk JSON shape of a local instance's encrypted
// secret material: an Identity's two private keys, concatenated and sealed
// with a passphrase-derived key, alongside the random salt that derived it.
type storedSecret struct {
	Salt []byte `json:"salt"`
	Blob []byte `json:"blob"`
}

// Keychain persists public keys (for every known Person/Instance) and
// passphrase-encrypted secret keys (only for local instances), rooted at
// baseDir — conventionally the object store's private/ directory, kept
// physically separate from the content-addressed object tree because
// secrets are never content-addressed or referenced by hash.
type Keychain struct {
	baseDir string
}

// NewKeychain opens (creating if absent) a keychain rooted at baseDir.
func NewKeychain(baseDir string) (*Keychain, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("crypto: mkdir keychain dir: %w", err)
	}
	return &Keychain{baseDir: baseDir}, nil
}

func (k *Keychain) publicPath(idHash string) string {
	return filepath.Join(k.baseDir, idHash+".pub.json")
}
func (k *Keychain) secretPath(idHash string) string {
	return filepath.Join(k.baseDir, idHash+".secret")
}

// PutPublicKeys records the public half of some Person/Instance's keypair.
func (k *Keychain) PutPublicKeys(idHash string, pub PublicKeys) error {
	raw, err := json.Marshal(storedPublicKeys{Encrypt: pub.Encrypt, Sign: pub.Sign})
	if err != nil {
		return fmt.Errorf("crypto: marshal public keys: %w", err)
	}
	return os.WriteFile(k.publicPath(idHash), raw, 0o600)
}

// GetPublicKeys fetches a previously recorded public half.
func (k *Keychain) GetPublicKeys(idHash string) (PublicKeys, error) {
	raw, err := os.ReadFile(k.publicPath(idHash))
	if os.IsNotExist(err) {
		return PublicKeys{}, ErrNotLocal
	}
	if err != nil {
		return PublicKeys{}, fmt.Errorf("crypto: read public keys: %w", err)
	}
	var s storedPublicKeys
	if err := json.Unmarshal(raw, &s); err != nil {
		return PublicKeys{}, fmt.Errorf("crypto: decode public keys: %w", err)
	}
	return PublicKeys{Encrypt: s.Encrypt, Sign: ed25519.PublicKey(s.Sign)}, nil
}

// deriveWrappingKey turns a user passphrase into a 32-byte symmetric key via
// scrypt(N=1024,r=8,p=1,dkLen=32) over its NFKC-normalized form and a
// caller-supplied salt, per §4.7 ("Scrypt with empty passphrase and random
// salt yields a 32-byte key").
func deriveWrappingKey(passphrase string, salt []byte) ([]byte, error) {
	normalized := norm.NFKC.String(passphrase)
	return scrypt.Key([]byte(normalized), salt, scryptN, scryptR, scryptP, scryptDKLen)
}

// IsLocal reports whether idHash has an encrypted secret bundle on disk,
// i.e. whether its keypair was generated on this instance (§4.7: "An
// instance is local iff a complete keypair is stored for it").
func (k *Keychain) IsLocal(idHash string) bool {
	_, err := os.Stat(k.secretPath(idHash))
	return err == nil
}

// StoreLocalSecret encrypts id's secret key material under passphrase and
// persists it, also recording its public half. Only ever called for an
// instance whose keypair was generated locally.
func (k *Keychain) StoreLocalSecret(idHash string, id *Identity, passphrase string) error {
	salt := make([]byte, scryptSaltLen)
	if _, err := crand.Read(salt); err != nil {
		return fmt.Errorf("crypto: generate salt: %w", err)
	}
	key, err := deriveWrappingKey(passphrase, salt)
	if err != nil {
		return fmt.Errorf("crypto: derive wrapping key: %w", err)
	}
	plaintext := make([]byte, 0, 32+len(id.SignPriv))
	plaintext = append(plaintext, id.EncryptPriv[:]...)
	plaintext = append(plaintext, id.SignPriv...)

	sealed, err := Encrypt(key, plaintext, []byte(idHash))
	if err != nil {
		return fmt.Errorf("crypto: seal secret: %w", err)
	}
	raw, err := json.Marshal(storedSecret{Salt: salt, Blob: sealed})
	if err != nil {
		return fmt.Errorf("crypto: marshal secret: %w", err)
	}
	if err := os.WriteFile(k.secretPath(idHash), raw, 0o600); err != nil {
		return fmt.Errorf("crypto: write secret: %w", err)
	}
	keychainLogger.WithField("idHash", idHash).Debug("stored local secret keys")
	return k.PutPublicKeys(idHash, id.PublicKeys())
}

// LoadLocalSecret decrypts and returns the full Identity for idHash. The
// returned Identity's secrets live only in process memory; callers should
// Wipe it on logout, per §5's "Keychain secrets ... are zeroed on logout".
func (k *Keychain) LoadLocalSecret(idHash string, passphrase string) (*Identity, error) {
	raw, err := os.ReadFile(k.secretPath(idHash))
	if os.IsNotExist(err) {
		return nil, ErrNotLocal
	}
	if err != nil {
		return nil, fmt.Errorf("crypto: read secret: %w", err)
	}
	var s storedSecret
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("crypto: decode secret: %w", err)
	}
	key, err := deriveWrappingKey(passphrase, s.Salt)
	if err != nil {
		return nil, fmt.Errorf("crypto: derive wrapping key: %w", err)
	}
	plaintext, err := Decrypt(key, s.Blob, []byte(idHash))
	if err != nil {
		return nil, fmt.Errorf("crypto: unseal secret: %w", err)
	}
	if len(plaintext) != 32+ed25519.PrivateKeySize {
		return nil, fmt.Errorf("crypto: corrupt secret bundle for %s", idHash)
	}
	id := &Identity{}
	copy(id.EncryptPriv[:], plaintext[:32])
	id.SignPriv = ed25519.PrivateKey(append([]byte(nil), plaintext[32:]...))
	id.SignPub = id.SignPriv.Public().(ed25519.PublicKey)
	pub, err := deriveEncryptPub(id.EncryptPriv)
	if err != nil {
		return nil, err
	}
	id.EncryptPub = pub
	return id, nil
}
