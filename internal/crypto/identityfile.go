// SPDX-License-Identifier: Apache-2.0
package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
)

// IdentityFile is the on-disk shape described by §6 "Identity file": public
// keys always present, secret keys present only in the with-secrets variant
// (Supplement 3 — the spec names the JSON shape but not an operation to
// produce/consume it).
type IdentityFile struct {
	PersonEmail           string `json:"personEmail"`
	InstanceName          string `json:"instanceName"`
	PersonKeyPublic       string `json:"personKeyPublic"`
	PersonSignKeyPublic   string `json:"personSignKeyPublic"`
	InstanceKeyPublic     string `json:"instanceKeyPublic"`
	InstanceSignKeyPublic string `json:"instanceSignKeyPublic"`
	URL                   string `json:"url"`

	PersonKeySecret       string `json:"personKeySecret,omitempty"`
	PersonSignKeySecret   string `json:"personSignKeySecret,omitempty"`
	InstanceKeySecret     string `json:"instanceKeySecret,omitempty"`
	InstanceSignKeySecret string `json:"instanceSignKeySecret,omitempty"`
}

// ExportIdentity builds the identity file for a (person, instance) keypair
// pair. withSecrets includes the four private keys hex-encoded; omit it for
// the public-only variant handed out to peers.
func ExportIdentity(person, instance *Identity, personEmail, instanceName, url string, withSecrets bool) *IdentityFile {
	f := &IdentityFile{
		PersonEmail:           personEmail,
		InstanceName:          instanceName,
		PersonKeyPublic:       hex.EncodeToString(person.EncryptPub[:]),
		PersonSignKeyPublic:   hex.EncodeToString(person.SignPub),
		InstanceKeyPublic:     hex.EncodeToString(instance.EncryptPub[:]),
		InstanceSignKeyPublic: hex.EncodeToString(instance.SignPub),
		URL:                   url,
	}
	if withSecrets {
		f.PersonKeySecret = hex.EncodeToString(person.EncryptPriv[:])
		f.PersonSignKeySecret = hex.EncodeToString(person.SignPriv)
		f.InstanceKeySecret = hex.EncodeToString(instance.EncryptPriv[:])
		f.InstanceSignKeySecret = hex.EncodeToString(instance.SignPriv)
	}
	return f
}

// WriteIdentityFile marshals f as JSON to path.
func WriteIdentityFile(path string, f *IdentityFile) error {
	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("crypto: marshal identity file: %w", err)
	}
	return os.WriteFile(path, raw, 0o600)
}

// ReadIdentityFile reads and parses an identity file from path.
func ReadIdentityFile(path string) (*IdentityFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("crypto: read identity file: %w", err)
	}
	var f IdentityFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("crypto: parse identity file: %w", err)
	}
	return &f, nil
}

// PersonIdentity reconstructs the full Person Identity from a with-secrets
// IdentityFile. Returns ErrNotLocal if the file has no secrets (a
// public-only identity file, describing a remote Person).
func (f *IdentityFile) PersonIdentity() (*Identity, error) {
	if f.PersonKeySecret == "" || f.PersonSignKeySecret == "" {
		return nil, ErrNotLocal
	}
	return decodeIdentity(f.PersonKeySecret, f.PersonSignKeySecret)
}

// InstanceIdentity reconstructs the full Instance Identity from a
// with-secrets IdentityFile.
func (f *IdentityFile) InstanceIdentity() (*Identity, error) {
	if f.InstanceKeySecret == "" || f.InstanceSignKeySecret == "" {
		return nil, ErrNotLocal
	}
	return decodeIdentity(f.InstanceKeySecret, f.InstanceSignKeySecret)
}

func decodeIdentity(encryptSecretHex, signSecretHex string) (*Identity, error) {
	encPriv, err := hex.DecodeString(encryptSecretHex)
	if err != nil || len(encPriv) != 32 {
		return nil, fmt.Errorf("crypto: malformed encrypt secret in identity file")
	}
	signPriv, err := hex.DecodeString(signSecretHex)
	if err != nil || len(signPriv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("crypto: malformed sign secret in identity file")
	}
	id := &Identity{SignPriv: ed25519.PrivateKey(signPriv)}
	copy(id.EncryptPriv[:], encPriv)
	pub, err := deriveEncryptPub(id.EncryptPriv)
	if err != nil {
		return nil, err
	}
	id.EncryptPub = pub
	id.SignPub = id.SignPriv.Public().(ed25519.PublicKey)
	return id, nil
}
