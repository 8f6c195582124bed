// SPDX-License-Identifier: Apache-2.0
package crypto

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

// ErrRecoveryBlobMalformed is returned by RecoverSecretAsString for a blob
// that is too short or otherwise not shaped like one CreateRecoveryInformation
// produced.
var ErrRecoveryBlobMalformed = errors.New("crypto: malformed recovery blob")

// CreateRecoveryInformation escrows an arbitrary secret (e.g. a master seed
// or passphrase) so that only the holder of pubKey's matching private key can
// ever recover it, per §4.7/§8 scenario 6. It generates a fresh ephemeral
// X25519 keypair, derives a one-time shared secret against pubKey via
// box.Precompute (the same primitive CryptoApi.EncryptFor uses for its
// sender-authenticated envelopes), and seals secret under it with identity
// bound as associated data so a recovered blob can never be silently
// reattributed to a different identity. The ephemeral private key and the
// shared secret are wiped before returning; only pubKey's own private key,
// supplied later to RecoverSecretAsString, can open the result.
func CreateRecoveryInformation(pubKey [32]byte, secret, identity string) ([]byte, error) {
	ephPub, ephPriv, err := box.GenerateKey(crand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: generate ephemeral keypair: %w", err)
	}
	var shared [32]byte
	box.Precompute(&shared, &pubKey, ephPriv)
	defer zero(ephPriv[:])
	defer zero(shared[:])

	sealed, err := Encrypt(shared[:], []byte(secret), []byte(identity))
	if err != nil {
		return nil, fmt.Errorf("crypto: seal recovery secret: %w", err)
	}

	idBytes := []byte(identity)
	out := make([]byte, 0, 32+2+len(idBytes)+len(sealed))
	out = append(out, ephPub[:]...)
	out = binary.BigEndian.AppendUint16(out, uint16(len(idBytes)))
	out = append(out, idBytes...)
	out = append(out, sealed...)
	return out, nil
}

// RecoverSecretAsString reverses CreateRecoveryInformation: given privKey
// (the recipient's X25519 secret key) and a previously issued recovery blob,
// it recomputes the shared secret and unseals the escrowed string.
func RecoverSecretAsString(recovery []byte, privKey [32]byte) (string, error) {
	if len(recovery) < 32+2 {
		return "", ErrRecoveryBlobMalformed
	}
	var ephPub [32]byte
	copy(ephPub[:], recovery[:32])
	idLen := int(binary.BigEndian.Uint16(recovery[32:34]))
	rest := recovery[34:]
	if idLen > len(rest) {
		return "", ErrRecoveryBlobMalformed
	}
	identity := rest[:idLen]
	sealed := rest[idLen:]

	var shared [32]byte
	box.Precompute(&shared, &ephPub, &privKey)
	defer zero(shared[:])

	plaintext, err := Decrypt(shared[:], sealed, identity)
	if err != nil {
		return "", fmt.Errorf("crypto: unseal recovery secret: %w", err)
	}
	return string(plaintext), nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
