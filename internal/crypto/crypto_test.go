package crypto

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"onestore/internal/testutil"
)

func TestDeriveIdentityDeterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{0x42}, 32)
	id1, err := DeriveIdentity(seed)
	if err != nil {
		t.Fatalf("DeriveIdentity: %v", err)
	}
	id2, err := DeriveIdentity(seed)
	if err != nil {
		t.Fatalf("DeriveIdentity: %v", err)
	}
	if id1.EncryptPub != id2.EncryptPub {
		t.Fatal("expected deterministic encryption public key from the same seed")
	}
	if !bytes.Equal(id1.SignPub, id2.SignPub) {
		t.Fatal("expected deterministic sign public key from the same seed")
	}
}

func TestMasterSeedMnemonicRoundTrip(t *testing.T) {
	seed, mnemonic, err := NewMasterSeed(256)
	if err != nil {
		t.Fatalf("NewMasterSeed: %v", err)
	}
	recovered, err := RecoverMasterSeedFromMnemonic(mnemonic, "")
	if err != nil {
		t.Fatalf("RecoverMasterSeedFromMnemonic: %v", err)
	}
	if !bytes.Equal(seed, recovered) {
		t.Fatal("recovered seed does not match original")
	}
}

// TestEscrowRecoveryRoundTrip exercises §8 scenario 6 literally: escrow a
// secret under a recipient's public key, then recover it with the matching
// private key.
func TestEscrowRecoveryRoundTrip(t *testing.T) {
	recipient, err := DeriveIdentity(bytes.Repeat([]byte{0x33}, 32))
	if err != nil {
		t.Fatalf("DeriveIdentity: %v", err)
	}

	const secret = "abfuqlwkeu"
	const identity = "test@me"
	blob, err := CreateRecoveryInformation(recipient.EncryptPub, secret, identity)
	if err != nil {
		t.Fatalf("CreateRecoveryInformation: %v", err)
	}

	recovered, err := RecoverSecretAsString(blob, recipient.EncryptPriv)
	if err != nil {
		t.Fatalf("RecoverSecretAsString: %v", err)
	}
	if recovered != secret {
		t.Fatalf("recovered secret = %q, want %q", recovered, secret)
	}
}

func TestEscrowRecoveryFailsWithWrongPrivateKey(t *testing.T) {
	recipient, err := DeriveIdentity(bytes.Repeat([]byte{0x44}, 32))
	if err != nil {
		t.Fatalf("DeriveIdentity recipient: %v", err)
	}
	other, err := DeriveIdentity(bytes.Repeat([]byte{0x55}, 32))
	if err != nil {
		t.Fatalf("DeriveIdentity other: %v", err)
	}

	blob, err := CreateRecoveryInformation(recipient.EncryptPub, "top secret", "test@me")
	if err != nil {
		t.Fatalf("CreateRecoveryInformation: %v", err)
	}
	if _, err := RecoverSecretAsString(blob, other.EncryptPriv); err == nil {
		t.Fatal("expected recovery to fail with the wrong private key")
	}
}

func TestSignVerifyAndNoSignKey(t *testing.T) {
	id, err := DeriveIdentity(bytes.Repeat([]byte{0x01}, 32))
	if err != nil {
		t.Fatalf("DeriveIdentity: %v", err)
	}
	full := NewCryptoApi(id)
	msg := []byte("hello peer")
	sig, err := full.Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !full.Verify(msg, sig) {
		t.Fatal("expected signature to verify")
	}

	verifyOnly := NewVerifyOnlyApi(id.PublicKeys())
	if !verifyOnly.Verify(msg, sig) {
		t.Fatal("expected verify-only API to verify the same signature")
	}
	if _, err := verifyOnly.Sign(msg); err != ErrNoSignKey {
		t.Fatalf("expected ErrNoSignKey, got %v", err)
	}
}

func TestEncryptForRoundTrip(t *testing.T) {
	alice, err := DeriveIdentity(bytes.Repeat([]byte{0x10}, 32))
	if err != nil {
		t.Fatalf("DeriveIdentity alice: %v", err)
	}
	bob, err := DeriveIdentity(bytes.Repeat([]byte{0x20}, 32))
	if err != nil {
		t.Fatalf("DeriveIdentity bob: %v", err)
	}
	aliceApi := NewCryptoApi(alice)
	bobApi := NewCryptoApi(bob)

	plaintext := []byte("secret message")
	sealed, err := aliceApi.EncryptFor(bob.EncryptPub, plaintext, []byte("ctx"))
	if err != nil {
		t.Fatalf("EncryptFor: %v", err)
	}
	opened, err := bobApi.DecryptFrom(alice.EncryptPub, sealed, []byte("ctx"))
	if err != nil {
		t.Fatalf("DecryptFrom: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", opened, plaintext)
	}
}

func TestKeychainStoreAndLoadLocalSecret(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	defer sb.Cleanup()

	kc, err := NewKeychain(sb.Root)
	if err != nil {
		t.Fatalf("NewKeychain: %v", err)
	}
	id, err := DeriveIdentity(bytes.Repeat([]byte{0x77}, 32))
	if err != nil {
		t.Fatalf("DeriveIdentity: %v", err)
	}
	const idHash = "deadbeef"
	if err := kc.StoreLocalSecret(idHash, id, "correct horse battery staple"); err != nil {
		t.Fatalf("StoreLocalSecret: %v", err)
	}
	if !kc.IsLocal(idHash) {
		t.Fatal("expected IsLocal to be true after StoreLocalSecret")
	}

	loaded, err := kc.LoadLocalSecret(idHash, "correct horse battery staple")
	if err != nil {
		t.Fatalf("LoadLocalSecret: %v", err)
	}
	if loaded.EncryptPub != id.EncryptPub || !bytes.Equal(loaded.SignPub, id.SignPub) {
		t.Fatal("loaded identity does not match the stored one")
	}

	if _, err := kc.LoadLocalSecret(idHash, "wrong passphrase"); err == nil {
		t.Fatal("expected wrong passphrase to fail decryption")
	}
}

// TestStoreLocalSecretUsesDistinctSaltPerIdentity guards against a single
// global scrypt salt: two identities sharing a passphrase must still derive
// different wrapping keys, so their on-disk secret files never match even
// byte-for-byte if the underlying key material happened to collide.
func TestStoreLocalSecretUsesDistinctSaltPerIdentity(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	defer sb.Cleanup()

	kc, err := NewKeychain(sb.Root)
	if err != nil {
		t.Fatalf("NewKeychain: %v", err)
	}

	idA, err := DeriveIdentity(bytes.Repeat([]byte{0x11}, 32))
	if err != nil {
		t.Fatalf("DeriveIdentity A: %v", err)
	}
	idB, err := DeriveIdentity(bytes.Repeat([]byte{0x22}, 32))
	if err != nil {
		t.Fatalf("DeriveIdentity B: %v", err)
	}

	const passphrase = "shared passphrase"
	if err := kc.StoreLocalSecret("idA", idA, passphrase); err != nil {
		t.Fatalf("StoreLocalSecret A: %v", err)
	}
	if err := kc.StoreLocalSecret("idB", idB, passphrase); err != nil {
		t.Fatalf("StoreLocalSecret B: %v", err)
	}

	rawA, err := os.ReadFile(kc.secretPath("idA"))
	if err != nil {
		t.Fatalf("read secret A: %v", err)
	}
	rawB, err := os.ReadFile(kc.secretPath("idB"))
	if err != nil {
		t.Fatalf("read secret B: %v", err)
	}
	var sa, sb2 storedSecret
	if err := json.Unmarshal(rawA, &sa); err != nil {
		t.Fatalf("decode secret A: %v", err)
	}
	if err := json.Unmarshal(rawB, &sb2); err != nil {
		t.Fatalf("decode secret B: %v", err)
	}
	if len(sa.Salt) == 0 || len(sb2.Salt) == 0 {
		t.Fatal("expected a non-empty persisted salt for both identities")
	}
	if bytes.Equal(sa.Salt, sb2.Salt) {
		t.Fatal("expected distinct random salts across identities sharing a passphrase")
	}

	loadedA, err := kc.LoadLocalSecret("idA", passphrase)
	if err != nil {
		t.Fatalf("LoadLocalSecret A: %v", err)
	}
	if loadedA.EncryptPub != idA.EncryptPub {
		t.Fatal("LoadLocalSecret A did not round-trip correctly with the persisted salt")
	}
}
