// SPDX-License-Identifier: Apache-2.0
// Package crypto implements component C7: Keychain persistence and the
// CryptoApi surface over X25519 encryption and Ed25519 signing.
package crypto

import "errors"

// ErrNoSignKey is returned by Sign when the CryptoApi was built without a
// signing secret (a verify-only API from NewVerifyOnlyApi), per §4.7.
var ErrNoSignKey = errors.New("crypto: no sign key available on this CryptoApi")

// ErrNotLocal is returned when requested key material is not held locally:
// by Keychain.GetPublicKeys and Keychain.LoadLocalSecret when the key file
// is absent, and by IdentityFile.PersonIdentity/InstanceIdentity when the
// file carries no secrets.
var ErrNotLocal = errors.New("crypto: instance has no local secret keys")

// ErrInvalidMnemonic is returned by RecoverMasterSeedFromMnemonic for a
// checksum failure or malformed phrase.
var ErrInvalidMnemonic = errors.New("crypto: invalid recovery mnemonic")
