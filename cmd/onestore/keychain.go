// SPDX-License-Identifier: Apache-2.0
package main

import (
	"encoding/hex"
	"path/filepath"

	"github.com/spf13/cobra"

	"onestore/internal/crypto"
)

func newKeychainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keychain",
		Short: "create and export local identities (Person/Instance keypairs)",
	}
	cmd.AddCommand(newKeychainInitCmd())
	cmd.AddCommand(newKeychainExportCmd())
	cmd.AddCommand(newKeychainEscrowCmd())
	cmd.AddCommand(newKeychainRecoverCmd())
	return cmd
}

func newKeychainInitCmd() *cobra.Command {
	var passphrase string
	var entropyBits int
	cmd := &cobra.Command{
		Use:   "init",
		Short: "generate a new Person and Instance identity and store them in the keychain",
		RunE: func(cmd *cobra.Command, args []string) error {
			if entropyBits != 128 && entropyBits != 256 {
				return &usageError{"--entropy-bits must be 128 or 256"}
			}
			rt, err := loadRuntime()
			if err != nil {
				return err
			}

			personSeed, mnemonic, err := crypto.NewMasterSeed(entropyBits)
			if err != nil {
				return err
			}
			person, err := crypto.DeriveIdentity(personSeed)
			if err != nil {
				return err
			}
			instanceSeed, _, err := crypto.NewMasterSeed(entropyBits)
			if err != nil {
				return err
			}
			instance, err := crypto.DeriveIdentity(instanceSeed)
			if err != nil {
				return err
			}
			defer person.Wipe()
			defer instance.Wipe()

			personIdHash := fingerprint(person.EncryptPub)
			instanceIdHash := fingerprint(instance.EncryptPub)
			if err := rt.Keychain.StoreLocalSecret(personIdHash, person, passphrase); err != nil {
				return err
			}
			if err := rt.Keychain.StoreLocalSecret(instanceIdHash, instance, passphrase); err != nil {
				return err
			}

			printf("person idHash:   %s\n", personIdHash)
			printf("instance idHash: %s\n", instanceIdHash)
			printf("recovery mnemonic (person, write this down): %s\n", mnemonic)
			return nil
		},
	}
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "passphrase wrapping the stored secret keys")
	cmd.Flags().IntVar(&entropyBits, "entropy-bits", 128, "BIP-39 entropy size (128 or 256)")
	return cmd
}

func newKeychainExportCmd() *cobra.Command {
	var personIdHash, instanceIdHash, passphrase, out, personEmail, instanceName, url string
	var withSecrets bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "write an identity file for a stored Person/Instance pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			if personIdHash == "" || instanceIdHash == "" {
				return &usageError{"--person and --instance idHash are required"}
			}
			rt, err := loadRuntime()
			if err != nil {
				return err
			}

			var person, instance *crypto.Identity
			if withSecrets {
				person, err = rt.Keychain.LoadLocalSecret(personIdHash, passphrase)
				if err != nil {
					return err
				}
				instance, err = rt.Keychain.LoadLocalSecret(instanceIdHash, passphrase)
				if err != nil {
					return err
				}
				defer person.Wipe()
				defer instance.Wipe()
			} else {
				personPub, err := rt.Keychain.GetPublicKeys(personIdHash)
				if err != nil {
					return err
				}
				instancePub, err := rt.Keychain.GetPublicKeys(instanceIdHash)
				if err != nil {
					return err
				}
				person = &crypto.Identity{EncryptPub: personPub.Encrypt, SignPub: personPub.Sign}
				instance = &crypto.Identity{EncryptPub: instancePub.Encrypt, SignPub: instancePub.Sign}
			}

			file := crypto.ExportIdentity(person, instance, personEmail, instanceName, url, withSecrets)
			if out == "" {
				out = filepath.Join(resolveBaseDir(), instanceIdHash+".identity.json")
			}
			if err := crypto.WriteIdentityFile(out, file); err != nil {
				return err
			}
			printf("wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&personIdHash, "person", "", "person idHash")
	cmd.Flags().StringVar(&instanceIdHash, "instance", "", "instance idHash")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "passphrase for local secrets (required with --with-secrets)")
	cmd.Flags().StringVar(&out, "out", "", "output path (default <base-dir>/<instance idHash>.identity.json)")
	cmd.Flags().StringVar(&personEmail, "person-email", "", "personEmail field")
	cmd.Flags().StringVar(&instanceName, "instance-name", "", "instanceName field")
	cmd.Flags().StringVar(&url, "url", "", "url field (comm-server or direct address this identity is reachable at)")
	cmd.Flags().BoolVar(&withSecrets, "with-secrets", false, "include private keys (local identity file, not for sharing)")
	return cmd
}

func newKeychainEscrowCmd() *cobra.Command {
	var recipientIdHash, secret, identity string
	cmd := &cobra.Command{
		Use:   "escrow",
		Short: "escrow an arbitrary secret so only the named recipient can recover it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if recipientIdHash == "" || secret == "" || identity == "" {
				return &usageError{"--recipient, --secret and --identity are required"}
			}
			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			pub, err := rt.Keychain.GetPublicKeys(recipientIdHash)
			if err != nil {
				return err
			}
			blob, err := crypto.CreateRecoveryInformation(pub.Encrypt, secret, identity)
			if err != nil {
				return err
			}
			printf("%s\n", hex.EncodeToString(blob))
			return nil
		},
	}
	cmd.Flags().StringVar(&recipientIdHash, "recipient", "", "idHash of the identity that can later recover this secret")
	cmd.Flags().StringVar(&secret, "secret", "", "the secret to escrow")
	cmd.Flags().StringVar(&identity, "identity", "", "identity string bound to the escrowed secret")
	return cmd
}

func newKeychainRecoverCmd() *cobra.Command {
	var ownerIdHash, passphrase, blobHex string
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "recover a secret previously escrowed for a local identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ownerIdHash == "" || blobHex == "" {
				return &usageError{"--owner and --blob are required"}
			}
			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			owner, err := rt.Keychain.LoadLocalSecret(ownerIdHash, passphrase)
			if err != nil {
				return err
			}
			defer owner.Wipe()
			blob, err := hex.DecodeString(blobHex)
			if err != nil {
				return &usageError{"--blob must be hex-encoded"}
			}
			secret, err := crypto.RecoverSecretAsString(blob, owner.EncryptPriv)
			if err != nil {
				return err
			}
			printf("%s\n", secret)
			return nil
		},
	}
	cmd.Flags().StringVar(&ownerIdHash, "owner", "", "idHash of the local identity the secret was escrowed for")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "passphrase unlocking the owner's local secret keys")
	cmd.Flags().StringVar(&blobHex, "blob", "", "hex-encoded recovery blob from `keychain escrow`")
	return cmd
}
