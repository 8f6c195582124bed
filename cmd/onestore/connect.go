// SPDX-License-Identifier: Apache-2.0
package main

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/spf13/cobra"

	"onestore/internal/crypto"
	"onestore/internal/routing"
)

func newConnectCmd() *cobra.Command {
	var url, personIdHash, instanceIdHash, passphrase, groupName, expectedPersonSignPub string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "dial a peer's incoming-direct listener and run the handshake",
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" || personIdHash == "" || instanceIdHash == "" {
				return &usageError{"--url, --person and --instance are required"}
			}
			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			person, err := rt.Keychain.LoadLocalSecret(personIdHash, passphrase)
			if err != nil {
				return err
			}
			defer person.Wipe()
			instance, err := rt.Keychain.LoadLocalSecret(instanceIdHash, passphrase)
			if err != nil {
				return err
			}
			defer instance.Wipe()

			ids := routing.HandshakeIdentities{
				Instance: crypto.NewCryptoApi(instance),
				Person:   crypto.NewCryptoApi(person),
			}
			cfg := routing.HandshakeConfig{
				GroupName:        groupName,
				InstanceIdObject: map[string]string{"instanceIdHash": instanceIdHash},
				Timeout:          timeout,
			}
			if expectedPersonSignPub != "" {
				raw, err := hex.DecodeString(expectedPersonSignPub)
				if err != nil || len(raw) != 32 {
					return &usageError{"--expect-person-sign-pub must be 32 hex-encoded bytes"}
				}
				cfg.ExpectedPersonSignPub = raw
			}

			route := routing.NewOutgoingDirectRoute(url, ids, cfg)
			ctx := context.Background()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout+5*time.Second)
				defer cancel()
			}
			conn, result, err := route.Connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close("connect command done")

			printf("groupName:            %s\n", result.GroupName)
			printf("peer instance encrypt: %s\n", hex.EncodeToString(result.PeerInstancePub.Encrypt[:]))
			printf("peer instance sign:    %s\n", hex.EncodeToString(result.PeerInstancePub.Sign))
			printf("peer person sign:      %s\n", hex.EncodeToString(result.PeerPersonSignPub))
			printf("peer instance id obj:  %s\n", string(result.PeerInstanceIdObject))
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "peer's incoming-direct listener URL (ws:// or wss://)")
	cmd.Flags().StringVar(&personIdHash, "person", "", "local person idHash to authenticate as")
	cmd.Flags().StringVar(&instanceIdHash, "instance", "", "local instance idHash to authenticate as")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "passphrase for the local secrets")
	cmd.Flags().StringVar(&groupName, "group-name", "chum", "connectionGroupName to negotiate (§4.9 step 3)")
	cmd.Flags().StringVar(&expectedPersonSignPub, "expect-person-sign-pub", "", "peer's Person sign public key, 32 hex-encoded bytes (from an invitation); mismatch aborts as impersonation")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "handshake timeout")
	return cmd
}
