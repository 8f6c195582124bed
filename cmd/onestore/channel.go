// SPDX-License-Identifier: Apache-2.0
package main

import (
	"strings"

	"github.com/spf13/cobra"

	"onestore/internal/channel"
	"onestore/internal/codec"
)

func newChannelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "append entries to a linked-list channel",
	}
	cmd.AddCommand(newChannelAppendCmd())
	return cmd
}

func newChannelAppendCmd() *cobra.Command {
	var head, dataHash, metadataCSV string
	cmd := &cobra.Command{
		Use:   "append",
		Short: "append one entry to a channel, given its current head and a blob already stored via 'store put'",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dataHash == "" {
				return &usageError{"--data is required (hash of a blob stored via 'onestore store put')"}
			}
			data := codec.Hash(dataHash)
			if !data.Valid() {
				return &usageError{"--data must be a 64-character hex hash"}
			}
			var metadata []codec.Hash
			if metadataCSV != "" {
				for _, s := range strings.Split(metadataCSV, ",") {
					h := codec.Hash(strings.TrimSpace(s))
					if !h.Valid() {
						return &usageError{"--metadata entries must be 64-character hex hashes"}
					}
					metadata = append(metadata, h)
				}
			}

			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			newHead, err := channel.Insert(rt.Store, codec.Hash(head), data, metadata, 0)
			if err != nil {
				return err
			}
			printf("%s\n", newHead)
			return nil
		},
	}
	cmd.Flags().StringVar(&head, "head", "", "current channel head hash, empty for a new channel")
	cmd.Flags().StringVar(&dataHash, "data", "", "hash of the blob to reference as this entry's data")
	cmd.Flags().StringVar(&metadataCSV, "metadata", "", "comma-separated blob hashes to reference as metadata")
	return cmd
}
