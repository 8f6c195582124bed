// SPDX-License-Identifier: Apache-2.0
package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"onestore/internal/codec"
)

// store put/get wrap the recipe-independent blob store (StoreBlob/ReadBlob)
// rather than the object API: this CLI has no application recipes of its
// own to store typed objects under, only raw bytes (BLOB/CLOB per §6).
func newStoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "put and get raw blobs in the content-addressed store",
	}
	cmd.AddCommand(newStorePutCmd())
	cmd.AddCommand(newStoreGetCmd())
	return cmd
}

func newStorePutCmd() *cobra.Command {
	var in string
	cmd := &cobra.Command{
		Use:   "put",
		Short: "store a blob from a file (or stdin with --in -) and print its hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			data, err := readInput(in)
			if err != nil {
				return err
			}
			h, err := rt.Store.StoreBlob(data)
			if err != nil {
				return err
			}
			printf("%s\n", h)
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "-", "input file, or - for stdin")
	return cmd
}

func newStoreGetCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "get <hash>",
		Short: "fetch a blob by hash and print it (or write it with --out)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h := codec.Hash(args[0])
			if !h.Valid() {
				return &usageError{"argument must be a 64-character hex hash"}
			}
			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			data, err := rt.Store.ReadBlob(h)
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err := os.Stdout.Write(data)
				return err
			}
			return os.WriteFile(out, data, 0o600)
		},
	}
	cmd.Flags().StringVar(&out, "out", "-", "output file, or - for stdout")
	return cmd
}

func readInput(in string) ([]byte, error) {
	if in == "" || in == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(in)
}
