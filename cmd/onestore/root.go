// SPDX-License-Identifier: Apache-2.0
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"onestore/internal/channel"
	"onestore/internal/config"
	"onestore/internal/recipe"
)

var baseDir string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "onestore",
		Short:         "advisory CLI over the object store, channel, keychain, and routing packages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&baseDir, "base-dir", "", "instance base directory (defaults to $HOME/.onestore)")

	root.AddCommand(newKeychainCmd())
	root.AddCommand(newStoreCmd())
	root.AddCommand(newChannelCmd())
	root.AddCommand(newConnectCmd())
	return root
}

// loadRuntime loads the instance config (ONE_ENV-selected profile, or
// --base-dir override) and assembles a Runtime with the channel recipe
// registered, since every store/channel subcommand here needs it to decode
// LinkedListEntry objects.
func loadRuntime() (*config.Runtime, error) {
	cfg, err := config.LoadFromEnv(resolveBaseDir())
	if err != nil {
		return nil, err
	}
	return config.NewRuntime(cfg, func(reg *recipe.Registry) {
		reg.Register(channel.Recipe())
		reg.Register(channel.CreationTimeRecipe())
	})
}

func resolveBaseDir() string {
	if baseDir != "" {
		return baseDir
	}
	cfg, err := config.Load("", "")
	if err == nil && cfg != nil {
		return cfg.BaseDir
	}
	return ""
}

func fingerprint(pub [32]byte) string {
	sum := sha256.Sum256(pub[:])
	return hex.EncodeToString(sum[:])
}

func printf(format string, args ...interface{}) { fmt.Printf(format, args...) }
