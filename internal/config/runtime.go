// SPDX-License-Identifier: Apache-2.0
package config

import (
	"fmt"
	"path/filepath"

	"onestore/internal/crypto"
	"onestore/internal/recipe"
	"onestore/internal/store"
)

// Runtime is the explicit context object threaded through operations
// instead of process globals (Supplement 2 — the spec's "Global state"
// design note asks for exactly this disjoint assembly of already-specified
// pieces).
type Runtime struct {
	Store    *store.Store
	Recipes  *recipe.Registry
	Keychain *crypto.Keychain
	Config   *Config
}

// NewRuntime builds a Runtime from cfg: a recipe registry populated by
// register (the caller's recipe.Register* calls, since recipes are
// domain-specific and not owned by this package), the object store rooted
// at cfg.BaseDir, and a Keychain under cfg.BaseDir/private.
func NewRuntime(cfg *Config, register func(*recipe.Registry)) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	reg := recipe.NewRegistry()
	if register != nil {
		register(reg)
	}
	st, err := store.New(cfg.BaseDir, reg)
	if err != nil {
		return nil, fmt.Errorf("config: runtime store: %w", err)
	}
	kc, err := crypto.NewKeychain(filepath.Join(cfg.BaseDir, "private"))
	if err != nil {
		return nil, fmt.Errorf("config: runtime keychain: %w", err)
	}
	return &Runtime{Store: st, Recipes: reg, Keychain: kc, Config: cfg}, nil
}
