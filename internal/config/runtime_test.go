// SPDX-License-Identifier: Apache-2.0
package config

import (
	"testing"

	"onestore/internal/channel"
	"onestore/internal/recipe"
)

func TestNewRuntimeAssemblesStoreRecipesAndKeychain(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	registered := false
	rt, err := NewRuntime(cfg, func(reg *recipe.Registry) {
		reg.Register(channel.Recipe())
		reg.Register(channel.CreationTimeRecipe())
		registered = true
	})
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	if !registered {
		t.Fatal("register callback was not invoked")
	}
	if rt.Store == nil || rt.Recipes == nil || rt.Keychain == nil || rt.Config == nil {
		t.Fatal("NewRuntime left a field nil")
	}
	if _, err := rt.Recipes.Get(channel.RecipeName); err != nil {
		t.Fatalf("Recipes.Get(%s): %v", channel.RecipeName, err)
	}

	data := []byte("hello")
	h, err := rt.Store.StoreBlob(data)
	if err != nil {
		t.Fatalf("StoreBlob: %v", err)
	}
	got, err := rt.Store.ReadBlob(h)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("ReadBlob = %q, want hello", got)
	}
}

func TestNewRuntimeRejectsInvalidConfig(t *testing.T) {
	cfg := defaults()
	cfg.BaseDir = ""
	if _, err := NewRuntime(&cfg, nil); err == nil {
		t.Fatal("NewRuntime: want error for invalid config")
	}
}
