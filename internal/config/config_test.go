// SPDX-License-Identifier: Apache-2.0
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWithNoConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseDir != dir {
		t.Fatalf("BaseDir = %q, want %q", cfg.BaseDir, dir)
	}
	if cfg.ListenAddr != ":8765" {
		t.Fatalf("ListenAddr = %q, want default", cfg.ListenAddr)
	}
	if len(cfg.DefaultGroupNames) != 1 || cfg.DefaultGroupNames[0] != "chum" {
		t.Fatalf("DefaultGroupNames = %v, want [chum]", cfg.DefaultGroupNames)
	}
}

func TestLoadReadsConfigYaml(t *testing.T) {
	dir := t.TempDir()
	yaml := "listen_addr: \":9999\"\nlog_level: debug\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9999" {
		t.Fatalf("ListenAddr = %q, want :9999", cfg.ListenAddr)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadReadsProfileSpecificConfig(t *testing.T) {
	dir := t.TempDir()
	yaml := "listen_addr: \":7000\"\n"
	if err := os.WriteFile(filepath.Join(dir, "config.staging.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir, "staging")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":7000" {
		t.Fatalf("ListenAddr = %q, want :7000", cfg.ListenAddr)
	}
}

func TestLoadFromEnvReadsDotEnvAndProfile(t *testing.T) {
	dir := t.TempDir()
	yaml := "listen_addr: \":6000\"\n"
	if err := os.WriteFile(filepath.Join(dir, "config.fromenv.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(EnvVar+"=fromenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	os.Unsetenv(EnvVar)
	defer os.Unsetenv(EnvVar)

	cfg, err := LoadFromEnv(dir)
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.ListenAddr != ":6000" {
		t.Fatalf("ListenAddr = %q, want :6000", cfg.ListenAddr)
	}
}

func TestValidateRejectsEmptyFields(t *testing.T) {
	cfg := defaults()
	cfg.BaseDir = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate: want error for empty base_dir")
	}

	cfg = defaults()
	cfg.ListenAddr = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate: want error for empty listen_addr")
	}
}
