package cms_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	cms "github.com/goliatone/go-cms-ci"
)

func TestConfigValidateRequiresRepositoryPath(t *testing.T) {
	cfg := cms.DefaultConfig()
	cfg.ContinuousIntegration.RepositoryPath = " "
	if err := cfg.Validate(); !errors.Is(err, cms.ErrRepositoryPathRequired) {
		t.Fatalf("expected ErrRepositoryPathRequired, got %v", err)
	}

	cfg.ContinuousIntegration.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected a disabled repository to need no path, got %v", err)
	}
}

func TestConfigValidateRejectsUnknownDriver(t *testing.T) {
	cfg := cms.DefaultConfig()
	cfg.Database.Driver = "oracle"
	if err := cfg.Validate(); !errors.Is(err, cms.ErrDatabaseDriverUnknown) {
		t.Fatalf("expected ErrDatabaseDriverUnknown, got %v", err)
	}
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cms.yaml")
	body := []byte("continuous_integration:\n  repository_path: /srv/ci\n  store_acls: false\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := cms.LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ContinuousIntegration.RepositoryPath != "/srv/ci" || cfg.ContinuousIntegration.StoreACLs {
		t.Fatalf("unexpected repository settings %#v", cfg.ContinuousIntegration)
	}
	if !cfg.ContinuousIntegration.Enabled || cfg.Database.Driver != "sqlite3" {
		t.Fatal("expected untouched settings to keep their defaults")
	}
}
