package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	cms "github.com/goliatone/go-cms-ci"
)

type cliEnv struct {
	config string
	repo   string
}

func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	dir := t.TempDir()
	env := cliEnv{
		config: filepath.Join(dir, "cms.yaml"),
		repo:   filepath.Join(dir, "repo"),
	}
	body := fmt.Sprintf(`database:
  driver: sqlite3
  dsn: file:%s
continuous_integration:
  enabled: true
  repository_path: %s
logging:
  provider: console
  level: error
`, filepath.Join(dir, "cms.db"), env.repo)
	if err := os.WriteFile(env.config, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func (e cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.config, "--env-file", ""}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e cliEnv) seedSite(t *testing.T) {
	t.Helper()
	cfg, err := cms.LoadConfig(e.config)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	module, err := cms.New(cfg)
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	defer module.Close()
	ctx := context.Background()
	if err := module.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if _, err := module.Documents().CreateSite(ctx, cms.CreateSiteRequest{Name: "main", DefaultCulture: "en-US"}); err != nil {
		t.Fatalf("create site: %v", err)
	}
}

func TestSchemaCommand(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(t, "schema")
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if !strings.Contains(out, "schema ready") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestStatusAndStoreAllRepairDrift(t *testing.T) {
	env := newCLIEnv(t)
	env.seedSite(t)

	out, err := env.run(t, "status")
	if err != nil || !strings.Contains(out, "repository clean") {
		t.Fatalf("expected a clean repository, got %q (%v)", out, err)
	}

	unit := filepath.Join(env.repo, "cms.document", "main", "@root", "en-US.xml")
	if err := os.Remove(unit); err != nil {
		t.Fatalf("remove unit: %v", err)
	}

	out, err = env.run(t, "status", "--fail-on-drift")
	if !errors.Is(err, errDriftDetected) {
		t.Fatalf("expected errDriftDetected, got %v", err)
	}
	if !strings.Contains(out, "missing") || !strings.Contains(out, "cms.document/main/@root/en-US.xml") {
		t.Fatalf("expected the missing unit reported, got %q", out)
	}

	out, err = env.run(t, "store-all", "--site", "main")
	if err != nil {
		t.Fatalf("store-all: %v", err)
	}
	if !strings.Contains(out, "nodes=1") {
		t.Fatalf("unexpected store-all output %q", out)
	}
	if _, err := os.Stat(unit); err != nil {
		t.Fatalf("expected the unit restored: %v", err)
	}
}
