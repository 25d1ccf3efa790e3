package di_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/uptrace/bun/dialect"

	"github.com/goliatone/go-cms-ci/internal/di"
	"github.com/goliatone/go-cms-ci/internal/documents"
	"github.com/goliatone/go-cms-ci/internal/logging/console"
	"github.com/goliatone/go-cms-ci/internal/logging/gologger"
	"github.com/goliatone/go-cms-ci/internal/runtimeconfig"
	"github.com/goliatone/go-cms-ci/pkg/testsupport"
)

func newContainer(t *testing.T, mutate func(*runtimeconfig.Config), opts ...di.Option) *di.Container {
	t.Helper()
	cfg := runtimeconfig.DefaultConfig()
	cfg.ContinuousIntegration.RepositoryPath = t.TempDir()
	if mutate != nil {
		mutate(&cfg)
	}
	opts = append([]di.Option{di.WithBunDB(testsupport.NewBunDB(t))}, opts...)
	container, err := di.NewContainer(cfg, opts...)
	if err != nil {
		t.Fatalf("new container: %v", err)
	}
	if err := container.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return container
}

func TestContainerSerializesDocumentsAndLogsTasks(t *testing.T) {
	ctx := context.Background()
	container := newContainer(t, nil)

	root, err := container.DocumentService().CreateSite(ctx, documents.CreateSiteRequest{Name: "main", DefaultCulture: "en-US"})
	if err != nil {
		t.Fatalf("create site: %v", err)
	}

	unit := filepath.Join(container.Config.ContinuousIntegration.RepositoryPath, "cms.document", "main", "@root", "en-US.xml")
	if _, err := os.Stat(unit); err != nil {
		t.Fatalf("expected the root unit on disk: %v", err)
	}

	tasks, err := container.TaskLogger().List(ctx, root.Site.ID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].AliasPath != "/" {
		t.Fatalf("expected one task for the root, got %#v", tasks)
	}

	drifts, err := container.Repository().Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(drifts) != 0 {
		t.Fatalf("expected a clean repository, got %#v", drifts)
	}
}

func TestContainerWithoutRepository(t *testing.T) {
	ctx := context.Background()
	container := newContainer(t, func(cfg *runtimeconfig.Config) {
		cfg.ContinuousIntegration.Enabled = false
		cfg.ContinuousIntegration.RepositoryPath = ""
		cfg.Cache.Enabled = false
	})

	if container.RepositoryEnabled() || container.Repository() != nil {
		t.Fatal("expected no repository")
	}
	if container.NewWatcher() != nil {
		t.Fatal("expected no watcher")
	}
	if _, err := container.DocumentService().CreateSite(ctx, documents.CreateSiteRequest{Name: "main", DefaultCulture: "en-US"}); err != nil {
		t.Fatalf("create site: %v", err)
	}
}

func TestContainerRejectsInvalidConfig(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Database.Driver = "oracle"
	if _, err := di.NewContainer(cfg); err == nil {
		t.Fatal("expected a validation error")
	}
}

func TestContainerBuildsConfiguredLoggerProvider(t *testing.T) {
	container := newContainer(t, func(cfg *runtimeconfig.Config) {
		cfg.Logging.Provider = "gologger"
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "json"
	})
	if _, ok := container.LoggerProvider().(*gologger.Provider); !ok {
		t.Fatalf("expected go-logger provider, got %T", container.LoggerProvider())
	}

	var buf bytes.Buffer
	custom := console.NewProvider(console.Options{Writer: &buf})
	container = newContainer(t, nil, di.WithLoggerProvider(custom))
	if container.LoggerProvider() != custom {
		t.Fatal("expected the supplied provider")
	}
	if !strings.Contains(buf.String(), "container.configured") {
		t.Fatalf("expected the container to log through the supplied provider, got %q", buf.String())
	}
}

func TestOpenDBUsesConfiguredDriver(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Database.DSN = "file:di_open_test?mode=memory&cache=shared"
	cfg.ContinuousIntegration.RepositoryPath = t.TempDir()

	container, err := di.NewContainer(cfg)
	if err != nil {
		t.Fatalf("new container: %v", err)
	}
	if got := container.DB().Dialect().Name(); got != dialect.SQLite {
		t.Fatalf("expected sqlite dialect, got %v", got)
	}
	if err := container.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if err := container.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
