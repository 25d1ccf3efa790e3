package cms_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	cms "github.com/goliatone/go-cms-ci"
	"github.com/goliatone/go-cms-ci/internal/di"
	"github.com/goliatone/go-cms-ci/internal/documents"
	"github.com/goliatone/go-cms-ci/pkg/testsupport"
)

func newModule(t *testing.T) *cms.Module {
	t.Helper()
	cfg := cms.DefaultConfig()
	cfg.ContinuousIntegration.RepositoryPath = t.TempDir()
	module, err := cms.New(cfg, di.WithBunDB(testsupport.NewBunDB(t)))
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	if err := module.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return module
}

func TestModuleMirrorsDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	module := newModule(t)
	repoDir := module.Container().Config.ContinuousIntegration.RepositoryPath

	root, err := module.Documents().CreateSite(ctx, cms.CreateSiteRequest{Name: "main", DefaultCulture: "en-US"})
	if err != nil {
		t.Fatalf("create site: %v", err)
	}
	if _, err := module.DocumentTypes().Register(ctx, cms.RegisterTypeRequest{
		ClassName: "cms.article",
		IsCoupled: true,
		Fields:    []documents.FieldDefinition{{Name: "title", Type: "text"}},
	}); err != nil {
		t.Fatalf("register type: %v", err)
	}

	article, err := module.Documents().Insert(ctx, cms.InsertRequest{
		ParentID:  root.NodeID(),
		ClassName: "cms.article",
		Name:      "News",
		Fields:    map[string]any{"title": "Hello"},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	unit := filepath.Join(repoDir, "cms.document", "main", "news", "en-US.xml")
	if _, err := os.Stat(unit); err != nil {
		t.Fatalf("expected unit for the article: %v", err)
	}

	if err := module.Documents().Delete(ctx, cms.DeleteRequest{NodeID: article.NodeID(), AllCultures: true}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(unit); !os.IsNotExist(err) {
		t.Fatalf("expected unit removed, got %v", err)
	}

	tasks, err := module.StagingTasks(ctx, root.Site.ID)
	if err != nil {
		t.Fatalf("staging tasks: %v", err)
	}
	if len(tasks) < 3 {
		t.Fatalf("expected create, insert and delete tasks, got %d", len(tasks))
	}

	drifts, err := module.Repository().Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(drifts) != 0 {
		t.Fatalf("expected a clean repository, got %#v", drifts)
	}
	if module.Watcher() == nil {
		t.Fatal("expected a watcher when continuous integration is on")
	}
}
