package ci_test

import (
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-cms-ci/internal/ci"
	"github.com/goliatone/go-cms-ci/internal/documents"
	"github.com/goliatone/go-cms-ci/pkg/testsupport"
)

type fixture struct {
	svc   *documents.Service
	store *documents.Store
	repo  *ci.Repository
	dir   string
	root  *documents.TreeNode
}

func newFixture(t *testing.T, cultures ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	db := testsupport.NewBunDB(t)
	if err := documents.EnsureSchema(ctx, db); err != nil {
		t.Fatalf("ensure documents schema: %v", err)
	}
	if err := ci.EnsureSchema(ctx, db); err != nil {
		t.Fatalf("ensure ci schema: %v", err)
	}

	clock := time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }
	f := &fixture{store: documents.NewStore(db), dir: t.TempDir()}
	f.repo = ci.NewRepository(f.store, ci.NewFileSystemStore(f.dir), ci.WithClock(now))

	evts := documents.NewEvents()
	ci.NewHandlers(f.repo, nil).Init(evts)
	f.svc = documents.NewService(f.store, evts, documents.WithClock(now))

	if len(cultures) == 0 {
		cultures = []string{"en-US"}
	}
	root, err := f.svc.CreateSite(ctx, documents.CreateSiteRequest{
		Name:           "main",
		DefaultCulture: cultures[0],
		Cultures:       cultures[1:],
	})
	if err != nil {
		t.Fatalf("create site: %v", err)
	}
	f.root = root

	types := f.svc.Types()
	if _, err := types.Register(ctx, documents.RegisterTypeRequest{
		ClassName: "cms.article",
		IsCoupled: true,
		Fields: []documents.FieldDefinition{
			{Name: "title", Type: "text", Required: true},
			{Name: "body", Type: "longtext"},
		},
	}); err != nil {
		t.Fatalf("register article: %v", err)
	}
	if _, err := types.Register(ctx, documents.RegisterTypeRequest{ClassName: "cms.folder"}); err != nil {
		t.Fatalf("register folder: %v", err)
	}
	return f
}

func (f *fixture) insert(t *testing.T, parentID uuid.UUID, alias, culture string) *documents.TreeNode {
	t.Helper()
	tree, err := f.svc.Insert(context.Background(), documents.InsertRequest{
		ParentID:  parentID,
		ClassName: "cms.article",
		Culture:   culture,
		Name:      alias,
		Alias:     alias,
		Fields:    map[string]any{"title": alias + " title"},
	})
	if err != nil {
		t.Fatalf("insert %s: %v", alias, err)
	}
	return tree
}

func (f *fixture) translate(t *testing.T, nodeID uuid.UUID, culture, name string) *documents.TreeNode {
	t.Helper()
	tree, err := f.svc.InsertNewCulture(context.Background(), documents.NewCultureRequest{
		NodeID:  nodeID,
		Culture: culture,
		Name:    name,
		Fields:  map[string]any{"title": name},
	})
	if err != nil {
		t.Fatalf("translate %s to %s: %v", nodeID, culture, err)
	}
	return tree
}

// documentFiles lists the document units of the main site, root excluded.
func (f *fixture) documentFiles(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, file := range testsupport.ListFiles(t, f.dir) {
		if !strings.HasPrefix(file, "cms.document/main/") || strings.HasPrefix(file, "cms.document/main/@root/") {
			continue
		}
		out = append(out, strings.TrimPrefix(file, "cms.document/main/"))
	}
	slices.Sort(out)
	return out
}

func ptr[T any](v T) *T { return &v }
