package documents_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-cms-ci/internal/documents"
	"github.com/goliatone/go-cms-ci/internal/staging"
	"github.com/goliatone/go-cms-ci/pkg/testsupport"
)

type fixture struct {
	svc   *documents.Service
	store *documents.Store
	root  *documents.TreeNode
	tasks []*staging.Task
}

func newFixture(t *testing.T, cultures ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	db := testsupport.NewBunDB(t)
	if err := documents.EnsureSchema(ctx, db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	f := &fixture{store: documents.NewStore(db)}
	evts := documents.NewEvents()
	evts.TaskCollectionCompleted.After(func(_ context.Context, args *staging.TaskCollectionArgs) error {
		f.tasks = append(f.tasks, args.Tasks...)
		return nil
	})
	clock := time.Date(2025, 2, 3, 10, 30, 0, 0, time.UTC)
	f.svc = documents.NewService(f.store, evts, documents.WithClock(func() time.Time { return clock }))

	if len(cultures) == 0 {
		cultures = []string{"en-US"}
	}
	root, err := f.svc.CreateSite(ctx, documents.CreateSiteRequest{
		Name:           "main",
		DisplayName:    "Main site",
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
	f.tasks = nil
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
		Fields:    map[string]any{"title": alias + " title", "body": "text"},
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

func ptr[T any](v T) *T { return &v }
