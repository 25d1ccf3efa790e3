package ci_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-cms-ci/internal/ci"
	"github.com/goliatone/go-cms-ci/internal/documents"
	"github.com/goliatone/go-cms-ci/internal/query"
	"github.com/goliatone/go-cms-ci/pkg/testsupport"
)

func seedPaths(t *testing.T, db *bun.DB, siteID uuid.UUID, paths ...string) map[string]uuid.UUID {
	t.Helper()
	ctx := context.Background()
	ids := map[string]uuid.UUID{}
	for _, p := range paths {
		node := &documents.Node{
			ID:        uuid.New(),
			SiteID:    siteID,
			ClassID:   uuid.New(),
			AliasPath: p,
		}
		if _, err := db.NewInsert().Model(node).Exec(ctx); err != nil {
			t.Fatalf("insert %s: %v", p, err)
		}
		ids[p] = node.ID
	}
	return ids
}

func descendantPaths(t *testing.T, db *bun.DB, changed query.Where) []string {
	t.Helper()
	ctx := context.Background()
	cond, err := ci.NewDependenciesConditionProvider(db).Condition(ctx, changed, "n.alias_path")
	if err != nil {
		t.Fatalf("condition: %v", err)
	}
	nodes, err := documents.NewStore(db).ListNodes(ctx, cond)
	if err != nil {
		t.Fatalf("list nodes: %v", err)
	}
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.AliasPath)
	}
	return out
}

func newPathsDB(t *testing.T) *bun.DB {
	t.Helper()
	db := testsupport.NewBunDB(t)
	if err := documents.EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return db
}

func TestDependenciesMatchAtSegmentBoundary(t *testing.T) {
	db := newPathsDB(t)
	site := uuid.New()
	ids := seedPaths(t, db, site, "/", "/a", "/a/b", "/a/b/c", "/a/b/c/d", "/a/bc", "/a/bc/x")

	got := descendantPaths(t, db, query.Eq("n.id", ids["/a/b"]))
	if diff := cmp.Diff([]string{"/a/b/c", "/a/b/c/d"}, got); diff != "" {
		t.Fatalf("descendants mismatch (-want +got):\n%s", diff)
	}
}

func TestDependenciesTreatWildcardsLiterally(t *testing.T) {
	db := newPathsDB(t)
	site := uuid.New()
	ids := seedPaths(t, db, site, "/a_b", "/a_b/x", "/axb", "/axb/y", "/100%", "/100%/z", "/1000/w")

	if diff := cmp.Diff([]string{"/a_b/x"}, descendantPaths(t, db, query.Eq("n.id", ids["/a_b"]))); diff != "" {
		t.Fatalf("underscore descendants mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/100%/z"}, descendantPaths(t, db, query.Eq("n.id", ids["/100%"]))); diff != "" {
		t.Fatalf("percent descendants mismatch (-want +got):\n%s", diff)
	}
}

func TestDependenciesOfRootCoverTheSite(t *testing.T) {
	db := newPathsDB(t)
	site, other := uuid.New(), uuid.New()
	ids := seedPaths(t, db, site, "/", "/a", "/a/b")
	seedPaths(t, db, other, "/", "/elsewhere")

	got := descendantPaths(t, db, query.Eq("n.id", ids["/"]))
	if diff := cmp.Diff([]string{"/a", "/a/b"}, got); diff != "" {
		t.Fatalf("descendants mismatch (-want +got):\n%s", diff)
	}
}

func TestDependenciesRequireChangedSet(t *testing.T) {
	db := newPathsDB(t)
	if _, err := ci.NewDependenciesConditionProvider(db).Condition(context.Background(), query.Where{}, "n.alias_path"); err == nil {
		t.Fatal("expected an error for an empty changed set")
	}
}
