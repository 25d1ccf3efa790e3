package ci

import (
	"context"
	"errors"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-cms-ci/internal/documents"
	"github.com/goliatone/go-cms-ci/internal/query"
)

// DependenciesConditionProvider finds the documents nested beneath a set of
// changed documents, so a rename or move reaches every descendant.
type DependenciesConditionProvider struct {
	db bun.IDB
}

// NewDependenciesConditionProvider returns a provider querying db.
func NewDependenciesConditionProvider(db bun.IDB) *DependenciesConditionProvider {
	return &DependenciesConditionProvider{db: db}
}

// Condition returns a fragment matching pathColumn against the alias path
// of every node on the same site strictly beneath a node matched by
// changed. Column references in changed use the "n" table alias. The prefix
// match stops at a "/" boundary and treats "%" and "_" literally.
func (p *DependenciesConditionProvider) Condition(ctx context.Context, changed query.Where, pathColumn string) (query.Where, error) {
	if err := ctx.Err(); err != nil {
		return query.Where{}, err
	}
	if changed.IsEmpty() {
		return query.Where{}, errors.New("ci: dependency condition needs a changed set")
	}

	filtered := changed.Apply(p.db.NewSelect().
		Model((*documents.Node)(nil)).
		ColumnExpr("?TableAlias.alias_path AS path").
		ColumnExpr("?TableAlias.site_id AS site_id"))

	all := p.db.NewSelect().
		Model((*documents.Node)(nil)).
		ColumnExpr("?TableAlias.alias_path AS path").
		ColumnExpr("?TableAlias.site_id AS site_id")

	nested := p.db.NewSelect().
		With("filtered_paths", filtered).
		With("all_paths", all).
		TableExpr("all_paths AS ap").
		Join("JOIN filtered_paths AS fp ON fp.site_id = ap.site_id").
		ColumnExpr("ap.path").
		Where("ap.path LIKE (CASE WHEN fp.path = ? THEN ? ELSE "+
			"REPLACE(REPLACE(REPLACE(fp.path, ?, ?), ?, ?), ?, ?) || ? END) ESCAPE ?",
			documents.RootAliasPath, "/_%",
			`\`, `\\`, `%`, `\%`, `_`, `\_`, "/%",
			`\`,
		)

	return query.In(pathColumn, nested), nil
}
