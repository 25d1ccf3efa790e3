package documents

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goliatone/go-slug"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-cms-ci/internal/query"
)

// JoinPath appends segment to a parent alias or name path.
func JoinPath(parent, segment string) string {
	if parent == "" || parent == RootAliasPath {
		return "/" + segment
	}
	return parent + "/" + segment
}

// ParentPath returns the path of the parent of p; the root is its own parent.
func ParentPath(p string) string {
	idx := strings.LastIndex(p, "/")
	if idx <= 0 {
		return RootAliasPath
	}
	return p[:idx]
}

// IsDescendantPath reports whether p lies strictly beneath ancestor.
// "/a/b/c" is beneath "/a/b"; "/a/bc" is not.
func IsDescendantPath(p, ancestor string) bool {
	if ancestor == RootAliasPath {
		return p != RootAliasPath && strings.HasPrefix(p, "/")
	}
	return strings.HasPrefix(p, ancestor+"/")
}

// descendantPattern is the LIKE pattern (ESCAPE backslash) matching the
// paths strictly beneath p.
func descendantPattern(p string) string {
	if p == RootAliasPath {
		return "/_%"
	}
	return query.EscapeLike(p) + "/%"
}

// NormalizeAlias turns a name or requested alias into a URL segment.
func NormalizeAlias(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrInvalidAlias
	}
	normalized, err := slug.Normalize(value)
	if err != nil {
		return "", fmt.Errorf("documents: normalize alias %q: %w", value, err)
	}
	normalized = strings.Trim(normalized, "/")
	if normalized == "" {
		return "", ErrInvalidAlias
	}
	return normalized, nil
}

// uniqueAlias returns alias, or alias-N, such that no sibling under parentID
// other than exclude uses it.
func uniqueAlias(ctx context.Context, db bun.IDB, siteID, parentID uuid.UUID, alias string, exclude uuid.UUID) (string, error) {
	var taken []string
	err := db.NewSelect().
		Model((*Node)(nil)).
		Column("alias").
		Where("?TableAlias.site_id = ?", siteID).
		Where("?TableAlias.parent_id = ?", parentID).
		Where("?TableAlias.id <> ?", exclude).
		Where("(?TableAlias.alias = ? OR ?TableAlias.alias LIKE ? ESCAPE '\\')", alias, query.EscapeLike(alias)+"-%").
		Scan(ctx, &taken)
	if err != nil {
		return "", fmt.Errorf("documents: sibling aliases: %w", err)
	}

	used := make(map[string]struct{}, len(taken))
	for _, t := range taken {
		used[t] = struct{}{}
	}
	candidate := alias
	for i := 1; ; i++ {
		if _, ok := used[candidate]; !ok {
			return candidate, nil
		}
		candidate = alias + "-" + strconv.Itoa(i)
	}
}

// cascadeAliasPath rewrites the alias path prefix and level of every node
// beneath oldPath on the site.
func cascadeAliasPath(ctx context.Context, db bun.IDB, siteID uuid.UUID, oldPath, newPath string, levelDelta int, now time.Time) error {
	if oldPath == newPath && levelDelta == 0 {
		return nil
	}
	_, err := db.NewUpdate().
		Model((*Node)(nil)).
		Set("alias_path = ? || substr(alias_path, ?)", newPath, utf8.RuneCountInString(oldPath)+1).
		Set("level = level + ?", levelDelta).
		Set("updated_at = ?", now).
		Where("site_id = ?", siteID).
		Where("alias_path LIKE ? ESCAPE '\\'", descendantPattern(oldPath)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("documents: cascade alias path %s -> %s: %w", oldPath, newPath, err)
	}
	return nil
}

// cascadeNamePath rewrites the name path prefix of the culture versions of
// the nodes beneath aliasPath.
func cascadeNamePath(ctx context.Context, db bun.IDB, siteID uuid.UUID, aliasPath, culture, oldPath, newPath string, now time.Time) error {
	if oldPath == newPath || oldPath == "" {
		return nil
	}
	descendants := db.NewSelect().
		Model((*Node)(nil)).
		Column("id").
		Where("?TableAlias.site_id = ?", siteID).
		Where("?TableAlias.alias_path LIKE ? ESCAPE '\\'", descendantPattern(aliasPath))

	_, err := db.NewUpdate().
		Model((*CultureData)(nil)).
		Set("name_path = ? || substr(name_path, ?)", newPath, utf8.RuneCountInString(oldPath)+1).
		Set("updated_at = ?", now).
		Where("culture = ?", culture).
		Where("node_id IN (?)", descendants).
		Where("name_path LIKE ? ESCAPE '\\'", descendantPattern(oldPath)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("documents: cascade name path %s -> %s: %w", oldPath, newPath, err)
	}
	return nil
}

// parentNamePath returns the name path children of parent extend for
// culture, falling back to the default culture version and then to the
// root.
func parentNamePath(ctx context.Context, db bun.IDB, parent *Node, culture, defaultCulture string) (string, error) {
	if parent == nil || parent.AliasPath == RootAliasPath {
		return RootAliasPath, nil
	}
	owner := parent.ID
	if parent.IsLink() {
		owner = *parent.OriginalNodeID
	}
	var paths []string
	err := db.NewSelect().
		Model((*CultureData)(nil)).
		Column("name_path").
		Where("?TableAlias.node_id = ?", owner).
		OrderExpr("CASE WHEN ?TableAlias.culture = ? THEN 0 WHEN ?TableAlias.culture = ? THEN 1 ELSE 2 END", culture, defaultCulture).
		OrderExpr("?TableAlias.culture ASC").
		Limit(1).
		Scan(ctx, &paths)
	if err != nil {
		return "", fmt.Errorf("documents: parent name path: %w", err)
	}
	if len(paths) == 0 {
		return parent.AliasPath, nil
	}
	return paths[0], nil
}
