package documents

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

var models = []any{
	(*Site)(nil),
	(*SiteCulture)(nil),
	(*DocumentType)(nil),
	(*Node)(nil),
	(*CultureData)(nil),
	(*Fields)(nil),
	(*ACL)(nil),
	(*Draft)(nil),
}

type index struct {
	model   any
	name    string
	columns []string
	unique  bool
}

var indexes = []index{
	{(*SiteCulture)(nil), "site_cultures_site_culture_uq", []string{"site_id", "culture"}, true},
	{(*Node)(nil), "document_nodes_site_path_uq", []string{"site_id", "alias_path"}, true},
	{(*Node)(nil), "document_nodes_parent_idx", []string{"parent_id"}, false},
	{(*Node)(nil), "document_nodes_class_idx", []string{"class_id"}, false},
	{(*Node)(nil), "document_nodes_original_idx", []string{"original_node_id"}, false},
	{(*CultureData)(nil), "document_cultures_node_culture_uq", []string{"node_id", "culture"}, true},
	{(*Fields)(nil), "document_fields_class_idx", []string{"class_name"}, false},
	{(*ACL)(nil), "acls_owner_uq", []string{"owner_node_id"}, true},
}

// EnsureSchema creates the document tables and their indexes.
func EnsureSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("documents: create table for %T: %w", model, err)
		}
	}
	for _, idx := range indexes {
		q := db.NewCreateIndex().Model(idx.model).Index(idx.name).Column(idx.columns...).IfNotExists()
		if idx.unique {
			q = q.Unique()
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("documents: create index %s: %w", idx.name, err)
		}
	}
	return nil
}
