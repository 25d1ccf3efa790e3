package ci

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-cms-ci/internal/documents"
)

// ComponentSource resolves the culture version parts a node owns itself.
type ComponentSource interface {
	CultureData(ctx context.Context, node *documents.Node, culture string) (*documents.CultureData, error)
	CoupledData(ctx context.Context, docType *documents.DocumentType, culture *documents.CultureData) (*documents.Fields, error)
}

// StoreSource reads culture versions straight from the document store.
type StoreSource struct {
	store *documents.Store
}

// NewStoreSource returns the base ComponentSource over store.
func NewStoreSource(store *documents.Store) *StoreSource {
	return &StoreSource{store: store}
}

func (s *StoreSource) CultureData(ctx context.Context, node *documents.Node, culture string) (*documents.CultureData, error) {
	if culture == "" {
		site, err := s.store.GetSite(ctx, node.SiteID)
		if err != nil {
			return nil, err
		}
		culture = site.DefaultCulture
	}
	return s.store.GetCulture(ctx, node.ID, culture)
}

// CoupledData has nothing to return for a culture version without a
// foreign key.
func (s *StoreSource) CoupledData(context.Context, *documents.DocumentType, *documents.CultureData) (*documents.Fields, error) {
	return nil, nil
}

// ComponentsDataLoader supplies the culture data and the coupled data of
// one node. Links resolve both from their original node, since they own
// neither.
type ComponentsDataLoader struct {
	db      bun.IDB
	node    *documents.Node
	site    *documents.Site
	docType *documents.DocumentType
	culture string
	base    ComponentSource
}

// NewComponentsDataLoader returns a loader for the culture version culture
// of node. An empty culture picks the site default culture.
func NewComponentsDataLoader(db bun.IDB, node *documents.Node, site *documents.Site, docType *documents.DocumentType, culture string, base ComponentSource) *ComponentsDataLoader {
	return &ComponentsDataLoader{
		db:      db,
		node:    node,
		site:    site,
		docType: docType,
		culture: culture,
		base:    base,
	}
}

// LoadCultureData returns the culture version of the node. For a link it
// returns the original's version in the requested culture, else in the
// site default culture, else the first alphabetically.
func (l *ComponentsDataLoader) LoadCultureData(ctx context.Context) (*documents.CultureData, error) {
	if !l.node.IsLink() {
		return l.base.CultureData(ctx, l.node, l.culture)
	}

	var records []*documents.CultureData
	err := l.db.NewSelect().
		Model(&records).
		Where("?TableAlias.node_id = ?", *l.node.OriginalNodeID).
		OrderExpr("CASE WHEN ?TableAlias.culture = ? THEN 0 WHEN ?TableAlias.culture = ? THEN 1 ELSE 2 END", l.culture, l.site.DefaultCulture).
		OrderExpr("?TableAlias.culture ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("ci: load link culture data: %w", err)
	}
	if len(records) == 0 {
		return nil, documents.InvalidOperation("link %s points to node %s which has no culture data", l.node.AliasPath, l.node.OriginalNodeID)
	}
	return records[0], nil
}

// LoadCoupledData returns the coupled row of culture. Documents of a type
// that is not coupled never have one.
func (l *ComponentsDataLoader) LoadCoupledData(ctx context.Context, culture *documents.CultureData) (*documents.Fields, error) {
	if l.docType == nil || !l.docType.IsCoupled {
		return nil, nil
	}
	if culture == nil || culture.ForeignKeyValue == nil {
		return l.base.CoupledData(ctx, l.docType, culture)
	}

	var records []*documents.Fields
	err := l.db.NewSelect().
		Model(&records).
		Where("?TableAlias.id = ?", *culture.ForeignKeyValue).
		Where("?TableAlias.class_name = ?", l.docType.ClassName).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("ci: load coupled data: %w", err)
	}
	if len(records) == 0 {
		return nil, documents.InvalidOperation("coupled data %s of class %s is missing for %s", culture.ForeignKeyValue, l.docType.ClassName, l.node.AliasPath)
	}
	return records[0], nil
}

// TreeNodeLoader composes TreeNodes for serialization through
// ComponentsDataLoader.
type TreeNodeLoader struct {
	store *documents.Store
	base  ComponentSource
}

// NewTreeNodeLoader returns a loader reading through store.
func NewTreeNodeLoader(store *documents.Store) *TreeNodeLoader {
	return &TreeNodeLoader{store: store, base: NewStoreSource(store)}
}

// Load returns the culture version culture of node.
func (l *TreeNodeLoader) Load(ctx context.Context, node *documents.Node, culture string) (*documents.TreeNode, error) {
	site, err := l.store.GetSite(ctx, node.SiteID)
	if err != nil {
		return nil, err
	}
	docType, err := l.store.GetType(ctx, node.ClassID)
	if err != nil {
		return nil, err
	}
	loader := NewComponentsDataLoader(l.store.DB(), node, site, docType, culture, l.base)
	cultureData, err := loader.LoadCultureData(ctx)
	if err != nil {
		return nil, err
	}
	fields, err := loader.LoadCoupledData(ctx, cultureData)
	if err != nil {
		return nil, err
	}

	tree := &documents.TreeNode{Site: site, Type: docType, Node: node, Culture: cultureData, Fields: fields}
	if node.ACLID != nil {
		acl, err := l.store.GetACL(ctx, *node.ACLID)
		if err != nil && !errors.Is(err, documents.ErrACLNotFound) {
			return nil, err
		}
		if acl != nil && acl.OwnerNodeID == node.ID {
			tree.ACL = acl
		}
	}
	return tree, nil
}

// Cultures returns every culture version of node as the repository stores
// them. Links carry one version per culture of their original.
func (l *TreeNodeLoader) Cultures(ctx context.Context, node *documents.Node) ([]*documents.TreeNode, error) {
	owner := node.ID
	if node.IsLink() {
		owner = *node.OriginalNodeID
	}
	records, err := l.store.ListCultures(ctx, owner)
	if err != nil {
		return nil, err
	}
	out := make([]*documents.TreeNode, 0, len(records))
	for _, record := range records {
		tree, err := l.Load(ctx, node, record.Culture)
		if err != nil {
			return nil, err
		}
		out = append(out, tree)
	}
	return out, nil
}
