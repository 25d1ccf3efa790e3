package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-cache/cache"
	repositorycache "github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-cms-ci/internal/identity"
	"github.com/goliatone/go-cms-ci/internal/query"
)

// Store reads the document tables. Sites and document types go through the
// optional repository cache; tree rows are always read from the database
// because structural updates rewrite them in bulk inside transactions.
type Store struct {
	db           *bun.DB
	sites        repository.Repository[*Site]
	siteCultures repository.Repository[*SiteCulture]
	types        repository.Repository[*DocumentType]
	nodes        repository.Repository[*Node]
	cultures     repository.Repository[*CultureData]
	fields       repository.Repository[*Fields]
	acls         repository.Repository[*ACL]
	drafts       repository.Repository[*Draft]
}

// NewStore builds an uncached store.
func NewStore(db *bun.DB) *Store {
	return NewStoreWithCache(db, nil, nil)
}

// NewStoreWithCache builds a store caching site and document type lookups.
func NewStoreWithCache(db *bun.DB, cacheService cache.CacheService, keySerializer cache.KeySerializer) *Store {
	return &Store{
		db:           db,
		sites:        wrapWithCache(NewSiteRepository(db), cacheService, keySerializer),
		siteCultures: NewSiteCultureRepository(db),
		types:        wrapWithCache(NewDocumentTypeRepository(db), cacheService, keySerializer),
		nodes:        NewNodeRepository(db),
		cultures:     NewCultureDataRepository(db),
		fields:       NewFieldsRepository(db),
		acls:         NewACLRepository(db),
		drafts:       NewDraftRepository(db),
	}
}

// DB exposes the underlying database.
func (s *Store) DB() *bun.DB { return s.db }

func (s *Store) GetSite(ctx context.Context, id uuid.UUID) (*Site, error) {
	site, err := s.sites.GetByID(ctx, id.String())
	if err != nil {
		return nil, mapRepositoryError(err, ErrSiteNotFound, "site", id.String())
	}
	return site, nil
}

func (s *Store) GetSiteByName(ctx context.Context, name string) (*Site, error) {
	name = strings.TrimSpace(name)
	site, err := s.sites.GetByIdentifier(ctx, name)
	if err != nil {
		return nil, mapRepositoryError(err, ErrSiteNotFound, "site", name)
	}
	return site, nil
}

// ListSites returns every site ordered by name.
func (s *Store) ListSites(ctx context.Context) ([]*Site, error) {
	var sites []*Site
	if err := s.db.NewSelect().Model(&sites).OrderExpr("?TableAlias.name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("site repository error: %w", err)
	}
	return sites, nil
}

// SiteCultures returns the culture codes enabled on a site, sorted.
func (s *Store) SiteCultures(ctx context.Context, siteID uuid.UUID) ([]string, error) {
	records, _, err := s.siteCultures.List(ctx, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.site_id = ?", siteID).OrderExpr("?TableAlias.culture ASC")
	}), repository.SelectPaginate(0, 0))
	if err != nil {
		return nil, fmt.Errorf("site culture repository error: %w", err)
	}
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Culture)
	}
	return out, nil
}

// IsMultilingual reports whether more than one culture is enabled on the site.
func (s *Store) IsMultilingual(ctx context.Context, siteID uuid.UUID) (bool, error) {
	cultures, err := s.SiteCultures(ctx, siteID)
	if err != nil {
		return false, err
	}
	return len(cultures) > 1, nil
}

func (s *Store) GetType(ctx context.Context, id uuid.UUID) (*DocumentType, error) {
	record, err := s.types.GetByID(ctx, id.String())
	if err != nil {
		return nil, mapRepositoryError(err, ErrTypeNotFound, "document type", id.String())
	}
	return record, nil
}

func (s *Store) GetTypeByClassName(ctx context.Context, className string) (*DocumentType, error) {
	className = strings.TrimSpace(className)
	record, err := s.types.GetByIdentifier(ctx, className)
	if err != nil {
		return nil, mapRepositoryError(err, ErrTypeNotFound, "document type", className)
	}
	return record, nil
}

func (s *Store) createType(ctx context.Context, record *DocumentType) (*DocumentType, error) {
	created, err := s.types.Create(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("document type repository error: %w", err)
	}
	return created, nil
}

func (s *Store) updateType(ctx context.Context, tx bun.IDB, record *DocumentType) (*DocumentType, error) {
	updated, err := s.types.UpdateTx(ctx, tx, record,
		repository.UpdateByID(record.ID.String()),
		repository.UpdateColumns("display_name", "is_coupled", "fields", "updated_at"),
	)
	if err != nil {
		return nil, fmt.Errorf("document type repository error: %w", err)
	}
	return updated, nil
}

func (s *Store) createSite(ctx context.Context, site *Site) (*Site, error) {
	created, err := s.sites.Create(ctx, site)
	if err != nil {
		return nil, fmt.Errorf("site repository error: %w", err)
	}
	return created, nil
}

func (s *Store) addSiteCulture(ctx context.Context, siteID uuid.UUID, culture string) error {
	record := &SiteCulture{
		ID:      identity.SiteCultureUUID(siteID, culture),
		SiteID:  siteID,
		Culture: culture,
	}
	if _, err := s.siteCultures.Create(ctx, record); err != nil {
		return fmt.Errorf("site culture repository error: %w", err)
	}
	return nil
}

func (s *Store) GetNode(ctx context.Context, id uuid.UUID) (*Node, error) {
	node, err := s.nodes.GetByID(ctx, id.String())
	if err != nil {
		return nil, mapRepositoryError(err, ErrNodeNotFound, "node", id.String())
	}
	return node, nil
}

// FindNodeByAliasPath returns the node at aliasPath on a site.
func (s *Store) FindNodeByAliasPath(ctx context.Context, siteID uuid.UUID, aliasPath string) (*Node, error) {
	records, _, err := s.nodes.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.site_id = ?", siteID).Where("?TableAlias.alias_path = ?", aliasPath)
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, mapRepositoryError(err, ErrNodeNotFound, "node", aliasPath)
	}
	if len(records) == 0 {
		return nil, notFound(ErrNodeNotFound, "node", aliasPath)
	}
	return records[0], nil
}

// ListNodes returns the nodes matching where, ordered by site and alias
// path. Column references in where use the "n" table alias. The query runs
// on bun directly so where may carry subqueries of any size.
func (s *Store) ListNodes(ctx context.Context, where query.Where) ([]*Node, error) {
	var records []*Node
	q := where.Apply(s.db.NewSelect().Model(&records)).
		OrderExpr("?TableAlias.site_id ASC, ?TableAlias.alias_path ASC")
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("node repository error: %w", err)
	}
	return records, nil
}

// ListChildren returns the direct children of a node ordered by position.
func (s *Store) ListChildren(ctx context.Context, parentID uuid.UUID) ([]*Node, error) {
	records, _, err := s.nodes.List(ctx, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.parent_id = ?", parentID).
			OrderExpr("?TableAlias.node_order ASC, ?TableAlias.alias ASC")
	}), repository.SelectPaginate(0, 0))
	if err != nil {
		return nil, fmt.Errorf("node repository error: %w", err)
	}
	return records, nil
}

// GetCulture returns the culture version of a node.
func (s *Store) GetCulture(ctx context.Context, nodeID uuid.UUID, culture string) (*CultureData, error) {
	records, _, err := s.cultures.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.node_id = ?", nodeID).Where("?TableAlias.culture = ?", culture)
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, mapRepositoryError(err, ErrCultureNotFound, "culture version", nodeID.String()+"/"+culture)
	}
	if len(records) == 0 {
		return nil, notFound(ErrCultureNotFound, "culture version", nodeID.String()+"/"+culture)
	}
	return records[0], nil
}

// ListCultures returns every culture version of a node ordered by culture.
func (s *Store) ListCultures(ctx context.Context, nodeID uuid.UUID) ([]*CultureData, error) {
	return s.ListCulturesWhere(ctx, query.Eq("dc.node_id", nodeID))
}

// ListCulturesWhere returns culture versions matching where, ordered by
// node and culture. Column references use the "dc" table alias.
func (s *Store) ListCulturesWhere(ctx context.Context, where query.Where) ([]*CultureData, error) {
	var records []*CultureData
	q := where.Apply(s.db.NewSelect().Model(&records)).
		OrderExpr("?TableAlias.node_id ASC, ?TableAlias.culture ASC")
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("culture repository error: %w", err)
	}
	return records, nil
}

// GetFields returns the coupled row keyed by id for className.
func (s *Store) GetFields(ctx context.Context, id uuid.UUID, className string) (*Fields, error) {
	records, _, err := s.fields.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.id = ?", id).Where("?TableAlias.class_name = ?", className)
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, mapRepositoryError(err, ErrFieldsNotFound, "coupled data", id.String())
	}
	if len(records) == 0 {
		return nil, notFound(ErrFieldsNotFound, "coupled data", className+"/"+id.String())
	}
	return records[0], nil
}

// ListFieldsByClass returns every coupled row of a class.
func (s *Store) ListFieldsByClass(ctx context.Context, className string) ([]*Fields, error) {
	return s.listFieldsByClass(ctx, s.db, className)
}

func (s *Store) listFieldsByClass(ctx context.Context, tx bun.IDB, className string) ([]*Fields, error) {
	records, _, err := s.fields.ListTx(ctx, tx, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.class_name = ?", className)
	}), repository.SelectPaginate(0, 0))
	if err != nil {
		return nil, fmt.Errorf("fields repository error: %w", err)
	}
	return records, nil
}

func (s *Store) GetACL(ctx context.Context, id uuid.UUID) (*ACL, error) {
	record, err := s.acls.GetByID(ctx, id.String())
	if err != nil {
		return nil, mapRepositoryError(err, ErrACLNotFound, "acl", id.String())
	}
	return record, nil
}

// GetDraft returns the pending draft of a culture version.
func (s *Store) GetDraft(ctx context.Context, nodeID uuid.UUID, culture string) (*Draft, error) {
	record, err := s.drafts.GetByID(ctx, identity.CultureVersionUUID(nodeID, culture).String())
	if err != nil {
		return nil, mapRepositoryError(err, ErrDraftNotFound, "draft", nodeID.String()+"/"+culture)
	}
	return record, nil
}

// TreeNode composes the culture version of node. An empty culture selects
// the site default culture version, or the first one alphabetically.
// Links resolve culture and coupled data from the original node and fall
// back the same way when the original lacks the requested culture; standard
// documents report ErrCultureNotFound instead.
func (s *Store) TreeNode(ctx context.Context, node *Node, culture string) (*TreeNode, error) {
	if node == nil {
		return nil, ErrNodeNotFound
	}
	site, err := s.GetSite(ctx, node.SiteID)
	if err != nil {
		return nil, err
	}
	docType, err := s.GetType(ctx, node.ClassID)
	if err != nil {
		return nil, err
	}

	owner := node.ID
	if node.IsLink() {
		owner = *node.OriginalNodeID
	}
	cultureData, err := s.resolveCulture(ctx, owner, identity.CultureCode(culture), site.DefaultCulture, !node.IsLink())
	if err != nil {
		return nil, err
	}

	tree := &TreeNode{Site: site, Type: docType, Node: node, Culture: cultureData}
	if docType.IsCoupled && cultureData.ForeignKeyValue != nil {
		fields, err := s.GetFields(ctx, *cultureData.ForeignKeyValue, docType.ClassName)
		if err != nil {
			return nil, err
		}
		tree.Fields = fields
	}
	if node.ACLID != nil {
		acl, err := s.GetACL(ctx, *node.ACLID)
		if err != nil && !errors.Is(err, ErrACLNotFound) {
			return nil, err
		}
		if acl != nil && acl.OwnerNodeID == node.ID {
			tree.ACL = acl
		}
	}
	return tree, nil
}

func (s *Store) resolveCulture(ctx context.Context, nodeID uuid.UUID, culture, defaultCulture string, strict bool) (*CultureData, error) {
	if culture != "" {
		record, err := s.GetCulture(ctx, nodeID, culture)
		if err == nil || strict || !errors.Is(err, ErrCultureNotFound) {
			return record, err
		}
	}
	records, _, err := s.cultures.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.node_id = ?", nodeID).
				OrderExpr("CASE WHEN ?TableAlias.culture = ? THEN 0 ELSE 1 END", defaultCulture).
				OrderExpr("?TableAlias.culture ASC")
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("culture repository error: %w", err)
	}
	if len(records) == 0 {
		return nil, notFound(ErrCultureNotFound, "culture version", nodeID.String()+"/"+culture)
	}
	return records[0], nil
}

func mapRepositoryError(err error, sentinel error, resource, key string) error {
	if err == nil {
		return nil
	}
	if goerrors.IsCategory(err, repository.CategoryDatabaseNotFound) || errors.Is(err, sql.ErrNoRows) {
		return notFound(sentinel, resource, key)
	}
	return fmt.Errorf("%s repository error: %w", resource, err)
}

func wrapWithCache[T any](base repository.Repository[T], cacheService cache.CacheService, keySerializer cache.KeySerializer) repository.Repository[T] {
	if cacheService == nil || keySerializer == nil {
		return base
	}
	return repositorycache.New(base, cacheService, keySerializer)
}

// CultureVersions returns every culture version of node ordered by culture.
// Links return the culture versions of their original.
func (s *Store) CultureVersions(ctx context.Context, node *Node) ([]*TreeNode, error) {
	if node == nil {
		return nil, ErrNodeNotFound
	}
	owner := node.ID
	if node.IsLink() {
		owner = *node.OriginalNodeID
	}
	records, err := s.ListCultures(ctx, owner)
	if err != nil {
		return nil, err
	}
	out := make([]*TreeNode, 0, len(records))
	for _, record := range records {
		tree, err := s.TreeNode(ctx, node, record.Culture)
		if err != nil {
			return nil, err
		}
		out = append(out, tree)
	}
	return out, nil
}

// ListTypes returns every document type ordered by class name.
func (s *Store) ListTypes(ctx context.Context) ([]*DocumentType, error) {
	var types []*DocumentType
	if err := s.db.NewSelect().Model(&types).OrderExpr("?TableAlias.class_name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("document type repository error: %w", err)
	}
	return types, nil
}
