// Package ci mirrors documents into a file system repository and keeps the
// mirror in step with document lifecycle events.
package ci

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-cms-ci/internal/actionctx"
	"github.com/goliatone/go-cms-ci/internal/documents"
	"github.com/goliatone/go-cms-ci/internal/logging"
	"github.com/goliatone/go-cms-ci/internal/query"
	"github.com/goliatone/go-cms-ci/pkg/interfaces"
)

// Repository writes culture versions to the file system store and tracks
// what it wrote. Every write is skipped while CI serialization is
// suppressed for the context.
type Repository struct {
	store      *documents.Store
	files      *FileSystemStore
	meta       *MetadataStore
	serializer *Serializer
	loader     *TreeNodeLoader
	deps       *DependenciesConditionProvider
	logger     interfaces.Logger
	now        func() time.Time
	storeACLs  bool
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the repository logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the timestamp source of file records.
func WithClock(clock func() time.Time) Option {
	return func(r *Repository) {
		if clock != nil {
			r.now = clock
		}
	}
}

// WithACLs toggles serialization of ACL units.
func WithACLs(enabled bool) Option {
	return func(r *Repository) { r.storeACLs = enabled }
}

// WithSerializer replaces the default serializer.
func WithSerializer(serializer *Serializer) Option {
	return func(r *Repository) {
		if serializer != nil {
			r.serializer = serializer
		}
	}
}

// NewRepository builds the repository for documents in store, mirrored
// into files.
func NewRepository(store *documents.Store, files *FileSystemStore, opts ...Option) *Repository {
	db := store.DB()
	r := &Repository{
		store:     store,
		files:     files,
		meta:      NewMetadataStore(db),
		loader:    NewTreeNodeLoader(store),
		deps:      NewDependenciesConditionProvider(db),
		logger:    logging.NoOp(),
		now:       func() time.Time { return time.Now().UTC() },
		storeACLs: true,
	}
	r.serializer = NewSerializer(DocumentProcessor{}, NewACLProcessor(NewStoreACLResolver(db)))
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Files returns the underlying file system store.
func (r *Repository) Files() *FileSystemStore { return r.files }

// Metadata returns the file record store.
func (r *Repository) Metadata() *MetadataStore { return r.meta }

// Serializer returns the unit serializer.
func (r *Repository) Serializer() *Serializer { return r.serializer }

// StoreDocument writes the culture version tree. When the node moved since
// it was last written, the old unit is removed and every unit nested
// beneath it is written again at its new location. Links to a standard
// document are refreshed with it.
func (r *Repository) StoreDocument(ctx context.Context, tree *documents.TreeNode) error {
	if !actionctx.CISerializationAllowed(ctx) {
		r.logger.Debug("ci.store.suppressed", "node_id", tree.NodeID())
		return nil
	}
	moved, err := r.storeUnits(ctx, tree, false)
	if err != nil {
		return err
	}
	if moved {
		if err := r.StoreDescendants(ctx, tree.Node); err != nil {
			return err
		}
	}
	if tree.IsLink() {
		return nil
	}
	links, err := r.store.ListNodes(ctx, query.Eq("n.original_node_id", tree.NodeID()))
	if err != nil {
		return err
	}
	for _, link := range links {
		linked, err := r.loader.Load(ctx, link, tree.CultureCode())
		if err != nil {
			return err
		}
		if linked.CultureCode() != tree.CultureCode() {
			continue
		}
		if _, err := r.storeUnits(ctx, linked, false); err != nil {
			return err
		}
	}
	return nil
}

// DeleteDocument removes the units of the culture version tree, or of
// every culture version when tree carries no culture data.
func (r *Repository) DeleteDocument(ctx context.Context, tree *documents.TreeNode) error {
	if tree == nil || tree.Node == nil {
		return nil
	}
	if tree.Culture == nil {
		return r.DeleteNodes(ctx, []uuid.UUID{tree.NodeID()})
	}
	return r.DeleteCultures(ctx, tree.NodeID(), []string{tree.CultureCode()})
}

// DeleteCultures removes the units of the given culture versions of a node.
func (r *Repository) DeleteCultures(ctx context.Context, nodeID uuid.UUID, cultures []string) error {
	if !actionctx.CISerializationAllowed(ctx) {
		return nil
	}
	records, err := r.meta.ListByNodes(ctx, []uuid.UUID{nodeID})
	if err != nil {
		return err
	}
	wanted := make(map[string]struct{}, len(cultures))
	for _, c := range cultures {
		wanted[c] = struct{}{}
	}
	for _, record := range records {
		if record.Kind == ObjectACL {
			continue
		}
		if _, ok := wanted[record.Culture]; !ok {
			continue
		}
		if err := r.removeRecord(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// DeleteNodes removes every unit of nodeIDs.
func (r *Repository) DeleteNodes(ctx context.Context, nodeIDs []uuid.UUID) error {
	if !actionctx.CISerializationAllowed(ctx) {
		return nil
	}
	records, err := r.meta.ListByNodes(ctx, nodeIDs)
	if err != nil {
		return err
	}
	for _, record := range records {
		if err := r.removeRecord(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// BulkDelete removes every unit of the nodes matching where.
func (r *Repository) BulkDelete(ctx context.Context, where query.Where) error {
	if !actionctx.CISerializationAllowed(ctx) {
		return nil
	}
	nodes, err := r.store.ListNodes(ctx, where)
	if err != nil {
		return err
	}
	r.logger.Debug("ci.bulk_delete", "nodes", len(nodes))
	return r.DeleteNodes(ctx, nodeIDs(nodes))
}

// BulkScope selects the nodes a bulk update covers.
type BulkScope int

const (
	// BulkMatched covers the nodes matching the condition.
	BulkMatched BulkScope = iota
	// BulkWithDescendants also covers every node nested beneath them.
	BulkWithDescendants
)

// BulkUpdate is a delete-then-reinsert pass over a fixed set of nodes. The
// set is captured by StartBulkUpdate, before the change commits, and
// written again by Finish once it has.
type BulkUpdate struct {
	repo    *Repository
	nodeIDs []uuid.UUID
	done    bool
}

// StartBulkUpdate captures the nodes matching where, and with
// BulkWithDescendants every node nested beneath them.
func (r *Repository) StartBulkUpdate(ctx context.Context, where query.Where, scope BulkScope) (*BulkUpdate, error) {
	if !actionctx.CISerializationAllowed(ctx) {
		return &BulkUpdate{repo: r, done: true}, nil
	}
	selection := where
	if scope == BulkWithDescendants {
		nested, err := r.deps.Condition(ctx, where, "n.alias_path")
		if err != nil {
			return nil, err
		}
		selection = query.Or(where, nested)
	}
	nodes, err := r.store.ListNodes(ctx, selection)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("ci.bulk_update.started", "nodes", len(nodes))
	return &BulkUpdate{repo: r, nodeIDs: nodeIDs(nodes)}, nil
}

// Nodes returns the captured node IDs.
func (b *BulkUpdate) Nodes() []uuid.UUID { return b.nodeIDs }

// Finish removes the recorded units of the captured nodes and writes every
// culture version of those still present. Later calls do nothing.
func (b *BulkUpdate) Finish(ctx context.Context) error {
	if b == nil || b.done {
		return nil
	}
	b.done = true
	r := b.repo
	if len(b.nodeIDs) == 0 || !actionctx.CISerializationAllowed(ctx) {
		return nil
	}
	if err := r.DeleteNodes(ctx, b.nodeIDs); err != nil {
		return err
	}
	nodes, err := r.store.ListNodes(ctx, query.In("n.id", b.nodeIDs))
	if err != nil {
		return err
	}
	units := 0
	for _, node := range nodes {
		written, err := r.storeNode(ctx, node)
		if err != nil {
			return err
		}
		units += written
	}
	r.logger.Debug("ci.bulk_update.finished", "nodes", len(nodes), "units", units)
	return nil
}

// storeNode writes every culture version of node and reports how many
// units it wrote.
func (r *Repository) storeNode(ctx context.Context, node *documents.Node) (int, error) {
	trees, err := r.loader.Cultures(ctx, node)
	if err != nil {
		return 0, err
	}
	for _, tree := range trees {
		if _, err := r.storeUnits(ctx, tree, false); err != nil {
			return 0, err
		}
	}
	return len(trees), nil
}

// StoreDescendants writes every culture version nested beneath node.
// Units whose content did not change are left alone.
func (r *Repository) StoreDescendants(ctx context.Context, node *documents.Node) error {
	if !actionctx.CISerializationAllowed(ctx) {
		return nil
	}
	nested, err := r.deps.Condition(ctx, query.Eq("n.id", node.ID), "n.alias_path")
	if err != nil {
		return err
	}
	descendants, err := r.store.ListNodes(ctx, query.And(query.Eq("n.site_id", node.SiteID), nested))
	if err != nil {
		return err
	}
	for _, d := range descendants {
		if _, err := r.storeNode(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// storeUnits writes the document unit of tree, and its ACL unit when the
// node owns one. Unless force is set, units whose content matches their
// record are left alone. It reports whether the document unit changed
// location.
func (r *Repository) storeUnits(ctx context.Context, tree *documents.TreeNode, force bool) (bool, error) {
	data, err := r.serializer.SerializeDocument(ctx, tree)
	if err != nil {
		return false, err
	}
	moved, err := r.writeUnit(ctx, &FileRecord{
		ID:       RecordID(ObjectCulture, tree.NodeID(), tree.CultureCode()),
		Kind:     ObjectCulture,
		SiteID:   tree.Node.SiteID,
		NodeID:   tree.NodeID(),
		Culture:  tree.CultureCode(),
		Location: DocumentLocation(tree.SiteName(), tree.AliasPath(), tree.CultureCode()),
	}, data, force)
	if err != nil {
		return false, err
	}
	if !r.storeACLs || tree.ACL == nil {
		return moved, nil
	}
	aclData, err := r.serializer.SerializeACL(ctx, tree)
	if err != nil {
		return false, err
	}
	if _, err := r.writeUnit(ctx, &FileRecord{
		ID:       RecordID(ObjectACL, tree.NodeID(), ""),
		Kind:     ObjectACL,
		SiteID:   tree.Node.SiteID,
		NodeID:   tree.NodeID(),
		Location: ACLLocation(tree.SiteName(), tree.AliasPath()),
	}, aclData, force); err != nil {
		return false, err
	}
	return moved, nil
}

func (r *Repository) writeUnit(ctx context.Context, record *FileRecord, data []byte, force bool) (bool, error) {
	record.Hash = Hash(data)
	record.UpdatedAt = r.now()

	previous, err := r.meta.Get(ctx, record.ID)
	if err != nil {
		return false, err
	}
	moved := previous != nil && previous.Location != record.Location
	if previous != nil && !moved && !force && previous.Hash == record.Hash {
		return false, nil
	}
	if moved {
		if err := r.files.Remove(ctx, previous.Location); err != nil {
			return false, err
		}
	}
	occupant, err := r.meta.ByLocation(ctx, record.Location)
	if err != nil {
		return false, err
	}
	if occupant != nil && occupant.ID != record.ID {
		if err := r.meta.Delete(ctx, occupant); err != nil {
			return false, err
		}
	}
	if err := r.files.Write(ctx, record.Location, data); err != nil {
		return false, err
	}
	if err := r.meta.Save(ctx, record); err != nil {
		return false, err
	}
	logging.WithUnit(r.logger, string(record.Kind), record.Location).Debug("ci.unit.written", "moved", moved)
	return moved, nil
}

func (r *Repository) removeRecord(ctx context.Context, record *FileRecord) error {
	if err := r.files.Remove(ctx, record.Location); err != nil {
		return err
	}
	if err := r.meta.Delete(ctx, record); err != nil {
		return err
	}
	logging.WithUnit(r.logger, string(record.Kind), record.Location).Debug("ci.unit.removed")
	return nil
}

// StoreAllResult counts the work of a full rebuild.
type StoreAllResult struct {
	Nodes   int
	Units   int
	Removed int
}

// StoreAll writes every culture version of a site, or of every site for an
// empty siteName, and removes units no document backs any more.
func (r *Repository) StoreAll(ctx context.Context, siteName string) (StoreAllResult, error) {
	var result StoreAllResult
	if !actionctx.CISerializationAllowed(ctx) {
		return result, nil
	}
	sites, err := r.sites(ctx, siteName)
	if err != nil {
		return result, err
	}
	for _, site := range sites {
		nodes, err := r.store.ListNodes(ctx, query.Eq("n.site_id", site.ID))
		if err != nil {
			return result, err
		}
		kept := map[uuid.UUID]struct{}{}
		for _, node := range nodes {
			trees, err := r.loader.Cultures(ctx, node)
			if err != nil {
				return result, err
			}
			for _, tree := range trees {
				if _, err := r.storeUnits(ctx, tree, true); err != nil {
					return result, err
				}
				kept[RecordID(ObjectCulture, node.ID, tree.CultureCode())] = struct{}{}
				if r.storeACLs && tree.ACL != nil {
					kept[RecordID(ObjectACL, node.ID, "")] = struct{}{}
				}
			}
			result.Nodes++
			result.Units += len(trees)
		}

		records, err := r.meta.ListBySite(ctx, site.ID)
		if err != nil {
			return result, err
		}
		for _, record := range records {
			if _, ok := kept[record.ID]; ok {
				continue
			}
			if err := r.removeRecord(ctx, record); err != nil {
				return result, err
			}
			result.Removed++
		}
		removed, err := r.removeUntracked(ctx, site.Name)
		if err != nil {
			return result, err
		}
		result.Removed += removed
	}
	r.logger.Info("ci.store_all.completed", "site", siteName, "nodes", result.Nodes, "units", result.Units, "removed", result.Removed)
	return result, nil
}

// removeUntracked deletes unit files of a site that no record points to.
func (r *Repository) removeUntracked(ctx context.Context, siteName string) (int, error) {
	removed := 0
	for _, prefix := range []string{documentsDir + "/" + siteName, aclsDir + "/" + siteName} {
		locations, err := r.files.List(ctx, prefix)
		if err != nil {
			return removed, err
		}
		for _, location := range locations {
			record, err := r.meta.ByLocation(ctx, location)
			if err != nil {
				return removed, err
			}
			if record != nil {
				continue
			}
			if err := r.files.Remove(ctx, location); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

func (r *Repository) sites(ctx context.Context, siteName string) ([]*documents.Site, error) {
	if siteName == "" {
		return r.store.ListSites(ctx)
	}
	site, err := r.store.GetSiteByName(ctx, siteName)
	if err != nil {
		if errors.Is(err, documents.ErrSiteNotFound) {
			return nil, fmt.Errorf("ci: %w: %s", documents.ErrSiteNotFound, siteName)
		}
		return nil, err
	}
	return []*documents.Site{site}, nil
}

func nodeIDs(nodes []*documents.Node) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids
}
