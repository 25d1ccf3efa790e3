package documents

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-cms-ci/internal/identity"
	"github.com/goliatone/go-cms-ci/internal/logging"
	"github.com/goliatone/go-cms-ci/internal/staging"
	"github.com/goliatone/go-cms-ci/pkg/interfaces"
)

// Service is the document API. Every mutation runs through the matching
// lifecycle event so subscribers see the before and after state.
type Service struct {
	store  *Store
	events *Events
	logger interfaces.Logger
	now    func() time.Time
	id     func() uuid.UUID
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger interfaces.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithIDGenerator overrides the generator used for node and coupled row IDs.
func WithIDGenerator(generator func() uuid.UUID) ServiceOption {
	return func(s *Service) {
		if generator != nil {
			s.id = generator
		}
	}
}

// NewService builds the document API over store, raising evts.
func NewService(store *Store, evts *Events, opts ...ServiceOption) *Service {
	if evts == nil {
		evts = NewEvents()
	}
	s := &Service{
		store:  store,
		events: evts,
		logger: logging.NoOp(),
		now:    func() time.Time { return time.Now().UTC() },
		id:     uuid.New,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Events returns the lifecycle handlers the service raises.
func (s *Service) Events() *Events { return s.events }

// Store returns the read side of the service.
func (s *Service) Store() *Store { return s.store }

func (s *Service) ready() error {
	if s == nil {
		return ErrServiceUnavailable
	}
	if s.store == nil || s.store.db == nil {
		return ErrStoreUnavailable
	}
	return nil
}

// CreateSite creates a site, enables its cultures and inserts the root node.
func (s *Service) CreateSite(ctx context.Context, req CreateSiteRequest) (*TreeNode, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if _, err := s.store.GetSiteByName(ctx, name); err == nil {
		return nil, ErrSiteExists
	} else if !errors.Is(err, ErrSiteNotFound) {
		return nil, err
	}

	rootType, err := s.ensureRootType(ctx)
	if err != nil {
		return nil, err
	}

	defaultCulture := identity.CultureCode(req.DefaultCulture)
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = name
	}
	now := s.now()
	site, err := s.store.createSite(ctx, &Site{
		ID:             identity.SiteUUID(name),
		Name:           name,
		DisplayName:    displayName,
		DefaultCulture: defaultCulture,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return nil, err
	}

	cultures := []string{defaultCulture}
	for _, code := range req.Cultures {
		code = identity.CultureCode(code)
		if code != "" && !slices.Contains(cultures, code) {
			cultures = append(cultures, code)
		}
	}
	for _, code := range cultures {
		if err := s.store.addSiteCulture(ctx, site.ID, code); err != nil {
			return nil, err
		}
	}

	node := &Node{
		ID:        s.id(),
		SiteID:    site.ID,
		ClassID:   rootType.ID,
		AliasPath: RootAliasPath,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tree := &TreeNode{
		Site:    site,
		Type:    rootType,
		Node:    node,
		Culture: s.newCulture(node.ID, defaultCulture, displayName, RootAliasPath, now),
	}
	if err := s.commitInsert(ctx, tree); err != nil {
		return nil, err
	}

	s.logger.Info("documents.site.created", "site", site.Name, "cultures", strings.Join(cultures, ","))
	return tree, s.completeTasks(ctx, staging.NewTask(staging.TaskCreateDocument, site.ID, node.ID, defaultCulture, RootAliasPath))
}

// AddSiteCulture enables culture on a site. Enabling an enabled culture is a no-op.
func (s *Service) AddSiteCulture(ctx context.Context, siteID uuid.UUID, culture string) error {
	if err := s.ready(); err != nil {
		return err
	}
	culture = identity.CultureCode(culture)
	if culture == "" {
		return fmt.Errorf("documents: culture is required")
	}
	if _, err := s.store.GetSite(ctx, siteID); err != nil {
		return err
	}
	enabled, err := s.store.SiteCultures(ctx, siteID)
	if err != nil {
		return err
	}
	if slices.Contains(enabled, culture) {
		return nil
	}
	return s.store.addSiteCulture(ctx, siteID, culture)
}

func (s *Service) ensureRootType(ctx context.Context) (*DocumentType, error) {
	record, err := s.store.GetTypeByClassName(ctx, RootClassName)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, ErrTypeNotFound) {
		return nil, err
	}
	now := s.now()
	return s.store.createType(ctx, &DocumentType{
		ID:          identity.DocumentTypeUUID(RootClassName),
		ClassName:   RootClassName,
		DisplayName: "Root",
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// Insert creates a node under req.ParentID together with its first culture
// version.
func (s *Service) Insert(ctx context.Context, req InsertRequest) (*TreeNode, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	parent, err := s.store.GetNode(ctx, req.ParentID)
	if err != nil {
		return nil, err
	}
	site, err := s.store.GetSite(ctx, parent.SiteID)
	if err != nil {
		return nil, err
	}
	docType, err := s.store.GetTypeByClassName(ctx, req.ClassName)
	if err != nil {
		return nil, err
	}
	culture, err := s.enabledCulture(ctx, site, req.Culture)
	if err != nil {
		return nil, err
	}
	values, err := prepareFields(docType, nil, req.Fields)
	if err != nil {
		return nil, err
	}

	aliasSource := req.Alias
	if strings.TrimSpace(aliasSource) == "" {
		aliasSource = req.Name
	}
	alias, err := NormalizeAlias(aliasSource)
	if err != nil {
		return nil, err
	}
	db := s.store.db
	if alias, err = uniqueAlias(ctx, db, site.ID, parent.ID, alias, uuid.Nil); err != nil {
		return nil, err
	}
	prefix, err := parentNamePath(ctx, db, parent, culture, site.DefaultCulture)
	if err != nil {
		return nil, err
	}

	now := s.now()
	parentID := parent.ID
	node := &Node{
		ID:        s.id(),
		SiteID:    site.ID,
		ParentID:  &parentID,
		ClassID:   docType.ID,
		Alias:     alias,
		AliasPath: JoinPath(parent.AliasPath, alias),
		Level:     parent.Level + 1,
		Order:     req.Order,
		ACLID:     parent.ACLID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	name := strings.TrimSpace(req.Name)
	tree := &TreeNode{
		Site:    site,
		Type:    docType,
		Node:    node,
		Culture: s.newCulture(node.ID, culture, name, JoinPath(prefix, nameSegment(name)), now),
	}
	if docType.IsCoupled {
		tree.Fields = s.newFields(docType.ClassName, values, now)
		tree.Culture.ForeignKeyValue = &tree.Fields.ID
	}

	if err := s.commitInsert(ctx, tree); err != nil {
		return nil, err
	}

	logging.WithDocumentContext(s.logger, node.ID, culture, node.AliasPath).Debug("documents.insert.completed", "class_name", docType.ClassName)
	return tree, s.completeTasks(ctx, staging.NewTask(staging.TaskCreateDocument, site.ID, node.ID, culture, node.AliasPath))
}

func (s *Service) commitInsert(ctx context.Context, tree *TreeNode) error {
	args := &InsertArgs{Node: tree}
	return s.events.Insert.Invoke(ctx, args, func(ctx context.Context) error {
		return s.store.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.NewInsert().Model(tree.Node).Exec(ctx); err != nil {
				return fmt.Errorf("insert node: %w", err)
			}
			return insertCultureVersion(ctx, tx, tree)
		})
	})
}

func insertCultureVersion(ctx context.Context, db bun.IDB, tree *TreeNode) error {
	if tree.Fields != nil {
		if _, err := db.NewInsert().Model(tree.Fields).Exec(ctx); err != nil {
			return fmt.Errorf("insert coupled data: %w", err)
		}
	}
	if _, err := db.NewInsert().Model(tree.Culture).Exec(ctx); err != nil {
		return fmt.Errorf("insert culture version: %w", err)
	}
	return nil
}

// Update changes the culture version req.Culture of a node: its name and
// fields, and the node alias, parent and order shared by every culture.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (*TreeNode, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	node, err := s.store.GetNode(ctx, req.NodeID)
	if err != nil {
		return nil, err
	}
	previous, err := s.store.TreeNode(ctx, node, req.Culture)
	if err != nil {
		return nil, err
	}
	site := previous.Site
	isRoot := node.ParentID == nil
	if isRoot && (req.Alias != nil || req.ParentID != nil) {
		return nil, ErrRootImmutable
	}
	if node.IsLink() && (req.Name != nil || req.Fields != nil) {
		return nil, InvalidOperation("link %s does not own culture data", node.AliasPath)
	}

	updated := previous.Clone()
	now := s.now()
	db := s.store.db

	var parent *Node
	if !isRoot {
		if parent, err = s.store.GetNode(ctx, *node.ParentID); err != nil {
			return nil, err
		}
	}
	parentChanged := false
	if req.ParentID != nil && *req.ParentID != parent.ID {
		target, err := s.store.GetNode(ctx, *req.ParentID)
		if err != nil {
			return nil, err
		}
		if target.SiteID != node.SiteID {
			return nil, ErrCrossSiteMove
		}
		if target.ID == node.ID || IsDescendantPath(target.AliasPath, node.AliasPath) {
			return nil, ErrMoveUnderDescendant
		}
		parent = target
		parentChanged = true
	}

	alias := node.Alias
	if req.Alias != nil {
		if alias, err = NormalizeAlias(*req.Alias); err != nil {
			return nil, err
		}
	}
	if !isRoot && (parentChanged || alias != node.Alias) {
		if alias, err = uniqueAlias(ctx, db, site.ID, parent.ID, alias, node.ID); err != nil {
			return nil, err
		}
		parentID := parent.ID
		updated.Node.ParentID = &parentID
		updated.Node.Alias = alias
		updated.Node.AliasPath = JoinPath(parent.AliasPath, alias)
		updated.Node.Level = parent.Level + 1
		if parentChanged && previous.ACL == nil {
			updated.Node.ACLID = parent.ACLID
		}
	}
	if req.Order != nil {
		updated.Node.Order = *req.Order
	}
	updated.Node.UpdatedAt = now

	if !node.IsLink() {
		if req.Name != nil {
			updated.Culture.Name = strings.TrimSpace(*req.Name)
		}
		if !isRoot && (parentChanged || req.Name != nil) {
			prefix, err := parentNamePath(ctx, db, parent, updated.CultureCode(), site.DefaultCulture)
			if err != nil {
				return nil, err
			}
			updated.Culture.NamePath = JoinPath(prefix, nameSegment(updated.Culture.Name))
		}
		updated.Culture.UpdatedAt = now
		if req.publish {
			published := now
			updated.Culture.WorkflowStep = WorkflowStepPublished
			updated.Culture.Published = true
			updated.Culture.PublishedAt = &published
		}
		if req.Fields != nil && updated.Fields != nil {
			values, err := prepareFields(updated.Type, updated.Fields.Values, req.Fields)
			if err != nil {
				return nil, err
			}
			updated.Fields.Values = values
			updated.Fields.UpdatedAt = now
		}
	}

	args := &UpdateArgs{Node: updated, Previous: previous}
	err = s.events.Update.Invoke(ctx, args, func(ctx context.Context) error {
		return s.store.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			return s.applyUpdate(ctx, tx, previous, updated, parent, parentChanged, now)
		})
	})
	if err != nil {
		return nil, err
	}

	kind := staging.TaskUpdateDocument
	if parentChanged {
		kind = staging.TaskMoveDocument
	}
	logging.WithDocumentContext(s.logger, node.ID, updated.CultureCode(), updated.AliasPath()).Debug("documents.update.completed",
		"parent_changed", parentChanged,
		"alias_changed", args.AliasChanged(),
	)
	return updated, s.completeTasks(ctx, staging.NewTask(kind, site.ID, node.ID, updated.CultureCode(), updated.AliasPath()))
}

func (s *Service) applyUpdate(ctx context.Context, tx bun.IDB, previous, updated *TreeNode, parent *Node, parentChanged bool, now time.Time) error {
	if _, err := tx.NewUpdate().
		Model(updated.Node).
		Column("parent_id", "alias", "alias_path", "level", "node_order", "acl_id", "updated_at").
		WherePK().
		Exec(ctx); err != nil {
		return fmt.Errorf("update node: %w", err)
	}
	siteID := updated.Node.SiteID
	levelDelta := updated.Node.Level - previous.Node.Level
	if err := cascadeAliasPath(ctx, tx, siteID, previous.AliasPath(), updated.AliasPath(), levelDelta, now); err != nil {
		return err
	}
	if parentChanged {
		if err := s.rebindACL(ctx, tx, previous, updated, parent, now); err != nil {
			return err
		}
	}
	if updated.IsLink() {
		return nil
	}

	if parentChanged {
		// Every culture version hangs under the new parent name path.
		var cultures []*CultureData
		if err := tx.NewSelect().Model(&cultures).Where("?TableAlias.node_id = ?", updated.NodeID()).Scan(ctx); err != nil {
			return fmt.Errorf("list culture versions: %w", err)
		}
		for _, record := range cultures {
			target := record
			if record.Culture == updated.CultureCode() {
				target = updated.Culture
			} else {
				prefix, err := parentNamePath(ctx, tx, parent, record.Culture, updated.Site.DefaultCulture)
				if err != nil {
					return err
				}
				copied := *record
				copied.NamePath = JoinPath(prefix, nameSegment(record.Name))
				copied.UpdatedAt = now
				target = &copied
			}
			if err := updateCultureRow(ctx, tx, target); err != nil {
				return err
			}
			if err := cascadeNamePath(ctx, tx, siteID, updated.AliasPath(), record.Culture, record.NamePath, target.NamePath, now); err != nil {
				return err
			}
		}
	} else {
		if err := updateCultureRow(ctx, tx, updated.Culture); err != nil {
			return err
		}
		if err := cascadeNamePath(ctx, tx, siteID, updated.AliasPath(), updated.CultureCode(), previous.NamePath(), updated.NamePath(), now); err != nil {
			return err
		}
	}

	if updated.Fields != nil {
		if _, err := tx.NewUpdate().
			Model(updated.Fields).
			Column("field_values", "updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return fmt.Errorf("update coupled data: %w", err)
		}
	}
	return nil
}

func updateCultureRow(ctx context.Context, db bun.IDB, record *CultureData) error {
	if _, err := db.NewUpdate().
		Model(record).
		Column("name", "name_path", "workflow_step", "published", "published_at", "updated_at").
		WherePK().
		Exec(ctx); err != nil {
		return fmt.Errorf("update culture version: %w", err)
	}
	return nil
}

// InsertNewCulture adds a translation to a node. Adding the site default
// culture re-derives the node alias from the translated name.
func (s *Service) InsertNewCulture(ctx context.Context, req NewCultureRequest) (*TreeNode, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	node, err := s.store.GetNode(ctx, req.NodeID)
	if err != nil {
		return nil, err
	}
	if node.IsLink() {
		return nil, InvalidOperation("link %s does not own culture data", node.AliasPath)
	}
	site, err := s.store.GetSite(ctx, node.SiteID)
	if err != nil {
		return nil, err
	}
	culture, err := s.enabledCulture(ctx, site, req.Culture)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetCulture(ctx, node.ID, culture); err == nil {
		return nil, ErrCultureExists
	} else if !errors.Is(err, ErrCultureNotFound) {
		return nil, err
	}
	docType, err := s.store.GetType(ctx, node.ClassID)
	if err != nil {
		return nil, err
	}
	values, err := prepareFields(docType, nil, req.Fields)
	if err != nil {
		return nil, err
	}

	now := s.now()
	name := strings.TrimSpace(req.Name)
	updatedNode := *node
	namePath := RootAliasPath
	if node.ParentID != nil {
		db := s.store.db
		parent, err := s.store.GetNode(ctx, *node.ParentID)
		if err != nil {
			return nil, err
		}
		if culture == site.DefaultCulture {
			alias, err := NormalizeAlias(name)
			if err != nil {
				return nil, err
			}
			if alias, err = uniqueAlias(ctx, db, site.ID, parent.ID, alias, node.ID); err != nil {
				return nil, err
			}
			updatedNode.Alias = alias
			updatedNode.AliasPath = JoinPath(parent.AliasPath, alias)
		}
		prefix, err := parentNamePath(ctx, db, parent, culture, site.DefaultCulture)
		if err != nil {
			return nil, err
		}
		namePath = JoinPath(prefix, nameSegment(name))
	}

	tree := &TreeNode{
		Site:    site,
		Type:    docType,
		Node:    &updatedNode,
		Culture: s.newCulture(node.ID, culture, name, namePath, now),
	}
	if docType.IsCoupled {
		tree.Fields = s.newFields(docType.ClassName, values, now)
		tree.Culture.ForeignKeyValue = &tree.Fields.ID
	}
	if acl, err := s.ownedACL(ctx, node); err == nil {
		tree.ACL = acl
	}

	args := &NewCultureArgs{Node: tree, PreviousAlias: node.Alias}
	err = s.events.InsertNewCulture.Invoke(ctx, args, func(ctx context.Context) error {
		return s.store.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if args.AliasChanged() {
				updatedNode.UpdatedAt = now
				if _, err := tx.NewUpdate().
					Model(&updatedNode).
					Column("alias", "alias_path", "updated_at").
					WherePK().
					Exec(ctx); err != nil {
					return fmt.Errorf("update node alias: %w", err)
				}
				if err := cascadeAliasPath(ctx, tx, site.ID, node.AliasPath, updatedNode.AliasPath, 0, now); err != nil {
					return err
				}
			}
			return insertCultureVersion(ctx, tx, tree)
		})
	})
	if err != nil {
		return nil, err
	}

	logging.WithDocumentContext(s.logger, node.ID, culture, updatedNode.AliasPath).Debug("documents.culture.inserted", "alias_changed", args.AliasChanged())
	return tree, s.completeTasks(ctx, staging.NewTask(staging.TaskCreateDocument, site.ID, node.ID, culture, updatedNode.AliasPath))
}

// Get returns the culture version of a node. An empty culture selects the
// site default culture version.
func (s *Service) Get(ctx context.Context, nodeID uuid.UUID, culture string) (*TreeNode, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	node, err := s.store.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	return s.store.TreeNode(ctx, node, culture)
}

// GetTreeNode returns the culture version of the node at aliasPath on the
// site named siteName.
func (s *Service) GetTreeNode(ctx context.Context, siteName, aliasPath, culture string) (*TreeNode, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	site, err := s.store.GetSiteByName(ctx, siteName)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(aliasPath) == "" {
		aliasPath = RootAliasPath
	}
	node, err := s.store.FindNodeByAliasPath(ctx, site.ID, aliasPath)
	if err != nil {
		return nil, err
	}
	return s.store.TreeNode(ctx, node, culture)
}

// ListCultureVersions returns every culture version of a node. Links list
// the culture versions of their original.
func (s *Service) ListCultureVersions(ctx context.Context, nodeID uuid.UUID) ([]*TreeNode, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	node, err := s.store.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	return s.store.CultureVersions(ctx, node)
}

// ListChildren returns the culture version of every direct child of a
// node. Children without that culture are skipped.
func (s *Service) ListChildren(ctx context.Context, nodeID uuid.UUID, culture string) ([]*TreeNode, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	children, err := s.store.ListChildren(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	out := make([]*TreeNode, 0, len(children))
	for _, child := range children {
		tree, err := s.store.TreeNode(ctx, child, culture)
		if errors.Is(err, ErrCultureNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, tree)
	}
	return out, nil
}

func (s *Service) enabledCulture(ctx context.Context, site *Site, culture string) (string, error) {
	culture = identity.CultureCode(culture)
	if culture == "" {
		return site.DefaultCulture, nil
	}
	enabled, err := s.store.SiteCultures(ctx, site.ID)
	if err != nil {
		return "", err
	}
	if !slices.Contains(enabled, culture) {
		return "", fmt.Errorf("%w: %s on %s", ErrCultureNotEnabled, culture, site.Name)
	}
	return culture, nil
}

func (s *Service) ownedACL(ctx context.Context, node *Node) (*ACL, error) {
	if node.ACLID == nil {
		return nil, ErrACLNotFound
	}
	acl, err := s.store.GetACL(ctx, *node.ACLID)
	if err != nil {
		return nil, err
	}
	if acl.OwnerNodeID != node.ID {
		return nil, ErrACLNotFound
	}
	return acl, nil
}

func (s *Service) newCulture(nodeID uuid.UUID, culture, name, namePath string, now time.Time) *CultureData {
	published := now
	return &CultureData{
		ID:           identity.CultureVersionUUID(nodeID, culture),
		NodeID:       nodeID,
		Culture:      culture,
		Name:         name,
		NamePath:     namePath,
		WorkflowStep: WorkflowStepPublished,
		Published:    true,
		PublishedAt:  &published,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *Service) newFields(className string, values map[string]any, now time.Time) *Fields {
	if values == nil {
		values = map[string]any{}
	}
	return &Fields{
		ID:        s.id(),
		ClassName: className,
		Values:    values,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Service) completeTasks(ctx context.Context, tasks ...*staging.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	args := &staging.TaskCollectionArgs{Tasks: tasks}
	if err := s.events.TaskCollectionCompleted.Invoke(ctx, args, nil); err != nil {
		return fmt.Errorf("documents: log staging tasks: %w", err)
	}
	return nil
}

// nameSegment makes a document name safe to use as a name path segment.
func nameSegment(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), "/", "-")
}
