package documents

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-cms-ci/internal/logging"
	"github.com/goliatone/go-cms-ci/internal/query"
	"github.com/goliatone/go-cms-ci/internal/staging"
)

// Delete removes culture versions of a node. The node itself is removed
// when it is a link or when its last culture version goes; its subtree and
// the links pointing into it go with it when req.Recursive is set.
func (s *Service) Delete(ctx context.Context, req DeleteRequest) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	node, err := s.store.GetNode(ctx, req.NodeID)
	if err != nil {
		return err
	}
	site, err := s.store.GetSite(ctx, node.SiteID)
	if err != nil {
		return err
	}

	var removedCultures []string
	nodeDeleted := node.IsLink()
	if !node.IsLink() {
		existing, err := s.store.ListCultures(ctx, node.ID)
		if err != nil {
			return err
		}
		codes := make([]string, 0, len(existing))
		for _, record := range existing {
			codes = append(codes, record.Culture)
		}
		if req.AllCultures {
			removedCultures = codes
		} else {
			culture, err := s.enabledCulture(ctx, site, req.Culture)
			if err != nil && !errors.Is(err, ErrCultureNotEnabled) {
				return err
			}
			if culture == "" || !slices.Contains(codes, culture) {
				return notFound(ErrCultureNotFound, "culture version", node.ID.String()+"/"+req.Culture)
			}
			removedCultures = []string{culture}
		}
		nodeDeleted = len(removedCultures) == len(codes)
	}

	var removedNodes []*Node
	if nodeDeleted {
		if node.ParentID == nil {
			return ErrRootImmutable
		}
		children, err := s.store.ListChildren(ctx, node.ID)
		if err != nil {
			return err
		}
		if len(children) > 0 && !req.Recursive {
			return ErrNodeHasChildren
		}
		if removedNodes, err = s.collectRemoved(ctx, node); err != nil {
			return err
		}
	}
	removed := make([]uuid.UUID, 0, len(removedNodes))
	for _, n := range removedNodes {
		removed = append(removed, n.ID)
	}

	tree, err := s.deletedTree(ctx, node, removedCultures)
	if err != nil {
		return err
	}

	args := &DeleteArgs{
		Node:        tree,
		Cultures:    removedCultures,
		NodeDeleted: nodeDeleted,
		Removed:     removed,
	}
	err = s.events.Delete.Invoke(ctx, args, func(ctx context.Context) error {
		return s.store.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if !nodeDeleted {
				return deleteCultureRows(ctx, tx, []uuid.UUID{node.ID}, removedCultures)
			}
			return deleteNodes(ctx, tx, append([]uuid.UUID{node.ID}, removed...))
		})
	})
	if err != nil {
		return err
	}

	logging.WithDocumentContext(s.logger, node.ID, "", node.AliasPath).Debug("documents.delete.completed",
		"cultures", len(removedCultures),
		"node_deleted", nodeDeleted,
		"removed", len(removed),
	)

	tasks := make([]*staging.Task, 0, len(removedCultures)+len(removed)+1)
	if node.IsLink() {
		tasks = append(tasks, staging.NewTask(staging.TaskDeleteDocument, site.ID, node.ID, "", node.AliasPath))
	}
	for _, culture := range removedCultures {
		tasks = append(tasks, staging.NewTask(staging.TaskDeleteDocument, site.ID, node.ID, culture, node.AliasPath))
	}
	for _, n := range removedNodes {
		tasks = append(tasks, staging.NewTask(staging.TaskDeleteDocument, site.ID, n.ID, "", n.AliasPath))
	}
	return s.completeTasks(ctx, tasks...)
}

// collectRemoved returns the descendants of node and the links pointing
// into the removed set, with their own descendants.
func (s *Service) collectRemoved(ctx context.Context, node *Node) ([]*Node, error) {
	seen := map[uuid.UUID]struct{}{node.ID: {}}
	var out []*Node
	frontier := []*Node{node}
	for len(frontier) > 0 {
		var next []*Node
		for _, root := range frontier {
			descendants, err := s.store.ListNodes(ctx, descendantsOf(root))
			if err != nil {
				return nil, err
			}
			for _, d := range descendants {
				if _, ok := seen[d.ID]; !ok {
					seen[d.ID] = struct{}{}
					out = append(out, d)
				}
			}
		}

		ids := make([]uuid.UUID, 0, len(seen))
		for id := range seen {
			ids = append(ids, id)
		}
		links, err := s.store.ListNodes(ctx, query.In("n.original_node_id", ids))
		if err != nil {
			return nil, err
		}
		for _, link := range links {
			if _, ok := seen[link.ID]; ok {
				continue
			}
			seen[link.ID] = struct{}{}
			out = append(out, link)
			next = append(next, link)
		}
		frontier = next
	}
	return out, nil
}

func descendantsOf(node *Node) query.Where {
	return query.And(
		query.Eq("n.site_id", node.SiteID),
		query.New("n.alias_path LIKE ? ESCAPE '\\'", descendantPattern(node.AliasPath)),
	)
}

// deletedTree returns the state handed to delete subscribers: the first
// removed culture version, or the bare node when no culture data resolves.
func (s *Service) deletedTree(ctx context.Context, node *Node, cultures []string) (*TreeNode, error) {
	culture := ""
	if len(cultures) > 0 {
		culture = cultures[0]
	}
	tree, err := s.store.TreeNode(ctx, node, culture)
	if err == nil {
		return tree, nil
	}
	if !errors.Is(err, ErrCultureNotFound) {
		return nil, err
	}
	site, err := s.store.GetSite(ctx, node.SiteID)
	if err != nil {
		return nil, err
	}
	docType, err := s.store.GetType(ctx, node.ClassID)
	if err != nil {
		return nil, err
	}
	return &TreeNode{Site: site, Type: docType, Node: node}, nil
}

// deleteCultureRows removes culture versions of nodeIDs with their coupled
// data and drafts. Empty cultures removes every culture version.
func deleteCultureRows(ctx context.Context, db bun.IDB, nodeIDs []uuid.UUID, cultures []string) error {
	if len(nodeIDs) == 0 {
		return nil
	}
	filter := func(q *bun.SelectQuery) *bun.SelectQuery {
		q = q.Where("?TableAlias.node_id IN (?)", bun.In(nodeIDs))
		if len(cultures) > 0 {
			q = q.Where("?TableAlias.culture IN (?)", bun.In(cultures))
		}
		return q
	}

	keys := filter(db.NewSelect().
		Model((*CultureData)(nil)).
		Column("foreign_key_value").
		Where("?TableAlias.foreign_key_value IS NOT NULL"))
	if _, err := db.NewDelete().
		Model((*Fields)(nil)).
		Where("id IN (?)", keys).
		Exec(ctx); err != nil {
		return fmt.Errorf("delete coupled data: %w", err)
	}

	drafts := db.NewDelete().Model((*Draft)(nil)).Where("node_id IN (?)", bun.In(nodeIDs))
	cultureRows := db.NewDelete().Model((*CultureData)(nil)).Where("node_id IN (?)", bun.In(nodeIDs))
	if len(cultures) > 0 {
		drafts = drafts.Where("culture IN (?)", bun.In(cultures))
		cultureRows = cultureRows.Where("culture IN (?)", bun.In(cultures))
	}
	if _, err := drafts.Exec(ctx); err != nil {
		return fmt.Errorf("delete drafts: %w", err)
	}
	if _, err := cultureRows.Exec(ctx); err != nil {
		return fmt.Errorf("delete culture versions: %w", err)
	}
	return nil
}

func deleteNodes(ctx context.Context, db bun.IDB, nodeIDs []uuid.UUID) error {
	if err := deleteCultureRows(ctx, db, nodeIDs, nil); err != nil {
		return err
	}
	if _, err := db.NewDelete().
		Model((*ACL)(nil)).
		Where("owner_node_id IN (?)", bun.In(nodeIDs)).
		Exec(ctx); err != nil {
		return fmt.Errorf("delete acls: %w", err)
	}
	if _, err := db.NewDelete().
		Model((*Node)(nil)).
		Where("id IN (?)", bun.In(nodeIDs)).
		Exec(ctx); err != nil {
		return fmt.Errorf("delete nodes: %w", err)
	}
	return nil
}
