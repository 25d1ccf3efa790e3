package documents

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-cms-ci/internal/identity"
	"github.com/goliatone/go-cms-ci/internal/logging"
	"github.com/goliatone/go-cms-ci/internal/staging"
)

// SetPermissions gives a node its own ACL. The first call breaks
// inheritance: the node and the descendants sharing its inherited ACL
// switch to the new one. Later calls replace the entries.
func (s *Service) SetPermissions(ctx context.Context, req SetPermissionsRequest) (*TreeNode, error) {
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
	previous, err := s.store.TreeNode(ctx, node, "")
	if err != nil {
		return nil, err
	}
	var parent *Node
	if node.ParentID != nil {
		if parent, err = s.store.GetNode(ctx, *node.ParentID); err != nil {
			return nil, err
		}
	}
	inherited, err := inheritedChain(ctx, s.store.db, parent)
	if err != nil {
		return nil, err
	}

	now := s.now()
	creating := previous.ACL == nil
	acl := &ACL{ID: identity.ACLUUID(node.ID), OwnerNodeID: node.ID, CreatedAt: now}
	if !creating {
		copied := *previous.ACL
		acl = &copied
	}
	acl.InheritedACLs = inherited
	acl.Entries = slices.Clone(req.Entries)
	acl.UpdatedAt = now

	updated := previous.Clone()
	aclID := acl.ID
	updated.Node.ACLID = &aclID
	updated.Node.UpdatedAt = now
	updated.ACL = acl

	args := &UpdateArgs{Node: updated, Previous: previous}
	err = s.events.Update.Invoke(ctx, args, func(ctx context.Context) error {
		return s.store.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if !creating {
				if _, err := tx.NewUpdate().
					Model(acl).
					Column("inherited_acls", "entries", "updated_at").
					WherePK().
					Exec(ctx); err != nil {
					return fmt.Errorf("update acl: %w", err)
				}
				return nil
			}
			if _, err := tx.NewInsert().Model(acl).Exec(ctx); err != nil {
				return fmt.Errorf("insert acl: %w", err)
			}
			if _, err := tx.NewUpdate().
				Model(updated.Node).
				Column("acl_id", "updated_at").
				WherePK().
				Exec(ctx); err != nil {
				return fmt.Errorf("assign acl: %w", err)
			}
			if err := cascadeACLID(ctx, tx, node.SiteID, node.AliasPath, node.ACLID, &aclID, now); err != nil {
				return err
			}
			return refreshInheritedACLs(ctx, tx, node.SiteID, node.AliasPath, now)
		})
	})
	if err != nil {
		return nil, err
	}

	logging.WithDocumentContext(s.logger, node.ID, "", node.AliasPath).Debug("documents.acl.saved", "created", creating, "entries", len(acl.Entries))
	return updated, s.completeTasks(ctx, staging.NewTask(staging.TaskUpdateDocument, node.SiteID, node.ID, "", node.AliasPath))
}

// rebindACL points a moved node at the permissions of its new parent. A
// node owning its ACL keeps it with a new inherited chain.
func (s *Service) rebindACL(ctx context.Context, db bun.IDB, previous, updated *TreeNode, parent *Node, now time.Time) error {
	siteID := updated.Node.SiteID
	if updated.ACL != nil {
		chain, err := inheritedChain(ctx, db, parent)
		if err != nil {
			return err
		}
		updated.ACL.InheritedACLs = chain
		updated.ACL.UpdatedAt = now
		if _, err := db.NewUpdate().
			Model(updated.ACL).
			Column("inherited_acls", "updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return fmt.Errorf("documents: rebind acl: %w", err)
		}
	} else if err := cascadeACLID(ctx, db, siteID, updated.AliasPath(), previous.Node.ACLID, updated.Node.ACLID, now); err != nil {
		return err
	}
	return refreshInheritedACLs(ctx, db, siteID, updated.AliasPath(), now)
}

// inheritedChain returns the ACL IDs a child of parent inherits, outermost
// first.
func inheritedChain(ctx context.Context, db bun.IDB, parent *Node) ([]uuid.UUID, error) {
	if parent == nil || parent.ACLID == nil {
		return []uuid.UUID{}, nil
	}
	acl := new(ACL)
	err := db.NewSelect().Model(acl).Where("?TableAlias.id = ?", *parent.ACLID).Limit(1).Scan(ctx)
	if err != nil {
		return nil, mapRepositoryError(err, ErrACLNotFound, "acl", parent.ACLID.String())
	}
	return append(slices.Clone(acl.InheritedACLs), acl.ID), nil
}

// cascadeACLID moves the descendants of aliasPath that inherit from from
// over to to.
func cascadeACLID(ctx context.Context, db bun.IDB, siteID uuid.UUID, aliasPath string, from, to *uuid.UUID, now time.Time) error {
	if sameID(from, to) {
		return nil
	}
	q := db.NewUpdate().
		Model((*Node)(nil)).
		Set("acl_id = ?", to).
		Set("updated_at = ?", now).
		Where("site_id = ?", siteID).
		Where("alias_path LIKE ? ESCAPE '\\'", descendantPattern(aliasPath))
	if from == nil {
		q = q.Where("acl_id IS NULL")
	} else {
		q = q.Where("acl_id = ?", *from)
	}
	if _, err := q.Exec(ctx); err != nil {
		return fmt.Errorf("documents: cascade acl under %s: %w", aliasPath, err)
	}
	return nil
}

// refreshInheritedACLs recomputes the inherited chain of every ACL owned by
// a node beneath aliasPath, parents first.
func refreshInheritedACLs(ctx context.Context, db bun.IDB, siteID uuid.UUID, aliasPath string, now time.Time) error {
	var owners []*Node
	err := db.NewSelect().
		Model(&owners).
		Where("?TableAlias.site_id = ?", siteID).
		Where("?TableAlias.alias_path LIKE ? ESCAPE '\\'", descendantPattern(aliasPath)).
		Where("?TableAlias.acl_id IN (?)", db.NewSelect().Model((*ACL)(nil)).Column("id").Where("owner_node_id = n.id")).
		OrderExpr("?TableAlias.level ASC").
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("documents: list acl owners: %w", err)
	}
	for _, owner := range owners {
		parent := new(Node)
		if err := db.NewSelect().Model(parent).Where("?TableAlias.id = ?", *owner.ParentID).Limit(1).Scan(ctx); err != nil {
			return fmt.Errorf("documents: load acl owner parent: %w", err)
		}
		chain, err := inheritedChain(ctx, db, parent)
		if err != nil {
			return err
		}
		acl := new(ACL)
		if err := db.NewSelect().Model(acl).Where("?TableAlias.id = ?", *owner.ACLID).Limit(1).Scan(ctx); err != nil {
			return fmt.Errorf("documents: load owned acl: %w", err)
		}
		acl.InheritedACLs = chain
		acl.UpdatedAt = now
		if _, err := db.NewUpdate().
			Model(acl).
			Column("inherited_acls", "updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return fmt.Errorf("documents: refresh inherited acls: %w", err)
		}
	}
	return nil
}
