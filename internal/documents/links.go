package documents

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-cms-ci/internal/logging"
	"github.com/goliatone/go-cms-ci/internal/staging"
)

// InsertLink creates a node under req.ParentID showing the content of
// req.OriginalNodeID.
func (s *Service) InsertLink(ctx context.Context, req InsertLinkRequest) (*TreeNode, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	original, err := s.store.GetNode(ctx, req.OriginalNodeID)
	if err != nil {
		return nil, err
	}
	if original.IsLink() {
		return nil, ErrLinkTargetIsLink
	}
	if original.ParentID == nil {
		return nil, InvalidOperation("the root of a site cannot be linked")
	}
	parent, err := s.store.GetNode(ctx, req.ParentID)
	if err != nil {
		return nil, err
	}

	aliasSource := req.Alias
	if strings.TrimSpace(aliasSource) == "" {
		aliasSource = original.Alias
	}
	alias, err := NormalizeAlias(aliasSource)
	if err != nil {
		return nil, err
	}
	if alias, err = uniqueAlias(ctx, s.store.db, parent.SiteID, parent.ID, alias, uuid.Nil); err != nil {
		return nil, err
	}

	now := s.now()
	parentID := parent.ID
	originalID := original.ID
	node := &Node{
		ID:             s.id(),
		SiteID:         parent.SiteID,
		ParentID:       &parentID,
		ClassID:        original.ClassID,
		Alias:          alias,
		AliasPath:      JoinPath(parent.AliasPath, alias),
		Level:          parent.Level + 1,
		Order:          req.Order,
		OriginalNodeID: &originalID,
		ACLID:          parent.ACLID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	tree, err := s.store.TreeNode(ctx, node, "")
	if err != nil {
		return nil, err
	}
	if tree, err = s.workingTree(ctx, tree); err != nil {
		return nil, err
	}

	args := &InsertLinkArgs{Node: tree}
	err = s.events.InsertLink.Invoke(ctx, args, func(ctx context.Context) error {
		if _, err := s.store.db.NewInsert().Model(node).Exec(ctx); err != nil {
			return fmt.Errorf("insert link node: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.WithDocumentContext(s.logger, node.ID, tree.CultureCode(), node.AliasPath).Debug("documents.link.inserted", "original_node_id", original.ID)
	return tree, s.completeTasks(ctx, staging.NewTask(staging.TaskLinkDocument, node.SiteID, node.ID, tree.CultureCode(), node.AliasPath))
}

// ConvertToLink turns a standard document into a link to
// req.OriginalNodeID. The other culture versions of the node are deleted
// in the same transaction; the converted culture version then shows the
// original's content.
func (s *Service) ConvertToLink(ctx context.Context, req ConvertToLinkRequest) (*TreeNode, error) {
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
		return nil, ErrAlreadyALink
	}
	if node.ParentID == nil {
		return nil, ErrRootImmutable
	}
	if req.OriginalNodeID == node.ID {
		return nil, ErrLinkTargetIsSameNode
	}
	original, err := s.store.GetNode(ctx, req.OriginalNodeID)
	if err != nil {
		return nil, err
	}
	if original.IsLink() {
		return nil, ErrLinkTargetIsLink
	}

	previous, err := s.store.TreeNode(ctx, node, req.Culture)
	if err != nil {
		return nil, err
	}
	culture := previous.CultureCode()
	existing, err := s.store.ListCultures(ctx, node.ID)
	if err != nil {
		return nil, err
	}
	var others []string
	for _, record := range existing {
		if record.Culture != culture {
			others = append(others, record.Culture)
		}
	}

	linked := *node
	originalID := original.ID
	linked.OriginalNodeID = &originalID
	linked.ClassID = original.ClassID

	args := &ChangeToLinkArgs{Node: previous, ToLink: true}
	err = s.events.ChangeToLink.Invoke(ctx, args, func(ctx context.Context) error {
		// A link owns no culture data: every version goes with the
		// conversion or none does.
		err := s.store.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if err := deleteCultureRows(ctx, tx, []uuid.UUID{node.ID}, nil); err != nil {
				return err
			}
			linked.UpdatedAt = s.now()
			if _, err := tx.NewUpdate().
				Model(&linked).
				Column("original_node_id", "class_id", "updated_at").
				WherePK().
				Exec(ctx); err != nil {
				return fmt.Errorf("convert node to link: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		converted, err := s.store.TreeNode(ctx, &linked, culture)
		if err != nil {
			return err
		}
		args.Node = converted
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.WithDocumentContext(s.logger, node.ID, culture, node.AliasPath).Debug("documents.link.converted_to", "original_node_id", original.ID, "deleted_cultures", len(others))
	tasks := make([]*staging.Task, 0, len(others)+1)
	for _, other := range others {
		tasks = append(tasks, staging.NewTask(staging.TaskDeleteDocument, node.SiteID, node.ID, other, node.AliasPath))
	}
	tasks = append(tasks, staging.NewTask(staging.TaskUpdateDocument, node.SiteID, node.ID, culture, node.AliasPath))
	return args.Node, s.completeTasks(ctx, tasks...)
}

// ConvertFromLink turns a link into a standard document owning a copy of
// the original's req.Culture version and its coupled data.
func (s *Service) ConvertFromLink(ctx context.Context, req ConvertFromLinkRequest) (*TreeNode, error) {
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
	if !node.IsLink() {
		return nil, ErrNotALink
	}
	previous, err := s.store.TreeNode(ctx, node, req.Culture)
	if err != nil {
		return nil, err
	}
	culture := previous.CultureCode()
	parent, err := s.store.GetNode(ctx, *node.ParentID)
	if err != nil {
		return nil, err
	}
	prefix, err := parentNamePath(ctx, s.store.db, parent, culture, previous.Site.DefaultCulture)
	if err != nil {
		return nil, err
	}

	now := s.now()
	standalone := *node
	standalone.OriginalNodeID = nil
	standalone.UpdatedAt = now

	name := previous.Culture.Name
	converted := &TreeNode{
		Site:    previous.Site,
		Type:    previous.Type,
		Node:    &standalone,
		Culture: s.newCulture(node.ID, culture, name, JoinPath(prefix, nameSegment(name)), now),
	}
	converted.Culture.WorkflowStep = previous.Culture.WorkflowStep
	converted.Culture.Published = previous.Culture.Published
	if previous.Fields != nil {
		converted.Fields = s.newFields(previous.Fields.ClassName, cloneValues(previous.Fields.Values), now)
		converted.Culture.ForeignKeyValue = &converted.Fields.ID
	}
	if acl, err := s.ownedACL(ctx, node); err == nil {
		converted.ACL = acl
	}

	args := &ChangeToLinkArgs{Node: previous, ToLink: false}
	err = s.events.ChangeToLink.Invoke(ctx, args, func(ctx context.Context) error {
		err := s.store.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.NewUpdate().
				Model(&standalone).
				Column("original_node_id", "updated_at").
				WherePK().
				Exec(ctx); err != nil {
				return fmt.Errorf("convert link to document: %w", err)
			}
			return insertCultureVersion(ctx, tx, converted)
		})
		if err != nil {
			return err
		}
		args.Node = converted
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.WithDocumentContext(s.logger, node.ID, culture, node.AliasPath).Debug("documents.link.converted_from")
	return converted, s.completeTasks(ctx, staging.NewTask(staging.TaskUpdateDocument, node.SiteID, node.ID, culture, node.AliasPath))
}

// ChangeDocumentType switches a node to req.ClassName. Coupled values whose
// field names exist on the new type are kept; the rest are dropped.
func (s *Service) ChangeDocumentType(ctx context.Context, req ChangeTypeRequest) (*TreeNode, error) {
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
		return nil, InvalidOperation("link %s takes its type from the original", node.AliasPath)
	}
	if node.ParentID == nil {
		return nil, ErrRootImmutable
	}
	previous, err := s.store.TreeNode(ctx, node, "")
	if err != nil {
		return nil, err
	}
	newType, err := s.store.GetTypeByClassName(ctx, req.ClassName)
	if err != nil {
		return nil, err
	}
	if newType.ID == node.ClassID {
		return previous, nil
	}
	previousType := previous.Type

	cultures, err := s.store.ListCultures(ctx, node.ID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	type migration struct {
		culture *CultureData
		fields  *Fields
		insert  bool
	}
	plan := make([]migration, 0, len(cultures))
	for _, record := range cultures {
		var oldValues map[string]any
		if previousType.IsCoupled && record.ForeignKeyValue != nil {
			fields, err := s.store.GetFields(ctx, *record.ForeignKeyValue, previousType.ClassName)
			if err != nil {
				return nil, err
			}
			oldValues = fields.Values
		}
		step := migration{culture: record}
		if newType.IsCoupled {
			if record.ForeignKeyValue != nil {
				step.fields = &Fields{ID: *record.ForeignKeyValue, ClassName: newType.ClassName, Values: retainFields(newType, oldValues), UpdatedAt: now}
			} else {
				step.fields = s.newFields(newType.ClassName, nil, now)
				step.insert = true
				record.ForeignKeyValue = &step.fields.ID
			}
		} else {
			record.ForeignKeyValue = nil
		}
		record.UpdatedAt = now
		plan = append(plan, step)
	}

	changed := *node
	changed.ClassID = newType.ID
	changed.UpdatedAt = now

	args := &ChangeTypeArgs{Node: previous, PreviousType: previousType}
	err = s.events.ChangeDocumentType.Invoke(ctx, args, func(ctx context.Context) error {
		err := s.store.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if !newType.IsCoupled {
				if err := deleteFieldRows(ctx, tx, node.ID); err != nil {
					return err
				}
			}
			for _, step := range plan {
				switch {
				case step.fields == nil:
				case step.insert:
					if _, err := tx.NewInsert().Model(step.fields).Exec(ctx); err != nil {
						return fmt.Errorf("insert coupled data: %w", err)
					}
				default:
					if _, err := tx.NewUpdate().
						Model(step.fields).
						Column("class_name", "field_values", "updated_at").
						WherePK().
						Exec(ctx); err != nil {
						return fmt.Errorf("migrate coupled data: %w", err)
					}
				}
				if _, err := tx.NewUpdate().
					Model(step.culture).
					Column("foreign_key_value", "updated_at").
					WherePK().
					Exec(ctx); err != nil {
					return fmt.Errorf("update culture version: %w", err)
				}
			}
			if _, err := tx.NewUpdate().
				Model(&changed).
				Column("class_id", "updated_at").
				WherePK().
				Exec(ctx); err != nil {
				return fmt.Errorf("change node type: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		updated, err := s.store.TreeNode(ctx, &changed, previous.CultureCode())
		if err != nil {
			return err
		}
		args.Node = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(cultures))
	tasks := make([]*staging.Task, 0, len(cultures))
	for _, record := range cultures {
		codes = append(codes, record.Culture)
		tasks = append(tasks, staging.NewTask(staging.TaskChangeDocumentType, node.SiteID, node.ID, record.Culture, node.AliasPath))
	}
	slices.Sort(codes)
	logging.WithDocumentContext(s.logger, node.ID, "", node.AliasPath).Debug("documents.type.changed",
		"from", previousType.ClassName,
		"to", newType.ClassName,
		"cultures", strings.Join(codes, ","),
	)
	return args.Node, s.completeTasks(ctx, tasks...)
}

func deleteFieldRows(ctx context.Context, db bun.IDB, nodeID uuid.UUID) error {
	keys := db.NewSelect().
		Model((*CultureData)(nil)).
		Column("foreign_key_value").
		Where("?TableAlias.node_id = ?", nodeID).
		Where("?TableAlias.foreign_key_value IS NOT NULL")
	if _, err := db.NewDelete().
		Model((*Fields)(nil)).
		Where("id IN (?)", keys).
		Exec(ctx); err != nil {
		return fmt.Errorf("delete coupled data: %w", err)
	}
	return nil
}
