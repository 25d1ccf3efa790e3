package documents

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/google/uuid"

	"github.com/goliatone/go-cms-ci/internal/identity"
	"github.com/goliatone/go-cms-ci/internal/logging"
)

// SaveDraft stores edits of a culture version without publishing them.
// Saving again replaces the pending draft. No lifecycle event is raised:
// the published culture version is unchanged.
func (s *Service) SaveDraft(ctx context.Context, req SaveDraftRequest) (*Draft, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, req.NodeID, req.Culture)
	if err != nil {
		return nil, err
	}
	if current.IsLink() {
		return nil, InvalidOperation("link %s does not own culture data", current.AliasPath())
	}

	working, err := s.workingTree(ctx, current)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = working.Culture.Name
	}
	values := map[string]any{}
	if working.Fields != nil {
		values = cloneValues(working.Fields.Values)
	}
	maps.Copy(values, retainFields(current.Type, req.Fields))

	now := s.now()
	draft := &Draft{
		ID:        identity.CultureVersionUUID(current.NodeID(), current.CultureCode()),
		NodeID:    current.NodeID(),
		Culture:   current.CultureCode(),
		Name:      name,
		Values:    values,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.store.db.NewInsert().
		Model(draft).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("field_values = EXCLUDED.field_values").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("documents: save draft: %w", err)
	}

	logging.WithDocumentContext(s.logger, draft.NodeID, draft.Culture, current.AliasPath()).Debug("documents.draft.saved")
	return draft, nil
}

// Working returns the culture version with its pending draft applied.
func (s *Service) Working(ctx context.Context, nodeID uuid.UUID, culture string) (*TreeNode, error) {
	tree, err := s.Get(ctx, nodeID, culture)
	if err != nil {
		return nil, err
	}
	return s.workingTree(ctx, tree)
}

// Publish applies the pending draft of a culture version through Update
// and removes the draft.
func (s *Service) Publish(ctx context.Context, req PublishRequest) (*TreeNode, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	current, err := s.Get(ctx, req.NodeID, req.Culture)
	if err != nil {
		return nil, err
	}
	draft, err := s.store.GetDraft(ctx, current.NodeID(), current.CultureCode())
	if err != nil {
		return nil, err
	}

	name := draft.Name
	updateReq := UpdateRequest{
		NodeID:  current.NodeID(),
		Culture: current.CultureCode(),
		Name:    &name,
		publish: true,
	}
	if current.Fields != nil {
		updateReq.Fields = draft.Values
	}
	updated, err := s.Update(ctx, updateReq)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.db.NewDelete().
		Model((*Draft)(nil)).
		Where("id = ?", draft.ID).
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("documents: remove published draft: %w", err)
	}
	return updated, nil
}

// workingTree overlays the pending draft of the culture version tree shows.
// The draft of a link is the draft of its original.
func (s *Service) workingTree(ctx context.Context, tree *TreeNode) (*TreeNode, error) {
	if tree == nil || tree.Culture == nil {
		return tree, nil
	}
	draft, err := s.store.GetDraft(ctx, tree.Culture.NodeID, tree.Culture.Culture)
	if errors.Is(err, ErrDraftNotFound) {
		return tree, nil
	}
	if err != nil {
		return nil, err
	}

	out := tree.Clone()
	out.Culture.Name = draft.Name
	out.Culture.WorkflowStep = WorkflowStepEdit
	if out.Fields != nil {
		if out.Fields.Values == nil {
			out.Fields.Values = map[string]any{}
		}
		maps.Copy(out.Fields.Values, draft.Values)
	}
	return out, nil
}
