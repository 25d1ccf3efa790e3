package documents

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-cms-ci/internal/identity"
)

// TypeService manages document types and their form definitions.
type TypeService struct {
	svc *Service
}

// Types returns the document type API sharing the service store and events.
func (s *Service) Types() *TypeService {
	return &TypeService{svc: s}
}

// Register creates a document type.
func (t *TypeService) Register(ctx context.Context, req RegisterTypeRequest) (*DocumentType, error) {
	if err := t.svc.ready(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	className := strings.TrimSpace(req.ClassName)
	if _, err := t.svc.store.GetTypeByClassName(ctx, className); err == nil {
		return nil, ErrTypeExists
	} else if !errors.Is(err, ErrTypeNotFound) {
		return nil, err
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = className
	}
	now := t.svc.now()
	record, err := t.svc.store.createType(ctx, &DocumentType{
		ID:          identity.DocumentTypeUUID(className),
		ClassName:   className,
		DisplayName: displayName,
		IsCoupled:   req.IsCoupled,
		Fields:      normalizeDefinitions(req.Fields),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, err
	}
	t.svc.logger.Debug("documents.type.registered", "class_name", className, "coupled", req.IsCoupled)
	return record, nil
}

// Get returns the document type named className.
func (t *TypeService) Get(ctx context.Context, className string) (*DocumentType, error) {
	if err := t.svc.ready(); err != nil {
		return nil, err
	}
	return t.svc.store.GetTypeByClassName(ctx, className)
}

// List returns every document type.
func (t *TypeService) List(ctx context.Context) ([]*DocumentType, error) {
	if err := t.svc.ready(); err != nil {
		return nil, err
	}
	return t.svc.store.ListTypes(ctx)
}

// UpdateFormDefinition replaces the fields of a document type. Values of
// removed fields are dropped from the stored coupled data. Subscribers are
// told whether serialized documents of the class went stale: renamed,
// added, removed or retyped fields do; caption or required flag changes
// do not.
func (t *TypeService) UpdateFormDefinition(ctx context.Context, req UpdateFormDefinitionRequest) (*DocumentType, error) {
	if err := t.svc.ready(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	previous, err := t.svc.store.GetTypeByClassName(ctx, req.ClassName)
	if err != nil {
		return nil, err
	}

	next := *previous
	next.Fields = normalizeDefinitions(req.Fields)
	next.UpdatedAt = t.svc.now()
	removed := removedFields(previous.Fields, next.Fields)

	args := &FormDefinitionArgs{
		Type:                      &next,
		Previous:                  previous,
		RequiresRepositoryRefresh: RequiresRepositoryRefresh(previous.Fields, next.Fields),
	}
	err = t.svc.events.FormDefinitionChange.Invoke(ctx, args, func(ctx context.Context) error {
		return t.svc.store.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			updated, err := t.svc.store.updateType(ctx, tx, &next)
			if err != nil {
				return err
			}
			if len(removed) > 0 && next.IsCoupled {
				if err := t.pruneFields(ctx, tx, next.ClassName, removed, next.UpdatedAt); err != nil {
					return err
				}
			}
			args.Type = updated
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	t.svc.logger.Debug("documents.type.form_updated",
		"class_name", next.ClassName,
		"refresh", args.RequiresRepositoryRefresh,
		"removed", strings.Join(removed, ","),
	)
	return args.Type, nil
}

// RequiresRepositoryRefresh reports whether moving from previous to next
// changes the shape of serialized coupled data.
func RequiresRepositoryRefresh(previous, next []FieldDefinition) bool {
	shape := func(fields []FieldDefinition) map[string]string {
		out := make(map[string]string, len(fields))
		for _, f := range fields {
			out[strings.ToLower(f.Name)] = strings.ToLower(f.Type)
		}
		return out
	}
	before, after := shape(previous), shape(next)
	if len(before) != len(after) {
		return true
	}
	for name, kind := range before {
		if other, ok := after[name]; !ok || other != kind {
			return true
		}
	}
	return false
}

func removedFields(previous, next []FieldDefinition) []string {
	var out []string
	for _, f := range previous {
		name := strings.ToLower(f.Name)
		if !slices.ContainsFunc(next, func(n FieldDefinition) bool { return strings.EqualFold(n.Name, name) }) {
			out = append(out, name)
		}
	}
	return out
}

func normalizeDefinitions(fields []FieldDefinition) []FieldDefinition {
	out := make([]FieldDefinition, 0, len(fields))
	for _, f := range fields {
		f.Name = strings.TrimSpace(f.Name)
		f.Type = strings.TrimSpace(f.Type)
		if f.Type == "" {
			f.Type = "text"
		}
		out = append(out, f)
	}
	return out
}

// pruneFields drops the removed keys from every coupled row of className.
func (t *TypeService) pruneFields(ctx context.Context, tx bun.IDB, className string, removed []string, now time.Time) error {
	rows, err := t.svc.store.listFieldsByClass(ctx, tx, className)
	if err != nil {
		return err
	}
	for _, row := range rows {
		pruned := false
		for key := range row.Values {
			if slices.Contains(removed, strings.ToLower(key)) {
				delete(row.Values, key)
				pruned = true
			}
		}
		if !pruned {
			continue
		}
		row.UpdatedAt = now
		if _, err := tx.NewUpdate().
			Model(row).
			Column("field_values", "updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return fmt.Errorf("prune coupled data: %w", err)
		}
	}
	return nil
}
