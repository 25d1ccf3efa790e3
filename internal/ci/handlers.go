package ci

import (
	"context"

	"github.com/google/uuid"

	"github.com/goliatone/go-cms-ci/internal/actionctx"
	"github.com/goliatone/go-cms-ci/internal/documents"
	"github.com/goliatone/go-cms-ci/internal/events"
	"github.com/goliatone/go-cms-ci/internal/logging"
	"github.com/goliatone/go-cms-ci/internal/query"
	"github.com/goliatone/go-cms-ci/pkg/interfaces"
)

// Handlers keeps the repository in step with document events.
type Handlers struct {
	repo   *Repository
	store  *documents.Store
	logger interfaces.Logger
}

// NewHandlers returns the event handlers writing to repo.
func NewHandlers(repo *Repository, logger interfaces.Logger) *Handlers {
	return &Handlers{repo: repo, store: repo.store, logger: logging.Ensure(logger)}
}

// Init subscribes the handlers to evts.
func (h *Handlers) Init(evts *documents.Events) {
	evts.Insert.After(h.afterInsert)
	evts.Update.Before(h.beforeUpdate)
	evts.Update.After(h.afterUpdate)
	evts.InsertNewCulture.Before(h.beforeInsertNewCulture)
	evts.InsertNewCulture.After(h.afterInsertNewCulture)
	evts.Delete.After(h.afterDelete)
	evts.InsertLink.After(h.afterInsertLink)
	evts.ChangeToLink.Before(h.beforeChangeToLink)
	evts.ChangeDocumentType.Before(h.beforeChangeDocumentType)
	evts.FormDefinitionChange.Before(h.beforeFormDefinitionChange)
}

func (h *Handlers) afterInsert(ctx context.Context, args *documents.InsertArgs) error {
	return h.repo.StoreDocument(ctx, args.Node)
}

// usesBulkUpdate reports whether an update renames paths shared by other
// culture versions, which a single store cannot reach.
func (h *Handlers) usesBulkUpdate(ctx context.Context, args *documents.UpdateArgs) (bool, error) {
	if !args.ParentChanged() && !args.AliasChanged() {
		return false, nil
	}
	return h.store.IsMultilingual(ctx, args.Node.Node.SiteID)
}

func (h *Handlers) beforeUpdate(ctx context.Context, args *documents.UpdateArgs) error {
	bulk, err := h.usesBulkUpdate(ctx, args)
	if err != nil || !bulk {
		return err
	}
	return h.startBulk(ctx, &args.Lifecycle, query.Eq("n.id", args.Node.NodeID()), BulkWithDescendants)
}

func (h *Handlers) afterUpdate(ctx context.Context, args *documents.UpdateArgs) error {
	bulk, err := h.usesBulkUpdate(ctx, args)
	if err != nil || bulk {
		return err
	}
	if err := h.repo.StoreDocument(ctx, args.Node); err != nil {
		return err
	}
	// Descendant units carry the name path, and a node breaking inheritance
	// changes the chain of every ACL below it.
	if args.NamePathChanged() || (args.Previous != nil && args.Previous.ACL == nil && args.Node.ACL != nil) {
		return h.repo.StoreDescendants(ctx, args.Node.Node)
	}
	return nil
}

func (h *Handlers) beforeInsertNewCulture(ctx context.Context, args *documents.NewCultureArgs) error {
	if !args.AliasChanged() {
		return nil
	}
	return h.startBulk(ctx, &args.Lifecycle, query.Eq("n.id", args.Node.NodeID()), BulkWithDescendants)
}

func (h *Handlers) afterInsertNewCulture(ctx context.Context, args *documents.NewCultureArgs) error {
	if args.AliasChanged() {
		return nil
	}
	return h.repo.StoreDocument(ctx, args.Node)
}

func (h *Handlers) afterDelete(ctx context.Context, args *documents.DeleteArgs) error {
	if args.NodeDeleted {
		return h.repo.DeleteNodes(ctx, append([]uuid.UUID{args.Node.NodeID()}, args.Removed...))
	}
	return h.repo.DeleteCultures(ctx, args.Node.NodeID(), args.Cultures)
}

// afterInsertLink writes one unit per culture version of the original, as
// published rather than as edited.
func (h *Handlers) afterInsertLink(ctx context.Context, args *documents.InsertLinkArgs) error {
	trees, err := h.repo.loader.Cultures(ctx, args.Node.Node)
	if err != nil {
		return err
	}
	for _, tree := range trees {
		if err := h.repo.StoreDocument(ctx, tree); err != nil {
			return err
		}
	}
	return nil
}

// beforeChangeToLink clears every unit of the node, then suppresses
// serialization for the rest of the conversion so the nested culture
// deletes leave the repository alone. The converted document is written
// once the operation finished.
func (h *Handlers) beforeChangeToLink(ctx context.Context, args *documents.ChangeToLinkArgs) error {
	if !actionctx.CISerializationAllowed(ctx) {
		return nil
	}
	if err := h.repo.BulkDelete(ctx, query.Eq("n.id", args.Node.NodeID())); err != nil {
		return err
	}
	scope := actionctx.NewScope(actionctx.WithoutCISerialization())
	args.UseScope(scope)
	args.CallOnDispose(scope.Dispose)
	args.CallWhenFinished(func(ctx context.Context) error {
		h.logger.Debug("ci.change_to_link.store", "node_id", args.Node.NodeID(), "to_link", args.ToLink)
		return h.repo.StoreDocument(ctx, args.Node)
	})
	return nil
}

func (h *Handlers) beforeChangeDocumentType(ctx context.Context, args *documents.ChangeTypeArgs) error {
	return h.startBulk(ctx, &args.Lifecycle, query.Eq("n.id", args.Node.NodeID()), BulkMatched)
}

func (h *Handlers) beforeFormDefinitionChange(ctx context.Context, args *documents.FormDefinitionArgs) error {
	if !args.RequiresRepositoryRefresh {
		return nil
	}
	h.logger.Info("ci.form_definition.refresh", "class_name", args.Type.ClassName)
	return h.startBulk(ctx, &args.Lifecycle, query.Eq("n.class_id", args.Type.ID), BulkMatched)
}

// startBulk captures the affected nodes before the commit and rewrites
// them once the operation finished.
func (h *Handlers) startBulk(ctx context.Context, lc *events.Lifecycle, where query.Where, scope BulkScope) error {
	bulk, err := h.repo.StartBulkUpdate(ctx, where, scope)
	if err != nil {
		return err
	}
	lc.CallWhenFinished(bulk.Finish)
	return nil
}
