package cms

import (
	"context"

	"github.com/google/uuid"

	"github.com/goliatone/go-cms-ci/internal/ci"
	"github.com/goliatone/go-cms-ci/internal/di"
	"github.com/goliatone/go-cms-ci/internal/documents"
	"github.com/goliatone/go-cms-ci/internal/staging"
)

// DocumentService exports the document API.
type DocumentService = *documents.Service

// DocumentTypeService exports the document type registry.
type DocumentTypeService = *documents.TypeService

// Repository exports the continuous integration repository.
type Repository = *ci.Repository

// Watcher exports the repository drift watcher.
type Watcher = *ci.Watcher

// Request and result types accepted by the document API.
type (
	CreateSiteRequest           = documents.CreateSiteRequest
	InsertRequest               = documents.InsertRequest
	UpdateRequest               = documents.UpdateRequest
	DeleteRequest               = documents.DeleteRequest
	InsertLinkRequest           = documents.InsertLinkRequest
	ConvertToLinkRequest        = documents.ConvertToLinkRequest
	ChangeTypeRequest           = documents.ChangeTypeRequest
	SetPermissionsRequest       = documents.SetPermissionsRequest
	RegisterTypeRequest         = documents.RegisterTypeRequest
	UpdateFormDefinitionRequest = documents.UpdateFormDefinitionRequest
	TreeNode                    = documents.TreeNode
	Drift                       = ci.Drift
	StoreAllResult              = ci.StoreAllResult
	StagingTask                 = staging.Task
)

// Module represents the top level runtime façade.
type Module struct {
	container *di.Container
}

// New constructs a module using the provided configuration and optional DI overrides.
func New(cfg Config, opts ...di.Option) (*Module, error) {
	container, err := di.NewContainer(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Module{container: container}, nil
}

// Container exposes the underlying DI container for advanced integrations.
func (m *Module) Container() *di.Container {
	return m.container
}

// EnsureSchema creates the tables the configured modules need.
func (m *Module) EnsureSchema(ctx context.Context) error {
	return m.container.EnsureSchema(ctx)
}

// Documents returns the document API.
func (m *Module) Documents() DocumentService {
	return m.container.DocumentService()
}

// DocumentTypes returns the document type registry.
func (m *Module) DocumentTypes() DocumentTypeService {
	return m.container.DocumentService().Types()
}

// Events returns the document event hub. Hosts may subscribe their own
// handlers next to the repository ones.
func (m *Module) Events() *documents.Events {
	return m.container.Events()
}

// Repository returns the repository, or nil when continuous integration is disabled.
func (m *Module) Repository() Repository {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Repository()
}

// Watcher builds a drift watcher. It returns nil when continuous integration is disabled.
func (m *Module) Watcher(opts ...ci.WatcherOption) Watcher {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.NewWatcher(opts...)
}

// StagingTasks lists the staging log of a site.
func (m *Module) StagingTasks(ctx context.Context, siteID uuid.UUID) ([]*StagingTask, error) {
	return m.container.TaskLogger().List(ctx, siteID)
}

// Close releases resources the module opened.
func (m *Module) Close() error {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Close()
}
