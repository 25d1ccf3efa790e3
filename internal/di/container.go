package di

import (
	"context"
	"strings"
	"time"

	repocache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-cms-ci/internal/ci"
	"github.com/goliatone/go-cms-ci/internal/documents"
	"github.com/goliatone/go-cms-ci/internal/logging"
	"github.com/goliatone/go-cms-ci/internal/logging/console"
	"github.com/goliatone/go-cms-ci/internal/logging/gologger"
	"github.com/goliatone/go-cms-ci/internal/runtimeconfig"
	"github.com/goliatone/go-cms-ci/internal/staging"
	"github.com/goliatone/go-cms-ci/pkg/interfaces"
)

// Container wires the document services and the repository mirror
// around one database.
type Container struct {
	Config runtimeconfig.Config

	bunDB    *bun.DB
	ownsDB   bool
	clock    func() time.Time
	cacheTTL time.Duration

	loggerProvider interfaces.LoggerProvider
	cacheService   repocache.CacheService
	keySerializer  repocache.KeySerializer

	store      *documents.Store
	events     *documents.Events
	documents  *documents.Service
	taskLogger *staging.TaskLogger

	files      *ci.FileSystemStore
	repository *ci.Repository
	handlers   *ci.Handlers
}

// Option mutates the container before it is finalised.
type Option func(*Container)

// WithBunDB supplies an open database. The container does not close it.
func WithBunDB(db *bun.DB) Option {
	return func(c *Container) {
		c.bunDB = db
	}
}

// WithLoggerProvider overrides the provider built from Config.Logging.
func WithLoggerProvider(provider interfaces.LoggerProvider) Option {
	return func(c *Container) {
		c.loggerProvider = provider
	}
}

// WithCache overrides the default cache service.
func WithCache(service repocache.CacheService, serializer repocache.KeySerializer) Option {
	return func(c *Container) {
		c.cacheService = service
		c.keySerializer = serializer
	}
}

// WithClock overrides time.Now for documents, staging and the repository.
func WithClock(clock func() time.Time) Option {
	return func(c *Container) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewContainer validates cfg and builds every service it enables.
func NewContainer(cfg runtimeconfig.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{
		Config:   cfg,
		clock:    time.Now,
		cacheTTL: cfg.Cache.DefaultTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if err := c.configureLoggerProvider(); err != nil {
		return nil, err
	}
	if c.bunDB == nil {
		db, err := OpenDB(cfg, logging.ModuleLogger(c.loggerProvider, "cms.db"))
		if err != nil {
			return nil, err
		}
		c.bunDB = db
		c.ownsDB = true
	}

	c.configureCacheDefaults()
	c.configureDocuments()
	c.configureStaging()
	c.configureRepository()

	logging.ModuleLogger(c.loggerProvider, "cms").Debug("container.configured",
		"dialect", cfg.DialectName(),
		"cache", c.cacheService != nil,
		"ci", c.repository != nil,
		"staging", cfg.Staging.Enabled,
	)
	return c, nil
}

func (c *Container) configureLoggerProvider() error {
	if c.loggerProvider != nil {
		return nil
	}
	cfg := c.Config.Logging
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "gologger":
		provider, err := gologger.NewProvider(gologger.Config{
			Level:     cfg.Level,
			Format:    cfg.Format,
			AddSource: cfg.AddSource,
			Focus:     cfg.Focus,
		})
		if err != nil {
			return err
		}
		c.loggerProvider = provider
	default:
		opts := console.Options{TimeFunc: c.clock}
		if level, ok := console.ParseLevel(cfg.Level); ok {
			opts.MinLevel = &level
		}
		c.loggerProvider = console.NewProvider(opts)
	}
	return nil
}

func (c *Container) configureCacheDefaults() {
	if !c.Config.Cache.Enabled {
		return
	}

	if c.cacheService == nil {
		cfg := repocache.DefaultConfig()
		if c.cacheTTL > 0 {
			cfg.TTL = c.cacheTTL
		}
		service, err := repocache.NewCacheService(cfg)
		if err == nil {
			c.cacheService = service
		}
	}

	if c.cacheService != nil && c.keySerializer == nil {
		c.keySerializer = repocache.NewDefaultKeySerializer()
	}
}

func (c *Container) configureDocuments() {
	if c.cacheService != nil {
		c.store = documents.NewStoreWithCache(c.bunDB, c.cacheService, c.keySerializer)
	} else {
		c.store = documents.NewStore(c.bunDB)
	}
	c.events = documents.NewEvents()
	c.documents = documents.NewService(c.store, c.events,
		documents.WithLogger(logging.DocumentsLogger(c.loggerProvider)),
		documents.WithClock(c.clock),
	)
}

func (c *Container) configureStaging() {
	c.taskLogger = staging.NewTaskLogger(staging.NewTaskRepository(c.bunDB),
		staging.WithLogger(logging.StagingLogger(c.loggerProvider)),
		staging.WithClock(c.clock),
		staging.WithEnabled(c.Config.Staging.Enabled),
	)
	c.events.TaskCollectionCompleted.After(c.taskLogger.HandleTaskCollection)
}

func (c *Container) configureRepository() {
	cfg := c.Config.ContinuousIntegration
	if !cfg.Enabled {
		return
	}
	logger := logging.CILogger(c.loggerProvider)
	c.files = ci.NewFileSystemStore(strings.TrimSpace(cfg.RepositoryPath))
	c.repository = ci.NewRepository(c.store, c.files,
		ci.WithLogger(logger),
		ci.WithClock(c.clock),
		ci.WithACLs(cfg.StoreACLs),
	)
	c.handlers = ci.NewHandlers(c.repository, logger)
	c.handlers.Init(c.events)
}

// EnsureSchema creates the tables of every configured module.
func (c *Container) EnsureSchema(ctx context.Context) error {
	if err := documents.EnsureSchema(ctx, c.bunDB); err != nil {
		return err
	}
	if err := staging.EnsureSchema(ctx, c.bunDB); err != nil {
		return err
	}
	if c.repository != nil {
		return ci.EnsureSchema(ctx, c.bunDB)
	}
	return nil
}

// NewWatcher builds a watcher over the repository, or nil when CI is off.
func (c *Container) NewWatcher(opts ...ci.WatcherOption) *ci.Watcher {
	if c.repository == nil {
		return nil
	}
	opts = append([]ci.WatcherOption{ci.WithWatcherLogger(logging.CILogger(c.loggerProvider))}, opts...)
	return ci.NewWatcher(c.repository, opts...)
}

// Close releases the database when the container opened it.
func (c *Container) Close() error {
	if c == nil || c.bunDB == nil || !c.ownsDB {
		return nil
	}
	return c.bunDB.Close()
}

func (c *Container) DB() *bun.DB { return c.bunDB }

// LoggerProvider returns the provider every module logger derives from.
func (c *Container) LoggerProvider() interfaces.LoggerProvider { return c.loggerProvider }

func (c *Container) Store() *documents.Store { return c.store }

func (c *Container) Events() *documents.Events { return c.events }

// DocumentService returns the document API.
func (c *Container) DocumentService() *documents.Service { return c.documents }

// TaskLogger returns the staging task log.
func (c *Container) TaskLogger() *staging.TaskLogger { return c.taskLogger }

// Repository returns the continuous integration repository, or nil when it
// is disabled.
func (c *Container) Repository() *ci.Repository { return c.repository }

// RepositoryEnabled reports whether document changes are serialized.
func (c *Container) RepositoryEnabled() bool { return c.repository != nil }
