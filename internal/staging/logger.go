package staging

import (
	"context"
	"errors"
	"fmt"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-cms-ci/internal/actionctx"
	"github.com/goliatone/go-cms-ci/internal/logging"
	"github.com/goliatone/go-cms-ci/pkg/interfaces"
)

// NewTaskRepository returns the go-repository-bun repository for tasks.
func NewTaskRepository(db *bun.DB) repository.Repository[*Task] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*Task]{
		NewRecord: func() *Task { return &Task{} },
		GetID: func(t *Task) uuid.UUID {
			return t.ID
		},
		SetID: func(t *Task, id uuid.UUID) {
			t.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(t *Task) string {
			return t.ID.String()
		},
	})
}

// TaskLogger persists task collections.
type TaskLogger struct {
	repo    repository.Repository[*Task]
	enabled bool
	logger  interfaces.Logger
	now     func() time.Time
	id      func() uuid.UUID
}

// Option configures a TaskLogger.
type Option func(*TaskLogger)

// WithLogger sets the logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(l *TaskLogger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock overrides the clock.
func WithClock(clock func() time.Time) Option {
	return func(l *TaskLogger) {
		if clock != nil {
			l.now = clock
		}
	}
}

// WithEnabled toggles persistence. A disabled logger drops every task.
func WithEnabled(enabled bool) Option {
	return func(l *TaskLogger) { l.enabled = enabled }
}

// NewTaskLogger builds a logger storing tasks through repo.
func NewTaskLogger(repo repository.Repository[*Task], opts ...Option) *TaskLogger {
	l := &TaskLogger{
		repo:    repo,
		enabled: true,
		logger:  logging.NoOp(),
		now:     func() time.Time { return time.Now().UTC() },
		id:      uuid.New,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// LogTasks stores tasks unless staging is disabled for ctx.
func (l *TaskLogger) LogTasks(ctx context.Context, tasks []*Task) error {
	if l == nil || !l.enabled || len(tasks) == 0 {
		return nil
	}
	if !actionctx.StagingAllowed(ctx) {
		l.logger.Debug("staging.tasks.suppressed", "count", len(tasks))
		return nil
	}
	if l.repo == nil {
		return errors.New("staging: task repository not configured")
	}

	for _, task := range tasks {
		if task == nil {
			continue
		}
		if task.ID == uuid.Nil {
			task.ID = l.id()
		}
		if task.CreatedAt.IsZero() {
			task.CreatedAt = l.now()
		}
		if _, err := l.repo.Create(ctx, task); err != nil {
			return fmt.Errorf("staging: log %s for %s: %w", task.Type, task.AliasPath, err)
		}
		l.logger.Debug("staging.task.logged",
			"task_type", string(task.Type),
			"node_id", task.NodeID,
			"culture", task.Culture,
		)
	}
	return nil
}

// HandleTaskCollection adapts LogTasks to the task collection event.
func (l *TaskLogger) HandleTaskCollection(ctx context.Context, args *TaskCollectionArgs) error {
	if args == nil {
		return nil
	}
	return l.LogTasks(ctx, args.Tasks)
}

// List returns the tasks of a site, oldest first.
func (l *TaskLogger) List(ctx context.Context, siteID uuid.UUID) ([]*Task, error) {
	if l == nil || l.repo == nil {
		return nil, errors.New("staging: task repository not configured")
	}
	records, _, err := l.repo.List(ctx, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.site_id = ?", siteID).
			OrderExpr("?TableAlias.created_at ASC").
			OrderExpr("?TableAlias.id ASC")
	}), repository.SelectPaginate(0, 0))
	if err != nil {
		return nil, fmt.Errorf("staging: list tasks: %w", err)
	}
	return records, nil
}

// EnsureSchema creates the staging_tasks table.
func EnsureSchema(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateTable().Model((*Task)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("staging: create staging_tasks: %w", err)
	}
	return nil
}
