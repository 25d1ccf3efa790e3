package staging_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-cms-ci/internal/actionctx"
	"github.com/goliatone/go-cms-ci/internal/events"
	"github.com/goliatone/go-cms-ci/internal/staging"
	"github.com/goliatone/go-cms-ci/pkg/testsupport"
)

func newLogger(t *testing.T, opts ...staging.Option) *staging.TaskLogger {
	t.Helper()
	db := testsupport.NewBunDB(t)
	if err := staging.EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return staging.NewTaskLogger(staging.NewTaskRepository(db), opts...)
}

func TestTaskLoggerPersistsTaskCollection(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	logger := newLogger(t, staging.WithClock(func() time.Time { return now }))

	siteID := uuid.New()
	nodeID := uuid.New()
	handler := events.NewHandler[*staging.TaskCollectionArgs]("staging.task_collection_completed")
	handler.After(logger.HandleTaskCollection)

	args := &staging.TaskCollectionArgs{Tasks: []*staging.Task{
		staging.NewTask(staging.TaskMoveDocument, siteID, nodeID, "en-US", "/items"),
	}}
	if err := handler.Invoke(ctx, args, nil); err != nil {
		t.Fatalf("invoke: %v", err)
	}

	tasks, err := logger.List(ctx, siteID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected one task, got %d", len(tasks))
	}
	got := tasks[0]
	if got.Type != staging.TaskMoveDocument || got.NodeID != nodeID {
		t.Fatalf("unexpected task %+v", got)
	}
	if got.Title != "Move document '/items' (en-US)" {
		t.Fatalf("unexpected title %q", got.Title)
	}
}

func TestTaskLoggerHonoursSuppressionScope(t *testing.T) {
	ctx := context.Background()
	logger := newLogger(t)
	siteID := uuid.New()

	scope := actionctx.NewScope(actionctx.WithoutStagingTasks())
	scoped := scope.Attach(ctx)
	if err := logger.LogTasks(scoped, []*staging.Task{
		staging.NewTask(staging.TaskCreateDocument, siteID, uuid.New(), "en-US", "/a"),
	}); err != nil {
		t.Fatalf("log: %v", err)
	}

	tasks, err := logger.List(ctx, siteID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected suppressed tasks to be dropped, got %d", len(tasks))
	}
}

func TestDisabledTaskLoggerDropsTasks(t *testing.T) {
	ctx := context.Background()
	logger := newLogger(t, staging.WithEnabled(false))
	siteID := uuid.New()

	if err := logger.LogTasks(ctx, []*staging.Task{
		staging.NewTask(staging.TaskDeleteDocument, siteID, uuid.New(), "", "/a"),
	}); err != nil {
		t.Fatalf("log: %v", err)
	}
	tasks, _ := logger.List(ctx, siteID)
	if len(tasks) != 0 {
		t.Fatalf("expected no tasks, got %d", len(tasks))
	}
}
