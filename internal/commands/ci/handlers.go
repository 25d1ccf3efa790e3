package cicmd

import (
	"context"
	"strings"

	command "github.com/goliatone/go-command"

	"github.com/goliatone/go-cms-ci/internal/ci"
	"github.com/goliatone/go-cms-ci/internal/commands"
	"github.com/goliatone/go-cms-ci/internal/logging"
	"github.com/goliatone/go-cms-ci/pkg/interfaces"
)

// Rebuilder rewrites the repository from the database.
type Rebuilder interface {
	StoreAll(ctx context.Context, siteName string) (ci.StoreAllResult, error)
}

// Inspector reports where the repository and its metadata disagree.
type Inspector interface {
	Status(ctx context.Context) ([]ci.Drift, error)
}

// StoreAllHandler runs a full repository rebuild.
type StoreAllHandler struct {
	inner      *commands.Handler[StoreAllCommand]
	cronConfig command.HandlerConfig
}

// StoreAllOption customises the store-all handler.
type StoreAllOption func(*StoreAllHandler, *[]commands.HandlerOption[StoreAllCommand])

// StoreAllWithCronExpression schedules the rebuild, e.g. "@daily".
func StoreAllWithCronExpression(expression string) StoreAllOption {
	return func(h *StoreAllHandler, _ *[]commands.HandlerOption[StoreAllCommand]) {
		if trimmed := strings.TrimSpace(expression); trimmed != "" {
			h.cronConfig.Expression = trimmed
		}
	}
}

// StoreAllWithHandlerOptions forwards options to the shared command handler.
func StoreAllWithHandlerOptions(opts ...commands.HandlerOption[StoreAllCommand]) StoreAllOption {
	return func(_ *StoreAllHandler, dst *[]commands.HandlerOption[StoreAllCommand]) {
		*dst = append(*dst, opts...)
	}
}

// NewStoreAllHandler constructs a handler wired to repo.
func NewStoreAllHandler(repo Rebuilder, logger interfaces.Logger, gates FeatureGates, opts ...StoreAllOption) *StoreAllHandler {
	exec := func(ctx context.Context, msg StoreAllCommand) error {
		if repo == nil || !gates.repositoryEnabled() {
			return ErrRepositoryDisabled
		}
		result, err := repo.StoreAll(ctx, strings.TrimSpace(msg.SiteName))
		if err != nil {
			return err
		}
		commands.RecordResult(ctx, "nodes", result.Nodes)
		commands.RecordResult(ctx, "units", result.Units)
		commands.RecordResult(ctx, "removed", result.Removed)
		if msg.ResultCallback != nil {
			msg.ResultCallback(result)
		}
		return nil
	}

	h := &StoreAllHandler{cronConfig: command.HandlerConfig{Expression: "@daily"}}
	handlerOpts := []commands.HandlerOption[StoreAllCommand]{
		commands.WithLogger[StoreAllCommand](logger),
		commands.WithOperation[StoreAllCommand]("ci.store_all"),
		commands.WithTimeout[StoreAllCommand](0),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h, &handlerOpts)
		}
	}
	h.inner = commands.NewHandler[StoreAllCommand](exec, handlerOpts...)
	return h
}

// Execute satisfies command.Commander[StoreAllCommand].
func (h *StoreAllHandler) Execute(ctx context.Context, msg StoreAllCommand) error {
	return h.inner.Execute(ctx, msg)
}

// CronHandler satisfies command.CronCommand.
func (h *StoreAllHandler) CronHandler() func() error {
	return func() error {
		return h.Execute(context.Background(), StoreAllCommand{})
	}
}

// CronOptions satisfies command.CronCommand.
func (h *StoreAllHandler) CronOptions() command.HandlerConfig {
	return h.cronConfig
}

// CLIHandler exposes the handler to CLI integrations.
func (h *StoreAllHandler) CLIHandler() any {
	return h
}

// CLIOptions describes the CLI metadata for the rebuild.
func (h *StoreAllHandler) CLIOptions() command.CLIConfig {
	return command.CLIConfig{
		Path:        []string{"ci", "store-all"},
		Group:       "ci",
		Description: "Rewrite the repository from the database and drop orphaned units",
	}
}

// StatusHandler reports repository drift.
type StatusHandler struct {
	inner *commands.Handler[StatusCommand]
}

// NewStatusHandler constructs a handler wired to repo.
func NewStatusHandler(repo Inspector, logger interfaces.Logger, gates FeatureGates, opts ...commands.HandlerOption[StatusCommand]) *StatusHandler {
	exec := func(ctx context.Context, msg StatusCommand) error {
		if repo == nil || !gates.repositoryEnabled() {
			return ErrRepositoryDisabled
		}
		drifts, err := repo.Status(ctx)
		if err != nil {
			return err
		}
		commands.RecordResult(ctx, "drift", len(drifts))
		if len(drifts) > 0 {
			logging.Ensure(logger).Warn("ci.command.status.drift", "count", len(drifts))
		}
		if msg.ResultCallback != nil {
			msg.ResultCallback(drifts)
		}
		return nil
	}

	handlerOpts := []commands.HandlerOption[StatusCommand]{
		commands.WithLogger[StatusCommand](logger),
		commands.WithOperation[StatusCommand]("ci.status"),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &StatusHandler{
		inner: commands.NewHandler[StatusCommand](exec, handlerOpts...),
	}
}

// Execute satisfies command.Commander[StatusCommand].
func (h *StatusHandler) Execute(ctx context.Context, msg StatusCommand) error {
	return h.inner.Execute(ctx, msg)
}

// CLIHandler exposes the handler to CLI integrations.
func (h *StatusHandler) CLIHandler() any {
	return h
}

// CLIOptions describes the CLI metadata for the drift report.
func (h *StatusHandler) CLIOptions() command.CLIConfig {
	return command.CLIConfig{
		Path:        []string{"ci", "status"},
		Group:       "ci",
		Description: "List units that were edited, removed or added outside the CMS",
	}
}
