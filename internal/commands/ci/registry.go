package cicmd

import (
	"context"
	"errors"
	"time"

	command "github.com/goliatone/go-command"

	"github.com/goliatone/go-cms-ci/internal/ci"
	"github.com/goliatone/go-cms-ci/internal/commands"
	"github.com/goliatone/go-cms-ci/internal/logging"
	"github.com/goliatone/go-cms-ci/pkg/interfaces"
)

const commandsLoggerName = "cms.commands.ci"

// CommandRegistry is the minimal registration contract expected when wiring command handlers.
type CommandRegistry interface {
	RegisterCommand(handler any) error
}

// CronRegistrar matches the function signature used by go-command registries.
type CronRegistrar func(command.HandlerConfig, any) error

// HandlerSet groups the repository command handlers.
type HandlerSet struct {
	StoreAll *StoreAllHandler
	Status   *StatusHandler
}

// Options configures RegisterCommands.
type Options struct {
	Gates        FeatureGates
	Timeout      time.Duration
	StoreAllCron string
}

// RegisterCommands builds the repository handlers and registers them with
// reg when it is not nil.
func RegisterCommands(reg CommandRegistry, repo *ci.Repository, provider interfaces.LoggerProvider, opts Options) (*HandlerSet, error) {
	if repo == nil {
		return nil, errors.New("ci command registration: repository is nil")
	}

	logger := logging.WithFields(logging.ModuleLogger(provider, commandsLoggerName), map[string]any{
		"component": "command",
	})
	set := &HandlerSet{
		StoreAll: NewStoreAllHandler(repo, logger, opts.Gates,
			StoreAllWithCronExpression(opts.StoreAllCron),
			StoreAllWithHandlerOptions(commands.WithTimeout[StoreAllCommand](opts.Timeout)),
		),
		Status: NewStatusHandler(repo, logger, opts.Gates,
			commands.WithTimeout[StatusCommand](opts.Timeout),
		),
	}

	if reg != nil {
		if err := reg.RegisterCommand(set.StoreAll); err != nil {
			return nil, err
		}
		if err := reg.RegisterCommand(set.Status); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// RegisterStoreAllCron schedules handler through reg using its own cron
// options. A nil registrar or handler is a no-op.
func RegisterStoreAllCron(reg CronRegistrar, handler *StoreAllHandler) error {
	if reg == nil || handler == nil {
		return nil
	}
	return reg(handler.CronOptions(), func() error {
		return handler.Execute(context.Background(), StoreAllCommand{})
	})
}
