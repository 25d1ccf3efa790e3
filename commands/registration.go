package commands

import (
	"errors"

	command "github.com/goliatone/go-command"

	cicmd "github.com/goliatone/go-cms-ci/internal/commands/ci"
	"github.com/goliatone/go-cms-ci/internal/di"
	"github.com/goliatone/go-cms-ci/pkg/interfaces"
)

// CommandRegistry records command handlers so hosts can expose them via CLI or cron.
type CommandRegistry interface {
	RegisterCommand(handler any) error
}

// CommandDispatcher subscribes command handlers to a dispatcher implementation.
type CommandDispatcher interface {
	RegisterCommand(handler any) (CommandSubscription, error)
}

// CommandSubscription allows hosts to tear down dispatcher subscriptions.
type CommandSubscription interface {
	Unsubscribe()
}

// CronRegistrar registers command handlers with a cron scheduler.
type CronRegistrar func(command.HandlerConfig, any) error

// RegistrationOptions configures how handlers are registered during construction.
type RegistrationOptions struct {
	Registry       CommandRegistry
	Dispatcher     CommandDispatcher
	CronRegistrar  CronRegistrar
	LoggerProvider interfaces.LoggerProvider
	// StoreAllCron overrides Config.Commands.StoreAllCron.
	StoreAllCron string
}

// RegistrationResult captures the constructed command handlers and any dispatcher subscriptions.
type RegistrationResult struct {
	Handlers      []any
	Repository    *cicmd.HandlerSet
	Subscriptions []CommandSubscription
}

// RegisterContainerCommands builds the command handlers exposed by container
// and registers them with the optional registry, dispatcher and cron
// integrations. The store-all handler is scheduled only when a cron
// expression is configured.
func RegisterContainerCommands(container *di.Container, opts RegistrationOptions) (*RegistrationResult, error) {
	result := &RegistrationResult{
		Handlers:      make([]any, 0),
		Subscriptions: make([]CommandSubscription, 0),
	}
	if container == nil {
		return result, nil
	}
	if !container.RepositoryEnabled() {
		return result, errors.New("no command handlers registered; continuous integration is disabled")
	}

	cfg := container.Config
	provider := opts.LoggerProvider
	if provider == nil {
		provider = container.LoggerProvider()
	}
	cron := opts.StoreAllCron
	if cron == "" {
		cron = cfg.Commands.StoreAllCron
	}

	set, err := cicmd.RegisterCommands(nil, container.Repository(), provider, cicmd.Options{
		Gates:        cicmd.FeatureGates{RepositoryEnabled: container.RepositoryEnabled},
		Timeout:      cfg.Commands.Timeout,
		StoreAllCron: cron,
	})
	if err != nil {
		return result, err
	}
	result.Repository = set

	var errs error
	for _, handler := range []any{set.StoreAll, set.Status} {
		result.Handlers = append(result.Handlers, handler)

		if opts.Registry != nil {
			if err := opts.Registry.RegisterCommand(handler); err != nil {
				errs = errors.Join(errs, err)
			}
		}

		if opts.Dispatcher != nil {
			subscription, err := opts.Dispatcher.RegisterCommand(handler)
			if err != nil {
				errs = errors.Join(errs, err)
			} else if subscription != nil {
				result.Subscriptions = append(result.Subscriptions, subscription)
			}
		}
	}

	if opts.CronRegistrar != nil && cron != "" {
		if err := cicmd.RegisterStoreAllCron(cicmd.CronRegistrar(opts.CronRegistrar), set.StoreAll); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return result, errs
}
