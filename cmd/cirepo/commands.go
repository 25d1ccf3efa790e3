package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-command/dispatcher"
	"github.com/spf13/cobra"

	cms "github.com/goliatone/go-cms-ci"
	cmscommands "github.com/goliatone/go-cms-ci/commands"
	"github.com/goliatone/go-cms-ci/internal/ci"
	cicmd "github.com/goliatone/go-cms-ci/internal/commands/ci"
)

var errDriftDetected = errors.New("repository drift detected")

func newSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create the document, staging and repository tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			module, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer module.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "schema ready")
			return nil
		},
	}
}

func newStoreAllCmd(a *app) *cobra.Command {
	var site string
	cmd := &cobra.Command{
		Use:   "store-all",
		Short: "Rewrite every unit from the database and drop orphaned files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			module, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer module.Close()

			handlers, err := handlerSet(module)
			if err != nil {
				return err
			}
			sub := dispatcher.SubscribeCommand(handlers.StoreAll)
			defer sub.Unsubscribe()

			return dispatcher.Dispatch(cmd.Context(), cicmd.StoreAllCommand{
				SiteName: site,
				ResultCallback: func(result ci.StoreAllResult) {
					fmt.Fprintf(cmd.OutOrStdout(), "nodes=%d units=%d removed=%d\n", result.Nodes, result.Units, result.Removed)
				},
			})
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "limit the rebuild to one site")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	var failOnDrift bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "List units edited, removed or added outside the CMS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			module, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer module.Close()

			handlers, err := handlerSet(module)
			if err != nil {
				return err
			}
			sub := dispatcher.SubscribeCommand(handlers.Status)
			defer sub.Unsubscribe()

			var drifts []ci.Drift
			err = dispatcher.Dispatch(cmd.Context(), cicmd.StatusCommand{
				ResultCallback: func(found []ci.Drift) { drifts = found },
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(drifts) == 0 {
				fmt.Fprintln(out, "repository clean")
				return nil
			}
			for _, drift := range drifts {
				printDrift(cmd, drift)
			}
			if failOnDrift {
				return fmt.Errorf("%w: %d unit(s)", errDriftDetected, len(drifts))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&failOnDrift, "fail-on-drift", false, "exit non-zero when drift is found")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Report out-of-band edits to the repository until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			module, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer module.Close()

			watcher := module.Watcher(ci.WithDebounce(debounce))
			if watcher == nil {
				return cicmd.ErrRepositoryDisabled
			}
			drifts := watcher.Subscribe(ctx)
			if err := watcher.Start(ctx); err != nil {
				return err
			}
			defer watcher.Stop()

			fmt.Fprintln(cmd.OutOrStdout(), "watching repository")
			for {
				select {
				case <-ctx.Done():
					return nil
				case drift, ok := <-drifts:
					if !ok {
						return nil
					}
					printDrift(cmd, drift)
				}
			}
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "quiet period before a changed file is inspected")
	return cmd
}

func handlerSet(module *cms.Module) (*cicmd.HandlerSet, error) {
	result, err := cmscommands.RegisterContainerCommands(module.Container(), cmscommands.RegistrationOptions{})
	if err != nil {
		return nil, err
	}
	return result.Repository, nil
}

func printDrift(cmd *cobra.Command, drift ci.Drift) {
	fmt.Fprintf(cmd.OutOrStdout(), "%-9s %s\n", drift.Kind, drift.Location)
}
