package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	cms "github.com/goliatone/go-cms-ci"
)

type app struct {
	configPath string
	envFile    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "cirepo",
		Short: "Mirror CMS documents into a file system repository",
		Long: `cirepo keeps the continuous integration repository in step with the
document database. Every command reads cms.yaml (or --config) and the
CMSCI_* environment, optionally seeded from a .env file.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "cms.yaml", "YAML configuration file; missing files fall back to defaults")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading CMSCI_* variables")

	root.AddCommand(
		newSchemaCmd(a),
		newStoreAllCmd(a),
		newStatusCmd(a),
		newWatchCmd(a),
	)
	return root
}

// open loads configuration and returns a module with its schema in place.
func (a *app) open(ctx context.Context) (*cms.Module, error) {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", a.envFile, err)
		}
	}

	cfg, err := cms.LoadConfig(a.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	module, err := cms.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := module.EnsureSchema(ctx); err != nil {
		_ = module.Close()
		return nil, err
	}
	return module, nil
}
