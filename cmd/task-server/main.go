package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"taskkeeper/internal/config"
	"taskkeeper/internal/settings"
	"taskkeeper/internal/storage"
	"taskkeeper/internal/tasks"

	"github.com/spf13/cobra"
)

// app — зависимости, собранные один раз при старте и переданные явно.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	store    *tasks.Store
	settings *settings.Service
	close    func() error
}

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "task-server",
		Short:         "Local task store: HTTP bridge for the UI and a small CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default ./taskkeeper.yaml)")

	root.AddCommand(
		newServeCmd(),
		newAddCmd(),
		newListCmd(),
		newToggleCmd(),
		newRemoveCmd(),
		newStatsCmd(),
		newClearCmd(),
	)
	return root
}

// newApp читает конфигурацию, открывает бэкенд и собирает сервисы.
func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := log.New(os.Stderr, "taskkeeper ", log.LstdFlags)

	backend, closeFn, err := openBackend(cfg.Storage)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Tasks.TimeLocation()
	if err != nil {
		_ = closeFn()
		return nil, err
	}

	store := tasks.NewStore(backend,
		tasks.WithKey(cfg.Storage.Key),
		tasks.WithLocation(loc),
		tasks.WithUpcomingDays(cfg.Tasks.UpcomingDays),
		tasks.WithLogger(logger),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		settings: settings.NewService(backend, logger, func(ctx context.Context) error {
			return store.ClearAll(ctx).Err()
		}),
		close:    closeFn,
	}, nil
}

func openBackend(cfg config.StorageConfig) (storage.Backend, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case config.DriverMemory:
		return storage.NewMemoryBackend(), noop, nil
	case config.DriverFile:
		fb, err := storage.NewFileBackend(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return fb, noop, nil
	case config.DriverPostgres:
		gb, err := storage.OpenPostgres(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return gb, gb.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
