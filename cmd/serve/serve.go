// Package serve implements the command that runs the HTTP service.
package serve

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Phusssss/plant-disease-detection/internal/api"
	"github.com/Phusssss/plant-disease-detection/internal/conf"
	"github.com/Phusssss/plant-disease-detection/internal/datastore"
	"github.com/Phusssss/plant-disease-detection/internal/inference"
	"github.com/Phusssss/plant-disease-detection/internal/logging"
	"github.com/Phusssss/plant-disease-detection/internal/observability"
)

// Command returns the serve subcommand.
func Command(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the diagnosis HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(version)
		},
	}

	cmd.Flags().StringP("port", "p", "8000", "Port for the web server")
	if err := viper.BindPFlag("webserver.port", cmd.Flags().Lookup("port")); err != nil {
		cobra.CheckErr(err)
	}
	return cmd
}

func run(version string) error {
	settings, err := conf.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	settings.Version = version

	if settings.Debug {
		logging.Init(slog.LevelDebug)
	}
	logging.Debug("Configuration loaded", "config_file", viper.ConfigFileUsed())

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}

	store := datastore.New(settings, metrics.Datastore)
	if store == nil {
		return fmt.Errorf("no datastore backend enabled")
	}
	if _, ok := store.(*datastore.FileStore); ok {
		logging.Warn("File output backend enabled, plant catalog changes are not persisted across restarts")
	}
	// Store connectivity is a fatal startup condition, not a per-request one.
	if err := store.Open(); err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error("Failed to close datastore", "error", err)
		}
	}()

	client := inference.New(settings)
	defer client.Close()

	controller := api.New(settings, store, client, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info("Starting plant disease diagnosis service",
		"version", version,
		"port", settings.WebServer.Port)

	return controller.Start(ctx)
}
