package main

import (
	"log/slog"

	"github.com/Phusssss/plant-disease-detection/cmd"
	"github.com/Phusssss/plant-disease-detection/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	logging.Init(slog.LevelInfo)

	rootCmd := cmd.RootCommand(version)
	if err := rootCmd.Execute(); err != nil {
		logging.Fatal("Command execution failed", "error", err)
	}
}
