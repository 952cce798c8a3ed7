package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Phusssss/plant-disease-detection/cmd/serve"
)

// RootCommand creates and returns the root command
func RootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "plantdiag",
		Short:   "Plant disease diagnosis service",
		Version: version,
	}

	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		cobra.CheckErr(err)
	}

	rootCmd.AddCommand(serve.Command(version))

	return rootCmd
}
