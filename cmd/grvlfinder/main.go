package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jossmos64/GRVLFinder-sub000/internal/config"
)

var (
	cfg        *config.Config
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "grvlfinder",
	Short: "Gravel road quality analysis and routing",
	Long:  "Classifies GPS traces by quality of OSM roads they follow and plans routes preferring good gravel roads.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return errors.Wrap(err, "Can't load config")
		}
		cfg = c
		if verbose {
			cfg.Log.Level = "debug"
			cfg.Log.Format = "console"
		}
		if _, err := config.InitLogger(cfg.Log); err != nil {
			return errors.Wrap(err, "Can't init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ./grvlfinder.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to console")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
