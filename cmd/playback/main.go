// Command playback loads airspace auction snapshots and plays them back
// over gRPC, HTTP and websocket.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/airspace-playback/internal/config"
	"github.com/signalsfoundry/airspace-playback/internal/logging"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "playback",
		Short:         "Play back airspace auction simulations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level from the config")

	root.AddCommand(
		newServeCmd(opts),
		newInspectCmd(opts),
		newPlayCmd(opts),
		newImportCmd(opts),
		newExportCmd(opts),
		newClearCmd(opts),
	)
	return root
}

// load reads the config and builds the logger it describes.
func (o *rootOptions) load() (config.Config, logging.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
		if err := cfg.Validate(); err != nil {
			return config.Config{}, nil, err
		}
	}
	return cfg, cfg.Logger(), nil
}
