package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/airspace-playback/core"
	"github.com/signalsfoundry/airspace-playback/internal/config"
	"github.com/signalsfoundry/airspace-playback/internal/logging"
	"github.com/signalsfoundry/airspace-playback/internal/store"
)

func openStore(cfg config.Config, log logging.Logger) (*store.Store, error) {
	return store.Open(store.Options{Path: cfg.Store.Path, InMemory: cfg.Store.InMemory, Logger: log})
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <snapshot>",
		Short: "Validate a snapshot and save it as the stored bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			bundle, err := store.ReadDir(args[0])
			if err != nil {
				return err
			}
			snap, err := core.DecodeSnapshot(bundle.SnapshotInput())
			if err != nil {
				return err
			}
			sim, err := core.NewSimulation(snap, nil)
			if err != nil {
				return err
			}

			st, err := openStore(cfg, log)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Persist(cmd.Context(), bundle); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %q: %d agents, %d blockers\n", sim.Name, len(sim.Agents()), len(sim.Blockers()))
			return nil
		},
	}
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <dir>",
		Short: "Write the stored bundle to a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			st, err := openStore(cfg, log)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Export(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", args[0])
			return nil
		},
	}
}

func newClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the stored bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			st, err := openStore(cfg, log)
			if err != nil {
				return err
			}
			defer st.Close()
			return st.Clear(cmd.Context())
		},
	}
}
