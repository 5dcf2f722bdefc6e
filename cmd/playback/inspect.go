package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/airspace-playback/core"
	"github.com/signalsfoundry/airspace-playback/internal/logging"
	"github.com/signalsfoundry/airspace-playback/internal/maptile"
	"github.com/signalsfoundry/airspace-playback/internal/session"
	"github.com/signalsfoundry/airspace-playback/internal/store"
)

func newInspectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <snapshot>",
		Short: "Load a snapshot and print a summary of it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, err := opts.load()
			if err != nil {
				return err
			}
			bundle, err := store.ReadDir(args[0])
			if err != nil {
				return err
			}
			sess := session.New(session.WithLogger(log), session.WithSelectAll())
			defer sess.Close()
			if err := sess.Load(cmd.Context(), bundle); err != nil {
				return err
			}
			area, hasArea, err := maptile.ParseArea(bundle.Config)
			if err != nil {
				log.Warn(cmd.Context(), "ignoring map config", logging.Err(err))
				hasArea = false
			}
			return sess.Read(func(sim *core.Simulation) error {
				return writeSummary(cmd.OutOrStdout(), sim, area, hasArea)
			})
		},
	}
}

func writeSummary(out io.Writer, sim *core.Simulation, area maptile.Area, hasArea bool) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "name:\t%s\n", sim.Name)
	if sim.Description != "" {
		fmt.Fprintf(tw, "description:\t%s\n", sim.Description)
	}
	fmt.Fprintf(tw, "dimensions:\t%dx%dx%d, %d ticks\n",
		sim.Dimensions.X, sim.Dimensions.Y, sim.Dimensions.Z, sim.Dimensions.T)
	fmt.Fprintf(tw, "owners:\t%d\n", len(sim.Owners()))
	fmt.Fprintf(tw, "agents:\t%d\n", len(sim.Agents()))
	fmt.Fprintf(tw, "blockers:\t%d\n", len(sim.Blockers()))
	fmt.Fprintf(tw, "indexed ticks:\t%d\n", sim.IndexedTicks())
	fmt.Fprintf(tw, "max tick:\t%d\n", sim.MaxTick())
	if hasArea {
		d := area.Dimensions()
		fmt.Fprintf(tw, "map:\t%d tiles, %.0f x %.0f cells\n", len(area.Tiles), d.X, d.Z)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OWNER\tNAME\tAGENTS\tTIME IN AIR")
	for _, o := range sim.Owners() {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", o.ID, o.Name, len(o.Agents), o.TotalTimeInAir())
	}
	return tw.Flush()
}
