package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/airspace-playback/core"
	"github.com/signalsfoundry/airspace-playback/internal/logging"
	"github.com/signalsfoundry/airspace-playback/internal/session"
	"github.com/signalsfoundry/airspace-playback/internal/store"
	"github.com/signalsfoundry/airspace-playback/timectrl"
)

type playOptions struct {
	rate        float64
	from        int
	to          int
	accelerated bool
	focus       string
}

func newPlayCmd(opts *rootOptions) *cobra.Command {
	po := playOptions{to: -1}
	cmd := &cobra.Command{
		Use:   "play <snapshot>",
		Short: "Step through a snapshot tick by tick and print the view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("rate") {
				po.rate = cfg.Playback.TicksPerSecond
			}
			bundle, err := store.ReadDir(args[0])
			if err != nil {
				return err
			}
			sessOpts := []session.Option{session.WithLogger(log), session.WithSelectAll()}
			if cfg.Playback.ActiveOnlyFocus {
				sessOpts = append(sessOpts, session.WithActiveOnlyFocus())
			}
			sess := session.New(sessOpts...)
			defer sess.Close()
			if err := sess.Load(cmd.Context(), bundle); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return play(ctx, sess, po, cmd.OutOrStdout(), log)
		},
	}
	cmd.Flags().Float64Var(&po.rate, "rate", 0, "ticks per second (defaults to playback.ticks_per_second)")
	cmd.Flags().IntVar(&po.from, "from", 0, "first tick")
	cmd.Flags().IntVar(&po.to, "to", -1, "last tick, -1 for the end of the timeline")
	cmd.Flags().BoolVar(&po.accelerated, "accelerated", false, "step as fast as possible")
	cmd.Flags().StringVar(&po.focus, "focus", "", "agent to keep in focus")
	return cmd
}

// play drives the session with a timectrl.Player and writes one line per
// tick plus one per focus event.
func play(ctx context.Context, sess *session.Session, po playOptions, out io.Writer, log logging.Logger) error {
	end := po.to
	if end < 0 {
		v, err := sess.View()
		if err != nil {
			return err
		}
		end = v.MaxTick
	}
	if end < po.from {
		end = po.from
	}

	var mu sync.Mutex
	unsubscribe := sess.Bus().Subscribe(func(e core.Event) {
		if e.Type == core.EventTickChanged || e.Type == core.EventAgentsSelected {
			return
		}
		msg := session.NewEventMessage(e)
		mu.Lock()
		defer mu.Unlock()
		switch {
		case msg.Location != nil:
			fmt.Fprintf(out, "  %s %s at (%.1f, %.1f, %.1f)\n", msg.Type, msg.Agent, msg.Location.X, msg.Location.Y, msg.Location.Z)
		default:
			fmt.Fprintf(out, "  %s %s\n", msg.Type, msg.Agent)
		}
	})
	defer unsubscribe()

	mode := timectrl.RealTime
	if po.accelerated {
		mode = timectrl.Accelerated
	}
	player := timectrl.NewPlayer(po.from, end, timectrl.IntervalForRate(po.rate), mode)

	var stepErr error
	var once sync.Once
	focused := false
	player.AddListener(func(tick int) {
		err := sess.With(func(sim *core.Simulation) error {
			if err := sim.SetTick(tick); err != nil {
				return err
			}
			if po.focus != "" && !focused {
				if err := sim.FocusOnAgentID(po.focus); err != nil {
					return err
				}
				focused = sim.AgentInFocus() != nil
			}
			v := session.NewView(sim)
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(out, "tick %d: %d active [%s]", v.Tick, len(v.ActiveAgents), strings.Join(v.ActiveAgents, " "))
			if len(v.ActiveBlockers) > 0 {
				fmt.Fprintf(out, ", %d blockers", len(v.ActiveBlockers))
			}
			fmt.Fprintln(out)
			return nil
		})
		if err != nil {
			once.Do(func() { stepErr = err })
			log.Warn(ctx, "playback step failed", logging.Int("tick", tick), logging.Err(err))
		}
	})

	<-player.Run(ctx)
	return stepErr
}
