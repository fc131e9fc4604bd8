package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/resywatch/internal/reservation"
)

func newCheckCmd() *cobra.Command {
	var sf sourceFlags

	cmd := &cobra.Command{
		Use:   "check <source>",
		Short: "Run a single poll cycle for one source and print what it found (no alerts sent)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			cfgs, err := a.loadConfigs(ctx, sf)
			if err != nil {
				return err
			}
			cfg, err := pick(cfgs, args[0])
			if err != nil {
				return err
			}
			runners, err := a.buildRunners([]reservation.Config{cfg}, nil)
			if err != nil {
				return err
			}

			rep := runners[0].Cycle(ctx)
			if rep.Err != nil {
				return fmt.Errorf("fetch %s: %w", cfg.Name, rep.Err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tWHEN\tPARTY\tKIND\tDECISION")
			for _, o := range rep.Outcomes {
				decision := string(o.Verdict)
				if o.Reason != "" {
					decision += " (" + string(o.Reason) + ")"
				}
				fmt.Fprintf(w, "%s\t%s\t%d-%d\t%s\t%s\n",
					o.Candidate.Name, o.Candidate.When.Format(time.DateTime), o.Candidate.PartyMin, o.Candidate.PartyMax, o.Candidate.Kind, decision)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d candidates: %d accepted, %d skipped, %d invalid\n", rep.Fetched, rep.Accepted, rep.Skipped, rep.Invalid)
			return nil
		},
	}

	cmd.Flags().StringVar(&sf.file, "config", "sources.yaml", "YAML file with source definitions")
	cmd.Flags().BoolVar(&sf.fromDB, "from-db", false, "load sources from DATABASE_URL instead of --config")
	return cmd
}

func pick(cfgs []reservation.Config, name string) (reservation.Config, error) {
	for _, c := range cfgs {
		if c.Name == name {
			return c, nil
		}
	}
	return reservation.Config{}, fmt.Errorf("unknown source %q", name)
}
