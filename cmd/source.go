package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/resywatch/internal/config"
	"github.com/example/resywatch/internal/reservation"
)

func newSourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Manage sources stored in the database",
	}
	cmd.AddCommand(newSourceAddCmd())
	cmd.AddCommand(newSourceListCmd())
	cmd.AddCommand(newSourceToggleCmd("enable", true))
	cmd.AddCommand(newSourceToggleCmd("disable", false))
	cmd.AddCommand(newSourceRemoveCmd())
	return cmd
}

func newSourceAddCmd() *cobra.Command {
	var (
		s                  config.SourceSpec
		days               string
		mailTo             string
		fromYML            string
		hourStart, hourEnd int
	)

	c := &cobra.Command{
		Use:   "add",
		Short: "Add or replace a source (or import every source from a YAML file)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := context.Background()

			specs := []config.SourceSpec{s}
			if fromYML != "" {
				f, err := config.ReadFile(fromYML)
				if err != nil {
					return err
				}
				specs = inheritFileDefaults(f)
			} else {
				if s.Name == "" || s.Type == "" || s.Venue == "" {
					return fmt.Errorf("--name, --type and --venue are required")
				}
				specs[0].Days = splitCSV(days)
				specs[0].MailTo = splitCSV(mailTo)
				if cmd.Flags().Changed("hour-start") {
					specs[0].HourStart = config.Hour(hourStart)
				}
				if cmd.Flags().Changed("hour-end") {
					specs[0].HourEnd = config.Hour(hourEnd)
				}
			}

			repo, closeDB, err := a.openRegistry(ctx)
			if err != nil {
				return err
			}
			defer closeDB()
			for _, spec := range specs {
				if err := repo.Upsert(ctx, spec); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved source %q (%s venue=%s)\n", spec.Name, spec.Type, spec.Venue)
			}
			return nil
		},
	}

	f := c.Flags()
	f.StringVar(&s.Name, "name", "", "unique source name")
	f.StringVar(&s.Type, "type", "", "provider: resy|sevenrooms|hillstone|opentable|teetime")
	f.StringVar(&s.Venue, "venue", "", "provider venue id")
	f.StringVar(&s.Label, "label", "", "display name for providers that return none")
	f.IntVar(&s.PartySize, "party-size", reservation.DefaultPartySize, "party size")
	f.IntVar(&hourStart, "hour-start", reservation.DefaultHourStart, "earliest hour (0-23)")
	f.IntVar(&hourEnd, "hour-end", reservation.DefaultHourEnd, "latest hour (0-23), inclusive")
	f.StringVar(&days, "days", "", "comma-separated dates YYYY-MM-DD")
	f.IntVar(&s.DaysRange, "days-range", 0, "rolling number of days starting today")
	f.StringVar(&s.IgnoreType, "ignore-type", "", "case-insensitive regex of seating types to skip")
	f.StringVar(&mailTo, "mail-to", "", "comma-separated recipients")
	f.StringVar(&s.Timezone, "timezone", "", "IANA time zone of the venue")
	f.StringVar(&s.Interval, "interval", "", "poll interval, e.g. 15s")
	f.StringVar(&s.DetailInterval, "detail-interval", "", "minimum gap between detail lookups, e.g. 5s")
	f.StringVar(&s.Shift, "shift", "", "SevenRooms shift category, e.g. BRUNCH")
	f.StringVar(&fromYML, "from-file", "", "import all sources from a YAML file")
	return c
}

func newSourceListCmd() *cobra.Command {
	var all bool
	c := &cobra.Command{
		Use:   "list",
		Short: "List stored sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := context.Background()

			repo, closeDB, err := a.openRegistry(ctx)
			if err != nil {
				return err
			}
			defer closeDB()
			recs, err := repo.List(ctx, !all)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tVENUE\tPARTY\tHOURS\tDAYS\tENABLED")
			for _, r := range recs {
				s := r.Spec
				days := strings.Join(s.Days, ",")
				if s.DaysRange > 0 {
					days = fmt.Sprintf("next %d", s.DaysRange)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%t\n", s.Name, s.Type, s.Venue, s.PartySize, s.Hours(), days, r.Enabled)
			}
			return w.Flush()
		},
	}
	c.Flags().BoolVar(&all, "all", false, "include disabled sources")
	return c
}

func newSourceToggleCmd(use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <name>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " a stored source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := context.Background()

			repo, closeDB, err := a.openRegistry(ctx)
			if err != nil {
				return err
			}
			defer closeDB()
			if err := repo.SetEnabled(ctx, args[0], enabled); err != nil {
				return fmt.Errorf("source %q: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "source %q %sd\n", args[0], use)
			return nil
		},
	}
}

func newSourceRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Delete a stored source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := context.Background()

			repo, closeDB, err := a.openRegistry(ctx)
			if err != nil {
				return err
			}
			defer closeDB()
			if err := repo.Delete(ctx, args[0]); err != nil {
				return fmt.Errorf("source %q: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "source %q removed\n", args[0])
			return nil
		},
	}
}

// inheritFileDefaults copies file-level settings into each stored spec, since
// the database keeps sources individually.
func inheritFileDefaults(f config.File) []config.SourceSpec {
	out := make([]config.SourceSpec, 0, len(f.Sources))
	for _, s := range f.Sources {
		if s.Timezone == "" {
			s.Timezone = f.Timezone
		}
		if s.Interval == "" {
			s.Interval = f.Interval
		}
		if len(s.MailTo) == 0 {
			s.MailTo = f.MailTo
		}
		out = append(out, s)
	}
	return out
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
