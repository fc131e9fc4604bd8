package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/resywatch/internal/metrics"
	"github.com/example/resywatch/internal/notify"
	"github.com/example/resywatch/internal/scheduler"
)

func newRunCmd() *cobra.Command {
	var sf sourceFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll every configured source until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfgs, err := a.loadConfigs(ctx, sf)
			if err != nil {
				return err
			}

			sinks, consume, closeSinks, err := a.sinks()
			if err != nil {
				return err
			}
			defer closeSinks()
			fan := notify.NewFanout(a.log, sinks...)
			defer fan.Close()

			runners, err := a.buildRunners(cfgs, fan)
			if err != nil {
				return err
			}

			go consume(ctx)
			if a.cfg.MetricsAddr != "" {
				go func() {
					if err := metrics.Serve(ctx, a.cfg.MetricsAddr, a.log); err != nil {
						a.log.Error().Err(err).Msg("metrics server failed")
					}
				}()
			}

			sr := make([]scheduler.Runner, 0, len(runners))
			for _, r := range runners {
				sr = append(sr, r)
			}
			a.log.Info().Int("sources", len(sr)).Msg("starting")
			return scheduler.New(a.log, sr...).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&sf.file, "config", "sources.yaml", "YAML file with source definitions")
	cmd.Flags().BoolVar(&sf.fromDB, "from-db", false, "load enabled sources from DATABASE_URL instead of --config")
	return cmd
}

// sinks builds the configured notification sinks, the desktop queue's
// consumer loop and a cleanup that drains queued mail. The cleanup must run
// after the fanout is closed.
func (a *app) sinks() ([]notify.Sink, func(context.Context), func(), error) {
	q := notify.NewQueue(notify.DefaultQueueSize)
	var alerter notify.Alerter = notify.LogAlerter{Log: a.log.With().Str("component", "desktop").Logger()}
	if a.cfg.DesktopAlerts {
		alerter = notify.NewCommandAlerter()
	}
	consume := func(ctx context.Context) { q.Consume(ctx, alerter, a.log) }

	out := []notify.Sink{notify.NewDesktopSink(q)}
	closeSinks := func() {}
	if a.cfg.MailEnabled() {
		m, err := notify.NewMailSink(a.cfg.Mail, notify.WithMailLogger(a.log))
		if err != nil {
			return nil, nil, nil, err
		}
		out = append(out, m)
		closeSinks = m.Close
	} else {
		a.log.Warn().Msg("SMTP_USERNAME/SMTP_PASSWORD not set, mail disabled")
	}
	if a.cfg.TelegramToken != "" {
		t, err := notify.NewTelegramSink(a.cfg.TelegramToken, a.cfg.TelegramChatID)
		if err != nil {
			closeSinks()
			return nil, nil, nil, err
		}
		out = append(out, t)
	}
	return out, consume, closeSinks, nil
}
