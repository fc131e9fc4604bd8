package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/example/resywatch/internal/config"
	"github.com/example/resywatch/internal/db"
	"github.com/example/resywatch/internal/gate"
	"github.com/example/resywatch/internal/logging"
	"github.com/example/resywatch/internal/migrate"
	"github.com/example/resywatch/internal/notify"
	"github.com/example/resywatch/internal/pipeline"
	"github.com/example/resywatch/internal/providers"
	"github.com/example/resywatch/internal/providers/httpx"
	"github.com/example/resywatch/internal/reservation"
	"github.com/example/resywatch/internal/sources"
)

// app is the state shared by commands: settings and the root logger.
type app struct {
	cfg      config.Config
	log      zerolog.Logger
	closeLog func() error
}

func newApp() (*app, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	log, closeLog, err := logging.New(cfg.Log, os.Stdout)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, closeLog: closeLog}, nil
}

func (a *app) Close() {
	_ = a.closeLog()
}

// sourceFlags select where source definitions come from.
type sourceFlags struct {
	file   string
	fromDB bool
}

func (a *app) loadConfigs(ctx context.Context, sf sourceFlags) ([]reservation.Config, error) {
	def := config.Defaults{Interval: a.cfg.PollInterval}
	if !sf.fromDB {
		return config.LoadSources(sf.file, def)
	}
	repo, closeDB, err := a.openRegistry(ctx)
	if err != nil {
		return nil, err
	}
	defer closeDB()
	cfgs, err := repo.Configs(ctx, def)
	if err != nil {
		return nil, err
	}
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("no enabled sources in the database")
	}
	return cfgs, nil
}

// openRegistry connects to Postgres and applies migrations.
func (a *app) openRegistry(ctx context.Context) (*sources.Repo, func(), error) {
	if a.cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}
	d, err := db.Open(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, nil, fmt.Errorf("db ping: %w", err)
	}
	if err := migrate.Up(ctx, d, a.log); err != nil {
		d.Close()
		return nil, nil, err
	}
	return sources.NewRepo(d), d.Close, nil
}

// buildRunners constructs one adapter, gate and runner per source. Any
// configuration error aborts before scheduling starts.
func (a *app) buildRunners(cfgs []reservation.Config, pub notify.Publisher) ([]*pipeline.Runner, error) {
	hc := httpx.New()
	out := make([]*pipeline.Runner, 0, len(cfgs))
	for _, c := range cfgs {
		src, err := providers.New(c, a.cfg.Credentials, hc, a.log.With().Str("source", c.Name).Logger())
		if err != nil {
			return nil, err
		}
		out = append(out, pipeline.NewRunner(c, src, gate.New(), pub, a.log))
	}
	return out, nil
}
