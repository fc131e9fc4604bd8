// Package sources is the Postgres-backed source registry.
package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/resywatch/internal/config"
	"github.com/example/resywatch/internal/db"
	"github.com/example/resywatch/internal/reservation"
)

// Querier is the subset of db.DB the registry uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	QueryRow(ctx context.Context, sql string, args ...any) db.Row
	Query(ctx context.Context, sql string, args ...any) (db.Rows, error)
}

// Record is a stored source definition.
type Record struct {
	Spec      config.SourceSpec
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Repo struct{ db Querier }

func NewRepo(d Querier) *Repo { return &Repo{db: d} }

const columns = `name,type,venue,label,party_size,hour_start,hour_end,days,days_range,ignore_type,mail_to,timezone,interval,detail_interval,shift,enabled,created_at,updated_at`

// Upsert validates spec and stores it, replacing any source with the same name.
func (r *Repo) Upsert(ctx context.Context, s config.SourceSpec) error {
	if _, err := s.ToConfig(config.Defaults{}); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `
INSERT INTO sources(name,type,venue,label,party_size,hour_start,hour_end,days,days_range,ignore_type,mail_to,timezone,interval,detail_interval,shift)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (name) DO UPDATE SET
  type=EXCLUDED.type, venue=EXCLUDED.venue, label=EXCLUDED.label, party_size=EXCLUDED.party_size,
  hour_start=EXCLUDED.hour_start, hour_end=EXCLUDED.hour_end, days=EXCLUDED.days, days_range=EXCLUDED.days_range,
  ignore_type=EXCLUDED.ignore_type, mail_to=EXCLUDED.mail_to, timezone=EXCLUDED.timezone, interval=EXCLUDED.interval,
  detail_interval=EXCLUDED.detail_interval, shift=EXCLUDED.shift, updated_at=now()`,
		s.Name, strings.ToLower(s.Type), s.Venue, s.Label, s.PartySize, s.HourStart, s.HourEnd, joinList(s.Days), s.DaysRange,
		s.IgnoreType, joinList(s.MailTo), s.Timezone, s.Interval, s.DetailInterval, s.Shift,
	)
	if err != nil {
		return fmt.Errorf("upsert source %q: %w", s.Name, err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, name string) (Record, error) {
	rec, err := scan(r.db.QueryRow(ctx, `SELECT `+columns+` FROM sources WHERE name=$1`, name))
	if err != nil {
		return Record{}, db.WrapNotFound(err)
	}
	return rec, nil
}

// List returns sources ordered by name.
func (r *Repo) List(ctx context.Context, enabledOnly bool) ([]Record, error) {
	q := `SELECT ` + columns + ` FROM sources`
	if enabledOnly {
		q += ` WHERE enabled`
	}
	q += ` ORDER BY name`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Repo) SetEnabled(ctx context.Context, name string, enabled bool) error {
	n, err := r.db.Exec(ctx, `UPDATE sources SET enabled=$2, updated_at=now() WHERE name=$1`, name, enabled)
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, name string) error {
	n, err := r.db.Exec(ctx, `DELETE FROM sources WHERE name=$1`, name)
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

// Configs loads every enabled source as runtime config.
func (r *Repo) Configs(ctx context.Context, def config.Defaults) ([]reservation.Config, error) {
	recs, err := r.List(ctx, true)
	if err != nil {
		return nil, err
	}
	specs := make([]config.SourceSpec, 0, len(recs))
	for _, rec := range recs {
		specs = append(specs, rec.Spec)
	}
	return config.BuildConfigs(specs, def)
}

func scan(row db.Row) (Record, error) {
	var rec Record
	var days, mailTo string
	s := &rec.Spec
	err := row.Scan(&s.Name, &s.Type, &s.Venue, &s.Label, &s.PartySize, &s.HourStart, &s.HourEnd, &days, &s.DaysRange,
		&s.IgnoreType, &mailTo, &s.Timezone, &s.Interval, &s.DetailInterval, &s.Shift, &rec.Enabled, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return Record{}, err
	}
	s.Days = splitList(days)
	s.MailTo = splitList(mailTo)
	return rec, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinList(vs []string) string {
	cleaned := make([]string, 0, len(vs))
	for _, v := range vs {
		if v = strings.TrimSpace(v); v != "" {
			cleaned = append(cleaned, v)
		}
	}
	return strings.Join(cleaned, ",")
}
