// Package schedule runs dashboard exports on a cron schedule.
package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/tomkat-cr/abstractgo/internal/dashboard"
	"github.com/tomkat-cr/abstractgo/internal/export"
	"github.com/tomkat-cr/abstractgo/internal/sink"
)

// Parse accepts a standard five-field cron expression.
func Parse(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty cron schedule")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}
	return sched, nil
}

// Config wires a Runner.
type Config struct {
	Spec      string
	Source    dashboard.Source
	Exporter  *export.Exporter
	Sink      sink.Sink
	Sections  []dashboard.Section
	Format    export.Format
	DateRange string
	Log       logrus.FieldLogger
}

// Runner exports on every tick until its context ends.
type Runner struct {
	spec     string
	sched    cron.Schedule
	cfg      Config
	log      logrus.FieldLogger
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time
	finished func(location string, err error)
}

// New validates the schedule.
func New(cfg Config) (*Runner, error) {
	sched, err := Parse(cfg.Spec)
	if err != nil {
		return nil, err
	}
	if cfg.Source == nil || cfg.Sink == nil {
		return nil, fmt.Errorf("schedule: source and sink are required")
	}
	if cfg.Exporter == nil {
		cfg.Exporter = export.NewExporter()
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{
		spec:  strings.TrimSpace(cfg.Spec),
		sched: sched,
		cfg:   cfg,
		log:   log.WithField("component", "schedule"),
		now:   time.Now,
		after: time.After,
	}, nil
}

// Run blocks, exporting at each scheduled time. Failed runs are logged and
// the loop continues. It returns ctx.Err() when the context ends.
func (r *Runner) Run(ctx context.Context) error {
	r.log.WithField("cron", r.spec).Info("scheduled exports enabled")
	for {
		now := r.now()
		next := r.sched.Next(now)
		wait := next.Sub(now)
		r.log.WithField("next", next.Format(time.RFC3339)).Debugf("next export in %s", wait.Round(time.Second))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.after(wait):
		}

		loc, err := r.RunOnce(ctx)
		if err != nil {
			r.log.WithError(err).Error("scheduled export failed")
		} else {
			r.log.WithField("location", loc).Info("scheduled export stored")
		}
		if r.finished != nil {
			r.finished(loc, err)
		}
	}
}

// RunOnce fetches, exports and stores one artifact.
func (r *Runner) RunOnce(ctx context.Context) (string, error) {
	art, err := r.cfg.Exporter.FetchAndExport(ctx, r.cfg.Source, export.Selection{
		Sections:  r.cfg.Sections,
		Format:    r.cfg.Format,
		DateRange: r.cfg.DateRange,
	})
	if err != nil {
		return "", err
	}
	loc, err := r.cfg.Sink.Put(ctx, art)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", art.Name, err)
	}
	return loc, nil
}
