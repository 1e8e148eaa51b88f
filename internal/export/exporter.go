package export

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tomkat-cr/abstractgo/internal/dashboard"
)

// State is where an Exporter is in its lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateExporting State = "exporting"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// Status is a point-in-time view of an Exporter.
type Status struct {
	State        State     `json:"state"`
	LastExport   time.Time `json:"last_export,omitempty"`
	LastArtifact string    `json:"last_artifact,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

// Transition is reported to the optional observer on every state change.
type Transition struct {
	From, To State
	Err      error
}

// Exporter serializes exports: only one runs at a time, and the outcome of
// the last one is kept for Status.
type Exporter struct {
	mu       sync.Mutex
	status   Status
	now      func() time.Time
	log      logrus.FieldLogger
	observer func(Transition)
}

// Option customizes an Exporter.
type Option func(*Exporter)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// WithLogger sets the logger; the default discards.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Exporter) { e.log = log }
}

// WithObserver registers fn to receive every transition. fn runs with the
// exporter's lock held and must not call back into it.
func WithObserver(fn func(Transition)) Option {
	return func(e *Exporter) { e.observer = fn }
}

// NewExporter returns an idle Exporter.
func NewExporter(opts ...Option) *Exporter {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	e := &Exporter{
		status: Status{State: StateIdle},
		now:    time.Now,
		log:    discard,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Status returns the current state and the last outcome.
func (e *Exporter) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Export renders summary. It fails with ErrExportInProgress while another
// export is running.
func (e *Exporter) Export(summary *dashboard.Summary, sel Selection) (Artifact, error) {
	if err := e.begin(); err != nil {
		return Artifact{}, err
	}
	return e.run(summary, sel)
}

// FetchAndExport takes a fresh snapshot from src and exports it. The
// exporter is busy for the whole fetch.
func (e *Exporter) FetchAndExport(ctx context.Context, src dashboard.Source, sel Selection) (Artifact, error) {
	if err := e.begin(); err != nil {
		return Artifact{}, err
	}
	summary, err := src.FetchAll(ctx)
	if err != nil {
		err = fmt.Errorf("fetch dashboard: %w", err)
		e.fail(err)
		return Artifact{}, err
	}
	return e.run(summary, sel)
}

func (e *Exporter) run(summary *dashboard.Summary, sel Selection) (Artifact, error) {
	if sel.At.IsZero() {
		sel.At = e.now()
	}
	started := e.now()
	art, err := Export(summary, sel)
	if err != nil {
		e.fail(err)
		return Artifact{}, err
	}

	e.mu.Lock()
	e.transition(StateDone, nil)
	e.status.LastExport = e.now()
	e.status.LastArtifact = art.Name
	e.status.LastError = ""
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{
		"artifact": art.Name,
		"bytes":    len(art.Data),
		"duration": e.now().Sub(started).String(),
	}).Info("export finished")
	return art, nil
}

func (e *Exporter) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status.State == StateExporting {
		return &Error{Reason: ReasonInProgress, Err: ErrExportInProgress}
	}
	e.transition(StateExporting, nil)
	return nil
}

func (e *Exporter) fail(err error) {
	e.mu.Lock()
	e.transition(StateFailed, err)
	e.status.LastError = err.Error()
	e.transition(StateIdle, nil)
	e.mu.Unlock()

	e.log.WithError(err).Warn("export failed")
}

// transition must be called with mu held.
func (e *Exporter) transition(to State, err error) {
	from := e.status.State
	e.status.State = to
	if e.observer != nil {
		e.observer(Transition{From: from, To: to, Err: err})
	}
}
