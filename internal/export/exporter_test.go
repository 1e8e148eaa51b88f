package export_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/tomkat-cr/abstractgo/internal/dashboard"
	"github.com/tomkat-cr/abstractgo/internal/dashboard/dashboardtest"
	"github.com/tomkat-cr/abstractgo/internal/export"
)

type recorder struct {
	mu  sync.Mutex
	got []export.Transition
}

func (r *recorder) observe(tr export.Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, tr)
}

func (r *recorder) states() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, tr := range r.got {
		out = append(out, string(tr.From)+">"+string(tr.To))
	}
	return out
}

func TestExporterSuccessTransitions(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	clock := dashboardtest.FixedTime
	e := export.NewExporter(export.WithObserver(rec.observe), export.WithClock(func() time.Time { return clock }))

	art, err := e.Export(dashboardtest.Summary(), export.Selection{Sections: dashboard.AllSections(), Format: export.FormatJSON})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if want := []string{"idle>exporting", "exporting>done"}; !reflect.DeepEqual(rec.states(), want) {
		t.Fatalf("transitions = %v, want %v", rec.states(), want)
	}
	st := e.Status()
	if st.State != export.StateDone || st.LastArtifact != art.Name || !st.LastExport.Equal(clock) || st.LastError != "" {
		t.Fatalf("status = %+v", st)
	}
	if art.Name != "abstractgo_dashboard_2024-01-15T10-30-00.json" {
		t.Fatalf("artifact stamped with %s, want injected clock", art.Name)
	}

	// A finished exporter accepts the next export.
	if _, err := e.Export(dashboardtest.Summary(), export.Selection{Sections: dashboard.AllSections(), Format: export.FormatCSV}); err != nil {
		t.Fatalf("second export: %v", err)
	}
}

func TestExporterFailureReturnsToIdle(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	e := export.NewExporter(export.WithObserver(rec.observe))

	_, err := e.Export(dashboardtest.Summary(), export.Selection{Format: export.FormatPDF})
	if !errors.Is(err, export.ErrEmptySelection) {
		t.Fatalf("err = %v, want empty selection", err)
	}
	want := []string{"idle>exporting", "exporting>failed", "failed>idle"}
	if !reflect.DeepEqual(rec.states(), want) {
		t.Fatalf("transitions = %v, want %v", rec.states(), want)
	}
	st := e.Status()
	if st.State != export.StateIdle || st.LastError == "" || st.LastArtifact != "" {
		t.Fatalf("status = %+v", st)
	}
}

// blockingSource holds FetchAll until released.
type blockingSource struct {
	dashboard.Source
	started chan struct{}
	release chan struct{}
}

func (b *blockingSource) FetchAll(ctx context.Context) (*dashboard.Summary, error) {
	close(b.started)
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b.Source.FetchAll(ctx)
}

func TestExporterRejectsConcurrentExport(t *testing.T) {
	t.Parallel()

	src := &blockingSource{
		Source:  dashboardtest.NewSource(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	e := export.NewExporter()
	sel := export.Selection{Sections: dashboard.AllSections(), Format: export.FormatCSV}

	done := make(chan error, 1)
	go func() {
		_, err := e.FetchAndExport(context.Background(), src, sel)
		done <- err
	}()
	<-src.started

	if st := e.Status(); st.State != export.StateExporting {
		t.Fatalf("state = %s, want exporting", st.State)
	}
	if _, err := e.Export(dashboardtest.Summary(), sel); !errors.Is(err, export.ErrExportInProgress) {
		t.Fatalf("err = %v, want in progress", err)
	}

	close(src.release)
	if err := <-done; err != nil {
		t.Fatalf("first export: %v", err)
	}
	if st := e.Status(); st.State != export.StateDone {
		t.Fatalf("state = %s, want done", st.State)
	}
}

func TestExporterFetchFailure(t *testing.T) {
	t.Parallel()

	src := dashboardtest.NewSource()
	src.Err = errors.New("connection refused")
	e := export.NewExporter()

	_, err := e.FetchAndExport(context.Background(), src, export.Selection{Sections: dashboard.AllSections(), Format: export.FormatJSON})
	if err == nil || !errors.Is(err, src.Err) {
		t.Fatalf("err = %v, want wrapped fetch error", err)
	}
	var exportErr *export.Error
	if errors.As(err, &exportErr) {
		t.Fatalf("fetch failure should not be an export error: %v", err)
	}
	if st := e.Status(); st.State != export.StateIdle || st.LastError == "" {
		t.Fatalf("status = %+v", st)
	}
}
