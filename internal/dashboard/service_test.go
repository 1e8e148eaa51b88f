package dashboard_test

import (
	"context"
	"errors"
	"net/url"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomkat-cr/abstractgo/internal/apiclient"
	"github.com/tomkat-cr/abstractgo/internal/dashboard"
	"github.com/tomkat-cr/abstractgo/internal/dashboard/dashboardtest"
)

func newService(t *testing.T, api *dashboardtest.API) *dashboard.Service {
	t.Helper()
	client := apiclient.New(apiclient.Config{
		BaseURL:       api.URL,
		RetryAttempts: -1,
		RetryDelay:    time.Millisecond,
		HTTPClient:    api.Client(),
	})
	return dashboard.NewService(client, 0, nil)
}

func TestFetchAllAssemblesEverySection(t *testing.T) {
	t.Parallel()

	api := dashboardtest.NewAPI()
	defer api.Close()

	summary, err := newService(t, api).FetchAll(context.Background())
	if err != nil {
		t.Fatalf("fetch all failed: %v", err)
	}
	for _, section := range dashboard.AllSections() {
		if !summary.Has(section) {
			t.Fatalf("expected section %s to be present", section)
		}
	}
	want := dashboardtest.Summary()
	if !reflect.DeepEqual(summary.ConfusionMatrix, want.ConfusionMatrix) {
		t.Fatalf("confusion matrix mismatch:\n got %#v\nwant %#v", summary.ConfusionMatrix, want.ConfusionMatrix)
	}
	if !reflect.DeepEqual(summary.Metrics, want.Metrics) {
		t.Fatalf("metrics mismatch:\n got %#v\nwant %#v", summary.Metrics, want.Metrics)
	}
	if !reflect.DeepEqual(summary.History, want.History) {
		t.Fatalf("history mismatch:\n got %#v\nwant %#v", summary.History, want.History)
	}
	if summary.DataRange != "Current" || summary.LastUpdated.IsZero() {
		t.Fatalf("unexpected summary header: %q %v", summary.DataRange, summary.LastUpdated)
	}
}

func TestFetchAllFailsWhenAnySectionFails(t *testing.T) {
	t.Parallel()

	api := dashboardtest.NewAPI()
	defer api.Close()
	api.Fail["/dashboard/analytics"] = true

	summary, err := newService(t, api).FetchAll(context.Background())
	if err == nil {
		t.Fatalf("expected failure, got %+v", summary)
	}
	var srvErr *apiclient.ServerError
	if !errors.As(err, &srvErr) || srvErr.Message != "Internal failure" {
		t.Fatalf("expected wrapped server error, got %v", err)
	}
}

func TestDistributionFallsBackToConfusionMatrix(t *testing.T) {
	t.Parallel()

	api := dashboardtest.NewAPI()
	defer api.Close()
	want := dashboard.DistributionFromMatrix(*api.Snapshot.ConfusionMatrix)
	api.Snapshot.Distribution = nil

	got, err := newService(t, api).Distribution(context.Background())
	if err != nil {
		t.Fatalf("distribution: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("distribution = %+v, want %+v", got, want)
	}
	if len(got) != 4 || got[0].Count != 938 || got[0].Percentage != 25 {
		t.Fatalf("derived rows = %+v", got)
	}
}

func TestEmptyDistributionWithoutMatrixStaysEmpty(t *testing.T) {
	t.Parallel()

	api := dashboardtest.NewAPI()
	defer api.Close()
	api.Snapshot.Distribution = nil
	api.Fail["/dashboard/confusion-matrix"] = true

	got, err := newService(t, api).Distribution(context.Background())
	if err != nil || len(got) != 0 {
		t.Fatalf("distribution = %+v, %v", got, err)
	}
}

type recordingGetter struct {
	mu    sync.Mutex
	paths []string
	query url.Values
}

func (g *recordingGetter) GetJSON(_ context.Context, path string, query url.Values, out any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paths = append(g.paths, path)
	if query != nil {
		g.query = query
	}
	return nil
}

func TestHistoryUsesDefaultLimit(t *testing.T) {
	t.Parallel()

	getter := &recordingGetter{}
	svc := dashboard.NewService(getter, 0, nil)
	if _, err := svc.History(context.Background(), 0); err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if got := getter.query.Get("limit"); got != "10" {
		t.Fatalf("limit = %q, want 10", got)
	}
	if _, err := svc.History(context.Background(), 25); err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if got := getter.query.Get("limit"); got != "25" {
		t.Fatalf("limit = %q, want 25", got)
	}
}

func TestFetchSectionLeavesOthersUntouched(t *testing.T) {
	t.Parallel()

	api := dashboardtest.NewAPI()
	defer api.Close()
	svc := newService(t, api)

	summary := &dashboard.Summary{Performance: []dashboard.CategoryPerformance{{Category: "stale"}}}
	if err := svc.FetchSection(context.Background(), dashboard.SectionMetrics, summary); err != nil {
		t.Fatalf("fetch section failed: %v", err)
	}
	if summary.Metrics == nil || summary.Metrics.TotalArticles != 15847 {
		t.Fatalf("metrics not refreshed: %+v", summary.Metrics)
	}
	if summary.Performance[0].Category != "stale" {
		t.Fatal("other sections must not change")
	}

	api.Fail["/dashboard/performance"] = true
	if err := svc.FetchSection(context.Background(), dashboard.SectionPerformance, summary); err == nil {
		t.Fatal("expected error")
	}
	if summary.Performance[0].Category != "stale" {
		t.Fatal("failed refresh must keep previous data")
	}
}

func TestResourceKeepsLastGoodDataOnError(t *testing.T) {
	t.Parallel()

	var fail atomic.Bool
	res := dashboard.NewResource(func(ctx context.Context) (int, error) {
		if fail.Load() {
			return 0, &apiclient.NetworkError{Err: errors.New("dial tcp: refused")}
		}
		return 42, nil
	})

	if st := res.State(); st.HasData || st.Loading || st.Err != "" {
		t.Fatalf("unexpected initial state: %+v", st)
	}
	if err := res.Refetch(context.Background()); err != nil {
		t.Fatalf("refetch failed: %v", err)
	}
	fail.Store(true)
	if err := res.Refetch(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	st := res.State()
	if !st.HasData || st.Data != 42 {
		t.Fatalf("expected last good data to survive, got %+v", st)
	}
	if st.Err != "Network error - please check your connection" {
		t.Fatalf("unexpected error message: %q", st.Err)
	}
	if st.Loading {
		t.Fatal("loading should be cleared")
	}

	fail.Store(false)
	if err := res.Refetch(context.Background()); err != nil {
		t.Fatalf("refetch failed: %v", err)
	}
	if st := res.State(); st.Err != "" {
		t.Fatalf("error should clear after success, got %q", st.Err)
	}
}

func TestResourceDiscardsResultAfterClose(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{})
	res := dashboard.NewResource(func(ctx context.Context) (string, error) {
		close(started)
		<-release
		return "late", nil
	})

	done := make(chan error, 1)
	go func() { done <- res.Refetch(context.Background()) }()
	<-started
	if !res.State().Loading {
		t.Fatal("expected loading while fetch is in flight")
	}
	res.Close()
	close(release)

	if err := <-done; !errors.Is(err, dashboard.ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	if st := res.State(); st.HasData {
		t.Fatalf("closed resource must not store late data: %+v", st)
	}
}

func TestResourceNewerRefetchWins(t *testing.T) {
	t.Parallel()

	var calls int32
	firstRelease := make(chan struct{})
	firstStarted := make(chan struct{})
	res := dashboard.NewResource(func(ctx context.Context) (int32, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			close(firstStarted)
			<-firstRelease
		}
		return n, nil
	})

	done := make(chan error, 1)
	go func() { done <- res.Refetch(context.Background()) }()
	<-firstStarted
	if err := res.Refetch(context.Background()); err != nil {
		t.Fatalf("second refetch failed: %v", err)
	}
	close(firstRelease)
	if err := <-done; !errors.Is(err, dashboard.ErrStale) {
		t.Fatalf("expected first refetch to be stale, got %v", err)
	}
	if st := res.State(); st.Data != 2 {
		t.Fatalf("expected newest data 2, got %+v", st)
	}
}
