package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultHistoryLimit matches the dashboard's default history page size.
const DefaultHistoryLimit = 10

const (
	pathMetrics         = "/dashboard/metrics"
	pathConfusionMatrix = "/dashboard/confusion-matrix"
	pathPerformance     = "/dashboard/performance"
	pathDistribution    = "/dashboard/distribution"
	pathAnalytics       = "/dashboard/analytics"
	pathHistory         = "/dashboard/classification-history"
)

// Getter is the transport the service needs. *apiclient.Client satisfies it.
type Getter interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
}

// Source yields dashboard snapshots. Service is the live implementation;
// tests inject fixtures through the same interface.
type Source interface {
	FetchAll(ctx context.Context) (*Summary, error)
	FetchSection(ctx context.Context, section Section, into *Summary) error
}

// Service fetches and normalizes dashboard resources.
type Service struct {
	api          Getter
	historyLimit int
	log          logrus.FieldLogger
	now          func() time.Time
}

// NewService wires a transport. A non-positive limit uses the default.
func NewService(api Getter, historyLimit int, log logrus.FieldLogger) *Service {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	return &Service{api: api, historyLimit: historyLimit, log: log, now: time.Now}
}

func (s *Service) Metrics(ctx context.Context) (*Metrics, error) {
	var out Metrics
	if err := s.api.GetJSON(ctx, pathMetrics, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch metrics: %w", err)
	}
	return &out, nil
}

func (s *Service) ConfusionMatrix(ctx context.Context) (*ConfusionMatrix, error) {
	var out ConfusionMatrix
	if err := s.api.GetJSON(ctx, pathConfusionMatrix, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch confusion matrix: %w", err)
	}
	return &out, nil
}

func (s *Service) Performance(ctx context.Context) ([]CategoryPerformance, error) {
	out := []CategoryPerformance{}
	if err := s.api.GetJSON(ctx, pathPerformance, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch performance: %w", err)
	}
	return out, nil
}

// Distribution falls back to deriving counts from the confusion matrix when
// the endpoint answers with an empty list.
func (s *Service) Distribution(ctx context.Context) ([]CategoryDistribution, error) {
	out := []CategoryDistribution{}
	if err := s.api.GetJSON(ctx, pathDistribution, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch distribution: %w", err)
	}
	if len(out) > 0 {
		return out, nil
	}
	cm, err := s.ConfusionMatrix(ctx)
	if err != nil {
		s.log.WithError(err).Warn("distribution is empty and the confusion matrix is unavailable")
		return []CategoryDistribution{}, nil
	}
	s.log.Debug("distribution is empty, deriving it from the confusion matrix")
	return DistributionFromMatrix(*cm), nil
}

func (s *Service) Analytics(ctx context.Context) (*Analytics, error) {
	var out Analytics
	if err := s.api.GetJSON(ctx, pathAnalytics, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch analytics: %w", err)
	}
	return &out, nil
}

// History returns the most recent classifications, newest first as served.
func (s *Service) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = s.historyLimit
	}
	out := []HistoryEntry{}
	query := url.Values{"limit": {strconv.Itoa(limit)}}
	if err := s.api.GetJSON(ctx, pathHistory, query, &out); err != nil {
		return nil, fmt.Errorf("fetch classification history: %w", err)
	}
	return out, nil
}

// FetchAll loads every section concurrently. The first failure cancels the
// remaining requests and fails the whole snapshot.
func (s *Service) FetchAll(ctx context.Context) (*Summary, error) {
	summary := &Summary{DataRange: "Current"}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, section := range AllSections() {
		section := section
		g.Go(func() error {
			partial := &Summary{}
			if err := s.FetchSection(gctx, section, partial); err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			summary.Merge(partial, section)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.WithError(err).Warn("dashboard fetch failed")
		return nil, err
	}
	summary.LastUpdated = s.now()
	if err := summary.Validate(); err != nil {
		s.log.WithError(err).Warn("dashboard snapshot inconsistent")
	}
	return summary, nil
}

// FetchSection refreshes a single section of into in place. into is left
// untouched on error.
func (s *Service) FetchSection(ctx context.Context, section Section, into *Summary) error {
	fresh := &Summary{}
	var err error
	switch section {
	case SectionMetrics:
		fresh.Metrics, err = s.Metrics(ctx)
	case SectionConfusionMatrix:
		fresh.ConfusionMatrix, err = s.ConfusionMatrix(ctx)
	case SectionPerformance:
		fresh.Performance, err = s.Performance(ctx)
	case SectionDistribution:
		fresh.Distribution, err = s.Distribution(ctx)
	case SectionAnalytics:
		fresh.Analytics, err = s.Analytics(ctx)
	case SectionHistory:
		fresh.History, err = s.History(ctx, 0)
	default:
		return fmt.Errorf("unknown section %q", section)
	}
	if err != nil {
		return err
	}
	into.Merge(fresh, section)
	into.LastUpdated = s.now()
	return nil
}
