package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// CategoryPerformance holds per-category quality figures.
type CategoryPerformance struct {
	Category           string  `json:"category"`
	Accuracy           float64 `json:"accuracy"`
	F1Score            float64 `json:"f1_score"`
	Precision          float64 `json:"precision"`
	Recall             float64 `json:"recall"`
	TotalPredictions   int64   `json:"total_predictions"`
	CorrectPredictions int64   `json:"correct_predictions"`
}

// CategoryDistribution is the share of classified articles per category.
type CategoryDistribution struct {
	Category   string   `json:"category"`
	Count      int64    `json:"count"`
	Percentage float64  `json:"percentage"`
	Trend      *float64 `json:"trend,omitempty"`
}

// Analytics carries time series for the advanced analytics view.
type Analytics struct {
	DailyClassifications []float64            `json:"daily_classifications"`
	AccuracyTrend        []float64            `json:"accuracy_trend"`
	ProcessingSpeedTrend []float64            `json:"processing_speed_trend"`
	ErrorRateTrend       []float64            `json:"error_rate_trend"`
	CategoriesTrend      map[string][]float64 `json:"categories_trend"`
}

// TrendCategories returns the categories_trend keys sorted.
func (a Analytics) TrendCategories() []string {
	keys := make([]string, 0, len(a.CategoriesTrend))
	for k := range a.CategoriesTrend {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HistoryEntry is one past classification.
type HistoryEntry struct {
	ID             json.Number `json:"id"`
	Title          string      `json:"title"`
	Category       string      `json:"category"`
	Confidence     float64     `json:"confidence"`
	Timestamp      string      `json:"timestamp"`
	Abstract       string      `json:"abstract,omitempty"`
	ProcessingTime *float64    `json:"processing_time,omitempty"`
	Status         string      `json:"status,omitempty"`
}

// UnmarshalJSON accepts the legacy "date" field for the timestamp and
// numeric or string ids.
func (h *HistoryEntry) UnmarshalJSON(data []byte) error {
	type alias HistoryEntry
	var raw struct {
		alias
		ID   any    `json:"id"`
		Date string `json:"date"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*h = HistoryEntry(raw.alias)
	switch id := raw.ID.(type) {
	case float64:
		h.ID = json.Number(formatNumber(id))
	case string:
		h.ID = json.Number(id)
	case nil:
		h.ID = ""
	default:
		return fmt.Errorf("history entry: unsupported id %v", raw.ID)
	}
	if h.Timestamp == "" {
		h.Timestamp = raw.Date
	}
	return nil
}

// MarshalJSON writes an id as a number only when decoding it again yields
// the same text; "007", "+1" or "NaN" stay strings.
func (h HistoryEntry) MarshalJSON() ([]byte, error) {
	type alias HistoryEntry
	var id any = string(h.ID)
	if canonicalNumber(string(h.ID)) {
		id = h.ID
	}
	return json.Marshal(struct {
		ID any `json:"id"`
		alias
	}{ID: id, alias: alias(h)})
}

func canonicalNumber(s string) bool {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return formatNumber(v) == s
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}

// Summary is the full dashboard snapshot. Absent sections are nil.
type Summary struct {
	Metrics         *Metrics               `json:"metrics,omitempty"`
	ConfusionMatrix *ConfusionMatrix       `json:"confusion-matrix,omitempty"`
	Performance     []CategoryPerformance  `json:"performance,omitempty"`
	Distribution    []CategoryDistribution `json:"distribution,omitempty"`
	Analytics       *Analytics             `json:"analytics,omitempty"`
	History         []HistoryEntry         `json:"classification-history,omitempty"`
	LastUpdated     time.Time              `json:"last_updated"`
	DataRange       string                 `json:"data_range,omitempty"`
}

// Has reports whether the section holds data.
func (s *Summary) Has(section Section) bool {
	if s == nil {
		return false
	}
	switch section {
	case SectionMetrics:
		return s.Metrics != nil
	case SectionConfusionMatrix:
		return s.ConfusionMatrix != nil && s.ConfusionMatrix.Matrix != nil
	case SectionPerformance:
		return s.Performance != nil
	case SectionDistribution:
		return s.Distribution != nil
	case SectionAnalytics:
		return s.Analytics != nil
	case SectionHistory:
		return s.History != nil
	default:
		return false
	}
}

// Merge copies one section from src into s.
func (s *Summary) Merge(src *Summary, section Section) {
	switch section {
	case SectionMetrics:
		s.Metrics = src.Metrics
	case SectionConfusionMatrix:
		s.ConfusionMatrix = src.ConfusionMatrix
	case SectionPerformance:
		s.Performance = src.Performance
	case SectionDistribution:
		s.Distribution = src.Distribution
	case SectionAnalytics:
		s.Analytics = src.Analytics
	case SectionHistory:
		s.History = src.History
	}
}

// Categories is the union of categories seen across sections, in first-seen
// order starting from the confusion matrix.
func (s *Summary) Categories() []string {
	var out []string
	seen := map[string]bool{}
	add := func(c string) {
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	if s.ConfusionMatrix != nil {
		for _, c := range s.ConfusionMatrix.Categories() {
			add(c)
		}
	}
	for _, p := range s.Performance {
		add(p.Category)
	}
	for _, d := range s.Distribution {
		add(d.Category)
	}
	return out
}

// Validate reports invariant violations. The snapshot stays usable; callers
// log the result.
func (s *Summary) Validate() error {
	var errs []error
	categories := s.Categories()
	if s.Metrics != nil && len(categories) > 0 {
		for _, m := range s.Metrics.Scores() {
			if !m.Value.IsPerCategory() {
				continue
			}
			if !sameSet(m.Value.Categories(), categories) {
				errs = append(errs, fmt.Errorf("metric %s: categories %v do not match %v", m.Name, m.Value.Categories(), categories))
			}
		}
	}
	if s.ConfusionMatrix != nil && s.ConfusionMatrix.ReportedTotal != 0 {
		errs = append(errs, fmt.Errorf("confusion matrix: reported total %d, cells sum to %d",
			s.ConfusionMatrix.ReportedTotal, s.ConfusionMatrix.TotalPredictions()))
	}
	for _, p := range s.Performance {
		if p.CorrectPredictions > p.TotalPredictions {
			errs = append(errs, fmt.Errorf("performance %s: correct %d exceeds total %d", p.Category, p.CorrectPredictions, p.TotalPredictions))
		}
	}
	if len(s.Distribution) > 0 {
		var sum float64
		var count int64
		for _, d := range s.Distribution {
			if d.Count < 0 {
				errs = append(errs, fmt.Errorf("distribution %s: negative count %d", d.Category, d.Count))
			}
			sum += d.Percentage
			count += d.Count
		}
		if count > 0 && math.Abs(sum-100) > 0.5 {
			errs = append(errs, fmt.Errorf("distribution: percentages sum to %.2f", sum))
		}
	}
	return errors.Join(errs...)
}

// DistributionFromMatrix derives per-category counts from the confusion
// matrix: row sums for a shared matrix, all four cells for per-category
// tables. Percentages are shares of the summed counts.
func DistributionFromMatrix(cm ConfusionMatrix) []CategoryDistribution {
	var counts []int64
	categories := cm.Categories()
	switch m := cm.Matrix.(type) {
	case SharedMatrix:
		for i := range m.Labels {
			var row int64
			for j := range m.Labels {
				row += m.Cell(i, j)
			}
			counts = append(counts, row)
		}
	case PerCategoryMatrix:
		for _, c := range m.Order {
			counts = append(counts, m.Counts[c].Sum())
		}
	}
	var total int64
	for _, c := range counts {
		total += c
	}
	out := make([]CategoryDistribution, 0, len(categories))
	for i, c := range categories {
		pct := 0.0
		if total > 0 {
			pct = float64(counts[i]) / float64(total) * 100
		}
		zero := 0.0
		out = append(out, CategoryDistribution{Category: c, Count: counts[i], Percentage: pct, Trend: &zero})
	}
	return out
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if !set[v] {
			return false
		}
	}
	return true
}
