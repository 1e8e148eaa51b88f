package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// MetricValue is either a single score or a score per category.
type MetricValue struct {
	scalar      float64
	perCategory map[string]float64
}

// Scalar builds a single-number metric.
func Scalar(v float64) MetricValue {
	return MetricValue{scalar: v}
}

// PerCategory builds a category-keyed metric. The map is copied.
func PerCategory(values map[string]float64) MetricValue {
	cp := make(map[string]float64, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return MetricValue{perCategory: cp}
}

// IsPerCategory reports whether the metric is category-keyed.
func (m MetricValue) IsPerCategory() bool {
	return m.perCategory != nil
}

// Value collapses the metric to one number: the scalar itself, or the
// unweighted mean across categories (0 when there are none).
func (m MetricValue) Value() float64 {
	if m.perCategory == nil {
		return m.scalar
	}
	if len(m.perCategory) == 0 {
		return 0
	}
	var sum float64
	for _, v := range m.perCategory {
		sum += v
	}
	return sum / float64(len(m.perCategory))
}

// For returns the score of a single category.
func (m MetricValue) For(category string) (float64, bool) {
	v, ok := m.perCategory[category]
	return v, ok
}

// Categories returns the metric's category keys sorted alphabetically.
func (m MetricValue) Categories() []string {
	keys := make([]string, 0, len(m.perCategory))
	for k := range m.perCategory {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON emits a number or an object, mirroring the wire shape.
func (m MetricValue) MarshalJSON() ([]byte, error) {
	if m.perCategory != nil {
		return json.Marshal(m.perCategory)
	}
	return json.Marshal(m.scalar)
}

// UnmarshalJSON accepts a number, an object of numbers, or null.
func (m *MetricValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*m = MetricValue{}
		return nil
	case data[0] == '{':
		var values map[string]float64
		if err := json.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("per-category metric: %w", err)
		}
		*m = PerCategory(values)
		return nil
	default:
		var v float64
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("scalar metric: %w", err)
		}
		*m = Scalar(v)
		return nil
	}
}

// SpeedUnit names the unit of a processing speed figure.
type SpeedUnit string

const (
	SpeedUnspecified       SpeedUnit = "unspecified"
	SpeedArticlesPerSecond SpeedUnit = "articles_per_second"
	SpeedMsPerArticle      SpeedUnit = "ms_per_article"
)

// Label is a short suffix for rendering.
func (u SpeedUnit) Label() string {
	switch u {
	case SpeedArticlesPerSecond:
		return "articles/s"
	case SpeedMsPerArticle:
		return "ms/article"
	default:
		return "(unit unspecified)"
	}
}

// ParseSpeedUnit maps the values upstream APIs use for the unit field.
func ParseSpeedUnit(raw string) SpeedUnit {
	switch raw {
	case "articles_per_second", "articles/s", "articles_per_sec", "samples_per_second":
		return SpeedArticlesPerSecond
	case "ms_per_article", "ms/article", "ms":
		return SpeedMsPerArticle
	default:
		return SpeedUnspecified
	}
}

// Metrics is the aggregate model quality snapshot.
type Metrics struct {
	F1Score             MetricValue  `json:"f1_score"`
	Accuracy            MetricValue  `json:"accuracy"`
	Precision           *MetricValue `json:"precision,omitempty"`
	Recall              *MetricValue `json:"recall,omitempty"`
	TotalArticles       int64        `json:"total_articles"`
	ProcessingSpeed     float64      `json:"processing_speed"`
	ProcessingSpeedUnit SpeedUnit    `json:"processing_speed_unit"`
	AvgProcessingTime   *float64     `json:"avg_processing_time,omitempty"`
}

// UnmarshalJSON normalizes the unit field: a missing or unknown unit is
// recorded as unspecified rather than guessed.
func (m *Metrics) UnmarshalJSON(data []byte) error {
	type alias Metrics
	var raw struct {
		alias
		Unit string `json:"processing_speed_unit"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Metrics(raw.alias)
	m.ProcessingSpeedUnit = ParseSpeedUnit(raw.Unit)
	return nil
}

// NamedMetric pairs a wire name with its value for ordered rendering.
type NamedMetric struct {
	Name  string
	Value MetricValue
}

// Scores returns the quality metrics present, in a stable order.
func (m Metrics) Scores() []NamedMetric {
	out := []NamedMetric{
		{Name: "f1_score", Value: m.F1Score},
		{Name: "accuracy", Value: m.Accuracy},
	}
	if m.Precision != nil {
		out = append(out, NamedMetric{Name: "precision", Value: *m.Precision})
	}
	if m.Recall != nil {
		out = append(out, NamedMetric{Name: "recall", Value: *m.Recall})
	}
	return out
}
