package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tomkat-cr/abstractgo/internal/dashboard"
)

// JSONVersion is written to the envelope metadata.
const JSONVersion = "1.0"

// Metadata describes a JSON export.
type Metadata struct {
	ExportedAt string              `json:"exported_at"`
	Version    string              `json:"version"`
	Sections   []dashboard.Section `json:"sections"`
	Format     Format              `json:"format"`
	DateRange  string              `json:"date_range"`
}

type jsonEnvelope struct {
	Metadata Metadata `json:"metadata"`
	Data     jsonData `json:"data"`
}

// jsonData keeps sections in export order; pointers distinguish an absent
// section from an empty one.
type jsonData struct {
	Metrics         *dashboard.Metrics                `json:"metrics,omitempty"`
	Performance     *[]dashboard.CategoryPerformance  `json:"performance,omitempty"`
	Distribution    *[]dashboard.CategoryDistribution `json:"distribution,omitempty"`
	ConfusionMatrix *dashboard.ConfusionMatrix        `json:"confusion-matrix,omitempty"`
	History         *[]dashboard.HistoryEntry         `json:"classification-history,omitempty"`
	Analytics       *dashboard.Analytics              `json:"analytics,omitempty"`
}

func encodeJSON(j *job) ([]byte, error) {
	env := jsonEnvelope{
		Metadata: Metadata{
			ExportedAt: j.selection.At.UTC().Format(time.RFC3339Nano),
			Version:    JSONVersion,
			Sections:   j.selection.Sections,
			Format:     FormatJSON,
			DateRange:  j.selection.DateRange,
		},
	}
	s := j.summary
	for _, section := range j.sections {
		switch section {
		case dashboard.SectionMetrics:
			env.Data.Metrics = s.Metrics
		case dashboard.SectionPerformance:
			env.Data.Performance = &s.Performance
		case dashboard.SectionDistribution:
			env.Data.Distribution = &s.Distribution
		case dashboard.SectionConfusionMatrix:
			env.Data.ConfusionMatrix = s.ConfusionMatrix
		case dashboard.SectionHistory:
			env.Data.History = &s.History
		case dashboard.SectionAnalytics:
			env.Data.Analytics = s.Analytics
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadJSON parses a JSON export back into a snapshot holding only the
// exported sections.
func ReadJSON(data []byte) (*dashboard.Summary, Metadata, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, Metadata{}, fmt.Errorf("parse export: %w", err)
	}
	if env.Metadata.Version == "" {
		return nil, Metadata{}, fmt.Errorf("parse export: missing metadata")
	}
	s := &dashboard.Summary{
		Metrics:         env.Data.Metrics,
		ConfusionMatrix: env.Data.ConfusionMatrix,
		Analytics:       env.Data.Analytics,
		DataRange:       env.Metadata.DateRange,
	}
	if env.Data.Performance != nil {
		s.Performance = nonNil(*env.Data.Performance)
	}
	if env.Data.Distribution != nil {
		s.Distribution = nonNil(*env.Data.Distribution)
	}
	if env.Data.History != nil {
		s.History = nonNil(*env.Data.History)
	}
	if at, err := time.Parse(time.RFC3339Nano, env.Metadata.ExportedAt); err == nil {
		s.LastUpdated = at
	}
	return s, env.Metadata, nil
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
