// Package dashboardtest provides a fixed dashboard snapshot and fakes that
// stand in for the live API in tests.
package dashboardtest

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/tomkat-cr/abstractgo/internal/dashboard"
)

// Categories are the four labels the classifier predicts.
var Categories = []string{"Cardiovascular", "Neurological", "Hepatorenal", "Oncological"}

// FixedTime is the LastUpdated stamp of Summary.
var FixedTime = time.Date(2024, time.January, 15, 10, 30, 0, 0, time.UTC)

// Summary returns a complete snapshot with per-category confusion tables.
// Each call returns fresh values that callers may mutate.
func Summary() *dashboard.Summary {
	precision := dashboard.PerCategory(map[string]float64{
		"Cardiovascular": 0.95,
		"Neurological":   0.93,
		"Hepatorenal":    0.91,
		"Oncological":    0.89,
	})
	recall := dashboard.Scalar(0.91)
	avg := 4.1
	trend := func(v float64) *float64 { return &v }
	processing := func(v float64) *float64 { return &v }

	return &dashboard.Summary{
		Metrics: &dashboard.Metrics{
			F1Score:             dashboard.Scalar(0.94),
			Accuracy:            dashboard.Scalar(0.92),
			Precision:           &precision,
			Recall:              &recall,
			TotalArticles:       15847,
			ProcessingSpeed:     245,
			ProcessingSpeedUnit: dashboard.SpeedArticlesPerSecond,
			AvgProcessingTime:   &avg,
		},
		ConfusionMatrix: &dashboard.ConfusionMatrix{
			Matrix: dashboard.PerCategoryMatrix{
				Order: append([]string(nil), Categories...),
				Counts: map[string]dashboard.BinaryCounts{
					"Cardiovascular": {TP: 892, FN: 23, FP: 15, TN: 8},
					"Neurological":   {TP: 756, FN: 18, FP: 21, TN: 143},
					"Hepatorenal":    {TP: 634, FN: 19, FP: 12, TN: 273},
					"Oncological":    {TP: 423, FN: 14, FP: 7, TN: 494},
				},
			},
		},
		Performance: []dashboard.CategoryPerformance{
			{Category: "Cardiovascular", Accuracy: 0.95, F1Score: 0.94, Precision: 0.96, Recall: 0.93, TotalPredictions: 938, CorrectPredictions: 892},
			{Category: "Neurological", Accuracy: 0.93, F1Score: 0.92, Precision: 0.92, Recall: 0.91, TotalPredictions: 807, CorrectPredictions: 756},
			{Category: "Hepatorenal", Accuracy: 0.85, F1Score: 0.90, Precision: 0.89, Recall: 0.88, TotalPredictions: 671, CorrectPredictions: 634},
			{Category: "Oncological", Accuracy: 0.79, F1Score: 0.88, Precision: 0.87, Recall: 0.86, TotalPredictions: 450, CorrectPredictions: 423},
		},
		Distribution: []dashboard.CategoryDistribution{
			{Category: "Cardiovascular", Count: 938, Percentage: 35.2, Trend: trend(2.5)},
			{Category: "Neurological", Count: 807, Percentage: 30.3, Trend: trend(-1.2)},
			{Category: "Hepatorenal", Count: 671, Percentage: 25.2, Trend: trend(0.4)},
			{Category: "Oncological", Count: 250, Percentage: 9.3},
		},
		Analytics: &dashboard.Analytics{
			DailyClassifications: []float64{245, 267, 289, 234, 256, 278, 290},
			AccuracyTrend:        []float64{0.89, 0.91, 0.92, 0.93, 0.92, 0.94, 0.92},
			ProcessingSpeedTrend: []float64{240, 242, 250, 238, 245, 251, 247},
			ErrorRateTrend:       []float64{0.11, 0.09, 0.08, 0.07, 0.08, 0.06, 0.08},
			CategoriesTrend: map[string][]float64{
				"Cardiovascular": {120, 135, 142, 128, 140, 155, 148},
				"Neurological":   {98, 105, 112, 95, 108, 115, 110},
				"Hepatorenal":    {85, 92, 98, 88, 95, 102, 98},
				"Oncological":    {42, 35, 37, 23, 13, 6, 34},
			},
		},
		History: []dashboard.HistoryEntry{
			{ID: "1", Title: "Cardiovascular Disease Study", Category: "Cardiovascular", Confidence: 0.95, Timestamp: "2024-01-15", ProcessingTime: processing(3.2), Status: "completed"},
			{ID: "2", Title: "Neurological Disorder Research, a longitudinal cohort", Category: "Neurological", Confidence: 0.92, Timestamp: "2024-01-14", Status: "completed"},
			{ID: "3", Title: "Liver Function Analysis", Category: "Hepatorenal", Confidence: 0.78, Timestamp: "2024-01-13", Status: "completed"},
			{ID: "4", Title: "Cancer Treatment Review", Category: "Oncological", Confidence: 0.61, Timestamp: "2024-01-12", Status: "completed"},
		},
		LastUpdated: FixedTime,
		DataRange:   "Current",
	}
}

// SharedSummary is Summary with an N×N confusion matrix instead.
func SharedSummary() *dashboard.Summary {
	s := Summary()
	s.ConfusionMatrix = &dashboard.ConfusionMatrix{
		Matrix: dashboard.SharedMatrix{
			Labels: append([]string(nil), Categories...),
			Cells: [][]int64{
				{892, 23, 15, 8},
				{18, 756, 12, 21},
				{11, 19, 634, 7},
				{5, 14, 8, 423},
			},
		},
	}
	return s
}

// Source is a dashboard.Source backed by a fixed snapshot.
type Source struct {
	Snapshot *dashboard.Summary
	Err      error
	// SectionErr fails FetchSection for individual sections.
	SectionErr map[dashboard.Section]error

	calls int64
}

// NewSource serves Summary().
func NewSource() *Source {
	return &Source{Snapshot: Summary()}
}

// Calls reports how many fetches were served.
func (s *Source) Calls() int {
	return int(atomic.LoadInt64(&s.calls))
}

func (s *Source) FetchAll(ctx context.Context) (*dashboard.Summary, error) {
	atomic.AddInt64(&s.calls, 1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return clone(s.Snapshot), nil
}

func (s *Source) FetchSection(ctx context.Context, section dashboard.Section, into *dashboard.Summary) error {
	atomic.AddInt64(&s.calls, 1)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.SectionErr[section]; err != nil {
		return err
	}
	if s.Err != nil {
		return s.Err
	}
	src := clone(s.Snapshot)
	switch section {
	case dashboard.SectionMetrics:
		into.Metrics = src.Metrics
	case dashboard.SectionConfusionMatrix:
		into.ConfusionMatrix = src.ConfusionMatrix
	case dashboard.SectionPerformance:
		into.Performance = src.Performance
	case dashboard.SectionDistribution:
		into.Distribution = src.Distribution
	case dashboard.SectionAnalytics:
		into.Analytics = src.Analytics
	case dashboard.SectionHistory:
		into.History = src.History
	}
	into.LastUpdated = src.LastUpdated
	return nil
}

func clone(s *dashboard.Summary) *dashboard.Summary {
	if s == nil {
		return &dashboard.Summary{}
	}
	cp := *s
	cp.Performance = append([]dashboard.CategoryPerformance(nil), s.Performance...)
	cp.Distribution = append([]dashboard.CategoryDistribution(nil), s.Distribution...)
	cp.History = append([]dashboard.HistoryEntry(nil), s.History...)
	return &cp
}

// WirePayload renders a section the way the API serves it.
func WirePayload(s *dashboard.Summary, section dashboard.Section) []byte {
	var v any
	switch section {
	case dashboard.SectionMetrics:
		v = s.Metrics
	case dashboard.SectionConfusionMatrix:
		v = s.ConfusionMatrix
	case dashboard.SectionPerformance:
		v = s.Performance
	case dashboard.SectionDistribution:
		v = s.Distribution
	case dashboard.SectionAnalytics:
		v = s.Analytics
	case dashboard.SectionHistory:
		v = s.History
	}
	buf, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return buf
}
