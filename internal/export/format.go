package export

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/tomkat-cr/abstractgo/internal/dashboard"
)

// Humanize turns "f1_score" into "F1 Score".
func Humanize(name string) string {
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// DisplayValue renders ratios below 1 as percentages with one decimal and
// anything else as a plain number.
func DisplayValue(v float64) string {
	if v < 1 {
		return fmt.Sprintf("%.1f%%", v*100)
	}
	return raw(v)
}

// PerformanceStatus grades a category by accuracy.
func PerformanceStatus(accuracy float64) string {
	switch {
	case accuracy >= 0.9:
		return "Excellent"
	case accuracy >= 0.8:
		return "Good"
	default:
		return "Needs Improvement"
	}
}

// ConfidenceLevel grades a single history confidence score.
func ConfidenceLevel(confidence float64) string {
	switch {
	case confidence > 0.9:
		return "High"
	case confidence > 0.7:
		return "Medium"
	default:
		return "Low"
	}
}

// Truncate shortens s to n runes, appending "..." when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// EstimateSize approximates the artifact size shown before exporting.
func EstimateSize(sections int, f Format) string {
	mult := 0.5
	switch f {
	case FormatPDF:
		mult = 2
	case FormatExcel:
		mult = 1.5
	}
	return fmt.Sprintf("%.1f MB", float64(sections)*0.5*mult)
}

func raw(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// rankedDistribution sorts by count descending, keeping input order on ties.
func rankedDistribution(in []dashboard.CategoryDistribution) []dashboard.CategoryDistribution {
	out := append([]dashboard.CategoryDistribution(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}

type analyticsSummary struct {
	TotalClassifications float64
	AverageDaily         float64
	PeakAccuracy         float64
	AverageAccuracy      float64
	AverageSpeed         float64
	AverageErrorRate     float64
}

func summarizeAnalytics(a *dashboard.Analytics) analyticsSummary {
	sum := func(xs []float64) float64 {
		var t float64
		for _, x := range xs {
			t += x
		}
		return t
	}
	mean := func(xs []float64) float64 {
		if len(xs) == 0 {
			return 0
		}
		return sum(xs) / float64(len(xs))
	}
	var peak float64
	for i, x := range a.AccuracyTrend {
		if i == 0 || x > peak {
			peak = x
		}
	}
	return analyticsSummary{
		TotalClassifications: sum(a.DailyClassifications),
		AverageDaily:         round(mean(a.DailyClassifications), 1),
		PeakAccuracy:         peak,
		AverageAccuracy:      round(mean(a.AccuracyTrend), 3),
		AverageSpeed:         round(mean(a.ProcessingSpeedTrend), 1),
		AverageErrorRate:     round(mean(a.ErrorRateTrend), 3),
	}
}

// metricRow is one flattened metrics line.
type metricRow struct {
	Name     string
	Category string
	Value    float64
	Text     string
}

// flattenMetrics expands per-category scores into one row per category.
func flattenMetrics(m *dashboard.Metrics) []metricRow {
	var rows []metricRow
	for _, score := range m.Scores() {
		if !score.Value.IsPerCategory() {
			rows = append(rows, metricRow{Name: score.Name, Value: score.Value.Value()})
			continue
		}
		for _, c := range score.Value.Categories() {
			v, _ := score.Value.For(c)
			rows = append(rows, metricRow{Name: score.Name, Category: c, Value: v})
		}
	}
	rows = append(rows,
		metricRow{Name: "total_articles", Value: float64(m.TotalArticles)},
		metricRow{Name: "processing_speed", Value: m.ProcessingSpeed},
		metricRow{Name: "processing_speed_unit", Text: string(m.ProcessingSpeedUnit)},
	)
	if m.AvgProcessingTime != nil {
		rows = append(rows, metricRow{Name: "avg_processing_time", Value: *m.AvgProcessingTime})
	}
	return rows
}

func optional(v *float64) string {
	if v == nil {
		return ""
	}
	return raw(*v)
}
