package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/tomkat-cr/abstractgo/internal/dashboard"
)

func encodeCSV(j *job) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	s := j.summary

	for i, section := range j.sections {
		if i > 0 {
			w.Write([]string{""})
		}
		w.Write([]string{section.Title()})
		switch section {
		case dashboard.SectionMetrics:
			w.Write([]string{"Metric", "Category", "Value"})
			for _, row := range flattenMetrics(s.Metrics) {
				value := row.Text
				if value == "" {
					value = raw(row.Value)
				}
				w.Write([]string{row.Name, row.Category, value})
			}
		case dashboard.SectionPerformance:
			w.Write([]string{"Category", "Accuracy", "F1 Score", "Precision", "Recall", "Total Predictions", "Correct Predictions"})
			for _, p := range s.Performance {
				w.Write([]string{
					p.Category, raw(p.Accuracy), raw(p.F1Score), raw(p.Precision), raw(p.Recall),
					strconv.FormatInt(p.TotalPredictions, 10), strconv.FormatInt(p.CorrectPredictions, 10),
				})
			}
		case dashboard.SectionDistribution:
			w.Write([]string{"Category", "Count", "Percentage", "Trend"})
			for _, d := range s.Distribution {
				w.Write([]string{d.Category, strconv.FormatInt(d.Count, 10), raw(d.Percentage), optional(d.Trend)})
			}
		case dashboard.SectionConfusionMatrix:
			for _, record := range confusionRecords(s.ConfusionMatrix) {
				w.Write(record)
			}
		case dashboard.SectionHistory:
			w.Write([]string{"ID", "Title", "Category", "Confidence", "Timestamp", "Processing Time", "Status"})
			for _, h := range s.History {
				w.Write([]string{h.ID.String(), h.Title, h.Category, raw(h.Confidence), h.Timestamp, optional(h.ProcessingTime), h.Status})
			}
		case dashboard.SectionAnalytics:
			for _, record := range analyticsRecords(s.Analytics) {
				w.Write(record)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// confusionRecords returns the header and rows for either representation.
// Accuracy is written with four decimals.
func confusionRecords(cm *dashboard.ConfusionMatrix) [][]string {
	acc := cm.AccuracyPerCategory()
	switch m := cm.Matrix.(type) {
	case dashboard.PerCategoryMatrix:
		out := [][]string{{"Category", "TP", "FN", "FP", "TN", "Accuracy"}}
		for _, c := range m.Order {
			b := m.Counts[c]
			out = append(out, []string{
				c,
				strconv.FormatInt(b.TP, 10),
				strconv.FormatInt(b.FN, 10),
				strconv.FormatInt(b.FP, 10),
				strconv.FormatInt(b.TN, 10),
				fmt.Sprintf("%.4f", acc[c]),
			})
		}
		return out
	case dashboard.SharedMatrix:
		header := append([]string{`Actual \ Predicted`}, m.Labels...)
		out := [][]string{append(header, "Accuracy")}
		for i, label := range m.Labels {
			row := []string{label}
			for j := range m.Labels {
				row = append(row, strconv.FormatInt(m.Cell(i, j), 10))
			}
			out = append(out, append(row, fmt.Sprintf("%.4f", acc[label])))
		}
		return out
	}
	return nil
}

// analyticsRecords lays the series out one day per row. Shorter series
// leave blank cells.
func analyticsRecords(a *dashboard.Analytics) [][]string {
	categories := a.TrendCategories()
	header := []string{"Day", "Daily Classifications", "Accuracy", "Processing Speed", "Error Rate"}
	header = append(header, categories...)

	days := maxLen(a.DailyClassifications, a.AccuracyTrend, a.ProcessingSpeedTrend, a.ErrorRateTrend)
	for _, c := range categories {
		if n := len(a.CategoriesTrend[c]); n > days {
			days = n
		}
	}
	out := [][]string{header}
	for i := 0; i < days; i++ {
		row := []string{
			strconv.Itoa(i + 1),
			at(a.DailyClassifications, i),
			at(a.AccuracyTrend, i),
			at(a.ProcessingSpeedTrend, i),
			at(a.ErrorRateTrend, i),
		}
		for _, c := range categories {
			row = append(row, at(a.CategoriesTrend[c], i))
		}
		out = append(out, row)
	}
	return out
}

func maxLen(series ...[]float64) int {
	n := 0
	for _, s := range series {
		if len(s) > n {
			n = len(s)
		}
	}
	return n
}

func at(series []float64, i int) string {
	if i >= len(series) {
		return ""
	}
	return raw(series[i])
}
