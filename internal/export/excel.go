package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tomkat-cr/abstractgo/internal/dashboard"
)

// SheetName is the worksheet a section is written to.
func SheetName(section dashboard.Section) string {
	switch section {
	case dashboard.SectionMetrics:
		return "Metrics"
	case dashboard.SectionPerformance:
		return "Performance"
	case dashboard.SectionDistribution:
		return "Distribution"
	case dashboard.SectionConfusionMatrix:
		return "Confusion Matrix"
	case dashboard.SectionHistory:
		return "Classification History"
	case dashboard.SectionAnalytics:
		return "Analytics Summary"
	}
	return string(section)
}

type sheet struct {
	title   string
	headers []string
	rows    [][]any
	widths  []float64
}

func encodeExcel(j *job) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return nil, err
	}

	const defaultSheet = "Sheet1"
	written := 0
	for _, section := range j.sections {
		name := SheetName(section)
		if written == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
		if err := writeSheet(f, name, buildSheet(j.summary, section), bold, titleStyle); err != nil {
			return nil, &Error{Reason: ReasonSerialization, Format: FormatExcel, Section: section, Err: err}
		}
		written++
	}
	if written == 0 {
		empty := sheet{title: "AbstractGo Dashboard Report", headers: []string{"No data available for the selected sections"}}
		if err := f.SetSheetName(defaultSheet, "Summary"); err != nil {
			return nil, err
		}
		if err := writeSheet(f, "Summary", empty, bold, titleStyle); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	stamp := j.selection.At.UTC().Format(time.RFC3339)
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:          "AbstractGo Dashboard Report",
		Creator:        "AbstractGo",
		LastModifiedBy: "AbstractGo",
		Created:        stamp,
		Modified:       stamp,
		Description:    fmt.Sprintf("Data range: %s", j.selection.DateRange),
	}); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, name string, sh sheet, bold, titleStyle int) error {
	if err := f.SetSheetRow(name, "A1", &[]any{sh.title}); err != nil {
		return err
	}
	if err := f.SetCellStyle(name, "A1", "A1", titleStyle); err != nil {
		return err
	}
	headers := make([]any, len(sh.headers))
	for i, h := range sh.headers {
		headers[i] = h
	}
	if err := f.SetSheetRow(name, "A2", &headers); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(max(len(sh.headers), 1), 2)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(name, "A2", last, bold); err != nil {
		return err
	}
	for i, row := range sh.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return err
		}
	}
	for i, w := range sh.widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(name, col, col, w); err != nil {
			return err
		}
	}
	return nil
}

func buildSheet(s *dashboard.Summary, section dashboard.Section) sheet {
	sh := sheet{title: section.Title()}
	switch section {
	case dashboard.SectionMetrics:
		sh.headers = []string{"Metric", "Category", "Value"}
		sh.widths = []float64{28, 20, 14}
		for _, r := range flattenMetrics(s.Metrics) {
			var value any = r.Value
			if r.Text != "" {
				value = r.Text
			}
			sh.rows = append(sh.rows, []any{Humanize(r.Name), r.Category, value})
		}
	case dashboard.SectionPerformance:
		sh.headers = []string{"Category", "Accuracy", "F1 Score", "Precision", "Recall", "Total Predictions", "Correct Predictions", "Status"}
		sh.widths = []float64{20, 12, 12, 12, 12, 18, 20, 20}
		for _, p := range s.Performance {
			sh.rows = append(sh.rows, []any{
				p.Category, p.Accuracy, p.F1Score, p.Precision, p.Recall,
				p.TotalPredictions, p.CorrectPredictions, PerformanceStatus(p.Accuracy),
			})
		}
	case dashboard.SectionDistribution:
		sh.headers = []string{"Category", "Count", "Percentage", "Trend", "Rank"}
		sh.widths = []float64{20, 12, 12, 12, 8}
		for i, d := range rankedDistribution(s.Distribution) {
			var trend any = ""
			if d.Trend != nil {
				trend = *d.Trend
			}
			sh.rows = append(sh.rows, []any{d.Category, d.Count, d.Percentage, trend, i + 1})
		}
	case dashboard.SectionConfusionMatrix:
		acc := s.ConfusionMatrix.AccuracyPerCategory()
		switch m := s.ConfusionMatrix.Matrix.(type) {
		case dashboard.PerCategoryMatrix:
			sh.headers = []string{"Category", "True Positives", "False Negatives", "False Positives", "True Negatives", "Accuracy"}
			sh.widths = []float64{20, 16, 16, 16, 16, 12}
			for _, c := range m.Order {
				b := m.Counts[c]
				sh.rows = append(sh.rows, []any{c, b.TP, b.FN, b.FP, b.TN, round(acc[c], 4)})
			}
		case dashboard.SharedMatrix:
			sh.headers = append([]string{`Actual \ Predicted`}, m.Labels...)
			sh.headers = append(sh.headers, "Accuracy")
			sh.widths = []float64{20}
			for i, label := range m.Labels {
				row := []any{label}
				for k := range m.Labels {
					row = append(row, m.Cell(i, k))
				}
				sh.rows = append(sh.rows, append(row, round(acc[label], 4)))
				sh.widths = append(sh.widths, 16)
			}
			sh.widths = append(sh.widths, 12)
		}
	case dashboard.SectionHistory:
		sh.headers = []string{"ID", "Title", "Category", "Confidence", "Timestamp", "Confidence Level"}
		sh.widths = []float64{8, 48, 20, 12, 22, 18}
		for _, h := range s.History {
			sh.rows = append(sh.rows, []any{h.ID.String(), h.Title, h.Category, h.Confidence, h.Timestamp, ConfidenceLevel(h.Confidence)})
		}
	case dashboard.SectionAnalytics:
		sum := summarizeAnalytics(s.Analytics)
		sh.headers = []string{"Metric", "Value"}
		sh.widths = []float64{28, 14}
		sh.rows = [][]any{
			{"Total Classifications", sum.TotalClassifications},
			{"Average Daily", sum.AverageDaily},
			{"Peak Accuracy", sum.PeakAccuracy},
			{"Average Accuracy", sum.AverageAccuracy},
			{"Average Processing Speed", sum.AverageSpeed},
			{"Average Error Rate", sum.AverageErrorRate},
		}
	}
	return sh
}
