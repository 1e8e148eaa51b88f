package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/tomkat-cr/abstractgo/internal/dashboard"
)

const (
	pdfTitle      = "ABSTRACTGO DASHBOARD REPORT"
	pdfLineHeight = 7.0
	historyTitle  = 30
)

type pdfDoc struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func encodePDF(j *job) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("AbstractGo Dashboard Report", true)
	pdf.SetCreator("AbstractGo", true)
	pdf.SetCreationDate(j.selection.At)
	pdf.SetModificationDate(j.selection.At)
	pdf.SetCatalogSort(true)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	d := &pdfDoc{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.AddPage()
	d.header(j)

	for _, section := range j.sections {
		s := j.summary
		switch section {
		case dashboard.SectionMetrics:
			d.metrics(s.Metrics)
		case dashboard.SectionPerformance:
			d.performance(s.Performance)
		case dashboard.SectionDistribution:
			d.distribution(s.Distribution)
		case dashboard.SectionConfusionMatrix:
			pdf.AddPage()
			d.confusion(s.ConfusionMatrix)
		case dashboard.SectionHistory:
			pdf.AddPage()
			d.history(s.History)
		case dashboard.SectionAnalytics:
			d.analytics(s.Analytics)
		}
		if err := pdf.Error(); err != nil {
			return nil, &Error{Reason: ReasonSerialization, Format: FormatPDF, Section: section, Err: err}
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *pdfDoc) header(j *job) {
	d.pdf.SetFont("Helvetica", "B", 18)
	d.pdf.CellFormat(0, 12, pdfTitle, "", 1, "C", false, 0, "")
	d.pdf.SetFont("Helvetica", "", 10)
	names := make([]string, len(j.sections))
	for i, s := range j.sections {
		names[i] = s.Title()
	}
	if len(names) == 0 {
		names = []string{"None"}
	}
	lines := []string{
		"Generated: " + j.selection.At.UTC().Format(time.RFC1123),
		"Sections: " + strings.Join(names, ", "),
		"Data Range: " + j.selection.DateRange,
	}
	for _, l := range lines {
		d.pdf.MultiCell(0, 6, d.tr(l), "", "L", false)
	}
	d.pdf.Ln(4)
}

func (d *pdfDoc) heading(title string) {
	d.pdf.Ln(2)
	d.pdf.SetFont("Helvetica", "B", 13)
	d.pdf.SetTextColor(30, 64, 175)
	d.pdf.CellFormat(0, 9, d.tr(title), "B", 1, "L", false, 0, "")
	d.pdf.SetTextColor(0, 0, 0)
	d.pdf.Ln(2)
}

// table draws a header row and body rows; widths are in mm.
func (d *pdfDoc) table(widths []float64, header []string, rows [][]string) {
	d.pdf.SetFont("Helvetica", "B", 9)
	d.pdf.SetFillColor(229, 231, 235)
	for i, h := range header {
		d.pdf.CellFormat(widths[i], pdfLineHeight, d.tr(h), "1", 0, "C", true, 0, "")
	}
	d.pdf.Ln(-1)
	d.pdf.SetFont("Helvetica", "", 9)
	for _, row := range rows {
		for i, cell := range row {
			align := "L"
			if i > 0 {
				align = "R"
			}
			d.pdf.CellFormat(widths[i], pdfLineHeight, d.tr(cell), "1", 0, align, false, 0, "")
		}
		d.pdf.Ln(-1)
	}
	d.pdf.Ln(3)
}

func (d *pdfDoc) metrics(m *dashboard.Metrics) {
	d.heading(dashboard.SectionMetrics.Title())
	var rows [][]string
	for _, r := range flattenMetrics(m) {
		value := r.Text
		switch {
		case r.Name == "processing_speed_unit":
			value = m.ProcessingSpeedUnit.Label()
		case r.Name == "total_articles":
			value = strconv.FormatInt(m.TotalArticles, 10)
		case r.Name == "processing_speed" || r.Name == "avg_processing_time":
			value = raw(round(r.Value, 2))
		default:
			value = DisplayValue(r.Value)
		}
		rows = append(rows, []string{Humanize(r.Name), r.Category, value})
	}
	d.table([]float64{70, 60, 50}, []string{"Metric", "Category", "Value"}, rows)
}

func (d *pdfDoc) performance(perf []dashboard.CategoryPerformance) {
	d.heading(dashboard.SectionPerformance.Title())
	var rows [][]string
	for _, p := range perf {
		rows = append(rows, []string{
			p.Category,
			DisplayValue(p.Accuracy),
			DisplayValue(p.F1Score),
			DisplayValue(p.Precision),
			DisplayValue(p.Recall),
			PerformanceStatus(p.Accuracy),
		})
	}
	d.table([]float64{38, 24, 24, 24, 24, 46},
		[]string{"Category", "Accuracy", "F1 Score", "Precision", "Recall", "Status"}, rows)
}

func (d *pdfDoc) distribution(dist []dashboard.CategoryDistribution) {
	d.heading(dashboard.SectionDistribution.Title())
	var rows [][]string
	for i, c := range rankedDistribution(dist) {
		trend := "-"
		if c.Trend != nil {
			trend = fmt.Sprintf("%+.1f%%", *c.Trend)
		}
		rows = append(rows, []string{
			c.Category,
			strconv.FormatInt(c.Count, 10),
			fmt.Sprintf("%.1f%%", c.Percentage),
			trend,
			strconv.Itoa(i + 1),
		})
	}
	d.table([]float64{50, 35, 35, 35, 25},
		[]string{"Category", "Count", "Percentage", "Trend", "Rank"}, rows)
}

func (d *pdfDoc) confusion(cm *dashboard.ConfusionMatrix) {
	d.heading(dashboard.SectionConfusionMatrix.Title())
	records := confusionRecords(cm)
	if len(records) == 0 {
		return
	}
	cols := len(records[0])
	first := 40.0
	rest := (180 - first) / float64(cols-1)
	widths := []float64{first}
	for i := 1; i < cols; i++ {
		widths = append(widths, rest)
	}
	d.table(widths, records[0], records[1:])
	d.pdf.SetFont("Helvetica", "I", 9)
	d.pdf.MultiCell(0, 5, fmt.Sprintf("Total predictions: %d", cm.TotalPredictions()), "", "L", false)
}

func (d *pdfDoc) history(entries []dashboard.HistoryEntry) {
	d.heading(dashboard.SectionHistory.Title())
	var rows [][]string
	for _, h := range entries {
		rows = append(rows, []string{
			h.ID.String(),
			Truncate(h.Title, historyTitle),
			h.Category,
			DisplayValue(h.Confidence),
			ConfidenceLevel(h.Confidence),
		})
	}
	d.table([]float64{14, 72, 36, 28, 30},
		[]string{"ID", "Title", "Category", "Confidence", "Level"}, rows)
}

func (d *pdfDoc) analytics(a *dashboard.Analytics) {
	d.heading(dashboard.SectionAnalytics.Title())
	sum := summarizeAnalytics(a)
	rows := [][]string{
		{"Total Classifications", raw(sum.TotalClassifications)},
		{"Average Daily", raw(sum.AverageDaily)},
		{"Peak Accuracy", DisplayValue(sum.PeakAccuracy)},
		{"Average Accuracy", DisplayValue(sum.AverageAccuracy)},
		{"Average Processing Speed", raw(sum.AverageSpeed)},
		{"Average Error Rate", DisplayValue(sum.AverageErrorRate)},
	}
	d.table([]float64{90, 90}, []string{"Metric", "Value"}, rows)
}
