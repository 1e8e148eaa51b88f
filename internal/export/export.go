package export

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tomkat-cr/abstractgo/internal/dashboard"
)

// Format is an artifact encoding.
type Format string

const (
	FormatPDF   Format = "pdf"
	FormatExcel Format = "excel"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

// Formats lists the supported encodings in menu order.
func Formats() []Format {
	return []Format{FormatPDF, FormatExcel, FormatCSV, FormatJSON}
}

// Valid reports whether f is supported.
func (f Format) Valid() bool {
	switch f {
	case FormatPDF, FormatExcel, FormatCSV, FormatJSON:
		return true
	}
	return false
}

// Extension is the file suffix without the dot.
func (f Format) Extension() string {
	if f == FormatExcel {
		return "xlsx"
	}
	return string(f)
}

// MIMEType is the content type of artifacts in this format.
func (f Format) MIMEType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		return "text/csv"
	case FormatJSON:
		return "application/json"
	}
	return "application/octet-stream"
}

// Label is the menu text for the format.
func (f Format) Label() string {
	switch f {
	case FormatPDF:
		return "PDF Report"
	case FormatExcel:
		return "Excel Workbook"
	case FormatCSV:
		return "CSV Data"
	case FormatJSON:
		return "JSON Export"
	}
	return string(f)
}

// ParseFormat accepts a format name; "xlsx" is an alias for excel.
func ParseFormat(raw string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(raw)))
	if f == "xlsx" {
		f = FormatExcel
	}
	if !f.Valid() {
		return "", &Error{Reason: ReasonUnsupportedFormat, Format: Format(raw)}
	}
	return f, nil
}

// Selection is what the user asked to export.
type Selection struct {
	Sections []dashboard.Section
	Format   Format
	// At stamps the artifact. Zero means now.
	At time.Time
	// DateRange labels the report. Empty uses the snapshot's range.
	DateRange string
}

// Artifact is a finished export ready for delivery.
type Artifact struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Order is the fixed sequence sections appear in within every artifact.
var Order = []dashboard.Section{
	dashboard.SectionMetrics,
	dashboard.SectionPerformance,
	dashboard.SectionDistribution,
	dashboard.SectionConfusionMatrix,
	dashboard.SectionHistory,
	dashboard.SectionAnalytics,
}

// Filename builds abstractgo_dashboard_<timestamp>.<ext>.
func Filename(at time.Time, f Format) string {
	return fmt.Sprintf("abstractgo_dashboard_%s.%s", at.UTC().Format("2006-01-02T15-04-05"), f.Extension())
}

// Export renders the selected sections of summary. Sections missing from the
// summary are skipped; nothing is returned on failure.
func Export(summary *dashboard.Summary, sel Selection) (Artifact, error) {
	if !sel.Format.Valid() {
		return Artifact{}, &Error{Reason: ReasonUnsupportedFormat, Format: sel.Format}
	}
	if len(sel.Sections) == 0 {
		return Artifact{}, &Error{Reason: ReasonEmptySelection, Format: sel.Format}
	}
	if sel.At.IsZero() {
		sel.At = time.Now()
	}
	if summary == nil {
		summary = &dashboard.Summary{}
	}
	if sel.DateRange == "" {
		sel.DateRange = summary.DataRange
	}
	if sel.DateRange == "" {
		sel.DateRange = "Current"
	}

	present := presentSections(summary, sel.Sections)
	for _, section := range present {
		if err := checkSection(summary, section); err != nil {
			return Artifact{}, &Error{Reason: ReasonSerialization, Format: sel.Format, Section: section, Err: err}
		}
	}

	job := &job{summary: summary, selection: sel, sections: present}
	var (
		data []byte
		err  error
	)
	switch sel.Format {
	case FormatJSON:
		data, err = encodeJSON(job)
	case FormatCSV:
		data, err = encodeCSV(job)
	case FormatExcel:
		data, err = encodeExcel(job)
	case FormatPDF:
		data, err = encodePDF(job)
	}
	if err != nil {
		var exportErr *Error
		if errors.As(err, &exportErr) {
			return Artifact{}, err
		}
		return Artifact{}, &Error{Reason: ReasonSerialization, Format: sel.Format, Err: err}
	}
	return Artifact{
		Name:     Filename(sel.At, sel.Format),
		MIMEType: sel.Format.MIMEType(),
		Data:     data,
	}, nil
}

// job is one export in progress.
type job struct {
	summary   *dashboard.Summary
	selection Selection
	sections  []dashboard.Section
}

func presentSections(summary *dashboard.Summary, selected []dashboard.Section) []dashboard.Section {
	want := make(map[dashboard.Section]bool, len(selected))
	for _, s := range selected {
		want[s] = true
	}
	var out []dashboard.Section
	for _, s := range Order {
		if want[s] && summary.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

// checkSection rejects data no encoder can represent faithfully.
func checkSection(s *dashboard.Summary, section dashboard.Section) error {
	var values []float64
	switch section {
	case dashboard.SectionMetrics:
		for _, m := range s.Metrics.Scores() {
			if m.Value.IsPerCategory() {
				for _, c := range m.Value.Categories() {
					v, _ := m.Value.For(c)
					values = append(values, v)
				}
			} else {
				values = append(values, m.Value.Value())
			}
		}
		values = append(values, s.Metrics.ProcessingSpeed)
		if s.Metrics.AvgProcessingTime != nil {
			values = append(values, *s.Metrics.AvgProcessingTime)
		}
	case dashboard.SectionConfusionMatrix:
		if m, ok := s.ConfusionMatrix.Matrix.(dashboard.SharedMatrix); ok {
			if len(m.Cells) != len(m.Labels) {
				return fmt.Errorf("matrix has %d rows for %d categories", len(m.Cells), len(m.Labels))
			}
			for i, row := range m.Cells {
				if len(row) != len(m.Labels) {
					return fmt.Errorf("row %d has %d cells for %d categories", i, len(row), len(m.Labels))
				}
			}
		}
	case dashboard.SectionPerformance:
		for _, p := range s.Performance {
			values = append(values, p.Accuracy, p.F1Score, p.Precision, p.Recall)
		}
	case dashboard.SectionDistribution:
		for _, d := range s.Distribution {
			values = append(values, d.Percentage)
			if d.Trend != nil {
				values = append(values, *d.Trend)
			}
		}
	case dashboard.SectionAnalytics:
		a := s.Analytics
		values = append(values, a.DailyClassifications...)
		values = append(values, a.AccuracyTrend...)
		values = append(values, a.ProcessingSpeedTrend...)
		values = append(values, a.ErrorRateTrend...)
		for _, series := range a.CategoriesTrend {
			values = append(values, series...)
		}
	case dashboard.SectionHistory:
		for _, h := range s.History {
			values = append(values, h.Confidence)
			if h.ProcessingTime != nil {
				values = append(values, *h.ProcessingTime)
			}
		}
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite value %v", v)
		}
	}
	return nil
}
