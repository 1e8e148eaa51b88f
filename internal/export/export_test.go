package export_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tomkat-cr/abstractgo/internal/dashboard"
	"github.com/tomkat-cr/abstractgo/internal/dashboard/dashboardtest"
	"github.com/tomkat-cr/abstractgo/internal/export"
)

func subsets(all []dashboard.Section) [][]dashboard.Section {
	var out [][]dashboard.Section
	for mask := 1; mask < 1<<len(all); mask++ {
		var set []dashboard.Section
		for i, s := range all {
			if mask&(1<<i) != 0 {
				set = append(set, s)
			}
		}
		out = append(out, set)
	}
	return out
}

func TestJSONRoundTripKeepsHistoryIDs(t *testing.T) {
	t.Parallel()

	src := dashboardtest.Summary()
	ids := []string{"007", "+1", "NaN", "1.50", "abc-1", "42"}
	src.History = src.History[:0]
	for _, id := range ids {
		src.History = append(src.History, dashboard.HistoryEntry{
			ID:         json.Number(id),
			Title:      "Study " + id,
			Category:   "Cardiovascular",
			Confidence: 0.9,
			Timestamp:  "2024-01-15T10:30:00Z",
		})
	}
	art, err := export.Export(src, export.Selection{Sections: []dashboard.Section{dashboard.SectionHistory}, Format: export.FormatJSON, At: dashboardtest.FixedTime})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	got, _, err := export.ReadJSON(art.Data)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(got.History, src.History) {
		t.Fatalf("history = %+v, want %+v", got.History, src.History)
	}
}

func TestJSONRoundTripEverySubset(t *testing.T) {
	t.Parallel()

	for _, sections := range subsets(dashboard.AllSections()) {
		sections := sections
		src := dashboardtest.Summary()
		art, err := export.Export(src, export.Selection{Sections: sections, Format: export.FormatJSON, At: dashboardtest.FixedTime})
		if err != nil {
			t.Fatalf("export %v: %v", sections, err)
		}
		got, meta, err := export.ReadJSON(art.Data)
		if err != nil {
			t.Fatalf("read %v: %v", sections, err)
		}
		if meta.Version != export.JSONVersion || meta.Format != export.FormatJSON {
			t.Fatalf("metadata = %+v", meta)
		}

		want := map[dashboard.Section]bool{}
		for _, s := range sections {
			want[s] = true
		}
		for _, s := range dashboard.AllSections() {
			if got.Has(s) != want[s] {
				t.Fatalf("subset %v: section %s present=%v", sections, s, got.Has(s))
			}
		}
		if want[dashboard.SectionMetrics] && !reflect.DeepEqual(got.Metrics, src.Metrics) {
			t.Fatalf("metrics = %+v, want %+v", got.Metrics, src.Metrics)
		}
		if want[dashboard.SectionConfusionMatrix] && !reflect.DeepEqual(got.ConfusionMatrix, src.ConfusionMatrix) {
			t.Fatalf("confusion matrix = %+v, want %+v", got.ConfusionMatrix, src.ConfusionMatrix)
		}
		if want[dashboard.SectionPerformance] && !reflect.DeepEqual(got.Performance, src.Performance) {
			t.Fatalf("performance = %+v", got.Performance)
		}
		if want[dashboard.SectionDistribution] && !reflect.DeepEqual(got.Distribution, src.Distribution) {
			t.Fatalf("distribution = %+v", got.Distribution)
		}
		if want[dashboard.SectionAnalytics] && !reflect.DeepEqual(got.Analytics, src.Analytics) {
			t.Fatalf("analytics = %+v", got.Analytics)
		}
		if want[dashboard.SectionHistory] && !reflect.DeepEqual(got.History, src.History) {
			t.Fatalf("history = %+v", got.History)
		}
	}
}

func TestExportRejectsBadSelections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sel  export.Selection
		want error
	}{
		{name: "no sections", sel: export.Selection{Format: export.FormatCSV}, want: export.ErrEmptySelection},
		{name: "unknown format", sel: export.Selection{Sections: dashboard.AllSections(), Format: "docx"}, want: export.ErrUnsupportedFormat},
		{name: "empty format", sel: export.Selection{Sections: dashboard.AllSections()}, want: export.ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			art, err := export.Export(dashboardtest.Summary(), tt.sel)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if art.Data != nil || art.Name != "" {
				t.Fatalf("artifact = %+v, want none", art)
			}
		})
	}
}

func TestExportIsIdempotentApartFromTimestamp(t *testing.T) {
	t.Parallel()

	first := dashboardtest.FixedTime
	second := first.Add(90 * time.Minute)
	for _, f := range export.Formats() {
		f := f
		t.Run(string(f), func(t *testing.T) {
			t.Parallel()
			sel := export.Selection{Sections: dashboard.AllSections(), Format: f}
			sel.At = first
			a, err := export.Export(dashboardtest.Summary(), sel)
			if err != nil {
				t.Fatalf("first export: %v", err)
			}
			sel.At = second
			b, err := export.Export(dashboardtest.Summary(), sel)
			if err != nil {
				t.Fatalf("second export: %v", err)
			}
			if a.Name == b.Name {
				t.Fatalf("names should differ by timestamp: %s", a.Name)
			}
			if a.Name != "abstractgo_dashboard_2024-01-15T10-30-00."+f.Extension() {
				t.Fatalf("name = %s", a.Name)
			}
			switch f {
			case export.FormatCSV:
				if !bytes.Equal(a.Data, b.Data) {
					t.Fatalf("csv output differs between runs")
				}
			case export.FormatJSON:
				stamp := func(at time.Time) []byte { return []byte(at.UTC().Format(time.RFC3339Nano)) }
				normalized := bytes.ReplaceAll(b.Data, stamp(second), stamp(first))
				if !bytes.Equal(a.Data, normalized) {
					t.Fatalf("json differs beyond exported_at")
				}
			}
		})
	}
}

func TestCSVConfusionRows(t *testing.T) {
	t.Parallel()

	art, err := export.Export(dashboardtest.Summary(), export.Selection{
		Sections: []dashboard.Section{dashboard.SectionConfusionMatrix},
		Format:   export.FormatCSV,
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if art.MIMEType != "text/csv" {
		t.Fatalf("mime = %s", art.MIMEType)
	}
	out := string(art.Data)
	if !strings.Contains(out, "Category,TP,FN,FP,TN,Accuracy\n") {
		t.Fatalf("missing header:\n%s", out)
	}
	if !strings.Contains(out, "Cardiovascular,892,23,15,8,0.9595\n") {
		t.Fatalf("missing cardiovascular row:\n%s", out)
	}
}

func TestCSVSectionOrderAndQuoting(t *testing.T) {
	t.Parallel()

	art, err := export.Export(dashboardtest.Summary(), export.Selection{
		Sections: []dashboard.Section{dashboard.SectionHistory, dashboard.SectionMetrics, dashboard.SectionAnalytics},
		Format:   export.FormatCSV,
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	r := csv.NewReader(bytes.NewReader(art.Data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("csv does not parse: %v", err)
	}
	var titles []string
	for _, rec := range records {
		if len(rec) == 1 && rec[0] != "" {
			titles = append(titles, rec[0])
		}
	}
	want := []string{"Performance Metrics", "Classification History", "Advanced Analytics"}
	if !reflect.DeepEqual(titles, want) {
		t.Fatalf("titles = %v, want %v", titles, want)
	}

	var found bool
	for _, rec := range records {
		if len(rec) > 2 && rec[0] == "2" && rec[2] == "Neurological" {
			found = rec[1] == "Neurological Disorder Research, a longitudinal cohort"
			break
		}
	}
	if !found {
		t.Fatalf("history title with comma did not survive quoting")
	}
	if !strings.Contains(string(art.Data), "processing_speed_unit,,articles_per_second") {
		t.Fatalf("speed unit row missing:\n%s", art.Data)
	}
}

func TestCSVSharedMatrix(t *testing.T) {
	t.Parallel()

	art, err := export.Export(dashboardtest.SharedSummary(), export.Selection{
		Sections: []dashboard.Section{dashboard.SectionConfusionMatrix},
		Format:   export.FormatCSV,
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	out := string(art.Data)
	if !strings.Contains(out, `Actual \ Predicted,Cardiovascular,Neurological,Hepatorenal,Oncological,Accuracy`) {
		t.Fatalf("missing shared header:\n%s", out)
	}
	// 892 / (892+23+15+8)
	if !strings.Contains(out, "Cardiovascular,892,23,15,8,0.9510\n") {
		t.Fatalf("missing shared row:\n%s", out)
	}
}

func TestExportRejectsRaggedSharedMatrix(t *testing.T) {
	t.Parallel()

	s := dashboardtest.SharedSummary()
	m := s.ConfusionMatrix.Matrix.(dashboard.SharedMatrix)
	m.Cells = m.Cells[:2]
	s.ConfusionMatrix.Matrix = m

	_, err := export.Export(s, export.Selection{Sections: dashboard.AllSections(), Format: export.FormatJSON})
	if !errors.Is(err, export.ErrSerialization) {
		t.Fatalf("err = %v, want serialization failure", err)
	}
	var exportErr *export.Error
	if !errors.As(err, &exportErr) || exportErr.Section != dashboard.SectionConfusionMatrix {
		t.Fatalf("err = %#v, want confusion-matrix section", err)
	}
}

func TestExcelWorkbook(t *testing.T) {
	t.Parallel()

	art, err := export.Export(dashboardtest.Summary(), export.Selection{
		Sections: dashboard.AllSections(),
		Format:   export.FormatExcel,
		At:       dashboardtest.FixedTime,
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasSuffix(art.Name, ".xlsx") {
		t.Fatalf("name = %s", art.Name)
	}
	f, err := excelize.OpenReader(bytes.NewReader(art.Data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	wantSheets := []string{"Metrics", "Performance", "Distribution", "Confusion Matrix", "Classification History", "Analytics Summary"}
	if got := f.GetSheetList(); !reflect.DeepEqual(got, wantSheets) {
		t.Fatalf("sheets = %v, want %v", got, wantSheets)
	}

	rows, err := f.GetRows("Confusion Matrix")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) < 3 || rows[0][0] != "Confusion Matrix" || rows[1][0] != "Category" {
		t.Fatalf("confusion layout = %v", rows)
	}
	if got := rows[2][:5]; !reflect.DeepEqual(got, []string{"Cardiovascular", "892", "23", "15", "8"}) {
		t.Fatalf("cardiovascular row = %v", got)
	}
	acc, err := strconv.ParseFloat(rows[2][5], 64)
	if err != nil || acc != 0.9595 {
		t.Fatalf("accuracy = %q", rows[2][5])
	}

	perf, err := f.GetRows("Performance")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	statuses := map[string]string{}
	for _, row := range perf[2:] {
		statuses[row[0]] = row[len(row)-1]
	}
	wantStatus := map[string]string{
		"Cardiovascular": "Excellent",
		"Neurological":   "Excellent",
		"Hepatorenal":    "Good",
		"Oncological":    "Needs Improvement",
	}
	if !reflect.DeepEqual(statuses, wantStatus) {
		t.Fatalf("statuses = %v", statuses)
	}

	hist, err := f.GetRows("Classification History")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	levels := []string{}
	for _, row := range hist[2:] {
		levels = append(levels, row[len(row)-1])
	}
	if !reflect.DeepEqual(levels, []string{"High", "High", "Medium", "Low"}) {
		t.Fatalf("confidence levels = %v", levels)
	}
}

func TestExcelWithoutPresentSections(t *testing.T) {
	t.Parallel()

	art, err := export.Export(&dashboard.Summary{}, export.Selection{
		Sections: []dashboard.Section{dashboard.SectionMetrics},
		Format:   export.FormatExcel,
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(art.Data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	if got := f.GetSheetList(); !reflect.DeepEqual(got, []string{"Summary"}) {
		t.Fatalf("sheets = %v", got)
	}
}

func TestPDFReport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		summary *dashboard.Summary
	}{
		{name: "per-category", summary: dashboardtest.Summary()},
		{name: "shared", summary: dashboardtest.SharedSummary()},
		{name: "empty snapshot", summary: &dashboard.Summary{}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			art, err := export.Export(tt.summary, export.Selection{Sections: dashboard.AllSections(), Format: export.FormatPDF})
			if err != nil {
				t.Fatalf("export: %v", err)
			}
			if !bytes.HasPrefix(art.Data, []byte("%PDF-")) {
				t.Fatalf("not a pdf: %q", art.Data[:min(len(art.Data), 16)])
			}
			if art.MIMEType != "application/pdf" {
				t.Fatalf("mime = %s", art.MIMEType)
			}
		})
	}
}

func TestFormatHelpers(t *testing.T) {
	t.Parallel()

	if got := export.DisplayValue(0.9234); got != "92.3%" {
		t.Fatalf("DisplayValue(0.9234) = %s", got)
	}
	if got := export.DisplayValue(245); got != "245" {
		t.Fatalf("DisplayValue(245) = %s", got)
	}
	if got := export.Truncate("Neurological Disorder Research, a longitudinal cohort", 30); got != "Neurological Disorder Research..." {
		t.Fatalf("Truncate = %q", got)
	}
	if got := export.Humanize("avg_processing_time"); got != "Avg Processing Time" {
		t.Fatalf("Humanize = %q", got)
	}
	if got := export.EstimateSize(2, export.FormatExcel); got != "1.5 MB" {
		t.Fatalf("EstimateSize = %q", got)
	}
	if f, err := export.ParseFormat("XLSX"); err != nil || f != export.FormatExcel {
		t.Fatalf("ParseFormat(XLSX) = %v, %v", f, err)
	}
}
