package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tomkat-cr/abstractgo/internal/classify"
	"github.com/tomkat-cr/abstractgo/internal/dashboard/dashboardtest"
	"github.com/tomkat-cr/abstractgo/internal/export"
)

// execute runs the root command against api with an empty dotenv file so the
// developer's environment does not leak in.
func execute(t *testing.T, apiURL string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("ABSTRACTGO_API_BASE_URL", apiURL)
	t.Setenv("ABSTRACTGO_API_RETRY_ATTEMPTS", "-1")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env"), "--log-file", filepath.Join(t.TempDir(), "test.log")}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestExportWritesArtifact(t *testing.T) {
	api := dashboardtest.NewAPI()
	defer api.Close()
	dir := t.TempDir()

	out, err := execute(t, api.URL, "export", "--format", "json", "--sections", "metrics,history", "--out", dir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	loc := strings.TrimSpace(out)
	if filepath.Dir(loc) != dir || !strings.HasSuffix(loc, ".json") {
		t.Fatalf("unexpected location %q", loc)
	}
	data, err := os.ReadFile(loc)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	summary, _, err := export.ReadJSON(data)
	if err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	if summary.Metrics == nil || len(summary.History) == 0 {
		t.Fatalf("expected metrics and history, got %+v", summary)
	}
	if summary.Analytics != nil {
		t.Fatalf("analytics was not selected")
	}
}

func TestExportAcceptsHelpSpellings(t *testing.T) {
	api := dashboardtest.NewAPI()
	defer api.Close()

	out, err := execute(t, api.URL, "export", "--format", "json", "--sections", "confusion-matrix,confusion_matrix,classification-history", "--out", t.TempDir())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	summary, _, err := export.ReadJSON(data)
	if err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	if summary.ConfusionMatrix == nil || len(summary.History) == 0 || summary.Metrics != nil {
		t.Fatalf("unexpected sections %+v", summary)
	}
}

func TestClassifyBatch(t *testing.T) {
	api := dashboardtest.NewAPI()
	defer api.Close()
	path := filepath.Join(t.TempDir(), "articles.json")
	articles := `[
		{"title": "Valve repair outcomes", "abstract": "Follow-up after mitral valve repair."},
		{"title": "Tumour markers", "abstract": "Serum markers in early detection."}
	]`
	if err := os.WriteFile(path, []byte(articles), 0o644); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	out, err := execute(t, api.URL, "classify", "--batch", path)
	if err != nil {
		t.Fatalf("classify --batch: %v", err)
	}
	for _, want := range []string{"1. Cardiovascular", "2. Cardiovascular", "60.0% MEDIUM", "Tumour markers"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, api.URL, "classify", "--batch", path, "--json")
	if err != nil {
		t.Fatalf("classify --batch --json: %v", err)
	}
	var results []classify.Result
	if err := json.Unmarshal([]byte(out), &results); err != nil || len(results) != 2 {
		t.Fatalf("decode %d results: %v\n%s", len(results), err, out)
	}
}

func TestClassifyBatchValidatesEveryArticle(t *testing.T) {
	api := dashboardtest.NewAPI()
	defer api.Close()
	path := filepath.Join(t.TempDir(), "articles.json")
	if err := os.WriteFile(path, []byte(`[{"title": "Only a title"}]`), 0o644); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	_, err := execute(t, api.URL, "classify", "--batch", path)
	if err == nil || !strings.Contains(err.Error(), "article 1: Abstract is required") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExportRejectsBadFlags(t *testing.T) {
	api := dashboardtest.NewAPI()
	defer api.Close()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "format", args: []string{"export", "--format", "docx", "--out", t.TempDir()}, want: "docx"},
		{name: "section", args: []string{"export", "--sections", "weather", "--out", t.TempDir()}, want: "weather"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, api.URL, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestScheduleOnceStoresArtifact(t *testing.T) {
	api := dashboardtest.NewAPI()
	defer api.Close()
	dir := t.TempDir()
	t.Setenv("ABSTRACTGO_EXPORT_OUTPUT_DIR", dir)
	t.Setenv("ABSTRACTGO_EXPORT_FORMAT", "csv")

	out, err := execute(t, api.URL, "schedule", "--once")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	loc := strings.TrimSpace(out)
	if !strings.HasSuffix(loc, ".csv") {
		t.Fatalf("expected csv artifact, got %q", loc)
	}
	if _, err := os.Stat(loc); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
}

func TestClassifyPrintsPrediction(t *testing.T) {
	api := dashboardtest.NewAPI()
	defer api.Close()

	out, err := execute(t, api.URL, "classify", "--title", "Brain imaging", "--abstract", "Changes in brain tissue after stroke.")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	for _, want := range []string{"Category:   Neurological", "85.0% (HIGH)", "Hepatorenal"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Neurological") > strings.Index(out, "Oncological") {
		t.Fatalf("predictions should be sorted by score:\n%s", out)
	}
}

func TestClassifyJSON(t *testing.T) {
	api := dashboardtest.NewAPI()
	defer api.Close()

	out, err := execute(t, api.URL, "classify", "--json", "--title", "Heart failure", "--abstract", "Outcomes after valve surgery.")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	var res classify.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if res.Category != "Cardiovascular" || res.Level != classify.LevelHigh {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestClassifyValidatesLocally(t *testing.T) {
	api := dashboardtest.NewAPI()
	defer api.Close()

	_, err := execute(t, api.URL, "classify", "--title", "  ")
	if err == nil || !strings.Contains(err.Error(), "Title is required") {
		t.Fatalf("expected validation error, got %v", err)
	}
	if api.PredictCalls() != 0 {
		t.Fatalf("no request should reach the API, got %d", api.PredictCalls())
	}
}

func TestExtractUploadsFile(t *testing.T) {
	api := dashboardtest.NewAPI()
	defer api.Close()
	path := filepath.Join(t.TempDir(), "article.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4\n%%EOF\n"), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}

	out, err := execute(t, api.URL, "extract", path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	var ex classify.Extraction
	if err := json.Unmarshal([]byte(out), &ex); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if ex.Title != "Extracted Title" {
		t.Fatalf("unexpected extraction %+v", ex)
	}
}

func TestHealth(t *testing.T) {
	api := dashboardtest.NewAPI()
	defer api.Close()

	out, err := execute(t, api.URL, "health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !strings.Contains(out, "is healthy") {
		t.Fatalf("unexpected output %q", out)
	}

	api.Fail["/health"] = true
	if _, err := execute(t, api.URL, "health"); err == nil || !strings.Contains(err.Error(), "unreachable") {
		t.Fatalf("expected unreachable error, got %v", err)
	}
}
