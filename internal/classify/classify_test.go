package classify_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tomkat-cr/abstractgo/internal/apiclient"
	"github.com/tomkat-cr/abstractgo/internal/classify"
	"github.com/tomkat-cr/abstractgo/internal/dashboard/dashboardtest"
)

func newClient(t *testing.T) (*classify.Client, *dashboardtest.API) {
	t.Helper()
	api := dashboardtest.NewAPI()
	t.Cleanup(api.Close)
	c := apiclient.New(apiclient.Config{BaseURL: api.URL, RetryAttempts: -1})
	return classify.NewClient(c, ""), api
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  classify.Request
		want string
	}{
		{name: "valid", req: classify.Request{Title: "Heart failure outcomes", Abstract: "We studied..."}},
		{name: "empty", req: classify.Request{}, want: "Title is required, Abstract is required"},
		{name: "blank title", req: classify.Request{Title: "   ", Abstract: "x"}, want: "Title is required"},
		{name: "title 500 ok", req: classify.Request{Title: strings.Repeat("a", 500), Abstract: "x"}},
		{name: "title 501", req: classify.Request{Title: strings.Repeat("a", 501), Abstract: "x"}, want: "Title must be less than 500 characters"},
		{name: "multibyte title counts runes", req: classify.Request{Title: strings.Repeat("é", 500), Abstract: "x"}},
		{name: "abstract 5001", req: classify.Request{Title: "t", Abstract: strings.Repeat("b", 5001)}, want: "Abstract must be less than 5000 characters"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := classify.Validate(tt.req)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var verr *classify.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want ValidationError", err)
			}
			if err.Error() != tt.want {
				t.Fatalf("Validate() = %q, want %q", err.Error(), tt.want)
			}
		})
	}
}

func TestValidateFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		file string
		size int64
		head []byte
		want string
	}{
		{name: "pdf", file: "paper.pdf", size: 1024, head: []byte("%PDF-1.7")},
		{name: "upper extension", file: "PAPER.PDF", size: 1024},
		{name: "missing", want: "No file selected"},
		{name: "docx", file: "paper.docx", size: 10, want: "File must be a PDF"},
		{name: "renamed text", file: "paper.pdf", size: 10, head: []byte("hello"), want: "File must be a PDF"},
		{name: "too large", file: "paper.pdf", size: 10<<20 + 1, want: "File size must be less than 10MB"},
		{name: "both", file: "paper.txt", size: 11 << 20, want: "File must be a PDF, File size must be less than 10MB"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := classify.ValidateFile(tt.file, tt.size, tt.head)
			got := ""
			if err != nil {
				got = err.Error()
			}
			if got != tt.want {
				t.Fatalf("ValidateFile(%q) = %q, want %q", tt.file, got, tt.want)
			}
		})
	}
}

func TestBucket(t *testing.T) {
	t.Parallel()

	tests := []struct {
		top, second float64
		want        classify.Level
	}{
		{0.85, 0.40, classify.LevelHigh},
		{0.95, 0.02, classify.LevelHigh},
		{0.71, 0.41, classify.LevelMedium},
		{0.70, 0.10, classify.LevelMedium},
		{0.60, 0.40, classify.LevelMedium},
		{0.55, 0.45, classify.LevelLow},
		{0.50, 0.10, classify.LevelLow},
		{0.30, 0.25, classify.LevelLow},
	}
	for _, tt := range tests {
		if got := classify.Bucket(tt.top, tt.second); got != tt.want {
			t.Fatalf("Bucket(%v, %v) = %s, want %s", tt.top, tt.second, got, tt.want)
		}
	}
}

func TestSummarizePicksTopLabel(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		preds []classify.Prediction
		want  string
	}{
		{name: "single", preds: []classify.Prediction{{Label: "A", Score: 0.4}}, want: "A"},
		{name: "highest wins", preds: []classify.Prediction{{Label: "A", Score: 0.2}, {Label: "B", Score: 0.7}, {Label: "C", Score: 0.1}}, want: "B"},
		{name: "tie keeps later", preds: []classify.Prediction{{Label: "A", Score: 0.5}, {Label: "B", Score: 0.5}}, want: "B"},
		{name: "tie after lower", preds: []classify.Prediction{{Label: "A", Score: 0.1}, {Label: "B", Score: 0.45}, {Label: "C", Score: 0.45}}, want: "C"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := classify.Summarize(tt.preds, at)
			if err != nil {
				t.Fatalf("Summarize: %v", err)
			}
			if res.Category != tt.want || !res.Timestamp.Equal(at) {
				t.Fatalf("Summarize = %+v, want category %s", res, tt.want)
			}
		})
	}

	if _, err := classify.Summarize(nil, at); !errors.Is(err, classify.ErrNoPredictions) {
		t.Fatalf("expected ErrNoPredictions, got %v", err)
	}
}

func TestLevelForSortsScores(t *testing.T) {
	t.Parallel()

	preds := []classify.Prediction{{Label: "A", Score: 0.05}, {Label: "B", Score: 0.85}, {Label: "C", Score: 0.40}}
	if got := classify.LevelFor(preds); got != classify.LevelHigh {
		t.Fatalf("LevelFor = %s, want high", got)
	}
	if got := classify.LevelFor(nil); got != classify.LevelLow {
		t.Fatalf("LevelFor(nil) = %s, want low", got)
	}
	if got := classify.LevelFor([]classify.Prediction{{Label: "A", Score: 0.9}}); got != classify.LevelHigh {
		t.Fatalf("LevelFor(single) = %s, want high", got)
	}
}

func TestPredictRejectsLongTitleWithoutNetwork(t *testing.T) {
	t.Parallel()

	c, api := newClient(t)
	_, err := c.Predict(context.Background(), classify.Request{Title: strings.Repeat("x", 501), Abstract: "abstract"})
	if err == nil || !strings.Contains(err.Error(), "Title must be less than 500 characters") {
		t.Fatalf("Predict() err = %v", err)
	}
	if api.PredictCalls() != 0 {
		t.Fatalf("predict endpoint called %d times", api.PredictCalls())
	}
}

func TestPredict(t *testing.T) {
	t.Parallel()

	c, api := newClient(t)
	res, err := c.Predict(context.Background(), classify.Request{Title: "Brain imaging", Abstract: "MRI study"})
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	if res.Category != "Neurological" || res.Confidence != 0.85 || res.Level != classify.LevelHigh {
		t.Fatalf("Predict() = %+v", res)
	}
	if len(res.AllPredictions) != 3 || res.Timestamp.IsZero() {
		t.Fatalf("Predict() = %+v", res)
	}
	if api.PredictCalls() != 1 {
		t.Fatalf("predict calls = %d", api.PredictCalls())
	}
}

func TestPredictServerError(t *testing.T) {
	t.Parallel()

	c, api := newClient(t)
	api.Fail["/predict"] = true
	_, err := c.Predict(context.Background(), classify.Request{Title: "t", Abstract: "a"})
	var serr *apiclient.ServerError
	if !errors.As(err, &serr) || serr.Message != "Internal failure" {
		t.Fatalf("Predict() err = %v, want server error", err)
	}
}

func TestBatchPredict(t *testing.T) {
	t.Parallel()

	c, _ := newClient(t)
	res, err := c.BatchPredict(context.Background(), []classify.Request{
		{Title: "one", Abstract: "a"},
		{Title: "two", Abstract: "b"},
	})
	if err != nil {
		t.Fatalf("BatchPredict() error: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("len = %d", len(res))
	}
	for _, r := range res {
		if r.Category != "Cardiovascular" || r.Level != classify.LevelMedium {
			t.Fatalf("result = %+v", r)
		}
	}

	_, err = c.BatchPredict(context.Background(), []classify.Request{{Title: "ok", Abstract: "a"}, {Title: "bad"}})
	if err == nil || !strings.Contains(err.Error(), "article 2: Abstract is required") {
		t.Fatalf("BatchPredict() err = %v", err)
	}
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestExtractPDF(t *testing.T) {
	t.Parallel()

	c, _ := newClient(t)
	path := writeFile(t, "paper.pdf", []byte("%PDF-1.4\n%fake\n"))
	got, err := c.ExtractPDF(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractPDF() error: %v", err)
	}
	want := classify.Extraction{Title: "Extracted Title", Abstract: "Extracted abstract."}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractPDF() = %+v, want %+v", got, want)
	}

	notPDF := writeFile(t, "notes.pdf", []byte("plain text"))
	if _, err := c.ExtractPDF(context.Background(), notPDF); err == nil || err.Error() != "File must be a PDF" {
		t.Fatalf("ExtractPDF(non-pdf) err = %v", err)
	}
}

func TestSplitTitleAbstract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want classify.Extraction
	}{
		{
			name: "heading",
			text: "Statin Therapy in Heart Failure\nJ. Doe, A. Roe\nAbstract: We  evaluated statins\nin 400 patients.\nKeywords: statins",
			want: classify.Extraction{Title: "Statin Therapy in Heart Failure", Abstract: "We evaluated statins in 400 patients."},
		},
		{
			name: "stops at introduction",
			text: "Glioma Survival\nABSTRACT\nMedian survival improved.\n1 Introduction\nGliomas are...",
			want: classify.Extraction{Title: "Glioma Survival", Abstract: "Median survival improved."},
		},
		{
			name: "no heading",
			text: "Renal Outcomes\nA cohort of dialysis patients.",
			want: classify.Extraction{Title: "Renal Outcomes", Abstract: "A cohort of dialysis patients."},
		},
		{name: "empty", text: "  \n ", want: classify.Extraction{}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := classify.SplitTitleAbstract(tt.text); got != tt.want {
				t.Fatalf("SplitTitleAbstract() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLocalExtractorRejectsNonPDF(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "scan.png", []byte("\x89PNG"))
	_, err := classify.LocalExtractor{}.ExtractPDF(context.Background(), path)
	var verr *classify.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("ExtractPDF() err = %v, want ValidationError", err)
	}
}
