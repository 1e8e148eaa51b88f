package dashboardtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"

	"github.com/tomkat-cr/abstractgo/internal/dashboard"
)

// API is a fake dashboard/inference server.
type API struct {
	*httptest.Server
	Snapshot *dashboard.Summary
	// Fail makes the listed paths answer 500.
	Fail map[string]bool

	predictCalls int64
}

// NewAPI starts a fake API serving Summary().
func NewAPI() *API {
	api := &API{Snapshot: Summary(), Fail: map[string]bool{}}
	api.Server = httptest.NewServer(http.HandlerFunc(api.serve))
	return api
}

// PredictCalls counts POST /predict requests.
func (a *API) PredictCalls() int {
	return int(atomic.LoadInt64(&a.predictCalls))
}

var sectionPaths = map[string]dashboard.Section{
	"/dashboard/metrics":                dashboard.SectionMetrics,
	"/dashboard/confusion-matrix":       dashboard.SectionConfusionMatrix,
	"/dashboard/performance":            dashboard.SectionPerformance,
	"/dashboard/distribution":           dashboard.SectionDistribution,
	"/dashboard/analytics":              dashboard.SectionAnalytics,
	"/dashboard/classification-history": dashboard.SectionHistory,
}

func (a *API) serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if a.Fail[r.URL.Path] {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"message":"Internal failure"}`)
		return
	}
	if section, ok := sectionPaths[r.URL.Path]; ok {
		w.Write(WirePayload(a.Snapshot, section))
		return
	}
	switch r.URL.Path {
	case "/health":
		io.WriteString(w, `{"status":"ok"}`)
	case "/predict":
		atomic.AddInt64(&a.predictCalls, 1)
		var req struct {
			Title    string `json:"title"`
			Abstract string `json:"abstract"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		label := "Cardiovascular"
		if strings.Contains(strings.ToLower(req.Title+" "+req.Abstract), "brain") {
			label = "Neurological"
		}
		json.NewEncoder(w).Encode(map[string]any{
			"error":       false,
			"status_code": 200,
			"resultset": []map[string]any{
				{"label": "Oncological", "score": 0.05},
				{"label": label, "score": 0.85},
				{"label": "Hepatorenal", "score": 0.40},
			},
		})
	case "/predict/batch":
		var req struct {
			Articles []json.RawMessage `json:"articles"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		results := make([][]map[string]any, 0, len(req.Articles))
		for range req.Articles {
			results = append(results, []map[string]any{
				{"label": "Cardiovascular", "score": 0.6},
				{"label": "Oncological", "score": 0.3},
			})
		}
		json.NewEncoder(w).Encode(map[string]any{"resultset": results})
	case "/pdfread":
		if _, _, err := r.FormFile("file"); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"detail":"file missing"}`)
			return
		}
		io.WriteString(w, `{"error":false,"resultset":{"title":"Extracted Title","abstract":"Extracted abstract."}}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail":"Not Found"}`)
	}
}
