package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// DefaultExtractPath is the PDF extraction endpoint.
const DefaultExtractPath = "/pdfread"

// ErrNoPredictions is returned when the model answers with an empty list.
var ErrNoPredictions = errors.New("No predictions received from server")

// Poster is the part of the API client used here.
type Poster interface {
	PostJSON(ctx context.Context, path string, payload, out any) error
	PostFile(ctx context.Context, path, field, filename string, content io.Reader, out any) error
}

// Client calls the prediction endpoints.
type Client struct {
	api         Poster
	extractPath string
	now         func() time.Time
}

// NewClient returns a Client. An empty extractPath uses DefaultExtractPath.
func NewClient(api Poster, extractPath string) *Client {
	if extractPath == "" {
		extractPath = DefaultExtractPath
	}
	return &Client{api: api, extractPath: extractPath, now: time.Now}
}

// Predict validates req and classifies it.
func (c *Client) Predict(ctx context.Context, req Request) (Result, error) {
	if err := Validate(req); err != nil {
		return Result{}, err
	}
	var predictions []Prediction
	if err := c.api.PostJSON(ctx, "/predict", req, &predictions); err != nil {
		return Result{}, fmt.Errorf("predict: %w", err)
	}
	if len(predictions) == 0 {
		return Result{}, ErrNoPredictions
	}
	return Summarize(predictions, c.now().UTC())
}

// BatchPredict classifies several articles in one call. Every request is
// validated first; the first invalid one fails the batch.
func (c *Client) BatchPredict(ctx context.Context, reqs []Request) ([]Result, error) {
	for i, req := range reqs {
		if err := Validate(req); err != nil {
			return nil, fmt.Errorf("article %d: %w", i+1, err)
		}
	}
	var raw []json.RawMessage
	payload := struct {
		Articles []Request `json:"articles"`
	}{Articles: reqs}
	if err := c.api.PostJSON(ctx, "/predict/batch", payload, &raw); err != nil {
		return nil, fmt.Errorf("batch predict: %w", err)
	}

	at := c.now().UTC()
	results := make([]Result, 0, len(raw))
	for i, item := range raw {
		res, err := decodeBatchItem(item, at)
		if err != nil {
			return nil, fmt.Errorf("batch predict: item %d: %w", i+1, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// decodeBatchItem accepts either a bare prediction list or a
// {"data": {category, confidence}} record.
func decodeBatchItem(item json.RawMessage, at time.Time) (Result, error) {
	item = bytes.TrimSpace(item)
	if len(item) > 0 && item[0] == '[' {
		var predictions []Prediction
		if err := json.Unmarshal(item, &predictions); err != nil {
			return Result{}, err
		}
		if len(predictions) == 0 {
			return Result{}, ErrNoPredictions
		}
		return Summarize(predictions, at)
	}
	var wrapped struct {
		Data *struct {
			Category   string  `json:"category"`
			Confidence float64 `json:"confidence"`
			Timestamp  string  `json:"timestamp"`
		} `json:"data"`
	}
	if err := json.Unmarshal(item, &wrapped); err != nil {
		return Result{}, err
	}
	if wrapped.Data == nil {
		return Result{}, ErrNoPredictions
	}
	ts := at
	if parsed, err := time.Parse(time.RFC3339, wrapped.Data.Timestamp); err == nil {
		ts = parsed
	}
	single := []Prediction{{Label: wrapped.Data.Category, Score: wrapped.Data.Confidence}}
	return Result{
		Category:       wrapped.Data.Category,
		Confidence:     wrapped.Data.Confidence,
		AllPredictions: single,
		Level:          LevelFor(single),
		Timestamp:      ts,
	}, nil
}

// ExtractPDF uploads the file at path for title/abstract extraction.
func (c *Client) ExtractPDF(ctx context.Context, path string) (Extraction, error) {
	f, err := openPDF(path)
	if err != nil {
		return Extraction{}, err
	}
	defer f.Close()

	var out Extraction
	if err := c.api.PostFile(ctx, c.extractPath, "file", filepath.Base(path), f, &out); err != nil {
		return Extraction{}, fmt.Errorf("extract pdf: %w", err)
	}
	return out, nil
}

// openPDF validates the file at path and returns it rewound.
func openPDF(path string) (*os.File, error) {
	if path == "" {
		return nil, ValidateFile("", 0, nil)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	head := make([]byte, len(pdfMagic))
	n, _ := io.ReadFull(f, head)
	if err := ValidateFile(path, info.Size(), head[:n]); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return f, nil
}
