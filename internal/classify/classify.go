// Package classify wraps the prediction and PDF extraction endpoints with
// the local checks that run before any request is sent.
package classify

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxTitleLength    = 500
	MaxAbstractLength = 5000
	MaxFileSize       = 10 << 20
)

// Request is one article to classify.
type Request struct {
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
}

// Prediction is a single label score from the model.
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Level buckets how decisive a prediction is.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// Result is a prediction reduced to its top label.
type Result struct {
	Category       string       `json:"category"`
	Confidence     float64      `json:"confidence"`
	AllPredictions []Prediction `json:"all_predictions"`
	Level          Level        `json:"level"`
	Timestamp      time.Time    `json:"timestamp"`
}

// Extraction is the title and abstract pulled from a PDF.
type Extraction struct {
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
}

// ValidationError lists every failed input check.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, ", ")
}

// Validate checks a request the way the form does before submitting.
func Validate(req Request) error {
	var problems []string
	if strings.TrimSpace(req.Title) == "" {
		problems = append(problems, "Title is required")
	}
	if strings.TrimSpace(req.Abstract) == "" {
		problems = append(problems, "Abstract is required")
	}
	if utf8.RuneCountInString(req.Title) > MaxTitleLength {
		problems = append(problems, fmt.Sprintf("Title must be less than %d characters", MaxTitleLength))
	}
	if utf8.RuneCountInString(req.Abstract) > MaxAbstractLength {
		problems = append(problems, fmt.Sprintf("Abstract must be less than %d characters", MaxAbstractLength))
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

var pdfMagic = []byte("%PDF-")

// ValidateFile checks an upload by name, size and leading bytes. head may be
// nil when only the name is known.
func ValidateFile(name string, size int64, head []byte) error {
	if name == "" {
		return &ValidationError{Problems: []string{"No file selected"}}
	}
	var problems []string
	isPDF := strings.EqualFold(filepath.Ext(name), ".pdf")
	if len(head) > 0 {
		isPDF = bytes.HasPrefix(head, pdfMagic)
	}
	if !isPDF {
		problems = append(problems, "File must be a PDF")
	}
	if size > MaxFileSize {
		problems = append(problems, "File size must be less than 10MB")
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Bucket grades the top score by its margin over the runner-up.
func Bucket(top, second float64) Level {
	margin := top - second
	switch {
	case top > 0.7 && margin > 0.3:
		return LevelHigh
	case top > 0.5 && margin > 0.15:
		return LevelMedium
	default:
		return LevelLow
	}
}

// LevelFor buckets a prediction list in any order.
func LevelFor(predictions []Prediction) Level {
	scores := make([]float64, len(predictions))
	for i, p := range predictions {
		scores[i] = p.Score
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))
	switch len(scores) {
	case 0:
		return LevelLow
	case 1:
		return Bucket(scores[0], 0)
	default:
		return Bucket(scores[0], scores[1])
	}
}

// Summarize picks the top label. On a tie the later prediction wins.
func Summarize(predictions []Prediction, at time.Time) (Result, error) {
	if len(predictions) == 0 {
		return Result{}, ErrNoPredictions
	}
	top := predictions[0]
	for _, p := range predictions[1:] {
		if p.Score >= top.Score {
			top = p
		}
	}
	return Result{
		Category:       top.Label,
		Confidence:     top.Score,
		AllPredictions: predictions,
		Level:          LevelFor(predictions),
		Timestamp:      at,
	}, nil
}

// Extractor pulls title and abstract out of a PDF on disk. Client uses the
// remote service; LocalExtractor parses the file itself.
type Extractor interface {
	ExtractPDF(ctx context.Context, path string) (Extraction, error)
}
