package classify

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	extraneousWhitespace = regexp.MustCompile(`\s+`)
	abstractMarker       = regexp.MustCompile(`(?i)\babstract\b[\s.:\-]*`)
	abstractEnd          = regexp.MustCompile(`(?i)\b(?:keywords|key words|index terms|introduction|1\.?\s+introduction|background)\b`)
)

// LocalExtractor pulls title and abstract out of a PDF without calling the
// extraction service.
type LocalExtractor struct{}

// ExtractPDF reads the file at path and splits its text.
func (LocalExtractor) ExtractPDF(ctx context.Context, path string) (Extraction, error) {
	f, err := openPDF(path)
	if err != nil {
		return Extraction{}, err
	}
	f.Close()
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}

	text, err := pdfText(path)
	if err != nil {
		return Extraction{}, err
	}
	ex := SplitTitleAbstract(text)
	if ex.Title == "" && ex.Abstract == "" {
		return Extraction{}, fmt.Errorf("extract pdf: no text found in %s", path)
	}
	return ex, nil
}

func pdfText(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer file.Close()

	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}
	var builder strings.Builder
	if _, err := io.Copy(&builder, content); err != nil {
		return "", err
	}
	return builder.String(), nil
}

// SplitTitleAbstract finds the abstract heading in extracted text. The title
// is what precedes it; the abstract runs until the keywords or introduction.
// Without a heading the first line is the title and the rest the abstract.
func SplitTitleAbstract(text string) Extraction {
	text = strings.TrimSpace(text)
	if text == "" {
		return Extraction{}
	}

	var title, abstract string
	if loc := abstractMarker.FindStringIndex(text); loc != nil {
		title = text[:loc[0]]
		abstract = text[loc[1]:]
	} else {
		first, rest, _ := strings.Cut(text, "\n")
		title, abstract = first, rest
	}
	if end := abstractEnd.FindStringIndex(abstract); end != nil && end[0] > 0 {
		abstract = abstract[:end[0]]
	}

	title = firstLine(title)
	return Extraction{
		Title:    clip(normalizeWhitespace(title), MaxTitleLength),
		Abstract: clip(normalizeWhitespace(abstract), MaxAbstractLength),
	}
}

// firstLine keeps the leading non-empty line of a title block, which skips
// author and affiliation lines that follow it.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return s
}

func normalizeWhitespace(s string) string {
	return extraneousWhitespace.ReplaceAllString(strings.TrimSpace(s), " ")
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
