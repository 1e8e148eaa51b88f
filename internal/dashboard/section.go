package dashboard

import (
	"fmt"
	"strings"
)

// Section identifies one exportable part of the dashboard.
type Section string

const (
	SectionMetrics         Section = "metrics"
	SectionConfusionMatrix Section = "confusion-matrix"
	SectionPerformance     Section = "performance"
	SectionDistribution    Section = "distribution"
	SectionAnalytics       Section = "analytics"
	SectionHistory         Section = "classification-history"
)

// AllSections lists every section in canonical order.
func AllSections() []Section {
	return []Section{
		SectionMetrics,
		SectionConfusionMatrix,
		SectionPerformance,
		SectionDistribution,
		SectionAnalytics,
		SectionHistory,
	}
}

// Title returns the human label shown in reports and the terminal UI.
func (s Section) Title() string {
	switch s {
	case SectionMetrics:
		return "Performance Metrics"
	case SectionConfusionMatrix:
		return "Confusion Matrix"
	case SectionPerformance:
		return "Category Performance"
	case SectionDistribution:
		return "Distribution Analysis"
	case SectionAnalytics:
		return "Advanced Analytics"
	case SectionHistory:
		return "Classification History"
	default:
		return string(s)
	}
}

// Valid reports whether s is one of the enumerated sections.
func (s Section) Valid() bool {
	for _, known := range AllSections() {
		if s == known {
			return true
		}
	}
	return false
}

// ParseSection accepts a section id. "history" is accepted as shorthand and
// underscores may stand in for dashes.
func ParseSection(raw string) (Section, error) {
	raw = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "_", "-")
	if raw == "history" {
		return SectionHistory, nil
	}
	s := Section(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown section %q", raw)
	}
	return s, nil
}

// ParseSections parses a list of ids, dropping duplicates while keeping input order.
func ParseSections(raw []string) ([]Section, error) {
	seen := make(map[Section]bool, len(raw))
	out := make([]Section, 0, len(raw))
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(part), "all") {
				for _, s := range AllSections() {
					if !seen[s] {
						seen[s] = true
						out = append(out, s)
					}
				}
				continue
			}
			s, err := ParseSection(part)
			if err != nil {
				return nil, err
			}
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out, nil
}
