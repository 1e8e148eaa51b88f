package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tomkat-cr/abstractgo/internal/classify"
	"github.com/tomkat-cr/abstractgo/internal/dashboard"
	"github.com/tomkat-cr/abstractgo/internal/export"
	"github.com/tomkat-cr/abstractgo/internal/sink"
)

const (
	fetchTimeout    = 45 * time.Second
	exportTimeout   = 2 * time.Minute
	classifyTimeout = time.Minute
)

type sectionResource = dashboard.Resource[*dashboard.Summary]

func sectionFetcher(src dashboard.Source, section dashboard.Section) func(context.Context) (*dashboard.Summary, error) {
	return func(ctx context.Context) (*dashboard.Summary, error) {
		into := &dashboard.Summary{}
		if err := src.FetchSection(ctx, section, into); err != nil {
			return nil, err
		}
		return into, nil
	}
}

func refetchSectionJob(section dashboard.Section, res *sectionResource) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, fetchTimeout)
		defer cancel()
		err := res.Refetch(ctx)
		if errors.Is(err, dashboard.ErrStale) {
			return sectionResultMsg{section: section, stale: true}, nil
		}
		return sectionResultMsg{section: section, err: err}, err
	}
}

// exportJob encodes the snapshot already on screen; it never refetches.
func exportJob(exporter *export.Exporter, summary *dashboard.Summary, out sink.Sink, sel export.Selection) jobRunner {
	sel.Sections = append([]dashboard.Section(nil), sel.Sections...)
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, exportTimeout)
		defer cancel()
		art, err := exporter.Export(summary, sel)
		if err != nil {
			return exportResultMsg{err: err}, err
		}
		if out == nil {
			return exportResultMsg{artifact: art}, nil
		}
		loc, err := out.Put(ctx, art)
		if err != nil {
			err = fmt.Errorf("store %s: %w", art.Name, err)
			return exportResultMsg{artifact: art, err: err}, err
		}
		return exportResultMsg{artifact: art, location: loc}, nil
	}
}

func classifyJob(client Classifier, req classify.Request) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, classifyTimeout)
		defer cancel()
		result, err := client.Predict(ctx, req)
		return classifyResultMsg{result: result, err: err}, err
	}
}

func extractJob(extractor classify.Extractor, path string) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, classifyTimeout)
		defer cancel()
		extraction, err := extractor.ExtractPDF(ctx, path)
		return extractResultMsg{extraction: extraction, err: err}, err
	}
}

func (m *model) refetchSection(section dashboard.Section) tea.Cmd {
	res, ok := m.resources[section]
	if !ok {
		m.errorMessage = "No dashboard source configured."
		return nil
	}
	m.pending[section] = true
	m.errorMessage = ""
	return tea.Batch(m.jobs.Start(jobKindFetch, refetchSectionJob(section, res)), m.spinner.Tick)
}

func (m *model) refetchAll() tea.Cmd {
	if len(m.resources) == 0 {
		m.errorMessage = "No dashboard source configured."
		return nil
	}
	cmds := make([]tea.Cmd, 0, len(m.resources))
	for _, section := range dashboard.AllSections() {
		if cmd := m.refetchSection(section); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	m.infoMessage = "Refreshing all sections…"
	return tea.Batch(cmds...)
}

func (m *model) startExport() tea.Cmd {
	if m.config.Source == nil {
		m.errorMessage = "No dashboard source configured."
		return nil
	}
	sections := m.selectedSections()
	if len(sections) == 0 {
		m.errorMessage = (&export.Error{Reason: export.ReasonEmptySelection}).Error()
		return nil
	}
	if m.config.Exporter.Status().State == export.StateExporting {
		m.errorMessage = (&export.Error{Reason: export.ReasonInProgress}).Error()
		return nil
	}
	summary := m.snapshot()
	loaded := 0
	for _, section := range sections {
		if summary.Has(section) {
			loaded++
		}
	}
	if loaded == 0 {
		m.errorMessage = "None of the selected sections have loaded yet. Press R to refresh."
		return nil
	}
	m.errorMessage = ""
	m.exporting = true
	m.infoMessage = fmt.Sprintf("Exporting %d of %d section(s) as %s…", loaded, len(sections), m.exportFormat.Label())
	sel := export.Selection{Sections: sections, Format: m.exportFormat, DateRange: m.config.DateRange}
	return tea.Batch(m.jobs.Start(jobKindExport, exportJob(m.config.Exporter, summary, m.config.Sink, sel)), m.spinner.Tick)
}

func (m *model) startClassify() tea.Cmd {
	if m.config.Classifier == nil {
		m.errorMessage = "Classification is not configured."
		return nil
	}
	req := classify.Request{
		Title:    strings.TrimSpace(m.titleInput.Value()),
		Abstract: strings.TrimSpace(m.abstractInput.Value()),
	}
	if err := classify.Validate(req); err != nil {
		m.errorMessage = err.Error()
		return nil
	}
	m.errorMessage = ""
	m.classifying = true
	m.infoMessage = "Classifying abstract…"
	return tea.Batch(m.jobs.Start(jobKindClassify, classifyJob(m.config.Classifier, req)), m.spinner.Tick)
}

func (m *model) startExtract() tea.Cmd {
	if m.config.Extractor == nil {
		m.errorMessage = "PDF extraction is not configured."
		return nil
	}
	path := strings.TrimSpace(m.pathInput.Value())
	if path == "" {
		m.errorMessage = "No file selected"
		return nil
	}
	m.errorMessage = ""
	m.classifying = true
	m.infoMessage = "Extracting title and abstract…"
	return tea.Batch(m.jobs.Start(jobKindExtract, extractJob(m.config.Extractor, path)), m.spinner.Tick)
}
