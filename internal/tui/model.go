package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/tomkat-cr/abstractgo/internal/apiclient"
	"github.com/tomkat-cr/abstractgo/internal/classify"
	"github.com/tomkat-cr/abstractgo/internal/dashboard"
	"github.com/tomkat-cr/abstractgo/internal/export"
	"github.com/tomkat-cr/abstractgo/internal/logging"
	"github.com/tomkat-cr/abstractgo/internal/sink"
)

// Classifier predicts a category for a single article.
type Classifier interface {
	Predict(ctx context.Context, req classify.Request) (classify.Result, error)
}

// Config wires runtime options into the TUI program.
type Config struct {
	Source          dashboard.Source
	Exporter        *export.Exporter
	Sink            sink.Sink
	Classifier      Classifier
	Extractor       classify.Extractor
	DefaultFormat   export.Format
	DefaultSections []dashboard.Section
	DateRange       string
	Log             logrus.FieldLogger
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	if config.Log == nil {
		config.Log = logging.Discard()
	}
	if config.Exporter == nil {
		config.Exporter = export.NewExporter(export.WithLogger(config.Log))
	}
	format := config.DefaultFormat
	if !format.Valid() {
		format = export.FormatPDF
	}
	defaults := config.DefaultSections
	if len(defaults) == 0 {
		defaults = dashboard.AllSections()
	}

	titleInput := textinput.New()
	titleInput.Placeholder = "Article title"
	titleInput.CharLimit = classify.MaxTitleLength + 1
	titleInput.Width = 70

	abstractInput := textarea.New()
	abstractInput.Placeholder = "Paste the abstract…"
	abstractInput.CharLimit = classify.MaxAbstractLength + 1
	abstractInput.ShowLineNumbers = false
	abstractInput.SetWidth(70)
	abstractInput.SetHeight(6)

	pathInput := textinput.New()
	pathInput.Placeholder = "/path/to/article.pdf"
	pathInput.CharLimit = 400
	pathInput.Width = 70

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true

	m := &model{
		config:         config,
		jobs:           newJobBus(config.Log.WithField("component", "tui")),
		layout:         newPageLayout(),
		active:         tabMetrics,
		mode:           modeNormal,
		spinner:        spin,
		viewport:       vp,
		resources:      map[dashboard.Section]*sectionResource{},
		pending:        map[dashboard.Section]bool{},
		running:        map[jobKind]int{},
		exportSelected: map[dashboard.Section]bool{},
		exportFormat:   format,
		titleInput:     titleInput,
		abstractInput:  abstractInput,
		pathInput:      pathInput,
		infoMessage:    "Loading dashboard… press ? for keys.",
	}
	for _, section := range defaults {
		m.exportSelected[section] = true
	}
	if config.Source != nil {
		for _, section := range dashboard.AllSections() {
			m.resources[section] = dashboard.NewResource(sectionFetcher(config.Source, section))
		}
	} else {
		m.infoMessage = "No dashboard source configured."
	}
	return m
}

type model struct {
	config Config
	jobs   *jobBus
	layout pageLayout
	active tab
	mode   interactionMode

	spinner  spinner.Model
	viewport viewport.Model

	resources map[dashboard.Section]*sectionResource
	pending   map[dashboard.Section]bool
	running   map[jobKind]int
	lastJob   *jobSnapshot

	exportCursor   int
	exportSelected map[dashboard.Section]bool
	exportFormat   export.Format
	exporting      bool
	lastLocation   string

	titleInput    textinput.Model
	abstractInput textarea.Model
	pathInput     textinput.Model
	focus         classifyField
	classifying   bool
	result        *classify.Result

	helpVisible  bool
	infoMessage  string
	errorMessage string
}

func (m *model) Init() tea.Cmd {
	if len(m.resources) == 0 {
		return textinput.Blink
	}
	return tea.Batch(textinput.Blink, m.refetchAll())
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.layout.Update(msg.Width, msg.Height)
		m.viewport.Width = m.layout.viewportWidth
		m.viewport.Height = m.layout.viewportHeight
		m.titleInput.Width = m.layout.inputWidth
		m.pathInput.Width = m.layout.inputWidth
		m.abstractInput.SetWidth(m.layout.inputWidth)
		return m, nil
	case jobSignalMsg:
		m.running[msg.Snapshot.Kind]++
		return m, nil
	case jobResultEnvelope:
		if m.running[msg.Snapshot.Kind] > 0 {
			m.running[msg.Snapshot.Kind]--
		}
		snapshot := msg.Snapshot
		m.lastJob = &snapshot
		if msg.Payload == nil {
			return m, nil
		}
		return m.Update(msg.Payload)
	case sectionResultMsg:
		delete(m.pending, msg.section)
		if msg.stale {
			return m, nil
		}
		if msg.err != nil {
			m.errorMessage = fmt.Sprintf("%s: %s", msg.section.Title(), apiclient.Message(msg.err))
			return m, nil
		}
		if len(m.pending) == 0 {
			m.infoMessage = "Dashboard up to date."
		}
		return m, nil
	case exportResultMsg:
		m.exporting = false
		if msg.err != nil {
			m.errorMessage = "Export failed: " + apiclient.Message(msg.err)
			m.infoMessage = "Press enter to retry the export."
			return m, nil
		}
		m.errorMessage = ""
		m.lastLocation = msg.location
		if msg.location == "" {
			m.infoMessage = fmt.Sprintf("Generated %s (%d bytes).", msg.artifact.Name, len(msg.artifact.Data))
		} else {
			m.infoMessage = fmt.Sprintf("Saved %s to %s.", msg.artifact.Name, msg.location)
		}
		return m, nil
	case classifyResultMsg:
		m.classifying = false
		if msg.err != nil {
			m.errorMessage = apiclient.Message(msg.err)
			return m, nil
		}
		result := msg.result
		m.result = &result
		m.errorMessage = ""
		m.infoMessage = fmt.Sprintf("Classified as %s.", result.Category)
		return m, nil
	case extractResultMsg:
		m.classifying = false
		if msg.err != nil {
			m.errorMessage = apiclient.Message(msg.err)
			return m, nil
		}
		m.titleInput.SetValue(msg.extraction.Title)
		m.abstractInput.SetValue(msg.extraction.Abstract)
		m.errorMessage = ""
		m.infoMessage = "Extracted title and abstract. Review them and press enter to classify."
		return m, nil
	}
	return m, nil
}

func (m *model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Type == tea.KeyCtrlC {
		return m, m.quit()
	}
	if m.mode == modeInsert {
		return m, m.handleInsertKey(key)
	}

	switch key.String() {
	case "q":
		return m, m.quit()
	case "?":
		m.helpVisible = !m.helpVisible
		return m, nil
	case "tab":
		m.switchTab(1)
		return m, nil
	case "shift+tab":
		m.switchTab(-1)
		return m, nil
	case "1", "2", "3", "4", "5", "6", "7", "8":
		m.active = tabOrder[int(key.Runes[0]-'1')]
		m.viewport.GotoTop()
		return m, nil
	case "r":
		section, ok := m.active.section()
		if !ok {
			m.infoMessage = "Switch to a dashboard tab to refresh it, or press R for everything."
			return m, nil
		}
		m.infoMessage = fmt.Sprintf("Refreshing %s…", section.Title())
		return m, m.refetchSection(section)
	case "R":
		return m, m.refetchAll()
	}

	switch m.active {
	case tabExport:
		return m, m.handleExportKey(key)
	case tabClassify:
		return m, m.handleClassifyKey(key)
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(key)
	return m, cmd
}

func (m *model) handleExportKey(key tea.KeyMsg) tea.Cmd {
	sections := dashboard.AllSections()
	rows := len(sections) + 1
	switch key.String() {
	case "up", "k":
		m.exportCursor = (m.exportCursor - 1 + rows) % rows
	case "down", "j":
		m.exportCursor = (m.exportCursor + 1) % rows
	case " ", "x":
		if m.exportCursor < len(sections) {
			section := sections[m.exportCursor]
			m.exportSelected[section] = !m.exportSelected[section]
		} else {
			m.cycleFormat(1)
		}
	case "left", "h":
		m.cycleFormat(-1)
	case "right", "l":
		m.cycleFormat(1)
	case "a":
		all := len(m.selectedSections()) < len(sections)
		for _, section := range sections {
			m.exportSelected[section] = all
		}
	case "enter":
		return m.startExport()
	}
	return nil
}

func (m *model) handleClassifyKey(key tea.KeyMsg) tea.Cmd {
	switch key.String() {
	case "i", "e":
		return m.enterInsert(fieldTitle)
	case "p":
		return m.enterInsert(fieldPath)
	case "enter":
		return m.startClassify()
	case "x":
		return m.startExtract()
	case "c":
		m.titleInput.SetValue("")
		m.abstractInput.SetValue("")
		m.pathInput.SetValue("")
		m.result = nil
		m.errorMessage = ""
	}
	return nil
}

func (m *model) handleInsertKey(key tea.KeyMsg) tea.Cmd {
	switch key.Type {
	case tea.KeyEsc:
		m.leaveInsert()
		return nil
	case tea.KeyTab:
		return m.focusField(m.focus + 1)
	case tea.KeyShiftTab:
		return m.focusField(m.focus - 1)
	case tea.KeyCtrlS:
		m.leaveInsert()
		return m.startClassify()
	case tea.KeyCtrlO:
		m.leaveInsert()
		return m.startExtract()
	}
	var cmd tea.Cmd
	switch m.focus {
	case fieldTitle:
		m.titleInput, cmd = m.titleInput.Update(key)
	case fieldAbstract:
		m.abstractInput, cmd = m.abstractInput.Update(key)
	case fieldPath:
		m.pathInput, cmd = m.pathInput.Update(key)
	}
	return cmd
}

func (m *model) enterInsert(field classifyField) tea.Cmd {
	m.mode = modeInsert
	return m.focusField(field)
}

func (m *model) leaveInsert() {
	m.mode = modeNormal
	m.titleInput.Blur()
	m.abstractInput.Blur()
	m.pathInput.Blur()
}

func (m *model) focusField(field classifyField) tea.Cmd {
	n := classifyField(len(classifyFields))
	m.focus = (field%n + n) % n
	m.titleInput.Blur()
	m.abstractInput.Blur()
	m.pathInput.Blur()
	switch m.focus {
	case fieldAbstract:
		return m.abstractInput.Focus()
	case fieldPath:
		return m.pathInput.Focus()
	default:
		return m.titleInput.Focus()
	}
}

func (m *model) switchTab(delta int) {
	n := len(tabOrder)
	m.active = tabOrder[(int(m.active)+delta+n)%n]
	m.viewport.GotoTop()
}

func (m *model) cycleFormat(delta int) {
	formats := export.Formats()
	idx := 0
	for i, f := range formats {
		if f == m.exportFormat {
			idx = i
			break
		}
	}
	n := len(formats)
	m.exportFormat = formats[(idx+delta+n)%n]
}

// selectedSections returns the export selection in canonical order.
func (m *model) selectedSections() []dashboard.Section {
	var out []dashboard.Section
	for _, section := range dashboard.AllSections() {
		if m.exportSelected[section] {
			out = append(out, section)
		}
	}
	return out
}

func (m *model) busy() bool {
	return len(m.pending) > 0 || m.exporting || m.classifying
}

func (m *model) loading(section dashboard.Section) bool {
	if m.pending[section] {
		return true
	}
	res, ok := m.resources[section]
	return ok && res.State().Loading
}

// quit drops in-flight fetch results before the program exits.
func (m *model) quit() tea.Cmd {
	for _, res := range m.resources {
		res.Close()
	}
	return tea.Quit
}

func (m *model) statusLine() string {
	parts := []string{fmt.Sprintf("Mode %s", m.modeLabel())}
	if updated := m.lastUpdated(); updated != "" {
		parts = append(parts, "Updated "+updated)
	}
	parts = append(parts, fmt.Sprintf("Export %s", m.config.Exporter.Status().State))
	for _, kind := range []jobKind{jobKindFetch, jobKindExport, jobKindClassify, jobKindExtract} {
		if n := m.running[kind]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s×%d", kind, n))
		}
	}
	if m.lastJob != nil && m.lastJob.Status == jobStatusFailed {
		parts = append(parts, fmt.Sprintf("last %s failed", m.lastJob.Kind))
	}
	return strings.Join(parts, "  •  ")
}

func (m *model) modeLabel() string {
	if m.mode == modeInsert {
		return "INSERT"
	}
	return "NORMAL"
}

// snapshot joins the last good data of every section resource. Sections
// that never loaded stay nil.
func (m *model) snapshot() *dashboard.Summary {
	out := &dashboard.Summary{}
	for section, res := range m.resources {
		st := res.State()
		if !st.HasData || st.Data == nil {
			continue
		}
		out.Merge(st.Data, section)
		if st.Data.LastUpdated.After(out.LastUpdated) {
			out.LastUpdated = st.Data.LastUpdated
		}
		if out.DataRange == "" {
			out.DataRange = st.Data.DataRange
		}
	}
	return out
}

func (m *model) lastUpdated() string {
	latest := m.snapshot().LastUpdated
	if latest.IsZero() {
		return ""
	}
	return latest.Local().Format("15:04:05")
}
