package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/tomkat-cr/abstractgo/internal/classify"
	"github.com/tomkat-cr/abstractgo/internal/dashboard"
	"github.com/tomkat-cr/abstractgo/internal/export"
)

var (
	titleStyle         = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	sectionHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	tableHeaderStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("147"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helperStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	taglineStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb347")).Italic(true)
	barStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("#8ecae6"))
	activeTabStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#ffd166")).Padding(0, 1)
	tabStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0def4")).Padding(0, 1)
	statusBarStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")).Padding(0, 1)
	keyStyle           = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#ffd166")).Padding(0, 1)
	keyDescStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0def4"))
	helpBoxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#7f5af0")).Padding(0, 2)
	cursorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6"))

	levelStyles = map[string]lipgloss.Style{
		"high":   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#a3be8c")),
		"medium": lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ebcb8b")),
		"low":    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#bf616a")),
	}
)

func (m *model) View() string {
	parts := []string{m.heroView(), m.tabBar(), ""}
	switch m.active {
	case tabExport:
		parts = append(parts, m.exportView())
	case tabClassify:
		parts = append(parts, m.classifyView())
	default:
		section, _ := m.active.section()
		m.viewport.SetContent(m.sectionContent(section))
		parts = append(parts, m.viewport.View())
	}
	if m.errorMessage != "" {
		parts = append(parts, errorStyle.Render(wordwrap.String(m.errorMessage, m.wrapWidth(0))))
	}
	if m.infoMessage != "" {
		message := m.infoMessage
		if m.busy() {
			message = fmt.Sprintf("%s %s", m.spinner.View(), message)
		}
		parts = append(parts, helperStyle.Render(message))
	}
	if m.helpVisible {
		parts = append(parts, m.helpView())
	}
	parts = append(parts, statusBarStyle.Render(m.statusLine()), m.keyHintView())
	return strings.Join(parts, "\n")
}

func (m *model) heroView() string {
	return lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("AbstractGo Dashboard"),
		"  ",
		taglineStyle.Render(heroTagline),
	)
}

func (m *model) tabBar() string {
	cells := make([]string, 0, len(tabOrder))
	for i, t := range tabOrder {
		label := fmt.Sprintf("%d %s", i+1, t.label())
		if section, ok := t.section(); ok && m.loading(section) {
			label += " " + m.spinner.View()
		}
		if t == m.active {
			cells = append(cells, activeTabStyle.Render(label))
		} else {
			cells = append(cells, tabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

// sectionContent renders one dashboard section with its loading and error
// state. Stale data stays visible under an error.
func (m *model) sectionContent(section dashboard.Section) string {
	cb := &contentBuilder{}
	cb.Line(sectionHeaderStyle.Render(section.Title()))
	res, ok := m.resources[section]
	if !ok {
		cb.Line(helperStyle.Render("No dashboard source configured."))
		return cb.String()
	}
	st := res.State()
	switch {
	case m.loading(section) && !st.HasData:
		cb.Line(helperStyle.Render(fmt.Sprintf("%s Loading %s…", m.spinner.View(), strings.ToLower(section.Title()))))
		return cb.String()
	case st.Err != "":
		cb.Line(errorStyle.Render(wordwrap.String(st.Err, m.wrapWidth(2))))
		cb.Line(helperStyle.Render("press r to retry"))
	case !st.HasData:
		cb.Line(helperStyle.Render("No data yet. Press r to load this section."))
		return cb.String()
	}
	if !st.HasData || st.Data == nil {
		return cb.String()
	}
	cb.Blank()
	s := st.Data
	switch section {
	case dashboard.SectionMetrics:
		m.writeMetrics(cb, s.Metrics)
	case dashboard.SectionConfusionMatrix:
		m.writeConfusion(cb, s.ConfusionMatrix)
	case dashboard.SectionPerformance:
		m.writePerformance(cb, s.Performance)
	case dashboard.SectionDistribution:
		m.writeDistribution(cb, s.Distribution)
	case dashboard.SectionAnalytics:
		m.writeAnalytics(cb, s.Analytics)
	case dashboard.SectionHistory:
		m.writeHistory(cb, s.History)
	}
	return cb.String()
}

func (m *model) writeMetrics(cb *contentBuilder, metrics *dashboard.Metrics) {
	if metrics == nil {
		cb.Line(helperStyle.Render("No metrics reported."))
		return
	}
	barWidth := m.barWidth()
	for _, score := range metrics.Scores() {
		name := export.Humanize(score.Name)
		value := score.Value.Value()
		if !score.Value.IsPerCategory() {
			cb.Line(fmt.Sprintf("%-22s %8s  %s", name, export.DisplayValue(value), bar(value, barWidth)))
			continue
		}
		cb.Line(fmt.Sprintf("%-22s %8s  %s", name, export.DisplayValue(value), helperStyle.Render("mean across categories")))
		for _, c := range score.Value.Categories() {
			v, _ := score.Value.For(c)
			cb.Line(fmt.Sprintf("  %-20s %8s  %s", c, export.DisplayValue(v), bar(v, barWidth)))
		}
	}
	cb.Blank()
	cb.Line(fmt.Sprintf("%-22s %8d", "Total Articles", metrics.TotalArticles))
	cb.Line(fmt.Sprintf("%-22s %8s  %s", "Processing Speed", export.DisplayValue(metrics.ProcessingSpeed), metrics.ProcessingSpeedUnit.Label()))
	if metrics.AvgProcessingTime != nil {
		cb.Line(fmt.Sprintf("%-22s %8s", "Avg Processing Time", export.DisplayValue(*metrics.AvgProcessingTime)))
	}
}

func (m *model) writeConfusion(cb *contentBuilder, cm *dashboard.ConfusionMatrix) {
	if cm == nil || cm.Matrix == nil {
		cb.Line(helperStyle.Render("No confusion matrix reported."))
		return
	}
	acc := cm.AccuracyPerCategory()
	var t table
	switch mat := cm.Matrix.(type) {
	case dashboard.PerCategoryMatrix:
		t.header = []string{"Category", "TP", "FN", "FP", "TN", "Accuracy"}
		for _, c := range mat.Order {
			b := mat.Counts[c]
			t.rows = append(t.rows, []string{
				c,
				fmt.Sprint(b.TP), fmt.Sprint(b.FN), fmt.Sprint(b.FP), fmt.Sprint(b.TN),
				export.DisplayValue(acc[c]),
			})
		}
	case dashboard.SharedMatrix:
		t.header = append([]string{`Actual \ Predicted`}, mat.Labels...)
		t.header = append(t.header, "Accuracy")
		for i, label := range mat.Labels {
			row := []string{label}
			for j := range mat.Labels {
				row = append(row, fmt.Sprint(mat.Cell(i, j)))
			}
			t.rows = append(t.rows, append(row, export.DisplayValue(acc[label])))
		}
	}
	t.render(cb)
	cb.Blank()
	cb.Line(helperStyle.Render(fmt.Sprintf("Total predictions: %d", cm.TotalPredictions())))
}

func (m *model) writePerformance(cb *contentBuilder, perf []dashboard.CategoryPerformance) {
	if len(perf) == 0 {
		cb.Line(helperStyle.Render("No category performance reported."))
		return
	}
	t := table{header: []string{"Category", "Accuracy", "F1", "Precision", "Recall", "Correct", "Total", "Status"}}
	for _, p := range perf {
		t.rows = append(t.rows, []string{
			p.Category,
			export.DisplayValue(p.Accuracy),
			export.DisplayValue(p.F1Score),
			export.DisplayValue(p.Precision),
			export.DisplayValue(p.Recall),
			fmt.Sprint(p.CorrectPredictions),
			fmt.Sprint(p.TotalPredictions),
			export.PerformanceStatus(p.Accuracy),
		})
	}
	t.render(cb)
}

func (m *model) writeDistribution(cb *contentBuilder, dist []dashboard.CategoryDistribution) {
	if len(dist) == 0 {
		cb.Line(helperStyle.Render("No distribution reported."))
		return
	}
	barWidth := m.barWidth()
	for _, d := range dist {
		trend := ""
		if d.Trend != nil {
			trend = fmt.Sprintf("%+.1f%%", *d.Trend)
		}
		cb.Line(fmt.Sprintf("%-16s %7d %6.1f%% %7s  %s", d.Category, d.Count, d.Percentage, trend, bar(d.Percentage/100, barWidth)))
	}
}

func (m *model) writeAnalytics(cb *contentBuilder, a *dashboard.Analytics) {
	if a == nil {
		cb.Line(helperStyle.Render("No analytics reported."))
		return
	}
	series := []struct {
		name   string
		values []float64
	}{
		{"Daily Classifications", a.DailyClassifications},
		{"Accuracy", a.AccuracyTrend},
		{"Processing Speed", a.ProcessingSpeedTrend},
		{"Error Rate", a.ErrorRateTrend},
	}
	for _, s := range series {
		cb.Line(fmt.Sprintf("%-22s %s  %s", s.name, sparkline(s.values), latest(s.values)))
	}
	if categories := a.TrendCategories(); len(categories) > 0 {
		cb.Blank()
		cb.Line(tableHeaderStyle.Render("Category trends"))
		for _, c := range categories {
			values := a.CategoriesTrend[c]
			cb.Line(fmt.Sprintf("  %-20s %s  %s", c, sparkline(values), latest(values)))
		}
	}
}

func latest(values []float64) string {
	if len(values) == 0 {
		return helperStyle.Render("no data")
	}
	return helperStyle.Render("latest " + export.DisplayValue(values[len(values)-1]))
}

func (m *model) writeHistory(cb *contentBuilder, entries []dashboard.HistoryEntry) {
	if len(entries) == 0 {
		cb.Line(helperStyle.Render("No classifications yet."))
		return
	}
	titleWidth := m.wrapWidth(0) - 60
	if titleWidth < 16 {
		titleWidth = 16
	}
	t := table{
		header: []string{"ID", "Title", "Category", "Confidence", "Date", "Level"},
		widths: []int{0, titleWidth},
	}
	for _, h := range entries {
		t.rows = append(t.rows, []string{
			h.ID.String(),
			h.Title,
			h.Category,
			export.DisplayValue(h.Confidence),
			h.Timestamp,
			export.ConfidenceLevel(h.Confidence),
		})
	}
	t.render(cb)
}

func (m *model) barWidth() int {
	w := m.wrapWidth(0) - 48
	if w > 40 {
		w = 40
	}
	if w < 8 {
		w = 8
	}
	return w
}

func (m *model) exportView() string {
	cb := &contentBuilder{}
	cb.Line(sectionHeaderStyle.Render("Export Dashboard Data"))
	cb.Line(helperStyle.Render("space toggles a section, a selects all, ←/→ changes the format, enter exports."))
	cb.Blank()
	sections := dashboard.AllSections()
	for i, section := range sections {
		check := "[ ]"
		if m.exportSelected[section] {
			check = "[x]"
		}
		line := fmt.Sprintf("%s %s", check, section.Title())
		cb.Line(m.cursorLine(i, line))
	}
	cb.Line(m.cursorLine(len(sections), fmt.Sprintf("Format: ◂ %s ▸", m.exportFormat.Label())))
	cb.Blank()
	selected := len(m.selectedSections())
	cb.Line(fmt.Sprintf("Selected: %d section(s)  •  Estimated size: %s", selected, export.EstimateSize(selected, m.exportFormat)))

	status := m.config.Exporter.Status()
	state := string(status.State)
	if status.State == export.StateExporting {
		state = m.spinner.View() + " " + state
	}
	cb.Line(fmt.Sprintf("Exporter: %s", state))
	if !status.LastExport.IsZero() {
		cb.Line(helperStyle.Render(fmt.Sprintf("Last export: %s at %s", status.LastArtifact, status.LastExport.Local().Format("2006-01-02 15:04:05"))))
	}
	if m.lastLocation != "" {
		cb.Line(helperStyle.Render("Stored at: " + m.lastLocation))
	}
	if status.LastError != "" {
		cb.Line(errorStyle.Render("Last error: " + status.LastError))
	}
	return cb.String()
}

func (m *model) cursorLine(idx int, line string) string {
	if idx == m.exportCursor {
		return cursorStyle.Render("▸ " + line)
	}
	return "  " + line
}

func (m *model) classifyView() string {
	cb := &contentBuilder{}
	cb.Line(sectionHeaderStyle.Render("Classify an Article"))
	cb.Line(helperStyle.Render(fmt.Sprintf("Title (%d/%d)", len([]rune(m.titleInput.Value())), classify.MaxTitleLength)))
	cb.Line(m.titleInput.View())
	cb.Line(helperStyle.Render(fmt.Sprintf("Abstract (%d/%d)", len([]rune(m.abstractInput.Value())), classify.MaxAbstractLength)))
	cb.Line(m.abstractInput.View())
	cb.Line(helperStyle.Render("PDF file (optional, x extracts title and abstract)"))
	cb.Line(m.pathInput.View())

	if m.result == nil {
		return cb.String()
	}
	r := m.result
	cb.Blank()
	cb.Line(sectionHeaderStyle.Render("Prediction"))
	level := string(r.Level)
	if style, ok := levelStyles[level]; ok {
		level = style.Render(strings.ToUpper(level))
	}
	cb.Line(fmt.Sprintf("%s  %s  confidence %s", titleStyle.Render(r.Category), level, export.DisplayValue(r.Confidence)))
	preds := append([]classify.Prediction(nil), r.AllPredictions...)
	sort.SliceStable(preds, func(i, j int) bool { return preds[i].Score > preds[j].Score })
	barWidth := m.barWidth()
	for _, p := range preds {
		cb.Line(fmt.Sprintf("  %-20s %7s  %s", p.Label, export.DisplayValue(p.Score), bar(p.Score, barWidth)))
	}
	return cb.String()
}

type keyHint struct {
	Key         string
	Description string
}

func (m *model) keyHints() []keyHint {
	if m.mode == modeInsert {
		return []keyHint{
			{"Tab", "Next field"},
			{"Ctrl+S", "Classify"},
			{"Ctrl+O", "Extract PDF"},
			{"Esc", "Done editing"},
		}
	}
	hints := []keyHint{{"Tab/1-8", "Switch tab"}}
	switch m.active {
	case tabExport:
		hints = append(hints, keyHint{"↑/↓", "Move"}, keyHint{"Space", "Toggle"}, keyHint{"Enter", "Export"})
	case tabClassify:
		hints = append(hints, keyHint{"i", "Edit"}, keyHint{"Enter", "Classify"}, keyHint{"x", "Extract PDF"})
	default:
		hints = append(hints, keyHint{"↑/↓", "Scroll"}, keyHint{"r", "Refresh"})
	}
	return append(hints, keyHint{"R", "Refresh all"}, keyHint{"?", "Help"}, keyHint{"q", "Quit"})
}

func (m *model) keyHintView() string {
	hints := m.keyHints()
	cells := make([]string, 0, len(hints))
	for _, hint := range hints {
		cells = append(cells, lipgloss.JoinHorizontal(lipgloss.Top, keyStyle.Render(hint.Key), keyDescStyle.Render(" "+hint.Description+" ")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func (m *model) helpView() string {
	lines := []string{
		sectionHeaderStyle.Render("Keys"),
		helperStyle.Render("• Tab / Shift+Tab or 1-8 switch tabs; ↑/↓ scroll the current section."),
		helperStyle.Render("• r refreshes the section on screen, R refreshes every section."),
		helperStyle.Render("• Export: space toggles sections, ←/→ picks PDF, Excel, CSV or JSON, enter exports."),
		helperStyle.Render("• Classify: i edits the title, Tab moves to the abstract and PDF path, Ctrl+S classifies."),
		helperStyle.Render("• q or Ctrl+C quits."),
	}
	return helpBoxStyle.Render(strings.Join(lines, "\n"))
}
