package tui

import (
	"math"
	"strings"

	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/padding"
	"github.com/muesli/reflow/truncate"
)

type pageLayout struct {
	windowWidth    int
	windowHeight   int
	viewportWidth  int
	viewportHeight int
	inputWidth     int
}

func newPageLayout() pageLayout {
	return pageLayout{
		viewportWidth:  80,
		viewportHeight: 20,
		inputWidth:     70,
	}
}

func (l *pageLayout) Update(width, height int) {
	l.windowWidth = width
	l.windowHeight = height
	innerWidth := width - viewportHorizontalPadding
	if innerWidth < minViewportWidth {
		innerWidth = minViewportWidth
	}
	l.viewportWidth = innerWidth
	// tab bar, status bar, two message lines and the key hint
	const chrome = 8
	contentHeight := height - chrome
	if contentHeight < 6 {
		contentHeight = 6
	}
	l.viewportHeight = contentHeight
	l.inputWidth = innerWidth - 4
	if l.inputWidth > 120 {
		l.inputWidth = 120
	}
}

type contentBuilder struct {
	builder strings.Builder
	lines   int
}

func (cb *contentBuilder) WriteString(s string) {
	cb.builder.WriteString(s)
	cb.lines += strings.Count(s, "\n")
}

func (cb *contentBuilder) WriteRune(r rune) {
	cb.builder.WriteRune(r)
	if r == '\n' {
		cb.lines++
	}
}

func (cb *contentBuilder) Line(s string) {
	cb.WriteString(s)
	cb.WriteRune('\n')
}

func (cb *contentBuilder) Blank() {
	if cb.lines > 0 {
		cb.WriteRune('\n')
	}
}

func (cb *contentBuilder) String() string {
	return cb.builder.String()
}

// table renders rows in fixed-width columns. The first column is left
// aligned, the rest right aligned.
type table struct {
	header []string
	rows   [][]string
	widths []int
}

func (t table) render(cb *contentBuilder) {
	widths := t.columnWidths()
	cb.Line(tableHeaderStyle.Render(t.line(t.header, widths)))
	for _, row := range t.rows {
		cb.Line(t.line(row, widths))
	}
}

func (t table) columnWidths() []int {
	widths := make([]int, len(t.header))
	copy(widths, t.widths)
	for i, h := range t.header {
		if widths[i] == 0 {
			widths[i] = ansi.PrintableRuneWidth(h)
			for _, row := range t.rows {
				if i < len(row) && ansi.PrintableRuneWidth(row[i]) > widths[i] {
					widths[i] = ansi.PrintableRuneWidth(row[i])
				}
			}
		}
	}
	return widths
}

func (t table) line(cells []string, widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		parts[i] = fitCell(cell, w, i > 0)
	}
	return strings.Join(parts, "  ")
}

func fitCell(cell string, width int, right bool) string {
	if width <= 0 {
		return ""
	}
	// StringWithTail always reserves room for the tail, even when cell fits.
	if ansi.PrintableRuneWidth(cell) > width {
		cell = truncate.StringWithTail(cell, uint(width), "…")
	}
	if right {
		if gap := width - ansi.PrintableRuneWidth(cell); gap > 0 {
			return strings.Repeat(" ", gap) + cell
		}
		return cell
	}
	return padding.String(cell, uint(width))
}

// bar draws a horizontal bar for a ratio in [0, 1].
func bar(ratio float64, width int) string {
	if width <= 0 {
		return ""
	}
	if ratio < 0 || math.IsNaN(ratio) {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(math.Round(ratio * float64(width)))
	return barStyle.Render(strings.Repeat("█", filled)) + helperStyle.Render(strings.Repeat("░", width-filled))
}

var sparkTicks = []rune("▁▂▃▄▅▆▇█")

// sparkline scales a series between its own min and max.
func sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	out := make([]rune, len(values))
	for i, v := range values {
		idx := len(sparkTicks) - 1
		if hi > lo {
			idx = int(math.Round((v - lo) / (hi - lo) * float64(len(sparkTicks)-1)))
		}
		out[i] = sparkTicks[idx]
	}
	return string(out)
}

func (m *model) wrapWidth(pad int) int {
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}
	if pad < 0 {
		pad = 0
	}
	available := width - pad
	if available < 20 {
		available = 20
	}
	return available
}
