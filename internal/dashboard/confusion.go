package dashboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MatrixKind tags which confusion matrix representation is held.
type MatrixKind string

const (
	MatrixShared      MatrixKind = "shared"
	MatrixPerCategory MatrixKind = "per_category"
)

// Matrix is implemented by the two confusion matrix representations.
type Matrix interface {
	Kind() MatrixKind
	Categories() []string
	Accuracy() map[string]float64
	Total() int64
	wireMatrix() any
}

// SharedMatrix is an N×N matrix over one ordered category list.
// Rows are actual classes, columns predicted classes.
type SharedMatrix struct {
	Labels []string
	Cells  [][]int64
}

func (m SharedMatrix) Kind() MatrixKind     { return MatrixShared }
func (m SharedMatrix) Categories() []string { return append([]string(nil), m.Labels...) }

// Cell returns the count at (actual, predicted), 0 when out of range.
func (m SharedMatrix) Cell(actual, predicted int) int64 {
	if actual < 0 || actual >= len(m.Cells) {
		return 0
	}
	row := m.Cells[actual]
	if predicted < 0 || predicted >= len(row) {
		return 0
	}
	return row[predicted]
}

// Accuracy is diagonal over row sum per category.
func (m SharedMatrix) Accuracy() map[string]float64 {
	out := make(map[string]float64, len(m.Labels))
	for i, label := range m.Labels {
		var rowSum int64
		for j := range m.Labels {
			rowSum += m.Cell(i, j)
		}
		out[label] = ratio(m.Cell(i, i), rowSum)
	}
	return out
}

func (m SharedMatrix) Total() int64 {
	var total int64
	for i := range m.Labels {
		for j := range m.Labels {
			total += m.Cell(i, j)
		}
	}
	return total
}

func (m SharedMatrix) wireMatrix() any {
	rows := make([][]int64, len(m.Labels))
	for i := range m.Labels {
		rows[i] = make([]int64, len(m.Labels))
		for j := range m.Labels {
			rows[i][j] = m.Cell(i, j)
		}
	}
	return rows
}

// BinaryCounts is a one-vs-rest 2×2 table, [[TP,FN],[FP,TN]] on the wire.
type BinaryCounts struct {
	TP, FN, FP, TN int64
}

// Sum is the number of samples the table covers.
func (b BinaryCounts) Sum() int64 {
	return b.TP + b.FN + b.FP + b.TN
}

// Accuracy is (TP+TN)/sum, 0 for an empty table.
func (b BinaryCounts) Accuracy() float64 {
	return ratio(b.TP+b.TN, b.Sum())
}

// PerCategoryMatrix holds one binary table per category.
type PerCategoryMatrix struct {
	Order  []string
	Counts map[string]BinaryCounts
}

func (m PerCategoryMatrix) Kind() MatrixKind     { return MatrixPerCategory }
func (m PerCategoryMatrix) Categories() []string { return append([]string(nil), m.Order...) }

func (m PerCategoryMatrix) Accuracy() map[string]float64 {
	out := make(map[string]float64, len(m.Order))
	for _, c := range m.Order {
		out[c] = m.Counts[c].Accuracy()
	}
	return out
}

func (m PerCategoryMatrix) Total() int64 {
	var total int64
	for _, c := range m.Order {
		total += m.Counts[c].Sum()
	}
	return total
}

func (m PerCategoryMatrix) wireMatrix() any {
	out := make(orderedCounts, 0, len(m.Order))
	for _, c := range m.Order {
		out = append(out, categoryCounts{name: c, counts: m.Counts[c]})
	}
	return out
}

// ConfusionMatrix is the normalized confusion matrix section.
type ConfusionMatrix struct {
	Matrix Matrix
	// ReportedTotal is the API's total_predictions, kept only when it
	// disagrees with the sum of the cells.
	ReportedTotal int64
}

// Categories returns the matrix categories in display order.
func (c ConfusionMatrix) Categories() []string {
	if c.Matrix == nil {
		return nil
	}
	return c.Matrix.Categories()
}

// AccuracyPerCategory is always recomputed from the cells.
func (c ConfusionMatrix) AccuracyPerCategory() map[string]float64 {
	if c.Matrix == nil {
		return map[string]float64{}
	}
	return c.Matrix.Accuracy()
}

// TotalPredictions sums every cell.
func (c ConfusionMatrix) TotalPredictions() int64 {
	if c.Matrix == nil {
		return 0
	}
	return c.Matrix.Total()
}

type confusionWire struct {
	Matrix              json.RawMessage    `json:"matrix"`
	Categories          []string           `json:"categories,omitempty"`
	TotalPredictions    int64              `json:"total_predictions"`
	AccuracyPerCategory map[string]float64 `json:"accuracy_per_category"`
}

// MarshalJSON writes the wire shape with derived fields filled in.
func (c ConfusionMatrix) MarshalJSON() ([]byte, error) {
	if c.Matrix == nil {
		return []byte("null"), nil
	}
	matrix, err := json.Marshal(c.Matrix.wireMatrix())
	if err != nil {
		return nil, err
	}
	return json.Marshal(confusionWire{
		Matrix:              matrix,
		Categories:          c.Matrix.Categories(),
		TotalPredictions:    c.reportedOrComputed(),
		AccuracyPerCategory: c.Matrix.Accuracy(),
	})
}

func (c ConfusionMatrix) reportedOrComputed() int64 {
	if c.ReportedTotal > 0 {
		return c.ReportedTotal
	}
	return c.TotalPredictions()
}

// UnmarshalJSON classifies the wire matrix once and hands it to the
// normalizer for that representation.
func (c *ConfusionMatrix) UnmarshalJSON(data []byte) error {
	var wire confusionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	raw := bytes.TrimSpace(wire.Matrix)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		c.Matrix = NormalizeShared(wire.Categories, nil)
	case raw[0] == '[':
		var rows [][]int64
		if err := json.Unmarshal(raw, &rows); err != nil {
			return fmt.Errorf("shared confusion matrix: %w", err)
		}
		c.Matrix = NormalizeShared(wire.Categories, rows)
	case raw[0] == '{':
		keys, tables, err := decodeOrderedTables(raw)
		if err != nil {
			return fmt.Errorf("per-category confusion matrix: %w", err)
		}
		c.Matrix = NormalizePerCategory(wire.Categories, keys, tables)
	default:
		return errors.New("confusion matrix: unsupported matrix shape")
	}
	c.ReportedTotal = 0
	if wire.TotalPredictions != 0 && wire.TotalPredictions != c.Matrix.Total() {
		c.ReportedTotal = wire.TotalPredictions
	}
	return nil
}

// NormalizeShared pads or trims rows to the category count. Missing cells
// become 0. Without a category list, labels are generated from the row count.
func NormalizeShared(categories []string, rows [][]int64) SharedMatrix {
	labels := append([]string{}, categories...)
	if len(labels) == 0 {
		for i := range rows {
			labels = append(labels, fmt.Sprintf("Category %d", i+1))
		}
	}
	cells := make([][]int64, len(labels))
	for i := range labels {
		cells[i] = make([]int64, len(labels))
		if i >= len(rows) {
			continue
		}
		for j := range labels {
			if j < len(rows[i]) {
				cells[i][j] = rows[i][j]
			}
		}
	}
	return SharedMatrix{Labels: labels, Cells: cells}
}

// NormalizePerCategory converts [[TP,FN],[FP,TN]] tables. The explicit
// category list fixes the order; otherwise the wire key order is kept.
// Categories listed but missing from the tables get an all-zero table.
func NormalizePerCategory(categories, keys []string, tables map[string][][]int64) PerCategoryMatrix {
	order := append([]string{}, categories...)
	if len(order) == 0 {
		order = append(order, keys...)
	} else {
		listed := make(map[string]bool, len(order))
		for _, c := range order {
			listed[c] = true
		}
		for _, k := range keys {
			if !listed[k] {
				order = append(order, k)
			}
		}
	}
	counts := make(map[string]BinaryCounts, len(order))
	for _, c := range order {
		t := tables[c]
		counts[c] = BinaryCounts{
			TP: cellAt(t, 0, 0),
			FN: cellAt(t, 0, 1),
			FP: cellAt(t, 1, 0),
			TN: cellAt(t, 1, 1),
		}
	}
	return PerCategoryMatrix{Order: order, Counts: counts}
}

func cellAt(t [][]int64, i, j int) int64 {
	if i >= len(t) || j >= len(t[i]) {
		return 0
	}
	return t[i][j]
}

// decodeOrderedTables reads a JSON object of 2×2 tables, keeping key order.
func decodeOrderedTables(raw []byte) ([]string, map[string][][]int64, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	var keys []string
	tables := map[string][][]int64{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected token %v", tok)
		}
		var table [][]int64
		if err := dec.Decode(&table); err != nil {
			return nil, nil, fmt.Errorf("category %q: %w", key, err)
		}
		if _, dup := tables[key]; !dup {
			keys = append(keys, key)
		}
		tables[key] = table
	}
	return keys, tables, nil
}

type categoryCounts struct {
	name   string
	counts BinaryCounts
}

// orderedCounts marshals as a JSON object in slice order.
type orderedCounts []categoryCounts

func (o orderedCounts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, item := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(item.name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		fmt.Fprintf(&buf, "[[%d,%d],[%d,%d]]", item.counts.TP, item.counts.FN, item.counts.FP, item.counts.TN)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func ratio(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
