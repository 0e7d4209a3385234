package analysis

import "sort"

// PivotMatrix counts donors per (segment, subsegment). Cells[i][j] is nil when
// no record has that combination.
type PivotMatrix struct {
	Codes   []Code   `json:"codes"`
	Rows    []string `json:"rows"`
	Columns []string `json:"columns"`
	Cells   [][]*int `json:"cells"`
}

// Pivot builds the segment-by-subsegment matrix. Rows are ascending by code and
// labelled through labels; codes without a label keep their numeric text.
// Columns are the subsegment labels in ascending order. Records without a score
// or subsegment are skipped.
func Pivot(recs []SubsegmentRecord, labels map[Code]string) *PivotMatrix {
	type key struct {
		code Code
		sub  string
	}
	counts := map[key]int{}
	codeSet := map[Code]bool{}
	subSet := map[string]bool{}
	for _, r := range recs {
		if !r.Scored || r.Subsegment == "" {
			continue
		}
		counts[key{r.Score, r.Subsegment}]++
		codeSet[r.Score] = true
		subSet[r.Subsegment] = true
	}

	m := &PivotMatrix{}
	for c := range codeSet {
		m.Codes = append(m.Codes, c)
	}
	sort.Slice(m.Codes, func(i, j int) bool { return m.Codes[i] < m.Codes[j] })
	for s := range subSet {
		m.Columns = append(m.Columns, s)
	}
	sort.Strings(m.Columns)

	m.Rows = make([]string, len(m.Codes))
	m.Cells = make([][]*int, len(m.Codes))
	for i, c := range m.Codes {
		if l, ok := labels[c]; ok && l != "" {
			m.Rows[i] = l
		} else {
			m.Rows[i] = c.String()
		}
		row := make([]*int, len(m.Columns))
		for j, s := range m.Columns {
			if n, ok := counts[key{c, s}]; ok {
				n := n
				row[j] = &n
			}
		}
		m.Cells[i] = row
	}
	return m
}

// Cell returns the count at (row, col) and whether the combination exists.
func (m *PivotMatrix) Cell(row, col int) (int, bool) {
	if row < 0 || row >= len(m.Cells) || col < 0 || col >= len(m.Cells[row]) {
		return 0, false
	}
	if p := m.Cells[row][col]; p != nil {
		return *p, true
	}
	return 0, false
}

// RowTotals sums each row, keyed by segment code.
func (m *PivotMatrix) RowTotals() map[Code]int {
	out := make(map[Code]int, len(m.Codes))
	for i, c := range m.Codes {
		for _, p := range m.Cells[i] {
			if p != nil {
				out[c] += *p
			}
		}
	}
	return out
}

// ColumnTotals sums each column, keyed by subsegment label.
func (m *PivotMatrix) ColumnTotals() map[string]int {
	out := make(map[string]int, len(m.Columns))
	for _, row := range m.Cells {
		for j, p := range row {
			if p != nil {
				out[m.Columns[j]] += *p
			}
		}
	}
	return out
}

// SubsegmentCounts counts records per subsegment label, independent of the pivot.
func SubsegmentCounts(recs []SubsegmentRecord) map[string]int {
	out := map[string]int{}
	for _, r := range recs {
		if !r.Scored || r.Subsegment == "" {
			continue
		}
		out[r.Subsegment]++
	}
	return out
}
