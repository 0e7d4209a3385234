package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// MissingColumnError reports a required column absent from a table header.
type MissingColumnError struct {
	Name   string
	Column string
}

func (e *MissingColumnError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: missing column %q", e.Name, e.Column)
	}
	return fmt.Sprintf("missing column %q", e.Column)
}

// DecodeError reports a cell that could not be decoded. Row is 1-based and
// excludes the header.
type DecodeError struct {
	Name   string
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *DecodeError) Error() string {
	loc := fmt.Sprintf("row %d", e.Row)
	if e.Column != "" {
		loc = fmt.Sprintf("row %d column %q", e.Row, e.Column)
	}
	if e.Name != "" {
		loc = e.Name + ": " + loc
	}
	if e.Value != "" {
		return fmt.Sprintf("%s: invalid value %q: %v", loc, e.Value, e.Err)
	}
	return fmt.Sprintf("%s: %v", loc, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var errNotInteger = errors.New("segment code must be an integer")

// table is a header-indexed CSV stream.
type table struct {
	name  string
	r     *csv.Reader
	index map[string]int
	row   int
}

func openTable(r io.Reader, name string, required ...string) (*table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			// An empty body has no header at all; report the first required column.
			if len(required) > 0 {
				return nil, &MissingColumnError{Name: name, Column: required[0]}
			}
			return &table{name: name, r: cr, index: map[string]int{}}, nil
		}
		return nil, &DecodeError{Name: name, Row: 0, Err: fmt.Errorf("read header: %w", err)}
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, &MissingColumnError{Name: name, Column: col}
		}
	}
	return &table{name: name, r: cr, index: index}, nil
}

// next returns the next record, or io.EOF.
func (t *table) next() ([]string, error) {
	rec, err := t.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, &DecodeError{Name: t.name, Row: t.row + 1, Err: err}
	}
	t.row++
	return rec, nil
}

func (t *table) cell(rec []string, col string) string {
	idx := t.index[col]
	if idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}

func (t *table) float(rec []string, col string) (float64, error) {
	v := t.cell(rec, col)
	x, err := parseNumeric(v)
	if err != nil {
		return 0, &DecodeError{Name: t.name, Row: t.row, Column: col, Value: v, Err: err}
	}
	return x, nil
}

func (t *table) code(rec []string) (Code, bool, error) {
	v := t.cell(rec, ColScore)
	x, err := parseNumeric(v)
	if err != nil {
		return 0, false, &DecodeError{Name: t.name, Row: t.row, Column: ColScore, Value: v, Err: err}
	}
	if math.IsNaN(x) {
		return 0, false, nil
	}
	if x != math.Trunc(x) || math.IsInf(x, 0) {
		return 0, false, &DecodeError{Name: t.name, Row: t.row, Column: ColScore, Value: v, Err: errNotInteger}
	}
	return Code(int(x)), true, nil
}

// DecodeDonors reads a donor table. Extra columns are ignored; header names are
// matched case-insensitively.
func DecodeDonors(r io.Reader, name string) ([]Donor, error) {
	t, err := openTable(r, name, ColRecency, ColFrequency, ColRevenue, ColScore, ColSource)
	if err != nil {
		return nil, err
	}
	var out []Donor
	for {
		rec, err := t.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		var d Donor
		if d.Recency, err = t.float(rec, ColRecency); err != nil {
			return nil, err
		}
		if d.Frequency, err = t.float(rec, ColFrequency); err != nil {
			return nil, err
		}
		if d.Revenue, err = t.float(rec, ColRevenue); err != nil {
			return nil, err
		}
		if d.Score, d.Scored, err = t.code(rec); err != nil {
			return nil, err
		}
		d.Source = t.cell(rec, ColSource)
		out = append(out, d)
	}
	return out, nil
}

// DecodeSubsegments reads the donation-level table.
func DecodeSubsegments(r io.Reader, name string) ([]SubsegmentRecord, error) {
	t, err := openTable(r, name, ColScore, ColSubsegment)
	if err != nil {
		return nil, err
	}
	var out []SubsegmentRecord
	for {
		rec, err := t.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		var s SubsegmentRecord
		if s.Score, s.Scored, err = t.code(rec); err != nil {
			return nil, err
		}
		s.Subsegment = t.cell(rec, ColSubsegment)
		out = append(out, s)
	}
	return out, nil
}

// parseNumeric accepts plain and thousands-grouped decimals. Empty cells and
// NaN spellings decode to NaN. A grouping separator must split the integer part
// into groups of three, so a decimal comma such as "1,5" is rejected.
func parseNumeric(s string) (float64, error) {
	raw := strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
	switch strings.ToLower(raw) {
	case "", "nan", "na", "n/a", "null", "none":
		return math.NaN(), nil
	}
	for _, sep := range []string{",", " "} {
		if !strings.Contains(raw, sep) {
			continue
		}
		if !validGrouping(raw, sep) {
			return 0, fmt.Errorf("ambiguous digit grouping %q", raw)
		}
		raw = strings.ReplaceAll(raw, sep, "")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New("not a number")
	}
	return f, nil
}

// validGrouping reports whether sep only separates thousands in the integer
// part of s.
func validGrouping(s, sep string) bool {
	intPart := strings.TrimLeft(s, "+-")
	if i := strings.IndexByte(intPart, '.'); i >= 0 {
		if strings.Contains(intPart[i:], sep) {
			return false
		}
		intPart = intPart[:i]
	}
	groups := strings.Split(intPart, sep)
	if len(groups[0]) < 1 || len(groups[0]) > 3 {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}
