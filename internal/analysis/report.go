package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Options controls report derivation.
type Options struct {
	// Unclassified folds codes missing from the lookup into one explicit row
	// instead of dropping them.
	Unclassified bool
	// Precision is the number of decimals used for money in rendered output.
	Precision int
}

// DefaultOptions returns the defaults used by the dashboard.
func DefaultOptions() Options {
	return Options{Unclassified: true, Precision: 2}
}

// Report holds the aggregates derived from one loaded dataset.
type Report struct {
	Name         string           `json:"name"`
	Rows         int              `json:"rows"`
	Scored       int              `json:"scored"`
	Counts       []SegmentCount   `json:"segment_counts"`
	Channels     []ChannelRevenue `json:"channel_revenue"`
	Segments     []SegmentRow     `json:"segments"`
	Drift        []Drift          `json:"drift,omitempty"`
	Pivot        *PivotMatrix     `json:"pivot,omitempty"`
	TotalRevenue float64          `json:"total_revenue"`
	Warnings     []string         `json:"warnings,omitempty"`
	precision    int
}

// Build derives every aggregate for a dataset. subs may be nil when the
// dashboard has no donation-level table.
func Build(name string, donors []Donor, subs []SubsegmentRecord, lookup []Segment, opt Options) *Report {
	rep := &Report{
		Name:      name,
		Rows:      len(donors),
		Scored:    ScoredCount(donors),
		Counts:    SegmentCounts(donors),
		Channels:  ChannelRevenues(donors),
		precision: opt.Precision,
	}
	rep.TotalRevenue = TotalRevenue(donors)
	rep.Segments = LabelSegments(rep.Counts, lookup, opt.Unclassified)
	rep.Drift = CheckDrift(rep.Segments)
	if subs != nil {
		rep.Pivot = Pivot(subs, Labels(lookup))
	}

	if unscored := rep.Rows - rep.Scored; unscored > 0 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%d/%d rows have no segment code and are excluded from grouping", unscored, rep.Rows))
	}
	if n := UnclassifiedCount(rep.Segments); n > 0 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%d donors carry codes missing from the segment lookup", n))
	}
	for _, d := range rep.Drift {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("segment %s (%s): lookup count %d, live count %d", d.Code, d.Label, d.LookupCount, d.LiveCount))
	}
	return rep
}

// Markdown renders a compact report for terminals and files.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("Source: %s\n", r.Name))
	}
	if r.Scored < r.Rows {
		b.WriteString(fmt.Sprintf("Rows: %d (scored %d)\n", r.Rows, r.Scored))
	} else {
		b.WriteString(fmt.Sprintf("Rows: %d\n", r.Rows))
	}
	b.WriteString(fmt.Sprintf("Revenue: %s\n", r.money(r.TotalRevenue)))

	b.WriteString("\n[SEGMENTS]\n")
	b.WriteString("| Segment | Description | Customer Count | Live Count |\n")
	b.WriteString("| --- | --- | --- | --- |\n")
	for _, s := range r.Segments {
		lookup := fmt.Sprintf("%d", s.LookupCount)
		if s.Unclassified() {
			lookup = "-"
		}
		b.WriteString(fmt.Sprintf("| %s | %s | %s | %d |\n", safeVal(segmentName(s)), safeVal(s.Description), lookup, s.LiveCount))
	}

	b.WriteString("\n[COUNTS BY SEGMENT]\n")
	for _, c := range r.Counts {
		b.WriteString(fmt.Sprintf("- %s: %d\n", c.Code, c.Count))
	}

	if len(r.Channels) > 0 {
		b.WriteString("\n[REVENUE BY SEGMENT AND CHANNEL]\n")
		for _, c := range r.Channels {
			b.WriteString(fmt.Sprintf("- %s | %s: %s\n", c.Code, safeVal(c.Channel), r.money(c.Revenue)))
		}
	}

	if r.Pivot != nil && len(r.Pivot.Rows) > 0 {
		b.WriteString("\n[SEGMENTS BY DONATION LEVEL]\n")
		b.WriteString("| Segment")
		for _, c := range r.Pivot.Columns {
			b.WriteString(" | ")
			b.WriteString(safeVal(c))
		}
		b.WriteString(" |\n|---")
		for range r.Pivot.Columns {
			b.WriteString("|---")
		}
		b.WriteString("|\n")
		for i, row := range r.Pivot.Rows {
			b.WriteString("| ")
			b.WriteString(safeVal(row))
			for j := range r.Pivot.Columns {
				b.WriteString(" | ")
				if n, ok := r.Pivot.Cell(i, j); ok {
					b.WriteString(fmt.Sprintf("%d", n))
				}
			}
			b.WriteString(" |\n")
		}
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// ChannelMatrix reshapes channel revenue into per-segment rows for tabular
// display: codes ascending, channels ascending, missing pairs as NaN.
func (r *Report) ChannelMatrix() (codes []Code, channels []string, values [][]float64) {
	channels = Channels(r.Channels)
	colIdx := make(map[string]int, len(channels))
	for i, c := range channels {
		colIdx[c] = i
	}
	rowIdx := map[Code]int{}
	for _, c := range r.Channels {
		if _, ok := rowIdx[c.Code]; !ok {
			rowIdx[c.Code] = len(codes)
			codes = append(codes, c.Code)
		}
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	for i, c := range codes {
		rowIdx[c] = i
	}
	values = make([][]float64, len(codes))
	for i := range values {
		row := make([]float64, len(channels))
		for j := range row {
			row[j] = math.NaN()
		}
		values[i] = row
	}
	for _, c := range r.Channels {
		values[rowIdx[c.Code]][colIdx[c.Channel]] = c.Revenue
	}
	return codes, channels, values
}

func (r *Report) money(v float64) string {
	return FormatAmount(v, r.precision)
}

// FormatAmount renders v with thousands separators and prec decimals.
func FormatAmount(v float64, prec int) string {
	if math.IsNaN(v) {
		return ""
	}
	if prec < 0 {
		prec = 0
	}
	s := fmt.Sprintf("%.*f", prec, math.Abs(v))
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	if v < 0 {
		b.WriteByte('-')
	}
	for i, ch := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	b.WriteString(frac)
	return b.String()
}

func segmentName(s SegmentRow) string {
	if s.Unclassified() {
		return s.Label
	}
	if s.Label != "" {
		return fmt.Sprintf("%d %s", s.Code, s.Label)
	}
	return s.Code.String()
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
