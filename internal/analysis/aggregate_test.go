package analysis

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func donorsWithCodes(codes ...int) []Donor {
	out := make([]Donor, len(codes))
	for i, c := range codes {
		out[i] = Donor{Score: Code(c), Scored: true, Source: "Web", Revenue: 1}
	}
	return out
}

func TestSegmentCountsFixture(t *testing.T) {
	got := SegmentCounts(donorsWithCodes(0, 0, 1, 3, 4))
	want := []SegmentCount{{0, 2}, {1, 1}, {3, 1}, {4, 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("SegmentCounts mismatch (-want +got):\n%s", diff)
	}
}

func TestSegmentCountsSumsToScoredRows(t *testing.T) {
	donors := donorsWithCodes(4, 2, 2, 0, 9, 1, 1, 1, 3)
	donors = append(donors, Donor{Scored: false, Source: "Web"})
	var sum int
	for _, c := range SegmentCounts(donors) {
		sum += c.Count
	}
	if sum != ScoredCount(donors) || sum != 9 {
		t.Fatalf("sum = %d, scored = %d, want 9", sum, ScoredCount(donors))
	}
}

func TestSegmentCountsEmpty(t *testing.T) {
	if got := SegmentCounts(nil); len(got) != 0 {
		t.Fatalf("expected no counts, got %#v", got)
	}
}

func TestChannelRevenuesFixture(t *testing.T) {
	donors := []Donor{
		{Score: 0, Scored: true, Source: "Web", Revenue: 100},
		{Score: 0, Scored: true, Source: "Web", Revenue: 50},
		{Score: 0, Scored: true, Source: "Box Office", Revenue: 25},
	}
	got := ChannelRevenues(donors)
	want := []ChannelRevenue{
		{Code: 0, Channel: "Box Office", Revenue: 25},
		{Code: 0, Channel: "Web", Revenue: 150},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ChannelRevenues mismatch (-want +got):\n%s", diff)
	}
}

func TestChannelRevenuesNaNAndMissingKeys(t *testing.T) {
	donors := []Donor{
		{Score: 1, Scored: true, Source: "Web", Revenue: math.NaN()},
		{Score: 1, Scored: true, Source: "Web", Revenue: 10},
		{Score: 2, Scored: true, Source: "", Revenue: 99},
		{Scored: false, Source: "Web", Revenue: 77},
		{Score: 2, Scored: true, Source: "Phone", Revenue: 5.5},
	}
	got := ChannelRevenues(donors)
	want := []ChannelRevenue{
		{Code: 1, Channel: "Web", Revenue: 10},
		{Code: 2, Channel: "Phone", Revenue: 5.5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ChannelRevenues mismatch (-want +got):\n%s", diff)
	}
	var sum float64
	for _, r := range got {
		sum += r.Revenue
	}
	if sum != TotalRevenue(donors) {
		t.Fatalf("pair sum %v != total revenue %v", sum, TotalRevenue(donors))
	}
}

func TestChannelsSortedDistinct(t *testing.T) {
	rows := []ChannelRevenue{{0, "Web", 1}, {1, "Box Office", 2}, {1, "Web", 3}, {2, "Mail", 4}}
	got := Channels(rows)
	want := []string{"Box Office", "Mail", "Web"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Channels mismatch (-want +got):\n%s", diff)
	}
}

func TestPivotMatrix(t *testing.T) {
	recs := []SubsegmentRecord{
		{Score: 0, Scored: true, Subsegment: "Under $100"},
		{Score: 0, Scored: true, Subsegment: "Under $100"},
		{Score: 0, Scored: true, Subsegment: "$100-$999"},
		{Score: 3, Scored: true, Subsegment: "$10K+"},
		{Score: 7, Scored: true, Subsegment: "Under $100"},
		{Scored: false, Subsegment: "Under $100"},
	}
	m := Pivot(recs, map[Code]string{0: "Lapsed Subscribers", 3: "Major Donors"})

	if diff := cmp.Diff([]string{"Lapsed Subscribers", "Major Donors", "7"}, m.Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"$100-$999", "$10K+", "Under $100"}, m.Columns); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
	if n, ok := m.Cell(0, 2); !ok || n != 2 {
		t.Fatalf("cell(0,2) = %d,%v want 2,true", n, ok)
	}
	if _, ok := m.Cell(1, 0); ok {
		t.Fatalf("expected missing combination to be empty, got a value")
	}
	if m.Cells[1][0] != nil {
		t.Fatalf("missing combination must be nil, not zero")
	}
	if _, ok := m.Cell(9, 9); ok {
		t.Fatalf("out of range cell should be empty")
	}

	rowTotals := m.RowTotals()
	for _, c := range SubsegmentSegmentCounts(recs) {
		if rowTotals[c.Code] != c.Count {
			t.Fatalf("row total for %s = %d, want %d", c.Code, rowTotals[c.Code], c.Count)
		}
	}
	if diff := cmp.Diff(SubsegmentCounts(recs), m.ColumnTotals()); diff != "" {
		t.Fatalf("column totals mismatch (-want +got):\n%s", diff)
	}
}

func TestLabelSegmentsUnclassifiedBucket(t *testing.T) {
	lookup := []Segment{
		{Code: 1, Label: "Lapsed Single Ticket Buyers", CustomerCount: 1},
		{Code: 0, Label: "Lapsed Subscribers", CustomerCount: 5},
		{Code: 2, Label: "Single Ticket Buyers", CustomerCount: 0},
	}
	counts := []SegmentCount{{0, 2}, {1, 1}, {5, 3}, {8, 1}}

	rows := LabelSegments(counts, lookup, true)
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4: %#v", len(rows), rows)
	}
	if rows[0].Code != 0 || rows[1].Code != 1 || rows[2].Code != 2 {
		t.Fatalf("rows not ordered by code: %#v", rows)
	}
	if rows[2].LiveCount != 0 {
		t.Fatalf("lookup segment without donors should show live count 0, got %d", rows[2].LiveCount)
	}
	last := rows[3]
	if !last.Unclassified() || last.LiveCount != 4 || last.Label != UnclassifiedLabel {
		t.Fatalf("unexpected unclassified row: %#v", last)
	}
	if diff := cmp.Diff([]Code{5, 8}, last.UnclassifiedCodes); diff != "" {
		t.Fatalf("unclassified codes mismatch (-want +got):\n%s", diff)
	}
	if UnclassifiedCount(rows) != 4 {
		t.Fatalf("UnclassifiedCount = %d, want 4", UnclassifiedCount(rows))
	}

	parity := LabelSegments(counts, lookup, false)
	if len(parity) != 3 || UnclassifiedCount(parity) != 0 {
		t.Fatalf("parity mode should silently drop unknown codes: %#v", parity)
	}
}

func TestCheckDrift(t *testing.T) {
	rows := []SegmentRow{
		{Code: 0, Label: "A", LookupCount: 10, LiveCount: 10},
		{Code: 1, Label: "B", LookupCount: 10, LiveCount: 12},
		{Code: UnclassifiedCode, Label: UnclassifiedLabel, LiveCount: 3},
	}
	got := CheckDrift(rows)
	want := []Drift{{Code: 1, Label: "B", LookupCount: 10, LiveCount: 12}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("CheckDrift mismatch (-want +got):\n%s", diff)
	}
	if got[0].Delta() != 2 {
		t.Fatalf("Delta = %d, want 2", got[0].Delta())
	}
}

func TestBuildAndMarkdown(t *testing.T) {
	donors := []Donor{
		{Recency: 400, Frequency: 3, Revenue: 1500.5, Score: 0, Scored: true, Source: "Web"},
		{Recency: 20, Frequency: 12, Revenue: 12000, Score: 3, Scored: true, Source: "Box Office"},
		{Recency: 30, Frequency: 1, Revenue: 40, Score: 6, Scored: true, Source: "Web"},
		{Recency: 30, Frequency: 1, Revenue: 40, Scored: false, Source: "Web"},
	}
	subs := []SubsegmentRecord{{Score: 0, Scored: true, Subsegment: "Under $100"}}
	lookup := []Segment{
		{Code: 0, Label: "Lapsed Subscribers", Description: "Subs who have not donated in 1+ years", CustomerCount: 1},
		{Code: 3, Label: "Major Donors", Description: "Major Donors 10K +", CustomerCount: 41},
	}
	rep := Build("donors.csv", donors, subs, lookup, DefaultOptions())

	if rep.Rows != 4 || rep.Scored != 3 {
		t.Fatalf("rows/scored = %d/%d, want 4/3", rep.Rows, rep.Scored)
	}
	if len(rep.Drift) != 1 || rep.Drift[0].Code != 3 {
		t.Fatalf("expected drift on segment 3, got %#v", rep.Drift)
	}
	if rep.Pivot == nil || len(rep.Pivot.Rows) != 1 || rep.Pivot.Rows[0] != "Lapsed Subscribers" {
		t.Fatalf("unexpected pivot: %#v", rep.Pivot)
	}
	if rep.TotalRevenue != 13540.5 {
		t.Fatalf("TotalRevenue = %v", rep.TotalRevenue)
	}

	md := rep.Markdown()
	for _, want := range []string{
		"[DATASET SUMMARY]",
		"Source: donors.csv",
		"Rows: 4 (scored 3)",
		"Revenue: 13,540.50",
		"| 3 Major Donors | Major Donors 10K + | 41 | 1 |",
		"| Unclassified | Codes not present in the segment lookup | - | 1 |",
		"- 3 | Box Office: 12,000.00",
		"[SEGMENTS BY DONATION LEVEL]",
		"1/4 rows have no segment code",
		"segment 3 (Major Donors): lookup count 41, live count 1",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestBuildWithoutSubsegments(t *testing.T) {
	rep := Build("", donorsWithCodes(1), nil, nil, Options{})
	if rep.Pivot != nil {
		t.Fatalf("pivot should be absent without a donation-level table")
	}
	if strings.Contains(rep.Markdown(), "[SEGMENTS BY DONATION LEVEL]") {
		t.Fatalf("markdown should not render a pivot section")
	}
}

func TestChannelMatrix(t *testing.T) {
	rep := &Report{Channels: []ChannelRevenue{{0, "Web", 10}, {2, "Box Office", 5}, {2, "Web", 1}}}
	codes, channels, values := rep.ChannelMatrix()
	if diff := cmp.Diff([]Code{0, 2}, codes); diff != "" {
		t.Fatalf("codes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Box Office", "Web"}, channels); diff != "" {
		t.Fatalf("channels mismatch (-want +got):\n%s", diff)
	}
	if !math.IsNaN(values[0][0]) || values[0][1] != 10 || values[1][0] != 5 || values[1][1] != 1 {
		t.Fatalf("unexpected values %#v", values)
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		v    float64
		prec int
		want string
	}{
		{1234567.891, 2, "1,234,567.89"},
		{999, 2, "999.00"},
		{-1000, 0, "-1,000"},
		{0, 2, "0.00"},
		{100000, 1, "100,000.0"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.v, tc.prec); got != tc.want {
			t.Fatalf("FormatAmount(%v, %d) = %q, want %q", tc.v, tc.prec, got, tc.want)
		}
	}
	if FormatAmount(math.NaN(), 2) != "" {
		t.Fatalf("NaN should render empty")
	}
}
