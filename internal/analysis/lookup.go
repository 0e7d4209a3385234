package analysis

import "sort"

// UnclassifiedLabel names the bucket for codes absent from the lookup.
const UnclassifiedLabel = "Unclassified"

// SegmentRow is one line of the segment description table: the authored lookup
// entry next to the count observed in the loaded data.
type SegmentRow struct {
	Code        Code   `json:"code"`
	Label       string `json:"label"`
	Description string `json:"description"`
	// LookupCount is the authored customer count; zero for the unclassified row.
	LookupCount int `json:"lookup_count"`
	LiveCount   int `json:"live_count"`
	// UnclassifiedCodes lists the codes folded into the unclassified row.
	UnclassifiedCodes []Code `json:"unclassified_codes,omitempty"`
}

// Unclassified reports whether the row is the unclassified bucket.
func (r SegmentRow) Unclassified() bool { return r.Code == UnclassifiedCode }

// Drift records a lookup segment whose authored count differs from the live count.
type Drift struct {
	Code        Code   `json:"code"`
	Label       string `json:"label"`
	LookupCount int    `json:"lookup_count"`
	LiveCount   int    `json:"live_count"`
}

// Delta is live minus authored.
func (d Drift) Delta() int { return d.LiveCount - d.LookupCount }

// LabelSegments joins live counts onto the lookup. Every lookup entry yields a
// row in code order, even when no donor carries it. Counts for codes missing
// from the lookup are folded into one trailing unclassified row when
// unclassified is true and dropped otherwise.
func LabelSegments(counts []SegmentCount, lookup []Segment, unclassified bool) []SegmentRow {
	live := make(map[Code]int, len(counts))
	for _, c := range counts {
		live[c.Code] = c.Count
	}
	known := make(map[Code]bool, len(lookup))
	rows := make([]SegmentRow, 0, len(lookup)+1)
	for _, s := range lookup {
		known[s.Code] = true
		rows = append(rows, SegmentRow{
			Code:        s.Code,
			Label:       s.Label,
			Description: s.Description,
			LookupCount: s.CustomerCount,
			LiveCount:   live[s.Code],
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Code < rows[j].Code })

	if !unclassified {
		return rows
	}
	bucket := SegmentRow{Code: UnclassifiedCode, Label: UnclassifiedLabel, Description: "Codes not present in the segment lookup"}
	for _, c := range counts {
		if known[c.Code] {
			continue
		}
		bucket.LiveCount += c.Count
		bucket.UnclassifiedCodes = append(bucket.UnclassifiedCodes, c.Code)
	}
	if bucket.LiveCount > 0 {
		rows = append(rows, bucket)
	}
	return rows
}

// CheckDrift lists lookup rows whose authored count disagrees with the live
// count. The unclassified bucket has no authored count and is never reported.
func CheckDrift(rows []SegmentRow) []Drift {
	var out []Drift
	for _, r := range rows {
		if r.Unclassified() || r.LookupCount == r.LiveCount {
			continue
		}
		out = append(out, Drift{Code: r.Code, Label: r.Label, LookupCount: r.LookupCount, LiveCount: r.LiveCount})
	}
	return out
}

// UnclassifiedCount is the number of donors in the unclassified row, if any.
func UnclassifiedCount(rows []SegmentRow) int {
	for _, r := range rows {
		if r.Unclassified() {
			return r.LiveCount
		}
	}
	return 0
}

// Labels maps lookup codes to their display labels.
func Labels(lookup []Segment) map[Code]string {
	out := make(map[Code]string, len(lookup))
	for _, s := range lookup {
		out[s.Code] = s.Label
	}
	return out
}
