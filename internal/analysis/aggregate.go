package analysis

import (
	"math"
	"sort"
)

// SegmentCount is the number of donors carrying a segment code.
type SegmentCount struct {
	Code  Code `json:"code"`
	Count int  `json:"count"`
}

// ChannelRevenue is the revenue total for one (segment, donation channel) pair.
type ChannelRevenue struct {
	Code    Code    `json:"code"`
	Channel string  `json:"channel"`
	Revenue float64 `json:"revenue"`
}

// SegmentCounts groups donors by segment code. Output is ascending by code and
// contains only codes with at least one donor. Unscored rows are skipped.
func SegmentCounts(donors []Donor) []SegmentCount {
	counts := map[Code]int{}
	for _, d := range donors {
		if !d.Scored {
			continue
		}
		counts[d.Score]++
	}
	return countsFromMap(counts)
}

// SubsegmentSegmentCounts is SegmentCounts over the donation-level table.
func SubsegmentSegmentCounts(recs []SubsegmentRecord) []SegmentCount {
	counts := map[Code]int{}
	for _, r := range recs {
		if !r.Scored {
			continue
		}
		counts[r.Score]++
	}
	return countsFromMap(counts)
}

func countsFromMap(m map[Code]int) []SegmentCount {
	out := make([]SegmentCount, 0, len(m))
	for c, n := range m {
		out = append(out, SegmentCount{Code: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// ChannelRevenues sums revenue per (segment, channel). NaN revenue counts as
// zero; rows without a score or channel have no group key and are excluded.
// Output is ordered by code, then channel.
func ChannelRevenues(donors []Donor) []ChannelRevenue {
	type key struct {
		code    Code
		channel string
	}
	sums := map[key]float64{}
	for _, d := range donors {
		if !d.Scored || d.Source == "" {
			continue
		}
		k := key{d.Score, d.Source}
		v := d.Revenue
		if math.IsNaN(v) {
			v = 0
		}
		sums[k] += v
	}
	out := make([]ChannelRevenue, 0, len(sums))
	for k, v := range sums {
		out = append(out, ChannelRevenue{Code: k.code, Channel: k.channel, Revenue: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code == out[j].Code {
			return out[i].Channel < out[j].Channel
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// Channels returns the distinct channels in rows, ascending.
func Channels(rows []ChannelRevenue) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range rows {
		if !seen[r.Channel] {
			seen[r.Channel] = true
			out = append(out, r.Channel)
		}
	}
	sort.Strings(out)
	return out
}

// ScoredCount is the number of donors that carry a segment code.
func ScoredCount(donors []Donor) int {
	n := 0
	for _, d := range donors {
		if d.Scored {
			n++
		}
	}
	return n
}

// TotalRevenue sums non-NaN revenue across donors that have both a score and a
// channel, i.e. the rows ChannelRevenues groups.
func TotalRevenue(donors []Donor) float64 {
	var total float64
	for _, d := range donors {
		if !d.Scored || d.Source == "" || math.IsNaN(d.Revenue) {
			continue
		}
		total += d.Revenue
	}
	return total
}
