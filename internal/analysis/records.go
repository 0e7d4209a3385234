package analysis

import "strconv"

// Code is a segment code assigned upstream by the RFM scoring job.
type Code int

// UnclassifiedCode marks the bucket for donors whose code is missing from the
// segment lookup.
const UnclassifiedCode Code = -1

func (c Code) String() string {
	if c == UnclassifiedCode {
		return "unclassified"
	}
	return strconv.Itoa(int(c))
}

// Column names expected in the input tables.
const (
	ColRecency    = "recency"
	ColFrequency  = "frequency"
	ColRevenue    = "revenue"
	ColScore      = "overall_score"
	ColSource     = "donation_source"
	ColSubsegment = "subsegment"
)

// Donor is one row of the donor table. Numeric fields are NaN when the cell was empty.
type Donor struct {
	Recency   float64 `json:"recency"`
	Frequency float64 `json:"frequency"`
	Revenue   float64 `json:"revenue"`
	Score     Code    `json:"overall_score"`
	// Scored is false when overall_score was empty; such rows never join a group.
	Scored bool   `json:"scored"`
	Source string `json:"donation_source"`
}

// SubsegmentRecord is one row of the optional donation-level table.
type SubsegmentRecord struct {
	Score      Code   `json:"overall_score"`
	Scored     bool   `json:"scored"`
	Subsegment string `json:"subsegment"`
}

// Segment is one entry of the hand-maintained segment description lookup.
// CustomerCount is authored data and is not derived from the donor table.
type Segment struct {
	Code          Code   `yaml:"code" json:"code"`
	Label         string `yaml:"label" json:"label"`
	Description   string `yaml:"description" json:"description"`
	CustomerCount int    `yaml:"customer_count" json:"customer_count"`
}
