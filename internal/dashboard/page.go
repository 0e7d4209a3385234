package dashboard

import (
	"html/template"
	"time"

	"github.com/KaramelBytes/rfm-dashboard/internal/analysis"
	"github.com/KaramelBytes/rfm-dashboard/internal/charts"
)

// Page is the model behind one rendered dashboard.
type Page struct {
	RenderID     string
	Title        string
	Subheader    string
	Intro        template.HTML
	TogglePrompt string

	View           charts.View
	Views          []ViewOption
	Scatter        template.JS
	ScatterHeight  int
	ScatterPoints  int
	ScatterDropped int

	Segments []SegmentLine
	Warnings []string

	CountsSVG     template.HTML
	ChannelSVG    template.HTML
	ChannelLegend []charts.LegendEntry
	ChannelTable  *Table
	ChannelNotes  template.HTML

	Pivot       *Table
	NextActions []string

	Report   *analysis.Report
	LoadedAt time.Time
}

// ViewOption is one entry of the toggle dropdown.
type ViewOption struct {
	Label    string
	Key      string
	Selected bool
}

// SegmentLine is one pre-formatted row of the segment description table.
type SegmentLine struct {
	Segment      string
	Label        string
	Description  string
	LookupCount  string
	LiveCount    string
	Unclassified bool
	Drift        bool
}

// Table is a pre-formatted grid. Empty strings render as blank cells.
type Table struct {
	Title  string
	Header []string
	Rows   [][]string
}
