package charts

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/rfm-dashboard/internal/analysis"
)

// DefaultColors is the discrete sequence used by the linear view.
var DefaultColors = []string{"#636efa", "#ef553b", "#00cc96", "#ab63fa", "#ffa15a", "#19d3f3", "#ff6692", "#b6e880", "#ff97ff", "#fecb52"}

// ScatterOptions parameterizes BuildScatter.
type ScatterOptions struct {
	// Log switches frequency and revenue to log axes.
	Log     bool
	Palette []string
	Width   int
	Height  int
}

// ScatterSeries holds the points of one segment as (recency, frequency, revenue).
type ScatterSeries struct {
	Code   analysis.Code
	Name   string
	Color  string
	Points [][3]float64
}

// ScatterSpec is a 3D scatter figure colored by segment.
type ScatterSpec struct {
	Title   string
	Log     bool
	Width   int
	Height  int
	Series  []ScatterSeries
	Dropped int
}

// BuildScatter groups scored donors into one series per segment code,
// ascending. Points with a NaN or infinite coordinate are dropped; the log
// spec also drops points whose frequency or revenue is not positive.
func BuildScatter(donors []analysis.Donor, opts ScatterOptions) *ScatterSpec {
	palette := opts.Palette
	if len(palette) == 0 {
		palette = DefaultColors
	}
	spec := &ScatterSpec{Log: opts.Log, Width: opts.Width, Height: opts.Height}
	if opts.Log {
		spec.Title = "Segment density (log frequency and revenue)"
	} else {
		spec.Title = "Segments by recency, frequency and revenue"
	}

	byCode := map[analysis.Code][][3]float64{}
	for _, d := range donors {
		if !d.Scored {
			continue
		}
		if !finite(d.Recency) || !finite(d.Frequency) || !finite(d.Revenue) {
			spec.Dropped++
			continue
		}
		if opts.Log && (d.Frequency <= 0 || d.Revenue <= 0) {
			spec.Dropped++
			continue
		}
		byCode[d.Score] = append(byCode[d.Score], [3]float64{d.Recency, d.Frequency, d.Revenue})
	}
	codes := make([]analysis.Code, 0, len(byCode))
	for c := range byCode {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	for i, c := range codes {
		spec.Series = append(spec.Series, ScatterSeries{
			Code:   c,
			Name:   c.String(),
			Color:  palette[i%len(palette)],
			Points: byCode[c],
		})
	}
	return spec
}

// Points returns the number of plotted points.
func (s *ScatterSpec) Points() int {
	n := 0
	for _, sr := range s.Series {
		n += len(sr.Points)
	}
	return n
}

// Option returns the ECharts GL option object for the spec.
func (s *ScatterSpec) Option() map[string]any {
	valueAxis := func(name string, log bool) map[string]any {
		ax := map[string]any{"name": name, "type": "value"}
		if log {
			ax["type"] = "log"
		}
		return ax
	}
	names := make([]string, 0, len(s.Series))
	series := make([]map[string]any, 0, len(s.Series))
	for _, sr := range s.Series {
		names = append(names, sr.Name)
		data := sr.Points
		if data == nil {
			data = [][3]float64{}
		}
		series = append(series, map[string]any{
			"type":       "scatter3D",
			"name":       sr.Name,
			"data":       data,
			"symbolSize": 4,
			"itemStyle":  map[string]any{"color": sr.Color, "opacity": 0.8},
		})
	}
	return map[string]any{
		"title":   map[string]any{"text": s.Title, "left": "center"},
		"tooltip": map[string]any{},
		"legend":  map[string]any{"data": names, "top": 30, "right": 10, "orient": "vertical"},
		"grid3D":  map[string]any{"boxWidth": 160, "boxDepth": 80, "viewControl": map[string]any{"projection": "perspective"}},
		"xAxis3D": valueAxis(analysis.ColRecency, false),
		"yAxis3D": valueAxis(analysis.ColFrequency, s.Log),
		"zAxis3D": valueAxis(analysis.ColRevenue, s.Log),
		"series":  series,
	}
}

// JSON encodes Option for embedding in the page.
func (s *ScatterSpec) JSON() ([]byte, error) {
	b, err := json.Marshal(s.Option())
	if err != nil {
		return nil, fmt.Errorf("encode scatter option: %w", err)
	}
	return b, nil
}

// Select returns the spec matching v: exactly one of linear or density.
func Select(v View, linear, density *ScatterSpec) (*ScatterSpec, error) {
	switch v {
	case ViewSegments:
		return linear, nil
	case ViewDensity:
		return density, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownView, string(v))
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
