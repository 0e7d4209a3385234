package charts

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/KaramelBytes/rfm-dashboard/internal/analysis"
)

// ErrNoData is returned when a bar chart has nothing to draw.
var ErrNoData = errors.New("no data to chart")

// BarOptions sizes a bar chart. Zero values fall back to 1600x800.
type BarOptions struct {
	Width   int
	Height  int
	Palette []string
}

func (o BarOptions) size() (int, int) {
	w, h := o.Width, o.Height
	if w <= 0 {
		w = 1600
	}
	if h <= 0 {
		h = 800
	}
	return w, h
}

// LegendEntry pairs a series name with its color for an HTML legend.
type LegendEntry struct {
	Name  string
	Color string
}

// logFloor is the number of decades the count axis extends below 10^0, so a
// segment with a single donor still gets a visible bar.
const logFloor = 0.5

// SegmentCountsSVG draws one bar per segment on a log10 count axis with
// decade tick labels. Segments with no donors get no bar.
func SegmentCountsSVG(counts []analysis.SegmentCount, opts BarOptions) ([]byte, error) {
	if len(counts) == 0 {
		return nil, ErrNoData
	}
	palette := paletteOr(opts.Palette)
	bars := make([]chart.Value, 0, len(counts))
	maxLog := 0.0
	for i, c := range counts {
		if c.Count >= 1 {
			maxLog = math.Max(maxLog, math.Log10(float64(c.Count)))
		}
		bars = append(bars, chart.Value{
			Label: c.Code.String(),
			Value: logBarHeight(c.Count),
			Style: barStyle(palette[i%len(palette)]),
		})
	}
	top := math.Ceil(maxLog)
	if top < 1 {
		top = 1
	}
	ticks := make([]chart.Tick, 0, int(top)+2)
	ticks = append(ticks, chart.Tick{Value: 0, Label: ""})
	for d := 0.0; d <= top; d++ {
		ticks = append(ticks, chart.Tick{Value: d + logFloor, Label: FormatInt(int64(math.Pow(10, d)))})
	}
	return renderBars("Number of Customers by Segment", bars, ticks, top+logFloor, opts)
}

// logBarHeight maps a count to its bar height above the axis floor.
func logBarHeight(count int) float64 {
	if count < 1 {
		return 0
	}
	return math.Log10(float64(count)) + logFloor
}

// ChannelRevenueSVG draws grouped bars: one group per segment, one bar per
// channel within it, colored per channel. The value axis uses plain labels.
func ChannelRevenueSVG(rows []analysis.ChannelRevenue, opts BarOptions) ([]byte, []LegendEntry, error) {
	if len(rows) == 0 {
		return nil, nil, ErrNoData
	}
	palette := paletteOr(opts.Palette)
	channels := analysis.Channels(rows)
	colors := make(map[string]string, len(channels))
	legend := make([]LegendEntry, 0, len(channels))
	for i, ch := range channels {
		colors[ch] = palette[i%len(palette)]
		legend = append(legend, LegendEntry{Name: ch, Color: colors[ch]})
	}

	bars := make([]chart.Value, 0, len(rows))
	maxVal := 0.0
	prev := analysis.Code(math.MinInt32)
	for _, r := range rows {
		label := ""
		if r.Code != prev {
			label = r.Code.String()
			prev = r.Code
		}
		v := r.Revenue
		if v < 0 {
			v = 0
		}
		maxVal = math.Max(maxVal, v)
		bars = append(bars, chart.Value{Label: label, Value: v, Style: barStyle(colors[r.Channel])})
	}
	top, ticks := linearTicks(maxVal, 5)
	svg, err := renderBars("Segments and Donation Channels", bars, ticks, top, opts)
	if err != nil {
		return nil, nil, err
	}
	return svg, legend, nil
}

func renderBars(title string, bars []chart.Value, ticks []chart.Tick, top float64, opts BarOptions) ([]byte, error) {
	w, h := opts.size()
	// Fit every bar inside the plot area.
	slot := (w - 120) / len(bars)
	if slot < 2 {
		slot = 2
	}
	barWidth := slot * 7 / 10
	if barWidth < 1 {
		barWidth = 1
	}
	bc := chart.BarChart{
		Title:      title,
		Width:      w,
		Height:     h,
		Background: chart.Style{Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		BarWidth:   barWidth,
		BarSpacing: slot - barWidth,
		XAxis:      chart.Style{FontSize: 10},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: top},
			Ticks: ticks,
		},
		Bars: bars,
	}
	var buf bytes.Buffer
	if err := bc.Render(chart.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render %q: %w", title, err)
	}
	return buf.Bytes(), nil
}

// linearTicks returns an axis top and n+1 evenly spaced ticks on a 1-2-5 step.
func linearTicks(maxVal float64, n int) (float64, []chart.Tick) {
	if maxVal <= 0 {
		maxVal = 1
	}
	raw := maxVal / float64(n)
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	step := mag
	for _, m := range []float64{1, 2, 5, 10} {
		if raw <= m*mag {
			step = m * mag
			break
		}
	}
	top := step * math.Ceil(maxVal/step)
	ticks := []chart.Tick{}
	for v := 0.0; v <= top+step/2; v += step {
		ticks = append(ticks, chart.Tick{Value: v, Label: formatPlain(v, step)})
	}
	return top, ticks
}

func formatPlain(v, step float64) string {
	if step >= 1 {
		return FormatInt(int64(math.Round(v)))
	}
	return fmt.Sprintf("%g", v)
}

// FormatInt renders n with thousands separators.
func FormatInt(n int64) string {
	return analysis.FormatAmount(float64(n), 0)
}

func barStyle(hex string) chart.Style {
	c := drawing.ColorFromHex(trimHash(hex))
	return chart.Style{FillColor: c, StrokeColor: c, StrokeWidth: 1}
}

func trimHash(hex string) string {
	if len(hex) > 0 && hex[0] == '#' {
		return hex[1:]
	}
	return hex
}

func paletteOr(p []string) []string {
	if len(p) == 0 {
		return DefaultColors
	}
	return p
}
