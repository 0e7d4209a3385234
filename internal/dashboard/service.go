// Package dashboard runs the load, aggregate and render pipeline behind the
// single dashboard page.
package dashboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/KaramelBytes/rfm-dashboard/internal/analysis"
	"github.com/KaramelBytes/rfm-dashboard/internal/charts"
	"github.com/KaramelBytes/rfm-dashboard/internal/dataset"
	"github.com/KaramelBytes/rfm-dashboard/internal/metrics"
	"github.com/KaramelBytes/rfm-dashboard/internal/profile"
)

// Config is the display configuration for one dashboard. It is passed to the
// service at construction and read on every render.
type Config struct {
	Profile     *profile.Profile
	Options     analysis.Options
	ChartWidth  int
	ChartHeight int
}

// Sources returns the dataset locations the profile points at.
func (c Config) Sources() dataset.Sources {
	src := dataset.Sources{Donors: c.Profile.DonorsURL}
	if c.Profile.HasPivot() {
		src.Subsegments = c.Profile.SubsegmentURL
	}
	return src
}

// Service renders dashboard pages.
type Service struct {
	src     dataset.Source
	cfg     Config
	metrics *metrics.Metrics
	log     zerolog.Logger
	md      goldmark.Markdown
}

// NewService wires a dataset source to a profile. m may be nil.
func NewService(src dataset.Source, cfg Config, m *metrics.Metrics, log zerolog.Logger) *Service {
	return &Service{
		src:     src,
		cfg:     cfg,
		metrics: m,
		log:     log,
		md:      goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Profile returns the profile the service renders.
func (s *Service) Profile() *profile.Profile { return s.cfg.Profile }

// Render loads the dataset, derives every aggregate and assembles the page
// for view. Nothing is returned on a load failure.
func (s *Service) Render(ctx context.Context, view charts.View) (*Page, error) {
	start := time.Now()
	id := uuid.NewString()
	log := s.log.With().Str("render_id", id).Str("view", view.Key()).Logger()

	page, err := s.render(ctx, id, view, log)
	outcome := "ok"
	switch {
	case errors.Is(err, dataset.ErrLoad):
		outcome = "load_error"
		log.Error().Err(err).Msg("dataset load failed")
	case err != nil:
		outcome = "error"
		log.Error().Err(err).Msg("render failed")
	default:
		log.Info().Int("rows", page.Report.Rows).Dur("elapsed", time.Since(start)).Msg("dashboard rendered")
	}
	if s.metrics != nil {
		s.metrics.ObserveRender(view.Key(), outcome, start)
	}
	return page, err
}

// Report runs the load and aggregate steps only.
func (s *Service) Report(ctx context.Context) (*analysis.Report, *dataset.Dataset, error) {
	ds, err := s.src.Load(ctx, s.cfg.Sources())
	if err != nil {
		return nil, nil, err
	}
	p := s.cfg.Profile
	var subs []analysis.SubsegmentRecord
	if p.HasPivot() {
		subs = ds.Subsegments
		if subs == nil {
			subs = []analysis.SubsegmentRecord{}
		}
	}
	return analysis.Build(p.Name, ds.Donors, subs, p.Segments, s.cfg.Options), ds, nil
}

func (s *Service) render(ctx context.Context, id string, view charts.View, log zerolog.Logger) (*Page, error) {
	rep, ds, err := s.Report(ctx)
	if err != nil {
		return nil, err
	}
	s.observeReport(rep, log)

	p := s.cfg.Profile
	linear := charts.BuildScatter(ds.Donors, charts.ScatterOptions{Width: s.cfg.ChartWidth, Height: s.cfg.ChartHeight})
	density := charts.BuildScatter(ds.Donors, charts.ScatterOptions{Log: true, Palette: p.Palette, Width: s.cfg.ChartWidth, Height: s.cfg.ChartHeight})
	selected, err := charts.Select(view, linear, density)
	if err != nil {
		return nil, err
	}
	scatterJSON, err := selected.JSON()
	if err != nil {
		return nil, err
	}

	bars := charts.BarOptions{Width: s.cfg.ChartWidth, Height: s.cfg.ChartHeight}
	countsSVG, err := charts.SegmentCountsSVG(rep.Counts, bars)
	if err != nil && !errors.Is(err, charts.ErrNoData) {
		return nil, err
	}
	channelSVG, legend, err := charts.ChannelRevenueSVG(rep.Channels, bars)
	if err != nil && !errors.Is(err, charts.ErrNoData) {
		return nil, err
	}

	page := &Page{
		RenderID:       id,
		Title:          p.Title,
		Subheader:      p.Subheader,
		TogglePrompt:   p.TogglePrompt,
		View:           view,
		Views:          viewOptions(view),
		Scatter:        template.JS(scatterJSON),
		ScatterHeight:  s.cfg.ChartHeight,
		ScatterPoints:  selected.Points(),
		ScatterDropped: selected.Dropped,
		Segments:       segmentLines(rep),
		Warnings:       rep.Warnings,
		CountsSVG:      template.HTML(countsSVG),
		ChannelSVG:     template.HTML(channelSVG),
		ChannelLegend:  legend,
		ChannelTable:   channelTable(rep, s.cfg.Options.Precision),
		NextActions:    p.NextActions,
		Report:         rep,
		LoadedAt:       ds.LoadedAt,
	}
	if page.Intro, err = s.markdown(p.Intro); err != nil {
		return nil, err
	}
	if page.ChannelNotes, err = s.markdown(p.ChannelNotes); err != nil {
		return nil, err
	}
	if rep.Pivot != nil {
		page.Pivot = pivotView(p.PivotTitle, rep.Pivot)
	}
	return page, nil
}

func (s *Service) observeReport(rep *analysis.Report, log zerolog.Logger) {
	unclassified := analysis.UnclassifiedCount(rep.Segments)
	for _, d := range rep.Drift {
		log.Warn().
			Int("segment", int(d.Code)).
			Str("label", d.Label).
			Int("lookup_count", d.LookupCount).
			Int("live_count", d.LiveCount).
			Msg("segment lookup count differs from live data")
	}
	if unclassified > 0 {
		log.Warn().Int("donors", unclassified).Msg("donors carry codes missing from the segment lookup")
	}
	if s.metrics == nil {
		return
	}
	s.metrics.DatasetRows.Set(float64(rep.Rows))
	s.metrics.UnclassifiedRows.Set(float64(unclassified))
	// Every lookup segment keeps a series, zero when in agreement, so the label
	// set never shrinks between renders.
	for _, row := range rep.Segments {
		if row.Unclassified() {
			continue
		}
		s.metrics.LookupDrift.WithLabelValues(row.Code.String()).Set(float64(row.LiveCount - row.LookupCount))
	}
}

func (s *Service) markdown(src string) (template.HTML, error) {
	if src == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	// goldmark escapes raw HTML unless configured otherwise.
	return template.HTML(buf.String()), nil
}

func viewOptions(selected charts.View) []ViewOption {
	out := make([]ViewOption, 0, 2)
	for _, v := range charts.Views() {
		out = append(out, ViewOption{Label: string(v), Key: v.Key(), Selected: v == selected})
	}
	return out
}

func segmentLines(rep *analysis.Report) []SegmentLine {
	drift := map[analysis.Code]bool{}
	for _, d := range rep.Drift {
		drift[d.Code] = true
	}
	out := make([]SegmentLine, 0, len(rep.Segments))
	for _, r := range rep.Segments {
		line := SegmentLine{
			Segment:      r.Code.String(),
			Label:        r.Label,
			Description:  r.Description,
			LookupCount:  charts.FormatInt(int64(r.LookupCount)),
			LiveCount:    charts.FormatInt(int64(r.LiveCount)),
			Unclassified: r.Unclassified(),
			Drift:        drift[r.Code],
		}
		if r.Unclassified() {
			line.Segment = ""
			line.LookupCount = ""
			codes := make([]string, 0, len(r.UnclassifiedCodes))
			for _, c := range r.UnclassifiedCodes {
				codes = append(codes, c.String())
			}
			line.Description = "codes " + strings.Join(codes, ", ")
		}
		out = append(out, line)
	}
	return out
}

func channelTable(rep *analysis.Report, precision int) *Table {
	codes, channels, values := rep.ChannelMatrix()
	if len(codes) == 0 {
		return nil
	}
	t := &Table{Header: append([]string{"Segment"}, channels...)}
	for i, c := range codes {
		row := []string{c.String()}
		for _, v := range values[i] {
			if math.IsNaN(v) {
				row = append(row, "")
				continue
			}
			row = append(row, analysis.FormatAmount(v, precision))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func pivotView(title string, m *analysis.PivotMatrix) *Table {
	if title == "" {
		title = "Segments by Subsegment"
	}
	t := &Table{Title: title, Header: append([]string{"Segment"}, m.Columns...)}
	for i, label := range m.Rows {
		row := []string{label}
		for j := range m.Columns {
			if n, ok := m.Cell(i, j); ok {
				row = append(row, strconv.Itoa(n))
			} else {
				row = append(row, "")
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}
