package dataset

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/rfm-dashboard/internal/analysis"
	"github.com/KaramelBytes/rfm-dashboard/internal/metrics"
)

const (
	TableDonors      = "donors"
	TableSubsegments = "subsegments"
)

// Sources names the locations of the two input tables. Subsegments is
// optional; when empty no subsegment table is loaded.
type Sources struct {
	Donors      string
	Subsegments string
}

// Dataset is one load of the input tables.
type Dataset struct {
	Donors      []analysis.Donor
	Subsegments []analysis.SubsegmentRecord
	// HasSubsegments reports whether a subsegment table was requested.
	HasSubsegments bool
	Sources        Sources
	LoadedAt       time.Time
}

// Source yields a Dataset for a set of locations.
type Source interface {
	Load(ctx context.Context, src Sources) (*Dataset, error)
}

// Loader fetches and decodes the tables on every call.
type Loader struct {
	fetcher *Fetcher
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

// Option configures a Loader.
type Option func(*Loader)

// WithMetrics records fetch timings on m.
func WithMetrics(m *metrics.Metrics) Option { return func(l *Loader) { l.metrics = m } }

// WithLogger sets the logger used for per-table debug lines.
func WithLogger(log zerolog.Logger) Option { return func(l *Loader) { l.log = log } }

// NewLoader returns a Loader using f.
func NewLoader(f *Fetcher, opts ...Option) *Loader {
	l := &Loader{fetcher: f, log: zerolog.Nop(), now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load fetches the donor table and, when configured, the subsegment table
// concurrently. Any failure cancels the other fetch and yields a *LoadError.
func (l *Loader) Load(ctx context.Context, src Sources) (*Dataset, error) {
	ds := &Dataset{Sources: src, HasSubsegments: src.Subsegments != ""}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return l.loadTable(gctx, TableDonors, src.Donors, func(rc io.Reader) error {
			rows, err := analysis.DecodeDonors(rc, src.Donors)
			ds.Donors = rows
			return err
		})
	})
	if ds.HasSubsegments {
		g.Go(func() error {
			return l.loadTable(gctx, TableSubsegments, src.Subsegments, func(rc io.Reader) error {
				rows, err := analysis.DecodeSubsegments(rc, src.Subsegments)
				ds.Subsegments = rows
				return err
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	ds.LoadedAt = l.now()
	return ds, nil
}

func (l *Loader) loadTable(ctx context.Context, table, location string, decode func(io.Reader) error) (err error) {
	start := time.Now()
	defer func() {
		if l.metrics != nil {
			l.metrics.ObserveFetch(table, start, err)
		}
	}()

	body, err := l.fetcher.Open(ctx, location)
	if err != nil {
		return wrapLoad(table, location, err)
	}
	defer body.Close()
	if err := decode(body); err != nil {
		// A read cut short by cancellation reports the cancellation.
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) && !isValueError(err) {
			err = ctxErr
		}
		return wrapLoad(table, location, err)
	}
	l.log.Debug().Str("table", table).Str("location", location).Dur("elapsed", time.Since(start)).Msg("dataset table loaded")
	return nil
}

func wrapLoad(table, location string, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		return err
	}
	return &LoadError{Table: table, Location: location, Err: err}
}

// isValueError reports a decode failure tied to a specific cell or column.
func isValueError(err error) bool {
	var de *analysis.DecodeError
	if errors.As(err, &de) && de.Column != "" {
		return true
	}
	var me *analysis.MissingColumnError
	return errors.As(err, &me)
}
