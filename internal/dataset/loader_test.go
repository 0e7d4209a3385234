package dataset

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/KaramelBytes/rfm-dashboard/internal/analysis"
	"github.com/KaramelBytes/rfm-dashboard/internal/metrics"
)

const donorsCSV = `recency,frequency,revenue,overall_score,donation_source
10,1,100,0,Web
20,2,50,0,Web
30,3,25,1,Box Office
`

const levelsCSV = `overall_score,subsegment
0,Low
0,High
1,Low
`

type testServer struct {
	URL string
	srv *http.Server
}

func newTestServer(t *testing.T, handler http.Handler) *testServer {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	s := &testServer{URL: "http://" + ln.Addr().String(), srv: srv}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.srv.Shutdown(ctx)
	})
	return s
}

func csvHandler(hits *int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		switch r.URL.Path {
		case "/donors.csv":
			w.Header().Set("Content-Type", "text/csv")
			_, _ = w.Write([]byte(donorsCSV))
		case "/levels.csv":
			_, _ = w.Write([]byte(levelsCSV))
		case "/bad.csv":
			_, _ = w.Write([]byte("recency,frequency,revenue,overall_score,donation_source\n1,2,3,x,Web\n"))
		default:
			w.Header().Set("X-GitHub-Request-Id", "ABCD:1234")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("404: Not Found"))
		}
	})
}

func TestLoaderLoadsBothTables(t *testing.T) {
	srv := newTestServer(t, csvHandler(nil))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	l := NewLoader(NewFetcher(5*time.Second), WithMetrics(m))

	ds, err := l.Load(context.Background(), Sources{Donors: srv.URL + "/donors.csv", Subsegments: srv.URL + "/levels.csv"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ds.Donors) != 3 || len(ds.Subsegments) != 3 || !ds.HasSubsegments {
		t.Fatalf("unexpected dataset: donors=%d subsegments=%d has=%v", len(ds.Donors), len(ds.Subsegments), ds.HasSubsegments)
	}
	if ds.LoadedAt.IsZero() {
		t.Fatalf("LoadedAt not set")
	}
	if got := testutil.CollectAndCount(m.FetchDuration); got != 2 {
		t.Fatalf("fetch histogram series = %d, want 2", got)
	}
}

func TestLoaderRepeatedLoadsAggregateIdentically(t *testing.T) {
	var hits int32
	srv := newTestServer(t, csvHandler(&hits))
	l := NewLoader(NewFetcher(5 * time.Second))
	src := Sources{Donors: srv.URL + "/donors.csv", Subsegments: srv.URL + "/levels.csv"}
	lookup := []analysis.Segment{{Code: 0, Label: "Lapsed"}, {Code: 1, Label: "New"}}

	build := func() *analysis.Report {
		t.Helper()
		ds, err := l.Load(context.Background(), src)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		return analysis.Build("donations", ds.Donors, ds.Subsegments, lookup, analysis.DefaultOptions())
	}
	first, second := build(), build()
	if first == second {
		t.Fatalf("expected two independent reports")
	}
	if got := atomic.LoadInt32(&hits); got != 4 {
		t.Fatalf("expected both tables fetched twice, hits=%d", got)
	}
	if diff := cmp.Diff(first, second, cmp.AllowUnexported(analysis.Report{})); diff != "" {
		t.Fatalf("repeated load changed the aggregates (-first +second):\n%s", diff)
	}
	if first.Rows != 3 || first.Pivot == nil {
		t.Fatalf("unexpected report: rows=%d pivot=%v", first.Rows, first.Pivot)
	}
}

func TestLoaderSkipsSubsegmentsWhenUnset(t *testing.T) {
	srv := newTestServer(t, csvHandler(nil))
	l := NewLoader(NewFetcher(5 * time.Second))
	ds, err := l.Load(context.Background(), Sources{Donors: srv.URL + "/donors.csv"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds.HasSubsegments || ds.Subsegments != nil {
		t.Fatalf("expected no subsegment table, got %#v", ds.Subsegments)
	}
}

func TestLoaderHTTPErrorIsLoadError(t *testing.T) {
	srv := newTestServer(t, csvHandler(nil))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	l := NewLoader(NewFetcher(5*time.Second), WithMetrics(m))

	_, err := l.Load(context.Background(), Sources{Donors: srv.URL + "/donors.csv", Subsegments: srv.URL + "/missing.csv"})
	if !errors.Is(err, ErrLoad) {
		t.Fatalf("expected ErrLoad, got %v", err)
	}
	var le *LoadError
	if !errors.As(err, &le) || le.Table != TableSubsegments {
		t.Fatalf("expected LoadError for subsegments, got %#v", err)
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError cause, got %v", err)
	}
	if !fe.NotFound() || fe.RequestID != "ABCD:1234" || fe.Body != "404: Not Found" {
		t.Fatalf("unexpected fetch error: %#v", fe)
	}
	if !strings.Contains(err.Error(), "unexpected status 404") {
		t.Fatalf("error text = %q", err)
	}
	if got := testutil.ToFloat64(m.FetchFailures.WithLabelValues(TableSubsegments)); got != 1 {
		t.Fatalf("failures = %v, want 1", got)
	}
}

func TestLoaderDecodeErrorIsLoadError(t *testing.T) {
	srv := newTestServer(t, csvHandler(nil))
	l := NewLoader(NewFetcher(5 * time.Second))
	_, err := l.Load(context.Background(), Sources{Donors: srv.URL + "/bad.csv"})
	if !errors.Is(err, ErrLoad) {
		t.Fatalf("expected ErrLoad, got %v", err)
	}
	var de *analysis.DecodeError
	if !errors.As(err, &de) || de.Column != analysis.ColScore || de.Row != 1 {
		t.Fatalf("expected DecodeError for overall_score row 1, got %v", err)
	}
}

func TestLoaderReadsLocalFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "donors.csv")
	if err := os.WriteFile(path, []byte(donorsCSV), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	l := NewLoader(NewFetcher(0))
	for _, loc := range []string{path, "file://" + path} {
		ds, err := l.Load(context.Background(), Sources{Donors: loc})
		if err != nil {
			t.Fatalf("Load(%s): %v", loc, err)
		}
		if len(ds.Donors) != 3 {
			t.Fatalf("Load(%s) donors = %d", loc, len(ds.Donors))
		}
	}
	_, err := l.Load(context.Background(), Sources{Donors: filepath.Join(dir, "nope.csv")})
	var fe *FetchError
	if !errors.As(err, &fe) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected FetchError wrapping ErrNotExist, got %v", err)
	}
}

func TestLoaderEmptyLocation(t *testing.T) {
	l := NewLoader(NewFetcher(0))
	if _, err := l.Load(context.Background(), Sources{}); !errors.Is(err, ErrLoad) {
		t.Fatalf("expected ErrLoad for empty donors location, got %v", err)
	}
}

func TestLoaderCancelledContext(t *testing.T) {
	block := make(chan struct{})
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	l := NewLoader(NewFetcher(5 * time.Second))
	_, err := l.Load(ctx, Sources{Donors: srv.URL + "/slow.csv"})
	if !errors.Is(err, ErrLoad) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected ErrLoad wrapping deadline, got %v", err)
	}
}
