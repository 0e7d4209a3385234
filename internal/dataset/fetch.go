package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const userAgent = "rfmdash (+https://github.com/KaramelBytes/rfm-dashboard)"

// Fetcher opens dataset locations: http(s) URLs, file:// URLs or local paths.
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher returns a fetcher whose HTTP requests time out after timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{httpClient: &http.Client{Timeout: timeout}}
}

// NewFetcherWithClient allows injecting a custom client (used in tests).
func NewFetcherWithClient(c *http.Client) *Fetcher {
	return &Fetcher{httpClient: c}
}

// Open returns the body at location. The caller closes it.
func (f *Fetcher) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if location == "" {
		return nil, &FetchError{Location: location, Err: fmt.Errorf("empty location")}
	}
	if isRemote(location) {
		return f.openHTTP(ctx, location)
	}
	path := location
	if strings.HasPrefix(location, "file://") {
		u, err := url.Parse(location)
		if err != nil {
			return nil, &FetchError{Location: location, Err: err}
		}
		path = u.Path
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, &FetchError{Location: location, Err: err}
	}
	return file, nil
}

func (f *Fetcher) openHTTP(ctx context.Context, location string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, &FetchError{Location: location, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.5")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Location: location, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, &FetchError{
			Location:   location,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(b)),
			RequestID:  extractRequestID(resp),
		}
	}
	return resp.Body, nil
}

func isRemote(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// extractRequestID pulls a best-effort request ID from common headers.
func extractRequestID(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	keys := []string{"X-Request-Id", "X-GitHub-Request-Id", "X-Amz-Request-Id", "X-Amzn-Requestid"}
	for _, k := range keys {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}
