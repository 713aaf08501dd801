package knowledge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const fetchMaxBytes = 4 << 20

// Fetcher downloads published spreadsheet CSV exports over HTTP.
type Fetcher struct {
	httpClient *http.Client
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchSheet downloads one sheet's CSV export and parses it.
func (f *Fetcher) FetchSheet(ctx context.Context, sheet, url string) ([]Row, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build sheet request for %s: %w", sheet, err)
	}
	res, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch sheet %s: %v", ErrUnavailable, sheet, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch sheet %s: status %d", ErrUnavailable, sheet, res.StatusCode)
	}
	return ParseCSV(sheet, io.LimitReader(res.Body, fetchMaxBytes))
}
