package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"rentwatch/config"
	"rentwatch/httputil"
)

const maxBodySize = 8 << 20

// ErrBodyTooLarge means the page exceeded the body limit. A truncated page
// is never handed to a parser.
var ErrBodyTooLarge = errors.New("response body too large")

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher performs a single GET with a static browser user agent.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

func NewHTTPFetcher(client *http.Client, userAgent string) *HTTPFetcher {
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}
	return &HTTPFetcher{client: client, userAgent: userAgent, maxBody: maxBodySize}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "pl-PL,pl;q=0.9,en;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &NetworkError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	if int64(len(body)) > f.maxBody {
		return nil, &NetworkError{URL: url, Err: ErrBodyTooLarge}
	}
	return body, nil
}

// NewFetchers builds one fetcher per site, sharing the browser between the
// sites configured for it. The returned closer releases the browser.
func NewFetchers(sites []*config.SiteConfig, clients *httputil.Clients, fetchCfg *config.FetchConfig) (map[string]Fetcher, func()) {
	httpFetcher := NewHTTPFetcher(clients.Scraping, fetchCfg.UserAgent)
	var browser *BrowserFetcher

	fetchers := make(map[string]Fetcher, len(sites))
	for _, site := range sites {
		if site.Fetcher == "browser" {
			if browser == nil {
				browser = NewBrowserFetcher(fetchCfg.UserAgent, fetchCfg.Timeout)
			}
			fetchers[site.ID] = browser
			continue
		}
		fetchers[site.ID] = httpFetcher
	}

	closer := func() {
		if browser != nil {
			browser.Close()
		}
	}
	return fetchers, closer
}
