package httputil

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"rentwatch/config"
)

type Clients struct {
	Scraping *http.Client // proxied when PROXY_URL is set, for listing sites
	API      *http.Client // direct, for webhooks
}

func NewClients(fetchCfg *config.FetchConfig) *Clients {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if fetchCfg.ProxyURL != "" {
		if proxyURL, err := url.Parse(fetchCfg.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
			slog.Info("scraping client using proxy", "host", proxyURL.Host)
		} else {
			slog.Warn("ignoring invalid proxy url", "error", err)
		}
	}

	timeout := fetchCfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Clients{
		Scraping: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		API: &http.Client{Timeout: 30 * time.Second},
	}
}
