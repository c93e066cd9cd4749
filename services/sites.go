package services

import (
	"errors"
	"fmt"
	"net/url"

	"rentwatch/config"
	"rentwatch/scraper"
)

var ErrNoSites = errors.New("no sites enabled")

// BuildSites turns the enabled site configs into monitor sites, in config
// order.
func BuildSites(sites []*config.SiteConfig, fetchers map[string]scraper.Fetcher) ([]Site, error) {
	var out []Site
	for _, sc := range sites {
		if !sc.IsEnabled() {
			continue
		}
		src, err := scraper.NewSource(sc)
		if err != nil {
			return nil, err
		}
		fetcher, ok := fetchers[sc.ID]
		if !ok {
			return nil, fmt.Errorf("no fetcher for site %s", sc.ID)
		}
		name := sc.Name
		if name == "" {
			name = sc.ID
		}
		out = append(out, Site{Name: name, URL: homepage(sc), Source: src, Fetcher: fetcher})
	}
	if len(out) == 0 {
		return nil, ErrNoSites
	}
	return out, nil
}

// homepage falls back to the scheme and host of the search URL.
func homepage(sc *config.SiteConfig) string {
	if sc.Homepage != "" {
		return sc.Homepage
	}
	u, err := url.Parse(sc.BaseURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
