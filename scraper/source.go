package scraper

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"rentwatch/config"
	"rentwatch/models"
)

// Source builds a site-specific query and turns the returned page into
// listings. BuildQuery and Parse are pure; network access lives in a Fetcher.
type Source interface {
	ID() string
	BuildQuery(c models.Criteria) string
	Parse(body []byte) (*ParseResult, error)
}

// ParseResult holds the listings of one page, newest-first.
type ParseResult struct {
	Listings []models.Listing
	// Skipped counts cards that had no usable link.
	Skipped int
	// NoResults is set when the site said explicitly that nothing matched.
	NoResults bool
}

func NewSource(site *config.SiteConfig) (Source, error) {
	switch site.Handler {
	case "otodom":
		return NewOtodomSource(site.ID, site.BaseURL), nil
	case "olx":
		return NewOLXSource(site.ID, site.BaseURL), nil
	case "nieruchomosci":
		return NewNieruchomosciSource(site.ID, site.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown handler %q for site %s", site.Handler, site.ID)
	}
}

func parseDocument(sourceID string, body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{SourceID: sourceID, Page: true, Reason: "unreadable html", Err: err}
	}
	return doc, nil
}

// swapOfferType turns a rental search path into a sale one.
func swapOfferType(base string, offer models.OfferType) string {
	if offer == models.OfferSale {
		return strings.ReplaceAll(base, "wynajem", "sprzedaz")
	}
	return base
}

func text(s *goquery.Selection) string {
	return strings.TrimSpace(strings.ReplaceAll(s.Text(), "\u00a0", " "))
}

// optional returns nil for an empty selection so absent fields stay absent.
func optional(s *goquery.Selection) *string {
	if s.Length() == 0 {
		return nil
	}
	v := text(s)
	if v == "" {
		return nil
	}
	return &v
}
