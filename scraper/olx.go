package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"rentwatch/identity"
	"rentwatch/models"
)

const (
	olxBaseURL = "https://www.olx.pl/nieruchomosci/mieszkania/wynajem/warszawa/?"
	olxHost    = "https://www.olx.pl"

	// Banner shown instead of results; the page then lists unrelated
	// "recently viewed" offers which must not be reported.
	olxNoResultsSelector = "div.css-wsrviy"
	olxCardSelector      = "div.css-1g5933j"
	olxFeaturedSelector  = `div[data-testid="adCard-featured"]`
	olxTitleSelector     = "h6.css-1wxaaza"
	olxLinkSelector      = "a.css-z3gu2d"
	olxPriceSelector     = "p.css-13afqrm"
	olxLocationSelector  = "p.css-1mwdrlh"
	olxAreaSelector      = "span.css-643j0o"

	// Offers cross-posted from Otodom are already covered by that source.
	olxCrossPostHost = "otodom.pl"
)

// Each bucket keeps its fixed index regardless of which others are selected.
var olxRoomParams = map[models.Room]string{
	models.RoomsOne:      "search%5Bfilter_enum_rooms%5D%5B0%5D=one&",
	models.RoomsTwo:      "search%5Bfilter_enum_rooms%5D%5B1%5D=two&",
	models.RoomsThree:    "search%5Bfilter_enum_rooms%5D%5B2%5D=three&",
	models.RoomsFourPlus: "search%5Bfilter_enum_rooms%5D%5B3%5D=four&",
}

type OLXSource struct {
	id      string
	baseURL string
}

func NewOLXSource(id, baseURL string) *OLXSource {
	if id == "" {
		id = "olx"
	}
	if baseURL == "" {
		baseURL = olxBaseURL
	}
	return &OLXSource{id: id, baseURL: baseURL}
}

func (s *OLXSource) ID() string {
	return s.id
}

func (s *OLXSource) BuildQuery(c models.Criteria) string {
	base := strings.ReplaceAll(s.baseURL, "/warszawa/", "/"+strings.ToLower(c.City.Slug)+"/")
	base = swapOfferType(base, c.OfferType)

	return fmt.Sprintf("%ssearch%%5Border%%5D=created_at:desc&search%%5Bfilter_float_price:from%%5D=%d&search%%5Bfilter_float_price:to%%5D=%d&search%%5Bfilter_float_m:from%%5D=%d&search%%5Bfilter_float_m:to%%5D=%d&%s",
		base, c.MinPrice, c.MaxPrice, c.AreaMin, c.AreaMax, OLXRooms(c.SortedRooms()))
}

// OLXRooms renders one indexed parameter per bucket, each terminated by "&".
func OLXRooms(rooms []models.Room) string {
	var b strings.Builder
	for _, r := range rooms {
		b.WriteString(olxRoomParams[r])
	}
	return b.String()
}

func (s *OLXSource) Parse(body []byte) (*ParseResult, error) {
	doc, err := parseDocument(s.id, body)
	if err != nil {
		return nil, err
	}

	if doc.Find(olxNoResultsSelector).Length() > 0 {
		return &ParseResult{NoResults: true}, nil
	}

	cards := doc.Find(olxCardSelector)
	if cards.Length() == 0 {
		return nil, &ParseError{SourceID: s.id, Page: true, Reason: "no listing cards and no empty-result banner"}
	}

	result := &ParseResult{}
	cards.Each(func(_ int, card *goquery.Selection) {
		if card.Find(olxFeaturedSelector).Length() > 0 {
			return
		}

		href, _ := card.Find(olxLinkSelector).First().Attr("href")
		if strings.TrimSpace(href) == "" {
			result.Skipped++
			return
		}
		if identity.SameHost(href, olxCrossPostHost) {
			return
		}

		listing := models.Listing{
			SourceID: s.id,
			Link:     identity.CanonicalLink(href, olxHost),
			Title:    text(card.Find(olxTitleSelector).First()),
			Price:    text(card.Find(olxPriceSelector).First()),
			Area:     text(card.Find(olxAreaSelector).First()),
		}

		// "Warszawa, Mokotów - Odświeżono dnia 12 maja 2024"
		locationDate := text(card.Find(olxLocationSelector).First())
		if loc, date, ok := strings.Cut(locationDate, " - "); ok {
			listing.Location = loc
			listing.UpdatedDate = &date
		} else {
			listing.Location = locationDate
		}

		result.Listings = append(result.Listings, listing)
	})

	return result, nil
}
