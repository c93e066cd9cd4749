package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"rentwatch/identity"
	"rentwatch/models"
)

const (
	otodomBaseURL = "https://www.otodom.pl/pl/wyniki/wynajem/mieszkanie/mazowieckie/warszawa/warszawa/warszawa?"
	otodomHost    = "https://www.otodom.pl"

	// The first cards of every result page are promoted, not organic.
	otodomPromotedCards = 3

	// Shown in place of the result list when nothing matched.
	otodomNoResultsSelector = `[data-cy="no-search-results"]`

	otodomCardSelector     = "section.eeungyz1.css-hqx1d9.e12fn6ie0"
	otodomTitleSelector    = "a.css-16vl3c1.e17g0c820"
	otodomPriceSelector    = "span.css-2bt9f1.evk7nst0"
	otodomLocationSelector = "p.css-42r2ms.eejmx80"
	otodomDetailsSelector  = "div.css-1c1kq07.e1clni9t0"
	otodomRoomsLabel       = "Liczba pokoi"
)

var otodomRoomTokens = map[models.Room]string{
	models.RoomsOne:      "ONE",
	models.RoomsTwo:      "TWO",
	models.RoomsThree:    "THREE",
	models.RoomsFourPlus: "FOUR%2CFIVE%2CSIX_OR_MORE",
}

type OtodomSource struct {
	id      string
	baseURL string
}

func NewOtodomSource(id, baseURL string) *OtodomSource {
	if id == "" {
		id = "otodom"
	}
	if baseURL == "" {
		baseURL = otodomBaseURL
	}
	return &OtodomSource{id: id, baseURL: baseURL}
}

func (s *OtodomSource) ID() string {
	return s.id
}

// BuildQuery substitutes the city and region path segments, swaps the offer
// type and appends the filter parameters in the order the site emits them.
func (s *OtodomSource) BuildQuery(c models.Criteria) string {
	base := strings.ReplaceAll(s.baseURL, "warszawa", strings.ToLower(c.City.Slug))
	base = strings.ReplaceAll(base, "mazowieckie", RegionSlug(c.Region))
	base = swapOfferType(base, c.OfferType)

	return fmt.Sprintf("%sownerTypeSingleSelect=%s&viewType=%s&limit=%d&priceMin=%d&priceMax=%d&areaMin=%d&areaMax=%d&roomsNumber=%s&by=%s&direction=%s",
		base, c.OwnerType, c.ViewType, c.Limit,
		c.MinPrice, c.MaxPrice, c.AreaMin, c.AreaMax,
		OtodomRooms(c.SortedRooms()), c.SortBy, c.SortDirection)
}

// OtodomRooms renders the bracketed, escaped token list, e.g. %5BTWO%2CTHREE%5D.
func OtodomRooms(rooms []models.Room) string {
	tokens := make([]string, 0, len(rooms))
	for _, r := range rooms {
		if tok, ok := otodomRoomTokens[r]; ok {
			tokens = append(tokens, tok)
		}
	}
	return "%5B" + strings.Join(tokens, "%2C") + "%5D"
}

func (s *OtodomSource) Parse(body []byte) (*ParseResult, error) {
	doc, err := parseDocument(s.id, body)
	if err != nil {
		return nil, err
	}

	cards := doc.Find(otodomCardSelector)
	if cards.Length() == 0 {
		if doc.Find(otodomNoResultsSelector).Length() > 0 {
			return &ParseResult{NoResults: true}, nil
		}
		return nil, &ParseError{SourceID: s.id, Page: true, Reason: "no listing cards and no empty-result banner"}
	}

	result := &ParseResult{}
	cards.Each(func(i int, card *goquery.Selection) {
		if i < otodomPromotedCards {
			return
		}

		titleTag := card.Find(otodomTitleSelector).First()
		href, _ := titleTag.Attr("href")
		link := identity.CanonicalLink(href, otodomHost)
		if link == "" {
			result.Skipped++
			return
		}

		listing := models.Listing{
			SourceID: s.id,
			Link:     link,
			Title:    text(titleTag),
			Price:    text(card.Find(otodomPriceSelector).First()),
			Location: text(card.Find(otodomLocationSelector).First()),
		}

		details := card.Find(otodomDetailsSelector).First()
		terms := details.Find("dt")
		values := details.Find("dd")
		if terms.Length() > 0 && text(terms.First()) == otodomRoomsLabel {
			listing.RoomCount = optional(values.Eq(0))
		}
		if values.Length() > 1 {
			listing.Area = text(values.Eq(1))
		}
		if values.Length() > 2 {
			listing.Floor = optional(values.Eq(2))
		}

		result.Listings = append(result.Listings, listing)
	})

	return result, nil
}
