package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"rentwatch/identity"
	"rentwatch/models"
)

const (
	nieruchomosciBaseURL = "https://www.nieruchomosci-online.pl/szukaj.html?3,mieszkanie,wynajem,,Warszawa"
	nieruchomosciHost    = "https://www.nieruchomosci-online.pl"

	nieruchomosciCardSelector     = "div.tile.tile-tile"
	nieruchomosciNameSelector     = "h2.name"
	nieruchomosciLocationSelector = "p.province"
	nieruchomosciPriceSelector    = "p.title-a.primary-display"

	// Heading shown on an empty result list.
	nieruchomosciNoResultsText = "Brak ogłoszeń"
)

// NieruchomosciSource queries a positional search template: fields are
// comma-separated and identified only by their position.
type NieruchomosciSource struct {
	id      string
	baseURL string
}

func NewNieruchomosciSource(id, baseURL string) *NieruchomosciSource {
	if id == "" {
		id = "nieruchomosci_online"
	}
	if baseURL == "" {
		baseURL = nieruchomosciBaseURL
	}
	return &NieruchomosciSource{id: id, baseURL: baseURL}
}

func (s *NieruchomosciSource) ID() string {
	return s.id
}

func (s *NieruchomosciSource) BuildQuery(c models.Criteria) string {
	base := strings.ReplaceAll(s.baseURL, "Warszawa", url.PathEscape(c.City.Name))
	base = swapOfferType(base, c.OfferType)

	lo, hi := NieruchomosciRoomRange(c.SortedRooms())
	return fmt.Sprintf("%s,,,,,%d-%d,%d-%d,,,,,,,%d-%d",
		base, c.MinPrice, c.MaxPrice, c.AreaMin, c.AreaMax, lo, hi)
}

// NieruchomosciRoomRange collapses the selection to its smallest and largest
// bucket. The template only holds a range, so {1,3} becomes 1-3 and also
// matches two-room offers.
func NieruchomosciRoomRange(rooms []models.Room) (int, int) {
	if len(rooms) == 0 {
		return int(models.RoomsOne), int(models.RoomsFourPlus)
	}
	return int(rooms[0]), int(rooms[len(rooms)-1])
}

func (s *NieruchomosciSource) Parse(body []byte) (*ParseResult, error) {
	doc, err := parseDocument(s.id, body)
	if err != nil {
		return nil, err
	}

	cards := doc.Find(nieruchomosciCardSelector)
	if cards.Length() == 0 {
		if strings.Contains(doc.Find("body").Text(), nieruchomosciNoResultsText) {
			return &ParseResult{NoResults: true}, nil
		}
		return nil, &ParseError{SourceID: s.id, Page: true, Reason: "no listing cards and no empty-result banner"}
	}

	result := &ParseResult{}
	cards.Each(func(_ int, card *goquery.Selection) {
		name := card.Find(nieruchomosciNameSelector).First()
		href, _ := name.Find("a").First().Attr("href")
		link := identity.CanonicalLink(href, nieruchomosciHost)
		if link == "" {
			result.Skipped++
			return
		}

		priceLine := card.Find(nieruchomosciPriceSelector).First()
		location := strings.ReplaceAll(text(card.Find(nieruchomosciLocationSelector).First()), "\n", " ")

		result.Listings = append(result.Listings, models.Listing{
			SourceID: s.id,
			Link:     link,
			Title:    text(name),
			Price:    text(priceLine.Find("span").First()),
			Area:     text(priceLine.Find("span.area").First()),
			Location: location,
		})
	})

	return result, nil
}
