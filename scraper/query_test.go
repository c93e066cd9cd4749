package scraper

import (
	"testing"

	"rentwatch/config"
	"rentwatch/models"
)

func criteriaWithRooms(rooms ...models.Room) models.Criteria {
	c := models.DefaultCriteria()
	c.Rooms = rooms
	return c
}

func krakowSale() models.Criteria {
	c := models.DefaultCriteria()
	c.OfferType = models.OfferSale
	c.Region = "Małopolskie"
	c.City = models.Place{ID: "1", Name: "Kraków", Slug: "krakow"}
	c.MinPrice = 300000
	c.MaxPrice = 900000
	c.AreaMin = 30
	c.AreaMax = 80
	c.Rooms = []models.Room{models.RoomsThree, models.RoomsOne}
	return c
}

func TestOtodomRooms_TwoAndThree(t *testing.T) {
	got := OtodomRooms([]models.Room{models.RoomsTwo, models.RoomsThree})
	if got != "%5BTWO%2CTHREE%5D" {
		t.Fatalf("unexpected rooms encoding %s", got)
	}
}

func TestOtodomRooms_FourPlusExpands(t *testing.T) {
	got := OtodomRooms([]models.Room{models.RoomsOne, models.RoomsFourPlus})
	if got != "%5BONE%2CFOUR%2CFIVE%2CSIX_OR_MORE%5D" {
		t.Fatalf("unexpected rooms encoding %s", got)
	}
}

func TestOtodomBuildQuery_Default(t *testing.T) {
	src := NewOtodomSource("", "")
	got := src.BuildQuery(criteriaWithRooms(models.RoomsThree, models.RoomsTwo))
	want := "https://www.otodom.pl/pl/wyniki/wynajem/mieszkanie/mazowieckie/warszawa/warszawa/warszawa?" +
		"ownerTypeSingleSelect=ALL&viewType=listing&limit=36&priceMin=0&priceMax=1000000&areaMin=0&areaMax=1000" +
		"&roomsNumber=%5BTWO%2CTHREE%5D&by=DEFAULT&direction=DESC"
	if got != want {
		t.Fatalf("unexpected url\n got: %s\nwant: %s", got, want)
	}
}

func TestOtodomBuildQuery_CityRegionAndSale(t *testing.T) {
	src := NewOtodomSource("", "")
	got := src.BuildQuery(krakowSale())
	want := "https://www.otodom.pl/pl/wyniki/sprzedaz/mieszkanie/malopolskie/krakow/krakow/krakow?" +
		"ownerTypeSingleSelect=ALL&viewType=listing&limit=36&priceMin=300000&priceMax=900000&areaMin=30&areaMax=80" +
		"&roomsNumber=%5BONE%2CTHREE%5D&by=DEFAULT&direction=DESC"
	if got != want {
		t.Fatalf("unexpected url\n got: %s\nwant: %s", got, want)
	}
}

func TestOLXRooms_OneAndFour(t *testing.T) {
	got := OLXRooms([]models.Room{models.RoomsOne, models.RoomsFourPlus})
	want := "search%5Bfilter_enum_rooms%5D%5B0%5D=one&search%5Bfilter_enum_rooms%5D%5B3%5D=four&"
	if got != want {
		t.Fatalf("unexpected rooms encoding\n got: %s\nwant: %s", got, want)
	}
}

func TestOLXBuildQuery_Default(t *testing.T) {
	src := NewOLXSource("", "")
	got := src.BuildQuery(criteriaWithRooms(models.RoomsFourPlus, models.RoomsOne))
	want := "https://www.olx.pl/nieruchomosci/mieszkania/wynajem/warszawa/?" +
		"search%5Border%5D=created_at:desc&search%5Bfilter_float_price:from%5D=0&search%5Bfilter_float_price:to%5D=1000000" +
		"&search%5Bfilter_float_m:from%5D=0&search%5Bfilter_float_m:to%5D=1000&" +
		"search%5Bfilter_enum_rooms%5D%5B0%5D=one&search%5Bfilter_enum_rooms%5D%5B3%5D=four&"
	if got != want {
		t.Fatalf("unexpected url\n got: %s\nwant: %s", got, want)
	}
}

func TestOLXBuildQuery_CityAndSale(t *testing.T) {
	src := NewOLXSource("", "")
	got := src.BuildQuery(krakowSale())
	want := "https://www.olx.pl/nieruchomosci/mieszkania/sprzedaz/krakow/?" +
		"search%5Border%5D=created_at:desc&search%5Bfilter_float_price:from%5D=300000&search%5Bfilter_float_price:to%5D=900000" +
		"&search%5Bfilter_float_m:from%5D=30&search%5Bfilter_float_m:to%5D=80&" +
		"search%5Bfilter_enum_rooms%5D%5B0%5D=one&search%5Bfilter_enum_rooms%5D%5B2%5D=three&"
	if got != want {
		t.Fatalf("unexpected url\n got: %s\nwant: %s", got, want)
	}
}

func TestNieruchomosciBuildQuery_Positional(t *testing.T) {
	src := NewNieruchomosciSource("", "")
	c := criteriaWithRooms(models.RoomsOne, models.RoomsFourPlus)
	c.MinPrice, c.MaxPrice = 1000, 2500
	c.AreaMin, c.AreaMax = 40, 70
	got := src.BuildQuery(c)
	want := "https://www.nieruchomosci-online.pl/szukaj.html?3,mieszkanie,wynajem,,Warszawa,,,,,1000-2500,40-70,,,,,,,1-4"
	if got != want {
		t.Fatalf("unexpected url\n got: %s\nwant: %s", got, want)
	}
}

func TestNieruchomosciBuildQuery_EscapedCityAndSale(t *testing.T) {
	src := NewNieruchomosciSource("", "")
	got := src.BuildQuery(krakowSale())
	want := "https://www.nieruchomosci-online.pl/szukaj.html?3,mieszkanie,sprzedaz,,Krak%C3%B3w,,,,,300000-900000,30-80,,,,,,,1-3"
	if got != want {
		t.Fatalf("unexpected url\n got: %s\nwant: %s", got, want)
	}
}

// The template holds a single range, so gaps in the selection are lost.
func TestNieruchomosciRoomRange_IsLossy(t *testing.T) {
	lo, hi := NieruchomosciRoomRange([]models.Room{models.RoomsOne, models.RoomsThree})
	if lo != 1 || hi != 3 {
		t.Fatalf("expected 1-3, got %d-%d", lo, hi)
	}
	lo, hi = NieruchomosciRoomRange([]models.Room{models.RoomsTwo})
	if lo != 2 || hi != 2 {
		t.Fatalf("expected 2-2, got %d-%d", lo, hi)
	}
}

func TestBuildQuery_IsDeterministic(t *testing.T) {
	c := krakowSale()
	for _, src := range []Source{NewOtodomSource("", ""), NewOLXSource("", ""), NewNieruchomosciSource("", "")} {
		if src.BuildQuery(c) != src.BuildQuery(c) {
			t.Fatalf("%s: query differs between calls", src.ID())
		}
	}
}

func TestRegionSlug(t *testing.T) {
	cases := map[string]string{
		"Mazowieckie":    "mazowieckie",
		"Łódzkie":        "lodzkie",
		"Świętokrzyskie": "swietokrzyskie",
		"Dolnośląskie":   "dolnoslaskie",
		" Małopolskie ":  "malopolskie",
	}
	for in, want := range cases {
		if got := RegionSlug(in); got != want {
			t.Fatalf("RegionSlug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewSource_UnknownHandler(t *testing.T) {
	if _, err := NewSource(&config.SiteConfig{ID: "x", Handler: "zillow"}); err == nil {
		t.Fatalf("expected error for unknown handler")
	}
	src, err := NewSource(&config.SiteConfig{ID: "olx", Handler: "olx"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.ID() != "olx" {
		t.Fatalf("expected id olx, got %s", src.ID())
	}
}
