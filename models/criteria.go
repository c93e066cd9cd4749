package models

import (
	"errors"
	"fmt"
	"sort"
)

// Room is a room-count bucket. RoomsFourPlus stands for "4 or more".
type Room int

const (
	RoomsOne      Room = 1
	RoomsTwo      Room = 2
	RoomsThree    Room = 3
	RoomsFourPlus Room = 4
)

type OfferType string

const (
	OfferRent OfferType = "rent"
	OfferSale OfferType = "sale"
)

var ErrInvalidCriteria = errors.New("invalid criteria")

// Place is a resolved city.
type Place struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"` // display name, e.g. "Kraków"
	Slug string `json:"slug" yaml:"slug"` // url form, e.g. "krakow"
}

// Criteria is an immutable snapshot of one user's search filter.
type Criteria struct {
	MinPrice         int       `json:"min_price"`
	MaxPrice         int       `json:"max_price"`
	AreaMin          int       `json:"area_min"`
	AreaMax          int       `json:"area_max"`
	Rooms            []Room    `json:"rooms"`
	OfferType        OfferType `json:"offer_type"`
	OwnerType        string    `json:"owner_type"`
	ViewType         string    `json:"view_type"`
	Limit            int       `json:"limit"`
	SortBy           string    `json:"sort_by"`
	SortDirection    string    `json:"sort_direction"`
	DaysSinceCreated int       `json:"days_since_created"`
	Region           string    `json:"region"`
	City             Place     `json:"city"`
}

func DefaultCriteria() Criteria {
	return Criteria{
		MinPrice:         0,
		MaxPrice:         1000000,
		AreaMin:          0,
		AreaMax:          1000,
		Rooms:            []Room{RoomsOne, RoomsTwo, RoomsThree, RoomsFourPlus},
		OfferType:        OfferRent,
		OwnerType:        "ALL",
		ViewType:         "listing",
		Limit:            36,
		SortBy:           "DEFAULT",
		SortDirection:    "DESC",
		DaysSinceCreated: 1,
		Region:           "Mazowieckie",
		City:             Place{ID: "20571", Name: "Warszawa", Slug: "warszawa"},
	}
}

// SortedRooms returns the selected buckets ascending with duplicates removed.
func (c Criteria) SortedRooms() []Room {
	seen := make(map[Room]bool, len(c.Rooms))
	rooms := make([]Room, 0, len(c.Rooms))
	for _, r := range c.Rooms {
		if seen[r] {
			continue
		}
		seen[r] = true
		rooms = append(rooms, r)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i] < rooms[j] })
	return rooms
}

// Validate checks the invariants the engine relies on. It is applied where
// criteria enter the system, never inside a tick.
func (c Criteria) Validate() error {
	if c.MinPrice < 0 || c.MinPrice > c.MaxPrice {
		return fmt.Errorf("%w: price range %d-%d", ErrInvalidCriteria, c.MinPrice, c.MaxPrice)
	}
	if c.AreaMin < 0 || c.AreaMin > c.AreaMax {
		return fmt.Errorf("%w: area range %d-%d", ErrInvalidCriteria, c.AreaMin, c.AreaMax)
	}
	if len(c.Rooms) == 0 {
		return fmt.Errorf("%w: no rooms selected", ErrInvalidCriteria)
	}
	for _, r := range c.Rooms {
		if r < RoomsOne || r > RoomsFourPlus {
			return fmt.Errorf("%w: room bucket %d", ErrInvalidCriteria, r)
		}
	}
	if c.OfferType != OfferRent && c.OfferType != OfferSale {
		return fmt.Errorf("%w: offer type %q", ErrInvalidCriteria, c.OfferType)
	}
	if c.City.Slug == "" || c.City.Name == "" {
		return fmt.Errorf("%w: city not resolved", ErrInvalidCriteria)
	}
	return nil
}
