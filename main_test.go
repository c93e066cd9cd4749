package main

import (
	"errors"
	"testing"

	"rentwatch/models"
)

func TestMaskConnectionString(t *testing.T) {
	cases := map[string]string{
		"postgres://user:secret@db:5432/rentwatch": "postgres://user:****@db:5432/rentwatch",
		"postgres://db:5432/rentwatch":             "postgres://db:5432/rentwatch",
		"host=db user=x":                           "host=db user=x",
	}
	for in, want := range cases {
		if got := maskConnectionString(in); got != want {
			t.Fatalf("maskConnectionString(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseCriteria_OverlaysDefaults(t *testing.T) {
	c, err := parseCriteria(`{"max_price": 3200, "rooms": [2, 3]}`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if c.MaxPrice != 3200 || len(c.Rooms) != 2 {
		t.Fatalf("flag values not applied, got %+v", c)
	}
	if c.City.Slug != "warszawa" || c.OfferType != models.OfferRent {
		t.Fatalf("defaults lost, got %+v", c)
	}

	if _, err := parseCriteria(`{"min_price": 5000, "max_price": 100}`); !errors.Is(err, models.ErrInvalidCriteria) {
		t.Fatalf("expected invalid criteria, got %v", err)
	}
	if _, err := parseCriteria(`{"max_price":`); err == nil {
		t.Fatalf("expected decode error")
	}
}
