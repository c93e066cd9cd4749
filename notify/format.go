package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"rentwatch/models"
)

// FormatListing renders one new listing. Optional fields only appear when
// the source provided them.
func FormatListing(siteName string, l models.Listing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New offer found on %s!\n", siteName)
	fmt.Fprintf(&b, "Title: %s\n", l.Title)
	fmt.Fprintf(&b, "Price: %s\n", l.Price)
	fmt.Fprintf(&b, "Location: %s\n", l.Location)
	if l.UpdatedDate != nil {
		fmt.Fprintf(&b, "Updated: %s\n", *l.UpdatedDate)
	}
	fmt.Fprintf(&b, "Area: %s\n", l.Area)
	if l.RoomCount != nil {
		fmt.Fprintf(&b, "Rooms: %s\n", *l.RoomCount)
	}
	if l.Floor != nil {
		fmt.Fprintf(&b, "Floor: %s\n", *l.Floor)
	}
	fmt.Fprintf(&b, "Link: %s\n", l.Link)
	return b.String()
}

// FormatCriteria renders a user's current filter.
func FormatCriteria(c models.Criteria) string {
	rooms := c.SortedRooms()
	labels := make([]string, len(rooms))
	for i, r := range rooms {
		labels[i] = strconv.Itoa(int(r))
	}

	var b strings.Builder
	b.WriteString("Current filters:\n")
	fmt.Fprintf(&b, "Price range: %d PLN - %d PLN\n", c.MinPrice, c.MaxPrice)
	fmt.Fprintf(&b, "Area range: %d m² - %d m²\n", c.AreaMin, c.AreaMax)
	fmt.Fprintf(&b, "Rooms: %s\n", strings.Join(labels, ", "))
	fmt.Fprintf(&b, "Offer type: %s", c.OfferType)
	return b.String()
}

type SourceLink struct {
	Name string
	URL  string
}

func FormatSources(sources []SourceLink) string {
	lines := make([]string, len(sources))
	for i, s := range sources {
		lines[i] = s.Name + ": " + s.URL
	}
	return "Here are the available offer sources:\n\n" + strings.Join(lines, "\n")
}

func StartedText(interval time.Duration) string {
	return fmt.Sprintf("I'll start checking for new offers every %s.", humanInterval(interval))
}

const (
	AlreadyRunningText = "I'm already checking for new offers."
	StoppedText        = "I've stopped checking for new offers."
	NotRunningText     = "I'm not checking for new offers right now."
)

func humanInterval(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
