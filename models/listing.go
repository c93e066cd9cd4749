package models

// Listing is one normalized offer. Link is the identity key inside a source.
// Optional fields are nil when the source or the card does not carry them.
type Listing struct {
	SourceID    string  `json:"source_id"`
	Link        string  `json:"link"`
	Title       string  `json:"title"`
	Price       string  `json:"price"`
	Location    string  `json:"location"`
	Area        string  `json:"area"`
	RoomCount   *string `json:"room_count,omitempty"`
	Floor       *string `json:"floor,omitempty"`
	UpdatedDate *string `json:"updated_date,omitempty"`
}

// Links returns the identity keys in order.
func Links(listings []Listing) []string {
	links := make([]string, len(listings))
	for i, l := range listings {
		links[i] = l.Link
	}
	return links
}
