package services

import "rentwatch/models"

// DefaultFirstPollCap bounds how many listings a user hears about the first
// time a source is polled for them.
const DefaultFirstPollCap = 5

// DiffResult is the outcome of comparing one page of listings against the
// last link the user was told about.
type DiffResult struct {
	New      []models.Listing
	Marker   string // link to store as the new last-seen, valid when Advanced
	Advanced bool
}

// Diff returns the prefix of listings (newest-first) that come before
// lastSeen. An empty lastSeen means the source was never polled, so only the
// first firstPollCap listings are reported. When lastSeen is not on the page
// every listing is new; the page has moved past it and no cap applies.
func Diff(listings []models.Listing, lastSeen string, firstPollCap int) DiffResult {
	var fresh []models.Listing

	if lastSeen == "" {
		if firstPollCap <= 0 {
			firstPollCap = DefaultFirstPollCap
		}
		fresh = listings
		if len(fresh) > firstPollCap {
			fresh = fresh[:firstPollCap]
		}
	} else {
		fresh = listings
		for i, l := range listings {
			if l.Link == lastSeen {
				fresh = listings[:i]
				break
			}
		}
	}

	if len(fresh) == 0 {
		return DiffResult{}
	}

	out := make([]models.Listing, len(fresh))
	copy(out, fresh)
	return DiffResult{New: out, Marker: out[0].Link, Advanced: true}
}
