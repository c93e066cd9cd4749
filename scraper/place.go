package scraper

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ł has no Unicode decomposition, so the letters are mapped explicitly.
var polishFolder = strings.NewReplacer(
	"ą", "a", "ć", "c", "ę", "e", "ł", "l", "ń", "n",
	"ó", "o", "ś", "s", "ź", "z", "ż", "z",
)

// RegionSlug turns "Małopolskie" into "malopolskie".
func RegionSlug(region string) string {
	lower := cases.Lower(language.Polish).String(strings.TrimSpace(region))
	return polishFolder.Replace(lower)
}
