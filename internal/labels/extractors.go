package labels

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/JoelleM-design/veeni-app-sub002/internal/models"
)

// reVintage is the fixed vintage window 1980-2039.
var reVintage = regexp.MustCompile(`\b(19[89]\d|20[0-3]\d)\b`)

// reVolume matches bottle size and alcohol lines (75 cl, 750 ML, 13.5% vol).
var reVolume = regexp.MustCompile(`(?i)^[\d\s.,]+\s*(%|ML|CL|L)(\s*(VOL|ALC)\.?)?$|\b\d+([.,]\d+)?\s*%\s*(VOL|ALC)`)

// minNameLetters is the number of letters a name needs to earn the name bonus.
const minNameLetters = 4

// ExtractVintage returns the first year in the 1980-2039 window.
func ExtractVintage(text string) (int, bool) {
	m := reVintage.FindString(text)
	if m == "" {
		return 0, false
	}
	year, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return year, true
}

// ExtractWineType scans keyword groups in priority order (sparkling, white,
// rosé, red). It returns WineTypeUnknown when no keyword is present.
func ExtractWineType(folded string, d *Dictionaries) models.WineType {
	for _, g := range d.types {
		for _, k := range g.keys {
			if containsWord(folded, k) {
				return g.wineType
			}
		}
	}
	return models.WineTypeUnknown
}

// ExtractGrapes returns every dictionary grape found in the text, in
// dictionary order.
func ExtractGrapes(folded string, d *Dictionaries) []string {
	grapes := []string{}
	for _, g := range d.grapes {
		if strings.Contains(folded, g.key) {
			grapes = append(grapes, g.display)
		}
	}
	return grapes
}

// HasAppellationMarker reports whether the text carries an appellation
// keyword such as APPELLATION, AOC or CONTRÔLÉE.
func HasAppellationMarker(folded string, d *Dictionaries) bool {
	for _, m := range d.markers {
		if containsWord(folded, m) {
			return true
		}
	}
	return false
}

// ExtractAppellation returns the first appellation table entry found in the
// text. Without an appellation marker nothing is reported, even when a known
// appellation name is present.
func ExtractAppellation(folded string, d *Dictionaries) (models.AppellationEntry, bool) {
	if !HasAppellationMarker(folded, d) {
		return models.AppellationEntry{}, false
	}
	for _, a := range d.appellations {
		for _, k := range a.keys {
			if containsWord(folded, k) {
				return a.entry, true
			}
		}
	}
	return models.AppellationEntry{}, false
}

// ExtractProducer returns the first line naming a domaine, château, clos or
// maison, or the unknown-producer sentinel.
func ExtractProducer(lines []string, d *Dictionaries) (string, bool) {
	for _, line := range lines {
		folded := Fold(line)
		for _, m := range d.producerMarkers {
			if containsWord(folded, m) {
				return line, true
			}
		}
	}
	return models.UnknownProducer, false
}

// NameExclusions are the values already claimed by other extractors; lines
// equal to one of them are not name candidates.
type NameExclusions struct {
	Producer    string
	Vintage     int
	Region      string
	Appellation string
	Country     string
}

// ExtractName returns the longest line that is not the producer, the year,
// the region/appellation/country, a wine-type keyword, an appellation
// statement or a volume/alcohol mention. The unnamed-wine sentinel is
// returned when no line qualifies.
func ExtractName(lines []string, ex NameExclusions, d *Dictionaries) (string, bool) {
	claimed := map[string]bool{}
	for _, v := range []string{ex.Producer, ex.Region, ex.Appellation, ex.Country} {
		if k := Fold(v); k != "" {
			claimed[k] = true
		}
	}
	if ex.Vintage != 0 {
		claimed[strconv.Itoa(ex.Vintage)] = true
	}

	best, bestLen := "", 0
	for _, line := range lines {
		folded := Fold(line)
		switch {
		case folded == "" || claimed[folded]:
			continue
		case ex.Producer != "" && line == ex.Producer:
			continue
		case d.isTypeKeyword(folded):
			continue
		case HasAppellationMarker(folded, d):
			continue
		case reVolume.MatchString(line):
			continue
		case letterCount(line) == 0:
			continue
		}
		if n := utf8.RuneCountInString(line); n > bestLen {
			best, bestLen = line, n
		}
	}
	if best == "" {
		return models.UnnamedWine, false
	}
	return best, true
}

func letterCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}
