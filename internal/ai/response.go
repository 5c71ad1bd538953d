package ai

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/JoelleM-design/veeni-app-sub002/internal/models"
)

// ExtractJSONObject returns the first balanced {...} object in s. Braces
// inside JSON strings and escaped quotes are skipped, so prose or markdown
// around the object does not matter. An unclosed brace does not hide a
// balanced object opened after it. The scan is a single pass.
func ExtractJSONObject(s string) (string, bool) {
	first := strings.IndexByte(s, '{')
	if first < 0 {
		return "", false
	}

	var open []int
	bestStart, bestEnd := -1, -1
	inString, escaped := false, false
	for i := first; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			open = append(open, i)
		case '}':
			if len(open) == 0 {
				continue
			}
			start := open[len(open)-1]
			open = open[:len(open)-1]
			if len(open) == 0 {
				return s[start : i+1], true
			}
			// Closed objects nest, so the earliest start is the outermost.
			if bestStart < 0 || start < bestStart {
				bestStart, bestEnd = start, i
			}
		}
	}
	if bestStart < 0 {
		return "", false
	}
	return s[bestStart : bestEnd+1], true
}

// lenientGuess accepts the shapes models actually produce: years as numbers
// or strings, grapes as a list or a comma separated string, nulls anywhere.
type lenientGuess struct {
	Name         any `json:"name"`
	Producer     any `json:"producer"`
	Year         any `json:"year"`
	Vintage      any `json:"vintage"`
	GrapeVariety any `json:"grapeVariety"`
	Grapes       any `json:"grapeVarieties"`
	WineType     any `json:"wineType"`
	Region       any `json:"region"`
	Appellation  any `json:"appellation"`
	Confidence   any `json:"confidence"`
}

// ParseGuess extracts and decodes the enrichment guess from a raw
// completion. It returns an error wrapping ErrMalformedResponse when no JSON
// object can be decoded.
func ParseGuess(completion string) (models.EnrichmentData, error) {
	obj, ok := ExtractJSONObject(completion)
	if !ok {
		return models.EnrichmentData{}, fmt.Errorf("%w: no JSON object in completion", ErrMalformedResponse)
	}
	return DecodeGuess([]byte(obj))
}

// DecodeGuess decodes a single JSON object into EnrichmentData. Years outside
// the plausible range are dropped and unknown confidence tags become low.
func DecodeGuess(data []byte) (models.EnrichmentData, error) {
	var g lenientGuess
	if err := json.Unmarshal(data, &g); err != nil {
		return models.EnrichmentData{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	year := asInt(g.Year)
	if year == 0 {
		year = asInt(g.Vintage)
	}
	if !models.ValidYear(year) {
		year = 0
	}

	grapes := asList(g.GrapeVariety)
	if len(grapes) == 0 {
		grapes = asList(g.Grapes)
	}

	return models.EnrichmentData{
		Name:         asString(g.Name),
		Producer:     asString(g.Producer),
		Year:         year,
		GrapeVariety: grapes,
		WineType:     asString(g.WineType),
		Region:       asString(g.Region),
		Appellation:  asString(g.Appellation),
		Confidence:   models.ParseConfidenceTag(asString(g.Confidence)),
	}, nil
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		if models.IsPlaceholder(t) {
			return ""
		}
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func asInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func asList(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, s := range strings.Split(t, ",") {
			if s = asString(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
