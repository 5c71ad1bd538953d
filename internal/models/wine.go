package models

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel values for fields the parser could not determine.
const (
	UnknownProducer = "unknown producer"
	UnnamedWine     = "unnamed wine"
)

// Structural field names, as reported in UncertainFields and accepted as
// missing fields by the enrichment stages.
const (
	FieldName        = "name"
	FieldProducer    = "producer"
	FieldVintage     = "vintage"
	FieldWineType    = "wineType"
	FieldRegion      = "region"
	FieldAppellation = "appellation"
	FieldCountry     = "country"
	FieldGrapes      = "grapeVarieties"
)

// StructuralFields lists every field tracked for uncertainty, in record order.
var StructuralFields = []string{
	FieldName,
	FieldProducer,
	FieldVintage,
	FieldWineType,
	FieldRegion,
	FieldAppellation,
	FieldCountry,
	FieldGrapes,
}

// WineType is the color/style of a wine. WineTypeUnknown means no keyword
// matched, which is distinct from a detected red.
type WineType string

const (
	WineTypeRed       WineType = "red"
	WineTypeWhite     WineType = "white"
	WineTypeRose      WineType = "rosé"
	WineTypeSparkling WineType = "sparkling"
	WineTypeUnknown   WineType = "unknown"
)

// ParseWineType maps free text ("Rouge", "rose", "sparkling") to a WineType.
func ParseWineType(s string) WineType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red", "rouge", "rosso", "tinto":
		return WineTypeRed
	case "white", "blanc", "bianco", "blanco":
		return WineTypeWhite
	case "rosé", "rose", "rosado", "rosato":
		return WineTypeRose
	case "sparkling", "effervescent", "champagne", "crémant", "cremant":
		return WineTypeSparkling
	default:
		return WineTypeUnknown
	}
}

// ConfidenceTag is the coarse self-reported confidence of the AI stage.
type ConfidenceTag string

const (
	ConfidenceHigh   ConfidenceTag = "high"
	ConfidenceMedium ConfidenceTag = "medium"
	ConfidenceLow    ConfidenceTag = "low"
)

// ParseConfidenceTag returns ConfidenceLow for anything it does not recognise.
func ParseConfidenceTag(s string) ConfidenceTag {
	switch tag := ConfidenceTag(strings.ToLower(strings.TrimSpace(s))); tag {
	case ConfidenceHigh, ConfidenceMedium:
		return tag
	default:
		return ConfidenceLow
	}
}

// ParsedWine is the structured result of interpreting one label capture.
type ParsedWine struct {
	Name           string          `json:"name"`
	Producer       string          `json:"producer"`
	Vintage        int             `json:"vintage"` // 0 when unresolved
	WineType       WineType        `json:"wineType"`
	Region         string          `json:"region"`
	Appellation    string          `json:"appellation"`
	Country        string          `json:"country"`
	GrapeVarieties []string        `json:"grapeVarieties"`
	Price          decimal.Decimal `json:"price,omitzero"`
	Rating         float64         `json:"rating,omitempty"`

	Confidence           int           `json:"confidence"` // 0-100
	UncertainFields      []string      `json:"uncertainFields"`
	EnrichedBy           []string      `json:"enrichedBy,omitempty"`
	EnrichmentConfidence ConfidenceTag `json:"enrichmentConfidence,omitempty"`

	RawText string `json:"rawText"`
}

// NewParsedWine returns a record with every field at its sentinel default.
func NewParsedWine(rawText string) ParsedWine {
	return ParsedWine{
		Name:           UnnamedWine,
		Producer:       UnknownProducer,
		WineType:       WineTypeUnknown,
		GrapeVarieties: []string{},
		RawText:        rawText,
	}
}

// Clone returns a deep copy.
func (w ParsedWine) Clone() ParsedWine {
	w.GrapeVarieties = slices.Clone(w.GrapeVarieties)
	if w.GrapeVarieties == nil {
		w.GrapeVarieties = []string{}
	}
	w.UncertainFields = slices.Clone(w.UncertainFields)
	w.EnrichedBy = slices.Clone(w.EnrichedBy)
	return w
}

// HasField reports whether field holds a real value rather than its default.
func (w ParsedWine) HasField(field string) bool {
	switch field {
	case FieldName:
		return w.Name != "" && w.Name != UnnamedWine
	case FieldProducer:
		return w.Producer != "" && w.Producer != UnknownProducer
	case FieldVintage:
		return w.Vintage != 0
	case FieldWineType:
		return w.WineType != "" && w.WineType != WineTypeUnknown
	case FieldRegion:
		return w.Region != ""
	case FieldAppellation:
		return w.Appellation != ""
	case FieldCountry:
		return w.Country != ""
	case FieldGrapes:
		return len(w.GrapeVarieties) > 0
	default:
		return false
	}
}

// MissingFields returns the structural fields still at their default.
func (w ParsedWine) MissingFields() []string {
	missing := make([]string, 0, len(StructuralFields))
	for _, f := range StructuralFields {
		if !w.HasField(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// UnknownFields returns the entries of fields that are not structural field
// names.
func UnknownFields(fields []string) []string {
	var bad []string
	for _, f := range fields {
		if !slices.Contains(StructuralFields, f) {
			bad = append(bad, f)
		}
	}
	return bad
}

// MarkEnriched records a stage name in EnrichedBy once.
func (w *ParsedWine) MarkEnriched(stage string) {
	if !slices.Contains(w.EnrichedBy, stage) {
		w.EnrichedBy = append(w.EnrichedBy, stage)
	}
}

// ValidYear reports whether y is a plausible vintage for enrichment data.
func ValidYear(y int) bool {
	return y >= 1900 && y <= time.Now().Year()+2
}

// AppellationEntry maps a legally defined appellation to its region and country.
type AppellationEntry struct {
	Name    string `yaml:"name" json:"name"`
	Region  string `yaml:"region" json:"region"`
	Country string `yaml:"country" json:"country"`
}

// DatasetEntry is one record of the external wine dataset.
type DatasetEntry struct {
	Name     string          `yaml:"name" json:"name"`
	Year     int             `yaml:"year" json:"year"`
	Region   string          `yaml:"region" json:"region"`
	Producer string          `yaml:"producer" json:"producer"`
	Grapes   []string        `yaml:"grapes" json:"grapes"`
	Country  string          `yaml:"country" json:"country"`
	Price    decimal.Decimal `yaml:"price" json:"price"`
	Rating   float64         `yaml:"rating" json:"rating"`
}
