package models

import (
	"slices"
	"strings"
	"sync"
)

// EnrichmentRequest is the body sent to the remote enrichment capability.
type EnrichmentRequest struct {
	OCRText        string     `json:"ocrText"`
	CurrentParsing ParsedWine `json:"currentParsing"`
	MissingFields  []string   `json:"missingFields"`
}

// EnrichmentData is the structured guess returned by the AI stage.
type EnrichmentData struct {
	Name         string        `json:"name"`
	Producer     string        `json:"producer"`
	Year         int           `json:"year,omitempty"`
	GrapeVariety []string      `json:"grapeVariety"`
	WineType     string        `json:"wineType"`
	Region       string        `json:"region"`
	Appellation  string        `json:"appellation"`
	Confidence   ConfidenceTag `json:"confidence"`
}

// EnrichmentResponse is the envelope returned by the remote enrichment capability.
type EnrichmentResponse struct {
	Success  bool            `json:"success"`
	Data     *EnrichmentData `json:"data,omitempty"`
	Error    string          `json:"error,omitempty"`
	Fallback bool            `json:"fallback,omitempty"` // completion was unparsable, data echoes the input
}

// DataFromParsed converts the resolved fields of w into an EnrichmentData,
// leaving defaults blank.
func DataFromParsed(w ParsedWine, confidence ConfidenceTag) EnrichmentData {
	d := EnrichmentData{
		GrapeVariety: slices.Clone(w.GrapeVarieties),
		Region:       w.Region,
		Appellation:  w.Appellation,
		Confidence:   confidence,
	}
	if d.GrapeVariety == nil {
		d.GrapeVariety = []string{}
	}
	if w.HasField(FieldName) {
		d.Name = w.Name
	}
	if w.HasField(FieldProducer) {
		d.Producer = w.Producer
	}
	if w.HasField(FieldVintage) {
		d.Year = w.Vintage
	}
	if w.HasField(FieldWineType) {
		d.WineType = string(w.WineType)
	}
	return d
}

// MergeEnrichment copies guessed values into w. A field is written when the
// guess has a value and the field is either absent or explicitly listed in
// override. It returns the merged record and whether anything changed.
func MergeEnrichment(w ParsedWine, d EnrichmentData, override []string) (ParsedWine, bool) {
	w = w.Clone()
	changed := false
	writable := func(field string) bool {
		return !w.HasField(field) || slices.Contains(override, field)
	}
	setString := func(field string, dst *string, v string) {
		v = strings.TrimSpace(v)
		if IsPlaceholder(v) || v == *dst || !writable(field) {
			return
		}
		*dst = v
		changed = true
	}

	setString(FieldName, &w.Name, d.Name)
	setString(FieldProducer, &w.Producer, d.Producer)
	setString(FieldRegion, &w.Region, d.Region)
	setString(FieldAppellation, &w.Appellation, d.Appellation)

	if ValidYear(d.Year) && d.Year != w.Vintage && writable(FieldVintage) {
		w.Vintage = d.Year
		changed = true
	}
	if t := ParseWineType(d.WineType); t != WineTypeUnknown && t != w.WineType && writable(FieldWineType) {
		w.WineType = t
		changed = true
	}
	if grapes := cleanList(d.GrapeVariety); len(grapes) > 0 && !slices.Equal(grapes, w.GrapeVarieties) && writable(FieldGrapes) {
		w.GrapeVarieties = grapes
		changed = true
	}

	if changed {
		w.UncertainFields = w.MissingFields()
	}
	return w, changed
}

// IsPlaceholder reports whether a guessed value carries no information:
// blank, a "none"/"unknown" style marker, or one of the record sentinels.
func IsPlaceholder(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "null", "n/a", "unknown", "none", "-", UnknownProducer, UnnamedWine:
		return true
	}
	return false
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if !IsPlaceholder(s) && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// Record holds one ParsedWine that several enrichment calls may update.
// Every update is applied as a single step under the lock.
type Record struct {
	mu   sync.Mutex
	wine ParsedWine
}

// NewRecord wraps w.
func NewRecord(w ParsedWine) *Record {
	return &Record{wine: w.Clone()}
}

// Snapshot returns a copy of the current state.
func (r *Record) Snapshot() ParsedWine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wine.Clone()
}

// Update replaces the record with fn's result; fn runs with the lock held
// and receives a copy of the current state.
func (r *Record) Update(fn func(ParsedWine) ParsedWine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wine = fn(r.wine.Clone())
}
