// Package dataset backfills parsed wines from a static reference table of
// known wines.
package dataset

import (
	"strings"

	"github.com/JoelleM-design/veeni-app-sub002/internal/labels"
	"github.com/JoelleM-design/veeni-app-sub002/internal/models"
)

// StageName is recorded in ParsedWine.EnrichedBy when the dataset adds data.
const StageName = "dataset"

type entry struct {
	models.DatasetEntry
	key string
}

// Dataset is a read-only, in-memory wine table. Lookups are linear scans in
// load order; the first match wins. Safe for concurrent use.
type Dataset struct {
	entries []entry
}

// New builds a dataset from entries. Entries without a name are skipped and
// implausible years are cleared.
func New(entries []models.DatasetEntry) *Dataset {
	d := &Dataset{entries: make([]entry, 0, len(entries))}
	for _, e := range entries {
		key := labels.Fold(e.Name)
		if key == "" {
			continue
		}
		if e.Year != 0 && !models.ValidYear(e.Year) {
			e.Year = 0
		}
		d.entries = append(d.entries, entry{DatasetEntry: e, key: key})
	}
	return d
}

// Len returns the number of usable entries.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

// Find returns the first entry whose name contains, or is contained in, name
// (accent and case insensitive). When both year and the entry year are
// known they must be equal.
func (d *Dataset) Find(name string, year int) (models.DatasetEntry, bool) {
	if d == nil {
		return models.DatasetEntry{}, false
	}
	key := labels.Fold(name)
	if key == "" {
		return models.DatasetEntry{}, false
	}
	for _, e := range d.entries {
		if !strings.Contains(key, e.key) && !strings.Contains(e.key, key) {
			continue
		}
		if year != 0 && e.Year != 0 && year != e.Year {
			continue
		}
		return e.DatasetEntry, true
	}
	return models.DatasetEntry{}, false
}

// Enrich copies region, producer, grapes, country, price and rating from the
// first matching entry into the fields w has not set. Fields already present
// are never touched, so Enrich(Enrich(w)) == Enrich(w). A wine without a
// resolved name is returned unchanged.
func (d *Dataset) Enrich(w models.ParsedWine) models.ParsedWine {
	if !w.HasField(models.FieldName) {
		return w
	}
	e, ok := d.Find(w.Name, w.Vintage)
	if !ok {
		return w
	}

	out := w.Clone()
	changed := false
	if !out.HasField(models.FieldRegion) && e.Region != "" {
		out.Region = e.Region
		changed = true
	}
	if !out.HasField(models.FieldProducer) && strings.TrimSpace(e.Producer) != "" {
		out.Producer = strings.TrimSpace(e.Producer)
		changed = true
	}
	if !out.HasField(models.FieldGrapes) && len(e.Grapes) > 0 {
		out.GrapeVarieties = append([]string{}, e.Grapes...)
		changed = true
	}
	if !out.HasField(models.FieldCountry) && e.Country != "" {
		out.Country = e.Country
		changed = true
	}
	if out.Price.IsZero() && e.Price.IsPositive() {
		out.Price = e.Price
		changed = true
	}
	if out.Rating == 0 && e.Rating > 0 {
		out.Rating = e.Rating
		changed = true
	}
	if !changed {
		return w
	}

	out.MarkEnriched(StageName)
	labels.Assess(&out)
	return out
}
