// Package labels turns raw OCR text from a wine label into a ParsedWine using
// deterministic cleanup, dictionary matching and line heuristics.
package labels

import (
	"log/slog"

	"github.com/JoelleM-design/veeni-app-sub002/internal/models"
)

// Parser is the local, offline interpretation pass. It holds only read-only
// state and is safe for concurrent use.
type Parser struct {
	dict       *Dictionaries
	normalizer *Normalizer
	logger     *slog.Logger
}

// NewParser creates a parser over d; nil d selects DefaultDictionaries.
func NewParser(d *Dictionaries, logger *slog.Logger) *Parser {
	if d == nil {
		d = DefaultDictionaries()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		dict:       d,
		normalizer: NewNormalizer(d),
		logger:     logger,
	}
}

// Dictionaries returns the vocabularies the parser matches against.
func (p *Parser) Dictionaries() *Dictionaries { return p.dict }

// Normalizer returns the text normalizer built from the parser's dictionaries.
func (p *Parser) Normalizer() *Normalizer { return p.normalizer }

// Parse interprets raw OCR text. It never fails: anything it cannot
// determine is left at its sentinel default and listed in UncertainFields.
func (p *Parser) Parse(raw string) models.ParsedWine {
	w := models.NewParsedWine(raw)

	normalized := p.normalizer.Normalize(raw)
	folded := Fold(normalized)
	lines := p.normalizer.Lines(raw)

	if year, ok := ExtractVintage(normalized); ok {
		w.Vintage = year
	}
	w.WineType = ExtractWineType(folded, p.dict)
	w.GrapeVarieties = ExtractGrapes(folded, p.dict)
	if a, ok := ExtractAppellation(folded, p.dict); ok {
		w.Appellation = a.Name
		w.Region = a.Region
		w.Country = a.Country
	}

	producer, producerFound := ExtractProducer(lines, p.dict)
	w.Producer = producer

	ex := NameExclusions{
		Vintage:     w.Vintage,
		Region:      w.Region,
		Appellation: w.Appellation,
		Country:     w.Country,
	}
	if producerFound {
		ex.Producer = producer
	}
	w.Name, _ = ExtractName(lines, ex, p.dict)

	Assess(&w)

	p.logger.Debug("labels.parse.ok",
		"text_len", len(raw),
		"lines", len(lines),
		"confidence", w.Confidence,
		"uncertain", w.UncertainFields,
	)
	return w
}
