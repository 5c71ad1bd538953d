package labels

import "github.com/JoelleM-design/veeni-app-sub002/internal/models"

// Score weights. The score gates the costlier enrichment stages; it is not a
// calibrated probability.
const (
	BaseConfidence   = 50
	appellationBonus = 30
	vintageBonus     = 10
	nameBonus        = 10
	producerBonus    = 10
	wineTypeBonus    = 5
	maxConfidence    = 100
)

// Score computes the additive confidence of w, capped at 100.
//
//	base 50
//	+30 appellation resolved
//	+10 vintage resolved
//	+10 name resolved with at least 4 letters
//	+10 producer resolved
//	+5  wine type matched by keyword
func Score(w models.ParsedWine) int {
	score := BaseConfidence

	if w.HasField(models.FieldAppellation) {
		score += appellationBonus
	}
	if w.HasField(models.FieldVintage) {
		score += vintageBonus
	}
	if w.HasField(models.FieldName) && letterCount(w.Name) >= minNameLetters {
		score += nameBonus
	}
	if w.HasField(models.FieldProducer) {
		score += producerBonus
	}
	if w.HasField(models.FieldWineType) {
		score += wineTypeBonus
	}

	if score > maxConfidence {
		score = maxConfidence
	}
	return score
}

// Assess fills Confidence and UncertainFields of w.
func Assess(w *models.ParsedWine) {
	w.Confidence = Score(*w)
	w.UncertainFields = w.MissingFields()
}
