package ai

import (
	"fmt"
	"strings"

	"github.com/JoelleM-design/veeni-app-sub002/internal/models"
)

const systemPrompt = `You are a sommelier reading text recognized from a photographed wine label.
The text is noisy: letters may be misread, lines may be split or merged, and back-label
prose may be mixed in. Identify the wine. Answer with a single JSON object and nothing else.`

// BuildPrompt renders the user prompt: the label text, the fields the local
// parser already resolved and the fields still missing.
func BuildPrompt(ocrText string, current models.ParsedWine, missing []string) string {
	var known strings.Builder
	for _, f := range models.StructuralFields {
		if !current.HasField(f) {
			continue
		}
		fmt.Fprintf(&known, "- %s: %s\n", f, fieldValue(current, f))
	}
	if known.Len() == 0 {
		known.WriteString("- none\n")
	}

	if len(missing) == 0 {
		missing = current.MissingFields()
	}

	return fmt.Sprintf(`Label text:
"""
%s
"""

Already resolved from the label:
%s
Still missing: %s

Return JSON with exactly these keys:
{
  "name": "cuvée or wine name, without producer or vintage",
  "producer": "domaine, château or winery",
  "year": vintage as a number,
  "grapeVariety": ["grape", "..."],
  "wineType": "red | white | rosé | sparkling",
  "region": "wine region",
  "appellation": "legal appellation as printed",
  "confidence": "high | medium | low"
}

Rules:
1. Leave a value empty ("" or [] or 0) when the label does not support it. Never guess.
2. Keep the resolved values unless the label text clearly contradicts them.
3. Focus on the missing fields.
4. "confidence" rates the whole answer: high only when the label names the wine unambiguously.`,
		strings.TrimSpace(ocrText), known.String(), strings.Join(missing, ", "))
}

func fieldValue(w models.ParsedWine, field string) string {
	switch field {
	case models.FieldName:
		return w.Name
	case models.FieldProducer:
		return w.Producer
	case models.FieldVintage:
		return fmt.Sprint(w.Vintage)
	case models.FieldWineType:
		return string(w.WineType)
	case models.FieldRegion:
		return w.Region
	case models.FieldAppellation:
		return w.Appellation
	case models.FieldCountry:
		return w.Country
	case models.FieldGrapes:
		return strings.Join(w.GrapeVarieties, ", ")
	default:
		return ""
	}
}
