// Package ai asks a language model for the wine fields the local parser
// could not resolve.
package ai

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JoelleM-design/veeni-app-sub002/internal/labels"
	"github.com/JoelleM-design/veeni-app-sub002/internal/models"
)

// EnrichmentClient is the remote enrichment contract. One call makes one
// request; there is no retry. A malformed completion is not an error: the
// response then echoes current with confidence low and Fallback set.
type EnrichmentClient interface {
	RequestEnrichment(ctx context.Context, rawText string, current models.ParsedWine, missingFields []string) (*models.EnrichmentResponse, error)
}

// Enricher implements EnrichmentClient on top of a Provider.
type Enricher struct {
	provider   Provider
	normalizer *labels.Normalizer
	log        *slog.Logger
}

// NewEnricher creates an enricher. A nil normalizer uses the default
// dictionaries' misread table.
func NewEnricher(provider Provider, normalizer *labels.Normalizer, logger *slog.Logger) *Enricher {
	if normalizer == nil {
		normalizer = labels.NewNormalizer(labels.DefaultDictionaries())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{provider: provider, normalizer: normalizer, log: logger}
}

// ProviderName returns the name of the underlying provider.
func (e *Enricher) ProviderName() string { return e.provider.Name() }

func (e *Enricher) RequestEnrichment(ctx context.Context, rawText string, current models.ParsedWine, missingFields []string) (*models.EnrichmentResponse, error) {
	rid := uuid.New().String()
	start := time.Now()

	text := e.normalizer.CorrectMisreads(rawText)
	prompt := BuildPrompt(text, current, missingFields)

	e.log.Info("ai.enrich.start",
		"req_id", rid,
		"provider", e.provider.Name(),
		"text_len", len(text),
		"missing", missingFields,
	)

	completion, err := e.provider.ExtractData(ctx, prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !isTransport(err) {
			err = transportError(e.provider.Name(), errors.Join(ctxErr, err))
		}
		e.log.Error("ai.enrich.provider_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	guess, err := ParseGuess(completion)
	if err != nil {
		e.log.Warn("ai.enrich.malformed",
			"req_id", rid, "error", err, "completion_len", len(completion),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return fallbackResponse(current), nil
	}

	e.log.Info("ai.enrich.ok",
		"req_id", rid,
		"confidence", guess.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &models.EnrichmentResponse{Success: true, Data: &guess}, nil
}

// fallbackResponse echoes the pre-call parsing with its confidence demoted.
func fallbackResponse(current models.ParsedWine) *models.EnrichmentResponse {
	data := models.DataFromParsed(current, models.ConfidenceLow)
	return &models.EnrichmentResponse{Success: true, Data: &data, Fallback: true}
}

func isTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
