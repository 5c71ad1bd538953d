// Package pipeline runs the label interpretation stages in order: local
// parse, dataset backfill, then AI enrichment for what is still missing.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/JoelleM-design/veeni-app-sub002/internal/ai"
	"github.com/JoelleM-design/veeni-app-sub002/internal/dataset"
	"github.com/JoelleM-design/veeni-app-sub002/internal/labels"
	"github.com/JoelleM-design/veeni-app-sub002/internal/models"
)

// StageAI is recorded in ParsedWine.EnrichedBy when the AI stage adds data.
const StageAI = "ai"

var (
	// ErrRateLimited means the AI call was skipped by the call-site limiter.
	ErrRateLimited = errors.New("ai enrichment rate limited")
	// ErrAIDisabled means no enrichment client is configured.
	ErrAIDisabled = errors.New("ai enrichment disabled")
)

// Observer receives stage outcomes, typically to feed metrics.
type Observer interface {
	ObserveParse(w models.ParsedWine)
	ObserveStage(stage, outcome string, elapsed time.Duration)
}

// Stage outcomes reported to the Observer.
const (
	OutcomeParsed      = "parsed"
	OutcomeMatched     = "matched"
	OutcomeNoMatch     = "no_match"
	OutcomeMerged      = "merged"
	OutcomeUnchanged   = "unchanged"
	OutcomeFallback    = "fallback"
	OutcomeCached      = "cached"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

// Options configures a Pipeline. The zero value runs the local parser only.
type Options struct {
	Dataset *dataset.Dataset
	Client  ai.EnrichmentClient

	// MinConfidence is the local score at or above which Process skips the
	// AI stage. Zero means always try while fields are missing.
	MinConfidence int

	// RequestsPerMinute caps AI calls; zero means unlimited.
	RequestsPerMinute int

	// CacheTTL keeps successful AI responses per text and field set; zero
	// disables caching.
	CacheTTL time.Duration

	// Timeout bounds one AI call; zero leaves it to the caller's context.
	Timeout time.Duration

	Observer Observer
	Logger   *slog.Logger
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	parser        *labels.Parser
	dataset       *dataset.Dataset
	client        ai.EnrichmentClient
	minConfidence int
	timeout       time.Duration
	limiter       *rate.Limiter
	cache         *cache.Cache
	observer      Observer
	log           *slog.Logger
}

// New creates a pipeline around parser; nil parser uses the default
// dictionaries.
func New(parser *labels.Parser, opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if parser == nil {
		parser = labels.NewParser(nil, opts.Logger)
	}
	p := &Pipeline{
		parser:        parser,
		dataset:       opts.Dataset,
		client:        opts.Client,
		minConfidence: opts.MinConfidence,
		timeout:       opts.Timeout,
		observer:      opts.Observer,
		log:           opts.Logger,
	}
	if opts.RequestsPerMinute > 0 {
		burst := max(1, opts.RequestsPerMinute/10)
		p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), burst)
	}
	if opts.CacheTTL > 0 {
		p.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return p
}

// Parser returns the local parser.
func (p *Pipeline) Parser() *labels.Parser { return p.parser }

// Dataset returns the configured dataset, possibly nil.
func (p *Pipeline) Dataset() *dataset.Dataset { return p.dataset }

// AIEnabled reports whether an enrichment client is configured.
func (p *Pipeline) AIEnabled() bool { return p.client != nil }

// Parse runs the local parser and the dataset stage only.
func (p *Pipeline) Parse(raw string) models.ParsedWine {
	start := time.Now()
	w := p.parser.Parse(raw)
	p.observeStage("local", OutcomeParsed, start)
	if p.observer != nil {
		p.observer.ObserveParse(w)
	}

	if p.dataset == nil || len(w.UncertainFields) == 0 {
		return w
	}
	start = time.Now()
	enriched := p.dataset.Enrich(w)
	if slices.Contains(enriched.EnrichedBy, dataset.StageName) {
		p.observeStage(dataset.StageName, OutcomeMatched, start)
	} else {
		p.observeStage(dataset.StageName, OutcomeNoMatch, start)
	}
	return enriched
}

// Process runs every stage. The returned wine is always usable; a non-nil
// error only reports that the AI stage was attempted and did not complete.
func (p *Pipeline) Process(ctx context.Context, raw string) (models.ParsedWine, error) {
	w := p.Parse(raw)
	if p.client == nil || len(w.UncertainFields) == 0 {
		return w, nil
	}
	if p.minConfidence > 0 && w.Confidence >= p.minConfidence {
		return w, nil
	}

	rec := models.NewRecord(w)
	err := p.EnrichRecord(ctx, rec)
	return rec.Snapshot(), err
}

// EnrichRecord asks the AI stage for every field rec is missing. Resolved
// fields are never overwritten.
func (p *Pipeline) EnrichRecord(ctx context.Context, rec *models.Record) error {
	return p.EnrichFields(ctx, rec, nil)
}

// EnrichFields asks the AI stage for fields. Fields listed explicitly may be
// overwritten by the answer; an empty list means every missing field, with
// no overwrite. The merge is applied to rec in one locked step; when the
// call fails or ctx ends first, rec is left untouched.
func (p *Pipeline) EnrichFields(ctx context.Context, rec *models.Record, fields []string) error {
	if p.client == nil {
		return ErrAIDisabled
	}

	snap := rec.Snapshot()
	requested, override := fields, fields
	if len(requested) == 0 {
		requested, override = snap.MissingFields(), nil
	}
	if len(requested) == 0 {
		return nil
	}

	start := time.Now()
	resp, err := p.request(ctx, snap, requested, override)
	if err != nil {
		outcome := OutcomeError
		if errors.Is(err, ErrRateLimited) {
			outcome = OutcomeRateLimited
		}
		p.observeStage(StageAI, outcome, start)
		p.log.Warn("pipeline.ai.skipped", "error", err, "fields", requested)
		return err
	}

	changed := false
	rec.Update(func(cur models.ParsedWine) models.ParsedWine {
		var merged models.ParsedWine
		merged, changed = p.merge(cur, *resp.Data, override)
		return merged
	})

	switch {
	case resp.Fallback:
		p.observeStage(StageAI, OutcomeFallback, start)
	case changed:
		p.observeStage(StageAI, OutcomeMerged, start)
	default:
		p.observeStage(StageAI, OutcomeUnchanged, start)
	}
	return nil
}

func (p *Pipeline) request(ctx context.Context, snap models.ParsedWine, requested, override []string) (*models.EnrichmentResponse, error) {
	key := cacheKey(snap.RawText, requested, override != nil)
	if p.cache != nil {
		if v, ok := p.cache.Get(key); ok {
			p.observeStage(StageAI, OutcomeCached, time.Now())
			return v.(*models.EnrichmentResponse), nil
		}
	}

	if p.limiter != nil && !p.limiter.Allow() {
		return nil, ErrRateLimited
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	resp, err := p.client.RequestEnrichment(ctx, snap.RawText, snap, requested)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &ai.TransportError{Op: "enrich", Err: err}
	}
	if resp == nil || resp.Data == nil {
		return nil, &ai.RemoteServiceError{Op: "enrich", StatusCode: 200, Message: "response without data", Err: ai.ErrMalformedResponse}
	}

	if p.cache != nil && !resp.Fallback {
		p.cache.SetDefault(key, resp)
	}
	return resp, nil
}

// merge applies an AI guess to cur. A newly set appellation is resolved
// through the dictionaries so region and country follow it as one unit; an
// appellation whose region or country contradicts values already held (and
// not overridden) is dropped from the guess.
func (p *Pipeline) merge(cur models.ParsedWine, data models.EnrichmentData, override []string) (models.ParsedWine, bool) {
	merged, changed := models.MergeEnrichment(cur, data, override)
	if !changed {
		merged.EnrichmentConfidence = data.Confidence
		return merged, false
	}

	if merged.Appellation != cur.Appellation {
		if entry, ok := p.parser.Dictionaries().LookupAppellation(merged.Appellation); ok {
			if conflictsWith(cur, entry, override) {
				p.log.Info("pipeline.ai.appellation_rejected",
					"appellation", entry.Name, "region", cur.Region, "country", cur.Country)
				data.Appellation = ""
				return p.merge(cur, data, override)
			}
			merged.Appellation = entry.Name
			if !cur.HasField(models.FieldRegion) || slices.Contains(override, models.FieldRegion) {
				merged.Region = entry.Region
			}
			if !cur.HasField(models.FieldCountry) || slices.Contains(override, models.FieldCountry) {
				merged.Country = entry.Country
			}
		}
	}

	merged.MarkEnriched(StageAI)
	merged.EnrichmentConfidence = data.Confidence
	labels.Assess(&merged)
	return merged, true
}

// conflictsWith reports whether entry disagrees with a region or country w
// already holds and the caller did not ask to override.
func conflictsWith(w models.ParsedWine, entry models.AppellationEntry, override []string) bool {
	if w.HasField(models.FieldRegion) && !slices.Contains(override, models.FieldRegion) &&
		labels.Fold(w.Region) != labels.Fold(entry.Region) {
		return true
	}
	return w.HasField(models.FieldCountry) && !slices.Contains(override, models.FieldCountry) &&
		labels.Fold(w.Country) != labels.Fold(entry.Country)
}

func (p *Pipeline) observeStage(stage, outcome string, start time.Time) {
	if p.observer != nil {
		p.observer.ObserveStage(stage, outcome, time.Since(start))
	}
}

func cacheKey(text string, fields []string, override bool) string {
	sorted := slices.Clone(fields)
	slices.Sort(sorted)
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(sorted, ",")))
	if override {
		h.Write([]byte{1})
	}
	return hex.EncodeToString(h.Sum(nil))
}
