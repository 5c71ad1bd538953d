package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoelleM-design/veeni-app-sub002/internal/ai"
	"github.com/JoelleM-design/veeni-app-sub002/internal/dataset"
	"github.com/JoelleM-design/veeni-app-sub002/internal/models"
)

const sparseLabel = "DOMAINE DU CHÊNE\n2019\nROUGE"

type fakeClient struct {
	mu    sync.Mutex
	calls int
	resp  func(missing []string) (*models.EnrichmentResponse, error)
	block bool
}

func (f *fakeClient) RequestEnrichment(ctx context.Context, rawText string, current models.ParsedWine, missing []string) (*models.EnrichmentResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, &ai.TransportError{Op: "fake", Err: ctx.Err()}
	}
	return f.resp(missing)
}

func (f *fakeClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func respond(d models.EnrichmentData) func([]string) (*models.EnrichmentResponse, error) {
	return func([]string) (*models.EnrichmentResponse, error) {
		return &models.EnrichmentResponse{Success: true, Data: &d}, nil
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes map[string][]string
}

func (o *recordingObserver) ObserveParse(models.ParsedWine) {}

func (o *recordingObserver) ObserveStage(stage, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = map[string][]string{}
	}
	o.outcomes[stage] = append(o.outcomes[stage], outcome)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProcess_LocalOnly(t *testing.T) {
	p := New(nil, Options{Logger: quietLogger()})

	w, err := p.Process(context.Background(), sparseLabel)
	require.NoError(t, err)

	assert.Equal(t, "DOMAINE DU CHÊNE", w.Producer)
	assert.Equal(t, 2019, w.Vintage)
	assert.Equal(t, models.WineTypeRed, w.WineType)
	assert.Empty(t, w.EnrichedBy)
	assert.False(t, p.AIEnabled())
}

func TestProcess_AIFillsMissing(t *testing.T) {
	client := &fakeClient{resp: respond(models.EnrichmentData{
		Name:         "Cuvée Tradition",
		Producer:     "Someone Else",
		GrapeVariety: []string{"Syrah"},
		Appellation:  "chateauneuf du pape",
		Confidence:   models.ConfidenceMedium,
	})}
	obs := &recordingObserver{}
	p := New(nil, Options{Client: client, Observer: obs, Logger: quietLogger()})

	w, err := p.Process(context.Background(), sparseLabel)
	require.NoError(t, err)

	assert.Equal(t, "DOMAINE DU CHÊNE", w.Producer, "resolved fields are not overwritten")
	assert.Equal(t, "Cuvée Tradition", w.Name)
	assert.Equal(t, []string{"Syrah"}, w.GrapeVarieties)
	assert.Equal(t, "Châteauneuf-du-Pape", w.Appellation)
	assert.Equal(t, "Vallée du Rhône", w.Region)
	assert.Equal(t, "France", w.Country)
	assert.Equal(t, models.ConfidenceMedium, w.EnrichmentConfidence)
	assert.Equal(t, []string{StageAI}, w.EnrichedBy)
	assert.Equal(t, 100, w.Confidence)
	assert.Empty(t, w.UncertainFields)
	assert.Equal(t, []string{OutcomeMerged}, obs.outcomes[StageAI])
}

func TestProcess_SkipsAIAboveMinConfidence(t *testing.T) {
	client := &fakeClient{resp: respond(models.EnrichmentData{Name: "x"})}
	p := New(nil, Options{Client: client, MinConfidence: 60, Logger: quietLogger()})

	_, err := p.Process(context.Background(), sparseLabel)
	require.NoError(t, err)
	assert.Zero(t, client.Calls())
}

func TestProcess_DatasetBeforeAI(t *testing.T) {
	ds := dataset.New([]models.DatasetEntry{{
		Name:     "Cuvée Tradition",
		Region:   "Vallée du Rhône",
		Producer: "Domaine du Chêne",
		Grapes:   []string{"Syrah", "Grenache"},
		Country:  "France",
	}})
	p := New(nil, Options{Dataset: ds, Logger: quietLogger()})

	w, err := p.Process(context.Background(), "Cuvée Tradition\n2019")
	require.NoError(t, err)

	assert.Equal(t, "Domaine du Chêne", w.Producer)
	assert.Equal(t, []string{"Syrah", "Grenache"}, w.GrapeVarieties)
	assert.Equal(t, []string{dataset.StageName}, w.EnrichedBy)
}

func TestProcess_AIAppellationMustAgreeWithDatasetRegion(t *testing.T) {
	ds := dataset.New([]models.DatasetEntry{{
		Name:    "Cuvée Alpha",
		Region:  "Bourgogne",
		Country: "France",
	}})
	const label = "Domaine Exemple\nCuvée Alpha\n2018"

	tests := []struct {
		name            string
		appellation     string
		wantAppellation string
	}{
		{"conflicting region is rejected", "Pauillac", ""},
		{"matching region is accepted", "chablis", "Chablis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{resp: respond(models.EnrichmentData{
				Appellation:  tt.appellation,
				GrapeVariety: []string{"Chardonnay"},
				Confidence:   models.ConfidenceMedium,
			})}
			p := New(nil, Options{Dataset: ds, Client: client, Logger: quietLogger()})

			w, err := p.Process(context.Background(), label)
			require.NoError(t, err)

			assert.Equal(t, tt.wantAppellation, w.Appellation)
			assert.Equal(t, "Bourgogne", w.Region)
			assert.Equal(t, "France", w.Country)
			assert.Equal(t, []string{"Chardonnay"}, w.GrapeVarieties)
			assert.Equal(t, []string{dataset.StageName, StageAI}, w.EnrichedBy)
		})
	}
}

func TestProcess_RejectedAppellationAloneIsUnchanged(t *testing.T) {
	ds := dataset.New([]models.DatasetEntry{{Name: "Cuvée Alpha", Region: "Bourgogne", Country: "France"}})
	obs := &recordingObserver{}
	client := &fakeClient{resp: respond(models.EnrichmentData{Appellation: "Pauillac", Confidence: models.ConfidenceLow})}
	p := New(nil, Options{Dataset: ds, Client: client, Observer: obs, Logger: quietLogger()})

	w, err := p.Process(context.Background(), "Domaine Exemple\nCuvée Alpha\n2018")
	require.NoError(t, err)

	assert.Empty(t, w.Appellation)
	assert.Equal(t, "Bourgogne", w.Region)
	assert.Equal(t, []string{dataset.StageName}, w.EnrichedBy)
	assert.Equal(t, []string{OutcomeUnchanged}, obs.outcomes[StageAI])
}

func TestEnrichFields_OverrideRegionAllowsNewAppellation(t *testing.T) {
	ds := dataset.New([]models.DatasetEntry{{Name: "Cuvée Alpha", Region: "Bourgogne", Country: "France"}})
	client := &fakeClient{resp: respond(models.EnrichmentData{Appellation: "Pauillac", Confidence: models.ConfidenceHigh})}
	p := New(nil, Options{Dataset: ds, Client: client, Logger: quietLogger()})
	rec := models.NewRecord(p.Parse("Domaine Exemple\nCuvée Alpha\n2018"))

	require.NoError(t, p.EnrichFields(context.Background(), rec,
		[]string{models.FieldAppellation, models.FieldRegion}))

	w := rec.Snapshot()
	assert.Equal(t, "Pauillac", w.Appellation)
	assert.Equal(t, "Bordeaux", w.Region)
}

func TestProcess_AIFailureKeepsLocalResult(t *testing.T) {
	client := &fakeClient{resp: func([]string) (*models.EnrichmentResponse, error) {
		return nil, &ai.RemoteServiceError{Op: "fake", StatusCode: 500}
	}}
	p := New(nil, Options{Client: client, Logger: quietLogger()})

	w, err := p.Process(context.Background(), sparseLabel)

	var rse *ai.RemoteServiceError
	require.ErrorAs(t, err, &rse)
	assert.Equal(t, "DOMAINE DU CHÊNE", w.Producer)
	assert.Equal(t, models.UnnamedWine, w.Name)
	assert.Empty(t, w.EnrichedBy)
}

func TestEnrichRecord_FallbackDemotesConfidence(t *testing.T) {
	client := &fakeClient{resp: func([]string) (*models.EnrichmentResponse, error) {
		d := models.EnrichmentData{Confidence: models.ConfidenceLow}
		return &models.EnrichmentResponse{Success: true, Data: &d, Fallback: true}, nil
	}}
	p := New(nil, Options{Client: client, Logger: quietLogger()})
	rec := models.NewRecord(p.Parse(sparseLabel))
	before := rec.Snapshot()

	require.NoError(t, p.EnrichRecord(context.Background(), rec))

	after := rec.Snapshot()
	assert.Equal(t, models.ConfidenceLow, after.EnrichmentConfidence)
	after.EnrichmentConfidence = before.EnrichmentConfidence
	assert.Equal(t, before, after)
}

func TestEnrichRecord_CancelledLeavesRecordUntouched(t *testing.T) {
	client := &fakeClient{block: true}
	p := New(nil, Options{Client: client, Logger: quietLogger()})
	rec := models.NewRecord(p.Parse(sparseLabel))
	before := rec.Snapshot()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.EnrichRecord(ctx, rec)

	var te *ai.TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, before, rec.Snapshot())
}

func TestEnrichRecord_Timeout(t *testing.T) {
	client := &fakeClient{block: true}
	p := New(nil, Options{Client: client, Timeout: 10 * time.Millisecond, Logger: quietLogger()})
	rec := models.NewRecord(p.Parse(sparseLabel))

	err := p.EnrichRecord(context.Background(), rec)
	require.Error(t, err)
	assert.True(t, ai.IsTransient(err))
}

func TestEnrichFields_OverridesRequestedField(t *testing.T) {
	client := &fakeClient{resp: respond(models.EnrichmentData{Producer: "Domaine du Chêne Vert", Name: "Ignored", Confidence: models.ConfidenceHigh})}
	p := New(nil, Options{Client: client, Logger: quietLogger()})
	rec := models.NewRecord(p.Parse(sparseLabel))

	require.NoError(t, p.EnrichFields(context.Background(), rec, []string{models.FieldProducer}))

	w := rec.Snapshot()
	assert.Equal(t, "Domaine du Chêne Vert", w.Producer)
	assert.Equal(t, "Ignored", w.Name, "absent fields are still filled")
	assert.Equal(t, models.ConfidenceHigh, w.EnrichmentConfidence)
}

func TestEnrichFields_ConcurrentSameRecord(t *testing.T) {
	client := &fakeClient{resp: func(missing []string) (*models.EnrichmentResponse, error) {
		d := models.EnrichmentData{Confidence: models.ConfidenceMedium}
		for _, f := range missing {
			switch f {
			case models.FieldName:
				d.Name = "Cuvée Tradition"
			case models.FieldGrapes:
				d.GrapeVariety = []string{"Syrah"}
			case models.FieldRegion:
				d.Region = "Vallée du Rhône"
			}
		}
		return &models.EnrichmentResponse{Success: true, Data: &d}, nil
	}}
	p := New(nil, Options{Client: client, Logger: quietLogger()})
	rec := models.NewRecord(p.Parse(sparseLabel))

	fieldSets := [][]string{{models.FieldName}, {models.FieldGrapes}, {models.FieldRegion}}
	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(fields []string) {
			defer wg.Done()
			if err := p.EnrichFields(context.Background(), rec, fields); err != nil {
				failures.Add(1)
			}
		}(fieldSets[i%len(fieldSets)])
	}
	wg.Wait()

	w := rec.Snapshot()
	assert.Zero(t, failures.Load())
	assert.Equal(t, "Cuvée Tradition", w.Name)
	assert.Equal(t, []string{"Syrah"}, w.GrapeVarieties)
	assert.Equal(t, "Vallée du Rhône", w.Region)
	assert.Equal(t, []string{StageAI}, w.EnrichedBy)
}

func TestEnrichRecord_RateLimited(t *testing.T) {
	client := &fakeClient{resp: respond(models.EnrichmentData{Confidence: models.ConfidenceLow})}
	p := New(nil, Options{Client: client, RequestsPerMinute: 1, Logger: quietLogger()})

	require.NoError(t, p.EnrichRecord(context.Background(), models.NewRecord(p.Parse("label one"))))

	err := p.EnrichRecord(context.Background(), models.NewRecord(p.Parse("label two")))
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, client.Calls())
}

func TestEnrichRecord_Cache(t *testing.T) {
	client := &fakeClient{resp: respond(models.EnrichmentData{Name: "Cuvée Tradition", Confidence: models.ConfidenceHigh})}
	obs := &recordingObserver{}
	p := New(nil, Options{Client: client, CacheTTL: time.Minute, Observer: obs, Logger: quietLogger()})

	first := models.NewRecord(p.Parse(sparseLabel))
	second := models.NewRecord(p.Parse(sparseLabel))
	require.NoError(t, p.EnrichRecord(context.Background(), first))
	require.NoError(t, p.EnrichRecord(context.Background(), second))

	assert.Equal(t, 1, client.Calls())
	assert.Equal(t, first.Snapshot(), second.Snapshot())
	assert.Contains(t, obs.outcomes[StageAI], OutcomeCached)
}

func TestEnrichRecord_Disabled(t *testing.T) {
	p := New(nil, Options{Logger: quietLogger()})
	err := p.EnrichRecord(context.Background(), models.NewRecord(p.Parse(sparseLabel)))
	assert.True(t, errors.Is(err, ErrAIDisabled))
}
