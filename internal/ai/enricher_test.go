package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoelleM-design/veeni-app-sub002/internal/models"
)

type fakeProvider struct {
	completion string
	err        error
	prompts    []string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) ExtractData(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.completion, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func currentWine() models.ParsedWine {
	w := models.NewParsedWine("D0MAINE DU CHÊNE\n2019")
	w.Producer = "DOMAINE DU CHÊNE"
	w.Vintage = 2019
	w.Confidence = 70
	w.UncertainFields = w.MissingFields()
	return w
}

func TestEnricher_RequestEnrichment(t *testing.T) {
	p := &fakeProvider{completion: `{"name":"Cuvée Tradition","producer":"Domaine du Chêne","year":2019,"grapeVariety":["Syrah"],"wineType":"red","region":"Vallée du Rhône","appellation":"","confidence":"medium"}`}
	e := NewEnricher(p, nil, discardLogger())

	cur := currentWine()
	resp, err := e.RequestEnrichment(context.Background(), cur.RawText, cur, []string{models.FieldName, models.FieldGrapes})
	require.NoError(t, err)
	require.NotNil(t, resp.Data)

	assert.True(t, resp.Success)
	assert.False(t, resp.Fallback)
	assert.Equal(t, "Cuvée Tradition", resp.Data.Name)
	assert.Equal(t, []string{"Syrah"}, resp.Data.GrapeVariety)
	assert.Equal(t, models.ConfidenceMedium, resp.Data.Confidence)

	require.Len(t, p.prompts, 1)
	assert.Contains(t, p.prompts[0], "DOMAINE DU CHÊNE", "misreads are corrected before sending")
	assert.NotContains(t, p.prompts[0], "D0MAINE")
	assert.Contains(t, p.prompts[0], "- vintage: 2019")
	assert.Contains(t, p.prompts[0], "Still missing: name, grapeVarieties")
}

func TestEnricher_MalformedFallsBack(t *testing.T) {
	p := &fakeProvider{completion: "Sorry, I cannot identify this wine."}
	e := NewEnricher(p, nil, discardLogger())

	cur := currentWine()
	resp, err := e.RequestEnrichment(context.Background(), cur.RawText, cur, nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Data)

	assert.True(t, resp.Success)
	assert.True(t, resp.Fallback)
	assert.Equal(t, models.ConfidenceLow, resp.Data.Confidence)
	assert.Equal(t, "DOMAINE DU CHÊNE", resp.Data.Producer)
	assert.Equal(t, 2019, resp.Data.Year)
	assert.Empty(t, resp.Data.Name, "sentinels are not echoed as values")

	merged, changed := models.MergeEnrichment(cur, *resp.Data, nil)
	assert.False(t, changed)
	assert.Equal(t, cur, merged)
}

func TestEnricher_ProviderErrors(t *testing.T) {
	cur := currentWine()

	t.Run("remote failure propagates", func(t *testing.T) {
		p := &fakeProvider{err: &RemoteServiceError{Op: "fake", StatusCode: 503}}
		_, err := NewEnricher(p, nil, discardLogger()).RequestEnrichment(context.Background(), "x", cur, nil)

		var rse *RemoteServiceError
		require.ErrorAs(t, err, &rse)
		assert.Equal(t, 503, rse.StatusCode)
		assert.True(t, IsTransient(err))
	})

	t.Run("cancellation is a transport failure", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		p := &fakeProvider{}
		_, err := NewEnricher(p, nil, discardLogger()).RequestEnrichment(ctx, "x", cur, nil)

		var te *TransportError
		require.ErrorAs(t, err, &te)
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, IsTransient(err))
	})
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(&TransportError{Op: "x", Err: errors.New("reset")}))
	assert.True(t, IsTransient(&RemoteServiceError{StatusCode: 429}))
	assert.False(t, IsTransient(&RemoteServiceError{StatusCode: 401}))
	assert.False(t, IsTransient(ErrMalformedResponse))
}
