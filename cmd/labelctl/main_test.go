package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoelleM-design/veeni-app-sub002/internal/ai"
	"github.com/JoelleM-design/veeni-app-sub002/internal/models"
)

const sampleLabel = "DOMAINE DU CHÊNE\n2019\nROUGE"

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestParse_StdinJSON(t *testing.T) {
	out, _, err := runCLI(t, sampleLabel, "parse", "--format", "json")
	require.NoError(t, err)

	var w models.ParsedWine
	require.NoError(t, json.Unmarshal([]byte(out), &w))
	assert.Equal(t, 2019, w.Vintage)
	assert.Equal(t, models.WineTypeRed, w.WineType)
	assert.Equal(t, sampleLabel, w.RawText)
}

func TestParse_FileTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "label.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleLabel), 0o644))

	out, _, err := runCLI(t, "", "parse", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Vintage")
	assert.Contains(t, out, "2019")
	assert.Contains(t, out, "red")
}

func TestParse_EmptyInputGivesDefaults(t *testing.T) {
	out, _, err := runCLI(t, "  \n", "parse", "-o", "json")
	require.NoError(t, err)

	var w models.ParsedWine
	require.NoError(t, json.Unmarshal([]byte(out), &w))
	assert.Equal(t, models.UnnamedWine, w.Name)
	assert.Equal(t, 50, w.Confidence)
	assert.Equal(t, models.StructuralFields, w.UncertainFields)
}

func TestParse_Errors(t *testing.T) {
	_, _, err := runCLI(t, sampleLabel, "parse", "--enrich")
	require.ErrorContains(t, err, "--remote")

	_, _, err = runCLI(t, sampleLabel, "parse", "--fields", "colour,name", "--remote", "http://127.0.0.1:1")
	require.ErrorContains(t, err, "unknown fields: colour")

	_, _, err = runCLI(t, sampleLabel, "parse", "--format", "xml")
	require.ErrorContains(t, err, "unsupported format")

	_, _, err = runCLI(t, "", "parse", filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}

func TestParse_RemoteEnrichment(t *testing.T) {
	var got models.EnrichmentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ai.EnrichPath, r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.EnrichmentResponse{
			Success: true,
			Data: &models.EnrichmentData{
				Name:         "Cuvée Tradition",
				GrapeVariety: []string{"Grenache"},
				Confidence:   models.ConfidenceHigh,
			},
		})
	}))
	defer srv.Close()

	out, stderr, err := runCLI(t, sampleLabel, "parse", "--enrich", "--remote", srv.URL, "-o", "json")
	require.NoError(t, err)
	assert.Empty(t, stderr)

	var w models.ParsedWine
	require.NoError(t, json.Unmarshal([]byte(out), &w))
	assert.Equal(t, "Cuvée Tradition", w.Name)
	assert.Equal(t, []string{"Grenache"}, w.GrapeVarieties)
	assert.Contains(t, w.EnrichedBy, "ai")
	assert.Equal(t, sampleLabel, got.OCRText)
	assert.Contains(t, got.MissingFields, models.FieldName)
}

func TestParse_RemoteFailureWarns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"success":false,"error":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	out, stderr, err := runCLI(t, sampleLabel, "parse", "--enrich", "--remote", srv.URL, "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, stderr, "warning: enrichment failed")

	var w models.ParsedWine
	require.NoError(t, json.Unmarshal([]byte(out), &w))
	assert.Equal(t, 2019, w.Vintage)
	assert.Empty(t, w.EnrichedBy)
}

func TestLookup(t *testing.T) {
	out, _, err := runCLI(t, "", "lookup", "tignanello", "--year", "2019", "-o", "json")
	require.NoError(t, err)

	var e models.DatasetEntry
	require.NoError(t, json.Unmarshal([]byte(out), &e))
	assert.Equal(t, "Tignanello", e.Name)
	assert.Equal(t, "Marchesi Antinori", e.Producer)
	assert.Equal(t, "140", e.Price.String())

	out, _, err = runCLI(t, "", "lookup", "Tignanello")
	require.NoError(t, err)
	assert.Contains(t, out, "Toscana")
	assert.Contains(t, out, "140.00")

	_, _, err = runCLI(t, "", "lookup", "Tignanello", "--year", "2001")
	require.ErrorContains(t, err, "no dataset entry")
}

func TestLookup_CustomDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wines.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"wines":[{"name":"Clos Rougeard","year":2017,"region":"Loire","country":"France"}]}`), 0o644))

	out, _, err := runCLI(t, "", "lookup", "clos rougeard", "--dataset", path, "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"region": "Loire"`)
}
