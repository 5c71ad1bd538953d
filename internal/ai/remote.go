package ai

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/JoelleM-design/veeni-app-sub002/internal/labels"
	"github.com/JoelleM-design/veeni-app-sub002/internal/models"
)

// EnrichPath is the route of the remote enrichment endpoint.
const EnrichPath = "/api/enrich-label"

// RemoteClient implements EnrichmentClient against a deployed enrichment
// endpoint that speaks the EnrichmentRequest / EnrichmentResponse envelope.
type RemoteClient struct {
	url        string
	httpClient *http.Client
	normalizer *labels.Normalizer
	headers    map[string]string
	log        *slog.Logger
}

// RemoteOption configures a RemoteClient.
type RemoteOption func(*RemoteClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *RemoteClient) { r.httpClient = c }
}

// WithHeader adds a header to every request, such as an API key.
func WithHeader(key, value string) RemoteOption {
	return func(r *RemoteClient) { r.headers[key] = value }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RemoteOption {
	return func(r *RemoteClient) { r.log = l }
}

// NewRemoteClient creates a client for the service at baseURL. A baseURL
// that already ends with EnrichPath is used as is.
func NewRemoteClient(baseURL string, normalizer *labels.Normalizer, opts ...RemoteOption) *RemoteClient {
	url := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(url, EnrichPath) {
		url += EnrichPath
	}
	if normalizer == nil {
		normalizer = labels.NewNormalizer(labels.DefaultDictionaries())
	}
	r := &RemoteClient{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		normalizer: normalizer,
		headers:    map[string]string{},
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RemoteClient) RequestEnrichment(ctx context.Context, rawText string, current models.ParsedWine, missingFields []string) (*models.EnrichmentResponse, error) {
	const op = "remote enrichment"

	if missingFields == nil {
		missingFields = current.MissingFields()
	}
	body := models.EnrichmentRequest{
		OCRText:        r.normalizer.CorrectMisreads(rawText),
		CurrentParsing: current,
		MissingFields:  missingFields,
	}

	raw, err := postJSON(ctx, r.httpClient, op, r.url, body, r.headers, r.log)
	if err != nil {
		var rse *RemoteServiceError
		if errors.As(err, &rse) {
			var env models.EnrichmentResponse
			if json.Unmarshal(raw, &env) == nil && env.Error != "" {
				rse.Message = env.Error
			}
		}
		return nil, err
	}

	var env models.EnrichmentResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		r.log.Warn("ai.remote.malformed", "error", err, "bytes", len(raw))
		return fallbackResponse(current), nil
	}
	if !env.Success {
		return nil, &RemoteServiceError{Op: op, StatusCode: http.StatusOK, Message: env.Error}
	}
	if env.Data == nil {
		r.log.Warn("ai.remote.malformed", "error", "success without data")
		return fallbackResponse(current), nil
	}
	env.Data.Confidence = models.ParseConfidenceTag(string(env.Data.Confidence))
	if !models.ValidYear(env.Data.Year) {
		env.Data.Year = 0
	}
	return &env, nil
}
