package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JoelleM-design/veeni-app-sub002/api"
	"github.com/JoelleM-design/veeni-app-sub002/internal/ai"
	"github.com/JoelleM-design/veeni-app-sub002/internal/dataset"
	"github.com/JoelleM-design/veeni-app-sub002/internal/db"
	"github.com/JoelleM-design/veeni-app-sub002/internal/labels"
	"github.com/JoelleM-design/veeni-app-sub002/internal/models"
	"github.com/JoelleM-design/veeni-app-sub002/internal/pipeline"
	"github.com/JoelleM-design/veeni-app-sub002/internal/storage"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Load configuration
	config, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(os.Getenv("LOG_LEVEL"))
	slog.SetDefault(logger)

	// Reference vocabularies
	dict := labels.DefaultDictionaries()
	if config.Labels.DictionariesPath != "" {
		dict, err = labels.LoadDictionaries(config.Labels.DictionariesPath)
		if err != nil {
			log.Fatalf("Failed to load dictionaries: %v", err)
		}
	}
	parser := labels.NewParser(dict, logger)

	// Wine dataset (optional)
	ds, err := loadDataset(context.Background(), config.Dataset)
	if err != nil {
		log.Printf("Warning: wine dataset not available: %v", err)
		log.Println("Running without dataset enrichment")
	}
	defer db.Close()

	metrics, err := api.NewMetrics()
	if err != nil {
		log.Fatalf("Failed to create metrics: %v", err)
	}

	// AI enrichment (optional)
	var enricher *ai.Enricher
	if config.AI.Enabled {
		provider, err := ai.NewProvider(config.AI, logger)
		if err != nil {
			log.Printf("Warning: AI enrichment disabled: %v", err)
		} else {
			enricher = ai.NewEnricher(provider, parser.Normalizer(), logger)
		}
	}

	opts := pipeline.Options{
		Dataset:           ds,
		MinConfidence:     config.AI.MinConfidence,
		RequestsPerMinute: config.AI.RequestsPerMinute,
		CacheTTL:          time.Duration(config.AI.CacheTTLSeconds) * time.Second,
		Timeout:           time.Duration(config.AI.TimeoutSeconds) * time.Second,
		Observer:          metrics,
		Logger:            logger,
	}
	var client ai.EnrichmentClient
	if enricher != nil {
		opts.Client = enricher
		client = enricher
	}
	p := pipeline.New(parser, opts)

	// Create API handler
	handler := api.NewHandler(config, p, client, metrics, logger)
	router := handler.SetupRoutes()

	// Start server
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	log.Printf("Starting Wine Label Service v%s on %s", api.Version, addr)
	log.Printf("Dictionaries: v%d", dict.Version())
	log.Printf("Dataset: %s (%d wines)", config.Dataset.Source, ds.Len())
	if enricher != nil {
		log.Printf("AI Provider: %s", enricher.ProviderName())
	} else {
		log.Printf("AI Provider: disabled")
	}
	log.Printf("Endpoints:")
	log.Printf("  POST http://%s/api/parse-label    - Parse OCR text from a label", addr)
	log.Printf("  POST http://%s%s   - Remote AI enrichment", addr, ai.EnrichPath)
	log.Printf("  GET  http://%s/health             - Health check", addr)
	log.Printf("  GET  http://%s/metrics            - Prometheus metrics", addr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
	log.Println("Server stopped")
}

// loadDataset loads the wine dataset from the configured source. A nil
// dataset with a nil error means the source is "none".
func loadDataset(ctx context.Context, cfg models.DatasetConfig) (*dataset.Dataset, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch strings.ToLower(cfg.Source) {
	case "", "embedded":
		return dataset.Embedded()
	case "none":
		return nil, nil
	case "file":
		return dataset.LoadFile(cfg.Path)
	case "postgres":
		if err := db.Init(); err != nil {
			return nil, err
		}
		wines, err := db.LoadWines(ctx, cfg.Table)
		if err != nil {
			return nil, err
		}
		return dataset.New(wines), nil
	case "minio":
		if err := storage.Init(cfg.Bucket); err != nil {
			return nil, err
		}
		data, err := storage.ReadObject(ctx, cfg.Object)
		if err != nil {
			return nil, err
		}
		return dataset.Parse(data, dataset.FormatFromName(cfg.Object))
	default:
		return nil, fmt.Errorf("unknown dataset source: %s", cfg.Source)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func loadConfig(path string) (*models.Config, error) {
	// Read config file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var config models.Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables if present
	if port := os.Getenv("PORT"); port != "" {
		fmt.Sscanf(port, "%d", &config.Port)
	}
	if host := os.Getenv("HOST"); host != "" {
		config.Host = host
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.AI.OpenAI.APIKey = apiKey
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.AI.Gemini.APIKey = apiKey
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.AI.Ollama.BaseURL = baseURL
	}
	if provider := os.Getenv("AI_PROVIDER"); provider != "" {
		config.AI.DefaultProvider = provider
	}
	if enabled := os.Getenv("AI_ENABLED"); enabled != "" {
		if v, err := strconv.ParseBool(enabled); err == nil {
			config.AI.Enabled = v
		}
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.AI.OpenAI.BaseURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		config.AI.OpenAI.Model = model
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		config.AI.Gemini.Model = model
	}
	if source := os.Getenv("DATASET_SOURCE"); source != "" {
		config.Dataset.Source = source
	}

	// Defaults
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.AI.DefaultProvider == "" {
		config.AI.DefaultProvider = "openai"
	}

	return &config, nil
}
