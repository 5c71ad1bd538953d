package models

// Config represents the service configuration
type Config struct {
	// Server config
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	// Reference data
	Labels LabelsConfig `yaml:"labels"`

	// External wine dataset
	Dataset DatasetConfig `yaml:"dataset"`

	// AI enrichment config
	AI AIConfig `yaml:"ai"`
}

// LabelsConfig points at an optional dictionaries file; the embedded
// dictionaries are used when empty.
type LabelsConfig struct {
	DictionariesPath string `yaml:"dictionaries_path"`
}

// DatasetConfig selects where the wine dataset is loaded from
type DatasetConfig struct {
	Source string `yaml:"source"` // "embedded", "file", "postgres", "minio", "none"
	Path   string `yaml:"path"`   // file source
	Table  string `yaml:"table"`  // postgres source
	Bucket string `yaml:"bucket"` // minio source
	Object string `yaml:"object"` // minio source
}

// AIConfig represents AI provider configuration
type AIConfig struct {
	Enabled bool `yaml:"enabled"`

	// Local confidence at or above which the AI stage is skipped
	MinConfidence int `yaml:"min_confidence"`

	// Call-site limits for the costed remote stage
	RequestsPerMinute int `yaml:"requests_per_minute"`
	CacheTTLSeconds   int `yaml:"cache_ttl_seconds"`
	TimeoutSeconds    int `yaml:"timeout_seconds"`

	// OpenAI
	OpenAI OpenAIConfig `yaml:"openai"`

	// Gemini
	Gemini GeminiConfig `yaml:"gemini"`

	// Ollama (local)
	Ollama OllamaConfig `yaml:"ollama"`

	// Default provider
	DefaultProvider string `yaml:"default_provider"` // "openai", "gemini", "ollama"
}

// OpenAIConfig for OpenAI/Azure OpenAI
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"` // For custom endpoints
	Model   string `yaml:"model"`              // Default: "gpt-4o-mini"
}

// GeminiConfig for Google Gemini
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"` // Default: "gemini-1.5-flash"
}

// OllamaConfig for local Ollama
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"` // Default: "http://localhost:11434"
	Model   string `yaml:"model"`    // e.g., "mistral", "llama3"
}
