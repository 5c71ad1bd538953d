package dataset

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JoelleM-design/veeni-app-sub002/internal/models"
)

//go:embed wines.yaml
var embeddedWines []byte

// Format of a serialized dataset document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromName picks the document format from a file or object name;
// anything that is not .json is read as YAML.
func FormatFromName(name string) Format {
	if strings.EqualFold(filepath.Ext(name), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

type document struct {
	Wines []models.DatasetEntry `yaml:"wines" json:"wines"`
}

// Parse decodes a dataset document: a top-level "wines" list in YAML or JSON.
func Parse(data []byte, format Format) (*Dataset, error) {
	var doc document
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	default:
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s dataset: %w", format, err)
	}
	return New(doc.Wines), nil
}

// LoadFile reads a YAML or JSON dataset file.
func LoadFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset file: %w", err)
	}
	return Parse(data, FormatFromName(path))
}

// Embedded returns the small reference dataset compiled into the binary.
func Embedded() (*Dataset, error) {
	return Parse(embeddedWines, FormatYAML)
}
