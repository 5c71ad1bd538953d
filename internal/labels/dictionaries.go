package labels

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/JoelleM-design/veeni-app-sub002/internal/models"
)

//go:embed dictionaries.yaml
var defaultDictionariesYAML []byte

// DictionarySource is the on-disk form of the reference vocabularies.
type DictionarySource struct {
	Version            int                 `yaml:"version"`
	Grapes             []string            `yaml:"grapes"`
	AppellationMarkers []string            `yaml:"appellation_markers"`
	Appellations       []AppellationSource `yaml:"appellations"`
	WineTypes          WineTypeKeywords    `yaml:"wine_types"`
	ProducerMarkers    []string            `yaml:"producer_markers"`
	OCRMisreads        map[string]string   `yaml:"ocr_misreads"`
}

// AppellationSource is an appellation table row plus alternative spellings
// seen on labels.
type AppellationSource struct {
	Name    string   `yaml:"name"`
	Region  string   `yaml:"region"`
	Country string   `yaml:"country"`
	Aliases []string `yaml:"aliases"`
}

// WineTypeKeywords groups label keywords by wine type.
type WineTypeKeywords struct {
	Sparkling []string `yaml:"sparkling"`
	White     []string `yaml:"white"`
	Rose      []string `yaml:"rose"`
	Red       []string `yaml:"red"`
}

type grapeTerm struct {
	display string
	key     string
}

type appellationTerm struct {
	entry models.AppellationEntry
	keys  []string
}

type typeGroup struct {
	wineType models.WineType
	keys     []string
}

// Dictionaries is the immutable, match-ready form of a DictionarySource.
// It is safe for concurrent use.
type Dictionaries struct {
	version         int
	grapes          []grapeTerm
	markers         []string
	appellations    []appellationTerm
	types           []typeGroup
	producerMarkers []string
	typeKeywords    map[string]struct{}
	misreads        map[string]string
}

// NewDictionaries folds every vocabulary entry once so extractors only
// compare match keys.
func NewDictionaries(src DictionarySource) *Dictionaries {
	d := &Dictionaries{
		version:      src.Version,
		typeKeywords: make(map[string]struct{}),
		misreads:     make(map[string]string, len(src.OCRMisreads)),
	}

	seen := make(map[string]bool)
	for _, g := range src.Grapes {
		key := Fold(g)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		d.grapes = append(d.grapes, grapeTerm{display: strings.TrimSpace(g), key: key})
	}

	d.markers = foldAll(src.AppellationMarkers)
	d.producerMarkers = foldAll(src.ProducerMarkers)

	for _, a := range src.Appellations {
		term := appellationTerm{
			entry: models.AppellationEntry{Name: a.Name, Region: a.Region, Country: a.Country},
			keys:  foldAll(append([]string{a.Name}, a.Aliases...)),
		}
		if len(term.keys) > 0 {
			d.appellations = append(d.appellations, term)
		}
	}

	// Scan order: sparkling keywords win over everything else.
	for _, g := range []typeGroup{
		{models.WineTypeSparkling, foldAll(src.WineTypes.Sparkling)},
		{models.WineTypeWhite, foldAll(src.WineTypes.White)},
		{models.WineTypeRose, foldAll(src.WineTypes.Rose)},
		{models.WineTypeRed, foldAll(src.WineTypes.Red)},
	} {
		d.types = append(d.types, g)
		for _, k := range g.keys {
			d.typeKeywords[k] = struct{}{}
		}
	}

	for from, to := range src.OCRMisreads {
		from = strings.ToUpper(strings.TrimSpace(from))
		if from != "" {
			d.misreads[from] = strings.TrimSpace(to)
		}
	}
	return d
}

var defaultDictionaries = sync.OnceValue(func() *Dictionaries {
	d, err := ParseDictionaries(defaultDictionariesYAML)
	if err != nil {
		panic(fmt.Sprintf("labels: embedded dictionaries: %v", err))
	}
	return d
})

// DefaultDictionaries returns the vocabularies shipped with the binary.
func DefaultDictionaries() *Dictionaries {
	return defaultDictionaries()
}

// ParseDictionaries decodes a YAML dictionaries document.
func ParseDictionaries(data []byte) (*Dictionaries, error) {
	var src DictionarySource
	if err := yaml.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("failed to parse dictionaries: %w", err)
	}
	if len(src.Grapes) == 0 && len(src.Appellations) == 0 {
		return nil, fmt.Errorf("dictionaries contain no grapes and no appellations")
	}
	return NewDictionaries(src), nil
}

// LoadDictionaries reads a dictionaries file from disk.
func LoadDictionaries(path string) (*Dictionaries, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionaries file: %w", err)
	}
	return ParseDictionaries(data)
}

// Version is the version number declared by the source document.
func (d *Dictionaries) Version() int { return d.version }

// LookupAppellation resolves an appellation name or alias to its table entry.
func (d *Dictionaries) LookupAppellation(name string) (models.AppellationEntry, bool) {
	key := Fold(name)
	if key == "" {
		return models.AppellationEntry{}, false
	}
	for _, a := range d.appellations {
		for _, k := range a.keys {
			if k == key {
				return a.entry, true
			}
		}
	}
	return models.AppellationEntry{}, false
}

func (d *Dictionaries) isTypeKeyword(key string) bool {
	_, ok := d.typeKeywords[key]
	return ok
}

func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if k := Fold(s); k != "" {
			out = append(out, k)
		}
	}
	return out
}
