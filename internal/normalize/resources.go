package normalize

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// HardMappingEntry is one curated rewrite: an exact (pre-cleaned) key
// mapped to the canonical aggregator-friendly query.
type HardMappingEntry struct {
	Key            string   `yaml:"key"`
	Canonical      string   `yaml:"canonical"`
	SkipIfContains []string `yaml:"skip_if_contains,omitempty"`
}

type hardMappingFile struct {
	SkipIfContains []string           `yaml:"skip_if_contains"`
	Mappings       []HardMappingEntry `yaml:"mappings"`
}

// Transliteration pairs a Hangul product term with its Latin spelling.
type Transliteration struct {
	Hangul string `yaml:"hangul"`
	Latin  string `yaml:"latin"`
}

type synonymFile struct {
	Colors           []string          `yaml:"colors"`
	Conditions       []string          `yaml:"conditions"`
	Transliterations []Transliteration `yaml:"transliterations"`
}

// CategoryRule describes one category: detection keywords and the
// generic tag used as the last-resort fallback candidate.
type CategoryRule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Tag      string   `yaml:"tag"`
}

type categoryFile struct {
	Categories    []CategoryRule `yaml:"categories"`
	BroadKeywords []string       `yaml:"broad_keywords"`
}

// BrandRule names a brand and its alternative spellings.
type BrandRule struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

type brandFile struct {
	Brands []BrandRule `yaml:"brands"`
}

// Resources bundles every static rule table the normalizer and the
// validation gate consume. Loaded once at startup; read-only after.
type Resources struct {
	Accessories      []string
	Mappings         []HardMappingEntry
	Colors           []string
	Conditions       []string
	Transliterations []Transliteration
	Categories       []CategoryRule
	BroadKeywords    []string
	Brands           []BrandRule
}

// LoadResources reads the rule tables from dir. Every file is
// required; a missing or malformed table is a startup error, not a
// runtime fallback.
func LoadResources(dir string) (*Resources, error) {
	var hm hardMappingFile
	if err := readYAML(filepath.Join(dir, "hard_mappings.yaml"), &hm); err != nil {
		return nil, err
	}
	var syn synonymFile
	if err := readYAML(filepath.Join(dir, "synonyms.yaml"), &syn); err != nil {
		return nil, err
	}
	var cat categoryFile
	if err := readYAML(filepath.Join(dir, "categories.yaml"), &cat); err != nil {
		return nil, err
	}
	var br brandFile
	if err := readYAML(filepath.Join(dir, "brands.yaml"), &br); err != nil {
		return nil, err
	}

	res := &Resources{
		Accessories:      hm.SkipIfContains,
		Mappings:         hm.Mappings,
		Colors:           syn.Colors,
		Conditions:       syn.Conditions,
		Transliterations: syn.Transliterations,
		Categories:       cat.Categories,
		BroadKeywords:    cat.BroadKeywords,
		Brands:           br.Brands,
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read resource %s: %w", filepath.Base(path), err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse resource %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Validate enforces the structural invariants of the rule tables.
func (r *Resources) Validate() error {
	if len(r.Mappings) == 0 {
		return fmt.Errorf("hard mapping table is empty")
	}
	seen := map[string]string{}
	for _, m := range r.Mappings {
		if m.Key == "" || m.Canonical == "" {
			return fmt.Errorf("hard mapping with empty key or canonical")
		}
		key := Clean(m.Key)
		if prev, dup := seen[key]; dup && prev != m.Canonical {
			return fmt.Errorf("hard mapping key collision after cleaning: %q", key)
		}
		seen[key] = m.Canonical
	}
	if len(r.Categories) == 0 {
		return fmt.Errorf("category table is empty")
	}
	if len(r.Brands) == 0 {
		return fmt.Errorf("brand lexicon is empty")
	}
	return nil
}

// sortedMappings returns the mapping entries with cleaned keys, in
// descending raw-key length order (longest match first).
func (r *Resources) sortedMappings() []HardMappingEntry {
	out := make([]HardMappingEntry, len(r.Mappings))
	copy(out, r.Mappings)
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Key) > len(out[j].Key)
	})
	for i := range out {
		out[i].Key = Clean(out[i].Key)
	}
	return out
}
