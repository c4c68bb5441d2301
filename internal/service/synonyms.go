package service

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed synonyms.yaml
var defaultSynonyms []byte

// SynonymTable maps a term to loosely related terms
type SynonymTable struct {
	Version int                 `yaml:"version"`
	Terms   map[string][]string `yaml:"terms"`
}

// DefaultSynonymTable returns the built-in table
func DefaultSynonymTable() *SynonymTable {
	table, err := ParseSynonymTable(defaultSynonyms)
	if err != nil {
		panic(fmt.Sprintf("embedded synonym table is invalid: %v", err))
	}
	return table
}

// LoadSynonymTable reads the table from path, or returns the built-in one
// when path is empty.
func LoadSynonymTable(path string) (*SynonymTable, error) {
	if path == "" {
		return DefaultSynonymTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read synonym table: %w", err)
	}
	return ParseSynonymTable(data)
}

// ParseSynonymTable decodes a YAML table. Keys and terms are lower-cased.
func ParseSynonymTable(data []byte) (*SynonymTable, error) {
	var raw SynonymTable
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse synonym table: %w", err)
	}
	if raw.Version <= 0 {
		return nil, fmt.Errorf("synonym table version must be positive, got %d", raw.Version)
	}

	table := &SynonymTable{Version: raw.Version, Terms: make(map[string][]string, len(raw.Terms))}
	for key, terms := range raw.Terms {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		for _, term := range terms {
			term = strings.ToLower(strings.TrimSpace(term))
			if term != "" {
				table.Terms[key] = append(table.Terms[key], term)
			}
		}
	}
	return table, nil
}

// RelatedTerms returns related terms for the query keywords in keyword order,
// followed by terms for multi-word keys found in the query (sorted by key).
func (t *SynonymTable) RelatedTerms(keywords []string, query string) []string {
	if t == nil {
		return nil
	}

	var related []string
	for _, kw := range keywords {
		related = append(related, t.Terms[kw]...)
	}

	var phrases []string
	for key := range t.Terms {
		if strings.Contains(key, " ") {
			phrases = append(phrases, key)
		}
	}
	sort.Strings(phrases)

	lowered := strings.ToLower(query)
	for _, key := range phrases {
		if strings.Contains(lowered, key) {
			related = append(related, t.Terms[key]...)
		}
	}
	return related
}
