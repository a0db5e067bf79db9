// Package treatment turns raw veterinary treatment logs into cleaned case records
// and the frequency and trend tables built from them.
package treatment

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// OtherSpecies is assigned when no species keyword matches.
const OtherSpecies = "Other"

// DefaultMinClassCount is the smallest diagnosis class kept by Clean.
const DefaultMinClassCount = 5

// SpeciesRule names a species and the keywords that identify it.
type SpeciesRule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Rules drive record extraction and cleaning.
type Rules struct {
	Species          []SpeciesRule `yaml:"species"`
	HeadCountPattern string        `yaml:"headcount_pattern"`
	DateLayouts      []string      `yaml:"date_layouts"`
	SentinelLabels   []string      `yaml:"sentinel_labels"`
	MinClassCount    int           `yaml:"min_class_count"`

	speciesRe []*regexp.Regexp
	headRe    *regexp.Regexp
	sentinels map[string]struct{}
}

// DefaultRules returns the built-in extraction rules.
func DefaultRules() *Rules {
	r := &Rules{
		Species: []SpeciesRule{
			{Name: "Sapi", Keywords: []string{"sapi", "lembu", "cattle", "cow", "pedet"}},
			{Name: "Kerbau", Keywords: []string{"kerbau", "buffalo"}},
			{Name: "Kambing", Keywords: []string{"kambing", "goat"}},
			{Name: "Domba", Keywords: []string{"domba", "biri", "sheep"}},
			{Name: "Kuda", Keywords: []string{"kuda", "horse"}},
			{Name: "Babi", Keywords: []string{"babi", "pig", "swine"}},
			{Name: "Ayam", Keywords: []string{"ayam", "unggas", "chicken", "poultry"}},
			{Name: "Kucing", Keywords: []string{"kucing", "cat"}},
			{Name: "Anjing", Keywords: []string{"anjing", "dog"}},
		},
		HeadCountPattern: `(?i)(\d+)\s*(?:ekor|ekr|heads?|hd)\b`,
		DateLayouts: []string{
			"2006-01-02",
			"2006-01-02 15:04:05",
			"02/01/2006",
			"2/1/2006",
			"02-01-2006",
			"2-1-2006",
			"02/01/06",
			"2 January 2006",
			"02 January 2006",
			"January 2006",
		},
		SentinelLabels: []string{"tidak sakit", "sehat", "not sick"},
		MinClassCount:  DefaultMinClassCount,
	}
	if err := r.compile(); err != nil {
		panic(err)
	}
	return r
}

// LoadRules reads a YAML rules file. Fields left out keep their defaults.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	r := DefaultRules()
	override := &Rules{}
	if err := yaml.Unmarshal(data, override); err != nil {
		return nil, fmt.Errorf("decode rules %s: %w", path, err)
	}
	if len(override.Species) > 0 {
		r.Species = override.Species
	}
	if override.HeadCountPattern != "" {
		r.HeadCountPattern = override.HeadCountPattern
	}
	if len(override.DateLayouts) > 0 {
		r.DateLayouts = override.DateLayouts
	}
	if len(override.SentinelLabels) > 0 {
		r.SentinelLabels = override.SentinelLabels
	}
	if override.MinClassCount > 0 {
		r.MinClassCount = override.MinClassCount
	}
	if err := r.compile(); err != nil {
		return nil, fmt.Errorf("rules %s: %w", path, err)
	}
	return r, nil
}

// WithMinClassCount returns a copy of r with a different class threshold.
func (r *Rules) WithMinClassCount(n int) *Rules {
	cp := *r
	cp.MinClassCount = n
	return &cp
}

func (r *Rules) compile() error {
	r.speciesRe = make([]*regexp.Regexp, len(r.Species))
	for i, s := range r.Species {
		if s.Name == "" || len(s.Keywords) == 0 {
			return fmt.Errorf("species rule %d needs a name and keywords", i)
		}
		quoted := make([]string, len(s.Keywords))
		for j, k := range s.Keywords {
			quoted[j] = regexp.QuoteMeta(strings.ToLower(strings.TrimSpace(k)))
		}
		re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
		if err != nil {
			return fmt.Errorf("species %s: %w", s.Name, err)
		}
		r.speciesRe[i] = re
	}

	re, err := regexp.Compile(r.HeadCountPattern)
	if err != nil {
		return fmt.Errorf("headcount pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return fmt.Errorf("headcount pattern needs a capture group for the number")
	}
	r.headRe = re

	r.sentinels = make(map[string]struct{}, len(r.SentinelLabels))
	for _, s := range r.SentinelLabels {
		r.sentinels[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	if r.MinClassCount < 1 {
		r.MinClassCount = 1
	}
	return nil
}

// IsSentinel reports whether a diagnosis means "not sick".
func (r *Rules) IsSentinel(diagnosis string) bool {
	_, ok := r.sentinels[strings.ToLower(strings.Join(strings.Fields(diagnosis), " "))]
	return ok
}
