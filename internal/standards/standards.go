// Package standards holds the population strength standards used for
// percentile ranking. The table is static data: an embedded default that can
// be replaced by a YAML file of the same shape.
package standards

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/claude/ironlog/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed standards.yaml
var defaultYAML []byte

// Standard lists bodyweight multipliers for one exercise and gender.
// Advanced, Elite and Superior are required; the lower anchors are optional.
type Standard struct {
	Novice       float64 `yaml:"novice"`
	Intermediate float64 `yaml:"intermediate"`
	Proficient   float64 `yaml:"proficient"`
	Advanced     float64 `yaml:"advanced"`
	Elite        float64 `yaml:"elite"`
	Superior     float64 `yaml:"superior"`
}

// withDerived fills missing lower anchors as fixed fractions of Advanced.
func (s Standard) withDerived() Standard {
	if s.Novice == 0 {
		s.Novice = s.Advanced * 0.35
	}
	if s.Intermediate == 0 {
		s.Intermediate = s.Advanced * 0.55
	}
	if s.Proficient == 0 {
		s.Proficient = s.Advanced * 0.8
	}
	return s
}

type exerciseEntry struct {
	Aliases []string `yaml:"aliases"`
	Male    Standard `yaml:"male"`
	Female  Standard `yaml:"female"`
}

// AgeAdjustment scales the strength ratio for lifters at or above MinAge.
type AgeAdjustment struct {
	MinAge int     `yaml:"min_age"`
	Factor float64 `yaml:"factor"`
}

type document struct {
	Exercises      map[string]exerciseEntry `yaml:"exercises"`
	AgeAdjustments []AgeAdjustment          `yaml:"age_adjustments"`
}

// Table is a read-only standards lookup.
type Table struct {
	exercises map[string]exerciseEntry
	aliases   map[string]string
	ages      []AgeAdjustment
}

// Default returns the embedded standards table.
func Default() (*Table, error) {
	return Parse(defaultYAML)
}

// Load reads a standards table from a YAML file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading standards file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a standards document.
func Parse(data []byte) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing standards: %w", err)
	}

	t := &Table{
		exercises: make(map[string]exerciseEntry, len(doc.Exercises)),
		aliases:   make(map[string]string),
		ages:      doc.AgeAdjustments,
	}
	for key, entry := range doc.Exercises {
		for _, g := range []struct {
			name string
			s    Standard
		}{{"male", entry.Male}, {"female", entry.Female}} {
			if g.s.Advanced <= 0 || g.s.Elite <= g.s.Advanced || g.s.Superior <= g.s.Elite {
				return nil, fmt.Errorf("exercise %s (%s): advanced < elite < superior required", key, g.name)
			}
		}
		t.exercises[key] = exerciseEntry{
			Aliases: entry.Aliases,
			Male:    entry.Male.withDerived(),
			Female:  entry.Female.withDerived(),
		}
		t.aliases[NormalizeName(key)] = key
		for _, a := range entry.Aliases {
			t.aliases[NormalizeName(a)] = key
		}
	}
	sort.Slice(t.ages, func(i, j int) bool { return t.ages[i].MinAge < t.ages[j].MinAge })
	return t, nil
}

// Lookup returns the standard for an exercise key and gender.
func (t *Table) Lookup(gender models.Gender, exerciseKey string) (Standard, bool) {
	entry, ok := t.exercises[exerciseKey]
	if !ok {
		return Standard{}, false
	}
	switch gender {
	case models.GenderMale:
		return entry.Male, true
	case models.GenderFemale:
		return entry.Female, true
	}
	return Standard{}, false
}

// Resolve maps a free-form exercise name ("Barbell Bench Press") to a
// standards key. It returns "" when the exercise has no standard.
func (t *Table) Resolve(name string) string {
	return t.aliases[NormalizeName(name)]
}

// AgeFactor returns the ratio multiplier for the given age; 1 when unknown.
func (t *Table) AgeFactor(age int) float64 {
	factor := 1.0
	if age <= 0 {
		return factor
	}
	for _, a := range t.ages {
		if age >= a.MinAge {
			factor = a.Factor
		}
	}
	return factor
}

// Keys returns the exercise keys in sorted order.
func (t *Table) Keys() []string {
	keys := make([]string, 0, len(t.exercises))
	for k := range t.exercises {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NormalizeName lowercases and collapses separators so that
// "Bench-Press", "bench press" and "bench_press" compare equal.
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", " ", "_", " ", "·", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
