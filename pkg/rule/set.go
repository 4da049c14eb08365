package rule

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	defaultTable     = "tables/v1.yaml"
	supportedVersion = 1
)

var (
	//go:embed tables/*
	tables embed.FS

	// ErrInvalidTable is returned for rule tables that fail validation.
	ErrInvalidTable = errors.New("invalid rule table")

	defaultSet = sync.OnceValues(func() (*Set, error) {
		b, err := tables.ReadFile(defaultTable)
		if err != nil {
			return nil, fmt.Errorf("reading embedded rule table: %w", err)
		}
		return Parse(b)
	})
)

// Set is the immutable rule table for all six dimensions.
type Set struct {
	version    int
	dimensions []Dimension
}

type tableSpec struct {
	Version    int                   `yaml:"version"`
	Dimensions map[string][]ruleSpec `yaml:"dimensions"`
}

type ruleSpec struct {
	Pattern   string  `yaml:"pattern"`
	Weight    float64 `yaml:"weight"`
	Max       int     `yaml:"max"`
	Multiline bool    `yaml:"multiline"`
	Computed  string  `yaml:"computed"`
}

// Default returns the rule table shipped with the binary.
func Default() (*Set, error) {
	return defaultSet()
}

// Load reads a rule table from a YAML file.
func Load(path string) (*Set, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule table %s: %w", path, err)
	}
	s, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("rule table %s: %w", path, err)
	}
	slog.Debug("rule table loaded", "path", path, "version", s.version)
	return s, nil
}

// Parse builds a Set from YAML. Every one of the six dimensions must be
// present and no other keys are allowed.
func Parse(b []byte) (*Set, error) {
	var spec tableSpec
	if err := yaml.Unmarshal(b, &spec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTable, err)
	}

	if spec.Version != supportedVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidTable, spec.Version)
	}

	for k := range spec.Dimensions {
		if !Key(k).Valid() {
			return nil, fmt.Errorf("%w: unknown dimension %q", ErrInvalidTable, k)
		}
	}

	s := &Set{
		version:    spec.Version,
		dimensions: make([]Dimension, 0, len(keys)),
	}

	for _, k := range keys {
		specs, ok := spec.Dimensions[string(k)]
		if !ok {
			return nil, fmt.Errorf("%w: missing dimension %q", ErrInvalidTable, k)
		}

		rules := make([]Rule, 0, len(specs))
		for i, rs := range specs {
			r, err := rs.build()
			if err != nil {
				return nil, fmt.Errorf("%w: %s rule %d: %w", ErrInvalidTable, k, i, err)
			}
			rules = append(rules, r)
		}

		s.dimensions = append(s.dimensions, Dimension{
			Key:   k,
			Label: k.Label(),
			Rules: rules,
		})
	}

	return s, nil
}

func (rs ruleSpec) build() (Rule, error) {
	switch {
	case rs.Pattern != "" && rs.Computed != "":
		return Rule{}, errors.New("rule has both pattern and computed")
	case rs.Computed != "":
		fn, ok := computed[rs.Computed]
		if !ok {
			return Rule{}, fmt.Errorf("unknown computed rule %q", rs.Computed)
		}
		return NewComputed(rs.Computed, fn)
	default:
		return NewPattern(rs.Pattern, rs.Weight, rs.Max, rs.Multiline)
	}
}

// Version is the table format version.
func (s *Set) Version() int { return s.version }

// Dimensions returns the dimensions in scoring order.
func (s *Set) Dimensions() []Dimension {
	out := make([]Dimension, len(s.dimensions))
	copy(out, s.dimensions)
	return out
}

// Rules returns the rules for one dimension, nil for unknown keys.
func (s *Set) Rules(k Key) []Rule {
	for _, d := range s.dimensions {
		if d.Key == k {
			return d.Rules
		}
	}
	return nil
}
