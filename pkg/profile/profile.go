// Package profile holds the named weight presets used to aggregate
// dimension scores into a composite.
package profile

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/mchmarny/xray/pkg/rule"
	"gopkg.in/yaml.v3"
)

// Balanced is the default profile, all dimensions weigh 1.0.
const Balanced = "balanced"

const maxScore = 100

var (
	//go:embed presets.yaml
	presets []byte

	// ErrUnknownProfile is returned when a requested profile does not exist.
	ErrUnknownProfile = errors.New("unknown profile")

	// ErrInvalidWeights is returned for weight vectors with unknown
	// dimensions or non-positive values.
	ErrInvalidWeights = errors.New("invalid profile weights")

	defaultSet = sync.OnceValues(func() (*Set, error) {
		return Parse(presets)
	})
)

// ConfigError reports a configuration problem detected before scoring.
type ConfigError struct {
	Profile   string
	Available []string
	Err       error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v %q (available: %s)", e.Err, e.Profile, strings.Join(e.Available, ", "))
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Weights maps dimensions to composite multipliers.
type Weights map[rule.Key]float64

// Weight returns the multiplier for k, 1.0 when k is not set.
func (w Weights) Weight(k rule.Key) float64 {
	if v, ok := w[k]; ok {
		return v
	}
	return 1.0
}

// Composite is the weighted score normalized against the per-dimension
// maximum, so it stays within [0,100] when every score does.
func (w Weights) Composite(scores map[rule.Key]int) int {
	var sum, total float64
	for _, k := range rule.Keys() {
		wt := w.Weight(k)
		sum += float64(scores[k]) * wt
		total += maxScore * wt
	}
	if total == 0 {
		return 0
	}
	return int(math.Round(sum / total * maxScore))
}

func (w Weights) validate() error {
	for k, v := range w {
		if !k.Valid() {
			return fmt.Errorf("%w: unknown dimension %q", ErrInvalidWeights, k)
		}
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidWeights, k, v)
		}
	}
	return nil
}

// Profile is a named weight preset.
type Profile struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Weights     Weights `json:"weights" yaml:"weights"`
}

// Set is an immutable collection of profiles.
type Set struct {
	profiles map[string]Profile
}

type presetSpec struct {
	Description string             `yaml:"description"`
	Weights     map[string]float64 `yaml:"weights"`
}

// Default returns the presets shipped with the binary.
func Default() (*Set, error) {
	return defaultSet()
}

// Parse reads profiles from YAML keyed by profile name.
func Parse(b []byte) (*Set, error) {
	var specs map[string]presetSpec
	if err := yaml.Unmarshal(b, &specs); err != nil {
		return nil, fmt.Errorf("parsing profiles: %w", err)
	}

	s := &Set{profiles: make(map[string]Profile, len(specs))}
	for name, spec := range specs {
		p, err := newProfile(name, spec.Description, spec.Weights)
		if err != nil {
			return nil, err
		}
		s.profiles[name] = p
	}

	if _, ok := s.profiles[Balanced]; !ok {
		return nil, fmt.Errorf("%w: %s preset is required", ErrInvalidWeights, Balanced)
	}
	return s, nil
}

func newProfile(name, desc string, raw map[string]float64) (Profile, error) {
	if strings.TrimSpace(name) == "" {
		return Profile{}, fmt.Errorf("%w: empty profile name", ErrInvalidWeights)
	}
	w := make(Weights, len(raw))
	for k, v := range raw {
		w[rule.Key(k)] = v
	}
	if err := w.validate(); err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", name, err)
	}
	return Profile{Name: name, Description: desc, Weights: w}, nil
}

// With returns a new Set that also holds the custom profiles. Custom
// profiles may not replace an existing one.
func (s *Set) With(custom map[string]map[string]float64) (*Set, error) {
	out := &Set{profiles: make(map[string]Profile, len(s.profiles)+len(custom))}
	for n, p := range s.profiles {
		out.profiles[n] = p
	}
	for name, raw := range custom {
		if _, exists := out.profiles[name]; exists {
			return nil, fmt.Errorf("%w: profile %s already defined", ErrInvalidWeights, name)
		}
		p, err := newProfile(name, "custom", raw)
		if err != nil {
			return nil, err
		}
		out.profiles[name] = p
	}
	return out, nil
}

// Names returns the profile names, balanced first and the rest sorted.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.profiles))
	for n := range s.profiles {
		if n != Balanced {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return append([]string{Balanced}, names...)
}

// Get returns the named profile or a *ConfigError.
func (s *Set) Get(name string) (Profile, error) {
	p, ok := s.profiles[name]
	if !ok {
		return Profile{}, &ConfigError{
			Profile:   name,
			Available: s.Names(),
			Err:       ErrUnknownProfile,
		}
	}
	return p, nil
}

// Composite scores with the named profile.
func (s *Set) Composite(scores map[rule.Key]int, name string) (int, error) {
	p, err := s.Get(name)
	if err != nil {
		return 0, err
	}
	return p.Weights.Composite(scores), nil
}
