package rule

import (
	"errors"
	"fmt"
	"regexp"
)

// Kind is the rule variant tag.
type Kind int

const (
	// KindPattern rules score regex matches.
	KindPattern Kind = iota
	// KindComputed rules derive a value from the whole text.
	KindComputed
)

func (k Kind) String() string {
	switch k {
	case KindPattern:
		return "pattern"
	case KindComputed:
		return "computed"
	default:
		return "unknown"
	}
}

// ComputeFunc returns a score contribution for the full document text.
// It must be pure.
type ComputeFunc func(text string) float64

// Rule is a single heuristic. The zero value is not usable, build rules
// with NewPattern or NewComputed.
type Rule struct {
	kind     Kind
	name     string
	pattern  *regexp.Regexp
	weight   float64
	maxApply int
	compute  ComputeFunc
}

// NewPattern compiles a case-insensitive pattern rule. Multiline makes ^ and $
// match at line boundaries.
func NewPattern(expr string, weight float64, maxApply int, multiline bool) (Rule, error) {
	if expr == "" {
		return Rule{}, errors.New("pattern is required")
	}
	if maxApply < 1 {
		return Rule{}, fmt.Errorf("pattern %q: max apply must be positive, got %d", expr, maxApply)
	}

	flags := "(?i)"
	if multiline {
		flags = "(?im)"
	}

	re, err := regexp.Compile(flags + expr)
	if err != nil {
		return Rule{}, fmt.Errorf("compiling pattern %q: %w", expr, err)
	}

	return Rule{
		kind:     KindPattern,
		name:     expr,
		pattern:  re,
		weight:   weight,
		maxApply: maxApply,
	}, nil
}

// NewComputed wraps fn as a computed rule.
func NewComputed(name string, fn ComputeFunc) (Rule, error) {
	if name == "" {
		return Rule{}, errors.New("computed rule name is required")
	}
	if fn == nil {
		return Rule{}, fmt.Errorf("computed rule %q: function is nil", name)
	}
	return Rule{
		kind:    KindComputed,
		name:    name,
		compute: fn,
	}, nil
}

func (r Rule) Kind() Kind { return r.kind }

// Name is the source expression for pattern rules and the registered name
// for computed ones.
func (r Rule) Name() string { return r.name }

func (r Rule) Pattern() *regexp.Regexp { return r.pattern }

func (r Rule) Weight() float64 { return r.weight }

func (r Rule) MaxApply() int { return r.maxApply }

// Compute evaluates a computed rule. Pattern rules return 0.
func (r Rule) Compute(text string) float64 {
	if r.kind != KindComputed || r.compute == nil {
		return 0
	}
	return r.compute(text)
}
