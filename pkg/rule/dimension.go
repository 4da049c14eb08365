package rule

import "slices"

// Key identifies one of the six quality dimensions.
type Key string

const (
	RoleClarity         Key = "roleClarity"
	ConstraintDensity   Key = "constraintDensity"
	HallucinationGuards Key = "hallucinationGuards"
	OutputSpecificity   Key = "outputSpecificity"
	Testability         Key = "testability"
	EscapeHatches       Key = "escapeHatches"
)

var (
	keys = []Key{
		RoleClarity,
		ConstraintDensity,
		HallucinationGuards,
		OutputSpecificity,
		Testability,
		EscapeHatches,
	}

	labels = map[Key]string{
		RoleClarity:         "Role Clarity",
		ConstraintDensity:   "Constraint Density",
		HallucinationGuards: "Hallucination Guardrails",
		OutputSpecificity:   "Output Specificity",
		Testability:         "Testability",
		EscapeHatches:       "Escape Hatches",
	}
)

// Keys returns the dimension keys in scoring order.
func Keys() []Key {
	return slices.Clone(keys)
}

// Label returns the human readable dimension name.
func (k Key) Label() string {
	if l, ok := labels[k]; ok {
		return l
	}
	return string(k)
}

// Valid reports whether k is one of the six known dimensions.
func (k Key) Valid() bool {
	_, ok := labels[k]
	return ok
}

// Dimension is one scoring axis and its ordered rules.
type Dimension struct {
	Key   Key
	Label string
	Rules []Rule
}
