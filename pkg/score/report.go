package score

import (
	"math"
	"sort"

	"github.com/mchmarny/xray/pkg/rule"
)

// State tracks a document through the scoring pipeline.
type State int

const (
	Unscored State = iota
	HeuristicsApplied
	Refined
	Finalized
)

func (s State) String() string {
	switch s {
	case Unscored:
		return "unscored"
	case HeuristicsApplied:
		return "heuristics-applied"
	case Refined:
		return "refined"
	case Finalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// DimensionScore is the clamped raw score of one dimension and the source
// lines of the matches that produced it.
type DimensionScore struct {
	Score    int
	Evidence []string
}

// Report is the scoring result for one document.
type Report struct {
	File      string                `json:"file,omitempty" yaml:"file,omitempty"`
	Scores    map[rule.Key]int      `json:"scores" yaml:"scores"`
	Composite int                   `json:"composite" yaml:"composite"`
	Profile   string                `json:"profile" yaml:"profile"`
	Lines     int                   `json:"lines" yaml:"lines"`
	Words     int                   `json:"words" yaml:"words"`
	Evidence  map[rule.Key][]string `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	RawScores map[rule.Key]int      `json:"rawScores,omitempty" yaml:"rawScores,omitempty"`
	Rationale map[rule.Key]string   `json:"strictReasoning,omitempty" yaml:"strictReasoning,omitempty"`
	State     State                 `json:"-" yaml:"-"`
}

// Strict reports whether a refinement pass ran on the report.
func (r *Report) Strict() bool {
	return len(r.RawScores) > 0
}

// Rank sorts reports by composite, highest first. Ties keep input order.
func Rank(reports []*Report) {
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Composite > reports[j].Composite
	})
}

// Mean is the rounded average composite, 0 for an empty fleet.
func Mean(reports []*Report) int {
	if len(reports) == 0 {
		return 0
	}
	sum := 0
	for _, r := range reports {
		sum += r.Composite
	}
	return int(math.Round(float64(sum) / float64(len(reports))))
}
