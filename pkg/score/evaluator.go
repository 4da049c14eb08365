package score

import (
	"math"
	"strings"

	"github.com/mchmarny/xray/pkg/rule"
)

const (
	minScore = 0
	maxScore = 100
)

// Evaluator applies rules to document text. The zero value counts every
// match at full weight; DensityFilter discounts matches in short sentences.
type Evaluator struct {
	DensityFilter bool
}

// Evaluate scores text against one dimension's rules. Pattern rules count
// at most MaxApply matches in document order and record the source line of
// each counted match. Computed rules add their value as is. The sum is
// rounded and clamped to [0,100]. Evaluate never fails.
func (e Evaluator) Evaluate(text string, rules []rule.Rule) DimensionScore {
	var (
		sum      float64
		evidence []string
	)

	for _, r := range rules {
		switch r.Kind() {
		case rule.KindComputed:
			sum += r.Compute(text)
		case rule.KindPattern:
			if r.Pattern() == nil {
				continue
			}
			for _, loc := range r.Pattern().FindAllStringIndex(text, r.MaxApply()) {
				m := 1.0
				if e.DensityFilter {
					m = DensityMultiplier(text, loc[0])
				}
				sum += r.Weight() * m
				evidence = append(evidence, lineAt(text, loc[0]))
			}
		}
	}

	return DimensionScore{
		Score:    clamp(int(math.Round(sum))),
		Evidence: evidence,
	}
}

// lineAt returns the trimmed line containing the byte at offset.
func lineAt(text string, offset int) string {
	start := strings.LastIndexByte(text[:offset], '\n') + 1
	end := len(text)
	if i := strings.IndexByte(text[offset:], '\n'); i >= 0 {
		end = offset + i
	}
	return strings.TrimSpace(text[start:end])
}

func clamp(v int) int {
	return max(minScore, min(maxScore, v))
}
