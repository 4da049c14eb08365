// Package judge asks an external chat-completions service whether the
// evidence behind a dimension score is real instruction or filler.
package judge

import (
	"context"
	"errors"
)

const (
	// MaxExcerpts is the number of distinct excerpts sent per dimension.
	MaxExcerpts = 20

	// FailedRationale is recorded when a dimension could not be judged.
	FailedRationale = "evaluation failed, using raw score"
)

var (
	// ErrTransport is returned when the service could not be reached or
	// answered with a non-2xx status.
	ErrTransport = errors.New("judge transport error")

	// ErrParse is returned when the service answered with content that is
	// not a verdict.
	ErrParse = errors.New("judge parse error")
)

// Verdict is the judged quality of one dimension's evidence.
type Verdict struct {
	Multiplier float64 `json:"multiplier"`
	Reasoning  string  `json:"reasoning"`
}

// Judge rates evidence excerpts for the labeled dimension.
type Judge interface {
	Judge(ctx context.Context, label string, excerpts []string) (*Verdict, error)
}

// Excerpts removes duplicates, keeping first occurrences, and caps the
// result at MaxExcerpts.
func Excerpts(evidence []string) []string {
	seen := make(map[string]struct{}, len(evidence))
	out := make([]string, 0, min(len(evidence), MaxExcerpts))
	for _, e := range evidence {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
		if len(out) == MaxExcerpts {
			break
		}
	}
	return out
}
