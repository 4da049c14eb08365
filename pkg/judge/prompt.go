package judge

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const systemPrompt = `You evaluate AI agent prompt instructions for quality.
Given matched keyword excerpts from a "%s" scan, rate whether these represent:
- Coherent, actionable instructions (1.0)
- Partially meaningful but vague (0.5)
- Keyword stuffing / meaningless filler (0.0)
Respond ONLY with JSON: {"multiplier": <0.0-1.0>, "reasoning": "<one sentence>"}`

var (
	fenceOpenRegEx  = regexp.MustCompile("(?i)^```[a-z]*\\s*")
	fenceCloseRegEx = regexp.MustCompile("\\s*```$")
)

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	Messages    []message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

func newRequest(cfg Config, label string, excerpts []string) completionRequest {
	return completionRequest{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Messages: []message{
			{Role: "system", Content: fmt.Sprintf(systemPrompt, label)},
			{Role: "user", Content: "Dimension: " + label + "\nMatched excerpts:\n" + strings.Join(excerpts, "\n")},
		},
	}
}

// ParseVerdict reads a verdict from completion content. A surrounding code
// fence is tolerated and the multiplier is clamped to [0,1]. A missing or
// non-numeric multiplier is an ErrParse.
func ParseVerdict(content string) (*Verdict, error) {
	s := strings.TrimSpace(content)
	s = fenceOpenRegEx.ReplaceAllString(s, "")
	s = fenceCloseRegEx.ReplaceAllString(s, "")

	var raw struct {
		Multiplier *float64 `json:"multiplier"`
		Reasoning  string   `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if raw.Multiplier == nil {
		return nil, fmt.Errorf("%w: multiplier missing", ErrParse)
	}

	return &Verdict{
		Multiplier: max(0, min(1, *raw.Multiplier)),
		Reasoning:  raw.Reasoning,
	}, nil
}
