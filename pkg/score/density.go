package score

import "strings"

const (
	sparseWords = 5
	thinWords   = 10

	sparseMultiplier = 0.0
	thinMultiplier   = 0.3
	fullMultiplier   = 1.0
)

// span is a half-open byte range of the source text.
type span struct {
	start, end int
}

// sentences splits text on a newline, or on '.', '!' or '?' followed by
// whitespace. Terminal punctuation stays with its sentence.
func sentences(text string) []span {
	var out []span
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			out = append(out, span{start, i})
			start = i + 1
		case '.', '!', '?':
			if i+1 < len(text) && isSpace(text[i+1]) {
				out = append(out, span{start, i + 1})
				start = i + 1
			}
		}
	}
	if start < len(text) {
		out = append(out, span{start, len(text)})
	}
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}

// WordCount counts whitespace separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// DensityMultiplier discounts a match at the given byte offset by the word
// count of its enclosing sentence: under 5 words yields 0, under 10 yields
// 0.3, anything longer yields 1. An offset outside every sentence is not
// discounted.
func DensityMultiplier(text string, offset int) float64 {
	for _, s := range sentences(text) {
		if offset < s.start || offset >= s.end {
			continue
		}
		return multiplierFor(WordCount(text[s.start:s.end]))
	}
	return fullMultiplier
}

func multiplierFor(words int) float64 {
	switch {
	case words < sparseWords:
		return sparseMultiplier
	case words < thinWords:
		return thinMultiplier
	default:
		return fullMultiplier
	}
}
