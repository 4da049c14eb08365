package rule

import (
	"regexp"
	"sort"
	"strings"
)

const (
	shortDocumentLines   = 50
	shortDocumentPenalty = -10

	sectionBulletCap    = 5
	sectionBulletPoints = 4
)

var (
	constraintHeadingRegEx = regexp.MustCompile(`(?i)^#+\s+(Rules|Constraints|Restrictions)`)
	bulletRegEx            = regexp.MustCompile(`^\s*-\s+`)

	computed = map[string]ComputeFunc{
		"short-document-penalty":     shortDocument,
		"constraint-section-bullets": constraintSectionBullets,
	}
)

// ComputedNames lists the registered computed rule names.
func ComputedNames() []string {
	names := make([]string, 0, len(computed))
	for n := range computed {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LineCount counts newline separated lines; empty text is one line.
func LineCount(text string) int {
	return strings.Count(text, "\n") + 1
}

func shortDocument(text string) float64 {
	if LineCount(text) < shortDocumentLines {
		return shortDocumentPenalty
	}
	return 0
}

// constraintSectionBullets counts "- " items under a Rules, Constraints or
// Restrictions heading until the next heading.
func constraintSectionBullets(text string) float64 {
	inSection := false
	count := 0
	for _, line := range strings.Split(text, "\n") {
		if constraintHeadingRegEx.MatchString(line) {
			inSection = true
			continue
		}
		if inSection && strings.HasPrefix(strings.TrimSpace(line), "#") {
			inSection = false
		}
		if inSection && bulletRegEx.MatchString(line) {
			count++
		}
	}
	return float64(min(count, sectionBulletCap) * sectionBulletPoints)
}
