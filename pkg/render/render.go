// Package render formats score reports for terminals and badges.
package render

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/mchmarny/xray/pkg/profile"
	"github.com/mchmarny/xray/pkg/rule"
	"github.com/mchmarny/xray/pkg/score"
)

const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"

	redMax    = 39
	yellowMax = 69

	readyMin   = 70
	partialMin = 50

	labelWidth = 26
	barWidth   = 30

	rankWidth  = 4
	fileWidth  = 28
	dimWidth   = 5
	compWidth  = 9
	nameWidth  = 12
	cellDivide = " │ "
)

var tableHeaders = map[rule.Key]string{
	rule.RoleClarity:         "Role",
	rule.ConstraintDensity:   "Cons",
	rule.HallucinationGuards: "Hall",
	rule.OutputSpecificity:   "Out",
	rule.Testability:         "Test",
	rule.EscapeHatches:       "Esc",
}

// Printer writes human readable reports to w.
type Printer struct {
	w     io.Writer
	color bool
}

// NewPrinter returns a Printer; color enables ANSI escapes.
func NewPrinter(w io.Writer, color bool) *Printer {
	return &Printer{w: w, color: color}
}

func (p *Printer) paint(code, s string) string {
	if !p.color {
		return s
	}
	return code + s + colorReset
}

// ScoreColor is red up to 39, yellow up to 69 and green above.
func ScoreColor(v int) string {
	switch {
	case v <= redMax:
		return colorRed
	case v <= yellowMax:
		return colorYellow
	default:
		return colorGreen
	}
}

// Bar is a fixed width bar filled in proportion to v out of 100.
func Bar(v, width int) string {
	v = max(0, min(100, v))
	filled := (v*width + 50) / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Verdict is a one line summary of a composite score.
func Verdict(composite int) string {
	switch {
	case composite >= readyMin:
		return "Ready for deployment."
	case composite >= partialMin:
		return "Incomplete. Strengthen the weakest dimensions."
	default:
		return "Critical. Major rework needed before deployment."
	}
}

// Chart prints one report as a bar per dimension and the composite.
func (p *Printer) Chart(r *score.Report) error {
	var b strings.Builder

	title := "xray: " + filepath.Base(r.File)
	fmt.Fprintf(&b, "\n%s  (%d words)", p.paint(colorBold, title), r.Words)
	if r.Profile != "" && r.Profile != profile.Balanced {
		fmt.Fprintf(&b, "  profile: %s", r.Profile)
	}
	if r.Strict() {
		b.WriteString("  strict")
	}
	b.WriteString("\n\n")

	for _, k := range rule.Keys() {
		v := r.Scores[k]
		fmt.Fprintf(&b, "  %-*s [%3d] %s", labelWidth, k.Label(), v, p.paint(ScoreColor(v), Bar(v, barWidth)))
		if raw, ok := r.RawScores[k]; ok && raw != v {
			fmt.Fprintf(&b, " (%d→%d)", raw, v)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "  %s\n", strings.Repeat("─", labelWidth+barWidth+8))
	fmt.Fprintf(&b, "  %-*s [%3d] %s\n\n", labelWidth, "Composite", r.Composite,
		p.paint(ScoreColor(r.Composite), Bar(r.Composite, barWidth)))
	fmt.Fprintf(&b, "  %s\n", Verdict(r.Composite))

	for _, k := range rule.Keys() {
		if reason, ok := r.Rationale[k]; ok {
			fmt.Fprintf(&b, "  %s: %s\n", k.Label(), reason)
		}
	}

	_, err := io.WriteString(p.w, b.String())
	return err
}

// Table prints reports ranked by composite with a fleet mean footer. The
// input slice is not reordered.
func (p *Printer) Table(reports []*score.Report) error {
	if len(reports) == 0 {
		return nil
	}

	ranked := make([]*score.Report, len(reports))
	copy(ranked, reports)
	score.Rank(ranked)

	widths := []int{rankWidth, fileWidth}
	headers := []string{pad("Rank", rankWidth, true), pad("File", fileWidth, false)}
	for _, k := range rule.Keys() {
		widths = append(widths, dimWidth)
		headers = append(headers, pad(tableHeaders[k], dimWidth, true))
	}
	widths = append(widths, compWidth)
	headers = append(headers, pad("Composite", compWidth, true))

	seps := make([]string, len(widths))
	for i, w := range widths {
		seps[i] = strings.Repeat("─", w)
	}
	sep := strings.Join(seps, "─┼─")

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n%s\n", strings.Join(headers, cellDivide), sep)

	for i, r := range ranked {
		cells := []string{
			pad(fmt.Sprint(i+1), rankWidth, true),
			pad(truncate(filepath.Base(r.File), fileWidth), fileWidth, false),
		}
		for _, k := range rule.Keys() {
			cells = append(cells, pad(fmt.Sprint(r.Scores[k]), dimWidth, true))
		}
		cells = append(cells, p.paint(ScoreColor(r.Composite), pad(fmt.Sprint(r.Composite), compWidth, true)))
		fmt.Fprintf(&b, "%s\n", strings.Join(cells, cellDivide))
	}

	mean := score.Mean(ranked)
	footer := []string{pad("", rankWidth, true), pad("MEAN", fileWidth, false)}
	for range rule.Keys() {
		footer = append(footer, pad("", dimWidth, true))
	}
	footer = append(footer, p.paint(ScoreColor(mean), pad(fmt.Sprint(mean), compWidth, true)))
	fmt.Fprintf(&b, "%s\n%s\n\n", sep, strings.Join(footer, cellDivide))

	_, err := io.WriteString(p.w, b.String())
	return err
}

// Profiles lists the profiles and their weights.
func (p *Printer) Profiles(set *profile.Set) error {
	var b strings.Builder
	for _, name := range set.Names() {
		pr, err := set.Get(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "%s  %s\n", p.paint(colorBold, pad(name, nameWidth, false)), pr.Description)
		for _, k := range rule.Keys() {
			fmt.Fprintf(&b, "    %-*s %.1f\n", labelWidth, k.Label(), pr.Weights.Weight(k))
		}
	}
	_, err := io.WriteString(p.w, b.String())
	return err
}

func pad(s string, width int, right bool) string {
	n := width - utf8.RuneCountInString(s)
	if n <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", n) + s
	}
	return s + strings.Repeat(" ", n)
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	return string([]rune(s)[:width-1]) + "…"
}
