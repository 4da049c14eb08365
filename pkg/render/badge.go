package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"math"
	"strconv"
)

const (
	// DefaultBadgeLabel is the left hand text of a badge.
	DefaultBadgeLabel = "xray"

	badgeGreen  = "#44cc11"
	badgeYellow = "#dfb317"
	badgeRed    = "#e05d44"

	badgeGreenMin  = 70
	badgeYellowMin = 40

	charWidth    = 6.5
	badgePadding = 10
)

var (
	//go:embed templates/*
	templateFS embed.FS

	badgeTemplate = template.Must(template.ParseFS(templateFS, "templates/badge.svg"))
)

type badge struct {
	Label       string
	Value       string
	Color       string
	Width       int
	LeftWidth   int
	RightWidth  int
	LeftCenter  int
	RightCenter int
	LeftText    int
	RightText   int
}

// BadgeColor is green from 70, yellow from 40 and red below.
func BadgeColor(v int) string {
	switch {
	case v >= badgeGreenMin:
		return badgeGreen
	case v >= badgeYellowMin:
		return badgeYellow
	default:
		return badgeRed
	}
}

func round(f float64) int {
	return int(math.Round(f))
}

// Badge writes a shields style SVG badge for a composite score.
func Badge(w io.Writer, v int, label string) error {
	if label == "" {
		label = DefaultBadgeLabel
	}
	value := strconv.Itoa(v)

	left := round(float64(len(label))*charWidth) + badgePadding
	right := round(float64(len(value))*charWidth) + badgePadding

	b := badge{
		Label:       label,
		Value:       value,
		Color:       BadgeColor(v),
		Width:       left + right,
		LeftWidth:   left,
		RightWidth:  right,
		LeftCenter:  round(float64(left) / 2 * 10),
		RightCenter: round((float64(left) + float64(right)/2) * 10),
		LeftText:    max(1, round((float64(len(label))*charWidth-2)*10)),
		RightText:   max(1, round((float64(len(value))*charWidth-2)*10)),
	}

	if err := badgeTemplate.ExecuteTemplate(w, "badge.svg", b); err != nil {
		return fmt.Errorf("rendering badge: %w", err)
	}
	return nil
}
