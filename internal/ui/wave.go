package ui

import "strings"

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders levels in [0,1] as block characters, oldest first.
// The result is exactly width runes: older values are dropped and missing
// ones are padded with the lowest block on the left.
func Sparkline(levels []float32, width int) string {
	if width <= 0 {
		return ""
	}
	if len(levels) > width {
		levels = levels[len(levels)-width:]
	}

	var b strings.Builder
	for i := len(levels); i < width; i++ {
		b.WriteRune(sparkRunes[0])
	}
	top := len(sparkRunes) - 1
	for _, v := range levels {
		switch {
		case v <= 0 || v != v:
			v = 0
		case v > 1:
			v = 1
		}
		b.WriteRune(sparkRunes[int(v*float32(top)+0.5)])
	}
	return b.String()
}

// LevelMeter renders a single level as a bar of barLen cells.
func LevelMeter(level float32, barLen int) string {
	filled := int(level * float32(barLen))
	if filled > barLen {
		filled = barLen
	}

	var b strings.Builder
	for i := 0; i < barLen; i++ {
		if i < filled {
			if float32(i)/float32(barLen) > 0.6 {
				b.WriteString(LevelHighStyle.Render("█"))
			} else {
				b.WriteString(LevelLowStyle.Render("█"))
			}
		} else {
			b.WriteString(LevelEmptyStyle.Render("░"))
		}
	}
	return b.String()
}
