package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatNumber renders n with thousands separators for embed display.
func FormatNumber(n int64) string {
	str := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(str, "-")
	if neg {
		str = str[1:]
	}

	var b strings.Builder
	lead := len(str) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(str[:lead])
	for i := lead; i < len(str); i += 3 {
		b.WriteByte(',')
		b.WriteString(str[i : i+3])
	}

	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// ProgressBar renders a fixed-width quest progress bar, e.g. ▰▰▰▱▱▱▱▱.
func ProgressBar(progress, target int64, width int) string {
	if width <= 0 {
		width = 8
	}
	if target <= 0 {
		target = 1
	}
	filled := int(int64(width) * progress / target)
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("▰", filled) + strings.Repeat("▱", width-filled)
}

// FormatKD renders a kill/death ratio, flooring deaths at one so fresh
// players don't divide by zero.
func FormatKD(kills, deaths int64) string {
	if deaths < 1 {
		deaths = 1
	}
	return fmt.Sprintf("%.2f", float64(kills)/float64(deaths))
}
