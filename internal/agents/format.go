package agents

import (
	"fmt"
	"strings"
)

// formatMoney renders a currency amount with dot thousand separators
// and comma decimals, matching the es-AR convention of the dataset.
func formatMoney(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%.2f", v)
	parts := strings.SplitN(s, ".", 2)
	intPart, fracPart := parts[0], parts[1]

	var b strings.Builder
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}

	out := "$" + b.String() + "," + fracPart
	if neg {
		out = "-" + out
	}
	return out
}
