package format

import (
	"fmt"
	"strings"

	"github.com/FlyingJaffa/pdf2markdown/internal/token"
)

// Count formats an integer with thousands separators.
// Examples: "950", "6,000", "1,234,567"
func Count(n int) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}

	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return sign + s
	}

	var b strings.Builder
	rem := len(s) % 3
	if rem > 0 {
		b.WriteString(s[:rem])
	}
	for i := rem; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return sign + b.String()
}

// SignedCount formats an integer with an explicit sign and thousands
// separators. Examples: "+1,234", "-56", "+0"
func SignedCount(n int) string {
	if n < 0 {
		return Count(n)
	}
	return "+" + Count(n)
}

// TokenStats formats an estimated-vs-actual comparison for display.
// Example: "+12.5% (+750 tokens)"
func TokenStats(estimated, actual int) string {
	percent, absolute := token.Difference(estimated, actual)
	return fmt.Sprintf("%+.1f%% (%s tokens)", percent, SignedCount(absolute))
}
