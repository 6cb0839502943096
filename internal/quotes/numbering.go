package quotes

import (
	"fmt"
	"strings"
)

// DefaultNumberPrefix is used when the account has none configured.
const DefaultNumberPrefix = "QUO"

// FormatNumber renders a quote number as PREFIX-YYYY-SEQ with at least three
// sequence digits.
func FormatNumber(prefix string, year int, seq int64) string {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = DefaultNumberPrefix
	}
	return fmt.Sprintf("%s-%04d-%03d", prefix, year, seq)
}
