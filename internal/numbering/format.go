package numbering

import (
	"fmt"
	"strings"
)

// PadCounter left-pads the counter with zeros to the configured width.
// Padding only ever adds digits: a counter wider than the configured width is
// kept whole, never truncated.
func PadCounter(counter int64, digitCount int) string {
	if digitCount < 0 {
		digitCount = 0
	}
	return fmt.Sprintf("%0*d", digitCount, counter)
}

// FormatReference substitutes {PREFIX} then {COUNTER} into the template, one
// occurrence each. A template repeating a placeholder keeps the extra
// occurrences literal; that mirrors the historical single find-and-replace
// behaviour documents already in the wild depend on.
func FormatReference(cfg Config) string {
	ref := strings.Replace(cfg.Format, PlaceholderPrefix, cfg.Prefix, 1)
	ref = strings.Replace(ref, PlaceholderCounter, PadCounter(cfg.Counter, cfg.DigitCount), 1)
	return ref
}
