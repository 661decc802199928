package tools

import "fmt"

// DefaultMaxOutput caps captured command output fed back to the model.
const DefaultMaxOutput = 30000

// TruncateOutput caps s at maxChars using a head/tail split so both the
// beginning and the end of the output survive. The returned flag reports
// whether anything was removed.
func TruncateOutput(s string, maxChars int) (string, bool) {
	if maxChars <= 0 {
		maxChars = DefaultMaxOutput
	}
	if len(s) <= maxChars {
		return s, false
	}

	half := maxChars / 2
	removed := len(s) - maxChars
	return s[:half] +
		fmt.Sprintf("\n\n[WARNING: output truncated, %d characters removed from the middle]\n\n", removed) +
		s[len(s)-half:], true
}
