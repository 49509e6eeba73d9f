package parsing

import "strings"

// NormalizeLines splits raw OCR output into trimmed, non-empty lines. Blank
// lines are dropped entirely, so positions in the returned slice are relative
// to the filtered sequence. Normalizing an already-normalized sequence is a
// no-op.
func NormalizeLines(text string) []string {
	lines := make([]string, 0)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
