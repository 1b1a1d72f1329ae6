package testsupport

import (
	"strings"
	"testing"
)

// Transcript builds a transcript body of exactly size bytes using a
// repeating pattern. A size <= 0 yields a single byte.
func Transcript(t testing.TB, size int) string {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	const pattern = "meeting transcript line\n"
	var b strings.Builder
	b.Grow(size)
	for b.Len() < size {
		remaining := size - b.Len()
		if remaining >= len(pattern) {
			b.WriteString(pattern)
		} else {
			b.WriteString(pattern[:remaining])
		}
	}
	return b.String()
}
