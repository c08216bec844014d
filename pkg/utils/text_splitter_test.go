package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitTextShortInputIsSingleChunk(t *testing.T) {
	chunks := SplitText("short text", 100, 20)

	assert.Equal(t, []string{"short text"}, chunks)
}

func TestSplitTextOverlapPreservesContext(t *testing.T) {
	text := strings.Repeat("abcdefghij", 30)
	chunks := SplitText(text, 100, 20)

	assert.Greater(t, len(chunks), 1)
	// Consecutive chunks start 80 runes apart, so each shares its first 20
	// runes with the previous chunk's tail region.
	assert.Equal(t, text[80:100], chunks[1][:20])
}

func TestSplitTextBreaksAtSentenceBoundary(t *testing.T) {
	sentence := "The agreement terminates after thirty days. "
	text := strings.Repeat(sentence, 10)
	chunks := SplitText(text, 100, 20)

	assert.Greater(t, len(chunks), 1)
	words := []string{"The", "agreement", "terminates", "after", "thirty", "days."}
	for _, c := range chunks[:len(chunks)-1] {
		trimmed := strings.TrimRight(c, " ")
		ended := false
		for _, w := range words {
			if strings.HasSuffix(trimmed, w) {
				ended = true
				break
			}
		}
		assert.True(t, ended, "chunk should end on a word boundary, got %q", trimmed[len(trimmed)-10:])
	}
}

func TestSplitTextNoTextLostAfterBoundaryTrim(t *testing.T) {
	// A sentence break early in the final quarter of the first window makes
	// the trim cut far back; the text right after that break must still land
	// in a chunk instead of falling between the first chunk's end and the
	// second chunk's start.
	head := strings.Repeat("a", 1150) + "."
	marker := "LIABILITY-CLAUSE-" + strings.Repeat("b", 132)
	tail := strings.Repeat("c", 1000)

	chunks := SplitText(head+marker+tail, 1500, 200)

	found := false
	for _, c := range chunks {
		if strings.Contains(c, marker) {
			found = true
			break
		}
	}
	assert.True(t, found, "segment after the trimmed boundary must appear in some chunk")
}

func TestSplitTextDegenerateOverlapStillTerminates(t *testing.T) {
	text := strings.Repeat("x", 250)
	chunks := SplitText(text, 100, 100)

	assert.Len(t, chunks, 3)
}
