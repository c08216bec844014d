package utils

// SplitText splits a long string into chunks of roughly chunkSize characters
// with an overlap between neighbors so context survives the boundary.
// Character-based, not tokenizer-aware. Every character of the input lands in
// at least one chunk: the next chunk starts relative to where the previous one
// actually ended, including any boundary trim.
func SplitText(text string, chunkSize int, overlap int) []string {
	if len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	totalLen := len(runes)

	i := 0
	for {
		end := i + chunkSize
		if end >= totalLen {
			chunks = append(chunks, string(runes[i:totalLen]))
			break
		}

		cut := i + trimToBoundary(runes[i:end])
		if cut <= i {
			cut = end
		}
		chunks = append(chunks, string(runes[i:cut]))

		next := cut - overlap
		if next <= i {
			// Overlap would stall or rewind; restart at the cut instead.
			next = cut
		}
		i = next
	}

	return chunks
}

// trimToBoundary returns how many runes of chunk to keep, cutting back to the
// last sentence or word boundary so we do not split words in half. Keeps the
// whole chunk when no break point exists in its final quarter.
func trimToBoundary(chunk []rune) int {
	minKeep := len(chunk) * 3 / 4

	for i := len(chunk) - 1; i >= minKeep; i-- {
		if chunk[i] == '.' || chunk[i] == '\n' {
			return i + 1
		}
	}
	for i := len(chunk) - 1; i >= minKeep; i-- {
		if chunk[i] == ' ' {
			return i
		}
	}
	return len(chunk)
}
