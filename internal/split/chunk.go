package split

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the target chunk length when none is configured.
const DefaultChunkSize = 30000

// ChunkText partitions text into chunks near the target size, preferring to
// break at a blank line, then at a single newline, then with a hard cut if
// no natural boundary exists within half the target of the cut point. The
// chunks are a lossless partition: concatenating them reproduces the input.
func ChunkText(text string, target int) []string {
	if target <= 0 {
		target = DefaultChunkSize
	}

	var chunks []string
	for len(text) > target {
		cut := boundaryCut(text, target)
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if len(text) > 0 {
		chunks = append(chunks, text)
	}
	return chunks
}

// boundaryCut finds the cut position at or before target, scanning back no
// further than target/2.
func boundaryCut(text string, target int) int {
	windowStart := target - target/2
	window := text[windowStart:target]

	if i := strings.LastIndex(window, "\n\n"); i >= 0 {
		return windowStart + i + 2
	}
	if i := strings.LastIndex(window, "\n"); i >= 0 {
		return windowStart + i + 1
	}

	// Hard cut: back up to a rune boundary so a multi-byte character is
	// never split across chunks.
	cut := target
	for cut > windowStart && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return cut
}
