// Package chunker splits normalized page text into overlapping windows and
// derives content-addressed identifiers for them.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// idPrefixLen is how much leading chunk text participates in the identity
// hash. Long enough that distinct chunks from the same page collide only when
// they genuinely share their opening text.
const idPrefixLen = 200

// Chunk splits text into segments of at most size characters with overlap
// characters of shared context between consecutive segments. Sizes count
// runes, not bytes, so window edges never split a multi-byte character.
// Window edges that fall inside the text are pulled back to the nearest
// sentence terminator, provided it sits past the window midpoint. Whitespace
// is collapsed first; empty segments are dropped.
//
// overlap values at or above size are clamped to size-1, and the loop always
// advances even when boundary snapping shortens a window below the overlap.
func Chunk(text string, size, overlap int) []string {
	runes := []rune(Normalize(text))
	if len(runes) == 0 {
		return nil
	}
	if size <= 0 {
		return []string{string(runes)}
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	if len(runes) <= size {
		return []string{string(runes)}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end < len(runes) {
			if boundary := lastSentenceEnd(runes, start, end); boundary > start+size/2 {
				end = boundary + 1
			}
		} else {
			end = len(runes)
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// IDFor derives a deterministic identifier from a chunk's source URL and its
// leading text. The same chunk re-crawled later maps to the same id, which is
// what makes corpus rebuilds idempotent. The prefix is measured in runes so
// non-ASCII text never hashes a partial character.
func IDFor(url, text string) string {
	prefix := text
	if runes := []rune(text); len(runes) > idPrefixLen {
		prefix = string(runes[:idPrefixLen])
	}
	sum := sha256.Sum256([]byte(url + "||" + prefix))
	return hex.EncodeToString(sum[:])
}

// Normalize collapses runs of whitespace to single spaces and trims the ends.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// lastSentenceEnd returns the index of the last '.', '!' or '?' in
// runes[start:end), or -1 when none exists.
func lastSentenceEnd(runes []rune, start, end int) int {
	for i := end - 1; i >= start; i-- {
		switch runes[i] {
		case '.', '!', '?':
			return i
		}
	}
	return -1
}
