// Package segment splits long text into bounded chunks for a synthesis
// engine with input-length limits.
package segment

import (
	"strings"
	"unicode"
)

// Split divides text into chunks of at most maxLen runes, cutting on the
// best available boundary: the last sentence terminal inside the window,
// else the last whitespace, else a hard cut at maxLen. Chunks are trimmed
// and empty chunks dropped. Split is a pure function.
func Split(text string, maxLen int) []string {
	if maxLen <= 0 {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(runes) > maxLen {
		end := cutPoint(runes, maxLen)

		chunk := strings.TrimSpace(string(runes[:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		// Drop the consumed prefix including the boundary whitespace.
		for end < len(runes) && unicode.IsSpace(runes[end]) {
			end++
		}
		runes = runes[end:]
	}

	if rest := strings.TrimSpace(string(runes)); rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}

// cutPoint finds the chunk end within the window [0, maxLen] of runes.
func cutPoint(runes []rune, maxLen int) int {
	// Prefer the last sentence terminal followed by whitespace. The
	// terminal itself stays inside the chunk.
	for i := maxLen - 1; i >= 0; i-- {
		if isSentenceTerminal(runes[i]) && unicode.IsSpace(runes[i+1]) {
			return i + 1
		}
	}

	// Next, the last whitespace boundary in the window.
	for i := maxLen; i >= 1; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}

	// A single token longer than maxLen: hard cut. Operating on runes
	// keeps the cut from landing inside a multi-byte character.
	return maxLen
}

// isSentenceTerminal reports whether r ends a sentence.
func isSentenceTerminal(r rune) bool {
	return r == '.' || r == '?' || r == '!'
}
