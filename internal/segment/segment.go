// Package segment slices a growing text stream into speakable sentences.
package segment

import (
	"strings"
	"unicode"
)

// Result is the outcome of one extraction pass.
type Result struct {
	Sentences []string
	// NewIndex is the byte offset into the full text up to which input
	// has been consumed. Pass it back as lastIndex on the next call.
	NewIndex int
}

// ExtractSentences returns the complete sentences found in
// fullText[lastIndex:]. A sentence ends at a run of '.', '!' or '?' that is
// followed by whitespace or the end of the text; a terminator run followed by
// anything else ("3.5", "v1.2") stays inside the sentence. A trailing
// incomplete sentence is left unconsumed unless isFinal is set, in which case
// it is emitted too and NewIndex becomes len(fullText).
//
// Sentences are trimmed, and fragments with no letter or digit, or with a
// trimmed length of one character, are dropped.
func ExtractSentences(fullText string, lastIndex int, isFinal bool) Result {
	if lastIndex < 0 {
		lastIndex = 0
	}
	if lastIndex > len(fullText) {
		lastIndex = len(fullText)
	}

	text := fullText[lastIndex:]
	res := Result{Sentences: []string{}, NewIndex: lastIndex}

	start := 0
	consumed := 0
	for i := 0; i < len(text); {
		if !isTerminator(text[i]) {
			i++
			continue
		}

		runEnd := i
		for runEnd < len(text) && isTerminator(text[runEnd]) {
			runEnd++
		}

		if runEnd == len(text) || isSpaceAt(text, runEnd) {
			// Bare punctuation with no body is consumed and dropped.
			if hasBody(text[start:i]) {
				res.add(text[start:runEnd])
			}
			consumed = runEnd
			start = runEnd
		}
		i = runEnd
	}

	if isFinal {
		res.add(text[consumed:])
		consumed = len(text)
	}

	res.NewIndex = lastIndex + consumed
	return res
}

func (r *Result) add(raw string) {
	if s := strings.TrimSpace(raw); !IsJunk(s) {
		r.Sentences = append(r.Sentences, s)
	}
}

// IsJunk reports whether text is too short or carries no letter or digit in
// any script.
func IsJunk(text string) bool {
	text = strings.TrimSpace(text)
	if len([]rune(text)) <= 1 {
		return true
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func isTerminator(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

func isSpaceAt(s string, i int) bool {
	for _, r := range s[i:] {
		return unicode.IsSpace(r)
	}
	return false
}

func hasBody(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isTerminator(s[i]) {
			return true
		}
	}
	return false
}
