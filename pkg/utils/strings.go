// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package utils

import (
	"regexp"
	"strings"
)

var whitespaceRe = regexp.MustCompile(`\s+`)
var spaceBeforePunctRe = regexp.MustCompile(`\s+([.,!?])`)

// IsEmpty reports whether s contains no non-whitespace characters.
func IsEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// NormalizeParagraph collapses a model response into a single clean
// paragraph: newlines become spaces, runs of whitespace collapse, and
// stray spaces before punctuation are removed.
func NormalizeParagraph(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\n", " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = spaceBeforePunctRe.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// EnsureSentenceEnding appends a period when the text does not already end
// with terminal punctuation. Speech synthesis providers produce clipped
// audio on unterminated sentences.
func EnsureSentenceEnding(s string) string {
	s = strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
	if s == "" {
		return s
	}
	last := s[len(s)-1]
	if last != '.' && last != '!' && last != '?' {
		s += "."
	}
	return s
}
