package services

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"promptparty/apperr"
)

const MaxAnswerLength = 200

var scriptPattern = regexp.MustCompile(`(?i)<\s*script|javascript:|\bon[a-z]+\s*=`)

// sanitizeAnswer trims and escapes answer text, rejecting empty, oversized
// or script-bearing input.
func sanitizeAnswer(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperr.New(apperr.CodeValidation, "answer cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxAnswerLength {
		return "", apperr.Newf(apperr.CodeValidation, "answer must be at most %d characters", MaxAnswerLength)
	}
	if scriptPattern.MatchString(content) {
		return "", apperr.New(apperr.CodeValidation, "answer contains disallowed content")
	}
	return html.EscapeString(content), nil
}
