package rag

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Comment forms stripped during normalization. Line-based forms only match
// whole-line or trailing comments; block comments may span lines.
var (
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineCommentRe  = regexp.MustCompile(`(?m)//[^\n]*`)
	hashCommentRe  = regexp.MustCompile(`(?m)#[^\n]*`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
)

// NormalizeContent canonicalizes chunk text for duplicate detection:
// comments stripped, case folded, whitespace collapsed, trimmed. Two spans
// that differ only in comments, casing, or formatting normalize identically.
func NormalizeContent(text string) string {
	s := blockCommentRe.ReplaceAllString(text, " ")
	s = lineCommentRe.ReplaceAllString(s, " ")
	s = hashCommentRe.ReplaceAllString(s, " ")
	s = strings.ToLower(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// HashContent computes the span hash: SHA-256 over the UTF-8 bytes of the
// normalized text. A cryptographic digest replaces any length or
// character-count heuristic, which collides far too easily on real code.
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(NormalizeContent(text)))
	return hex.EncodeToString(sum[:])
}
