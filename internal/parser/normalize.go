package parser

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalization selects a Unicode normalization form for extracted text.
type Normalization string

const (
	NormalizeNone Normalization = "none"
	NormalizeNFC  Normalization = "nfc"
	NormalizeNFKC Normalization = "nfkc"
)

// ParseNormalization converts a config value into a Normalization. The empty
// string means none.
func ParseNormalization(s string) (Normalization, error) {
	switch n := Normalization(strings.ToLower(strings.TrimSpace(s))); n {
	case "", NormalizeNone:
		return NormalizeNone, nil
	case NormalizeNFC, NormalizeNFKC:
		return n, nil
	default:
		return "", fmt.Errorf("unknown normalization %q (want none, nfc or nfkc)", s)
	}
}

// Apply normalizes text.
func (n Normalization) Apply(text string) string {
	switch n {
	case NormalizeNFC:
		return norm.NFC.String(text)
	case NormalizeNFKC:
		return norm.NFKC.String(text)
	default:
		return text
	}
}
