// Package normalizers provides field normalization functions used when
// comparing record fields across collections.
package normalizers

import (
	"strings"
	"unicode"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	Register("lowercase", Lowercase)
	Register("trim", Trim)
	Register("nemail", NormalizeEmail)
	Register("nname", NormalizeName)
	Register("nphone", NormalizePhone)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Apply applies a named normalizer to a value
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeEmail normalizes an email address (lowercase, trim). Email
// comparison during link resolution is case-insensitive.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeName lowercases a display name and collapses runs of
// whitespace and punctuation.
func NormalizeName(s string) string {
	s = strings.ToLower(s)

	var result strings.Builder
	prevSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
			prevSpace = false
		} else if unicode.IsSpace(r) {
			if !prevSpace {
				result.WriteRune(' ')
				prevSpace = true
			}
		}
	}

	return strings.TrimSpace(result.String())
}

// NormalizePhone removes all non-digit characters from a phone number
func NormalizePhone(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}
