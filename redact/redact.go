// Package redact implements best-effort scrubbing of sensitive patterns
// from extracted page text before it leaves the machine.
//
// Patterns are applied in a fixed order: specific shapes (SSN, credit card,
// phone) run before the generic long-digit-run rule so a card number becomes
// [CREDIT_CARD] rather than [NUMBER]. Each pattern is token-bounded; false
// negatives are acceptable, cross-token matches are not.
package redact

import "regexp"

// rule pairs a compiled pattern with its replacement tag.
type rule struct {
	re  *regexp.Regexp
	tag string
}

// rules run in declaration order. Order matters: see package comment.
var rules = []rule{
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[EMAIL]"},
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[SSN]"},
	{regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`), "[CREDIT_CARD]"},
	{regexp.MustCompile(`\b\d{3}[\s-]?\d{3}[\s-]?\d{4}\b`), "[PHONE]"},
	{regexp.MustCompile(`\b\d{10,}\b`), "[NUMBER]"},
	{regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{10,30}\b`), "[IBAN]"},
	{regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`), "[IP_ADDRESS]"},
}

// Redact replaces emails, SSNs, credit card numbers, phone numbers, long
// numeric IDs, IBANs, and IPv4 addresses with bracketed tags.
func Redact(text string) string {
	for _, r := range rules {
		text = r.re.ReplaceAllString(text, r.tag)
	}
	return text
}
