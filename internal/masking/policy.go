// Package masking decides whether a named value, or a substring within a
// free-text value, is sensitive, and produces its redacted form. The policy is
// a declarative rule table: a case-insensitive field-name deny-list plus an
// ordered list of compiled value-pattern detectors. Rules are loaded once at
// process start and are immutable afterwards, so a Policy is safe for
// concurrent use.
package masking

import (
	"regexp"
	"strings"
)

// Redaction markers. These are stable literals: they match no detector and no
// field rule, which is what makes sanitization idempotent.
const (
	// FullMask replaces a value matched by a field-name rule or a full-redaction
	// pattern.
	FullMask = "***masked***"
	// RedactedMarker replaces structured values under a sensitive key without
	// descending into them.
	RedactedMarker = "*** REDACTED ***"
	// SanitizedContent is the fail-closed substitute for a document that could
	// not be parsed or traversed.
	SanitizedContent = "*** Sanitized Content ***"
)

// defaultSensitiveFields is the fixed vocabulary of field names that are always
// fully redacted regardless of value shape. Membership is tested on the
// normalized (lowercased, separator-stripped) name.
var defaultSensitiveFields = []string{
	"cardnumber",
	"cvv",
	"securitycode",
	"securitynumber",
	"password",
	"secret",
	"token",
	"key",
	"ssn",
	"socialsecurity",
	"email",
}

// patternRule is one compiled value-pattern detector. The mask function
// receives the matched substring and returns its redacted form.
type patternRule struct {
	name string
	re   *regexp.Regexp
	mask func(match string) string
}

// Policy is the active masking rule set.
type Policy struct {
	fields   map[string]struct{}
	patterns []patternRule
}

// DefaultPolicy builds the policy from the built-in vocabulary and detectors.
func DefaultPolicy() *Policy {
	return newPolicy(nil)
}

func newPolicy(extraFields []string) *Policy {
	fields := make(map[string]struct{}, len(defaultSensitiveFields)+len(extraFields))
	for _, f := range defaultSensitiveFields {
		fields[normalizeFieldName(f)] = struct{}{}
	}
	for _, f := range extraFields {
		if n := normalizeFieldName(f); n != "" {
			fields[n] = struct{}{}
		}
	}
	return &Policy{
		fields:   fields,
		patterns: compiledPatterns(),
	}
}

// IsSensitiveField reports whether the given attribute or document key must be
// fully redacted. Matching is case-insensitive and ignores common separators,
// so "cardNumber", "card_number" and "CARD-NUMBER" all match "cardnumber".
func (p *Policy) IsSensitiveField(name string) bool {
	_, ok := p.fields[normalizeFieldName(name)]
	return ok
}

func normalizeFieldName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch r {
		case '_', '-', ' ', '.':
			continue
		}
		b.WriteRune(unicodeToLower(r))
	}
	return b.String()
}

func unicodeToLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

// Detector ordering matters: the more specific shapes (email, UUID, dashed
// SSN) run before the generic digit-run shapes so that, for example, a UUID's
// numeric segments are never mis-masked as a card number, and a 16-digit card
// is never consumed by the phone detector.
func compiledPatterns() []patternRule {
	return []patternRule{
		{
			name: "email",
			re:   regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
			mask: maskEmail,
		},
		{
			name: "uuid",
			re:   regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`),
			mask: maskUUID,
		},
		{
			name: "ssn-dashed",
			re:   regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
			mask: func(string) string { return FullMask },
		},
		{
			name: "card",
			re:   regexp.MustCompile(`\b\d{13,16}\b`),
			mask: maskCard,
		},
		{
			name: "ssn-bare",
			re:   regexp.MustCompile(`\b\d{9}\b`),
			mask: func(string) string { return FullMask },
		},
		{
			name: "phone",
			re:   regexp.MustCompile(`(?:\+?\d{1,3}[-. ]*)?\(?\d{3}\)?[-. ]*\d{3}[-. ]*\d{4}\b`),
			mask: maskPhone,
		},
	}
}

// maskEmail keeps the first character of the local part and the full domain:
// alice@example.com -> a***@example.com.
func maskEmail(match string) string {
	at := strings.IndexByte(match, '@')
	if at <= 0 {
		return FullMask
	}
	return match[:1] + "***" + match[at:]
}

// maskUUID keeps segments 0 and 4 and masks the middle three, retaining enough
// entropy to correlate the same identifier across dashboards without revealing
// it: d018a23a-1111-2222-3333-aaad0e4a781b -> d018a23a-****-****-****-aaad0e4a781b.
func maskUUID(match string) string {
	segs := strings.Split(match, "-")
	if len(segs) != 5 {
		return FullMask
	}
	return segs[0] + "-****-****-****-" + segs[4]
}

// maskCard keeps the first and last four digits of a 13-16 digit run:
// 4111111111111111 -> 4111********1111.
func maskCard(match string) string {
	if len(match) < 8 {
		return FullMask
	}
	return match[:4] + "********" + match[len(match)-4:]
}

// maskPhone masks every digit except the last four, preserving formatting
// characters so the shape stays recognizable.
func maskPhone(match string) string {
	digits := 0
	for _, r := range match {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	toMask := digits - 4
	if toMask <= 0 {
		return match
	}
	var b strings.Builder
	b.Grow(len(match))
	for _, r := range match {
		if r >= '0' && r <= '9' && toMask > 0 {
			b.WriteByte('*')
			toMask--
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
