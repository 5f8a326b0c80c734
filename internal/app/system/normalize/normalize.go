// Package normalize canonicalizes user-supplied identifiers before they
// are compared or stored.
package normalize

import "strings"

func lowerTrim(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func upperTrim(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// Email trims and lowercases.
func Email(s string) string { return lowerTrim(s) }

// Name trims but preserves case.
func Name(s string) string { return strings.TrimSpace(s) }

// AuthMethod trims and lowercases.
func AuthMethod(s string) string { return lowerTrim(s) }

// Status trims and lowercases.
func Status(s string) string { return lowerTrim(s) }

// Role trims and lowercases.
func Role(s string) string { return lowerTrim(s) }

// EntityType lowercases an owner kind and accepts "office-user" for
// "office_user".
func EntityType(s string) string {
	return strings.ReplaceAll(lowerTrim(s), "-", "_")
}

// Code uppercases a corporate account code.
func Code(s string) string { return upperTrim(s) }

// PaymentType uppercases a payment type ("fp" is "FP").
func PaymentType(s string) string { return upperTrim(s) }

// QueryParam trims but preserves case.
func QueryParam(s string) string { return strings.TrimSpace(s) }

// Filter trims a list filter value and maps "all" to "" (no filter).
func Filter(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "all") {
		return ""
	}
	return s
}
