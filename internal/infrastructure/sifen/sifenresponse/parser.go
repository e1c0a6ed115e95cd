// Package sifenresponse extracts fields from raw SIFEN SOAP response text.
// SIFEN responses are not always namespace-consistent across environments,
// so every lookup tries a wildcard-namespace form before falling back to the
// bare tag, matching §4.7's "namespace-agnostic: try with wildcard then
// without" rule.
package sifenresponse

import "regexp"

// Field reads the text content of the first element matching localName,
// regardless of namespace prefix, returning fallback when absent.
func Field(body, localName, fallback string) string {
	if v, ok := find(body, localName); ok {
		return v
	}
	return fallback
}

// Has reports whether the body contains any element with the given local
// name.
func Has(body, localName string) bool {
	_, ok := find(body, localName)
	return ok
}

func find(body, localName string) (string, bool) {
	// Wildcard-namespace form: <prefix:tag ...> or <tag ...>, same for close.
	pattern := `<(?:[A-Za-z0-9_.-]+:)?` + regexp.QuoteMeta(localName) + `(?:\s[^>]*)?>([^<]*)</(?:[A-Za-z0-9_.-]+:)?` + regexp.QuoteMeta(localName) + `>`
	re := regexp.MustCompile(pattern)
	m := re.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}
