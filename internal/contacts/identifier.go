package contacts

import "strings"

// PhoneKeys derives the candidate index keys for a raw phone number.
//
// Business/service accounts ("urn:..." identifiers) are unmatchable and yield
// no keys. Otherwise the ASCII digits are extracted and keyed with and without
// a '+' prefix. North-American numbers stored as "+1XXXXXXXXXX" additionally
// get last-10-digit variants, bridging national vs E.164 formatting between
// the address book and the message store.
func PhoneKeys(raw string) []string {
	if strings.Contains(raw, "urn:") {
		return nil
	}

	digits := phoneDigits(raw)
	if digits == "" {
		return nil
	}

	keys := []string{digits, "+" + digits}
	if len(digits) == 11 && strings.HasPrefix(raw, "+1") {
		last10 := digits[len(digits)-10:]
		keys = append(keys, last10, "+"+last10)
	}
	return dedupe(keys)
}

func phoneDigits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, ch := range raw {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// NormalizeEmail trims whitespace, strips one pair of angle brackets and
// lowercases. Returns ok=false when nothing remains.
func NormalizeEmail(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	s = strings.TrimPrefix(s, "<")
	s = strings.TrimSuffix(s, ">")
	if s == "" {
		return "", false
	}
	return strings.ToLower(s), true
}

// ParseEmailList splits a possibly space-separated email field into
// normalized addresses, dropping tokens that normalize to nothing.
func ParseEmailList(raw string) []string {
	if !strings.Contains(raw, " ") {
		if norm, ok := NormalizeEmail(raw); ok {
			return []string{norm}
		}
		return nil
	}
	var out []string
	for _, token := range strings.Fields(raw) {
		if norm, ok := NormalizeEmail(token); ok {
			out = append(out, norm)
		}
	}
	return out
}

func looksLikeEmail(s string) bool {
	return strings.Contains(s, "@")
}
