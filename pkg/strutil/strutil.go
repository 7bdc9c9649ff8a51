package strutil

import "strings"

// Normalize lowercases a string and collapses runs of whitespace, so that
// subjects and addresses observed through different providers compare equal.
func Normalize(s string) string {
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeSubject additionally strips common reply/forward prefixes, which
// some providers add on re-delivery of the same logical message.
func NormalizeSubject(s string) string {
	s = Normalize(s)
	for {
		trimmed := s
		for _, prefix := range []string{"re:", "fwd:", "fw:"} {
			trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
		}
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}
