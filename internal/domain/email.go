package domain

import "strings"

// MatchDomain reports whether the two email addresses share a domain, the
// part after the last "@", compared case-insensitively. A missing or
// malformed reference email never matches: if either address has no domain,
// or the reference is empty, the result is false. Both the cache-hit path
// and the NetSuite lookup path must use this function rather than carrying
// their own copy.
func MatchDomain(submitted, reference string) bool {
	if reference == "" {
		return false
	}

	subDomain, ok := emailDomain(submitted)
	if !ok {
		return false
	}
	refDomain, ok := emailDomain(reference)
	if !ok {
		return false
	}

	return subDomain == refDomain
}

func emailDomain(email string) (string, bool) {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return "", false
	}
	return strings.ToLower(email[at+1:]), true
}
