package urlutil

import "strings"

// Hostname strips the port from a host string, e.g. "example.com:8080"
// becomes "example.com". Bracketed IPv6 literals keep their brackets and
// bare IPv6 literals are left untouched.
func Hostname(host string) string {
	if strings.HasPrefix(host, "[") {
		if idx := strings.Index(host, "]"); idx != -1 {
			return host[:idx+1]
		}
		return host
	}
	if idx := strings.LastIndex(host, ":"); idx != -1 && strings.Count(host, ":") == 1 {
		return host[:idx]
	}
	return host
}

// CleanDomain lowercases the host and repeatedly strips any of the
// configured prefixes (e.g. "www", "m") from the front until none apply.
// "www.m.example.com" with prefixes [www m] becomes "example.com".
func CleanDomain(host string, prefixes []string) string {
	domain := strings.ToLower(Hostname(host))

	stripped := true
	for stripped {
		stripped = false
		for _, prefix := range prefixes {
			rest, ok := strings.CutPrefix(domain, prefix+".")
			if ok && rest != "" {
				domain = rest
				stripped = true
			}
		}
	}

	return domain
}
