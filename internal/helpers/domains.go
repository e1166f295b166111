package helpers

import "strings"

// IsDomainAllowed checks an email address against a provider's domain
// allowlist. An empty allowlist admits every domain.
func IsDomainAllowed(email string, domains []string) bool {
	if len(domains) == 0 {
		return true
	}

	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := strings.ToLower(email[at+1:])

	for _, allowed := range domains {
		if domain == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}
