package policy

import "regexp"

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	// Collaborator credentials travel as query parameters and surface in
	// transport errors.
	credentialPattern = regexp.MustCompile(`(?i)\b(appid|api_?key|key|token)=[^&\s"']+`)
)

// RedactPII masks common high-risk PII patterns.
func RedactPII(input string) (redacted string, changed bool) {
	out := input

	next := emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	changed = changed || next != out
	out = next

	// Run card redaction before phone to avoid card numbers being classified as phone.
	next = cardPattern.ReplaceAllString(out, "[REDACTED_CARD]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	changed = changed || next != out
	out = next

	return out, changed
}

// RedactCredentials masks credential query parameters such as appid=... .
func RedactCredentials(input string) string {
	return credentialPattern.ReplaceAllString(input, "${1}=[REDACTED]")
}

// ForLog applies every redaction. Use it for user text and upstream errors
// before they reach the process log.
func ForLog(input string) string {
	out, _ := RedactPII(RedactCredentials(input))
	return out
}
