package logging

import (
	"regexp"
	"strings"
)

// RedactedValue replaces sensitive values.
const RedactedValue = "[REDACTED]"

var sensitiveFields = []string{
	"password",
	"passphrase",
	"secret",
	"token",
	"private_key",
	"privatekey",
	"credential",
}

var secretPatterns = []*regexp.Regexp{
	// PEM and OpenSSH private key blocks.
	regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`),
	// sshpass style and URL userinfo credentials.
	regexp.MustCompile(`(?i)(sshpass\s+-p\s*)\S+`),
	regexp.MustCompile(`(://[^:/@\s]+:)[^@\s]+(@)`),
	// key=value pairs whose key names a secret.
	regexp.MustCompile(`(?i)((?:password|passphrase|secret|token)\s*[=:]\s*)("[^"]*"|'[^']*'|\S+)`),
}

var patternReplacements = []string{
	RedactedValue,
	"${1}" + RedactedValue,
	"${1}" + RedactedValue + "${2}",
	"${1}" + RedactedValue,
}

// Redact replaces credentials embedded in s.
func Redact(s string) string {
	for i, p := range secretPatterns {
		s = p.ReplaceAllString(s, patternReplacements[i])
	}

	return s
}

// RedactArgs returns a copy of tool arguments with sensitive fields replaced.
// Nested maps are redacted recursively and other strings pass through Redact.
func RedactArgs(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))

	for k, v := range m {
		switch val := v.(type) {
		case map[string]any:
			out[k] = RedactArgs(val)
		case string:
			if IsSensitiveField(k) && val != "" {
				out[k] = RedactedValue
			} else {
				out[k] = Redact(val)
			}
		default:
			if IsSensitiveField(k) {
				out[k] = RedactedValue
			} else {
				out[k] = v
			}
		}
	}

	return out
}

// IsSensitiveField reports whether a field name holds a secret.
func IsSensitiveField(name string) bool {
	lower := strings.ToLower(name)
	for _, field := range sensitiveFields {
		if strings.Contains(lower, field) {
			return true
		}
	}

	return false
}
