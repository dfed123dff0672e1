// Package redact strips secrets from text before it is logged, stored as a
// record's failure reason, or returned to a client.
//
// The rules target what this service actually handles: Gemini API keys
// (bare or in request URLs), credentials embedded in Postgres, Redis and
// MQTT URLs, bearer tokens, and SQL text from driver errors.
package redact

import "regexp"

// Placeholders substituted for redacted fragments.
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedSQLPlaceholder        = "[REDACTED_SQL]"
	RedactedStackPlaceholder      = "[STACK_TRACE_REDACTED]"
)

type rule struct {
	re          *regexp.Regexp
	replacement string
}

// Rules run in order. URL userinfo goes first so a password inside a DSN is
// not half-consumed by the password rule.
var rules = []rule{
	{
		re:          regexp.MustCompile(`(?i)\b([a-z][a-z0-9+.-]*://)[^/@\s]+@`),
		replacement: "${1}" + RedactedCredentialPlaceholder + "@",
	},
	{
		re:          regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`),
		replacement: RedactedKeyPlaceholder,
	},
	{
		re:          regexp.MustCompile(`(?i)([?&](?:key|api_key|token|access_token|signature)=)[^&\s"']+`),
		replacement: "${1}" + RedactedKeyPlaceholder,
	},
	{
		re:          regexp.MustCompile(`(?i)\b(bearer\s+)[A-Za-z0-9._~+/=\-]{8,}`),
		replacement: "${1}" + RedactedKeyPlaceholder,
	},
	{
		re:          regexp.MustCompile(`(?i)\b(password|passwd|pwd)\s*[=:]\s*['"]?[^'"&\s]+['"]?`),
		replacement: RedactedCredentialPlaceholder,
	},
	{
		re:          regexp.MustCompile(`(?i)\b(api[_ -]?key|secret|token)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`),
		replacement: "${1}${2}" + RedactedKeyPlaceholder,
	},
	{
		re: regexp.MustCompile(
			`(?i)\b(SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP)[\s\w,*()$.]+(?:FROM|INTO|SET|TABLE|INDEX)(?:[\s\w,*()=$'".]+)?`,
		),
		replacement: RedactedSQLPlaceholder,
	},
	{
		re:          regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`),
		replacement: RedactedStackPlaceholder,
	},
}

// String returns input with every known secret pattern replaced.
func String(input string) string {
	for _, r := range rules {
		if input == "" {
			return input
		}
		input = r.re.ReplaceAllString(input, r.replacement)
	}
	return input
}

// Error is String applied to err.Error(); nil yields "".
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

// Hint returns a short, non-reversible label for a secret: the placeholder
// followed by its last four characters when the secret is long enough for
// that to be safe.
func Hint(secret string) string {
	const visible = 4
	if len(secret) < 4*visible {
		return RedactedKeyPlaceholder
	}
	return RedactedKeyPlaceholder + "..." + secret[len(secret)-visible:]
}
