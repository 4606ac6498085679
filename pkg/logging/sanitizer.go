// Package logging scrubs secrets from text before it is logged or persisted.
package logging

import (
	"regexp"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/apperrors"
)

// RedactedText is the replacement text for sensitive data
const RedactedText = "[REDACTED]"

// redaction rewrites every match of pattern with replacement, which may
// reference capture groups.
type redaction struct {
	pattern     *regexp.Regexp
	replacement string
}

func (r redaction) apply(s string) string {
	return r.pattern.ReplaceAllString(s, r.replacement)
}

var (
	// key=value secrets in libpq DSNs and query strings, up to the next delimiter.
	dsnPassword = redaction{
		regexp.MustCompile(`(?i)\b(password|pwd|pass|pgpassword)=[^;&\s]+`),
		"${1}=" + RedactedText,
	}

	// user:pass@host in postgres://, https:// and friends.
	urlUserinfo = redaction{
		regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`),
		"://" + RedactedText + "@" + RedactedText,
	}

	// Identity provider JWTs and the scheduled-trigger secret both travel as bearer tokens.
	bearerToken = redaction{
		regexp.MustCompile(`Bearer\s+[A-Za-z0-9\-_.~+/]+=*`),
		"Bearer " + RedactedText,
	}

	// Provider SDKs echo the key header on some auth failures.
	keyHeader = redaction{
		regexp.MustCompile(`(?i)\b(x-api-key|x-goog-api-key|api-key):\s*\S+`),
		"${1}: " + RedactedText,
	}

	// api_key=... style query parameters; short values are left alone.
	keyParam = redaction{
		regexp.MustCompile(`(?i)\b(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`),
		"${1}=" + RedactedText,
	}

	// Anthropic and OpenAI secret keys, sk-ant-... and sk-....
	providerKey = redaction{
		regexp.MustCompile(`\bsk-[A-Za-z0-9\-_]{16,}`),
		RedactedText,
	}
)

// connectionRules cover what can appear in a database DSN.
var connectionRules = []redaction{dsnPassword, urlUserinfo}

// textRules run over free text: errors from the registry, model providers and pgx.
// keyHeader must precede providerKey so the header name survives.
var textRules = []redaction{dsnPassword, bearerToken, keyHeader, keyParam, providerKey, urlUserinfo}

func redact(s string, rules []redaction) string {
	for _, r := range rules {
		s = r.apply(s)
	}
	return s
}

// SanitizeConnectionString removes credentials from a database connection string.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	return redact(connStr, connectionRules)
}

// SanitizeText redacts passwords, bearer tokens, provider keys and URL credentials.
func SanitizeText(s string) string {
	return redact(s, textRules)
}

// SanitizeError returns err's message with credentials redacted.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeText(err.Error())
}

// ErrorField is zap.Error for errors that may carry upstream credentials.
func ErrorField(err error) zap.Field {
	if err == nil {
		return zap.Skip()
	}
	return zap.String("error", SanitizeError(err))
}

// FailureMessage is the error text stored on a failed artifact row:
// sanitized, then cut to apperrors.MaxErrorMessageLength.
func FailureMessage(err error) string {
	return apperrors.TruncateMessage(SanitizeError(err))
}
