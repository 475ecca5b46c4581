package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

var sensitiveKeys = map[string]struct{}{
	"private_key": {},
	"privatekey":  {},
	"privkey":     {},
	"seed":        {},
	"mnemonic":    {},
	"passphrase":  {},
	"password":    {},
	"secret":      {},
	"token":       {},
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// IsSensitive reports whether values logged under key are always masked.
func IsSensitive(key string) bool {
	_, ok := sensitiveKeys[normalizeKey(key)]
	return ok
}

// SensitiveKeys returns a sorted copy of the keys masked by Redact.
func SensitiveKeys() []string {
	keys := make([]string, 0, len(sensitiveKeys))
	for key := range sensitiveKeys {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskValue returns the redacted placeholder for non-empty values. Empty values
// are returned unchanged.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField returns a string attribute whose value is always masked.
func MaskField(key, value string) slog.Attr {
	return slog.String(key, MaskValue(value))
}

// Redact masks attributes with a sensitive key, at any group depth. It is
// installed as part of the handler's ReplaceAttr by SetupWriter.
func Redact(_ []string, attr slog.Attr) slog.Attr {
	if !IsSensitive(attr.Key) {
		return attr
	}
	if attr.Value.Kind() == slog.KindGroup {
		return slog.String(attr.Key, RedactedValue)
	}
	return slog.String(attr.Key, MaskValue(attr.Value.String()))
}
