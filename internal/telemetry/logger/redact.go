package logger

import (
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
)

// Sensitive key patterns that should be redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"credential",
}

// Key patterns that carry peer addresses.
var addrKeyPatterns = []string{
	"addr",
	"peer",
	"remote",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive replaces sensitive attribute values. Session tokens are
// logged as numbers as often as strings, so numeric kinds are redacted too.
func redactSensitive(a slog.Attr, redactAddrs bool) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr, redactAddrs)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	if IsSensitiveKey(a.Key) {
		switch a.Value.Kind() {
		case slog.KindString:
			if a.Value.String() != "" {
				return slog.String(a.Key, redactedValue)
			}
		case slog.KindInt64, slog.KindUint64:
			return slog.String(a.Key, redactedValue)
		}
		return a
	}

	if redactAddrs && isAddrKey(a.Key) && a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, RedactAddr(a.Value.String()))
	}
	return a
}

// RedactAddr masks the host part of an "ip:port" address while keeping the
// port, e.g. "10.0.0.2:9000" becomes "10.0.x.x:9000". Values that do not
// parse as an address are returned unchanged.
func RedactAddr(value string) string {
	ap, err := netip.ParseAddrPort(value)
	if err != nil {
		return value
	}
	addr := ap.Addr().Unmap()
	if addr.Is4() {
		b := addr.As4()
		return fmt.Sprintf("%d.%d.x.x:%d", b[0], b[1], ap.Port())
	}
	return fmt.Sprintf("[x::x]:%d", ap.Port())
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

func isAddrKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range addrKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}
