// Package token inspects bearer access tokens issued by the identity
// provider and keeps user records supplied with a fresh one.
//
// The decoding helpers are total functions: any malformed input maps to
// the zero value ("already expired", "no parishes") instead of an error,
// because downstream flows treat those cases identically.
package token

import (
	"encoding/base64"
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// DefaultExpiryBuffer is subtracted from a token's expiry when deciding
// whether it is still usable, so tokens are refreshed before a remote
// API can reject them mid-request.
const DefaultExpiryBuffer = 5 * time.Minute

var timeNow = time.Now

// DecodeExpiry parses the payload segment of a three-part dot-separated
// token and returns the `exp` claim converted to epoch milliseconds.
// It returns 0 for any malformed token.
func DecodeExpiry(token string) int64 {
	claims, ok := decodeClaims(token)
	if !ok {
		return 0
	}

	exp, ok := claims["exp"].(float64)
	if !ok || exp <= 0 {
		return 0
	}

	return int64(exp) * 1000
}

// ExtractParishKeys reads the `parishes` claim, which the identity
// provider encodes either as an array of keys or as an object whose
// values are keys, and normalizes it to a flat list. Malformed or
// absent claims yield an empty list.
func ExtractParishKeys(token string) []string {
	claims, ok := decodeClaims(token)
	if !ok {
		return nil
	}

	switch parishes := claims["parishes"].(type) {
	case []interface{}:
		keys := make([]string, 0, len(parishes))
		for _, val := range parishes {
			if key, ok := val.(string); ok {
				keys = append(keys, key)
			}
		}
		return keys
	case map[string]interface{}:
		names := make([]string, 0, len(parishes))
		for name := range parishes {
			names = append(names, name)
		}
		sort.Strings(names)

		keys := make([]string, 0, len(names))
		for _, name := range names {
			if key, ok := parishes[name].(string); ok {
				keys = append(keys, key)
			}
		}
		return keys
	default:
		return nil
	}
}

// IsExpired reports whether a token expiring at the given epoch-millis
// timestamp is already unusable, counting anything inside the buffer
// window as expired. A zero timestamp is always expired.
func IsExpired(expiresAt int64, buffer time.Duration) bool {
	if expiresAt <= 0 {
		return true
	}

	return timeNow().UnixMilli() >= expiresAt-buffer.Milliseconds()
}

func decodeClaims(token string) (map[string]interface{}, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, false
	}

	raw, err := decodeSegment(parts[1])
	if err != nil {
		return nil, false
	}

	var claims map[string]interface{}
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, false
	}

	return claims, true
}

// decodeSegment accepts both base64url and standard base64 payloads,
// with or without padding, since issuers are inconsistent about it.
func decodeSegment(segment string) ([]byte, error) {
	trimmed := strings.TrimRight(segment, "=")

	raw, err := base64.RawURLEncoding.DecodeString(trimmed)
	if err == nil {
		return raw, nil
	}

	return base64.RawStdEncoding.DecodeString(trimmed)
}
