package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"net/url"
	"slices"
	"strings"
)

const webAppDataKey = "WebAppData"

func hmacSHA256(key, msg []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(msg)
	return h.Sum(nil)
}

func checkString(fields map[string]string) string {
	keys := slices.Sorted(maps.Keys(fields))
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}
	return strings.Join(lines, "\n")
}

// signature expects fields without the hash key.
func signature(fields map[string]string, botToken string) string {
	secretKey := hmacSHA256([]byte(webAppDataKey), []byte(botToken))
	return hex.EncodeToString(hmacSHA256(secretKey, []byte(checkString(fields))))
}

// Verify reports whether initData carries a valid hash for botToken.
// It never panics; any malformed input yields false.
func Verify(initData, botToken string) bool {
	if botToken == "" || initData == "" {
		return false
	}
	fields, err := parseFlat(initData)
	if err != nil {
		return false
	}
	hash, ok := fields["hash"]
	if !ok || hash == "" {
		return false
	}
	delete(fields, "hash")

	expected := signature(fields, botToken)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(hash)))
}

// Sign returns values encoded as initData with a valid hash for botToken.
// Only the first value of each key is kept.
func Sign(values url.Values, botToken string) string {
	fields := make(map[string]string, len(values))
	out := url.Values{}
	for k, v := range values {
		if k == "hash" || len(v) == 0 {
			continue
		}
		fields[k] = v[0]
		out.Set(k, v[0])
	}
	out.Set("hash", signature(fields, botToken))
	return out.Encode()
}
