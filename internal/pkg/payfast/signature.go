package payfast

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

const signatureField = "signature"

// ParamString builds the signature base: every field except signature,
// sorted by key, URL-encoded, joined with '&'. A non-empty passphrase is
// appended as the last pair.
func ParamString(values url.Values, passphrase string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == signatureField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		pairs = append(pairs, k+"="+url.QueryEscape(strings.TrimSpace(values.Get(k))))
	}
	if passphrase != "" {
		pairs = append(pairs, "passphrase="+url.QueryEscape(strings.TrimSpace(passphrase)))
	}
	return strings.Join(pairs, "&")
}

// Sign returns the lowercase hex MD5 of base.
func Sign(base string) string {
	h := md5.Sum([]byte(base))
	return hex.EncodeToString(h[:])
}

// SignValues signs a field set with the optional passphrase.
func SignValues(values url.Values, passphrase string) string {
	return Sign(ParamString(values, passphrase))
}

// VerifySignature recomputes the signature of values and compares it with
// the received signature field in constant time.
func VerifySignature(values url.Values, passphrase string) bool {
	received := strings.ToLower(strings.TrimSpace(values.Get(signatureField)))
	if received == "" {
		return false
	}
	expected := SignValues(values, passphrase)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}
