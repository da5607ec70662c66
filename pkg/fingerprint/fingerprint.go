// Package fingerprint derives a stable client fingerprint from request
// headers, used to bind a web session to the browser that created it.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
)

var headerKeys = []string{"user-agent", "accept"}

// FromHTTPRequest hashes the identifying headers of the request. Two
// requests from the same browser produce the same fingerprint; the value
// carries no header contents itself.
func FromHTTPRequest(r *http.Request) (string, error) {
	if r == nil {
		return "", errors.New("http request is nil")
	}

	h := sha256.New()

	for _, key := range headerKeys {
		h.Write([]byte(r.Header.Get(key)))
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
