package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the body signature on inbound deliveries.
const SignatureHeader = "X-Hub-Signature-256"

const signaturePrefix = "sha256="

// VerifySignature reports whether header is "sha256=" followed by the hex
// HMAC-SHA256 of body keyed with secret. The hex strings are compared in
// constant time; a short, long or non-hex suffix simply fails to match.
func VerifySignature(body []byte, header, secret string) bool {
	if secret == "" || !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	sent := header[len(signaturePrefix):]
	expected := computeSignature(body, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(sent)) == 1
}

// Sign returns the header value a sender holding secret would attach to body.
func Sign(body []byte, secret string) string {
	return signaturePrefix + computeSignature(body, secret)
}

func computeSignature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
