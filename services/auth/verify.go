package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/kyoden/chatrelay/logger"
)

const signatureSchemePrefix = "HMAC "

// Verifier checks inbound webhook signatures against the shared outgoing
// token. Dozens of HMAC evaluations per request buy resilience against a
// caller whose canonicalization is undocumented; each candidate is still
// compared in constant time.
type Verifier struct {
	logger logger.Logger
}

func New(logger logger.Logger) *Verifier {
	return &Verifier{logger: logger}
}

// Bypass reports whether signature verification should be skipped entirely.
// The policy belongs to the caller: an explicit operator flag or a
// non-production debug mode both disable verification.
func Bypass(skipVerification, debug bool) bool {
	return skipVerification || debug
}

// Verify recomputes candidate signatures under every registered combination
// of secret transform, body variant, digest and output encoding, accepting
// if any candidate matches the received signature.
func (v *Verifier) Verify(body []byte, signature, secret string) bool {
	if secret == "" {
		v.logger.Error("outgoing token is not configured")
		return false
	}
	if signature == "" {
		v.logger.Error("request carries no signature")
		return false
	}

	cleanSignature := strings.TrimPrefix(signature, signatureSchemePrefix)

	secrets := secretVariants(secret)
	bodies := bodyVariants(body)

	attempt := 0
	for _, secretVariant := range secrets {
		key := []byte(secretVariant)
		for _, bv := range bodies {
			for _, algo := range digestAlgos {
				mac := hmac.New(algo.new, key)
				mac.Write(bv.data)
				digest := mac.Sum(nil)

				for _, enc := range outputEncodings {
					computed := enc.encode(digest)
					attempt++
					if attempt%10 == 0 {
						v.logger.Debug("signature candidate",
							"attempt", attempt,
							"body_variant", bv.name,
							"digest", algo.name,
							"encoding", enc.name,
							"computed_prefix", prefix(computed, 10))
					}
					if constantTimeEqual(computed, cleanSignature) {
						v.logger.Info("signature verified",
							"body_variant", bv.name, "digest", algo.name, "encoding", enc.name)
						return true
					}
				}
			}
		}
	}

	// Some callers send the signature as base64 of the raw digest rather
	// than an encoded string comparison; check the decoded form too.
	if binarySig, err := base64.StdEncoding.DecodeString(cleanSignature); err == nil {
		for _, secretVariant := range secrets {
			mac := hmac.New(sha256.New, []byte(secretVariant))
			mac.Write(body)
			if hmac.Equal(mac.Sum(nil), binarySig) {
				v.logger.Info("signature verified", "body_variant", "raw_bytes", "digest", "sha256", "encoding", "binary")
				return true
			}
		}
	}

	v.logAllFailed(body, cleanSignature, secret)
	return false
}

// logAllFailed records the standard candidates at debug level so an incident
// can be diagnosed manually. The shared secret is never logged beyond a
// short prefix.
func (v *Verifier) logAllFailed(body []byte, cleanSignature, secret string) {
	v.logger.Warn("all signature verification candidates failed")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	standard := mac.Sum(nil)

	v.logger.Debug("signature diagnostics",
		"standard_base64", base64.StdEncoding.EncodeToString(standard),
		"standard_hex", hex.EncodeToString(standard),
		"received", cleanSignature,
		"secret_prefix", prefix(secret, 5)+"...")
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
