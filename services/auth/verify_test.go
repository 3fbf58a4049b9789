package auth

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestVerifier() *Verifier {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	return New(slog.New(handler))
}

func signSHA256Base64(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerify(t *testing.T) {
	secret := "c2VjcmV0LXRva2Vu"
	body := []byte(`{"type": "message", "text": "ollama質問 テスト"}`)

	testCases := []struct {
		name      string
		signature func() string
		expected  bool
	}{
		{
			name: "standard sha256 base64",
			signature: func() string {
				return signSHA256Base64(secret, body)
			},
			expected: true,
		},
		{
			name: "hmac scheme prefix stripped",
			signature: func() string {
				return "HMAC " + signSHA256Base64(secret, body)
			},
			expected: true,
		},
		{
			name: "hex encoded digest",
			signature: func() string {
				mac := hmac.New(sha256.New, []byte(secret))
				mac.Write(body)
				return hex.EncodeToString(mac.Sum(nil))
			},
			expected: true,
		},
		{
			name: "base64 without padding",
			signature: func() string {
				return strings.TrimRight(signSHA256Base64(secret, body), "=")
			},
			expected: true,
		},
		{
			name: "sha1 digest from an older caller",
			signature: func() string {
				mac := hmac.New(sha1.New, []byte(secret))
				mac.Write(body)
				return base64.StdEncoding.EncodeToString(mac.Sum(nil))
			},
			expected: true,
		},
		{
			name: "compact json signed instead of raw body",
			signature: func() string {
				return signSHA256Base64(secret, []byte(`{"type":"message","text":"ollama質問 テスト"}`))
			},
			expected: true,
		},
		{
			name: "wrong secret rejected",
			signature: func() string {
				return signSHA256Base64("some-other-token", body)
			},
			expected: false,
		},
		{
			name: "garbage signature rejected",
			signature: func() string {
				return "definitely-not-a-signature"
			},
			expected: false,
		},
	}

	verifier := newTestVerifier()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := require.New(t)
			assert.Equal(tc.expected, verifier.Verify(body, tc.signature(), secret))
		})
	}
}

func TestVerifyEmptyInputs(t *testing.T) {
	assert := require.New(t)
	verifier := newTestVerifier()

	body := []byte(`{"text": "hello"}`)
	assert.False(verifier.Verify(body, "", "secret"))
	assert.False(verifier.Verify(body, signSHA256Base64("secret", body), ""))
}

func TestVerifyPaddedSecretVariant(t *testing.T) {
	assert := require.New(t)
	verifier := newTestVerifier()

	// The caller signed with the padded form of the configured token.
	secret := "c2VjcmV0LXRva2VuMQ"
	padded := secret + "=="
	body := []byte(`{"text": "padded secret"}`)

	assert.False(strings.HasSuffix(secret, "="))
	assert.True(verifier.Verify(body, signSHA256Base64(padded, body), secret))
}

func TestBypass(t *testing.T) {
	testCases := []struct {
		name             string
		skipVerification bool
		debug            bool
		expected         bool
	}{
		{name: "production defaults", skipVerification: false, debug: false, expected: false},
		{name: "operator skip flag", skipVerification: true, debug: false, expected: true},
		{name: "debug mode", skipVerification: false, debug: true, expected: true},
		{name: "both set", skipVerification: true, debug: true, expected: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, Bypass(tc.skipVerification, tc.debug))
		})
	}
}
