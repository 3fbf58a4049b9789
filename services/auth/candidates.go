package auth

import (
	"bytes"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"hash"
	"regexp"
	"strings"
	"unicode/utf8"
)

// The exact signing convention of the calling system has never been pinned
// down, so verification recomputes the signature under every combination of
// secret transform, body variant, digest and output encoding below. The
// lists are data: a newly observed scheme is one more entry, not new control
// flow.

type secretTransform struct {
	name  string
	apply func(secret string) (string, bool)
}

type bodyVariant struct {
	name string
	data []byte
}

type digestAlgo struct {
	name string
	new  func() hash.Hash
}

type outputEncoding struct {
	name   string
	encode func(digest []byte) string
}

var secretTransforms = []secretTransform{
	{name: "original", apply: func(s string) (string, bool) {
		return s, true
	}},
	{name: "padded", apply: func(s string) (string, bool) {
		if strings.HasSuffix(s, "=") {
			return "", false
		}
		for len(s)%4 != 0 {
			s += "="
		}
		return s, true
	}},
	{name: "unpadded", apply: func(s string) (string, bool) {
		if !strings.HasSuffix(s, "=") {
			return "", false
		}
		return strings.TrimRight(s, "="), true
	}},
	{name: "reencoded", apply: func(s string) (string, bool) {
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return "", false
		}
		return base64.StdEncoding.EncodeToString(decoded), true
	}},
}

var digestAlgos = []digestAlgo{
	{name: "sha256", new: sha256.New},
	{name: "sha1", new: sha1.New}, // possibly used by older callers
}

var outputEncodings = []outputEncoding{
	{name: "base64", encode: func(d []byte) string {
		return base64.StdEncoding.EncodeToString(d)
	}},
	{name: "base64_no_padding", encode: func(d []byte) string {
		return strings.TrimRight(base64.StdEncoding.EncodeToString(d), "=")
	}},
	{name: "hex", encode: hex.EncodeToString},
}

var whitespaceRe = regexp.MustCompile(`\s`)

// bodyVariants enumerates the serializations the caller may have signed:
// the raw bytes, a UTF-8 re-encoding, and, for JSON bodies, compact,
// key-sorted, whitespace-stripped and single-field renditions.
func bodyVariants(body []byte) []bodyVariant {
	variants := []bodyVariant{{name: "raw_bytes", data: body}}

	if !utf8.Valid(body) {
		return variants
	}
	text := string(body)
	variants = append(variants, bodyVariant{name: "utf8_string", data: []byte(text)})

	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(body, &parsed); err != nil {
		return variants
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err == nil {
		variants = append(variants, bodyVariant{name: "compact_json", data: compact.Bytes()})
	}

	// Round-tripping through a map sorts the keys.
	var generic map[string]interface{}
	if err := json.Unmarshal(body, &generic); err == nil {
		if canonical, err := json.Marshal(generic); err == nil {
			variants = append(variants, bodyVariant{name: "canonical_json", data: canonical})
		}
	}

	stripped := whitespaceRe.ReplaceAllString(text, "")
	variants = append(variants, bodyVariant{name: "no_whitespace_json", data: []byte(stripped)})

	if raw, ok := parsed["text"]; ok {
		var textField string
		if err := json.Unmarshal(raw, &textField); err == nil {
			if encoded, err := json.Marshal(textField); err == nil {
				variants = append(variants, bodyVariant{name: "text_only", data: encoded})
			}
		}
	}
	if raw, ok := parsed["body"]; ok {
		var bodyCompact bytes.Buffer
		if err := json.Compact(&bodyCompact, raw); err == nil {
			variants = append(variants, bodyVariant{name: "body_only", data: bodyCompact.Bytes()})
		}
	}

	return variants
}

// secretVariants applies each transform, deduplicating identical outcomes.
func secretVariants(secret string) []string {
	var variants []string
	seen := make(map[string]struct{})
	for _, transform := range secretTransforms {
		v, ok := transform.apply(secret)
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		variants = append(variants, v)
	}
	return variants
}
