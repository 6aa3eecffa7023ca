// Package credential implements the signed wire format shared by consent
// tokens and trust links:
//
//	<PREFIX><base64url(field|field|...)>.<hex(hmac_sha256)>
//
// The base64url payload is the canonical signing input. Verification must
// recompute the MAC over the exact decoded payload bytes, never over a
// re-serialization of parsed fields, so parsing can normalize without
// breaking signatures.
package credential

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Delimiter separates canonical signing fields. Identifier, scope, and id
// grammars all exclude it, so splitting is unambiguous.
const Delimiter = "|"

var payloadEncoding = base64.RawURLEncoding

// Sign computes the hex HMAC-SHA256 of the signing input.
func Sign(secret, signingInput []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(signingInput)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureValid reports whether signatureHex is the HMAC-SHA256 of
// signingInput under secret. Constant-time comparison.
func SignatureValid(secret, signingInput []byte, signatureHex string) bool {
	provided, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(signingInput)
	return hmac.Equal(mac.Sum(nil), provided)
}

// JoinFields builds a canonical signing input from ordered fields.
func JoinFields(fields ...string) []byte {
	return []byte(strings.Join(fields, Delimiter))
}

// SplitFields splits a decoded signing input and enforces the field count.
func SplitFields(signingInput []byte, want int) ([]string, error) {
	fields := strings.Split(string(signingInput), Delimiter)
	if len(fields) != want {
		return nil, fmt.Errorf("expected %d signing fields, got %d", want, len(fields))
	}
	return fields, nil
}

// Encode assembles the wire form from a signing input and its signature.
func Encode(prefix string, signingInput []byte, signatureHex string) string {
	return prefix + payloadEncoding.EncodeToString(signingInput) + "." + signatureHex
}

// Decode splits a wire credential into its raw signing-input bytes and hex
// signature. Structural problems (wrong prefix, missing dot, undecodable
// payload, a signature that is not 32 hex-encoded bytes) are all decode
// errors; whether the signature actually matches is a separate question for
// SignatureValid.
func Decode(prefix, wire string) (signingInput []byte, signatureHex string, err error) {
	rest, ok := strings.CutPrefix(wire, prefix)
	if !ok {
		return nil, "", fmt.Errorf("credential must start with %q", prefix)
	}
	payload, signature, ok := strings.Cut(rest, ".")
	if !ok || payload == "" || signature == "" {
		return nil, "", errors.New("credential must be <payload>.<signature>")
	}
	raw, err := hex.DecodeString(signature)
	if err != nil {
		return nil, "", fmt.Errorf("decode signature: %w", err)
	}
	if len(raw) != sha256.Size {
		return nil, "", fmt.Errorf("signature must be %d bytes, got %d", sha256.Size, len(raw))
	}
	signingInput, err = payloadEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode signing input: %w", err)
	}
	return signingInput, signature, nil
}

// FormatMillis renders a timestamp as its canonical signing field, base-10
// Unix milliseconds.
func FormatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// ParseMillis parses a canonical timestamp field.
func ParseMillis(field string) (time.Time, error) {
	ms, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp must be unix milliseconds: %w", err)
	}
	return time.UnixMilli(ms).UTC(), nil
}
