package models

import (
	"fmt"
	"strings"
)

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// to prevent key collision attacks where user-controlled identifiers containing
// ':' could manipulate adjacent rate limit buckets.
//
// Example: An identifier "user:admin" would become "user_admin", preventing
// it from being interpreted as a separate key segment.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// LockoutKey identifies one login lockout record. The identifier and IP are
// combined so an attacker rotating addresses cannot exhaust another user's
// attempt budget, and a single address hammering many accounts still
// accumulates per-account state.
type LockoutKey struct {
	Identifier string
	IP         string
}

// NewAuthLockoutKey builds a lockout key from a login identifier (typically
// an email, already lowercased by the caller) and the client IP.
func NewAuthLockoutKey(identifier, ip string) LockoutKey {
	return LockoutKey{
		Identifier: SanitizeKeySegment(identifier),
		IP:         SanitizeKeySegment(ip),
	}
}

func (k LockoutKey) String() string {
	return fmt.Sprintf("lockout:%s:%s", k.Identifier, k.IP)
}

// RateLimitKey identifies one sliding-window bucket: a client IP scoped by
// endpoint class.
type RateLimitKey struct {
	IP    string
	Class EndpointClass
}

// NewRateLimitKey builds a bucket key for per-IP limiting on one endpoint
// class.
func NewRateLimitKey(ip string, class EndpointClass) RateLimitKey {
	return RateLimitKey{
		IP:    SanitizeKeySegment(ip),
		Class: class,
	}
}

func (k RateLimitKey) String() string {
	return fmt.Sprintf("ip:%s:%s", k.IP, k.Class)
}
