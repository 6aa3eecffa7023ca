// Package device derives display names and fingerprints from User-Agent
// strings. Fingerprints deliberately hash only the stable parts of a UA
// (browser family, major version, OS, platform) so routine browser updates do
// not look like device changes, while a different browser or OS does.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/mssola/useragent"
)

// Service computes device fingerprints. When disabled it returns empty
// fingerprints, which callers treat as "no device binding".
type Service struct {
	enabled bool
}

func NewService(enabled bool) *Service {
	return &Service{enabled: enabled}
}

// ParseUserAgent renders a User-Agent as a short human-readable device name
// such as "Chrome on Intel Mac OS X". Used in audit detail and login
// responses; never in fingerprints.
func ParseUserAgent(rawUA string) string {
	if strings.TrimSpace(rawUA) == "" {
		return "Unknown Device"
	}

	ua := useragent.New(rawUA)
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}

	platform := ua.OSInfo().FullName
	if platform == "" {
		platform = ua.Platform()
	}
	if platform == "" {
		platform = "Unknown OS"
	}

	// Fields+Join collapses any doubled spaces from empty UA segments.
	return strings.Join(strings.Fields(browser+" on "+platform), " ")
}

// ComputeFingerprint hashes the stable UA components into a 64-hex-character
// SHA-256 digest. Only the browser's major version participates, so
// 120.0.6099.109 and 120.0.6099.224 fingerprint identically while 121.x does
// not.
func (s *Service) ComputeFingerprint(rawUA string) string {
	if !s.enabled {
		return ""
	}

	ua := useragent.New(rawUA)
	browser, version := ua.Browser()
	major, _, _ := strings.Cut(version, ".")

	canonical := strings.Join([]string{browser, major, ua.OS(), ua.Platform()}, "|")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// CompareFingerprints reports whether a stored fingerprint matches a freshly
// computed one. drift is the inverse of matched; callers log drift as a
// security signal rather than rejecting the request.
func (s *Service) CompareFingerprints(stored, current string) (matched, drift bool) {
	matched = stored == current
	return matched, !matched
}
