package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "hushmcp/pkg/domain-errors"
)

// Credential identifiers. Every signed credential carries a unique id so it
// can be revoked individually: consent tokens use tid_, trust links lid_, and
// management session JWTs sid_ as their jti. The shared revocation registry
// stores the prefixed form, which keeps the three kinds from colliding.
type (
	TokenID string
	LinkID  string
)

const (
	tokenIDPrefix = "tid_"
	linkIDPrefix  = "lid_"

	// SessionIDPrefix is applied to session jti values minted by the session
	// service. There is no newtype for them; JWTs carry the jti as a plain
	// claim string.
	SessionIDPrefix = "sid_"
)

// NewTokenID mints a fresh token id.
func NewTokenID() TokenID {
	return TokenID(tokenIDPrefix + uuid.NewString())
}

// NewLinkID mints a fresh trust-link id.
func NewLinkID() LinkID {
	return LinkID(linkIDPrefix + uuid.NewString())
}

// parseCredentialSuffix validates that suffix is a canonical lowercase UUID
// string. Re-serializing and comparing rejects alternate encodings (urn form,
// braces, uppercase) that would otherwise alias the same credential under
// several registry keys.
func parseCredentialSuffix(suffix string) bool {
	parsed, err := uuid.Parse(suffix)
	if err != nil {
		return false
	}
	return parsed.String() == suffix
}

// ParseTokenID constructs a TokenID from external input.
//
// Errors: returns CodeInvalidInput when the value is missing the tid_ prefix
// or the suffix is not a canonical UUID.
func ParseTokenID(s string) (TokenID, error) {
	suffix, ok := strings.CutPrefix(s, tokenIDPrefix)
	if !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "token id must start with %q", tokenIDPrefix)
	}
	if !parseCredentialSuffix(suffix) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "token id suffix must be a canonical uuid")
	}
	return TokenID(s), nil
}

// ParseLinkID constructs a LinkID from external input.
//
// Errors: returns CodeInvalidInput when the value is missing the lid_ prefix
// or the suffix is not a canonical UUID.
func ParseLinkID(s string) (LinkID, error) {
	suffix, ok := strings.CutPrefix(s, linkIDPrefix)
	if !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "link id must start with %q", linkIDPrefix)
	}
	if !parseCredentialSuffix(suffix) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "link id suffix must be a canonical uuid")
	}
	return LinkID(s), nil
}

func (t TokenID) String() string { return string(t) }
func (l LinkID) String() string  { return string(l) }

func (t TokenID) IsZero() bool { return t == "" }
func (l LinkID) IsZero() bool  { return l == "" }
