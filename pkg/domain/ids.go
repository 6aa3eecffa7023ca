package domain

import (
	"strings"

	dErrors "hushmcp/pkg/domain-errors"
)

// Typed identifiers for the two principals the trust layer knows about.
// Invariant: IDs carry their role prefix (user_, agent_) and are restricted
// to a charset that can never collide with the signed-field delimiter, so a
// parsed ID is always safe to embed in a canonical signing string.
//
// Usage: construct via ParseUserID/ParseAgentID at trust boundaries; direct
// casting bypasses validation.
type (
	UserID  string
	AgentID string
)

const (
	userIDPrefix  = "user_"
	agentIDPrefix = "agent_"

	// maxIDLen bounds identifiers well below storage column limits while
	// leaving room for externally derived suffixes.
	maxIDLen = 128
)

// idSuffixValid reports whether the part after the role prefix is non-empty
// and drawn from [A-Za-z0-9_-]. The charset deliberately excludes the '|'
// delimiter used in canonical token encoding.
func idSuffixValid(suffix string) bool {
	if suffix == "" {
		return false
	}
	for _, r := range suffix {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}

// ParseUserID constructs a UserID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, missing the
// user_ prefix, over length, or outside the ID charset.
func ParseUserID(s string) (UserID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "user id cannot be empty")
	}
	if len(s) > maxIDLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "user id too long")
	}
	suffix, ok := strings.CutPrefix(s, userIDPrefix)
	if !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "user id must start with %q", userIDPrefix)
	}
	if !idSuffixValid(suffix) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "user id contains invalid characters")
	}
	return UserID(s), nil
}

// ParseAgentID constructs an AgentID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, missing the
// agent_ prefix, over length, or outside the ID charset.
func ParseAgentID(s string) (AgentID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "agent id cannot be empty")
	}
	if len(s) > maxIDLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "agent id too long")
	}
	suffix, ok := strings.CutPrefix(s, agentIDPrefix)
	if !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "agent id must start with %q", agentIDPrefix)
	}
	if !idSuffixValid(suffix) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "agent id contains invalid characters")
	}
	return AgentID(s), nil
}

func (u UserID) String() string  { return string(u) }
func (a AgentID) String() string { return string(a) }

// IsZero reports whether the ID is unset. Handlers use this to detect a
// missing session principal.
func (u UserID) IsZero() bool  { return u == "" }
func (a AgentID) IsZero() bool { return a == "" }
