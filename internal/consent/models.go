package consent

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	id "hushmcp/pkg/domain"
)

// ConsentToken is the signed capability a user grants to an agent: this
// agent may act under this scope for this window. Tokens are self-contained
// and stateless; only revocation touches shared state.
type ConsentToken struct {
	UserID    id.UserID
	AgentID   id.AgentID
	Scope     id.ConsentScope
	IssuedAt  time.Time
	ExpiresAt time.Time
	TokenID   id.TokenID
	// Signature is the hex HMAC-SHA256 over the canonical signing input.
	Signature string
}

// ValidationResult is the structured outcome of validating a token. A denied
// validation is not a Go error: Valid is false, Reason names the first check
// that failed, and Token is nil so partially validated data never leaks to
// callers.
type ValidationResult struct {
	Valid  bool
	Reason id.ValidationReason
	Token  *ConsentToken
}

// Denied builds a failed result for the given reason.
func Denied(reason id.ValidationReason) ValidationResult {
	return ValidationResult{Reason: reason}
}

// Granted builds a successful result carrying the parsed token.
func Granted(token *ConsentToken) ValidationResult {
	return ValidationResult{Valid: true, Token: token}
}

// ConsentStatus tracks the lifecycle of a recorded grant.
type ConsentStatus string

const (
	ConsentStatusActive  ConsentStatus = "active"
	ConsentStatusRevoked ConsentStatus = "revoked"
)

// ConsentRecord is the issuance-audit row persisted when a token is granted
// through the management API. It stores a hash of the opaque token string,
// never the token itself, plus enough fields to power the active-consents
// listing and revocation without re-parsing anything.
type ConsentRecord struct {
	TokenHash string
	TokenID   id.TokenID
	UserID    id.UserID
	AgentID   id.AgentID
	Scope     id.ConsentScope
	IssuedAt  time.Time
	ExpiresAt time.Time
	Status    ConsentStatus
}

// IsActive reports whether the grant is live: not revoked and not past its
// expiry.
func (r ConsentRecord) IsActive(now time.Time) bool {
	if r.Status == ConsentStatusRevoked {
		return false
	}
	return !now.After(r.ExpiresAt)
}

// HashToken computes the hex SHA-256 of an opaque token string for storage
// and lookup.
func HashToken(wire string) string {
	sum := sha256.Sum256([]byte(wire))
	return hex.EncodeToString(sum[:])
}
