package trust

import (
	"time"

	id "hushmcp/pkg/domain"
)

// TrustLink is the signed capability one agent delegates to another: the
// holder may act under this scope for this window, on behalf of whatever
// consent backed the link at creation. Links are self-contained; once minted
// they verify without the backing token, and only revocation touches shared
// state.
type TrustLink struct {
	FromAgent id.AgentID
	ToAgent   id.AgentID
	Scope     id.ConsentScope
	IssuedAt  time.Time
	ExpiresAt time.Time
	LinkID    id.LinkID
	// Signature is the hex HMAC-SHA256 over the canonical signing input.
	Signature string
}

// VerificationResult is the structured outcome of verifying a link. A denied
// verification is not a Go error: Valid is false, Reason names the first
// check that failed, and Link is nil so partially verified data never leaks
// to callers.
type VerificationResult struct {
	Valid  bool
	Reason id.ValidationReason
	Link   *TrustLink
}

// Denied builds a failed result for the given reason.
func Denied(reason id.ValidationReason) VerificationResult {
	return VerificationResult{Reason: reason}
}

// Granted builds a successful result carrying the parsed link.
func Granted(link *TrustLink) VerificationResult {
	return VerificationResult{Valid: true, Link: link}
}
