package domain

// ValidationReason is the closed set of expected credential-validation
// failures, shared by consent tokens and trust links. A denied validation is
// a successful operation whose outcome is "not valid": services report the
// reason inside the result and reserve error returns for infrastructure
// faults such as an unreachable revocation backend.
type ValidationReason string

const (
	ReasonMalformedToken   ValidationReason = "malformed_token"
	ReasonInvalidSignature ValidationReason = "invalid_signature"
	ReasonTokenExpired     ValidationReason = "token_expired"
	ReasonRevoked          ValidationReason = "revoked"
	ReasonScopeMismatch    ValidationReason = "scope_mismatch"
	ReasonUserMismatch     ValidationReason = "user_mismatch"
)

func (r ValidationReason) String() string { return string(r) }
