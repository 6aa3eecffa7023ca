package consent

import (
	"fmt"

	"hushmcp/internal/credential"
	id "hushmcp/pkg/domain"
)

// TokenPrefix versions the consent token wire format. A future change to the
// canonical encoding gets a new prefix rather than a flag day.
const TokenPrefix = "HCT:"

const signingFieldCount = 6

// canonicalSigningInput builds the pinned signing input:
//
//	user_id|agent_id|scope|issued_ms|expires_ms|token_id
//
// Timestamps are base-10 Unix milliseconds. Every field grammar excludes the
// delimiter, so the split is unambiguous.
func canonicalSigningInput(t ConsentToken) []byte {
	return credential.JoinFields(
		t.UserID.String(),
		t.AgentID.String(),
		t.Scope.String(),
		credential.FormatMillis(t.IssuedAt),
		credential.FormatMillis(t.ExpiresAt),
		t.TokenID.String(),
	)
}

// SignToken computes the token's hex HMAC-SHA256 signature.
func SignToken(secret []byte, t ConsentToken) string {
	return credential.Sign(secret, canonicalSigningInput(t))
}

// EncodeToken renders the signed wire string. The token must already carry
// its signature.
func EncodeToken(t ConsentToken) string {
	return credential.Encode(TokenPrefix, canonicalSigningInput(t), t.Signature)
}

// ParseToken decodes a wire token. It returns the parsed token together with
// the raw signing-input bytes so the caller verifies the signature over
// exactly what the issuer signed. Any structural or grammar failure is a
// parse error; the caller reports those as a malformed token.
func ParseToken(wire string) (ConsentToken, []byte, error) {
	signingInput, signature, err := credential.Decode(TokenPrefix, wire)
	if err != nil {
		return ConsentToken{}, nil, err
	}

	fields, err := credential.SplitFields(signingInput, signingFieldCount)
	if err != nil {
		return ConsentToken{}, nil, err
	}

	userID, err := id.ParseUserID(fields[0])
	if err != nil {
		return ConsentToken{}, nil, fmt.Errorf("user field: %w", err)
	}
	agentID, err := id.ParseAgentID(fields[1])
	if err != nil {
		return ConsentToken{}, nil, fmt.Errorf("agent field: %w", err)
	}
	scope, err := id.ParseConsentScope(fields[2])
	if err != nil {
		return ConsentToken{}, nil, fmt.Errorf("scope field: %w", err)
	}
	issuedAt, err := credential.ParseMillis(fields[3])
	if err != nil {
		return ConsentToken{}, nil, fmt.Errorf("issued_at field: %w", err)
	}
	expiresAt, err := credential.ParseMillis(fields[4])
	if err != nil {
		return ConsentToken{}, nil, fmt.Errorf("expires_at field: %w", err)
	}
	tokenID, err := id.ParseTokenID(fields[5])
	if err != nil {
		return ConsentToken{}, nil, fmt.Errorf("token_id field: %w", err)
	}

	token := ConsentToken{
		UserID:    userID,
		AgentID:   agentID,
		Scope:     scope,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		TokenID:   tokenID,
		Signature: signature,
	}
	return token, signingInput, nil
}
