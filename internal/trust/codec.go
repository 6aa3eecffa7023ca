package trust

import (
	"fmt"

	"hushmcp/internal/credential"
	id "hushmcp/pkg/domain"
)

// LinkPrefix versions the trust link wire format. A future change to the
// canonical encoding gets a new prefix rather than a flag day.
const LinkPrefix = "HTL:"

const signingFieldCount = 6

// canonicalSigningInput builds the pinned signing input:
//
//	from_agent|to_agent|scope|issued_ms|expires_ms|link_id
//
// Timestamps are base-10 Unix milliseconds. Every field grammar excludes the
// delimiter, so the split is unambiguous.
func canonicalSigningInput(l TrustLink) []byte {
	return credential.JoinFields(
		l.FromAgent.String(),
		l.ToAgent.String(),
		l.Scope.String(),
		credential.FormatMillis(l.IssuedAt),
		credential.FormatMillis(l.ExpiresAt),
		l.LinkID.String(),
	)
}

// SignLink computes the link's hex HMAC-SHA256 signature.
func SignLink(secret []byte, l TrustLink) string {
	return credential.Sign(secret, canonicalSigningInput(l))
}

// EncodeLink renders the signed wire string. The link must already carry its
// signature.
func EncodeLink(l TrustLink) string {
	return credential.Encode(LinkPrefix, canonicalSigningInput(l), l.Signature)
}

// ParseLink decodes a wire link. It returns the parsed link together with
// the raw signing-input bytes so the caller verifies the signature over
// exactly what the issuer signed. Any structural or grammar failure is a
// parse error; the caller reports those as a malformed link.
func ParseLink(wire string) (TrustLink, []byte, error) {
	signingInput, signature, err := credential.Decode(LinkPrefix, wire)
	if err != nil {
		return TrustLink{}, nil, err
	}

	fields, err := credential.SplitFields(signingInput, signingFieldCount)
	if err != nil {
		return TrustLink{}, nil, err
	}

	fromAgent, err := id.ParseAgentID(fields[0])
	if err != nil {
		return TrustLink{}, nil, fmt.Errorf("from_agent field: %w", err)
	}
	toAgent, err := id.ParseAgentID(fields[1])
	if err != nil {
		return TrustLink{}, nil, fmt.Errorf("to_agent field: %w", err)
	}
	scope, err := id.ParseConsentScope(fields[2])
	if err != nil {
		return TrustLink{}, nil, fmt.Errorf("scope field: %w", err)
	}
	issuedAt, err := credential.ParseMillis(fields[3])
	if err != nil {
		return TrustLink{}, nil, fmt.Errorf("issued_at field: %w", err)
	}
	expiresAt, err := credential.ParseMillis(fields[4])
	if err != nil {
		return TrustLink{}, nil, fmt.Errorf("expires_at field: %w", err)
	}
	linkID, err := id.ParseLinkID(fields[5])
	if err != nil {
		return TrustLink{}, nil, fmt.Errorf("link_id field: %w", err)
	}

	link := TrustLink{
		FromAgent: fromAgent,
		ToAgent:   toAgent,
		Scope:     scope,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		LinkID:    linkID,
		Signature: signature,
	}
	return link, signingInput, nil
}
