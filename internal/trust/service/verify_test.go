package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/stretchr/testify/assert"

	"hushmcp/internal/consent"
	consentservice "hushmcp/internal/consent/service"
	"hushmcp/internal/trust"
	id "hushmcp/pkg/domain"
	dErrors "hushmcp/pkg/domain-errors"
)

// tamperSignature flips the last hex digit so the wire stays structurally
// valid but the MAC no longer matches.
func tamperSignature(wire string) string {
	i := strings.LastIndex(wire, ".")
	sig := wire[i+1:]
	last := byte('0')
	if sig[len(sig)-1] == '0' {
		last = '1'
	}
	return wire[:i+1] + sig[:len(sig)-1] + string(last)
}

func (s *ServiceSuite) TestVerifyTrustLink_Granted() {
	s.Run("matching scope verifies", func() {
		_, backingWire := s.issueBacking(id.ScopeVaultReadFinance)
		link, wire := s.createLink(backingWire, id.ScopeVaultReadFinance)

		result, err := s.service.VerifyTrustLink(s.ctxAt(testNow.Add(time.Hour)), wire, id.ScopeVaultReadFinance)
		s.Require().NoError(err)
		s.True(result.Valid)
		s.Empty(result.Reason)
		s.Require().NotNil(result.Link)
		s.Equal(link.LinkID, result.Link.LinkID)
		s.Equal(delegator, result.Link.FromAgent)
		s.Equal(delegate, result.Link.ToAgent)
	})

	s.Run("a wildcard link covers a concrete scope", func() {
		_, backingWire := s.issueBacking(id.ScopeVaultReadAll)
		_, wire := s.createLink(backingWire, id.ScopeVaultReadAll)

		result, err := s.service.VerifyTrustLink(s.ctxAt(testNow), wire, id.ScopeVaultReadEmail)
		s.Require().NoError(err)
		s.True(result.Valid)
	})

	s.Run("valid at the exact expiry instant", func() {
		_, backingWire := s.issueBacking(id.ScopeVaultReadEmail)
		link, wire := s.createLink(backingWire, id.ScopeVaultReadEmail)

		result, err := s.service.VerifyTrustLink(s.ctxAt(link.ExpiresAt), wire, id.ScopeVaultReadEmail)
		s.Require().NoError(err)
		s.True(result.Valid)
	})
}

// Once minted, a link stands on its own signature and window. The backing
// token bounded it at creation; nothing that happens to the token afterwards
// reaches the link.
func (s *ServiceSuite) TestVerifyTrustLink_SelfContained() {
	token, backingWire := s.issueBacking(id.ScopeVaultReadFinance)
	link, wire := s.createLink(backingWire, id.ScopeVaultReadFinance)

	s.Require().NoError(s.consents.RevokeToken(s.ctxAt(testNow), token.TokenID, token.ExpiresAt))

	backing, err := s.consents.ValidateToken(s.ctxAt(testNow.Add(time.Hour)), backingWire, id.ScopeVaultReadFinance)
	s.Require().NoError(err)
	s.False(backing.Valid, "the backing token itself is dead")

	result, err := s.service.VerifyTrustLink(s.ctxAt(testNow.Add(time.Hour)), wire, id.ScopeVaultReadFinance)
	s.Require().NoError(err)
	s.True(result.Valid, "the link survives revocation of the token that backed it")

	s.Require().NoError(s.service.RevokeTrustLink(s.ctxAt(testNow.Add(time.Hour)), link.LinkID, link.ExpiresAt))
	result, err = s.service.VerifyTrustLink(s.ctxAt(testNow.Add(2*time.Hour)), wire, id.ScopeVaultReadFinance)
	s.Require().NoError(err)
	s.Equal(id.ReasonRevoked, result.Reason, "only revoking the link itself recalls it")
}

func (s *ServiceSuite) TestVerifyTrustLink_Denials() {
	s.Run("malformed wire is denied without error", func() {
		_, backingWire := s.issueBacking(id.ScopeVaultReadEmail)

		for _, wire := range []string{
			"",
			"garbage",
			"HCT:bm90LWEtbGluaw.deadbeef",
			backingWire,
		} {
			result, err := s.service.VerifyTrustLink(s.ctxAt(testNow), wire, id.ScopeVaultReadEmail)
			s.Require().NoError(err)
			s.False(result.Valid)
			s.Equal(id.ReasonMalformedToken, result.Reason)
			s.Nil(result.Link)
		}
	})

	s.Run("flipped signature digit is an invalid signature", func() {
		_, backingWire := s.issueBacking(id.ScopeVaultReadEmail)
		_, wire := s.createLink(backingWire, id.ScopeVaultReadEmail)

		result, err := s.service.VerifyTrustLink(s.ctxAt(testNow), tamperSignature(wire), id.ScopeVaultReadEmail)
		s.Require().NoError(err)
		s.Equal(id.ReasonInvalidSignature, result.Reason)
		s.Nil(result.Link)
	})

	s.Run("a redirected delegate under a stale signature is an invalid signature", func() {
		_, backingWire := s.issueBacking(id.ScopeVaultReadEmail)
		link, _ := s.createLink(backingWire, id.ScopeVaultReadEmail)

		hijacked := link
		hijacked.ToAgent = id.AgentID("agent_mallory")
		forged := trust.EncodeLink(hijacked)

		result, err := s.service.VerifyTrustLink(s.ctxAt(testNow), forged, id.ScopeVaultReadEmail)
		s.Require().NoError(err)
		s.Equal(id.ReasonInvalidSignature, result.Reason)
	})

	s.Run("a link signed under another key is an invalid signature", func() {
		otherSecret := []byte("other-secret-other-secret-other-")
		discard := slog.New(slog.DiscardHandler)
		otherConsents := consentservice.New(otherSecret, s.registry, consent.NewMemoryRecords(), nil, nil, discard)
		other := New(otherSecret, 0, otherConsents, s.registry, nil, nil, discard)

		_, backingWire, err := otherConsents.IssueToken(s.ctxAt(testNow), testUser, delegator, id.ScopeVaultReadEmail, backingTTL)
		s.Require().NoError(err)
		_, wire, err := other.CreateTrustLink(s.ctxAt(testNow), backingWire, delegate, id.ScopeVaultReadEmail, 0)
		s.Require().NoError(err)

		result, err := s.service.VerifyTrustLink(s.ctxAt(testNow), wire, id.ScopeVaultReadEmail)
		s.Require().NoError(err)
		s.Equal(id.ReasonInvalidSignature, result.Reason)
	})

	s.Run("past expiry is denied as expired", func() {
		_, backingWire := s.issueBacking(id.ScopeVaultReadEmail)
		link, wire := s.createLink(backingWire, id.ScopeVaultReadEmail)

		result, err := s.service.VerifyTrustLink(s.ctxAt(link.ExpiresAt.Add(time.Millisecond)), wire, id.ScopeVaultReadEmail)
		s.Require().NoError(err)
		s.Equal(id.ReasonTokenExpired, result.Reason)
		s.Nil(result.Link)
	})

	s.Run("revocation is sticky", func() {
		_, backingWire := s.issueBacking(id.ScopeVaultReadEmail)
		link, wire := s.createLink(backingWire, id.ScopeVaultReadEmail)
		s.Require().NoError(s.service.RevokeTrustLink(s.ctxAt(testNow), link.LinkID, link.ExpiresAt))

		for _, at := range []time.Time{testNow.Add(time.Minute), testNow.Add(24 * time.Hour)} {
			result, err := s.service.VerifyTrustLink(s.ctxAt(at), wire, id.ScopeVaultReadEmail)
			s.Require().NoError(err)
			s.Equal(id.ReasonRevoked, result.Reason)
			s.Nil(result.Link)
		}
	})

	s.Run("a narrow link never covers the wildcard", func() {
		_, backingWire := s.issueBacking(id.ScopeVaultReadEmail)
		_, wire := s.createLink(backingWire, id.ScopeVaultReadEmail)

		result, err := s.service.VerifyTrustLink(s.ctxAt(testNow), wire, id.ScopeVaultReadAll)
		s.Require().NoError(err)
		s.Equal(id.ReasonScopeMismatch, result.Reason)
	})
}

func (s *ServiceSuite) TestVerifyTrustLink_CheckOrder() {
	s.Run("signature is reported before expiry", func() {
		_, backingWire := s.issueBacking(id.ScopeVaultReadEmail)
		link, wire := s.createLink(backingWire, id.ScopeVaultReadEmail)

		result, err := s.service.VerifyTrustLink(s.ctxAt(link.ExpiresAt.Add(time.Hour)), tamperSignature(wire), id.ScopeVaultReadEmail)
		s.Require().NoError(err)
		s.Equal(id.ReasonInvalidSignature, result.Reason)
	})

	s.Run("expiry is reported before revocation", func() {
		_, backingWire := s.issueBacking(id.ScopeVaultReadEmail)
		link, wire := s.createLink(backingWire, id.ScopeVaultReadEmail)
		s.Require().NoError(s.service.RevokeTrustLink(s.ctxAt(testNow), link.LinkID, link.ExpiresAt))

		result, err := s.service.VerifyTrustLink(s.ctxAt(link.ExpiresAt.Add(time.Second)), wire, id.ScopeVaultReadEmail)
		s.Require().NoError(err)
		s.Equal(id.ReasonTokenExpired, result.Reason)
	})

	s.Run("revocation is reported before scope", func() {
		_, backingWire := s.issueBacking(id.ScopeVaultReadEmail)
		link, wire := s.createLink(backingWire, id.ScopeVaultReadEmail)
		s.Require().NoError(s.service.RevokeTrustLink(s.ctxAt(testNow), link.LinkID, link.ExpiresAt))

		result, err := s.service.VerifyTrustLink(s.ctxAt(testNow), wire, id.ScopeVaultReadAll)
		s.Require().NoError(err)
		s.Equal(id.ReasonRevoked, result.Reason)
	})
}

// failingRegistry errors on every call to exercise the fail-closed path.
type failingRegistry struct{}

func (failingRegistry) Revoke(context.Context, string, time.Time, time.Time) error {
	return assert.AnError
}

func (failingRegistry) IsRevoked(context.Context, string, time.Time) (bool, error) {
	return false, assert.AnError
}

func (s *ServiceSuite) TestVerifyTrustLink_RegistryFailureFailsClosed() {
	_, backingWire := s.issueBacking(id.ScopeVaultReadEmail)
	_, wire := s.createLink(backingWire, id.ScopeVaultReadEmail)

	discard := slog.New(slog.DiscardHandler)
	broken := New(s.secret, 0, s.consents, failingRegistry{}, nil, nil, discard)

	result, err := broken.VerifyTrustLink(s.ctxAt(testNow), wire, id.ScopeVaultReadEmail)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.False(result.Valid)
	s.Nil(result.Link)
}
