package service

import (
	"time"

	"hushmcp/internal/consent"
	id "hushmcp/pkg/domain"
	dErrors "hushmcp/pkg/domain-errors"
	audit "hushmcp/pkg/platform/audit"
)

func (s *ServiceSuite) TestIssueToken() {
	s.Run("mints a signed token with the requested window", func() {
		token, wire := s.issue(id.ScopeVaultReadFinance)

		s.Equal(testUser, token.UserID)
		s.Equal(testAgent, token.AgentID)
		s.Equal(id.ScopeVaultReadFinance, token.Scope)
		s.True(token.IssuedAt.Equal(testNow))
		s.True(token.ExpiresAt.Equal(testNow.Add(testTTL)))
		s.False(token.TokenID.IsZero())
		s.Len(token.Signature, 64)
		s.True(len(wire) > len(consent.TokenPrefix))
	})

	s.Run("wire form round-trips to the minted token", func() {
		token, wire := s.issue(id.ScopeVaultReadEmail)

		parsed, _, err := consent.ParseToken(wire)
		s.Require().NoError(err)
		s.Equal(token.UserID, parsed.UserID)
		s.Equal(token.AgentID, parsed.AgentID)
		s.Equal(token.Scope, parsed.Scope)
		s.Equal(token.TokenID, parsed.TokenID)
		s.Equal(token.Signature, parsed.Signature)
		s.True(parsed.IssuedAt.Equal(token.IssuedAt))
		s.True(parsed.ExpiresAt.Equal(token.ExpiresAt))
	})

	s.Run("issuance truncates the clock to milliseconds", func() {
		// Sub-millisecond precision would be lost on the wire, leaving the
		// struct out of sync with its own encoding.
		messy := testNow.Add(123456 * time.Nanosecond)
		token, _, err := s.service.IssueToken(s.ctxAt(messy), testUser, testAgent, id.ScopeVaultReadEmail, testTTL)
		s.Require().NoError(err)
		s.True(token.IssuedAt.Equal(testNow))
		s.Zero(token.ExpiresAt.Nanosecond() % int(time.Millisecond))
	})

	s.Run("missing principals return invalid input", func() {
		_, _, err := s.service.IssueToken(s.ctxAt(testNow), id.UserID(""), testAgent, id.ScopeVaultReadEmail, testTTL)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		_, _, err = s.service.IssueToken(s.ctxAt(testNow), testUser, id.AgentID(""), id.ScopeVaultReadEmail, testTTL)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("scope outside the registry returns invalid input", func() {
		_, _, err := s.service.IssueToken(s.ctxAt(testNow), testUser, testAgent, id.ConsentScope("vault.write.email"), testTTL)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("non-positive ttl returns invalid input", func() {
		for _, ttl := range []time.Duration{0, -time.Hour} {
			_, _, err := s.service.IssueToken(s.ctxAt(testNow), testUser, testAgent, id.ScopeVaultReadEmail, ttl)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
		}
	})

	s.Run("emits an issued audit event", func() {
		token, _ := s.issue(id.ScopeVaultReadFinance)

		events := s.publisher.byName(audit.EventTokenIssued)
		s.Require().NotEmpty(events)
		last := events[len(events)-1]
		s.Equal(testAgent.String(), last.Actor)
		s.Equal(testUser.String(), last.Subject)
		s.Equal(token.TokenID.String(), last.Detail["token_id"])
		s.Equal(id.ScopeVaultReadFinance.String(), last.Detail["scope"])
	})
}

func (s *ServiceSuite) TestRevokeToken() {
	s.Run("revocation is idempotent", func() {
		token, _ := s.issue(id.ScopeVaultReadEmail)

		s.NoError(s.service.RevokeToken(s.ctxAt(testNow), token.TokenID, token.ExpiresAt))
		s.NoError(s.service.RevokeToken(s.ctxAt(testNow.Add(time.Hour)), token.TokenID, token.ExpiresAt))

		revoked, err := s.registry.IsRevoked(s.ctxAt(testNow), token.TokenID.String(), testNow.Add(time.Hour))
		s.Require().NoError(err)
		s.True(revoked)
	})

	s.Run("zero token id returns invalid input", func() {
		err := s.service.RevokeToken(s.ctxAt(testNow), id.TokenID(""), testNow.Add(testTTL))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("zero expiry returns invalid input", func() {
		token, _ := s.issue(id.ScopeVaultReadEmail)
		err := s.service.RevokeToken(s.ctxAt(testNow), token.TokenID, time.Time{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("emits a revoked audit event", func() {
		token, _ := s.issue(id.ScopeVaultReadEmail)
		s.Require().NoError(s.service.RevokeToken(s.ctxAt(testNow), token.TokenID, token.ExpiresAt))

		events := s.publisher.byName(audit.EventTokenRevoked)
		s.Require().NotEmpty(events)
		s.Equal(token.TokenID.String(), events[len(events)-1].Detail["token_id"])
	})
}
