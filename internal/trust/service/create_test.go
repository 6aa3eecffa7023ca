package service

import (
	"strings"
	"time"

	"hushmcp/internal/trust"
	id "hushmcp/pkg/domain"
	dErrors "hushmcp/pkg/domain-errors"
	audit "hushmcp/pkg/platform/audit"
)

func (s *ServiceSuite) TestCreateTrustLink() {
	s.Run("delegates the remaining backing window by default", func() {
		token, backingWire := s.issueBacking(id.ScopeVaultReadFinance)

		link, wire, err := s.service.CreateTrustLink(s.ctxAt(testNow), backingWire, delegate, id.ScopeVaultReadFinance, 0)
		s.Require().NoError(err)

		s.Equal(delegator, link.FromAgent, "delegator comes from the backing token, not the caller")
		s.Equal(delegate, link.ToAgent)
		s.Equal(id.ScopeVaultReadFinance, link.Scope)
		s.True(link.IssuedAt.Equal(testNow))
		s.True(link.ExpiresAt.Equal(token.ExpiresAt))
		s.True(strings.HasPrefix(link.LinkID.String(), "lid_"))
		s.Len(link.Signature, 64)

		parsed, _, err := trust.ParseLink(wire)
		s.Require().NoError(err)
		s.Equal(link, parsed)
	})

	s.Run("the configured window caps long backing tokens", func() {
		_, backingWire, err := s.consents.IssueToken(s.ctxAt(testNow), testUser, delegator, id.ScopeVaultReadEmail, 60*24*time.Hour)
		s.Require().NoError(err)

		link, _, err := s.service.CreateTrustLink(s.ctxAt(testNow), backingWire, delegate, id.ScopeVaultReadEmail, 0)
		s.Require().NoError(err)
		s.True(link.ExpiresAt.Equal(testNow.Add(DefaultLinkTTL)))
	})

	s.Run("an explicit ttl sets the window", func() {
		_, backingWire := s.issueBacking(id.ScopeVaultReadEmail)

		link, _, err := s.service.CreateTrustLink(s.ctxAt(testNow), backingWire, delegate, id.ScopeVaultReadEmail, time.Hour)
		s.Require().NoError(err)
		s.True(link.ExpiresAt.Equal(testNow.Add(time.Hour)))
	})

	s.Run("a ttl filling the window exactly is allowed", func() {
		token, backingWire := s.issueBacking(id.ScopeVaultReadEmail)

		link, _, err := s.service.CreateTrustLink(s.ctxAt(testNow), backingWire, delegate, id.ScopeVaultReadEmail, backingTTL)
		s.Require().NoError(err)
		s.True(link.ExpiresAt.Equal(token.ExpiresAt))
	})

	s.Run("a ttl past the backing window is rejected, never clamped", func() {
		_, backingWire := s.issueBacking(id.ScopeVaultReadEmail)

		_, _, err := s.service.CreateTrustLink(s.ctxAt(testNow), backingWire, delegate, id.ScopeVaultReadEmail, backingTTL+time.Millisecond)
		s.True(dErrors.HasCode(err, dErrors.CodeDelegationWindowExceeded))
	})

	s.Run("delegation cannot widen the backing scope", func() {
		_, backingWire := s.issueBacking(id.ScopeVaultReadEmail)

		_, _, err := s.service.CreateTrustLink(s.ctxAt(testNow), backingWire, delegate, id.ScopeVaultReadAll, 0)
		s.True(dErrors.HasCode(err, dErrors.CodeDelegationScopeExceeded))

		_, _, err = s.service.CreateTrustLink(s.ctxAt(testNow), backingWire, delegate, id.ScopeAgentFinanceAnalyze, 0)
		s.True(dErrors.HasCode(err, dErrors.CodeDelegationScopeExceeded))
	})

	s.Run("narrowing a wildcard grant is allowed", func() {
		_, backingWire := s.issueBacking(id.ScopeVaultReadAll)

		link, _, err := s.service.CreateTrustLink(s.ctxAt(testNow), backingWire, delegate, id.ScopeVaultReadPhone, 0)
		s.Require().NoError(err)
		s.Equal(id.ScopeVaultReadPhone, link.Scope, "the link carries the narrowed scope")
	})

	s.Run("a malformed backing token is invalid consent", func() {
		_, _, err := s.service.CreateTrustLink(s.ctxAt(testNow), "garbage", delegate, id.ScopeVaultReadEmail, 0)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidConsent))
	})

	s.Run("a revoked backing token is invalid consent", func() {
		token, backingWire := s.issueBacking(id.ScopeVaultReadContacts)
		s.Require().NoError(s.consents.RevokeToken(s.ctxAt(testNow), token.TokenID, token.ExpiresAt))

		_, _, err := s.service.CreateTrustLink(s.ctxAt(testNow), backingWire, delegate, id.ScopeVaultReadContacts, 0)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidConsent))
	})

	s.Run("an expired backing token is invalid consent even on a scope mismatch", func() {
		_, backingWire := s.issueBacking(id.ScopeVaultReadCalendar)

		after := testNow.Add(backingTTL + time.Hour)
		_, _, err := s.service.CreateTrustLink(s.ctxAt(after), backingWire, delegate, id.ScopeVaultReadAll, 0)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidConsent),
			"expiry is checked before scope, so the subsumption verdict never fires on a dead token")
	})

	s.Run("input preconditions are rejected before the backing token is read", func() {
		_, backingWire := s.issueBacking(id.ScopeVaultReadEmail)

		_, _, err := s.service.CreateTrustLink(s.ctxAt(testNow), backingWire, "", id.ScopeVaultReadEmail, 0)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		_, _, err = s.service.CreateTrustLink(s.ctxAt(testNow), backingWire, delegate, "vault.write.email", 0)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		_, _, err = s.service.CreateTrustLink(s.ctxAt(testNow), backingWire, delegate, id.ScopeVaultReadEmail, -time.Hour)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("creation is audited", func() {
		_, backingWire := s.issueBacking(id.ScopeVaultReadFinance)
		link, _ := s.createLink(backingWire, id.ScopeVaultReadFinance)

		events := s.publisher.byName(audit.EventLinkCreated)
		s.Require().NotEmpty(events)
		last := events[len(events)-1]
		s.Equal(delegator.String(), last.Actor)
		s.Equal(testUser.String(), last.Subject)
		s.Equal(link.LinkID.String(), last.Detail["link_id"])
		s.Equal(delegate.String(), last.Detail["to_agent"])
		s.Equal("vault.read.finance", last.Detail["scope"])
	})
}
