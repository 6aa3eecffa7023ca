package service

import (
	"strings"
	"time"

	"hushmcp/internal/trust"
	id "hushmcp/pkg/domain"
	dErrors "hushmcp/pkg/domain-errors"
	audit "hushmcp/pkg/platform/audit"
)

func (s *ServiceSuite) TestRevokeTrustLink() {
	s.Run("revocation is immediate and idempotent", func() {
		_, backingWire := s.issueBacking(id.ScopeVaultReadEmail)
		link, wire := s.createLink(backingWire, id.ScopeVaultReadEmail)

		s.Require().NoError(s.service.RevokeTrustLink(s.ctxAt(testNow), link.LinkID, link.ExpiresAt))
		s.Require().NoError(s.service.RevokeTrustLink(s.ctxAt(testNow.Add(time.Hour)), link.LinkID, link.ExpiresAt))

		result, err := s.service.VerifyTrustLink(s.ctxAt(testNow.Add(time.Minute)), wire, id.ScopeVaultReadEmail)
		s.Require().NoError(err)
		s.Equal(id.ReasonRevoked, result.Reason)
	})

	s.Run("a zero link id is rejected", func() {
		err := s.service.RevokeTrustLink(s.ctxAt(testNow), "", testNow.Add(time.Hour))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("a zero expiry is rejected", func() {
		err := s.service.RevokeTrustLink(s.ctxAt(testNow), id.NewLinkID(), time.Time{})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("revocation is audited", func() {
		_, backingWire := s.issueBacking(id.ScopeVaultReadPhone)
		link, _ := s.createLink(backingWire, id.ScopeVaultReadPhone)
		s.Require().NoError(s.service.RevokeTrustLink(s.ctxAt(testNow), link.LinkID, link.ExpiresAt))

		events := s.publisher.byName(audit.EventLinkRevoked)
		s.Require().NotEmpty(events)
		s.Equal(link.LinkID.String(), events[len(events)-1].Detail["link_id"])
	})
}

func (s *ServiceSuite) TestRevokePresentedLink() {
	s.Run("possession of the signed link revokes it", func() {
		_, backingWire := s.issueBacking(id.ScopeVaultReadEmail)
		_, wire := s.createLink(backingWire, id.ScopeVaultReadEmail)

		s.Require().NoError(s.service.RevokePresentedLink(s.ctxAt(testNow), wire))

		result, err := s.service.VerifyTrustLink(s.ctxAt(testNow), wire, id.ScopeVaultReadEmail)
		s.Require().NoError(err)
		s.Equal(id.ReasonRevoked, result.Reason)

		events := s.publisher.byName(audit.EventLinkRevoked)
		s.Require().NotEmpty(events)
		last := events[len(events)-1]
		s.Equal(delegator.String(), last.Actor)
		s.Equal(delegate.String(), last.Subject)
	})

	s.Run("a fabricated wire naming a live link cannot kill it", func() {
		_, backingWire := s.issueBacking(id.ScopeVaultReadEmail)
		link, wire := s.createLink(backingWire, id.ScopeVaultReadEmail)

		forged := link
		forged.Signature = strings.Repeat("ab", 32)
		err := s.service.RevokePresentedLink(s.ctxAt(testNow), trust.EncodeLink(forged))
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		result, err := s.service.VerifyTrustLink(s.ctxAt(testNow), wire, id.ScopeVaultReadEmail)
		s.Require().NoError(err)
		s.True(result.Valid, "the real link is untouched")
	})

	s.Run("garbage wire is rejected", func() {
		err := s.service.RevokePresentedLink(s.ctxAt(testNow), "not-a-link")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}
