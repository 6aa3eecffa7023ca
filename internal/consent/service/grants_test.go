package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/stretchr/testify/assert"

	"hushmcp/internal/consent"
	id "hushmcp/pkg/domain"
	dErrors "hushmcp/pkg/domain-errors"
)

func (s *ServiceSuite) TestGrantConsent() {
	s.Run("records the grant and returns a validating token", func() {
		record, wire, err := s.service.GrantConsent(s.ctxAt(testNow), testUser, testAgent, id.ScopeVaultReadFinance, testTTL)
		s.Require().NoError(err)

		s.Equal(testUser, record.UserID)
		s.Equal(testAgent, record.AgentID)
		s.Equal(id.ScopeVaultReadFinance, record.Scope)
		s.Equal(consent.ConsentStatusActive, record.Status)
		s.Equal(consent.HashToken(wire), record.TokenHash)

		result, err := s.service.ValidateToken(s.ctxAt(testNow), wire, id.ScopeVaultReadFinance)
		s.Require().NoError(err)
		s.True(result.Valid)

		active, err := s.service.ActiveConsents(s.ctxAt(testNow), testUser)
		s.Require().NoError(err)
		s.Require().Len(active, 1)
		s.Equal(record.TokenID, active[0].TokenID)
	})

	s.Run("issuance failures record nothing", func() {
		user := id.UserID("user_rejected")
		_, _, err := s.service.GrantConsent(s.ctxAt(testNow), user, testAgent, id.ConsentScope("bogus"), testTTL)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		active, err := s.service.ActiveConsents(s.ctxAt(testNow), user)
		s.Require().NoError(err)
		s.Empty(active)
	})

	s.Run("record failure revokes the minted token", func() {
		broken := New(s.secret, s.registry, failingRecords{s.records}, nil, nil, slog.New(slog.DiscardHandler))

		_, _, err := broken.GrantConsent(s.ctxAt(testNow), testUser, testAgent, id.ScopeVaultReadEmail, testTTL)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))

		// The unrecorded token must not stay live.
		s.Equal(1, s.registry.Len())
	})
}

func (s *ServiceSuite) TestRevokeConsent() {
	s.Run("revokes by opaque token", func() {
		record, wire, err := s.service.GrantConsent(s.ctxAt(testNow), testUser, testAgent, id.ScopeVaultReadEmail, testTTL)
		s.Require().NoError(err)

		s.Require().NoError(s.service.RevokeConsent(s.ctxAt(testNow), testUser, wire))

		result, err := s.service.ValidateToken(s.ctxAt(testNow), wire, id.ScopeVaultReadEmail)
		s.Require().NoError(err)
		s.Equal(id.ReasonRevoked, result.Reason)

		stored, err := s.records.ConsentByTokenID(context.Background(), record.TokenID)
		s.Require().NoError(err)
		s.Equal(consent.ConsentStatusRevoked, stored.Status)
	})

	s.Run("revokes by token id", func() {
		record, wire, err := s.service.GrantConsent(s.ctxAt(testNow), testUser, testAgent, id.ScopeVaultReadPhone, testTTL)
		s.Require().NoError(err)

		s.Require().NoError(s.service.RevokeConsent(s.ctxAt(testNow), testUser, record.TokenID.String()))

		result, err := s.service.ValidateToken(s.ctxAt(testNow), wire, id.ScopeVaultReadPhone)
		s.Require().NoError(err)
		s.Equal(id.ReasonRevoked, result.Reason)
	})

	s.Run("revocation is idempotent", func() {
		record, _, err := s.service.GrantConsent(s.ctxAt(testNow), testUser, testAgent, id.ScopeVaultReadEmail, testTTL)
		s.Require().NoError(err)

		s.NoError(s.service.RevokeConsent(s.ctxAt(testNow), testUser, record.TokenID.String()))
		s.NoError(s.service.RevokeConsent(s.ctxAt(testNow.Add(time.Hour)), testUser, record.TokenID.String()))
	})

	s.Run("unknown token id returns not found", func() {
		err := s.service.RevokeConsent(s.ctxAt(testNow), testUser, id.NewTokenID().String())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("another user's grant is reported as not found", func() {
		record, wire, err := s.service.GrantConsent(s.ctxAt(testNow), testUser, testAgent, id.ScopeVaultReadEmail, testTTL)
		s.Require().NoError(err)

		err = s.service.RevokeConsent(s.ctxAt(testNow), id.UserID("user_mallory"), record.TokenID.String())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		// The grant is untouched.
		result, err := s.service.ValidateToken(s.ctxAt(testNow), wire, id.ScopeVaultReadEmail)
		s.Require().NoError(err)
		s.True(result.Valid)
	})

	s.Run("garbage identifier returns invalid input", func() {
		err := s.service.RevokeConsent(s.ctxAt(testNow), testUser, "not-a-token-id")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("missing user returns invalid input", func() {
		err := s.service.RevokeConsent(s.ctxAt(testNow), id.UserID(""), id.NewTokenID().String())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *ServiceSuite) TestActiveConsents() {
	s.Run("lists live grants newest first", func() {
		for i, scope := range []id.ConsentScope{id.ScopeVaultReadEmail, id.ScopeVaultReadPhone, id.ScopeVaultReadFinance} {
			_, _, err := s.service.GrantConsent(s.ctxAt(testNow.Add(time.Duration(i)*time.Hour)), testUser, testAgent, scope, testTTL)
			s.Require().NoError(err)
		}

		active, err := s.service.ActiveConsents(s.ctxAt(testNow.Add(3*time.Hour)), testUser)
		s.Require().NoError(err)
		s.Require().Len(active, 3)
		s.Equal(id.ScopeVaultReadFinance, active[0].Scope)
		s.Equal(id.ScopeVaultReadEmail, active[2].Scope)
	})

	s.Run("excludes expired grants", func() {
		user := id.UserID("user_short_lived")
		_, _, err := s.service.GrantConsent(s.ctxAt(testNow), user, testAgent, id.ScopeVaultReadEmail, time.Hour)
		s.Require().NoError(err)

		active, err := s.service.ActiveConsents(s.ctxAt(testNow.Add(2*time.Hour)), user)
		s.Require().NoError(err)
		s.Empty(active)
	})

	s.Run("excludes revoked grants", func() {
		user := id.UserID("user_revoker")
		record, _, err := s.service.GrantConsent(s.ctxAt(testNow), user, testAgent, id.ScopeVaultReadEmail, testTTL)
		s.Require().NoError(err)
		s.Require().NoError(s.service.RevokeConsent(s.ctxAt(testNow), user, record.TokenID.String()))

		active, err := s.service.ActiveConsents(s.ctxAt(testNow), user)
		s.Require().NoError(err)
		s.Empty(active)
	})

	s.Run("other users see nothing", func() {
		_, _, err := s.service.GrantConsent(s.ctxAt(testNow), testUser, testAgent, id.ScopeVaultReadEmail, testTTL)
		s.Require().NoError(err)

		active, err := s.service.ActiveConsents(s.ctxAt(testNow), id.UserID("user_mallory"))
		s.Require().NoError(err)
		s.Empty(active)
	})

	s.Run("missing user returns invalid input", func() {
		_, err := s.service.ActiveConsents(s.ctxAt(testNow), id.UserID(""))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

// failingRecords delegates to the in-memory store but refuses writes.
type failingRecords struct {
	*consent.MemoryRecords
}

func (failingRecords) RecordConsent(context.Context, consent.ConsentRecord) error {
	return assert.AnError
}
