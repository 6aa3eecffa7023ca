package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/stretchr/testify/assert"

	"hushmcp/internal/consent"
	id "hushmcp/pkg/domain"
	dErrors "hushmcp/pkg/domain-errors"
	audit "hushmcp/pkg/platform/audit"
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

func (s *ServiceSuite) TestValidateToken_Granted() {
	s.Run("matching scope validates", func() {
		token, wire := s.issue(id.ScopeVaultReadEmail)

		result, err := s.service.ValidateToken(s.ctxAt(testNow.Add(time.Hour)), wire, id.ScopeVaultReadEmail)
		s.Require().NoError(err)
		s.True(result.Valid)
		s.Empty(result.Reason)
		s.Require().NotNil(result.Token)
		s.Equal(token.TokenID, result.Token.TokenID)
		s.Equal(testUser, result.Token.UserID)
	})

	s.Run("wildcard grant covers a concrete scope", func() {
		_, wire := s.issue(id.ScopeVaultReadAll)

		result, err := s.service.ValidateToken(s.ctxAt(testNow), wire, id.ScopeVaultReadEmail)
		s.Require().NoError(err)
		s.True(result.Valid)
	})

	s.Run("valid at the exact expiry instant", func() {
		token, wire := s.issue(id.ScopeVaultReadEmail)

		result, err := s.service.ValidateToken(s.ctxAt(token.ExpiresAt), wire, id.ScopeVaultReadEmail)
		s.Require().NoError(err)
		s.True(result.Valid)
	})

	s.Run("matching expected user validates", func() {
		_, wire := s.issue(id.ScopeVaultReadEmail)

		result, err := s.service.ValidateToken(s.ctxAt(testNow), wire, id.ScopeVaultReadEmail, WithExpectedUser(testUser))
		s.Require().NoError(err)
		s.True(result.Valid)
	})

	s.Run("emits a checked audit event", func() {
		token, wire := s.issue(id.ScopeVaultReadEmail)

		_, err := s.service.ValidateToken(s.ctxAt(testNow), wire, id.ScopeVaultReadEmail)
		s.Require().NoError(err)

		events := s.publisher.byName(audit.EventTokenChecked)
		s.Require().NotEmpty(events)
		s.Equal(token.TokenID.String(), events[len(events)-1].Detail["token_id"])
	})
}

func (s *ServiceSuite) TestValidateToken_Denials() {
	s.Run("malformed wire is denied without error", func() {
		for _, wire := range []string{
			"",
			"garbage",
			"HTL:bm90LWEtdG9rZW4.deadbeef",
			strings.Repeat("A", 200),
		} {
			result, err := s.service.ValidateToken(s.ctxAt(testNow), wire, id.ScopeVaultReadEmail)
			s.Require().NoError(err)
			s.False(result.Valid)
			s.Equal(id.ReasonMalformedToken, result.Reason)
			s.Nil(result.Token)
		}
	})

	s.Run("missing signature separator is malformed", func() {
		_, wire := s.issue(id.ScopeVaultReadEmail)

		result, err := s.service.ValidateToken(s.ctxAt(testNow), strings.ReplaceAll(wire, ".", ""), id.ScopeVaultReadEmail)
		s.Require().NoError(err)
		s.Equal(id.ReasonMalformedToken, result.Reason)
	})

	s.Run("flipped signature digit is an invalid signature", func() {
		_, wire := s.issue(id.ScopeVaultReadEmail)

		result, err := s.service.ValidateToken(s.ctxAt(testNow), tamperSignature(wire), id.ScopeVaultReadEmail)
		s.Require().NoError(err)
		s.False(result.Valid)
		s.Equal(id.ReasonInvalidSignature, result.Reason)
		s.Nil(result.Token)
	})

	s.Run("payload swapped under a stale signature is an invalid signature", func() {
		token, _ := s.issue(id.ScopeVaultReadEmail)

		escalated := token
		escalated.Scope = id.ScopeVaultReadAll
		forged := consent.EncodeToken(escalated)

		result, err := s.service.ValidateToken(s.ctxAt(testNow), forged, id.ScopeVaultReadEmail)
		s.Require().NoError(err)
		s.Equal(id.ReasonInvalidSignature, result.Reason)
	})

	s.Run("token signed under another key is an invalid signature", func() {
		other := New([]byte("other-secret-other-secret-other-"), s.registry, s.records, nil, nil, slog.New(slog.DiscardHandler))
		_, wire, err := other.IssueToken(s.ctxAt(testNow), testUser, testAgent, id.ScopeVaultReadEmail, testTTL)
		s.Require().NoError(err)

		result, err := s.service.ValidateToken(s.ctxAt(testNow), wire, id.ScopeVaultReadEmail)
		s.Require().NoError(err)
		s.Equal(id.ReasonInvalidSignature, result.Reason)
	})

	s.Run("past expiry is denied as expired", func() {
		token, wire := s.issue(id.ScopeVaultReadEmail)

		result, err := s.service.ValidateToken(s.ctxAt(token.ExpiresAt.Add(time.Millisecond)), wire, id.ScopeVaultReadEmail)
		s.Require().NoError(err)
		s.Equal(id.ReasonTokenExpired, result.Reason)
		s.Nil(result.Token)
	})

	s.Run("revocation is sticky", func() {
		token, wire := s.issue(id.ScopeVaultReadEmail)
		s.Require().NoError(s.service.RevokeToken(s.ctxAt(testNow), token.TokenID, token.ExpiresAt))

		for _, at := range []time.Time{testNow.Add(time.Minute), testNow.Add(24 * time.Hour)} {
			result, err := s.service.ValidateToken(s.ctxAt(at), wire, id.ScopeVaultReadEmail)
			s.Require().NoError(err)
			s.Equal(id.ReasonRevoked, result.Reason)
			s.Nil(result.Token)
		}
	})

	s.Run("narrow grant never covers the wildcard", func() {
		_, wire := s.issue(id.ScopeVaultReadEmail)

		result, err := s.service.ValidateToken(s.ctxAt(testNow), wire, id.ScopeVaultReadAll)
		s.Require().NoError(err)
		s.Equal(id.ReasonScopeMismatch, result.Reason)
	})

	s.Run("unrelated scope is a mismatch", func() {
		_, wire := s.issue(id.ScopeVaultReadFinance)

		result, err := s.service.ValidateToken(s.ctxAt(testNow), wire, id.ScopeVaultReadPhone)
		s.Require().NoError(err)
		s.Equal(id.ReasonScopeMismatch, result.Reason)
	})

	s.Run("wrong expected user is a user mismatch", func() {
		_, wire := s.issue(id.ScopeVaultReadEmail)

		result, err := s.service.ValidateToken(s.ctxAt(testNow), wire, id.ScopeVaultReadEmail, WithExpectedUser(id.UserID("user_mallory")))
		s.Require().NoError(err)
		s.Equal(id.ReasonUserMismatch, result.Reason)
		s.Nil(result.Token)
	})

	s.Run("every denial emits a denied audit event with the reason", func() {
		before := len(s.publisher.byName(audit.EventTokenDenied))

		_, wire := s.issue(id.ScopeVaultReadEmail)
		result, err := s.service.ValidateToken(s.ctxAt(testNow), wire, id.ScopeVaultReadPhone)
		s.Require().NoError(err)
		s.False(result.Valid)

		events := s.publisher.byName(audit.EventTokenDenied)
		s.Require().Len(events, before+1)
		s.Equal(id.ReasonScopeMismatch.String(), events[len(events)-1].Detail["reason"])
	})
}

func (s *ServiceSuite) TestValidateToken_CheckOrder() {
	s.Run("expiry is reported before revocation", func() {
		token, wire := s.issue(id.ScopeVaultReadEmail)
		s.Require().NoError(s.service.RevokeToken(s.ctxAt(testNow), token.TokenID, token.ExpiresAt))

		result, err := s.service.ValidateToken(s.ctxAt(token.ExpiresAt.Add(time.Second)), wire, id.ScopeVaultReadEmail)
		s.Require().NoError(err)
		s.Equal(id.ReasonTokenExpired, result.Reason)
	})

	s.Run("signature is reported before expiry", func() {
		token, wire := s.issue(id.ScopeVaultReadEmail)

		result, err := s.service.ValidateToken(s.ctxAt(token.ExpiresAt.Add(time.Second)), tamperSignature(wire), id.ScopeVaultReadEmail)
		s.Require().NoError(err)
		s.Equal(id.ReasonInvalidSignature, result.Reason)
	})

	s.Run("revocation is reported before scope", func() {
		token, wire := s.issue(id.ScopeVaultReadEmail)
		s.Require().NoError(s.service.RevokeToken(s.ctxAt(testNow), token.TokenID, token.ExpiresAt))

		result, err := s.service.ValidateToken(s.ctxAt(testNow), wire, id.ScopeVaultReadPhone)
		s.Require().NoError(err)
		s.Equal(id.ReasonRevoked, result.Reason)
	})

	s.Run("scope is reported before user", func() {
		_, wire := s.issue(id.ScopeVaultReadEmail)

		result, err := s.service.ValidateToken(s.ctxAt(testNow), wire, id.ScopeVaultReadPhone, WithExpectedUser(id.UserID("user_mallory")))
		s.Require().NoError(err)
		s.Equal(id.ReasonScopeMismatch, result.Reason)
	})
}

// failingRegistry simulates an unreachable revocation backend.
type failingRegistry struct{}

func (failingRegistry) Revoke(context.Context, string, time.Time, time.Time) error {
	return assert.AnError
}

func (failingRegistry) IsRevoked(context.Context, string, time.Time) (bool, error) {
	return false, assert.AnError
}

func (s *ServiceSuite) TestValidateToken_RegistryFailureFailsClosed() {
	_, wire := s.issue(id.ScopeVaultReadEmail)

	broken := New(s.secret, failingRegistry{}, s.records, nil, nil, slog.New(slog.DiscardHandler))
	result, err := broken.ValidateToken(s.ctxAt(testNow), wire, id.ScopeVaultReadEmail)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.False(result.Valid)
	s.Nil(result.Token)
}
