package service

import (
	"bytes"
	"strings"
	"time"

	"hushmcp/internal/vault"
	id "hushmcp/pkg/domain"
	dErrors "hushmcp/pkg/domain-errors"
)

func (s *ServiceSuite) TestEncryptData() {
	s.Run("seals under the token's user", func() {
		_, wire := s.issueToken(id.ScopeVaultReadFinance)
		plaintext := []byte("hello vault")

		stored, err := s.service.EncryptData(s.ctxAt(testNow), wire, id.ScopeVaultReadFinance, "banking", plaintext, "")
		s.Require().NoError(err)

		s.Equal(testUser, stored.UserID)
		s.Equal("banking", stored.Category)
		s.True(strings.HasPrefix(stored.ID.String(), "rec_"))
		s.Equal(vault.AlgorithmAESGCM, stored.Record.Algorithm)
		s.Equal(testAgent, stored.Record.Metadata.AgentID)
		s.Equal(id.ScopeVaultReadFinance, stored.Record.Metadata.Scope)
		s.Equal(testNow, stored.Record.Metadata.CreatedAt)
		s.NotEqual(plaintext, stored.Record.Ciphertext)

		persisted, err := s.store.Get(s.ctxAt(testNow), testUser, "banking", stored.ID)
		s.Require().NoError(err)
		s.Equal(stored, persisted)

		s.Empty(s.publisher.events, "routine engine access is not audited")
	})

	s.Run("ciphertext opens under the per-user derived key", func() {
		_, wire := s.issueToken(id.ScopeVaultReadFinance)
		stored := s.seal(wire, id.ScopeVaultReadFinance, "banking", []byte("hello vault"))

		key, err := vault.DeriveKey(testMaster, testUser, id.ScopeVaultReadFinance)
		s.Require().NoError(err)
		plaintext, err := vault.Decrypt(stored.Record, key)
		s.Require().NoError(err)
		s.Equal([]byte("hello vault"), plaintext)

		_, err = vault.Decrypt(stored.Record, testMaster)
		s.Error(err, "the master key itself never seals records")
	})

	s.Run("explicit algorithm", func() {
		_, wire := s.issueToken(id.ScopeVaultReadFinance)

		stored, err := s.service.EncryptData(s.ctxAt(testNow), wire, id.ScopeVaultReadFinance, "banking",
			[]byte("hello vault"), vault.AlgorithmChaCha20Poly1305)
		s.Require().NoError(err)
		s.Equal(vault.AlgorithmChaCha20Poly1305, stored.Record.Algorithm)
	})

	s.Run("wildcard token covers a concrete scope", func() {
		_, wire := s.issueToken(id.ScopeVaultReadAll)

		stored, err := s.service.EncryptData(s.ctxAt(testNow), wire, id.ScopeVaultReadEmail, "inbox", []byte("mail"), "")
		s.Require().NoError(err)
		s.Equal(id.ScopeVaultReadEmail, stored.Record.Metadata.Scope, "the record carries the declared scope, not the token's")
	})

	s.Run("token scope does not cover declared scope", func() {
		_, wire := s.issueToken(id.ScopeVaultReadEmail)

		_, err := s.service.EncryptData(s.ctxAt(testNow), wire, id.ScopeVaultReadFinance, "banking", []byte("x"), "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeMissingConsent))

		records, listErr := s.store.RecordsForUser(s.ctxAt(testNow), testUser)
		s.Require().NoError(listErr)
		s.Empty(records, "nothing is stored on denial")
	})

	s.Run("rejected tokens", func() {
		token, wire := s.issueToken(id.ScopeVaultReadFinance)

		_, err := s.service.EncryptData(s.ctxAt(testNow), "garbage", id.ScopeVaultReadFinance, "banking", []byte("x"), "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidConsent))

		_, err = s.service.EncryptData(s.ctxAt(testNow.Add(tokenTTL+time.Hour)), wire, id.ScopeVaultReadFinance, "banking", []byte("x"), "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidConsent), "expired token")

		s.Require().NoError(s.consents.RevokeToken(s.ctxAt(testNow), token.TokenID, token.ExpiresAt))
		_, err = s.service.EncryptData(s.ctxAt(testNow), wire, id.ScopeVaultReadFinance, "banking", []byte("x"), "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidConsent), "revoked token")
	})

	s.Run("preconditions", func() {
		_, wire := s.issueToken(id.ScopeVaultReadFinance)

		_, err := s.service.EncryptData(s.ctxAt(testNow), wire, id.ConsentScope("vault.write.email"), "banking", []byte("x"), "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput), "scope outside the registry")

		_, err = s.service.EncryptData(s.ctxAt(testNow), wire, id.ScopeVaultReadFinance, "", []byte("x"), "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput), "empty category")

		long := strings.Repeat("c", 65)
		_, err = s.service.EncryptData(s.ctxAt(testNow), wire, id.ScopeVaultReadFinance, long, []byte("x"), "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput), "oversized category")

		_, err = s.service.EncryptData(s.ctxAt(testNow), wire, id.ScopeVaultReadFinance, "banking", []byte("x"), vault.Algorithm("rot13"))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput), "unknown algorithm")
	})

	s.Run("records under the same scope never share a nonce", func() {
		_, wire := s.issueToken(id.ScopeVaultReadFinance)

		first := s.seal(wire, id.ScopeVaultReadFinance, "banking", []byte("hello vault"))
		second := s.seal(wire, id.ScopeVaultReadFinance, "banking", []byte("hello vault"))
		s.NotEqual(first.ID, second.ID)
		s.False(bytes.Equal(first.Record.Nonce, second.Record.Nonce))
		s.False(bytes.Equal(first.Record.Ciphertext, second.Record.Ciphertext))
	})
}
