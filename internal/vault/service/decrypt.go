package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"hushmcp/internal/vault"
	id "hushmcp/pkg/domain"
	dErrors "hushmcp/pkg/domain-errors"
	"hushmcp/pkg/platform/sentinel"
)

// DecryptData opens a stored record for an agent whose token covers the
// declared scope. The record must actually live under that scope: a record
// shelved under a different scope is reported as not found, exactly like a
// wrong category or id, so callers cannot probe what else a user stores.
func (s *Service) DecryptData(
	ctx context.Context,
	tokenWire string,
	scope id.ConsentScope,
	category string,
	recordID vault.RecordID,
) (vault.DecryptedRecord, error) {
	ctx, span := tracer.Start(ctx, "vault.decrypt")
	defer span.End()
	span.SetAttributes(
		attribute.String("vault.scope", scope.String()),
		attribute.String("vault.category", category),
		attribute.String("vault.record_id", recordID.String()),
	)

	if !scope.IsValid() {
		return vault.DecryptedRecord{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown scope %q", scope.String())
	}
	if err := validateCategory(category); err != nil {
		return vault.DecryptedRecord{}, err
	}
	if recordID.IsZero() {
		return vault.DecryptedRecord{}, dErrors.New(dErrors.CodeInvalidInput, "record id is required")
	}

	token, err := s.authorize(ctx, "decrypt", tokenWire, scope)
	if err != nil {
		return vault.DecryptedRecord{}, err
	}

	stored, err := s.store.Get(ctx, token.UserID, category, recordID)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.metrics.ObserveVaultOperation("decrypt", "denied")
		return vault.DecryptedRecord{}, dErrors.Wrap(err, dErrors.CodeNotFound, "vault record not found")
	}
	if err != nil {
		s.metrics.ObserveVaultOperation("decrypt", "error")
		s.logger.ErrorContext(ctx, "get vault record failed", "error", err, "record_id", recordID.String())
		return vault.DecryptedRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "get vault record")
	}
	if stored.Record.Metadata.Scope != scope {
		s.metrics.ObserveVaultOperation("decrypt", "denied")
		return vault.DecryptedRecord{}, dErrors.New(dErrors.CodeNotFound, "vault record not found")
	}

	key, err := vault.DeriveKey(s.master, token.UserID, scope)
	if err != nil {
		return vault.DecryptedRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "derive vault key")
	}

	plaintext, err := vault.Decrypt(stored.Record, key)
	if err != nil {
		s.metrics.ObserveVaultOperation("decrypt", "error")
		s.logger.ErrorContext(ctx, "vault record failed integrity check",
			"error", err,
			"record_id", recordID.String(),
			"category", category,
		)
		return vault.DecryptedRecord{}, err
	}

	s.metrics.ObserveVaultOperation("decrypt", "ok")
	s.logger.DebugContext(ctx, "vault record opened",
		"record_id", recordID.String(),
		"category", category,
		"scope", scope.String(),
		"agent_id", token.AgentID.String(),
	)
	return vault.DecryptedRecord{
		RecordID:  stored.ID,
		Category:  stored.Category,
		AgentID:   stored.Record.Metadata.AgentID,
		Scope:     stored.Record.Metadata.Scope,
		Algorithm: stored.Record.Algorithm,
		CreatedAt: stored.Record.Metadata.CreatedAt,
		Data:      plaintext,
	}, nil
}
