package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"hushmcp/internal/vault"
	id "hushmcp/pkg/domain"
	dErrors "hushmcp/pkg/domain-errors"
	"hushmcp/pkg/requestcontext"
)

// EncryptData seals plaintext into a new stored record for the presenting
// token's user. The token must cover the declared scope; the record is keyed
// under that scope and shelved in the given category. An empty algorithm
// selects the default suite.
func (s *Service) EncryptData(
	ctx context.Context,
	tokenWire string,
	scope id.ConsentScope,
	category string,
	plaintext []byte,
	algorithm vault.Algorithm,
) (vault.StoredRecord, error) {
	ctx, span := tracer.Start(ctx, "vault.encrypt")
	defer span.End()
	span.SetAttributes(
		attribute.String("vault.scope", scope.String()),
		attribute.String("vault.category", category),
	)

	if !scope.IsValid() {
		return vault.StoredRecord{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown scope %q", scope.String())
	}
	if err := validateCategory(category); err != nil {
		return vault.StoredRecord{}, err
	}
	if algorithm == "" {
		algorithm = vault.AlgorithmAESGCM
	}
	if !algorithm.IsValid() {
		return vault.StoredRecord{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown vault algorithm %q", algorithm.String())
	}

	token, err := s.authorize(ctx, "encrypt", tokenWire, scope)
	if err != nil {
		return vault.StoredRecord{}, err
	}

	key, err := vault.DeriveKey(s.master, token.UserID, scope)
	if err != nil {
		return vault.StoredRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "derive vault key")
	}

	record, err := vault.EncryptWith(algorithm, plaintext, key, vault.Metadata{
		AgentID:   token.AgentID,
		Scope:     scope,
		CreatedAt: requestcontext.Now(ctx).UTC(),
	})
	if err != nil {
		s.metrics.ObserveVaultOperation("encrypt", "error")
		return vault.StoredRecord{}, err
	}

	stored := vault.StoredRecord{
		ID:       vault.NewRecordID(),
		UserID:   token.UserID,
		Category: category,
		Record:   record,
	}
	if err := s.store.Put(ctx, stored); err != nil {
		s.metrics.ObserveVaultOperation("encrypt", "error")
		s.logger.ErrorContext(ctx, "store vault record failed",
			"error", err,
			"record_id", stored.ID.String(),
		)
		return vault.StoredRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "store vault record")
	}

	span.SetAttributes(attribute.String("vault.record_id", stored.ID.String()))
	s.metrics.ObserveVaultOperation("encrypt", "ok")
	s.logger.InfoContext(ctx, "vault record stored",
		"record_id", stored.ID.String(),
		"category", category,
		"scope", scope.String(),
		"agent_id", token.AgentID.String(),
	)
	return stored, nil
}
