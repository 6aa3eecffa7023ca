package service

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"hushmcp/internal/vault"
	id "hushmcp/pkg/domain"
	dErrors "hushmcp/pkg/domain-errors"
	audit "hushmcp/pkg/platform/audit"
	"hushmcp/pkg/requestcontext"
)

// ExportUserData decrypts every record the user owns into a portability
// bundle. The store hands back ciphertext only; decryption happens here, per
// record, under the record's own (user, scope) key.
func (s *Service) ExportUserData(ctx context.Context, userID id.UserID) (vault.Export, error) {
	ctx, span := tracer.Start(ctx, "vault.export")
	defer span.End()

	if userID.IsZero() {
		return vault.Export{}, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}

	stored, err := s.store.RecordsForUser(ctx, userID)
	if err != nil {
		s.metrics.ObserveVaultOperation("export", "error")
		s.logger.ErrorContext(ctx, "list vault records failed", "error", err)
		return vault.Export{}, dErrors.Wrap(err, dErrors.CodeInternal, "list vault records")
	}

	records := make([]vault.DecryptedRecord, 0, len(stored))
	for _, record := range stored {
		key, err := vault.DeriveKey(s.master, userID, record.Record.Metadata.Scope)
		if err != nil {
			return vault.Export{}, dErrors.Wrap(err, dErrors.CodeInternal, "derive vault key")
		}
		plaintext, err := vault.Decrypt(record.Record, key)
		if err != nil {
			s.metrics.ObserveVaultOperation("export", "error")
			s.logger.ErrorContext(ctx, "export record failed integrity check",
				"error", err,
				"record_id", record.ID.String(),
			)
			return vault.Export{}, dErrors.Wrap(err, dErrors.CodeInternal,
				fmt.Sprintf("export record %s", record.ID.String()))
		}
		records = append(records, vault.DecryptedRecord{
			RecordID:  record.ID,
			Category:  record.Category,
			AgentID:   record.Record.Metadata.AgentID,
			Scope:     record.Record.Metadata.Scope,
			Algorithm: record.Record.Algorithm,
			CreatedAt: record.Record.Metadata.CreatedAt,
			Data:      plaintext,
		})
	}

	span.SetAttributes(attribute.Int("vault.records", len(records)))
	s.metrics.ObserveVaultOperation("export", "ok")
	s.emitAudit(ctx, audit.EventDataExported, userID.String(), userID.String(), map[string]string{
		"records": strconv.Itoa(len(records)),
	})
	s.logger.InfoContext(ctx, "user data exported", "records", len(records))
	return vault.Export{
		UserID:     userID,
		ExportedAt: requestcontext.Now(ctx).UTC(),
		Records:    records,
	}, nil
}

// DeleteUserData is the right to be forgotten. Outstanding consent tokens are
// revoked through the registry before any rows are touched, so a failure
// partway leaves the user locked down rather than half-deleted; the store
// then hard-deletes vault rows and consent records in one transaction.
func (s *Service) DeleteUserData(ctx context.Context, userID id.UserID) (vault.DeleteCounts, error) {
	ctx, span := tracer.Start(ctx, "vault.delete")
	defer span.End()

	if userID.IsZero() {
		return vault.DeleteCounts{}, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}

	now := requestcontext.Now(ctx).UTC()
	grants, err := s.consents.ActiveConsents(ctx, userID, now)
	if err != nil {
		s.metrics.ObserveVaultOperation("delete", "error")
		s.logger.ErrorContext(ctx, "list active consents failed", "error", err)
		return vault.DeleteCounts{}, dErrors.Wrap(err, dErrors.CodeInternal, "list active consents")
	}
	for _, grant := range grants {
		if err := s.registry.Revoke(ctx, grant.TokenID.String(), now, grant.ExpiresAt); err != nil {
			s.metrics.ObserveVaultOperation("delete", "error")
			s.logger.ErrorContext(ctx, "revoke outstanding consent failed",
				"error", err,
				"token_id", grant.TokenID.String(),
			)
			return vault.DeleteCounts{}, dErrors.Wrap(err, dErrors.CodeInternal, "revoke outstanding consent")
		}
		s.metrics.ObserveCredentialRevoked("token")
	}

	counts, err := s.store.DeleteUserData(ctx, userID)
	if err != nil {
		s.metrics.ObserveVaultOperation("delete", "error")
		s.logger.ErrorContext(ctx, "purge user data failed", "error", err)
		return vault.DeleteCounts{}, dErrors.Wrap(err, dErrors.CodeInternal, "purge user data")
	}

	span.SetAttributes(
		attribute.Int("vault.records_deleted", counts.VaultRecords),
		attribute.Int("vault.consents_deleted", counts.ConsentRecords),
	)
	s.metrics.ObserveVaultOperation("delete", "ok")
	s.emitAudit(ctx, audit.EventDataDeleted, userID.String(), userID.String(), map[string]string{
		"vault_records":   strconv.Itoa(counts.VaultRecords),
		"consent_records": strconv.Itoa(counts.ConsentRecords),
		"tokens_revoked":  strconv.Itoa(len(grants)),
	})
	s.logger.InfoContext(ctx, "user data deleted",
		"vault_records", counts.VaultRecords,
		"consent_records", counts.ConsentRecords,
		"tokens_revoked", len(grants),
	)
	return counts, nil
}

// Categories lists the user's stored categories with record counts. Listing
// never decrypts anything.
func (s *Service) Categories(ctx context.Context, userID id.UserID) ([]vault.CategoryCount, error) {
	if userID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	categories, err := s.store.Categories(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "list vault categories failed", "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list vault categories")
	}
	return categories, nil
}
