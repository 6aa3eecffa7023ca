package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"hushmcp/internal/consent"
	id "hushmcp/pkg/domain"
	dErrors "hushmcp/pkg/domain-errors"
	"hushmcp/pkg/platform/sentinel"
	"hushmcp/pkg/requestcontext"
)

// GrantConsent issues a token and records the grant so the user can list and
// revoke it later. If recording fails the freshly minted token is revoked
// before the error is returned, so no live token exists without a record.
func (s *Service) GrantConsent(
	ctx context.Context,
	userID id.UserID,
	agentID id.AgentID,
	scope id.ConsentScope,
	ttl time.Duration,
) (consent.ConsentRecord, string, error) {
	ctx, span := tracer.Start(ctx, "consent.grant")
	defer span.End()

	token, wire, err := s.IssueToken(ctx, userID, agentID, scope, ttl)
	if err != nil {
		return consent.ConsentRecord{}, "", err
	}

	record := consent.ConsentRecord{
		TokenHash: consent.HashToken(wire),
		TokenID:   token.TokenID,
		UserID:    token.UserID,
		AgentID:   token.AgentID,
		Scope:     token.Scope,
		IssuedAt:  token.IssuedAt,
		ExpiresAt: token.ExpiresAt,
		Status:    consent.ConsentStatusActive,
	}
	if err := s.records.RecordConsent(ctx, record); err != nil {
		if revokeErr := s.revokeToken(ctx, token.TokenID, token.ExpiresAt, userID.String(), userID.String()); revokeErr != nil {
			s.logger.ErrorContext(ctx, "failed to revoke unrecorded token",
				"token_id", token.TokenID.String(),
				"error", revokeErr,
			)
		}
		return consent.ConsentRecord{}, "", dErrors.Wrap(err, dErrors.CodeInternal, "record consent")
	}
	return record, wire, nil
}

// RevokeConsent revokes a recorded grant on behalf of its owner. tokenOrID
// accepts either the opaque token string or its token id. Grants belonging
// to other users are reported as not found, never as forbidden, so the
// endpoint cannot be used to probe for the existence of someone else's
// grants.
func (s *Service) RevokeConsent(ctx context.Context, userID id.UserID, tokenOrID string) error {
	ctx, span := tracer.Start(ctx, "consent.revoke_grant")
	defer span.End()

	if userID.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "user is required")
	}
	record, err := s.lookupRecord(ctx, tokenOrID)
	if err != nil {
		return err
	}
	if record.UserID != userID {
		return dErrors.New(dErrors.CodeNotFound, "consent not found")
	}

	if err := s.revokeToken(ctx, record.TokenID, record.ExpiresAt, userID.String(), record.UserID.String()); err != nil {
		return err
	}
	if err := s.records.MarkConsentRevoked(ctx, record.TokenHash); err != nil {
		// The registry revocation already took effect; a retry of this
		// call reconciles the record.
		s.logger.ErrorContext(ctx, "failed to mark consent revoked",
			"token_id", record.TokenID.String(),
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "mark consent revoked")
	}
	s.logger.InfoContext(ctx, "consent revoked",
		"user_id", userID.String(),
		"token_id", record.TokenID.String(),
	)
	return nil
}

// ActiveConsents lists the user's live grants, newest first.
func (s *Service) ActiveConsents(ctx context.Context, userID id.UserID) ([]consent.ConsentRecord, error) {
	if userID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user is required")
	}
	now := requestcontext.Now(ctx)
	records, err := s.records.ActiveConsents(ctx, userID, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list active consents")
	}
	return records, nil
}

func (s *Service) lookupRecord(ctx context.Context, tokenOrID string) (*consent.ConsentRecord, error) {
	var (
		record *consent.ConsentRecord
		err    error
	)
	switch {
	case strings.HasPrefix(tokenOrID, consent.TokenPrefix):
		record, err = s.records.ConsentByHash(ctx, consent.HashToken(tokenOrID))
	default:
		var tokenID id.TokenID
		tokenID, err = id.ParseTokenID(tokenOrID)
		if err != nil {
			return nil, err
		}
		record, err = s.records.ConsentByTokenID(ctx, tokenID)
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "consent not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "look up consent")
	}
	return record, nil
}
