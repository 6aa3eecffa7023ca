package consent

import (
	"context"
	"time"

	id "hushmcp/pkg/domain"
)

// Records persists issuance-audit rows for management-granted tokens.
// Implementations: the vault Postgres store in production, MemoryRecords in
// tests and dev mode.
//
// Errors: lookups return sentinel.ErrNotFound (wrapped) when no row matches;
// services translate to coded errors.
type Records interface {
	RecordConsent(ctx context.Context, record ConsentRecord) error
	ActiveConsents(ctx context.Context, userID id.UserID, now time.Time) ([]ConsentRecord, error)
	MarkConsentRevoked(ctx context.Context, tokenHash string) error
	ConsentByTokenID(ctx context.Context, tokenID id.TokenID) (*ConsentRecord, error)
	ConsentByHash(ctx context.Context, tokenHash string) (*ConsentRecord, error)
}
