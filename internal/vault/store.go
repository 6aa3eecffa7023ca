package vault

import (
	"context"
	"strings"

	"github.com/google/uuid"

	id "hushmcp/pkg/domain"
	dErrors "hushmcp/pkg/domain-errors"
)

// RecordID identifies one stored vault record. Unlike token and link ids it
// names data rather than a credential, so it never enters the revocation
// registry.
type RecordID string

const recordIDPrefix = "rec_"

// NewRecordID mints a fresh record id.
func NewRecordID() RecordID {
	return RecordID(recordIDPrefix + uuid.NewString())
}

// ParseRecordID constructs a RecordID from external input.
//
// Errors: returns CodeInvalidInput when the value is missing the rec_ prefix
// or the suffix is not a canonical UUID.
func ParseRecordID(s string) (RecordID, error) {
	suffix, ok := strings.CutPrefix(s, recordIDPrefix)
	if !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "record id must start with %q", recordIDPrefix)
	}
	parsed, err := uuid.Parse(suffix)
	if err != nil || parsed.String() != suffix {
		return "", dErrors.New(dErrors.CodeInvalidInput, "record id suffix must be a canonical uuid")
	}
	return RecordID(s), nil
}

func (r RecordID) String() string { return string(r) }
func (r RecordID) IsZero() bool   { return r == "" }

// StoredRecord is a sealed record addressed for persistence: whose data it
// is, which category shelf it sits on, and the record itself.
type StoredRecord struct {
	ID       RecordID
	UserID   id.UserID
	Category string
	Record   VaultRecord
}

// CategoryCount summarizes one category of a user's stored data without
// touching ciphertext.
type CategoryCount struct {
	Category string
	Count    int
}

// DeleteCounts reports how many rows a right-to-be-forgotten purge removed
// from each table.
type DeleteCounts struct {
	VaultRecords   int
	ConsentRecords int
}

// Store persists sealed records. Implementations only ever see ciphertext;
// keys and plaintext stay in the service layer. Record ids are minted by the
// caller and never reused.
//
// Errors: lookups return sentinel.ErrNotFound (wrapped) when no row matches
// the full (user, category, id) address; Put returns sentinel.ErrConflict
// (wrapped) on a duplicate id. Services translate to coded errors.
type Store interface {
	Put(ctx context.Context, record StoredRecord) error
	Get(ctx context.Context, userID id.UserID, category string, recordID RecordID) (StoredRecord, error)
	Categories(ctx context.Context, userID id.UserID) ([]CategoryCount, error)
	RecordsForUser(ctx context.Context, userID id.UserID) ([]StoredRecord, error)
	DeleteUserData(ctx context.Context, userID id.UserID) (DeleteCounts, error)
}
