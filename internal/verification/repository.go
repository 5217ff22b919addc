package verification

import (
	"context"
	"time"
)

// Repository persists verification records.
//
// Create must reject a second pending or approved record for the same user
// with ErrActiveRecordExists and a reused requestId with
// ErrDuplicateRequestID. UpdatePhotos and Finalize apply only while the
// stored record is pending and return ErrStatusConflict otherwise. An
// approving Finalize also requires an approved photo in the stored record
// and returns ErrNoApprovedPhoto when there is none.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id string) (*Record, error)
	LatestByUser(ctx context.Context, userID string) (*Record, error)
	ListByUser(ctx context.Context, userID string) ([]*Record, error)
	ListByCrop(ctx context.Context, cropID string) ([]*Record, error)
	List(ctx context.Context, filter ListFilter, page Page) ([]*Record, int64, error)
	RequestIDExists(ctx context.Context, requestID string) (bool, error)

	UpdatePhotos(ctx context.Context, id string, photos []Photo, updatedAt time.Time) error
	Finalize(ctx context.Context, rec *Record) error
	UpdateLocationType(ctx context.Context, id string, locationType LocationType, updatedAt time.Time) error

	// ListMissingRequestID and SetRequestID serve the legacy backfill
	ListMissingRequestID(ctx context.Context, limit int) ([]*Record, error)
	SetRequestID(ctx context.Context, id, requestID string) error
}

// finalizeMissReason maps a conditional finalize that matched no row to the
// sentinel for the stored record's state
func finalizeMissReason(stored *Record, target Status) error {
	if stored.Status != StatusPending {
		return ErrStatusConflict
	}
	if target == StatusApproved && SummarizePhotos(stored.Photos).Approved == 0 {
		return ErrNoApprovedPhoto
	}
	return ErrStatusConflict
}
