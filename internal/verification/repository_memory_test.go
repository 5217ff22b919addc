package verification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func seedRecord(id, userID string, status Status, createdAt time.Time) *Record {
	return &Record{
		ID:        id,
		RequestID: "ORKM250310" + id[len(id)-4:],
		UserID:    userID,
		CropID:    "crop-" + userID,
		CropName:  "Maize",
		Status:    status,
		Photos:    []Photo{{ID: id + "-p1", URL: "memory://" + id, Status: PhotoPending}},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestMemoryRepository_OneBlockingRecordPerUser(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	require.NoError(t, repo.Create(ctx, seedRecord("rec-0001", "u1", StatusRejected, t0)))
	require.NoError(t, repo.Create(ctx, seedRecord("rec-0002", "u1", StatusRejected, t0.Add(time.Minute))))
	require.NoError(t, repo.Create(ctx, seedRecord("rec-0003", "u1", StatusPending, t0.Add(2*time.Minute))))

	err := repo.Create(ctx, seedRecord("rec-0004", "u1", StatusPending, t0.Add(3*time.Minute)))
	assert.ErrorIs(t, err, ErrActiveRecordExists)

	require.NoError(t, repo.Create(ctx, seedRecord("rec-0005", "u2", StatusPending, t0)))
	assert.Equal(t, 4, repo.Count())
}

func TestMemoryRepository_DuplicateRequestID(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	a := seedRecord("rec-0001", "u1", StatusPending, t0)
	b := seedRecord("rec-0002", "u2", StatusPending, t0)
	b.RequestID = a.RequestID

	require.NoError(t, repo.Create(ctx, a))
	assert.ErrorIs(t, repo.Create(ctx, b), ErrDuplicateRequestID)

	exists, err := repo.RequestIDExists(ctx, a.RequestID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryRepository_LatestByUserNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	latest, err := repo.LatestByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, repo.Create(ctx, seedRecord("rec-0001", "u1", StatusRejected, t0)))
	require.NoError(t, repo.Create(ctx, seedRecord("rec-0002", "u1", StatusRejected, t0)))

	latest, err = repo.LatestByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "rec-0002", latest.ID, "insertion order breaks createdAt ties")
}

func TestMemoryRepository_ConditionalUpdates(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Create(ctx, seedRecord("rec-0001", "u1", StatusPending, t0)))

	rec, err := repo.GetByID(ctx, "rec-0001")
	require.NoError(t, err)
	rec.Status = StatusRejected
	rec.RejectionReason = ReasonOther
	require.NoError(t, repo.Finalize(ctx, rec))

	assert.ErrorIs(t, repo.Finalize(ctx, rec), ErrStatusConflict)
	assert.ErrorIs(t, repo.UpdatePhotos(ctx, "rec-0001", nil, t0), ErrStatusConflict)
	assert.ErrorIs(t, repo.UpdatePhotos(ctx, "missing", nil, t0), ErrRecordNotFound)

	// location correction ignores status
	require.NoError(t, repo.UpdateLocationType(ctx, "rec-0001", LocationVillage, t0.Add(time.Hour)))
	stored, err := repo.GetByID(ctx, "rec-0001")
	require.NoError(t, err)
	assert.Equal(t, LocationVillage, stored.Location.LocationType)
	assert.Equal(t, ReasonOther, stored.RejectionReason)
}

func TestMemoryRepository_ApproveRequiresStoredApprovedPhoto(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Create(ctx, seedRecord("rec-0001", "u1", StatusPending, t0)))

	rec, err := repo.GetByID(ctx, "rec-0001")
	require.NoError(t, err)
	rec.Status = StatusApproved
	assert.ErrorIs(t, repo.Finalize(ctx, rec), ErrNoApprovedPhoto)

	stored, err := repo.GetByID(ctx, "rec-0001")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)

	require.NoError(t, repo.UpdatePhotos(ctx, "rec-0001", ApplyPhotoReview(stored.Photos, []string{"rec-0001-p1"}), t0))
	require.NoError(t, repo.Finalize(ctx, rec))
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Create(ctx, seedRecord("rec-0001", "u1", StatusPending, t0)))

	rec, err := repo.GetByID(ctx, "rec-0001")
	require.NoError(t, err)
	rec.Photos[0].Status = PhotoApproved

	again, err := repo.GetByID(ctx, "rec-0001")
	require.NoError(t, err)
	assert.Equal(t, PhotoPending, again.Photos[0].Status)
}

func TestMemoryRepository_List(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	a := seedRecord("rec-0001", "u1", StatusRejected, t0)
	a.FullName, a.District = "Ravi Kumar", "Kolar"
	b := seedRecord("rec-0002", "u2", StatusPending, t0.Add(24*time.Hour))
	b.FullName, b.District = "Asha", "Mandya"
	c := seedRecord("rec-0003", "u3", StatusPending, t0.Add(48*time.Hour))
	c.FullName, c.District = "Ravindra", "kolar rural"
	for _, r := range []*Record{a, b, c} {
		require.NoError(t, repo.Create(ctx, r))
	}

	district := "KOLAR"
	recs, total, err := repo.List(ctx, ListFilter{District: &district}, NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, "rec-0003", recs[0].ID)
	assert.Equal(t, "rec-0001", recs[1].ID)

	pending := StatusPending
	from := t0.Add(36 * time.Hour)
	recs, total, err = repo.List(ctx, ListFilter{Status: &pending, From: &from}, NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "rec-0003", recs[0].ID)

	recs, total, err = repo.List(ctx, ListFilter{}, NewPage(2, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, recs, 1)
	assert.Equal(t, "rec-0001", recs[0].ID)
}

func TestMemoryRepository_Backfill(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	legacy := seedRecord("rec-0001", "u1", StatusApproved, t0)
	legacy.RequestID = ""
	require.NoError(t, repo.Create(ctx, legacy))
	require.NoError(t, repo.Create(ctx, seedRecord("rec-0002", "u2", StatusPending, t0)))

	missing, err := repo.ListMissingRequestID(ctx, 10)
	require.NoError(t, err)
	require.Len(t, missing, 1)

	assert.ErrorIs(t, repo.SetRequestID(ctx, "rec-0001", "ORKM2503100002"), ErrDuplicateRequestID)
	require.NoError(t, repo.SetRequestID(ctx, "rec-0001", "ORKM2503109999"))
	assert.ErrorIs(t, repo.SetRequestID(ctx, "rec-0001", "ORKM2503108888"), ErrStatusConflict)
}
