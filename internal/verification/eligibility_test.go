package verification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	t.Run("no record", func(t *testing.T) {
		e := Evaluate(nil)
		assert.True(t, e.CanSubmit)
		assert.Empty(t, e.BlockReason)
		assert.False(t, e.IsResubmission())
	})

	t.Run("pending blocks", func(t *testing.T) {
		e := Evaluate(&Record{Status: StatusPending})
		assert.False(t, e.CanSubmit)
		assert.Equal(t, MessageUnderReview, e.BlockReason)
	})

	t.Run("approved blocks", func(t *testing.T) {
		e := Evaluate(&Record{Status: StatusApproved})
		assert.False(t, e.CanSubmit)
		assert.Equal(t, MessageAlreadyVerified, e.BlockReason)
	})

	t.Run("rejected allows resubmission", func(t *testing.T) {
		e := Evaluate(&Record{Status: StatusRejected})
		assert.True(t, e.CanSubmit)
		assert.True(t, e.IsResubmission())
	})

	t.Run("unknown status blocks", func(t *testing.T) {
		e := Evaluate(&Record{Status: "archived"})
		assert.False(t, e.CanSubmit)
		assert.Equal(t, MessageUnknownStatus, e.BlockReason)
	})
}

func TestEligibilityEvaluator_UsesLatestRecord(t *testing.T) {
	repo := NewMemoryRepository()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(context.Background(), &Record{ID: "old", UserID: "u1", Status: StatusRejected, CreatedAt: base}))
	require.NoError(t, repo.Create(context.Background(), &Record{ID: "new", UserID: "u1", Status: StatusPending, CreatedAt: base.Add(time.Hour)}))

	e, err := NewEligibilityEvaluator(repo).Evaluate(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, e.CanSubmit)
	assert.Equal(t, "new", e.Latest.ID)
}

func TestNewCurrentStatus(t *testing.T) {
	cs := newCurrentStatus(Evaluate(nil))
	assert.False(t, cs.HasVerification)
	assert.True(t, cs.CanSubmit)
	assert.Nil(t, cs.BlockMessage)
	assert.Nil(t, cs.Verification)

	rec := &Record{
		ID:              "r1",
		RequestID:       "ORKM2503011234",
		Status:          StatusRejected,
		RejectionReason: ReasonPhotoTooDark,
		Photos:          []Photo{{ID: "p1", Status: PhotoRejected}, {ID: "p2", Status: PhotoApproved}},
	}
	cs = newCurrentStatus(Evaluate(rec))
	assert.True(t, cs.HasVerification)
	assert.True(t, cs.CanSubmit)
	assert.True(t, cs.IsResubmission)
	require.NotNil(t, cs.Verification)
	assert.Equal(t, ReasonPhotoTooDark, cs.Verification.RejectionReason)
	assert.Equal(t, PhotoSummary{Total: 2, Approved: 1, Rejected: 1}, cs.Verification.PhotoSummary)

	cs = newCurrentStatus(Evaluate(&Record{ID: "r2", Status: StatusPending}))
	require.NotNil(t, cs.BlockMessage)
	assert.Equal(t, MessageUnderReview, *cs.BlockMessage)
}
