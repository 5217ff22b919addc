package verification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecision_Validate(t *testing.T) {
	tests := []struct {
		name    string
		d       Decision
		message string
	}{
		{"missing status", Decision{}, "Status must be 'approved' or 'rejected'"},
		{"pending status", Decision{Status: StatusPending}, "Status must be 'approved' or 'rejected'"},
		{"reject without reason", Decision{Status: StatusRejected}, "Rejection reason is required when rejecting a request"},
		{"reject with unknown reason", Decision{Status: StatusRejected, RejectionReason: "blurry"}, "Invalid rejection reason 'blurry'"},
		{"approve without location type", Decision{Status: StatusApproved}, "locationType (farm/village) is required when approving a request"},
		{"approve with bad location type", Decision{Status: StatusApproved, LocationType: "city"}, "locationType must be 'farm' or 'village'"},
		{"reject with bad location type", Decision{Status: StatusRejected, RejectionReason: ReasonOther, LocationType: "city"}, "locationType must be 'farm' or 'village'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			require.Error(t, err)
			assert.Equal(t, CodeValidation, CodeOf(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}

	assert.NoError(t, Decision{Status: StatusApproved, LocationType: LocationFarm}.Validate())
	assert.NoError(t, Decision{Status: StatusRejected, RejectionReason: ReasonOther}.Validate())
}

func TestCheckFinalizable(t *testing.T) {
	rec := &Record{Status: StatusPending, Photos: []Photo{{ID: "p1", Status: PhotoRejected}, {ID: "p2", Status: PhotoPending}}}

	err := checkFinalizable(rec, Decision{Status: StatusApproved, LocationType: LocationFarm})
	assert.Equal(t, CodePreconditionFailed, CodeOf(err))

	assert.NoError(t, checkFinalizable(rec, Decision{Status: StatusRejected, RejectionReason: ReasonOther}))

	rec.Photos[1].Status = PhotoApproved
	assert.NoError(t, checkFinalizable(rec, Decision{Status: StatusApproved, LocationType: LocationFarm}))

	for _, terminal := range []Status{StatusApproved, StatusRejected} {
		err := checkFinalizable(&Record{Status: terminal}, Decision{Status: StatusRejected, RejectionReason: ReasonOther})
		assert.Equal(t, CodeInvalidState, CodeOf(err))
		assert.Contains(t, err.Error(), "Request is already "+string(terminal))
	}
}

func TestApplyDecision(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	rec := &Record{Status: StatusPending}
	applyDecision(rec, Decision{
		Status:          StatusRejected,
		RejectionReason: ReasonCropMismatch,
		RejectionNotes:  "paddy, not maize",
		ReviewedBy:      "asha",
		LocationType:    LocationVillage,
	}, now)
	assert.Equal(t, StatusRejected, rec.Status)
	assert.Equal(t, ReasonCropMismatch, rec.RejectionReason)
	assert.Equal(t, "paddy, not maize", rec.RejectionNotes)
	assert.Equal(t, "asha", rec.ReviewedBy)
	assert.Equal(t, now, *rec.ReviewedAt)
	assert.Empty(t, rec.Location.LocationType, "location type applies only on approval")

	rec = &Record{Status: StatusPending}
	applyDecision(rec, Decision{Status: StatusApproved, LocationType: LocationFarm, RejectionReason: ReasonOther}, now)
	assert.Equal(t, LocationFarm, rec.Location.LocationType)
	assert.Empty(t, rec.RejectionReason)
	assert.Empty(t, rec.ReviewedBy)
	assert.Equal(t, now, rec.UpdatedAt)
}
