package verification

import (
	"time"

	"croptrust/verification-portal/verification-backend/pkg/workflows"
)

var statusTransitions = workflows.NewVerificationStateMachine()

// Decision is a reviewer's finalize request
type Decision struct {
	Status          Status          `json:"status"`
	RejectionReason RejectionReason `json:"rejectionReason"`
	RejectionNotes  string          `json:"rejectionNotes"`
	ReviewedBy      string          `json:"reviewedBy"`
	LocationType    LocationType    `json:"locationType"`
}

// Validate checks the decision on its own, before the record is loaded.
// Rules are applied in order and the first violation wins.
func (d Decision) Validate() error {
	switch d.Status {
	case StatusApproved, StatusRejected:
	default:
		return validationError("Status must be 'approved' or 'rejected'")
	}

	if d.Status == StatusRejected {
		if d.RejectionReason == "" {
			return validationError("Rejection reason is required when rejecting a request")
		}
		if !d.RejectionReason.Valid() {
			return validationError("Invalid rejection reason '%s'", d.RejectionReason)
		}
	}

	if d.Status == StatusApproved && d.LocationType == "" {
		return validationError("locationType (farm/village) is required when approving a request")
	}
	if d.LocationType != "" && !d.LocationType.Valid() {
		return validationError("locationType must be 'farm' or 'village'")
	}
	return nil
}

// checkFinalizable applies the rules that need the stored record
func checkFinalizable(rec *Record, d Decision) error {
	if !statusTransitions.CanTransition(string(rec.Status), string(d.Status)) {
		return invalidStateError("Request is already %s", rec.Status)
	}
	if d.Status == StatusApproved && SummarizePhotos(rec.Photos).Approved == 0 {
		return newError(CodePreconditionFailed, MessageNeedsApprovedPhoto, nil)
	}
	return nil
}

// MessageNeedsApprovedPhoto is returned when approving without an approved photo
const MessageNeedsApprovedPhoto = "Cannot approve request. At least one photo must be approved first."

// applyDecision mutates rec in place with the finalize effect
func applyDecision(rec *Record, d Decision, now time.Time) {
	rec.Status = d.Status
	reviewedAt := now
	rec.ReviewedAt = &reviewedAt
	if d.ReviewedBy != "" {
		rec.ReviewedBy = d.ReviewedBy
	}

	switch d.Status {
	case StatusRejected:
		rec.RejectionReason = d.RejectionReason
		rec.RejectionNotes = d.RejectionNotes
	case StatusApproved:
		if d.LocationType != "" {
			rec.Location.LocationType = d.LocationType
		}
	}
	rec.UpdatedAt = now
}
