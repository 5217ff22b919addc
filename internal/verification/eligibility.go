package verification

import (
	"context"
	"time"
)

// Block reasons shown to the farmer
const (
	MessageUnderReview     = "Your request is under review by the support team."
	MessageAlreadyVerified = "Cannot submit new request. You are already verified."
	MessageUnknownStatus   = "Unknown status. Please contact support."
	MessageInFlight        = "Another submission for this user is still being processed."
)

// Eligibility is the outcome of checking a user's latest record
type Eligibility struct {
	CanSubmit   bool
	BlockReason string
	Latest      *Record
}

// IsResubmission reports whether a new submission follows a rejection
func (e Eligibility) IsResubmission() bool {
	return e.Latest != nil && e.Latest.Status == StatusRejected
}

// Evaluate decides from the latest record alone. It is pure; callers fetch.
func Evaluate(latest *Record) Eligibility {
	if latest == nil {
		return Eligibility{CanSubmit: true}
	}

	switch latest.Status {
	case StatusPending:
		return Eligibility{CanSubmit: false, BlockReason: MessageUnderReview, Latest: latest}
	case StatusApproved:
		return Eligibility{CanSubmit: false, BlockReason: MessageAlreadyVerified, Latest: latest}
	case StatusRejected:
		return Eligibility{CanSubmit: true, Latest: latest}
	default:
		return Eligibility{CanSubmit: false, BlockReason: MessageUnknownStatus, Latest: latest}
	}
}

// EligibilityEvaluator reads the latest record for a user and evaluates it
type EligibilityEvaluator struct {
	repo Repository
}

func NewEligibilityEvaluator(repo Repository) *EligibilityEvaluator {
	return &EligibilityEvaluator{repo: repo}
}

func (e *EligibilityEvaluator) Evaluate(ctx context.Context, userID string) (Eligibility, error) {
	latest, err := e.repo.LatestByUser(ctx, userID)
	if err != nil {
		return Eligibility{}, err
	}
	return Evaluate(latest), nil
}

// StatusSnapshot is the summary of a user's latest record
type StatusSnapshot struct {
	ID              string          `json:"_id"`
	RequestID       string          `json:"requestId"`
	Status          Status          `json:"status"`
	CropName        string          `json:"cropName"`
	CreatedAt       time.Time       `json:"createdAt"`
	ReviewedAt      *time.Time      `json:"reviewedAt,omitempty"`
	RejectionReason RejectionReason `json:"rejectionReason,omitempty"`
	RejectionNotes  string          `json:"rejectionNotes,omitempty"`
	PhotoSummary    PhotoSummary    `json:"photoSummary"`
}

// CurrentStatus is what the farmer app shows before offering a submit button
type CurrentStatus struct {
	HasVerification bool            `json:"hasVerification"`
	CanSubmit       bool            `json:"canSubmit"`
	BlockMessage    *string         `json:"blockMessage"`
	IsResubmission  bool            `json:"isResubmission"`
	Verification    *StatusSnapshot `json:"verification"`
}

func newCurrentStatus(e Eligibility) *CurrentStatus {
	cs := &CurrentStatus{
		HasVerification: e.Latest != nil,
		CanSubmit:       e.CanSubmit,
		IsResubmission:  e.IsResubmission(),
	}
	if e.BlockReason != "" {
		msg := e.BlockReason
		cs.BlockMessage = &msg
	}
	if e.Latest != nil {
		r := e.Latest
		cs.Verification = &StatusSnapshot{
			ID:              r.ID,
			RequestID:       r.RequestID,
			Status:          r.Status,
			CropName:        r.CropName,
			CreatedAt:       r.CreatedAt,
			ReviewedAt:      r.ReviewedAt,
			RejectionReason: r.RejectionReason,
			RejectionNotes:  r.RejectionNotes,
			PhotoSummary:    SummarizePhotos(r.Photos),
		}
	}
	return cs
}
