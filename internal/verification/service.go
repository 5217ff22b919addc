package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"croptrust/verification-portal/verification-backend/internal/cropdirectory"
	"croptrust/verification-portal/verification-backend/internal/notifications"
	"croptrust/verification-portal/verification-backend/pkg/events"
	"croptrust/verification-portal/verification-backend/pkg/export"
	"croptrust/verification-portal/verification-backend/pkg/geospatial"
	"croptrust/verification-portal/verification-backend/pkg/locking"
)

// Submission variants, used as a metrics label
const (
	VariantDirect = "direct"
	VariantByCrop = "by_crop"
)

// CropDirectory looks up crop listings by id
type CropDirectory interface {
	GetCropByID(ctx context.Context, cropID string) (*cropdirectory.Crop, error)
}

// Notifier announces finalize outcomes to the farmer
type Notifier interface {
	NotifyApproval(ctx context.Context, n notifications.ApprovalNotice) error
	NotifyRejection(ctx context.Context, n notifications.RejectionNotice) error
}

// Config holds the service limits
type Config struct {
	MaxPhotos            int
	MaxPhotoBytes        int64
	MaxRequestIDAttempts int
	LockTTL              time.Duration
	CropLookupTimeout    time.Duration
	NotifyTimeout        time.Duration
}

// ServiceDeps are the collaborators of the lifecycle controller. Crops,
// Notifier, Locker, Events and Metrics are optional.
type ServiceDeps struct {
	Repo         Repository
	Photos       *PhotoStorage
	Crops        CropDirectory
	Notifier     Notifier
	Locker       locking.Locker
	Events       events.Publisher
	Metrics      *Metrics
	IDs          *RequestIDGenerator
	Certificates *export.CertificateGenerator
	Logger       *zap.Logger
	Now          func() time.Time
	Config       Config
}

// Service orchestrates submission, photo review and finalization
type Service struct {
	repo         Repository
	photos       *PhotoStorage
	crops        CropDirectory
	notifier     Notifier
	locker       locking.Locker
	events       events.Publisher
	metrics      *Metrics
	ids          *RequestIDGenerator
	eligibility  *EligibilityEvaluator
	certificates *export.CertificateGenerator
	logger       *zap.Logger
	now          func() time.Time
	cfg          Config
}

func NewService(deps ServiceDeps) *Service {
	cfg := deps.Config
	if cfg.MaxPhotos <= 0 {
		cfg.MaxPhotos = 3
	}
	if cfg.MaxPhotoBytes <= 0 {
		cfg.MaxPhotoBytes = 5 << 20
	}
	if cfg.MaxRequestIDAttempts <= 0 {
		cfg.MaxRequestIDAttempts = DefaultMaxRequestIDAttempts
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 15 * time.Second
	}

	s := &Service{
		repo:         deps.Repo,
		photos:       deps.Photos,
		crops:        deps.Crops,
		notifier:     deps.Notifier,
		locker:       deps.Locker,
		events:       deps.Events,
		metrics:      deps.Metrics,
		ids:          deps.IDs,
		eligibility:  NewEligibilityEvaluator(deps.Repo),
		certificates: deps.Certificates,
		logger:       deps.Logger,
		now:          deps.Now,
		cfg:          cfg,
	}
	if s.events == nil {
		s.events = events.NoopPublisher{}
	}
	if s.ids == nil {
		s.ids = NewRequestIDGenerator(time.UTC)
	}
	if s.certificates == nil {
		s.certificates = export.NewCertificateGenerator(export.DefaultCertificateOptions())
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Submission is a direct submission where the caller supplies the user
type Submission struct {
	UserID   string
	CropID   string
	CropName string
	FullName string
	Phone    string
	Village  string
	Taluk    string
	District string
	Quantity string
	Variety  string
	Moisture string
	WillDry  string
	Location string // JSON object with lat and lng
	Photos   []PhotoFile
}

// CropSubmission derives the user and descriptive fields from the crop
// directory
type CropSubmission struct {
	CropID   string
	Location string
	Photos   []PhotoFile
}

// SubmitResult is a created record and how it relates to the user's history
type SubmitResult struct {
	Record           *Record
	IsResubmission   bool
	PreviousRecordID string
}

// Submit creates a record from a direct submission
func (s *Service) Submit(ctx context.Context, sub Submission) (res *SubmitResult, err error) {
	defer func() { s.metrics.observeSubmission(VariantDirect, err) }()

	sub.UserID = strings.TrimSpace(sub.UserID)
	sub.CropID = strings.TrimSpace(sub.CropID)
	sub.CropName = strings.TrimSpace(sub.CropName)
	if sub.UserID == "" || sub.CropID == "" || sub.CropName == "" || len(sub.Photos) == 0 {
		return nil, validationError("Missing required fields: userId, cropId, cropName, or photos")
	}
	if err := s.checkPhotos(sub.Photos); err != nil {
		return nil, err
	}

	draft := &Record{
		UserID:   sub.UserID,
		CropID:   sub.CropID,
		CropName: sub.CropName,
		FullName: sub.FullName,
		Phone:    sub.Phone,
		Village:  sub.Village,
		Taluk:    sub.Taluk,
		District: sub.District,
		Quantity: sub.Quantity,
		Variety:  sub.Variety,
		Moisture: sub.Moisture,
		WillDry:  sub.WillDry,
	}
	return s.submit(ctx, draft, sub.Location, sub.Photos)
}

// SubmitForCrop creates a record for the owner of a crop listing
func (s *Service) SubmitForCrop(ctx context.Context, sub CropSubmission) (res *SubmitResult, err error) {
	defer func() { s.metrics.observeSubmission(VariantByCrop, err) }()

	sub.CropID = strings.TrimSpace(sub.CropID)
	if sub.CropID == "" || len(sub.Photos) == 0 {
		return nil, validationError("Missing required fields: cropId or photos")
	}
	if err := s.checkPhotos(sub.Photos); err != nil {
		return nil, err
	}

	crop, err := s.lookupCrop(ctx, sub.CropID)
	if err != nil {
		return nil, err
	}

	draft := &Record{
		UserID:   strings.TrimSpace(crop.Owner.ID.String()),
		CropID:   sub.CropID,
		CropName: strings.TrimSpace(crop.CropName.String()),
		FullName: crop.Owner.Name.String(),
		Phone:    crop.Owner.Phone.String(),
		Village:  crop.Farm.Village.String(),
		Taluk:    crop.Farm.Taluk.String(),
		District: crop.Farm.District.String(),
		Quantity: crop.QuantityLabel(),
		Variety:  crop.Variety.String(),
		Moisture: crop.Moisture.String(),
		WillDry:  crop.DryIntent.String(),
	}
	if draft.UserID == "" {
		return nil, newError(CodeDependency, "Crop listing has no owner", nil)
	}
	if draft.CropName == "" {
		return nil, newError(CodeDependency, "Crop listing has no crop name", nil)
	}
	return s.submit(ctx, draft, sub.Location, sub.Photos)
}

func (s *Service) checkPhotos(files []PhotoFile) error {
	if len(files) > s.cfg.MaxPhotos {
		return validationError("A maximum of %d photos is allowed", s.cfg.MaxPhotos)
	}
	for i, f := range files {
		if len(f.Data) == 0 {
			return validationError("Photo %d is empty", i+1)
		}
		if int64(len(f.Data)) > s.cfg.MaxPhotoBytes {
			return validationError("Photo %d exceeds the %d MB limit", i+1, s.cfg.MaxPhotoBytes>>20)
		}
	}
	return nil
}

func (s *Service) lookupCrop(ctx context.Context, cropID string) (*cropdirectory.Crop, error) {
	if s.crops == nil {
		return nil, newError(CodeDependency, "Crop directory is not configured", nil)
	}

	lctx := ctx
	if s.cfg.CropLookupTimeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, s.cfg.CropLookupTimeout)
		defer cancel()
	}

	crop, err := s.crops.GetCropByID(lctx, cropID)
	switch {
	case errors.Is(err, cropdirectory.ErrCropNotFound):
		return nil, notFoundError("Crop not found")
	case err != nil:
		return nil, newError(CodeDependency, "Failed to fetch crop details", err)
	}
	return crop, nil
}

// submit runs the shared steps once the user is known: eligibility,
// location, upload, then the requestId and insert loop.
func (s *Service) submit(ctx context.Context, draft *Record, rawLocation string, files []PhotoFile) (*SubmitResult, error) {
	release, err := s.lock(ctx, draft.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	elig, err := s.eligibility.Evaluate(ctx, draft.UserID)
	if err != nil {
		return nil, internalError("Failed to check existing requests", err)
	}
	if !elig.CanSubmit {
		s.logger.Info("Submission blocked",
			zap.String("user_id", draft.UserID),
			zap.String("existing_id", elig.Latest.ID),
			zap.String("status", string(elig.Latest.Status)),
		)
		return nil, conflictError(elig.BlockReason, elig.Latest)
	}

	point, err := geospatial.ParseLatLng(rawLocation)
	if err != nil {
		return nil, validationError("Invalid location data")
	}

	now := s.now()
	photos, err := s.upload(ctx, draft.UserID, files, now)
	if err != nil {
		return nil, err
	}

	rec := draft
	rec.ID = uuid.NewString()
	rec.Photos = photos
	rec.Location = NewPointLocation(point)
	rec.Status = StatusPending
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err = assignRequestID(ctx, s.repo, s.ids, s.cfg.MaxRequestIDAttempts, rec.District, rec.Taluk, rec.CreatedAt, func(requestID string) error {
		rec.RequestID = requestID
		return s.repo.Create(ctx, rec)
	})
	if errors.Is(err, ErrActiveRecordExists) {
		// lost a race with a concurrent submission past the lock
		latest, lerr := s.repo.LatestByUser(ctx, rec.UserID)
		if lerr != nil || latest == nil {
			return nil, conflictError(MessageUnderReview, nil)
		}
		return nil, conflictError(Evaluate(latest).BlockReason, latest)
	}
	if err != nil {
		var verr *Error
		if errors.As(err, &verr) {
			return nil, err
		}
		return nil, internalError("Failed to save verification request", err)
	}

	result := &SubmitResult{Record: rec, IsResubmission: elig.IsResubmission()}
	if result.IsResubmission {
		result.PreviousRecordID = elig.Latest.ID
		s.logger.Info("New request after previous rejection",
			zap.String("user_id", rec.UserID),
			zap.String("previous_id", elig.Latest.ID),
		)
	}

	s.logger.Info("Verification submitted",
		zap.String("user_id", rec.UserID),
		zap.String("record_id", rec.ID),
		zap.String("request_id", rec.RequestID),
		zap.Int("photos", len(rec.Photos)),
		zap.Bool("is_resubmission", result.IsResubmission),
	)
	s.publish(ctx, events.TypeVerificationSubmitted, rec, map[string]interface{}{
		"isResubmission": result.IsResubmission,
		"photoCount":     len(rec.Photos),
	})
	return result, nil
}

func (s *Service) lock(ctx context.Context, userID string) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}

	release, err := s.locker.Acquire(ctx, "submit:"+userID, s.cfg.LockTTL)
	if errors.Is(err, locking.ErrLockHeld) {
		s.logger.Info("Concurrent submission rejected", zap.String("user_id", userID))
		return nil, s.inFlightConflict(ctx, userID)
	}
	if err != nil {
		// the store's unique index still guards the insert
		s.logger.Warn("Submission lock unavailable", zap.String("user_id", userID), zap.Error(err))
		return noop, nil
	}

	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to release submission lock", zap.String("user_id", userID), zap.Error(err))
		}
	}, nil
}

// inFlightConflict reports a submission racing another one for the same
// user. The stored record gives the context when it already blocks.
func (s *Service) inFlightConflict(ctx context.Context, userID string) error {
	latest, err := s.repo.LatestByUser(ctx, userID)
	if err != nil || latest == nil || !latest.Status.Blocking() {
		return conflictError(MessageInFlight, nil)
	}
	return conflictError(Evaluate(latest).BlockReason, latest)
}

func (s *Service) upload(ctx context.Context, userID string, files []PhotoFile, stamp time.Time) ([]Photo, error) {
	if s.photos == nil {
		return nil, newError(CodeUpload, "Photo storage is not configured", nil)
	}
	start := time.Now()
	photos, err := s.photos.UploadAll(ctx, userID, files, stamp)
	s.metrics.observeUpload(time.Since(start))
	if err != nil {
		s.logger.Error("Photo upload failed", zap.String("user_id", userID), zap.Error(err))
		return nil, newError(CodeUpload, "Failed to upload photos", err)
	}
	return photos, nil
}

// assignRequestID generates candidates, skips ones already taken and calls
// persist until it stops reporting ErrDuplicateRequestID. Other persist
// errors are returned unchanged. Every candidate carries the at stamp.
func assignRequestID(ctx context.Context, repo Repository, ids *RequestIDGenerator, attempts int, district, taluk string, at time.Time, persist func(requestID string) error) (string, error) {
	for i := 0; i < attempts; i++ {
		candidate := ids.GenerateAt(district, taluk, at)

		exists, err := repo.RequestIDExists(ctx, candidate)
		if err != nil {
			return "", internalError("Failed to check requestId", err)
		}
		if exists {
			continue
		}

		err = persist(candidate)
		if errors.Is(err, ErrDuplicateRequestID) {
			continue
		}
		if err != nil {
			return "", err
		}
		return candidate, nil
	}
	return "", newError(CodeGenerationExhausted, fmt.Sprintf("Failed to generate a unique requestId after %d attempts", attempts), nil)
}

// ReviewPhotos approves exactly the listed photos and rejects the rest
func (s *Service) ReviewPhotos(ctx context.Context, id string, approvedPhotoIDs []string) (*ReviewResult, error) {
	rec, err := s.load(ctx, id, "Verification request not found")
	if err != nil {
		return nil, err
	}
	if rec.Status != StatusPending {
		return nil, invalidStateError("Cannot review images. Request is already %s", rec.Status)
	}

	photos := ApplyPhotoReview(rec.Photos, approvedPhotoIDs)
	now := s.now()
	if err := s.repo.UpdatePhotos(ctx, rec.ID, photos, now); err != nil {
		return nil, s.writeError(ctx, err, rec.ID, "Cannot review images. Request is already %s")
	}
	rec.Photos = photos
	rec.UpdatedAt = now

	summary := summarizeReview(photos)
	s.metrics.observePhotoReview()
	s.logger.Info("Photos reviewed",
		zap.String("record_id", rec.ID),
		zap.Int("approved", summary.Approved),
		zap.Int("rejected", summary.Rejected),
	)
	s.publish(ctx, events.TypePhotosReviewed, rec, map[string]interface{}{
		"approved": summary.Approved,
		"rejected": summary.Rejected,
	})
	return &ReviewResult{Record: rec, Photos: photos, Summary: summary}, nil
}

// Finalize applies the reviewer's decision. Notification failures are
// logged and never fail the call.
func (s *Service) Finalize(ctx context.Context, id string, d Decision) (*Record, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	rec, err := s.load(ctx, id, "Verification request not found")
	if err != nil {
		return nil, err
	}
	if err := checkFinalizable(rec, d); err != nil {
		return nil, err
	}

	applyDecision(rec, d, s.now())
	if err := s.repo.Finalize(ctx, rec); err != nil {
		return nil, s.writeError(ctx, err, rec.ID, "Request is already %s")
	}

	s.metrics.observeFinalize(rec.Status)
	s.logger.Info("Verification finalized",
		zap.String("record_id", rec.ID),
		zap.String("request_id", rec.RequestID),
		zap.String("status", string(rec.Status)),
		zap.String("reviewed_by", rec.ReviewedBy),
	)
	s.publish(ctx, events.TypeVerificationFinalized, rec, map[string]interface{}{
		"rejectionReason": string(rec.RejectionReason),
		"locationType":    string(rec.Location.LocationType),
	})
	s.notify(ctx, rec)
	return rec, nil
}

func (s *Service) notify(ctx context.Context, rec *Record) {
	if s.notifier == nil {
		return
	}

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)
	defer cancel()

	var err error
	switch rec.Status {
	case StatusApproved:
		err = s.notifier.NotifyApproval(nctx, notifications.ApprovalNotice{
			RecordID:   rec.ID,
			Phone:      rec.Phone,
			FullName:   rec.FullName,
			RequestID:  rec.RequestID,
			CropName:   rec.CropName,
			ReviewedAt: *rec.ReviewedAt,
		})
	case StatusRejected:
		err = s.notifier.NotifyRejection(nctx, notifications.RejectionNotice{
			RecordID:        rec.ID,
			Phone:           rec.Phone,
			FullName:        rec.FullName,
			RequestID:       rec.RequestID,
			CropName:        rec.CropName,
			CropID:          rec.CropID,
			RejectionReason: string(rec.RejectionReason),
			RejectionNotes:  rec.RejectionNotes,
		})
	}
	if err != nil {
		s.metrics.observeNotificationFailure(string(rec.Status))
		s.logger.Warn("Outcome notification failed",
			zap.String("record_id", rec.ID),
			zap.String("status", string(rec.Status)),
			zap.Error(err),
		)
	}
}

// UpdateLocationType corrects the location classification at any status
func (s *Service) UpdateLocationType(ctx context.Context, id string, locationType LocationType) (*Record, error) {
	if !locationType.Valid() {
		return nil, validationError("locationType must be 'farm' or 'village'")
	}

	if err := s.repo.UpdateLocationType(ctx, id, locationType, s.now()); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, notFoundError("Verification request not found")
		}
		return nil, internalError("Failed to update location type", err)
	}

	rec, err := s.load(ctx, id, "Verification request not found")
	if err != nil {
		return nil, err
	}
	s.logger.Info("Location type corrected",
		zap.String("record_id", rec.ID),
		zap.String("location_type", string(locationType)),
	)
	s.publish(ctx, events.TypeLocationCorrected, rec, map[string]interface{}{
		"locationType": string(locationType),
	})
	return rec, nil
}

// Get returns one record with its photo summary
func (s *Service) Get(ctx context.Context, id string) (*RecordView, error) {
	rec, err := s.load(ctx, id, "Verification not found")
	if err != nil {
		return nil, err
	}
	view := NewRecordView(rec)
	return &view, nil
}

// ListByUser returns a user's records, newest first
func (s *Service) ListByUser(ctx context.Context, userID string) ([]RecordView, error) {
	recs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, internalError("Error fetching verifications", err)
	}
	return views(recs), nil
}

// ListByCrop returns the records for a crop, newest first
func (s *Service) ListByCrop(ctx context.Context, cropID string) ([]RecordView, error) {
	recs, err := s.repo.ListByCrop(ctx, cropID)
	if err != nil {
		return nil, internalError("Error fetching verifications", err)
	}
	return views(recs), nil
}

// CurrentStatus reports whether the user may submit and why not
func (s *Service) CurrentStatus(ctx context.Context, userID string) (*CurrentStatus, error) {
	elig, err := s.eligibility.Evaluate(ctx, userID)
	if err != nil {
		return nil, internalError("Error fetching current status", err)
	}
	return newCurrentStatus(elig), nil
}

// List returns one page of the admin listing
func (s *Service) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	filter, page, err := q.Parse()
	if err != nil {
		return nil, err
	}

	recs, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return nil, internalError("Error fetching requests", err)
	}

	return &ListResult{
		Requests:       views(recs),
		Pagination:     newPagination(page, total),
		AppliedFilters: q.AppliedFilters(),
	}, nil
}

func (s *Service) load(ctx context.Context, id, notFoundMessage string) (*Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, notFoundError(notFoundMessage)
	}
	if err != nil {
		return nil, internalError("Failed to load verification request", err)
	}
	return rec, nil
}

// writeError translates a conditional-update failure. A status conflict
// means another reviewer finalized first; report the status they set.
func (s *Service) writeError(ctx context.Context, err error, id, stateFormat string) error {
	switch {
	case errors.Is(err, ErrRecordNotFound):
		return notFoundError("Verification request not found")
	case errors.Is(err, ErrNoApprovedPhoto):
		return newError(CodePreconditionFailed, MessageNeedsApprovedPhoto, nil)
	case errors.Is(err, ErrStatusConflict):
		current, lerr := s.repo.GetByID(ctx, id)
		if lerr != nil {
			return invalidStateError("Request is no longer pending")
		}
		return invalidStateError(stateFormat, current.Status)
	default:
		return internalError("Failed to update verification request", err)
	}
}

func (s *Service) publish(ctx context.Context, eventType string, rec *Record, extra map[string]interface{}) {
	data := map[string]interface{}{
		"recordId":  rec.ID,
		"requestId": rec.RequestID,
		"userId":    rec.UserID,
		"cropId":    rec.CropID,
		"status":    string(rec.Status),
	}
	for k, v := range extra {
		data[k] = v
	}
	if err := s.events.Publish(ctx, eventType, rec.UserID, data); err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("event_type", eventType),
			zap.String("record_id", rec.ID),
			zap.Error(err),
		)
	}
}

func views(recs []*Record) []RecordView {
	out := make([]RecordView, 0, len(recs))
	for _, r := range recs {
		out = append(out, NewRecordView(r))
	}
	return out
}
