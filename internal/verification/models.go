package verification

import (
	"time"

	"github.com/paulmach/orb"
)

// Status is the overall lifecycle status of a verification record
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed
func (s Status) IsTerminal() bool {
	return statusTransitions.IsTerminal(string(s))
}

// Blocking reports whether a record in this status prevents a new submission
func (s Status) Blocking() bool {
	return s == StatusPending || s == StatusApproved
}

// PhotoStatus is the per-photo review status
type PhotoStatus string

const (
	PhotoPending  PhotoStatus = "pending"
	PhotoApproved PhotoStatus = "approved"
	PhotoRejected PhotoStatus = "rejected"
)

// LocationType classifies the submitted coordinate
type LocationType string

const (
	LocationFarm    LocationType = "farm"
	LocationVillage LocationType = "village"
)

func (l LocationType) Valid() bool {
	return l == LocationFarm || l == LocationVillage
}

// RejectionReason is the closed set of reasons a reviewer may pick
type RejectionReason string

const (
	ReasonPoorPhotoQuality          RejectionReason = "poor_photo_quality"
	ReasonFaceNotVisible            RejectionReason = "face_not_visible"
	ReasonIncorrectLocation         RejectionReason = "incorrect_location"
	ReasonInsufficientPhotos        RejectionReason = "insufficient_photos"
	ReasonDuplicateRequest          RejectionReason = "duplicate_request"
	ReasonCropMismatch              RejectionReason = "crop_mismatch"
	ReasonFakeOrManipulated         RejectionReason = "fake_or_manipulated"
	ReasonIncompleteInformation     RejectionReason = "incomplete_information"
	ReasonSuspiciousActivity        RejectionReason = "suspicious_activity"
	ReasonPhotoTooDark              RejectionReason = "photo_too_dark"
	ReasonPhotoNotClear             RejectionReason = "photo_not_clear"
	ReasonPhotoNotFocused           RejectionReason = "photo_not_focused"
	ReasonPartialCropVisible        RejectionReason = "partial_crop_visible"
	ReasonCameraAngleIncorrect      RejectionReason = "camera_angle_incorrect"
	ReasonPhotoContainsObstructions RejectionReason = "photo_contains_obstructions"
	ReasonWrongCropUploaded         RejectionReason = "wrong_crop_uploaded"
	ReasonCropStageMismatch         RejectionReason = "crop_stage_mismatch"
	ReasonCropAreaNotClear          RejectionReason = "crop_area_not_clear"
	ReasonCropNotIdentifiable       RejectionReason = "crop_not_identifiable"
	ReasonOther                     RejectionReason = "other"
)

var rejectionReasons = []RejectionReason{
	ReasonPoorPhotoQuality,
	ReasonFaceNotVisible,
	ReasonIncorrectLocation,
	ReasonInsufficientPhotos,
	ReasonDuplicateRequest,
	ReasonCropMismatch,
	ReasonFakeOrManipulated,
	ReasonIncompleteInformation,
	ReasonSuspiciousActivity,
	ReasonPhotoTooDark,
	ReasonPhotoNotClear,
	ReasonPhotoNotFocused,
	ReasonPartialCropVisible,
	ReasonCameraAngleIncorrect,
	ReasonPhotoContainsObstructions,
	ReasonWrongCropUploaded,
	ReasonCropStageMismatch,
	ReasonCropAreaNotClear,
	ReasonCropNotIdentifiable,
	ReasonOther,
}

// RejectionReasons returns every accepted reason code in display order
func RejectionReasons() []RejectionReason {
	out := make([]RejectionReason, len(rejectionReasons))
	copy(out, rejectionReasons)
	return out
}

func (r RejectionReason) Valid() bool {
	for _, known := range rejectionReasons {
		if r == known {
			return true
		}
	}
	return false
}

// Photo is one piece of photo evidence on a record
type Photo struct {
	ID     string      `json:"_id"`
	URL    string      `json:"url"`
	Status PhotoStatus `json:"status"`
}

// Location is a GeoJSON point with an optional classification
type Location struct {
	Type         string       `json:"type"`
	Coordinates  [2]float64   `json:"coordinates"` // [lng, lat]
	LocationType LocationType `json:"locationType,omitempty"`
}

// NewPointLocation builds an unclassified location from a point
func NewPointLocation(p orb.Point) Location {
	return Location{Type: "Point", Coordinates: [2]float64{p.Lon(), p.Lat()}}
}

func (l Location) Point() orb.Point {
	return orb.Point{l.Coordinates[0], l.Coordinates[1]}
}

// Record is one crop-ownership verification attempt
type Record struct {
	ID        string `json:"_id"`
	RequestID string `json:"requestId"`
	UserID    string `json:"userId"`
	CropID    string `json:"cropId"`
	CropName  string `json:"cropName"`

	FullName string `json:"fullName,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Village  string `json:"village,omitempty"`
	Taluk    string `json:"taluk,omitempty"`
	District string `json:"district,omitempty"`
	Quantity string `json:"quantity,omitempty"`
	Variety  string `json:"variety,omitempty"`
	Moisture string `json:"moisture,omitempty"`
	WillDry  string `json:"willDry,omitempty"`

	Photos   []Photo  `json:"photos"`
	Location Location `json:"location"`
	Status   Status   `json:"status"`

	RejectionReason RejectionReason `json:"rejectionReason,omitempty"`
	RejectionNotes  string          `json:"rejectionNotes,omitempty"`
	ReviewedAt      *time.Time      `json:"reviewedAt,omitempty"`
	ReviewedBy      string          `json:"reviewedBy,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Photos = append([]Photo(nil), r.Photos...)
	if r.ReviewedAt != nil {
		t := *r.ReviewedAt
		out.ReviewedAt = &t
	}
	return &out
}

// PhotoSummary counts photos by review status
type PhotoSummary struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Pending  int `json:"pending"`
}

// SummarizePhotos counts photos by status
func SummarizePhotos(photos []Photo) PhotoSummary {
	s := PhotoSummary{Total: len(photos)}
	for _, p := range photos {
		switch p.Status {
		case PhotoApproved:
			s.Approved++
		case PhotoRejected:
			s.Rejected++
		default:
			s.Pending++
		}
	}
	return s
}

// RecordView is a record with its derived photo summary
type RecordView struct {
	*Record
	PhotoSummary PhotoSummary `json:"photoSummary"`
}

func NewRecordView(r *Record) RecordView {
	return RecordView{Record: r, PhotoSummary: SummarizePhotos(r.Photos)}
}
