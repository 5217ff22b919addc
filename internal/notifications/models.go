package notifications

import (
	"time"

	"gorm.io/datatypes"
)

// Kind is the verification outcome being announced
type Kind string

const (
	KindApproval  Kind = "approval"
	KindRejection Kind = "rejection"
)

// Delivery statuses
const (
	StatusSent      = "sent"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
)

// ApprovalNotice announces an approved verification
type ApprovalNotice struct {
	RecordID   string
	Phone      string
	FullName   string
	RequestID  string
	CropName   string
	ReviewedAt time.Time
}

// RejectionNotice announces a rejected verification
type RejectionNotice struct {
	RecordID        string
	Phone           string
	FullName        string
	RequestID       string
	CropName        string
	CropID          string
	RejectionReason string
	RejectionNotes  string
}

// Notice is the channel-independent message content
type Notice struct {
	Kind            Kind      `json:"kind" bson:"kind"`
	RecordID        string    `json:"record_id" bson:"record_id"`
	Phone           string    `json:"phone" bson:"phone"`
	FullName        string    `json:"full_name" bson:"full_name"`
	RequestID       string    `json:"request_id" bson:"request_id"`
	CropName        string    `json:"crop_name" bson:"crop_name"`
	CropID          string    `json:"crop_id,omitempty" bson:"crop_id,omitempty"`
	RejectionReason string    `json:"rejection_reason,omitempty" bson:"rejection_reason,omitempty"`
	RejectionNotes  string    `json:"rejection_notes,omitempty" bson:"rejection_notes,omitempty"`
	ReviewedAt      time.Time `json:"reviewed_at,omitempty" bson:"reviewed_at,omitempty"`
}

func (n ApprovalNotice) notice() Notice {
	return Notice{
		Kind:       KindApproval,
		RecordID:   n.RecordID,
		Phone:      n.Phone,
		FullName:   n.FullName,
		RequestID:  n.RequestID,
		CropName:   n.CropName,
		ReviewedAt: n.ReviewedAt,
	}
}

func (n RejectionNotice) notice() Notice {
	return Notice{
		Kind:            KindRejection,
		RecordID:        n.RecordID,
		Phone:           n.Phone,
		FullName:        n.FullName,
		RequestID:       n.RequestID,
		CropName:        n.CropName,
		CropID:          n.CropID,
		RejectionReason: n.RejectionReason,
		RejectionNotes:  n.RejectionNotes,
	}
}

// DeliveryLog tracks one notice through its delivery attempts
type DeliveryLog struct {
	ID               string         `json:"id" gorm:"primaryKey;type:varchar(64)" bson:"_id"`
	RecordID         string         `json:"record_id" gorm:"not null;index" bson:"record_id"`
	Kind             string         `json:"kind" gorm:"not null" bson:"kind"`
	Notice           Notice         `json:"notice" gorm:"serializer:json;type:jsonb" bson:"notice"`
	Channel          string         `json:"channel" gorm:"" bson:"channel"`
	Status           string         `json:"status" gorm:"not null;index" bson:"status"`
	Attempts         int            `json:"attempts" gorm:"default:0" bson:"attempts"`
	LastError        string         `json:"last_error" gorm:"" bson:"last_error"`
	ProviderResponse datatypes.JSON `json:"provider_response" gorm:"type:jsonb" bson:"provider_response"`
	CreatedAt        time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" bson:"updated_at"`
}

func (DeliveryLog) TableName() string { return "notification_deliveries" }
