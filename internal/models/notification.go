package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification types produced by booking state transitions.
const (
	NotificationTypeBookingRequested = "booking.requested"
	NotificationTypeBookingDecided   = "booking.decided"
)

// Notification represents an in-app notification for a user.
type Notification struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`
	User   User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`

	Type     string         `gorm:"type:varchar(64);not null" json:"type"`
	Title    string         `gorm:"type:varchar(255);not null" json:"title"`
	Message  string         `gorm:"type:text" json:"message"`
	Metadata datatypes.JSON `json:"metadata"`

	IsRead bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`
}
