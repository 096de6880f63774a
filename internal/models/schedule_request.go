package models

import "time"

// Schedule request statuses. Pending and accepted block the slot;
// rejected and declined free it.
const (
	ScheduleStatusPending  = "pending"
	ScheduleStatusAccepted = "accepted"
	ScheduleStatusRejected = "rejected"
	ScheduleStatusDeclined = "declined"
)

// ValidScheduleStatus reports whether the status is part of the booking state set.
func ValidScheduleStatus(status string) bool {
	switch status {
	case ScheduleStatusPending, ScheduleStatusAccepted, ScheduleStatusRejected, ScheduleStatusDeclined:
		return true
	}
	return false
}

// BlocksSlot reports whether a request in the given status occupies its slot.
func BlocksSlot(status string) bool {
	return status == ScheduleStatusPending || status == ScheduleStatusAccepted
}

// ScheduleRequest is a student's appointment request for a counsellor time slot.
type ScheduleRequest struct {
	BaseModel

	StudentID    string `gorm:"type:uuid;not null;index" json:"student_id"`
	CounsellorID string `gorm:"type:uuid;not null;index:idx_schedule_counsellor_time" json:"counsellor_id"`

	Student    User `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"-"`
	Counsellor User `gorm:"foreignKey:CounsellorID;constraint:OnDelete:CASCADE" json:"-"`

	ScheduledTime time.Time `gorm:"not null;index:idx_schedule_counsellor_time" json:"scheduled_time"`

	Status string `gorm:"type:varchar(32);default:'pending';index" json:"status"`
}
