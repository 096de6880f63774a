package models

// Chat session types and statuses.
const (
	ChatTypeAI         = "ai"
	ChatTypeCounsellor = "counsellor"

	SessionStatusPending = "pending"
	SessionStatusActive  = "active"
	SessionStatusClosed  = "closed"
)

// ChatSession links a student to an optional counsellor conversation.
// AI sessions have no counsellor.
type ChatSession struct {
	BaseModel

	StudentID    string  `gorm:"type:uuid;not null;index" json:"student_id"`
	CounsellorID *string `gorm:"type:uuid;index" json:"counsellor_id"`

	Student    User  `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"-"`
	Counsellor *User `gorm:"foreignKey:CounsellorID;constraint:OnDelete:SET NULL" json:"-"`

	ChatType string `gorm:"type:varchar(32);not null" json:"chat_type"`
	Status   string `gorm:"type:varchar(32);default:'pending';index" json:"status"`
}
