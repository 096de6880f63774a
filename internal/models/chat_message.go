package models

// Message sender roles. SenderAI marks assistant replies.
const SenderAI = "ai"

// ChatMessage belongs to a session and carries the sender role and text.
type ChatMessage struct {
	BaseModel

	SessionID string      `gorm:"type:uuid;not null;index" json:"session_id"`
	Session   ChatSession `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`

	SenderRole string `gorm:"type:varchar(32);not null" json:"sender_role"`
	Message    string `gorm:"type:text;not null" json:"message"`
}
