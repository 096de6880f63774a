package models

// CounsellorRating stores one 1-5 rating plus optional review per
// (student, counsellor) pair.
type CounsellorRating struct {
	BaseModel

	StudentID    string `gorm:"type:uuid;not null;uniqueIndex:idx_rating_student_counsellor" json:"student_id"`
	CounsellorID string `gorm:"type:uuid;not null;uniqueIndex:idx_rating_student_counsellor" json:"counsellor_id"`

	Student    User `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"-"`
	Counsellor User `gorm:"foreignKey:CounsellorID;constraint:OnDelete:CASCADE" json:"-"`

	Rating int    `gorm:"not null" json:"rating"`
	Review string `gorm:"type:text" json:"review,omitempty"`
}
