package models

// Platform roles.
const (
	RoleStudent    = "student"
	RoleCounsellor = "counsellor"
	RoleAdmin      = "admin"
)

// ValidRole reports whether the supplied role is one the platform recognises.
func ValidRole(role string) bool {
	switch role {
	case RoleStudent, RoleCounsellor, RoleAdmin:
		return true
	}
	return false
}

// User describes a platform account: students, counsellors and admins share one table.
type User struct {
	BaseModel

	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Password string `gorm:"not null" json:"-"`

	Role string `gorm:"type:varchar(32);index;not null" json:"role"`

	// Counsellor profile fields; unused for students and admins.
	Phone         string  `json:"phone,omitempty"`
	Experience    *int    `json:"experience,omitempty"`
	Certification string  `json:"certification,omitempty"`
	Rating        float64 `gorm:"default:0" json:"rating"`
	IsAvailable   bool    `gorm:"default:true" json:"is_available"`

	IsVerified bool `gorm:"default:false" json:"is_verified"`
}

// IsCounsellor reports whether the account belongs to a counsellor.
func (u *User) IsCounsellor() bool {
	return u.Role == RoleCounsellor
}
