package user

import (
	"time"
)

// User represents a chat account.
type User struct {
	ID           string `gorm:"primaryKey;type:text"`
	Email        string `gorm:"uniqueIndex;not null;type:text"`
	FullName     string `gorm:"not null;type:text"`
	PasswordHash string `gorm:"not null;type:text"`
	ProfilePic   string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName returns the table name for the User entity.
func (User) TableName() string {
	return "users"
}

// Public returns the view of the user that may leave the server.
func (u *User) Public() Profile {
	return Profile{
		ID:         u.ID,
		Email:      u.Email,
		FullName:   u.FullName,
		ProfilePic: u.ProfilePic,
		CreatedAt:  u.CreatedAt,
	}
}

// Profile is a user without credential material.
type Profile struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	ProfilePic string    `json:"profilePic"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Claims represents the identity carried by a session token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}
