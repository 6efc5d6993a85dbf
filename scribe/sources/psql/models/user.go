package models

import "time"

type User struct {
	ID       int     `json:"id" gorm:"primaryKey;autoIncrement"`
	Username string  `json:"username" gorm:"type:varchar(255);not null;uniqueIndex"`
	Email    string  `json:"email" gorm:"type:varchar(255);not null"`
	FullName *string `json:"full_name,omitempty" gorm:"type:varchar(255)"`
	ImageURL *string `json:"image_url,omitempty" gorm:"type:varchar(512)"`
	IsActive bool    `json:"is_active" gorm:"not null;default:true"`

	// Google Calendar credentials, set once the user links a calendar.
	GoogleAccessToken  *string    `json:"-" gorm:"type:text"`
	GoogleRefreshToken *string    `json:"-" gorm:"type:text"`
	GoogleTokenExpiry  *time.Time `json:"-"`
}

// HasCalendar reports whether the user linked a calendar.
func (u User) HasCalendar() bool {
	return u.GoogleAccessToken != nil && *u.GoogleAccessToken != ""
}
