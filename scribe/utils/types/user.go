package types

import (
	"time"

	"scribe/scribe/sources/psql/models"
)

type CreateUserRequest struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	FullName *string `json:"full_name,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
}

type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

// LinkCalendarRequest carries the Google OAuth tokens obtained by the client.
type LinkCalendarRequest struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
}
