package domain

import "time"

// User is one LINE identity linked (or not yet linked) to a Google
// account. Token fields hold vault-encrypted values, never plaintext.
type User struct {
	ID                 string     `json:"id" gorm:"primaryKey"`
	LineUserID         string     `json:"line_user_id" gorm:"uniqueIndex;not null"`
	GoogleAccessToken  *string    `json:"-"`
	GoogleRefreshToken *string    `json:"-"`
	GoogleTokenExpiry  *time.Time `json:"-"`
	GoogleCalendars    *string    `json:"-"` // cached calendar list, opaque JSON
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// HasCredentials reports whether a full token pair is stored. A partial
// pair counts as unauthenticated.
func (u *User) HasCredentials() bool {
	return u.GoogleAccessToken != nil && u.GoogleRefreshToken != nil
}
