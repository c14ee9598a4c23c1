package domain

import "time"

// User represents a registered account. The password hash never leaves
// the server.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session derives the cookie payload for this user.
func (u *User) Session() Session {
	return Session{UserID: u.ID, Email: u.Email, Name: u.Name}
}
