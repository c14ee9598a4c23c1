package domain

// Session is the client-held identity carried by the session cookie.
// It is not persisted server-side; the cookie is the only record.
type Session struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}
