package domain

import "time"

// User is an account the session can act as. Exactly one user is current at
// a time; the rest are switchable.
type User struct {
	ID        string
	Name      string
	Email     string
	AvatarURL string
	Provider  string
	CreatedAt time.Time
}

// DisplayName returns the user's name, falling back to the email address.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
