package auth

import "time"

// Identity is the authenticated user as seen by the views.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// User is a registered account. The password is only ever held as a bcrypt hash.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash []byte
	Confirmed    bool
	CreatedAt    time.Time
}

func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName}
}

// Session is the result of a successful sign-in.
type Session struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Identity    Identity  `json:"user"`
}

// SignUpResult reports the created identity and, when the account needs no
// confirmation, a ready session.
type SignUpResult struct {
	Identity             Identity `json:"user"`
	Session              *Session `json:"session,omitempty"`
	ConfirmationRequired bool     `json:"confirmationRequired"`
}
