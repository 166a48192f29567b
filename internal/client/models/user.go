// Package models defines the wire and domain types exchanged with the
// InnerWell backend.
package models

// Tokens is the bearer pair issued by the backend. Both values are opaque.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Complete reports whether both halves are present.
func (t Tokens) Complete() bool {
	return t.Access != "" && t.Refresh != ""
}

// User is the profile returned by GET /api/users/profile/.
type User struct {
	ID           ID     `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username,omitempty"`
	Name         string `json:"name,omitempty"`
	ProfileImage string `json:"profile_image,omitempty"`
	IsSubscribed bool   `json:"is_subscribed"`
	IsVerified   bool   `json:"is_verified,omitempty"`
	DateJoined   string `json:"date_joined,omitempty"`
}

// DisplayName picks the friendliest non-empty identifier.
func (u *User) DisplayName() string {
	switch {
	case u == nil:
		return ""
	case u.Name != "":
		return u.Name
	case u.Username != "":
		return u.Username
	default:
		return u.Email
	}
}

// AuthResponse is returned by login, registration, email verification and
// the Google exchange. Registration may omit the tokens when the account
// still needs email verification.
type AuthResponse struct {
	Tokens
	User    *User  `json:"user,omitempty"`
	Message string `json:"message,omitempty"`
}

// ProfileUpdate carries editable profile fields. Empty strings are not sent.
// ImagePath, when set, is uploaded as the profile_image file part.
type ProfileUpdate struct {
	Name      string
	Username  string
	ImagePath string
}
