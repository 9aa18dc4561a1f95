package models

// User is a local user row, looked up by email after authentication.
type User struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// UserRef is the user identity block embedded in unit views.
type UserRef struct {
	TokenID   string `json:"tokenId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Telephone string `json:"telephone,omitempty"`
}

// Ref converts a User to the view identity block.
func (u *User) Ref() UserRef {
	return UserRef{
		TokenID:   u.UserID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Telephone: u.PhoneNumber,
	}
}
