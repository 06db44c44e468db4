package models

// Identity is the authenticated user as returned by the auth endpoints.
type Identity struct {
	ID    string `json:"uid"`
	Email string `json:"email"`
}

func (i Identity) Valid() bool { return i.ID != "" }
