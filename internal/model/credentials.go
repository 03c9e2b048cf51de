package model

// Credentials authenticate against the remote item repository.
type Credentials struct {
	Username string
	Token    string
}

// IsZero returns true when there are no credentials.
func (c Credentials) IsZero() bool { return c.Token == "" }
