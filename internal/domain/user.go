package domain

// User is the profile fragment persisted under the "user" state key after a
// successful login. The backend owns the full account record.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Plan     string `json:"plan,omitempty"`
}
