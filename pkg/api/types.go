package api

import "time"

// User is an account in the service. Users are created either through
// auto-provisioning on first Basic-auth contact or by an explicit signup.
// Accounts are never deleted, only deactivated.
type User struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Password   string    `json:"-"` // argon2id PHC hash, never plaintext
	Active     bool      `json:"active"`
	Registered bool      `json:"registered"`
	CreatedAt  time.Time `json:"created_at"`
}

// Token is an opaque bearer credential owned by exactly one user.
// The key is 20 random bytes rendered as lowercase hex.
type Token struct {
	Key       string    `json:"token"`
	UserID    string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Note is a text blob owned by one user. A note may carry a
// human-friendly alias, unique per owner among active notes, and may
// belong to a notebook. Deletion is a soft-delete via the Active flag.
type Note struct {
	ID        string    `json:"-"`
	Text      string    `json:"text"`
	Alias     string    `json:"alias"`
	OwnerID   string    `json:"-"`
	Notebook  string    `json:"notebook,omitempty"`
	Active    bool      `json:"-"`
	CreatedAt time.Time `json:"-"`
}

// Notebook is a named per-owner grouping of notes with get-or-create
// semantics.
type Notebook struct {
	ID        string    `json:"-"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Question is an admin-curated challenge from the registration pool.
// The answer never leaves the server.
type Question struct {
	ID        string    `json:"-"`
	Text      string    `json:"question"`
	Answer    string    `json:"-"`
	Active    bool      `json:"-"`
	CreatedAt time.Time `json:"-"`
}

// RegisterQuestion is one user's pending registration challenge. It is
// addressed by uuid on a public route and expires after a configured
// lifetime; answering it correctly marks the user as registered.
type RegisterQuestion struct {
	UUID       string    `json:"uuid"`
	QuestionID string    `json:"-"`
	UserID     string    `json:"-"`
	Active     bool      `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Report is a captured client-side traceback with free-text environment
// info, optionally linked to the reporting user. Append-only.
type Report struct {
	ID        string    `json:"-"`
	Traceback string    `json:"traceback"`
	Info      string    `json:"info"`
	UserID    string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
