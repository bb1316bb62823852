package data

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"unicode/utf8"
)

// User is one entry of the paged user listing.
type User struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
	Type      string `json:"type"`
	SiteAdmin bool   `json:"site_admin"`
	// Note is the local free-text note attached to the user, never sent
	// upstream.
	Note string `json:"note,omitempty"`
}

// Profile is the detailed record for a single user.
type Profile struct {
	User
	Name        string `json:"name"`
	Company     string `json:"company"`
	Blog        string `json:"blog"`
	Location    string `json:"location"`
	Bio         string `json:"bio"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
	PublicRepos int    `json:"public_repos"`
}

type Users []*User

// Clone returns a copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

var (
	ErrNotFound  = errors.New("user not found")
	ErrBadID     = errors.New("invalid user id")
	ErrBadLogin  = errors.New("invalid login")
	ErrNoAvatar  = errors.New("no avatar url known for user")
	ErrBadCursor = errors.New("invalid since cursor")

	ErrNoteTooLong = errors.New("note is too long")
)

// MaxNoteLen is the longest note accepted, in characters.
const MaxNoteLen = 4096

// CheckNote rejects notes longer than MaxNoteLen characters.
func CheckNote(text string) error {
	if utf8.RuneCountInString(text) > MaxNoteLen {
		return ErrNoteTooLong
	}
	return nil
}

func (u *Users) ToJSON(w io.Writer) error { return json.NewEncoder(w).Encode(u) }

func (u *Users) FromJSON(r io.Reader) error { return json.NewDecoder(r).Decode(u) }

func (u *User) ToJSON(w io.Writer) error { return json.NewEncoder(w).Encode(u) }

func (p *Profile) ToJSON(w io.Writer) error { return json.NewEncoder(w).Encode(p) }

func (p *Profile) FromJSON(r io.Reader) error { return json.NewDecoder(r).Decode(p) }

// ParseID parses a positive numeric user id.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrBadID
	}
	return id, nil
}

// ParseSince parses the listing cursor; empty means start from the beginning.
func ParseSince(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, ErrBadCursor
	}
	return n, nil
}

// LastID returns the cursor for the next page, or since when the page is empty.
func (u Users) LastID(since int64) int64 {
	if len(u) == 0 {
		return since
	}
	return u[len(u)-1].ID
}
