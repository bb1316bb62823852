package repo

import (
	"context"

	"github.com/tinoosan/ghusers/internal/data"
)

// UserRepo remembers users seen in listings and profiles, and the notes
// attached to them, for the lifetime of the process.
type UserRepo interface {
	Upsert(ctx context.Context, users ...*data.User) error
	Get(ctx context.Context, id int64) (*data.User, error)
	Len() int

	// SetNote attaches text to a known user; empty text removes the note.
	SetNote(ctx context.Context, id int64, text string) error
	// Note returns the user's note, empty when none is set.
	Note(ctx context.Context, id int64) (string, error)
}
