package repo

import (
	"context"
	"sync"

	"github.com/tinoosan/ghusers/internal/data"
)

// InMemoryUserRepo keeps notes apart from user records so refreshing a user
// from upstream never drops its note.
type InMemoryUserRepo struct {
	mu    sync.RWMutex
	users map[int64]*data.User
	notes map[int64]string
}

func NewInMemoryUserRepo() *InMemoryUserRepo {
	return &InMemoryUserRepo{
		users: make(map[int64]*data.User),
		notes: make(map[int64]string),
	}
}

// Upsert stores copies of users, replacing earlier records with the same id.
// Records without a positive id are skipped. A later record with an empty
// avatar URL keeps the one already known.
func (r *InMemoryUserRepo) Upsert(ctx context.Context, users ...*data.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range users {
		if u == nil || u.ID <= 0 {
			continue
		}
		c := u.Clone()
		c.Note = ""
		if old, ok := r.users[u.ID]; ok && c.AvatarURL == "" {
			c.AvatarURL = old.AvatarURL
		}
		r.users[u.ID] = c
	}
	return nil
}

func (r *InMemoryUserRepo) Get(ctx context.Context, id int64) (*data.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, data.ErrNotFound
	}
	c := u.Clone()
	c.Note = r.notes[id]
	return c, nil
}

func (r *InMemoryUserRepo) SetNote(ctx context.Context, id int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return data.ErrNotFound
	}
	if text == "" {
		delete(r.notes, id)
		return nil
	}
	r.notes[id] = text
	return nil
}

func (r *InMemoryUserRepo) Note(ctx context.Context, id int64) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.users[id]; !ok {
		return "", data.ErrNotFound
	}
	return r.notes[id], nil
}

func (r *InMemoryUserRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
