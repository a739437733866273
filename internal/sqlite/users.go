package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/molehill/hnmirror/internal/hnmirror"
)

func (r Repo) User(ctx context.Context, handle string) (hnmirror.User, error) {
	const q = `SELECT * FROM users WHERE handle = ?;`

	var user hnmirror.User
	err := r.db.GetContext(ctx, &user, q, handle)
	if errors.Is(err, sql.ErrNoRows) {
		return hnmirror.User{}, hnmirror.ErrNotFound
	}
	if err != nil {
		return hnmirror.User{}, fmt.Errorf("error fetching user: %s", err)
	}

	return user, nil
}

func (r Repo) UserExists(ctx context.Context, handle string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE handle = ?);`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, q, handle); err != nil {
		return false, fmt.Errorf("error checking user existence: %s", err)
	}

	return exists, nil
}

// UpsertUser writes the full mutable field set for the handle. Handles are
// case-sensitive: sqlite TEXT comparison is byte-wise, which is what we
// want here.
func (r Repo) UpsertUser(ctx context.Context, user hnmirror.User) error {
	now := time.Now().UTC()
	user.UpdatedAt = now
	if user.LastSeenAt.IsZero() {
		user.LastSeenAt = now
	}

	const q = `INSERT INTO users (handle, delay, created, karma, about, submitted, last_seen_at, updated_at)
	VALUES (:handle, :delay, :created, :karma, :about, :submitted, :last_seen_at, :updated_at)
	ON CONFLICT (handle) DO UPDATE SET
		delay = excluded.delay,
		created = excluded.created,
		karma = excluded.karma,
		about = excluded.about,
		submitted = excluded.submitted,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at;`
	if _, err := r.db.NamedExecContext(ctx, q, user); err != nil {
		return fmt.Errorf("error upserting user: %s", err)
	}

	return nil
}
