package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/molehill/hnmirror/internal/hnmirror"
)

func (r Repo) Item(ctx context.Context, id int64) (hnmirror.Item, error) {
	const q = `SELECT * FROM items WHERE id = ?;`

	var item hnmirror.Item
	err := r.db.GetContext(ctx, &item, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return hnmirror.Item{}, hnmirror.ErrNotFound
	}
	if err != nil {
		return hnmirror.Item{}, fmt.Errorf("error fetching item: %s", err)
	}

	return item, nil
}

func (r Repo) ItemExists(ctx context.Context, id int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM items WHERE id = ?);`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, q, id); err != nil {
		return false, fmt.Errorf("error checking item existence: %s", err)
	}

	return exists, nil
}

// UpsertItem writes the full mutable field set for the item's id: insert
// when absent, full replacement when present. Kind and created_at are set
// once on insert and never touched again; a payload declaring a different
// kind for a stored id gets [hnmirror.ErrKindChanged].
func (r Repo) UpsertItem(ctx context.Context, item hnmirror.Item) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning upsert: %s", err)
	}
	defer tx.Rollback()

	var storedKind hnmirror.Kind
	err = tx.GetContext(ctx, &storedKind, `SELECT kind FROM items WHERE id = ?;`, item.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("error reading stored kind: %s", err)
	}
	if err == nil && storedKind != item.Kind {
		return fmt.Errorf("item %d is a %s, not a %s: %w", item.ID, storedKind, item.Kind, hnmirror.ErrKindChanged)
	}

	now := time.Now().UTC()
	item.UpdatedAt = now
	if item.LastSeenAt.IsZero() {
		item.LastSeenAt = now
	}

	const q = `INSERT INTO items (id, kind, deleted, dead, by, time, parent, poll, kids, parts, url, title, text, score, descendants, last_seen_at, updated_at)
	VALUES (:id, :kind, :deleted, :dead, :by, :time, :parent, :poll, :kids, :parts, :url, :title, :text, :score, :descendants, :last_seen_at, :updated_at)
	ON CONFLICT (id) DO UPDATE SET
		deleted = excluded.deleted,
		dead = excluded.dead,
		by = excluded.by,
		time = excluded.time,
		parent = excluded.parent,
		poll = excluded.poll,
		kids = excluded.kids,
		parts = excluded.parts,
		url = excluded.url,
		title = excluded.title,
		text = excluded.text,
		score = excluded.score,
		descendants = excluded.descendants,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at;`
	if _, err := tx.NamedExecContext(ctx, q, item); err != nil {
		return fmt.Errorf("error upserting item: %s", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing upsert: %s", err)
	}

	return nil
}

// MarkItemDeleted writes a tombstone: only the deleted flag and updated_at
// move, every other field stays as last fetched.
func (r Repo) MarkItemDeleted(ctx context.Context, id int64) error {
	q := sq.Update("items").
		Set("deleted", true).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id})

	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("error constructing sql: %s", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error marking item deleted: %s", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return hnmirror.ErrNotFound
	}

	return nil
}
