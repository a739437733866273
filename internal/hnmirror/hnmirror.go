// Package hnmirror holds the domain model for the mirror: the closed set
// of ingestible kinds, the entity envelopes, and the contracts the
// reconciler depends on.
package hnmirror

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("resource not found")
	ErrConflict = errors.New("resource already exists")

	// ErrKindChanged is returned when an upsert declares a different kind
	// than the one already stored for that id. Kind is assigned once.
	ErrKindChanged = errors.New("kind differs from stored kind")
)

// Kind is the category of an item. The set is closed: anything else coming
// off the wire is rejected, never stored.
type Kind string

const (
	KindStory   Kind = "story"
	KindJob     Kind = "job"
	KindPoll    Kind = "poll"
	KindPollOpt Kind = "pollopt"
	KindComment Kind = "comment"
)

// Valid reports whether k is one of the known item kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindStory, KindJob, KindPoll, KindPollOpt, KindComment:
		return true
	}
	return false
}

type (
	// Item is the common envelope plus the union of kind-specific fields.
	// Which fields are meaningful depends on Kind; score, descendants and
	// the parent references stay nil when the source never supplied them.
	Item struct {
		ID      int64  `db:"id"`
		Kind    Kind   `db:"kind"`
		Deleted bool   `db:"deleted"`
		Dead    bool   `db:"dead"`
		By      string `db:"by"` // author handle; the user may not exist locally yet

		Time        *time.Time `db:"time"`
		Parent      *int64     `db:"parent"` // comment: comment/story/poll; pollopt: poll
		Poll        *int64     `db:"poll"`
		Kids        IDList     `db:"kids"`  // comment ids, display order
		Parts       IDList     `db:"parts"` // pollopt ids, display order
		URL         string     `db:"url"`
		Title       string     `db:"title"`
		Text        string     `db:"text"`
		Score       *int64     `db:"score"`
		Descendants *int64     `db:"descendants"`

		LastSeenAt time.Time `db:"last_seen_at"`
		CreatedAt  time.Time `db:"created_at"`
		UpdatedAt  time.Time `db:"updated_at"`
	}

	// User is a mirrored profile. The handle is the primary identity and is
	// case-sensitive.
	User struct {
		Handle    string     `db:"handle"`
		Delay     *int64     `db:"delay"`
		Created   *time.Time `db:"created"`
		Karma     *int64     `db:"karma"`
		About     string     `db:"about"`
		Submitted IDList     `db:"submitted"` // display order, verbatim from the source

		LastSeenAt time.Time `db:"last_seen_at"`
		CreatedAt  time.Time `db:"created_at"`
		UpdatedAt  time.Time `db:"updated_at"`
	}

	// Changes is one poll of the source's recent-changes feed,
	// de-duplicated within the poll.
	Changes struct {
		Items    []int64
		Profiles []string
	}

	// Repository is the persistence boundary the reconciler writes through.
	//
	// Upserts replace the full mutable field set for their id and must be
	// atomic per record: a reader never observes a half-written entity.
	Repository interface {
		Item(ctx context.Context, id int64) (Item, error)
		ItemExists(ctx context.Context, id int64) (bool, error)
		UpsertItem(ctx context.Context, item Item) error
		MarkItemDeleted(ctx context.Context, id int64) error

		User(ctx context.Context, handle string) (User, error)
		UserExists(ctx context.Context, handle string) (bool, error)
		UpsertUser(ctx context.Context, user User) error
	}
)
