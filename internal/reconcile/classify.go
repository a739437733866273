package reconcile

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/molehill/hnmirror/internal/hnclient"
	"github.com/molehill/hnmirror/internal/hnmirror"
)

var (
	// ErrInvalid marks a payload that misses a required field or
	// contradicts what is already stored.
	ErrInvalid = errors.New("invalid payload")

	// ErrUnknownKind guards against item kinds the source grows later:
	// those records fail individually instead of poisoning the batch.
	ErrUnknownKind = errors.New("unknown item kind")
)

// classifyItem maps a raw wire payload onto the typed item for the
// requested id, dispatching on the declared kind and checking the
// kind-specific required fields.
//
// A deleted placeholder (deleted with no author) skips the required-field
// checks: the source strips those payloads down to almost nothing and we
// still want the tombstone.
func classifyItem(id int64, p hnclient.ItemPayload) (hnmirror.Item, error) {
	kind := hnmirror.Kind(p.Type)
	if !kind.Valid() {
		return hnmirror.Item{}, fmt.Errorf("%w: %q", ErrUnknownKind, p.Type)
	}
	if p.ID != 0 && p.ID != id {
		return hnmirror.Item{}, fmt.Errorf("%w: payload is for id %d, requested %d", ErrInvalid, p.ID, id)
	}
	if p.Score != nil && *p.Score < 0 {
		return hnmirror.Item{}, fmt.Errorf("%w: negative score %d", ErrInvalid, *p.Score)
	}
	if p.Descendants != nil && *p.Descendants < 0 {
		return hnmirror.Item{}, fmt.Errorf("%w: negative descendant count %d", ErrInvalid, *p.Descendants)
	}

	placeholder := p.Deleted && p.By == ""
	switch kind {
	case hnmirror.KindStory, hnmirror.KindJob, hnmirror.KindPoll:
		if p.Title == "" && !placeholder {
			return hnmirror.Item{}, fmt.Errorf("%w: %s requires a title", ErrInvalid, kind)
		}
	case hnmirror.KindComment:
		if p.Parent == nil && !placeholder {
			return hnmirror.Item{}, fmt.Errorf("%w: comment requires a parent", ErrInvalid)
		}
	case hnmirror.KindPollOpt:
		// Older payloads say parent, newer ones say poll; either anchors
		// the option to its poll.
		if p.Parent == nil && p.Poll == nil && !placeholder {
			return hnmirror.Item{}, fmt.Errorf("%w: pollopt requires a poll reference", ErrInvalid)
		}
	}

	item := hnmirror.Item{
		ID:      id,
		Kind:    kind,
		Deleted: p.Deleted,
		Dead:    p.Dead,
		By:      p.By,
		// Parent and By are weak references: the target entity may not be
		// mirrored yet, and that is fine. They resolve lazily on read.
		Parent:      p.Parent,
		Poll:        p.Poll,
		Kids:        hnmirror.IDList(p.Kids),
		Parts:       hnmirror.IDList(p.Parts),
		URL:         p.URL,
		Title:       p.Title,
		Text:        sanitize(p.Text),
		Score:       p.Score,
		Descendants: p.Descendants,
	}
	if p.Time != 0 {
		t := time.Unix(p.Time, 0).UTC()
		item.Time = &t
	}

	return item, nil
}

// classifyUser maps a raw profile payload onto the typed user for the
// requested handle. Handles are case-sensitive, so the comparison here is
// exact.
func classifyUser(handle string, p hnclient.UserPayload) (hnmirror.User, error) {
	if handle == "" {
		return hnmirror.User{}, fmt.Errorf("%w: empty handle", ErrInvalid)
	}
	if p.ID != "" && p.ID != handle {
		return hnmirror.User{}, fmt.Errorf("%w: payload is for %q, requested %q", ErrInvalid, p.ID, handle)
	}
	if p.Karma != nil && *p.Karma < 0 {
		return hnmirror.User{}, fmt.Errorf("%w: negative karma %d", ErrInvalid, *p.Karma)
	}

	user := hnmirror.User{
		Handle:    handle,
		Delay:     p.Delay,
		Karma:     p.Karma,
		About:     sanitize(p.About),
		Submitted: hnmirror.IDList(p.Submitted),
	}
	if p.Created != 0 {
		t := time.Unix(p.Created, 0).UTC()
		user.Created = &t
	}

	return user, nil
}

var htmlPolicy = bluemonday.UGCPolicy()

// Keeps user-authored HTML down to the tags we are willing to store and
// caps the length so one record can't balloon a row.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = htmlPolicy.Sanitize(s)
	if len(s) > 16384 {
		cut := 16384
		// Don't cut a multi-byte rune in half.
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}

	return s
}
