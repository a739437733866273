// Package v1 holds the transport shapes of the mirror's ops API.
package v1

import "time"

// Item is a mirrored item as served by the ops API. Pointer fields are
// absent when the source never supplied them; zero is a real value.
type Item struct {
	ID      int64  `json:"id"`
	Kind    string `json:"kind"`
	Deleted bool   `json:"deleted"`
	Dead    bool   `json:"dead"`
	By      string `json:"by,omitempty"`

	Time        *time.Time `json:"time,omitempty"`
	Parent      *int64     `json:"parent,omitempty"`
	Poll        *int64     `json:"poll,omitempty"`
	Kids        []int64    `json:"kids,omitempty"`
	Parts       []int64    `json:"parts,omitempty"`
	URL         string     `json:"url,omitempty"`
	Title       string     `json:"title,omitempty"`
	Text        string     `json:"text,omitempty"`
	Score       *int64     `json:"score,omitempty"`
	Descendants *int64     `json:"descendants,omitempty"`

	LastSeenAt time.Time `json:"last_seen_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// User is a mirrored profile as served by the ops API.
type User struct {
	Handle    string     `json:"handle"`
	Delay     *int64     `json:"delay,omitempty"`
	Created   *time.Time `json:"created,omitempty"`
	Karma     *int64     `json:"karma,omitempty"`
	About     string     `json:"about,omitempty"`
	Submitted []int64    `json:"submitted,omitempty"`

	LastSeenAt time.Time `json:"last_seen_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
