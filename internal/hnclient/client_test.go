package hnclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/updates.json", r.URL.Path)
		fmt.Fprint(w, `{"items":[101,102,101,103],"profiles":["alice","bob","alice"]}`)
	}))
	defer srv.Close()

	cli := New(srv.URL, time.Second)
	changes, err := cli.Updates(context.Background())
	require.NoError(t, err)

	// Duplicates within one poll are collapsed, first occurrence wins.
	assert.Equal(t, []int64{101, 102, 103}, changes.Items)
	assert.Equal(t, []string{"alice", "bob"}, changes.Profiles)
}

func TestUpdates_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cli := New(srv.URL, time.Second)
	_, err := cli.Updates(context.Background())
	assert.ErrorIs(t, err, ErrFeedUnavailable)
}

func TestUpdates_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": not json`)
	}))
	defer srv.Close()

	cli := New(srv.URL, time.Second)
	_, err := cli.Updates(context.Background())
	assert.ErrorIs(t, err, ErrFeedUnavailable)
}

func TestItem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/item/8863.json", r.URL.Path)
		fmt.Fprint(w, `{
			"id": 8863,
			"type": "story",
			"by": "dhouston",
			"time": 1175714200,
			"title": "My YC app: Dropbox",
			"url": "http://www.getdropbox.com/u/2/screencast.html",
			"score": 111,
			"descendants": 71,
			"kids": [8952, 9224, 8917]
		}`)
	}))
	defer srv.Close()

	cli := New(srv.URL, time.Second)
	p, err := cli.Item(context.Background(), 8863)
	require.NoError(t, err)

	assert.Equal(t, int64(8863), p.ID)
	assert.Equal(t, "story", p.Type)
	assert.Equal(t, "dhouston", p.By)
	assert.Equal(t, "My YC app: Dropbox", p.Title)
	require.NotNil(t, p.Score)
	assert.Equal(t, int64(111), *p.Score)
	assert.Equal(t, []int64{8952, 9224, 8917}, p.Kids)
}

func TestItem_GoneRecord(t *testing.T) {
	// The source answers a literal null for records that are gone.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `null`)
	}))
	defer srv.Close()

	cli := New(srv.URL, time.Second)
	_, err := cli.Item(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestItem_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		transient bool
	}{
		{
			name:      "server error is transient",
			status:    http.StatusInternalServerError,
			transient: true,
		},
		{
			name:      "throttling is transient",
			status:    http.StatusTooManyRequests,
			transient: true,
		},
		{
			name:      "client error is permanent",
			status:    http.StatusForbidden,
			transient: false,
		},
		{
			name:      "malformed payload is permanent",
			status:    http.StatusOK,
			body:      `{"id": "not a number"}`,
			transient: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			cli := New(srv.URL, time.Second)
			_, err := cli.Item(context.Background(), 1)
			require.Error(t, err)

			assert.Equal(t, tt.transient, IsTransient(err))
			assert.Equal(t, !tt.transient, IsPermanent(err))
		})
	}
}

func TestUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/jl.json", r.URL.Path)
		fmt.Fprint(w, `{
			"id": "jl",
			"created": 1173923446,
			"karma": 2937,
			"about": "This is a test",
			"submitted": [8265435, 8168423, 8090946]
		}`)
	}))
	defer srv.Close()

	cli := New(srv.URL, time.Second)
	p, err := cli.User(context.Background(), "jl")
	require.NoError(t, err)

	assert.Equal(t, "jl", p.ID)
	require.NotNil(t, p.Karma)
	assert.Equal(t, int64(2937), *p.Karma)
	assert.Equal(t, []int64{8265435, 8168423, 8090946}, p.Submitted)
}

func TestUser_Gone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `null`)
	}))
	defer srv.Close()

	cli := New(srv.URL, time.Second)
	_, err := cli.User(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}
