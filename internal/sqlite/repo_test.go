package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/molehill/hnmirror/internal/hnmirror"
	"github.com/molehill/hnmirror/internal/migrations"
)

func testRepo(t *testing.T) Repo {
	t.Helper()

	dbx, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// One connection, or each would get its own empty in-memory db.
	dbx.SetMaxOpenConns(1)
	t.Cleanup(func() { dbx.Close() })

	require.NoError(t, migrations.Run(dbx))

	return New(dbx)
}

func int64p(v int64) *int64 { return &v }

func storyFixture(id int64) hnmirror.Item {
	ts := time.Unix(1175714200, 0).UTC()
	return hnmirror.Item{
		ID:          id,
		Kind:        hnmirror.KindStory,
		By:          "dhouston",
		Time:        &ts,
		Kids:        hnmirror.IDList{8952, 9224, 8917},
		URL:         "http://www.getdropbox.com/u/2/screencast.html",
		Title:       "My YC app: Dropbox",
		Score:       int64p(111),
		Descendants: int64p(71),
	}
}

func TestUpsertItem_RoundTrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertItem(ctx, storyFixture(8863)))

	got, err := repo.Item(ctx, 8863)
	require.NoError(t, err)

	assert.Equal(t, hnmirror.KindStory, got.Kind)
	assert.Equal(t, "dhouston", got.By)
	assert.Equal(t, "My YC app: Dropbox", got.Title)
	require.NotNil(t, got.Score)
	assert.Equal(t, int64(111), *got.Score)
	require.NotNil(t, got.Time)
	assert.True(t, got.Time.Equal(time.Unix(1175714200, 0)))
	assert.Equal(t, hnmirror.IDList{8952, 9224, 8917}, got.Kids, "display order survives storage verbatim")
	assert.Nil(t, got.Parts, "absent means absent, not empty")
	assert.False(t, got.CreatedAt.IsZero())
}

func TestUpsertItem_Idempotent(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertItem(ctx, storyFixture(1)))
	first, err := repo.Item(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, repo.UpsertItem(ctx, storyFixture(1)))
	second, err := repo.Item(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, first.Kind, second.Kind)
	assert.Equal(t, first.Title, second.Title)
	assert.Equal(t, first.Kids, second.Kids)
	assert.Equal(t, first.Score, second.Score)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt), "creation time is set once")
}

func TestUpsertItem_MergesMutableFields(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertItem(ctx, storyFixture(2)))

	updated := storyFixture(2)
	updated.Score = int64p(250)
	updated.Kids = hnmirror.IDList{1, 2, 3, 4}
	updated.Dead = true
	require.NoError(t, repo.UpsertItem(ctx, updated))

	got, err := repo.Item(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(250), *got.Score)
	assert.Equal(t, hnmirror.IDList{1, 2, 3, 4}, got.Kids)
	assert.True(t, got.Dead)
	assert.Equal(t, hnmirror.KindStory, got.Kind)
}

func TestUpsertItem_KindIsImmutable(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertItem(ctx, storyFixture(3)))

	job := storyFixture(3)
	job.Kind = hnmirror.KindJob
	err := repo.UpsertItem(ctx, job)
	assert.ErrorIs(t, err, hnmirror.ErrKindChanged)

	got, err := repo.Item(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, hnmirror.KindStory, got.Kind)
}

func TestMarkItemDeleted(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertItem(ctx, storyFixture(4)))
	require.NoError(t, repo.MarkItemDeleted(ctx, 4))

	got, err := repo.Item(ctx, 4)
	require.NoError(t, err)
	assert.True(t, got.Deleted)
	assert.Equal(t, "My YC app: Dropbox", got.Title, "tombstone keeps every other field")
	assert.Equal(t, hnmirror.IDList{8952, 9224, 8917}, got.Kids)
}

func TestMarkItemDeleted_Missing(t *testing.T) {
	repo := testRepo(t)

	err := repo.MarkItemDeleted(context.Background(), 999)
	assert.ErrorIs(t, err, hnmirror.ErrNotFound)
}

func TestItemExists(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	exists, err := repo.ItemExists(ctx, 5)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.UpsertItem(ctx, storyFixture(5)))

	exists, err = repo.ItemExists(ctx, 5)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestItem_NotFound(t *testing.T) {
	repo := testRepo(t)

	_, err := repo.Item(context.Background(), 12345)
	assert.ErrorIs(t, err, hnmirror.ErrNotFound)
}

func TestUpsertUser_RoundTrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	created := time.Unix(1173923446, 0).UTC()
	user := hnmirror.User{
		Handle:    "jl",
		Created:   &created,
		Karma:     int64p(2937),
		About:     "This is a test",
		Submitted: hnmirror.IDList{8265435, 8168423, 8090946},
	}
	require.NoError(t, repo.UpsertUser(ctx, user))

	got, err := repo.User(ctx, "jl")
	require.NoError(t, err)
	assert.Equal(t, "jl", got.Handle)
	require.NotNil(t, got.Karma)
	assert.Equal(t, int64(2937), *got.Karma)
	assert.Equal(t, hnmirror.IDList{8265435, 8168423, 8090946}, got.Submitted)
	assert.Nil(t, got.Delay)
}

func TestUpsertUser_ReplacesFields(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertUser(ctx, hnmirror.User{Handle: "alice", Karma: int64p(1)}))
	require.NoError(t, repo.UpsertUser(ctx, hnmirror.User{Handle: "alice", Karma: int64p(7), Submitted: hnmirror.IDList{2, 1}}))

	got, err := repo.User(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(7), *got.Karma)
	assert.Equal(t, hnmirror.IDList{2, 1}, got.Submitted)
}

func TestUser_HandlesAreCaseSensitive(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertUser(ctx, hnmirror.User{Handle: "Alice"}))

	_, err := repo.User(ctx, "alice")
	assert.ErrorIs(t, err, hnmirror.ErrNotFound)

	exists, err := repo.UserExists(ctx, "Alice")
	require.NoError(t, err)
	assert.True(t, exists)
}

// Runs against a file-backed database through Open, since the in-memory
// setup above pins a single connection and can never contend for the
// write lock.
func TestUpsertItem_ConcurrentDistinctIDs(t *testing.T) {
	dbx, err := Open(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dbx.Close() })
	require.NoError(t, migrations.Run(dbx))

	repo := New(dbx)
	ctx := context.Background()

	const workers, perWorker = 8, 50

	var g errgroup.Group
	for w := range workers {
		g.Go(func() error {
			for i := range perWorker {
				id := int64(w*perWorker + i + 1)
				if err := repo.UpsertItem(ctx, storyFixture(id)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var count int
	require.NoError(t, dbx.GetContext(ctx, &count, "SELECT COUNT(*) FROM items"))
	assert.Equal(t, workers*perWorker, count)
}
