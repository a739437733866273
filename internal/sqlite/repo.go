// Package sqlite implements the storage gateway over a sqlite database.
//
// Upserts run inside a write transaction per record, so a reader between
// batch records always sees either the full previous or the full next
// version of an entity.
package sqlite

import (
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/molehill/hnmirror/internal/hnmirror"
)

// Ensure Repo implements the Repository interface
var _ hnmirror.Repository = (*Repo)(nil)

// Open connects to the database at path with the pragmas the repo relies
// on: WAL so readers never block the writer, immediate write transactions,
// and a busy timeout so concurrent upserts queue on the write lock instead
// of failing with SQLITE_BUSY.
func Open(path string) (*sqlx.DB, error) {
	return sqlx.Open("sqlite", path+"?_txlock=immediate&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
}

type Repo struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) Repo {
	return Repo{db: db}
}
