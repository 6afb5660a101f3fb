package db

import (
	"database/sql"
	"strings"

	"github.com/teranos/orx/errors"
)

// ErrDatabaseClosed marks run-log and migration errors caused by a handle
// that was closed before the call, such as a run recorded after the CLI
// command returned.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed reports whether err comes from a closed database or
// connection. database/sql does not export its closed-handle error, so its
// message is matched as well.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.IsAny(err, ErrDatabaseClosed, sql.ErrConnDone) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}

// wrapClosed wraps err with op and marks it with ErrDatabaseClosed when it
// comes from a closed handle. A nil err stays nil.
func wrapClosed(err error, op string) error {
	if err == nil {
		return nil
	}
	wrapped := errors.Wrap(err, op)
	if IsDatabaseClosed(err) {
		return errors.Mark(wrapped, ErrDatabaseClosed)
	}
	return wrapped
}
