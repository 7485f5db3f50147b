package sqlstore

import (
	"errors"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	pgUniqueViolation = "23505"

	// streamVersionConstraint guards (aggregate_id, version) on Postgres.
	streamVersionConstraint = "uq_stored_events_aggregate_version"
	// SQLite reports the columns of the failed index instead of its name.
	sqliteStreamVersionColumns = "stored_events.aggregate_id, stored_events.version"
)

// isStreamVersionViolation reports whether err is a unique violation of the
// per-stream version constraint. Other unique violations, such as a reused
// event_id, are not version conflicts.
func isStreamVersionViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation && pqErr.Constraint == streamVersionConstraint
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE &&
			strings.Contains(liteErr.Error(), sqliteStreamVersionColumns)
	}
	return false
}
