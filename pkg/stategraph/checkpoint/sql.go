package checkpoint

import (
	"strings"
	"time"
)

// timeLayout is the timestamp encoding shared by the SQL-backed stores.
const timeLayout = time.RFC3339Nano

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanCheckpoint reads one checkpoint row in the column order used by
// the SQL-backed stores: thread_id, step, timestamp, state, next_node,
// status, pause_phase, error.
func scanCheckpoint(row rowScanner) (*Checkpoint, error) {
	var (
		cp        Checkpoint
		timestamp string
		state     []byte
		status    string
	)
	if err := row.Scan(&cp.ThreadID, &cp.Step, &timestamp, &state, &cp.NextNode, &status, &cp.PausePhase, &cp.Error); err != nil {
		return nil, err
	}
	cp.Timestamp, _ = time.Parse(timeLayout, timestamp)
	cp.State = state
	cp.Status = Status(status)
	return &cp, nil
}

// isConstraintViolation reports whether a driver error is a primary
// key collision. Neither driver exposes a portable error code for
// this, so match on the message (SQLite: "UNIQUE constraint failed",
// MySQL: "Duplicate entry").
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") ||
		strings.Contains(msg, "constraint failed") ||
		strings.Contains(msg, "Duplicate entry")
}
