package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// MySQLStore persists checkpoints to MySQL/MariaDB.
//
// Designed for deployments where paused runs must survive process
// restarts and be resumable from other hosts. Uses connection pooling;
// the schema is created on first use.
//
// The DSN format is the go-sql-driver one, e.g.
//
//	user:password@tcp(localhost:3306)/workflows?parseTime=true
//
// Never hardcode credentials; read the DSN from the environment.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore creates a MySQL-backed checkpoint store and verifies
// the connection.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	store := &MySQLStore{db: db}
	if err := store.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return store, nil
}

func (m *MySQLStore) createTables(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS checkpoints (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			thread_id VARCHAR(255) NOT NULL,
			step INT NOT NULL,
			timestamp VARCHAR(64) NOT NULL,
			state JSON NOT NULL,
			next_node VARCHAR(255) NOT NULL,
			status VARCHAR(16) NOT NULL,
			pause_phase VARCHAR(16) NOT NULL DEFAULT '',
			error TEXT,
			INDEX idx_thread (thread_id),
			UNIQUE KEY unique_thread_step (thread_id, step)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`)
	if err != nil {
		return fmt.Errorf("create checkpoints table: %w", err)
	}
	return nil
}

// Put implements Store.
func (m *MySQLStore) Put(ctx context.Context, cp *Checkpoint) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, step, timestamp, state, next_node, status, pause_phase, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, cp.ThreadID, cp.Step, cp.Timestamp.Format(timeLayout), []byte(cp.State), cp.NextNode, string(cp.Status), cp.PausePhase, cp.Error)

	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateStep
		}
		return fmt.Errorf("put checkpoint: %w", err)
	}
	return nil
}

// Update implements Store.
func (m *MySQLStore) Update(ctx context.Context, cp *Checkpoint) error {
	res, err := m.db.ExecContext(ctx, `
		UPDATE checkpoints
		SET timestamp = ?, state = ?, next_node = ?, status = ?, pause_phase = ?, error = ?
		WHERE thread_id = ? AND step = ?
	`, cp.Timestamp.Format(timeLayout), []byte(cp.State), cp.NextNode, string(cp.Status), cp.PausePhase, cp.Error, cp.ThreadID, cp.Step)
	if err != nil {
		return fmt.Errorf("update checkpoint: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update checkpoint: %w", err)
	}
	if affected == 0 {
		// Distinguish "no such row" from "row identical to update".
		var exists int
		check := m.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM checkpoints WHERE thread_id = ? AND step = ?
		`, cp.ThreadID, cp.Step)
		if err := check.Scan(&exists); err != nil {
			return fmt.Errorf("update checkpoint: %w", err)
		}
		if exists == 0 {
			return ErrNotFound
		}
	}
	return nil
}

// Latest implements Store.
func (m *MySQLStore) Latest(ctx context.Context, threadID string) (*Checkpoint, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT thread_id, step, timestamp, state, next_node, status, pause_phase, COALESCE(error, '')
		FROM checkpoints
		WHERE thread_id = ?
		ORDER BY step DESC
		LIMIT 1
	`, threadID)

	cp, err := scanCheckpoint(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load latest checkpoint: %w", err)
	}
	return cp, nil
}

// History implements Store.
func (m *MySQLStore) History(ctx context.Context, threadID string) ([]*Checkpoint, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT thread_id, step, timestamp, state, next_node, status, pause_phase, COALESCE(error, '')
		FROM checkpoints
		WHERE thread_id = ?
		ORDER BY step ASC
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	history := make([]*Checkpoint, 0)
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		history = append(history, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return history, nil
}

// DeleteThread implements Store.
func (m *MySQLStore) DeleteThread(ctx context.Context, threadID string) error {
	if _, err := m.db.ExecContext(ctx, `
		DELETE FROM checkpoints WHERE thread_id = ?
	`, threadID); err != nil {
		return fmt.Errorf("delete thread checkpoints: %w", err)
	}
	return nil
}

// Close implements Store.
func (m *MySQLStore) Close() error {
	return m.db.Close()
}
