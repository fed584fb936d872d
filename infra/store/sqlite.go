package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/farreladriann/slc-backend/core/model"
	"github.com/farreladriann/slc-backend/core/store"
)

// SQLiteStore persists terminals, devices and power usage in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteStore)(nil)

const schema = `CREATE TABLE IF NOT EXISTS devices (
        id TEXT PRIMARY KEY,
        threshold REAL
    );
    CREATE TABLE IF NOT EXISTS terminals (
        id TEXT PRIMARY KEY,
        device_id TEXT,
        priority INTEGER NOT NULL DEFAULT 0,
        status TEXT NOT NULL DEFAULT 'off',
        start_on INTEGER,
        finish_on INTEGER
    );
    CREATE TABLE IF NOT EXISTS power_usage (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        terminal_id TEXT NOT NULL,
        power REAL NOT NULL,
        ampere REAL,
        volt REAL,
        ts INTEGER NOT NULL
    );
    CREATE INDEX IF NOT EXISTS power_usage_terminal_ts ON power_usage (terminal_id, ts);
    CREATE INDEX IF NOT EXISTS power_usage_ts ON power_usage (ts);`

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer at a time avoids SQLITE_BUSY under concurrent ingest
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64).UTC()
	return &t
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTerminal(row scanner) (model.Terminal, error) {
	var (
		t             model.Terminal
		device        sql.NullString
		status        string
		start, finish sql.NullInt64
	)
	if err := row.Scan(&t.ID, &device, &t.Priority, &status, &start, &finish); err != nil {
		return model.Terminal{}, err
	}
	t.DeviceID = device.String
	t.Status = model.Status(status)
	t.StartOn = timePtr(start)
	t.FinishOn = timePtr(finish)
	return t, nil
}

const terminalColumns = `id, device_id, priority, status, start_on, finish_on`

// ListTerminals returns all terminals ordered by priority.
func (s *SQLiteStore) ListTerminals(ctx context.Context) ([]model.Terminal, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+terminalColumns+` FROM terminals`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Terminal
	for rows.Next() {
		t, err := scanTerminal(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	store.SortTerminals(res)
	return res, nil
}

// GetTerminal returns one terminal or store.ErrNotFound.
func (s *SQLiteStore) GetTerminal(ctx context.Context, id string) (model.Terminal, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+terminalColumns+` FROM terminals WHERE id = ?`, id)
	t, err := scanTerminal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Terminal{}, fmt.Errorf("terminal %s: %w", id, store.ErrNotFound)
	}
	return t, err
}

// UpsertTerminal inserts or replaces a terminal and registers its device.
func (s *SQLiteStore) UpsertTerminal(ctx context.Context, t model.Terminal) error {
	if t.ID == "" {
		return fmt.Errorf("terminal id is required")
	}
	if t.Status == "" {
		t.Status = model.StatusOff
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if t.DeviceID != "" {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO devices (id) VALUES (?)`, t.DeviceID); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO terminals (`+terminalColumns+`)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            device_id = excluded.device_id,
            priority = excluded.priority,
            status = excluded.status,
            start_on = excluded.start_on,
            finish_on = excluded.finish_on`,
		t.ID, sql.NullString{String: t.DeviceID, Valid: t.DeviceID != ""}, t.Priority, string(t.Status),
		nullTime(t.StartOn), nullTime(t.FinishOn)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) update(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, append(args, id)...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("terminal %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// UpdateStatus records the relay state reported by a device.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	return s.update(ctx, id, `UPDATE terminals SET status = ? WHERE id = ?`, string(status))
}

// UpdatePriority sets the priority of a terminal. Zero clears it.
func (s *SQLiteStore) UpdatePriority(ctx context.Context, id string, priority int) error {
	return s.update(ctx, id, `UPDATE terminals SET priority = ? WHERE id = ?`, priority)
}

// SetSchedule sets or clears the activation window of a terminal.
func (s *SQLiteStore) SetSchedule(ctx context.Context, id string, start, finish *time.Time) error {
	return s.update(ctx, id, `UPDATE terminals SET start_on = ?, finish_on = ? WHERE id = ?`, nullTime(start), nullTime(finish))
}

// CapacityThreshold returns the threshold of the first device, by id, that has one.
func (s *SQLiteStore) CapacityThreshold(ctx context.Context) (float64, bool, error) {
	var w float64
	err := s.db.QueryRowContext(ctx, `SELECT threshold FROM devices WHERE threshold IS NOT NULL ORDER BY id LIMIT 1`).Scan(&w)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return w, true, nil
}

// SetCapacityThreshold creates the device if needed and sets its threshold.
func (s *SQLiteStore) SetCapacityThreshold(ctx context.Context, deviceID string, watts float64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO devices (id, threshold) VALUES (?, ?)
        ON CONFLICT(id) DO UPDATE SET threshold = excluded.threshold`, deviceID, watts)
	return err
}

// LatestPowerByTerminal maps each terminal to the power of its newest reading.
func (s *SQLiteStore) LatestPowerByTerminal(ctx context.Context) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT p.terminal_id, p.power FROM power_usage p
        WHERE p.ts = (SELECT MAX(ts) FROM power_usage WHERE terminal_id = p.terminal_id)
        ORDER BY p.id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	res := map[string]float64{}
	for rows.Next() {
		var id string
		var p float64
		if err := rows.Scan(&id, &p); err != nil {
			return nil, err
		}
		res[id] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// InsertReading stores a sample. A zero timestamp means now.
func (s *SQLiteStore) InsertReading(ctx context.Context, r model.PowerReading) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO power_usage (terminal_id, power, ampere, volt, ts) VALUES (?, ?, ?, ?, ?)`,
		r.TerminalID, r.PowerW, r.Ampere, r.Volt, r.Timestamp.UnixNano())
	return err
}

// Readings returns samples in [from, to), oldest first.
func (s *SQLiteStore) Readings(ctx context.Context, from, to time.Time) ([]model.PowerReading, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT terminal_id, power, ampere, volt, ts FROM power_usage
        WHERE ts >= ? AND ts < ? ORDER BY ts, id`, from.UnixNano(), to.UnixNano())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.PowerReading
	for rows.Next() {
		var (
			r            model.PowerReading
			ampere, volt sql.NullFloat64
			ts           int64
		)
		if err := rows.Scan(&r.TerminalID, &r.PowerW, &ampere, &volt, &ts); err != nil {
			return nil, err
		}
		r.Ampere = ampere.Float64
		r.Volt = volt.Float64
		r.Timestamp = time.Unix(0, ts).UTC()
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
