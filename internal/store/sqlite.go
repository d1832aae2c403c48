package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"medassist/internal/schedule"
	"medassist/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- schedule entries ----

func (s *sqliteStore) ListEntries(ctx context.Context) ([]schedule.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, time, days, period FROM entries ORDER BY time, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Entry
	for rows.Next() {
		var e schedule.Entry
		var days string
		var period sql.NullString
		if err := rows.Scan(&e.ID, &e.Name, &e.Time, &days, &period); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(days), &e.Days); err != nil {
			s.log.Warn("corrupt days column; treating entry as inert",
				logx.String("id", e.ID), logx.Err(err))
			e.Days = nil
		}
		e.Period = period.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqliteStore) CreateEntry(ctx context.Context, e schedule.Entry) (schedule.Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	days, err := json.Marshal(e.Days)
	if err != nil {
		return schedule.Entry{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entries(id, name, time, days, period, created_at) VALUES(?,?,?,?,?,?)`,
		e.ID, e.Name, e.Time, string(days), nullStr(e.Period), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return schedule.Entry{}, err
	}
	return e, nil
}

func (s *sqliteStore) UpdateEntry(ctx context.Context, e schedule.Entry) error {
	days, err := json.Marshal(e.Days)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE entries SET name = ?, time = ?, days = ? WHERE id = ?`,
		e.Name, e.Time, string(days), e.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *sqliteStore) DeleteEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ---- confirmation records ----

// RecordSent inserts a "sent" record for the (entry, time, date) slot.
// If the slot already has a record, the existing one is returned with
// created=false; that suppresses push re-delivery for the slot.
func (s *sqliteStore) RecordSent(ctx context.Context, c Confirmation) (Confirmation, bool, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = StatusSent
	}
	if c.SentAt.IsZero() {
		c.SentAt = time.Now()
	}
	c.UpdatedAt = c.SentAt

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO confirmations(id, entry_id, name, scheduled_time, date, status, snooze_until, sent_at, updated_at)
		 VALUES(?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(entry_id, scheduled_time, date) DO NOTHING`,
		c.ID, c.EntryID, c.Name, c.ScheduledTime, c.Date, c.Status, nullStr(c.SnoozeUntil),
		c.SentAt.UTC().Format(time.RFC3339Nano), c.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return Confirmation{}, false, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return c, true, nil
	}

	existing, err := s.getConfirmationBySlot(ctx, c.EntryID, c.ScheduledTime, c.Date)
	if err != nil {
		return Confirmation{}, false, err
	}
	return existing, false, nil
}

func (s *sqliteStore) GetConfirmation(ctx context.Context, id string) (Confirmation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, entry_id, name, scheduled_time, date, status, snooze_until, sent_at, updated_at
		 FROM confirmations WHERE id = ?`, id)
	return scanConfirmation(row)
}

func (s *sqliteStore) getConfirmationBySlot(ctx context.Context, entryID, at, date string) (Confirmation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, entry_id, name, scheduled_time, date, status, snooze_until, sent_at, updated_at
		 FROM confirmations WHERE entry_id = ? AND scheduled_time = ? AND date = ?`,
		entryID, at, date)
	return scanConfirmation(row)
}

func (s *sqliteStore) SetConfirmationStatus(ctx context.Context, id, status, snoozeUntil string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE confirmations SET status = ?, snooze_until = ?, updated_at = ? WHERE id = ?`,
		status, nullStr(snoozeUntil), time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *sqliteStore) ListSnoozed(ctx context.Context, date string) ([]Confirmation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entry_id, name, scheduled_time, date, status, snooze_until, sent_at, updated_at
		 FROM confirmations WHERE date = ? AND status = ?`, date, StatusSnoozed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Confirmation
	for rows.Next() {
		c, err := scanConfirmation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqliteStore) PruneConfirmations(ctx context.Context, beforeDate string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM confirmations WHERE date < ?`, beforeDate)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ---- push link ----

func (s *sqliteStore) SavePushLink(ctx context.Context, l PushLink) error {
	if l.LinkedAt.IsZero() {
		l.LinkedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO push_link(id, chat_id, linked_at) VALUES(1,?,?)
		 ON CONFLICT(id) DO UPDATE SET chat_id = excluded.chat_id, linked_at = excluded.linked_at`,
		l.ChatID, l.LinkedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *sqliteStore) GetPushLink(ctx context.Context) (PushLink, bool, error) {
	var l PushLink
	var at string
	err := s.db.QueryRowContext(ctx, `SELECT chat_id, linked_at FROM push_link WHERE id = 1`).
		Scan(&l.ChatID, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return PushLink{}, false, nil
	}
	if err != nil {
		return PushLink{}, false, err
	}
	l.LinkedAt, _ = time.Parse(time.RFC3339Nano, at)
	return l, true, nil
}

// ---- helpers ----

type rowScanner interface{ Scan(dest ...any) error }

func scanConfirmation(row rowScanner) (Confirmation, error) {
	var c Confirmation
	var snooze sql.NullString
	var sentAt, updatedAt string
	err := row.Scan(&c.ID, &c.EntryID, &c.Name, &c.ScheduledTime, &c.Date,
		&c.Status, &snooze, &sentAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Confirmation{}, ErrNotFound
	}
	if err != nil {
		return Confirmation{}, err
	}
	c.SnoozeUntil = snooze.String
	c.SentAt, _ = time.Parse(time.RFC3339Nano, sentAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return c, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
