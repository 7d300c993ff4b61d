package userlog

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/logging"
)

var (
	//go:embed sql/schema.sql
	schemaSQL string
	//go:embed sql/upgrade.sql
	upgradeSQL string
	//go:embed sql/upgrade_copy.sql
	upgradeCopySQL string
)

const csvTimeLayout = "2006-01-02 15:04:05"

// User is one row of the users table.
type User struct {
	Transport     string    `json:"transport"`
	ID            int64     `json:"user_id"`
	Username      string    `json:"username"`
	Name          string    `json:"name"`
	FirstSeen     time.Time `json:"first_seen"`
	LastSeen      time.Time `json:"last_seen"`
	TotalCommands int       `json:"total_commands"`
}

// Activity is one logged command.
type Activity struct {
	Transport string    `json:"transport"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Command   string    `json:"command"`
	Timestamp time.Time `json:"timestamp"`
}

// CommandCount is a command with its usage count.
type CommandCount struct {
	Command string `json:"command"`
	Count   int    `json:"count"`
}

// Store records bot usage and per-user session data.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore wraps an open database. Call Migrate before first use.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logging.Component(logger, "userlog"), now: time.Now}
}

// Key returns the identity of u.
func (u User) Key() Key { return Key{Transport: u.Transport, ID: u.ID} }

// Migrate creates the usage tables if they do not exist. Tables from the
// single-transport layout are rebuilt and their rows kept as Telegram users.
func (s *Store) Migrate(ctx context.Context) error {
	legacy, err := s.legacyLayout(ctx)
	if err != nil {
		return err
	}
	if !legacy {
		if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("failed to create userlog schema: %w", err)
		}
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range []string{upgradeSQL, schemaSQL, upgradeCopySQL} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to upgrade userlog schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to upgrade userlog schema: %w", err)
	}
	s.logger.Info("userlog schema upgraded", "transport", DefaultTransport)
	return nil
}

// legacyLayout reports whether a users table exists without a transport column.
func (s *Store) legacyLayout(ctx context.Context) (bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_table_info('users')`)
	if err != nil {
		return false, fmt.Errorf("failed to inspect users table: %w", err)
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return false, fmt.Errorf("failed to inspect users table: %w", err)
		}
		if col == "transport" {
			return false, nil
		}
		found = true
	}
	return found, rows.Err()
}

// LogActivity upserts the user and appends command to the activity log.
func (s *Store) LogActivity(ctx context.Context, key Key, username, name, command string) error {
	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO users (transport, user_id, username, name, first_seen, last_seen, total_commands)
VALUES (?, ?, ?, ?, ?, ?, 1)
ON CONFLICT(transport, user_id) DO UPDATE SET
    username = excluded.username,
    name = excluded.name,
    last_seen = excluded.last_seen,
    total_commands = total_commands + 1`,
		key.Transport, key.ID, username, name, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", key, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO activity_log (transport, user_id, username, name, command, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		key.Transport, key.ID, username, name, command, now)
	if err != nil {
		return fmt.Errorf("failed to log activity: %w", err)
	}
	return tx.Commit()
}

// TotalUsers counts known users.
func (s *Store) TotalUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

const userColumns = `SELECT transport, user_id, COALESCE(username, ''), COALESCE(name, ''), first_seen, last_seen, total_commands FROM users`

// User returns one user, or nil when unknown.
func (s *Store) User(ctx context.Context, key Key) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, userColumns+` WHERE transport = ? AND user_id = ?`, key.Transport, key.ID).
		Scan(&u.Transport, &u.ID, &u.Username, &u.Name, &u.FirstSeen, &u.LastSeen, &u.TotalCommands)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", key, err)
	}
	return &u, nil
}

// Users lists all users, most recently seen first.
func (s *Store) Users(ctx context.Context) ([]User, error) {
	return s.queryUsers(ctx, userColumns+` ORDER BY last_seen DESC`)
}

// MostActive lists the users with the most commands.
func (s *Store) MostActive(ctx context.Context, limit int) ([]User, error) {
	return s.queryUsers(ctx, userColumns+` ORDER BY total_commands DESC LIMIT ?`, limit)
}

func (s *Store) queryUsers(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.Transport, &u.ID, &u.Username, &u.Name, &u.FirstSeen, &u.LastSeen, &u.TotalCommands); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

const activityColumns = `SELECT transport, user_id, COALESCE(username, ''), COALESCE(name, ''), command, timestamp FROM activity_log`

// UserActivity returns the latest commands of one user.
func (s *Store) UserActivity(ctx context.Context, key Key, limit int) ([]Activity, error) {
	return s.queryActivity(ctx, activityColumns+` WHERE transport = ? AND user_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, key.Transport, key.ID, limit)
}

// RecentActivity returns the latest commands across all users.
func (s *Store) RecentActivity(ctx context.Context, limit int) ([]Activity, error) {
	return s.queryActivity(ctx, activityColumns+` ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
}

func (s *Store) queryActivity(ctx context.Context, query string, args ...any) ([]Activity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.Transport, &a.UserID, &a.Username, &a.Name, &a.Command, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CommandStats counts usage per command, most used first.
func (s *Store) CommandStats(ctx context.Context) ([]CommandCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT command, COUNT(*) AS n FROM activity_log GROUP BY command ORDER BY n DESC, command`)
	if err != nil {
		return nil, fmt.Errorf("failed to query command stats: %w", err)
	}
	defer rows.Close()

	var out []CommandCount
	for rows.Next() {
		var c CommandCount
		if err := rows.Scan(&c.Command, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan command stats: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ExportCSV writes every user ordered by id.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer) error {
	users, err := s.queryUsers(ctx, userColumns+` ORDER BY transport, user_id`)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Transport", "User ID", "Username", "Name", "First Seen", "Last Seen", "Total Commands"}); err != nil {
		return err
	}
	for _, u := range users {
		rec := []string{
			u.Transport, strconv.FormatInt(u.ID, 10), u.Username, u.Name,
			u.FirstSeen.Format(csvTimeLayout), u.LastSeen.Format(csvTimeLayout),
			strconv.Itoa(u.TotalCommands),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	s.logger.Info("users exported", "count", len(users))
	return nil
}

// SaveSession stores data as JSON for key, replacing earlier data.
func (s *Store) SaveSession(ctx context.Context, key Key, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO user_sessions (transport, user_id, data, updated_at) VALUES (?, ?, ?, ?)`,
		key.Transport, key.ID, string(raw), s.now())
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", key, err)
	}
	return nil
}

// LoadSession decodes the stored session of key into dst. It reports
// false when nothing is stored.
func (s *Store) LoadSession(ctx context.Context, key Key, dst any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM user_sessions WHERE transport = ? AND user_id = ?`, key.Transport, key.ID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load session %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("failed to decode session %s: %w", key, err)
	}
	return true, nil
}

// ClearSession removes the stored session of key.
func (s *Store) ClearSession(ctx context.Context, key Key) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE transport = ? AND user_id = ?`, key.Transport, key.ID); err != nil {
		return fmt.Errorf("failed to clear session %s: %w", key, err)
	}
	return nil
}
