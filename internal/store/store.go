package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/model"
	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/roster"
)

// Store manages durable state via SQLite: the persisted portal session
// and the imported room roster. Every write replaces its rows wholesale
// inside one transaction, so a crash mid-write never exposes a partial
// state to a concurrent reader.
type Store struct {
	DB      *sql.DB
	DataDir string
}

// New opens (or creates) the database in the given data directory.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "freeclassrooms.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// Sessions have a single writer; one connection keeps it that way.
	db.SetMaxOpenConns(1)

	s := &Store{DB: db, DataDir: dataDir}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			account TEXT PRIMARY KEY,
			cookies TEXT NOT NULL,
			validated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS rooms (
			position INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			building TEXT NOT NULL,
			area TEXT,
			room_number TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// SaveSession overwrites the stored session for the state's account.
func (s *Store) SaveSession(state *model.SessionState) error {
	cookies, err := json.Marshal(state.Cookies)
	if err != nil {
		return fmt.Errorf("marshaling cookies: %w", err)
	}
	_, err = s.DB.Exec(
		"INSERT OR REPLACE INTO sessions (account, cookies, validated_at) VALUES (?, ?, ?)",
		state.Account, string(cookies), state.LastValidatedAt,
	)
	return err
}

// LoadSession reads the stored session for an account; (nil, nil) when
// none exists.
func (s *Store) LoadSession(account string) (*model.SessionState, error) {
	var cookies, validatedAt string
	err := s.DB.QueryRow(
		"SELECT cookies, validated_at FROM sessions WHERE account = ?", account,
	).Scan(&cookies, &validatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &model.SessionState{Account: account, LastValidatedAt: validatedAt}
	if err := json.Unmarshal([]byte(cookies), &state.Cookies); err != nil {
		return nil, fmt.Errorf("parsing stored cookies: %w", err)
	}
	return state, nil
}

// SaveRoster replaces the whole room roster, classifying each name and
// preserving the given order.
func (s *Store) SaveRoster(names []string) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM rooms"); err != nil {
		return err
	}

	stmt, err := tx.Prepare("INSERT INTO rooms (position, name, building, area, room_number) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, name := range names {
		id := roster.Classify(name)
		if _, err := stmt.Exec(i, name, id.Building, id.Area, id.RoomNumber); err != nil {
			return fmt.Errorf("inserting room %q: %w", name, err)
		}
	}

	return tx.Commit()
}

// LoadRosterNames returns the stored roster in its original order, or
// nil when no roster has been imported.
func (s *Store) LoadRosterNames() ([]string, error) {
	rows, err := s.DB.Query("SELECT name FROM rooms ORDER BY position")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// RoomCount returns the number of stored roster rooms.
func (s *Store) RoomCount() int {
	var n int
	s.DB.QueryRow("SELECT COUNT(*) FROM rooms").Scan(&n)
	return n
}

// SessionValidatedAt reports when the account's stored session last
// passed the validity probe; empty when no session is stored.
func (s *Store) SessionValidatedAt(account string) string {
	var at string
	s.DB.QueryRow("SELECT validated_at FROM sessions WHERE account = ?", account).Scan(&at)
	return at
}
