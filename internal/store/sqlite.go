// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pennykit/pennychat/internal/models"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists contexts and actions in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store. The DSN is a file path to
// the database; its directory is created if missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "dsn_set", cfg.SQLiteDSN != "")

	dsn := cfg.SQLiteDSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) LoadContext(userID string) (models.Context, bool, error) {
	row := s.db.QueryRow(`SELECT state, is_active, user_name, last_message_on, message_counter,
		last_greeting_on, joke_counter, last_joke_on,
		current_expense_item, current_expense_value, current_expense_incurred_on
		FROM contexts WHERE user_id = ?`, userID)

	ctx, err := scanContext(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore LoadContext not found", "user_id", userID)
		return models.Context{}, false, nil
	}
	if err != nil {
		slog.Error("SQLiteStore LoadContext failed", "error", err, "user_id", userID)
		return models.Context{}, false, fmt.Errorf("failed to load context for %s: %w", userID, err)
	}
	return ctx, true, nil
}

func (s *SQLiteStore) SaveContext(userID string, ctx models.Context) error {
	_, err := s.db.Exec(`INSERT INTO contexts (user_id, state, is_active, user_name, last_message_on,
		message_counter, last_greeting_on, joke_counter, last_joke_on,
		current_expense_item, current_expense_value, current_expense_incurred_on, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			state = excluded.state,
			is_active = excluded.is_active,
			user_name = excluded.user_name,
			last_message_on = excluded.last_message_on,
			message_counter = excluded.message_counter,
			last_greeting_on = excluded.last_greeting_on,
			joke_counter = excluded.joke_counter,
			last_joke_on = excluded.last_joke_on,
			current_expense_item = excluded.current_expense_item,
			current_expense_value = excluded.current_expense_value,
			current_expense_incurred_on = excluded.current_expense_incurred_on,
			updated_at = CURRENT_TIMESTAMP`,
		userID, ctx.State, ctx.IsActive, ctx.UserName, ctx.LastMessageOn,
		ctx.MessageCounter, ctx.LastGreetingOn, ctx.JokeCounter, ctx.LastJokeOn,
		ctx.CurrentExpenseItem, ctx.CurrentExpenseValue, ctx.CurrentExpenseIncurredOn)
	if err != nil {
		slog.Error("SQLiteStore SaveContext failed", "error", err, "user_id", userID)
		return fmt.Errorf("failed to save context for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore SaveContext succeeded", "user_id", userID, "state", ctx.State)
	return nil
}

func (s *SQLiteStore) RecordAction(userID string, action models.Action) error {
	_, err := s.db.Exec(`INSERT INTO actions (id, user_id, type, item, value, incurred_on)
		VALUES (?, ?, ?, ?, ?, ?)`,
		action.ID, userID, string(action.Type), action.Item, action.Value, action.IncurredOn)
	if err != nil {
		slog.Error("SQLiteStore RecordAction failed", "error", err, "user_id", userID)
		return fmt.Errorf("failed to record action for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore RecordAction succeeded", "user_id", userID, "type", action.Type)
	return nil
}

func (s *SQLiteStore) ListActions(userID string) ([]models.Action, error) {
	rows, err := s.db.Query(`SELECT id, type, item, value, incurred_on
		FROM actions WHERE user_id = ? ORDER BY seq`, userID)
	if err != nil {
		slog.Error("SQLiteStore ListActions query failed", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to query actions for %s: %w", userID, err)
	}
	defer rows.Close()

	var actions []models.Action
	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			slog.Error("SQLiteStore ListActions scan failed", "error", err)
			return nil, err
		}
		actions = append(actions, action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate action rows: %w", err)
	}
	slog.Debug("SQLiteStore ListActions succeeded", "user_id", userID, "count", len(actions))
	return actions, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
