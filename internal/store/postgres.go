// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/pennykit/pennychat/internal/models"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists contexts and actions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "dsn_set", cfg.PostgresDSN != "")

	if cfg.PostgresDSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run PostgreSQL migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) LoadContext(userID string) (models.Context, bool, error) {
	row := s.db.QueryRow(`SELECT state, is_active, user_name, last_message_on, message_counter,
		last_greeting_on, joke_counter, last_joke_on,
		current_expense_item, current_expense_value, current_expense_incurred_on
		FROM contexts WHERE user_id = $1`, userID)

	ctx, err := scanContext(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore LoadContext not found", "user_id", userID)
		return models.Context{}, false, nil
	}
	if err != nil {
		slog.Error("PostgresStore LoadContext failed", "error", err, "user_id", userID)
		return models.Context{}, false, fmt.Errorf("failed to load context for %s: %w", userID, err)
	}
	return ctx, true, nil
}

func (s *PostgresStore) SaveContext(userID string, ctx models.Context) error {
	_, err := s.db.Exec(`INSERT INTO contexts (user_id, state, is_active, user_name, last_message_on,
		message_counter, last_greeting_on, joke_counter, last_joke_on,
		current_expense_item, current_expense_value, current_expense_incurred_on, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			state = EXCLUDED.state,
			is_active = EXCLUDED.is_active,
			user_name = EXCLUDED.user_name,
			last_message_on = EXCLUDED.last_message_on,
			message_counter = EXCLUDED.message_counter,
			last_greeting_on = EXCLUDED.last_greeting_on,
			joke_counter = EXCLUDED.joke_counter,
			last_joke_on = EXCLUDED.last_joke_on,
			current_expense_item = EXCLUDED.current_expense_item,
			current_expense_value = EXCLUDED.current_expense_value,
			current_expense_incurred_on = EXCLUDED.current_expense_incurred_on,
			updated_at = NOW()`,
		userID, ctx.State, ctx.IsActive, ctx.UserName, ctx.LastMessageOn,
		ctx.MessageCounter, ctx.LastGreetingOn, ctx.JokeCounter, ctx.LastJokeOn,
		ctx.CurrentExpenseItem, ctx.CurrentExpenseValue, ctx.CurrentExpenseIncurredOn)
	if err != nil {
		slog.Error("PostgresStore SaveContext failed", "error", err, "user_id", userID)
		return fmt.Errorf("failed to save context for %s: %w", userID, err)
	}
	slog.Debug("PostgresStore SaveContext succeeded", "user_id", userID, "state", ctx.State)
	return nil
}

func (s *PostgresStore) RecordAction(userID string, action models.Action) error {
	_, err := s.db.Exec(`INSERT INTO actions (id, user_id, type, item, value, incurred_on)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		action.ID, userID, string(action.Type), action.Item, action.Value, action.IncurredOn)
	if err != nil {
		slog.Error("PostgresStore RecordAction failed", "error", err, "user_id", userID)
		return fmt.Errorf("failed to record action for %s: %w", userID, err)
	}
	slog.Debug("PostgresStore RecordAction succeeded", "user_id", userID, "type", action.Type)
	return nil
}

func (s *PostgresStore) ListActions(userID string) ([]models.Action, error) {
	rows, err := s.db.Query(`SELECT id, type, item, value, incurred_on
		FROM actions WHERE user_id = $1 ORDER BY seq`, userID)
	if err != nil {
		slog.Error("PostgresStore ListActions query failed", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to query actions for %s: %w", userID, err)
	}
	defer rows.Close()

	var actions []models.Action
	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			slog.Error("PostgresStore ListActions scan failed", "error", err)
			return nil, err
		}
		actions = append(actions, action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate action rows: %w", err)
	}
	slog.Debug("PostgresStore ListActions succeeded", "user_id", userID, "count", len(actions))
	return actions, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
