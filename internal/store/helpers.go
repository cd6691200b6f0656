package store

import (
	"database/sql"

	"github.com/pennykit/pennychat/internal/models"
)

// rowScanner abstracts over *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanContext scans a context row in the column order used by both SQL
// backends.
func scanContext(row rowScanner) (models.Context, error) {
	var ctx models.Context
	var item sql.NullString
	var value sql.NullFloat64
	var incurredOn sql.NullTime

	err := row.Scan(
		&ctx.State, &ctx.IsActive, &ctx.UserName, &ctx.LastMessageOn, &ctx.MessageCounter,
		&ctx.LastGreetingOn, &ctx.JokeCounter, &ctx.LastJokeOn,
		&item, &value, &incurredOn,
	)
	if err != nil {
		return models.Context{}, err
	}

	if item.Valid {
		ctx.CurrentExpenseItem = &item.String
	}
	if value.Valid {
		ctx.CurrentExpenseValue = &value.Float64
	}
	if incurredOn.Valid {
		ctx.CurrentExpenseIncurredOn = &incurredOn.Time
	}
	return ctx, nil
}

// scanAction scans an action row in the column order used by both SQL
// backends.
func scanAction(row rowScanner) (models.Action, error) {
	var action models.Action
	var actionType string
	err := row.Scan(&action.ID, &actionType, &action.Item, &action.Value, &action.IncurredOn)
	if err != nil {
		return models.Action{}, err
	}
	action.Type = models.ActionType(actionType)
	return action, nil
}
