// Package bot wires the per-turn pipeline: load the persisted context,
// query the NLU provider, normalize the result, run the dialogue
// engine, then persist the updated context and any committed actions.
//
// Persistence of one user's turns must be serialized by the caller; the
// pipeline assumes at most one in-flight turn per user.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pennykit/pennychat/internal/dialogue"
	"github.com/pennykit/pennychat/internal/messages"
	"github.com/pennykit/pennychat/internal/models"
	"github.com/pennykit/pennychat/internal/nlu"
	"github.com/pennykit/pennychat/internal/store"
)

// Bot runs complete conversational turns for users.
type Bot struct {
	store    store.Store
	provider nlu.Provider
	engine   *dialogue.Engine
	catalog  *messages.Catalog
}

// New creates a bot over the given collaborators.
func New(st store.Store, provider nlu.Provider, engine *dialogue.Engine, catalog *messages.Catalog) *Bot {
	return &Bot{store: st, provider: provider, engine: engine, catalog: catalog}
}

// Turn is one inbound utterance for a user. Exactly one of Text and
// Voice should be set; Voice must already be MP3-encoded.
type Turn struct {
	UserID    string
	Text      string
	Voice     []byte
	Timestamp time.Time
}

// HandleTurn processes one turn end to end and returns the reply
// messages and committed actions. The updated context and the actions
// are persisted before it returns.
func (b *Bot) HandleTurn(ctx context.Context, turn Turn) (models.TurnResult, error) {
	if turn.UserID == "" {
		return models.TurnResult{}, models.ErrEmptyUserID
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	session := models.Session{
		UserID:    turn.UserID,
		Text:      turn.Text,
		Voice:     turn.Voice,
		Timestamp: turn.Timestamp,
	}
	if err := session.Validate(); err != nil {
		return models.TurnResult{}, err
	}

	userCtx, found, err := b.store.LoadContext(turn.UserID)
	if err != nil {
		return models.TurnResult{}, fmt.Errorf("failed to load context: %w", err)
	}
	if !found {
		slog.Debug("Bot starting fresh context", "user_id", turn.UserID)
		userCtx = models.DefaultContext()
	}
	session.Context = userCtx

	// Accounts pending deletion never reach the dialogue engine.
	if !userCtx.IsActive {
		slog.Info("Bot refusing turn for inactive account", "user_id", turn.UserID)
		return models.TurnResult{
			Context:  userCtx,
			Messages: []string{b.catalog.Collection("accountIsInactive").Any(nil)},
		}, nil
	}

	raw, err := b.provider.Query(ctx, nlu.Request{
		Text:      turn.Text,
		Voice:     turn.Voice,
		Timestamp: turn.Timestamp,
	})
	if err != nil {
		return models.TurnResult{}, fmt.Errorf("nlu query failed: %w", err)
	}

	facts := nlu.Normalize(raw)
	result, err := b.engine.Process(session, facts)
	if err != nil {
		return models.TurnResult{}, fmt.Errorf("dialogue processing failed: %w", err)
	}

	if err := b.store.SaveContext(turn.UserID, result.Context); err != nil {
		return models.TurnResult{}, fmt.Errorf("failed to save context: %w", err)
	}
	for _, action := range result.Actions {
		if err := b.store.RecordAction(turn.UserID, action); err != nil {
			return models.TurnResult{}, fmt.Errorf("failed to record action: %w", err)
		}
	}

	slog.Info("Bot turn completed", "user_id", turn.UserID, "state", result.Context.State,
		"messages", len(result.Messages), "actions", len(result.Actions))
	return result, nil
}

// Context returns the persisted context for a user, or a fresh default
// if none exists yet.
func (b *Bot) Context(userID string) (models.Context, error) {
	userCtx, found, err := b.store.LoadContext(userID)
	if err != nil {
		return models.Context{}, err
	}
	if !found {
		return models.DefaultContext(), nil
	}
	return userCtx, nil
}

// Actions returns all recorded actions for a user.
func (b *Bot) Actions(userID string) ([]models.Action, error) {
	return b.store.ListActions(userID)
}
