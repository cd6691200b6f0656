// Package models defines the core data structures for PennyChat.
//
// It includes the persisted conversation context, the per-turn ephemeral
// facts derived from an NLU result, and the actions the dialogue engine
// emits. These types are shared across modules.
package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentiment classifies the overall tone of an utterance.
type Sentiment string

const (
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
	SentimentPositive Sentiment = "positive"
)

// Grain is the granularity of a date/time value extracted by the NLU
// provider.
type Grain string

const (
	GrainDay   Grain = "day"
	GrainWeek  Grain = "week"
	GrainMonth Grain = "month"
)

// Conversation state names known to the dialogue engine. Context.State
// always holds one of these; anything else is treated as StateInit.
const (
	StateInit                 = "init"
	StateMain                 = "main"
	StateDeleteAccount        = "delete_account"
	StateAddExpense           = "add_expense"
	StateSpecifyExpenseItem   = "specify_expense_item"
	StateSpecifyExpenseMoment = "specify_expense_moment"
	StateSpecifyExpenseValue  = "specify_expense_value"
)

// Validation constants for input validation
const (
	// MaxUtteranceLength is the maximum number of characters forwarded to
	// the NLU provider per turn. Longer utterances are truncated.
	MaxUtteranceLength = 280
)

// Error variables for better error handling and testability
var (
	ErrNoInput       = errors.New("either text or voice must be given")
	ErrEmptyUserID   = errors.New("user id cannot be empty")
	ErrInactiveUser  = errors.New("account is pending deletion")
	ErrRedirectCycle = errors.New("state rules redirect in a cycle")
)

// Context is the persisted conversation state for one end user. It is
// owned by the store; the dialogue engine mutates a copy of it between
// load and save.
type Context struct {
	State          string    `json:"state"`
	IsActive       bool      `json:"is_active"`
	UserName       string    `json:"user_name"`
	LastMessageOn  time.Time `json:"last_message_on"`
	MessageCounter int       `json:"message_counter"`
	LastGreetingOn time.Time `json:"last_greeting_on"`
	JokeCounter    int       `json:"joke_counter"`
	LastJokeOn     time.Time `json:"last_joke_on"`

	// Draft fields of an expense record under construction. All three are
	// nil outside of an active draft; once all three are set the draft is
	// committed and cleared within the same turn.
	CurrentExpenseItem       *string    `json:"current_expense_item,omitempty"`
	CurrentExpenseValue      *float64   `json:"current_expense_value,omitempty"`
	CurrentExpenseIncurredOn *time.Time `json:"current_expense_incurred_on,omitempty"`
}

// DefaultContext returns a freshly initialized context for a new user.
// UserName starts empty, which selects the generic greeting until a name
// is learned.
func DefaultContext() Context {
	return Context{
		State:          StateInit,
		IsActive:       true,
		UserName:       "",
		LastMessageOn:  time.Unix(0, 0).UTC(),
		MessageCounter: 0,
		LastGreetingOn: time.Unix(0, 0).UTC(),
		JokeCounter:    0,
		LastJokeOn:     time.Unix(0, 0).UTC(),
	}
}

// Clone returns a copy of the context that shares no pointers with the
// original, so the engine can mutate it freely without touching the
// caller's value.
func (c Context) Clone() Context {
	out := c
	if c.CurrentExpenseItem != nil {
		v := *c.CurrentExpenseItem
		out.CurrentExpenseItem = &v
	}
	if c.CurrentExpenseValue != nil {
		v := *c.CurrentExpenseValue
		out.CurrentExpenseValue = &v
	}
	if c.CurrentExpenseIncurredOn != nil {
		v := *c.CurrentExpenseIncurredOn
		out.CurrentExpenseIncurredOn = &v
	}
	return out
}

// HasDraft reports whether any expense draft field is set.
func (c Context) HasDraft() bool {
	return c.CurrentExpenseItem != nil || c.CurrentExpenseValue != nil || c.CurrentExpenseIncurredOn != nil
}

// Money is a monetary amount together with the text span it was
// extracted from.
type Money struct {
	Body  string  `json:"body"`
	Value float64 `json:"value"`
}

// Moment is a single point in time with a granularity.
type Moment struct {
	Grain Grain     `json:"grain"`
	Value time.Time `json:"value"`
}

// Interval is a time range with a granularity.
type Interval struct {
	Grain Grain     `json:"grain"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Facts holds the ephemeral per-turn data derived from one NLU result.
// Facts are computed fresh each turn and never persisted.
type Facts struct {
	Intent string

	Greetings bool
	Bye       bool
	Thanks    bool

	Sentiment Sentiment

	// Item is the free-text name of a purchasable thing; empty means no
	// item entity was extracted this turn.
	Item     string
	Money    *Money
	Moment   *Moment
	Interval *Interval
}

// NewFacts returns an empty set of facts with sentiment defaulting to
// neutral.
func NewFacts() Facts {
	return Facts{Sentiment: SentimentNeutral}
}

// ActionType identifies the kind of durable side effect an action
// describes.
type ActionType string

const (
	// ActionTypeAddExpense records a completed expense.
	ActionTypeAddExpense ActionType = "add_expense"
)

// Action is an immutable record describing a committed side effect. The
// engine emits actions; persisting them is the caller's responsibility.
type Action struct {
	ID         string     `json:"id"`
	Type       ActionType `json:"type"`
	Item       string     `json:"item"`
	Value      float64    `json:"value"`
	IncurredOn time.Time  `json:"incurred_on"`
}

// NewAddExpenseAction builds an add-expense action with a fresh ID.
func NewAddExpenseAction(item string, value float64, incurredOn time.Time) Action {
	return Action{
		ID:         uuid.NewString(),
		Type:       ActionTypeAddExpense,
		Item:       item,
		Value:      value,
		IncurredOn: incurredOn,
	}
}

// Session is the per-turn input bundle handed to the dialogue engine.
// The engine treats it as read-only except for Context, which it clones
// before mutating.
type Session struct {
	UserID    string
	Text      string
	Voice     []byte
	Timestamp time.Time
	Context   Context
}

// Validate checks that the session carries a processable input.
func (s *Session) Validate() error {
	if s.Text == "" && len(s.Voice) == 0 {
		return ErrNoInput
	}
	return nil
}

// TurnResult is the output of processing one session: the updated
// context, the user-facing reply messages in emission order, and the
// committed actions.
type TurnResult struct {
	Context  Context  `json:"context"`
	Messages []string `json:"messages"`
	Actions  []Action `json:"actions"`
}
