// Package dialogue implements the conversation state machine at the
// heart of PennyChat.
//
// Each state owns an ordered list of named rules. Processing a turn
// starts from the persisted state and evaluates that state's rules in
// order; a rule either does not apply, redirects to another state for
// immediate re-evaluation within the same turn, or settles the turn in a
// named state. Redirect chains are bounded by the number of known
// states; exceeding the bound is a configuration defect, not a runtime
// condition.
//
// The engine is a pure, synchronous computation over one turn's inputs.
// It performs no I/O; querying the NLU provider happens before it runs
// and persistence happens after it returns.
package dialogue

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pennykit/pennychat/internal/messages"
	"github.com/pennykit/pennychat/internal/models"
)

// Intent names the engine reacts to.
const (
	IntentTellJoke         = "tell_joke"
	IntentWhoAreYou        = "who_are_you"
	IntentDeleteAccount    = "delete_account"
	IntentAddExpense       = "add_expense"
	IntentFeedbackPositive = "feedback_positive"
	IntentFeedbackNegative = "feedback_negative"
)

const (
	// deleteAccountTimeout bounds how long a deletion confirmation stays
	// pending before the conversation falls back to main.
	deleteAccountTimeout = 3 * time.Minute
	// expenseDateFormat renders committed expense dates in long form.
	expenseDateFormat = "January 02, 2006"
)

// Engine evaluates the per-state rule tables over one turn at a time.
type Engine struct {
	catalog *messages.Catalog
	logger  *slog.Logger
	states  map[string][]rule
}

// New creates an engine over the given reply catalog. A nil logger
// defaults to slog.Default(); tests typically inject a discard logger.
func New(catalog *messages.Catalog, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{catalog: catalog, logger: logger}
	e.states = map[string][]rule{
		models.StateInit:                 initRules(),
		models.StateMain:                 mainRules(),
		models.StateDeleteAccount:        deleteAccountRules(),
		models.StateAddExpense:           addExpenseRules(),
		models.StateSpecifyExpenseItem:   specifyExpenseItemRules(),
		models.StateSpecifyExpenseMoment: specifyExpenseMomentRules(),
		models.StateSpecifyExpenseValue:  specifyExpenseValueRules(),
	}
	return e
}

// Process runs one turn: it clones the session's context, evaluates
// rules starting from the persisted state, and returns the updated
// context together with the accumulated messages and actions. The
// session itself is never mutated.
func (e *Engine) Process(session models.Session, facts models.Facts) (models.TurnResult, error) {
	t := &turn{
		catalog: e.catalog,
		session: &session,
		facts:   facts,
		ctx:     session.Context.Clone(),
	}

	e.logger.Debug("dialogue turn starting", "state", t.ctx.State, "intent", facts.Intent)
	settled, err := e.run(t, t.ctx.State)
	if err != nil {
		return models.TurnResult{}, err
	}
	e.logger.Debug("dialogue turn settled", "state", settled, "messages", len(t.messages), "actions", len(t.actions))

	t.ctx.State = settled
	t.ctx.MessageCounter++
	t.ctx.LastMessageOn = session.Timestamp

	return models.TurnResult{
		Context:  t.ctx,
		Messages: t.messages,
		Actions:  t.actions,
	}, nil
}

// run drives rule evaluation until a rule settles. Each loop iteration
// handles one state; redirect chains longer than the number of known
// states can only mean the tables form a cycle.
func (e *Engine) run(t *turn, state string) (string, error) {
	for depth := 0; depth <= len(e.states); depth++ {
		rules, known := e.states[state]
		if !known {
			e.logger.Warn("dialogue state not recognized, recovering via init", "state", state)
			state = models.StateInit
			rules = e.states[models.StateInit]
		}

		redirect := ""
		settled := ""
		for _, r := range rules {
			e.logger.Debug("dialogue trying rule", "state", state, "rule", r.name)
			out := r.apply(t)
			if out.kind == outcomeNoMatch {
				continue
			}
			e.logger.Debug("dialogue rule matched", "state", state, "rule", r.name, "to", out.state, "label", out.label)
			if out.kind == outcomeRedirect {
				redirect = out.state
			} else {
				settled = out.state
			}
			break
		}

		if settled != "" {
			return settled, nil
		}
		if redirect == "" {
			// A conversational engine must always produce some outcome
			// for a turn, even if no rule applied.
			e.logger.Warn("dialogue ran out of rules, staying put", "state", state)
			return state, nil
		}
		state = redirect
	}

	return "", fmt.Errorf("%w: no settling rule within %d redirects", models.ErrRedirectCycle, len(e.states)+1)
}
