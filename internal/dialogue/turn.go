package dialogue

import (
	"strconv"
	"time"

	"github.com/pennykit/pennychat/internal/messages"
	"github.com/pennykit/pennychat/internal/models"
)

// outcomeKind tags the result of evaluating one rule.
type outcomeKind int

const (
	// outcomeNoMatch means the rule did not apply; evaluation continues
	// with the next rule in the state's list.
	outcomeNoMatch outcomeKind = iota
	// outcomeRedirect jumps to another state's rule list within the same
	// turn, carrying the accumulated messages and actions forward.
	outcomeRedirect
	// outcomeSettle ends the turn in the named state.
	outcomeSettle
)

// outcome is the tagged result of one rule evaluation. The label names
// the transition for logging only.
type outcome struct {
	kind  outcomeKind
	state string
	label string
}

func noMatch() outcome {
	return outcome{kind: outcomeNoMatch}
}

func redirectTo(state, label string) outcome {
	return outcome{kind: outcomeRedirect, state: state, label: label}
}

func settleIn(state, label string) outcome {
	return outcome{kind: outcomeSettle, state: state, label: label}
}

// rule is one named entry of a state's ordered rule list. Rules are pure
// transformations of the turn accumulator.
type rule struct {
	name  string
	apply func(*turn) outcome
}

// turn accumulates everything one invocation of the engine produces: the
// working copy of the context plus the messages and actions gathered
// while rules chain across states.
type turn struct {
	catalog *messages.Catalog
	session *models.Session
	facts   models.Facts

	ctx      models.Context
	messages []string
	actions  []models.Action
}

func (t *turn) say(text string) {
	t.messages = append(t.messages, text)
}

func (t *turn) emit(action models.Action) {
	t.actions = append(t.actions, action)
}

// sayHi greets personally when a user name is known, generically
// otherwise.
func (t *turn) sayHi() {
	if t.ctx.UserName != "" {
		t.say(t.catalog.Collection("personalGreeting").Any(messages.Placeholders{"name": t.ctx.UserName}))
	} else {
		t.say(t.catalog.Collection("genericGreeting").Any(nil))
	}
	t.ctx.LastGreetingOn = t.session.Timestamp
}

func (t *turn) sayWelcome() {
	t.say(t.catalog.Collection("welcome").Any(nil))
}

// sayJoke emits the next joke in order, or the out-of-jokes notice once
// the collection is exhausted. The joke counter saturates at the
// collection length.
func (t *turn) sayJoke() {
	jokes := t.catalog.Collection("joke")
	t.say(jokes.Get(t.ctx.JokeCounter, t.catalog.Collection("doneJoking").Any(nil), nil))
	t.ctx.JokeCounter = min(t.ctx.JokeCounter+1, jokes.Len())
	t.ctx.LastJokeOn = t.session.Timestamp
}

// timedOut reports whether more than the given duration elapsed between
// the previous turn and this one.
func (t *turn) timedOut(d time.Duration) bool {
	return t.session.Timestamp.Sub(t.ctx.LastMessageOn) > d
}

// formatMoney renders a value with a literal currency prefix, trimming
// insignificant fraction digits ("$42", "$12.5").
func formatMoney(value float64) string {
	return "$" + strconv.FormatFloat(value, 'f', -1, 64)
}
