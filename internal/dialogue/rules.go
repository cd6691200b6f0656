package dialogue

import (
	"github.com/pennykit/pennychat/internal/messages"
	"github.com/pennykit/pennychat/internal/models"
)

// initRules unconditionally greets and hands over to main. init also
// serves as the recovery target for unrecognized state tags, so its
// single rule must always match.
func initRules() []rule {
	return []rule{
		{name: "first_interaction", apply: func(t *turn) outcome {
			t.sayHi()
			t.sayWelcome()
			return redirectTo(models.StateMain, "welcomed")
		}},
	}
}

func mainRules() []rule {
	return []rule{
		{name: "tell_joke", apply: func(t *turn) outcome {
			if t.facts.Intent != IntentTellJoke {
				return noMatch()
			}
			t.sayJoke()
			return settleIn(models.StateMain, "joked")
		}},

		{name: "who_are_you", apply: func(t *turn) outcome {
			if t.facts.Intent != IntentWhoAreYou {
				return noMatch()
			}
			t.say(t.catalog.Collection("introduction").Any(nil))
			return settleIn(models.StateMain, "introduced")
		}},

		{name: "delete_account", apply: func(t *turn) outcome {
			if t.facts.Intent != IntentDeleteAccount {
				return noMatch()
			}
			t.say(t.catalog.Collection("deleteAccountConfirmation").Any(nil))
			return settleIn(models.StateDeleteAccount, "confirmation_pending")
		}},

		{name: "add_expense", apply: func(t *turn) outcome {
			if t.facts.Intent != IntentAddExpense {
				return noMatch()
			}

			// Re-firing the intent discards any half-finished draft and
			// starts over.
			t.ctx.CurrentExpenseItem = nil
			t.ctx.CurrentExpenseIncurredOn = nil
			t.ctx.CurrentExpenseValue = nil

			// Announce the new expense only when the utterance carried no
			// usable detail; otherwise the follow-up questions speak for
			// themselves.
			if t.facts.Item == "" && t.facts.Interval == nil && t.facts.Moment == nil && t.facts.Money == nil {
				t.say(t.catalog.Collection("addExpense").Any(nil))
			}

			return redirectTo(models.StateAddExpense, "expense_started")
		}},

		{name: "bye", apply: func(t *turn) outcome {
			if len(t.messages) == 0 && t.facts.Bye {
				t.say(t.catalog.Collection("bye").Any(messages.Placeholders{"name": t.ctx.UserName}))
				return settleIn(models.StateMain, "goodbye")
			}
			return noMatch()
		}},

		{name: "confused", apply: func(t *turn) outcome {
			if len(t.messages) == 0 {
				t.say(t.catalog.Collection("confused").Any(nil))
			}
			return settleIn(models.StateMain, "confused")
		}},
	}
}

func deleteAccountRules() []rule {
	return []rule{
		{name: "confirmation", apply: func(t *turn) outcome {
			switch {
			case t.timedOut(deleteAccountTimeout):
				// The confirmation went stale; drop back to main without
				// touching the account.
				return settleIn(models.StateMain, "timeout")

			case t.facts.Intent == IntentFeedbackPositive:
				t.ctx.IsActive = false
				t.say(t.catalog.Collection("accountDeletionConfirmed").Any(nil))
				return settleIn(models.StateMain, "positive")

			case t.facts.Intent == IntentFeedbackNegative:
				t.say(t.catalog.Collection("accountDeletionCanceled").Any(nil))
				return settleIn(models.StateMain, "negative")

			default:
				t.say(t.catalog.Collection("confused").Any(nil))
				return settleIn(models.StateDeleteAccount, "confused")
			}
		}},
	}
}

// addExpenseRules merges freshly extracted facts into the draft, asks
// for whatever is still missing, and commits once all three fields are
// present.
func addExpenseRules() []rule {
	return []rule{
		{name: "add_expense", apply: func(t *turn) outcome {
			// Never overwrite an already-set draft field with a later
			// turn's facts.
			if t.facts.Item != "" && t.ctx.CurrentExpenseItem == nil {
				item := t.facts.Item
				t.ctx.CurrentExpenseItem = &item
			}

			// An exact moment is preferred; an interval's start serves as
			// the fallback.
			if t.facts.Moment != nil && t.ctx.CurrentExpenseIncurredOn == nil {
				moment := t.facts.Moment.Value
				t.ctx.CurrentExpenseIncurredOn = &moment
			} else if t.facts.Interval != nil && t.ctx.CurrentExpenseIncurredOn == nil {
				start := t.facts.Interval.Start
				t.ctx.CurrentExpenseIncurredOn = &start
			}

			if t.facts.Money != nil && t.ctx.CurrentExpenseValue == nil {
				value := t.facts.Money.Value
				t.ctx.CurrentExpenseValue = &value
			}

			if t.ctx.CurrentExpenseItem == nil {
				return redirectTo(models.StateSpecifyExpenseItem, "item_missing")
			}
			if t.ctx.CurrentExpenseIncurredOn == nil {
				return redirectTo(models.StateSpecifyExpenseMoment, "moment_missing")
			}
			if t.ctx.CurrentExpenseValue == nil {
				return redirectTo(models.StateSpecifyExpenseValue, "value_missing")
			}

			item := *t.ctx.CurrentExpenseItem
			value := *t.ctx.CurrentExpenseValue
			incurredOn := *t.ctx.CurrentExpenseIncurredOn

			t.emit(models.NewAddExpenseAction(item, value, incurredOn))
			t.say(t.catalog.Collection("expenseCompleted").Any(messages.Placeholders{
				"item":   item,
				"value":  formatMoney(value),
				"moment": incurredOn.Format(expenseDateFormat),
			}))

			// The draft is committed; clear it in the same turn.
			t.ctx.CurrentExpenseItem = nil
			t.ctx.CurrentExpenseValue = nil
			t.ctx.CurrentExpenseIncurredOn = nil

			return settleIn(models.StateMain, "expense_added")
		}},
	}
}

func specifyExpenseItemRules() []rule {
	return []rule{
		{name: "specify_expense_item", apply: func(t *turn) outcome {
			if t.facts.Item == "" {
				t.say(t.catalog.Collection("specifyExpenseItem").Any(nil))
				return settleIn(models.StateSpecifyExpenseItem, "item_pending")
			}

			item := t.facts.Item
			t.ctx.CurrentExpenseItem = &item
			return redirectTo(models.StateAddExpense, "item_specified")
		}},
	}
}

func specifyExpenseMomentRules() []rule {
	return []rule{
		{name: "specify_expense_moment", apply: func(t *turn) outcome {
			if t.facts.Moment == nil && t.facts.Interval == nil {
				t.say(t.catalog.Collection("specifyExpenseMoment").Any(nil))
				return settleIn(models.StateSpecifyExpenseMoment, "moment_pending")
			}

			if t.facts.Moment != nil {
				moment := t.facts.Moment.Value
				t.ctx.CurrentExpenseIncurredOn = &moment
			} else {
				start := t.facts.Interval.Start
				t.ctx.CurrentExpenseIncurredOn = &start
			}
			return redirectTo(models.StateAddExpense, "moment_specified")
		}},
	}
}

func specifyExpenseValueRules() []rule {
	return []rule{
		{name: "specify_expense_value", apply: func(t *turn) outcome {
			if t.facts.Money == nil {
				t.say(t.catalog.Collection("specifyExpenseValue").Any(nil))
				return settleIn(models.StateSpecifyExpenseValue, "value_pending")
			}

			value := t.facts.Money.Value
			t.ctx.CurrentExpenseValue = &value
			return redirectTo(models.StateAddExpense, "value_specified")
		}},
	}
}
