// Package nlu provides natural-language-understanding provider clients
// and the normalizer that turns their raw results into per-turn facts.
//
// The provider is treated as a black box returning ranked intents,
// grouped entities, and trait evidence. Any of the three sections may be
// absent from a response and defaults to empty.
package nlu

import (
	"context"
	"time"
)

// Wit-style entity and trait names recognized by the normalizer.
const (
	EntityItem     = "item"
	EntityMoney    = "wit$amount_of_money"
	EntityNumber   = "wit$number"
	EntityDateTime = "wit$datetime"

	TraitGreetings = "wit$greetings"
	TraitBye       = "wit$bye"
	TraitThanks    = "wit$thanks"
	TraitSentiment = "wit$sentiment"
)

// Entity value kinds.
const (
	EntityTypeValue    = "value"
	EntityTypeInterval = "interval"
)

// Request carries one turn's input to the NLU provider: the utterance
// text or a voice payload, plus the reference timestamp for relative
// date resolution.
type Request struct {
	Text      string
	Voice     []byte
	Timestamp time.Time
}

// Provider queries an NLU backend with a single utterance.
type Provider interface {
	Query(ctx context.Context, req Request) (*Response, error)
}

// Response is the raw, loosely-structured NLU result.
type Response struct {
	Text     string              `json:"text"`
	Intents  []Intent            `json:"intents"`
	Entities map[string][]Entity `json:"entities"`
	Traits   map[string][]Trait  `json:"traits"`
}

// Intent is one entry of the provider's confidence-ranked intent list.
type Intent struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Entity is a typed entity value. Value holds a string for text-like
// entities and a number for monetary or numeric ones; interval entities
// carry explicit From/To bounds instead.
type Entity struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Role       string  `json:"role"`
	Type       string  `json:"type"`
	Body       string  `json:"body"`
	Confidence float64 `json:"confidence"`
	Value      any     `json:"value,omitempty"`
	Grain      string  `json:"grain,omitempty"`
	From       string  `json:"from,omitempty"`
	To         string  `json:"to,omitempty"`
}

// StringValue returns the entity value as a string, or "" if it is not
// one.
func (e Entity) StringValue() string {
	s, _ := e.Value.(string)
	return s
}

// FloatValue returns the entity value as a float64, or 0 if it is not a
// number.
func (e Entity) FloatValue() float64 {
	f, _ := e.Value.(float64)
	return f
}

// Trait is one piece of trait evidence with its confidence score.
type Trait struct {
	ID         string  `json:"id"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}
