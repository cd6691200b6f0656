package nlu

import (
	"testing"
	"time"

	"github.com/pennykit/pennychat/internal/models"
)

func TestNormalizeNilResponse(t *testing.T) {
	facts := Normalize(nil)
	if facts.Intent != "" {
		t.Errorf("expected empty intent, got %q", facts.Intent)
	}
	if facts.Sentiment != models.SentimentNeutral {
		t.Errorf("expected neutral sentiment, got %q", facts.Sentiment)
	}
	if facts.Greetings || facts.Bye || facts.Thanks {
		t.Error("expected all traits false")
	}
	if facts.Item != "" || facts.Money != nil || facts.Moment != nil || facts.Interval != nil {
		t.Error("expected no entities")
	}
}

func TestNormalizeTakesTopIntent(t *testing.T) {
	resp := &Response{
		Intents: []Intent{
			{Name: "add_expense", Confidence: 0.93},
			{Name: "tell_joke", Confidence: 0.12},
		},
	}
	facts := Normalize(resp)
	if facts.Intent != "add_expense" {
		t.Errorf("expected top intent add_expense, got %q", facts.Intent)
	}
}

func TestNormalizeTraits(t *testing.T) {
	resp := &Response{
		Traits: map[string][]Trait{
			TraitThanks:    {{Value: "true", Confidence: 0.9}},
			TraitSentiment: {{Value: "positive", Confidence: 0.8}},
		},
	}
	facts := Normalize(resp)
	if !facts.Thanks {
		t.Error("expected thanks to be set")
	}
	if facts.Sentiment != models.SentimentPositive {
		t.Errorf("expected positive sentiment, got %q", facts.Sentiment)
	}
}

func TestNormalizeUnknownSentimentStaysNeutral(t *testing.T) {
	resp := &Response{
		Traits: map[string][]Trait{
			TraitSentiment: {{Value: "ecstatic", Confidence: 0.8}},
		},
	}
	facts := Normalize(resp)
	if facts.Sentiment != models.SentimentNeutral {
		t.Errorf("expected neutral sentiment for unknown value, got %q", facts.Sentiment)
	}
}

func TestNormalizeGreetingByeConflict(t *testing.T) {
	cases := []struct {
		name          string
		greetingsConf float64
		byeConf       float64
		wantGreetings bool
		wantBye       bool
	}{
		{"greeting wins", 0.9, 0.4, true, false},
		{"bye wins", 0.3, 0.8, false, true},
		{"tie goes to bye", 0.5, 0.5, false, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp := &Response{
				Traits: map[string][]Trait{
					TraitGreetings: {{Value: "true", Confidence: c.greetingsConf}},
					TraitBye:       {{Value: "true", Confidence: c.byeConf}},
				},
			}
			facts := Normalize(resp)
			if facts.Greetings != c.wantGreetings || facts.Bye != c.wantBye {
				t.Errorf("got greetings=%v bye=%v, want greetings=%v bye=%v",
					facts.Greetings, facts.Bye, c.wantGreetings, c.wantBye)
			}
		})
	}
}

func TestNormalizeItemEntity(t *testing.T) {
	resp := &Response{
		Entities: map[string][]Entity{
			"item:item": {{Name: EntityItem, Type: EntityTypeValue, Body: "coffee", Value: "coffee"}},
		},
	}
	facts := Normalize(resp)
	if facts.Item != "coffee" {
		t.Errorf("expected item coffee, got %q", facts.Item)
	}
}

func TestNormalizeMoneyBeatsNumber(t *testing.T) {
	resp := &Response{
		Entities: map[string][]Entity{
			"wit$number:number": {
				{Name: EntityNumber, Type: EntityTypeValue, Body: "3", Value: 3.0},
			},
			"wit$amount_of_money:amount_of_money": {
				{Name: EntityMoney, Type: EntityTypeValue, Body: "$25", Value: 25.0},
			},
		},
	}
	facts := Normalize(resp)
	if facts.Money == nil {
		t.Fatal("expected money to be extracted")
	}
	if facts.Money.Value != 25 {
		t.Errorf("expected the currency-tagged amount to win, got %v", facts.Money.Value)
	}
}

func TestNormalizeNumberServesAsMoneyFallback(t *testing.T) {
	resp := &Response{
		Entities: map[string][]Entity{
			"wit$number:number": {
				{Name: EntityNumber, Type: EntityTypeValue, Body: "30", Value: 30.0},
			},
		},
	}
	facts := Normalize(resp)
	if facts.Money == nil || facts.Money.Value != 30 {
		t.Errorf("expected number to serve as money fallback, got %+v", facts.Money)
	}
}

func TestNormalizeDatetimeValue(t *testing.T) {
	resp := &Response{
		Entities: map[string][]Entity{
			"wit$datetime:datetime": {
				{Name: EntityDateTime, Type: EntityTypeValue, Grain: "day", Value: "2024-03-13T00:00:00Z"},
			},
		},
	}
	facts := Normalize(resp)
	if facts.Moment == nil {
		t.Fatal("expected a moment")
	}
	want := time.Date(2024, time.March, 13, 0, 0, 0, 0, time.UTC)
	if !facts.Moment.Value.Equal(want) || facts.Moment.Grain != models.GrainDay {
		t.Errorf("unexpected moment: %+v", facts.Moment)
	}
}

func TestNormalizeDatetimeInterval(t *testing.T) {
	resp := &Response{
		Entities: map[string][]Entity{
			"wit$datetime:datetime": {
				{
					Name:  EntityDateTime,
					Type:  EntityTypeInterval,
					Grain: "week",
					From:  "2024-03-11T00:00:00Z",
					To:    "2024-03-18T00:00:00Z",
				},
			},
		},
	}
	facts := Normalize(resp)
	if facts.Interval == nil {
		t.Fatal("expected an interval")
	}
	wantStart := time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)
	if !facts.Interval.Start.Equal(wantStart) || facts.Interval.Grain != models.GrainWeek {
		t.Errorf("unexpected interval: %+v", facts.Interval)
	}
	if facts.Moment != nil {
		t.Error("interval must not produce a moment")
	}
}

func TestNormalizeIgnoresMalformedDatetime(t *testing.T) {
	resp := &Response{
		Entities: map[string][]Entity{
			"wit$datetime:datetime": {
				{Name: EntityDateTime, Type: EntityTypeValue, Grain: "day", Value: "last tuesday"},
			},
		},
	}
	facts := Normalize(resp)
	if facts.Moment != nil {
		t.Errorf("expected malformed datetime to be ignored, got %+v", facts.Moment)
	}
}
