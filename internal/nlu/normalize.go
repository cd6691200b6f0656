package nlu

import (
	"time"

	"github.com/pennykit/pennychat/internal/models"
)

// Normalize converts a raw NLU response into the ephemeral facts the
// dialogue engine consumes. It is a pure function of its input: missing
// sections are treated as empty, unrecognized entity names are ignored,
// and nothing here performs I/O.
func Normalize(resp *Response) models.Facts {
	facts := models.NewFacts()
	if resp == nil {
		return facts
	}

	normalizeIntents(resp, &facts)
	normalizeTraits(resp, &facts)
	normalizeEntities(resp, &facts)
	return facts
}

// normalizeIntents takes the top-ranked intent; the provider already
// orders the list by confidence.
func normalizeIntents(resp *Response, facts *models.Facts) {
	if len(resp.Intents) > 0 {
		facts.Intent = resp.Intents[0].Name
	}
}

func normalizeTraits(resp *Response, facts *models.Facts) {
	facts.Thanks = len(resp.Traits[TraitThanks]) > 0
	facts.Greetings = len(resp.Traits[TraitGreetings]) > 0
	facts.Bye = len(resp.Traits[TraitBye]) > 0

	// Greeting and farewell are mutually exclusive; when the provider
	// asserts both, suppress the one with lower confidence.
	if facts.Greetings && facts.Bye {
		if resp.Traits[TraitGreetings][0].Confidence > resp.Traits[TraitBye][0].Confidence {
			facts.Bye = false
		} else {
			facts.Greetings = false
		}
	}

	if sentiment := resp.Traits[TraitSentiment]; len(sentiment) > 0 {
		switch models.Sentiment(sentiment[0].Value) {
		case models.SentimentNegative, models.SentimentNeutral, models.SentimentPositive:
			facts.Sentiment = models.Sentiment(sentiment[0].Value)
		}
	}
}

func normalizeEntities(resp *Response, facts *models.Facts) {
	// Entities arrive grouped by entity name; flatten all groups before
	// applying the per-name mapping.
	var entities []Entity
	for _, group := range resp.Entities {
		entities = append(entities, group...)
	}

	for _, entity := range entities {
		switch entity.Name {
		case EntityItem:
			if entity.Type == EntityTypeValue {
				facts.Item = entity.StringValue()
			}

		case EntityMoney:
			if entity.Type == EntityTypeValue {
				facts.Money = &models.Money{
					Body:  entity.Body,
					Value: entity.FloatValue(),
				}
			}

		case EntityNumber:
			// A plain number only serves as a money fallback; a
			// currency-tagged amount always wins.
			if entity.Type == EntityTypeValue && facts.Money == nil {
				facts.Money = &models.Money{
					Body:  entity.Body,
					Value: entity.FloatValue(),
				}
			}

		case EntityDateTime:
			if entity.Type == EntityTypeValue {
				if value, err := time.Parse(time.RFC3339, entity.StringValue()); err == nil {
					facts.Moment = &models.Moment{
						Grain: models.Grain(entity.Grain),
						Value: value,
					}
				}
			} else if entity.Type == EntityTypeInterval {
				from, errFrom := time.Parse(time.RFC3339, entity.From)
				to, errTo := time.Parse(time.RFC3339, entity.To)
				if errFrom == nil && errTo == nil {
					facts.Interval = &models.Interval{
						Grain: models.Grain(entity.Grain),
						Start: from,
						End:   to,
					}
				}
			}
		}
	}
}
