package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/pennykit/pennychat/internal/bot"
	"github.com/pennykit/pennychat/internal/messages"
	"github.com/pennykit/pennychat/internal/models"
)

// Transcoder converts inbound voice audio to the MP3 format the NLU
// speech endpoint expects.
type Transcoder interface {
	ToMP3(ctx context.Context, data []byte) ([]byte, error)
}

// ResponseHandler consumes a transport's inbound responses, runs each
// one through the bot pipeline, and sends the reply messages back over
// the same transport in emission order. Responses are processed
// sequentially, which serializes turns per user on single-consumer
// transports.
type ResponseHandler struct {
	bot        *bot.Bot
	msgService Service
	catalog    *messages.Catalog
	transcoder Transcoder
}

// NewResponseHandler creates a handler over the given bot and transport.
// The transcoder may be nil, in which case voice notes are answered with
// the unsupported-message notice.
func NewResponseHandler(b *bot.Bot, msgService Service, catalog *messages.Catalog, transcoder Transcoder) *ResponseHandler {
	return &ResponseHandler{bot: b, msgService: msgService, catalog: catalog, transcoder: transcoder}
}

// Run consumes responses until the channel closes or the context is
// cancelled.
func (rh *ResponseHandler) Run(ctx context.Context) {
	slog.Debug("ResponseHandler starting")
	for {
		select {
		case <-ctx.Done():
			slog.Debug("ResponseHandler stopping", "reason", ctx.Err())
			return
		case response, ok := <-rh.msgService.Responses():
			if !ok {
				slog.Debug("ResponseHandler responses channel closed")
				return
			}
			rh.handle(ctx, response)
		}
	}
}

func (rh *ResponseHandler) handle(ctx context.Context, response models.Response) {
	from, err := rh.msgService.ValidateAndCanonicalizeRecipient(response.From)
	if err != nil {
		slog.Error("ResponseHandler sender validation failed", "error", err, "from", response.From)
		return
	}

	// Transports forward unsupported message kinds (images, stickers)
	// as bodyless responses.
	if response.Body == "" && len(response.Voice) == 0 {
		rh.send(ctx, from, rh.catalog.Collection("messageTypeNotSupported").Any(nil))
		return
	}

	turn := bot.Turn{
		UserID:    from,
		Text:      response.Body,
		Timestamp: time.Unix(response.Time, 0),
	}

	if len(response.Voice) > 0 {
		if rh.transcoder == nil {
			slog.Warn("ResponseHandler has no transcoder, rejecting voice note", "from", from)
			rh.send(ctx, from, rh.catalog.Collection("messageTypeNotSupported").Any(nil))
			return
		}
		voice, err := rh.transcoder.ToMP3(ctx, response.Voice)
		if err != nil {
			slog.Error("ResponseHandler voice transcoding failed", "error", err, "from", from)
			rh.send(ctx, from, rh.catalog.Collection("messageTypeNotSupported").Any(nil))
			return
		}
		turn.Voice = voice
	}

	result, err := rh.bot.HandleTurn(ctx, turn)
	if err != nil {
		slog.Error("ResponseHandler turn failed", "error", err, "from", from)
		rh.send(ctx, from, rh.catalog.Collection("confused").Any(nil))
		return
	}

	// Delivery order carries conversational meaning; send strictly in
	// emission order.
	for _, message := range result.Messages {
		rh.send(ctx, from, message)
	}
}

func (rh *ResponseHandler) send(ctx context.Context, to, text string) {
	if text == "" {
		return
	}
	if err := rh.msgService.SendMessage(ctx, to, text); err != nil {
		slog.Error("ResponseHandler failed to send reply", "error", err, "to", to)
	}
}
