package messaging

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/pennykit/pennychat/internal/models"
	"github.com/pennykit/pennychat/internal/whatsapp"
)

// WhatsAppService implements Service using the Whatsmeow-based whatsapp
// client. Unlike the Twilio transport it receives inbound messages over
// the persistent WhatsApp connection, including voice notes, which are
// downloaded and forwarded as raw audio for transcoding.
type WhatsAppService struct {
	client    whatsapp.Sender
	waClient  *whatsapp.Client // access to underlying client for event handling
	receipts  chan models.Receipt
	responses chan models.Response
}

// NewWhatsAppService creates a new WhatsAppService wrapping the given Sender.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	service := &WhatsAppService{
		client:    client,
		receipts:  make(chan models.Receipt, DefaultChannelBufferSize),
		responses: make(chan models.Response, DefaultChannelBufferSize),
	}

	// Only a full client can register event handlers; a mock cannot.
	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}

	return service
}

// ValidateAndCanonicalizeRecipient reduces a WhatsApp number to bare
// digits.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhoneNumber(recipient)
}

// Start begins background event processing.
func (s *WhatsAppService) Start(ctx context.Context) error {
	slog.Debug("WhatsAppService Start invoked")

	if s.waClient != nil {
		go s.handleEvents(ctx)
		slog.Debug("WhatsAppService event handler started")
	} else {
		slog.Debug("WhatsAppService no full client available, skipping event handling")
	}

	return nil
}

// Stop stops background processing and closes the event channels.
func (s *WhatsAppService) Stop() error {
	slog.Info("WhatsAppService Stop invoked")
	if s.waClient != nil {
		s.waClient.Disconnect()
	}
	close(s.receipts)
	close(s.responses)
	return nil
}

// SendMessage sends a message and emits a sent receipt.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("WhatsAppService SendMessage validation failed", "error", err, "to", to)
		return err
	}

	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		slog.Error("WhatsAppService SendMessage error", "error", err, "to", canonicalTo)
		return err
	}

	select {
	case s.receipts <- models.Receipt{To: canonicalTo, Status: models.MessageStatusSent, Time: time.Now().Unix()}:
	default:
		slog.Warn("WhatsAppService receipts channel full, dropping sent receipt", "to", canonicalTo)
	}
	slog.Debug("WhatsAppService message sent", "to", canonicalTo)
	return nil
}

// Receipts returns the channel of receipt events.
func (s *WhatsAppService) Receipts() <-chan models.Receipt {
	return s.receipts
}

// Responses returns the channel of inbound messages.
func (s *WhatsAppService) Responses() <-chan models.Response {
	return s.responses
}

// handleEvents registers the WhatsApp event handler and keeps it alive
// until the context is cancelled.
func (s *WhatsAppService) handleEvents(ctx context.Context) {
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Error("WhatsAppService handleEvents: no client available")
		return
	}

	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		switch v := evt.(type) {
		case *events.Message:
			s.handleIncomingMessage(ctx, v)
		case *events.Receipt:
			s.handleMessageReceipt(v)
		default:
			// Ignore other event types
		}
	})

	slog.Debug("WhatsAppService event handler registered")
	<-ctx.Done()
	slog.Debug("WhatsAppService handleEvents stopping due to context cancellation")
}

// handleIncomingMessage forwards inbound text messages and voice notes.
func (s *WhatsAppService) handleIncomingMessage(ctx context.Context, evt *events.Message) {
	if evt.Message == nil {
		return
	}

	response := models.Response{
		From: jidToNumber(evt.Info.Sender.User),
		Time: evt.Info.Timestamp.Unix(),
	}

	switch {
	case evt.Message.Conversation != nil:
		response.Body = *evt.Message.Conversation
	case evt.Message.ExtendedTextMessage != nil && evt.Message.ExtendedTextMessage.Text != nil:
		response.Body = *evt.Message.ExtendedTextMessage.Text
	case evt.Message.GetAudioMessage() != nil:
		data, err := s.waClient.DownloadAudio(ctx, evt.Message.GetAudioMessage())
		if err != nil {
			slog.Error("WhatsAppService failed to download voice note", "error", err, "from", response.From)
			return
		}
		response.Voice = data
	default:
		// Skip unsupported message kinds (images, stickers, etc.).
		// The response handler replies to empty inbound messages with
		// a not-supported notice, so forward a bodyless response.
		slog.Debug("WhatsAppService unsupported message kind", "from", response.From)
	}

	select {
	case s.responses <- response:
		slog.Info("WhatsAppService incoming message forwarded", "from", response.From, "voice", len(response.Voice) > 0)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService responses channel blocked, dropping message", "from", response.From)
	}
}

// handleMessageReceipt forwards delivery and read receipts.
func (s *WhatsAppService) handleMessageReceipt(evt *events.Receipt) {
	var status models.MessageStatus
	switch evt.Type {
	case events.ReceiptTypeDelivered:
		status = models.MessageStatusDelivered
	case events.ReceiptTypeRead:
		status = models.MessageStatusRead
	default:
		return
	}

	receipt := models.Receipt{
		To:     jidToNumber(evt.MessageSource.Sender.User),
		Status: status,
		Time:   evt.Timestamp.Unix(),
	}

	select {
	case s.receipts <- receipt:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService receipts channel blocked, dropping receipt", "to", receipt.To)
	}
}

// jidToNumber converts a WhatsApp JID user part to an E.164-ish number.
func jidToNumber(user string) string {
	if !strings.HasPrefix(user, "+") {
		return "+" + user
	}
	return user
}
