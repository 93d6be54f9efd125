package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"transitly/internal/bookings"
	"transitly/internal/idempotency"
	"transitly/internal/operators"
	"transitly/internal/shared/config"
	"transitly/internal/shared/signing"
	"transitly/internal/shared/utils/response"
	"transitly/internal/takeover"
	"transitly/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ChatController ingests the chat provider's webhook. Pipeline order is
// fixed: signature, parse, idempotency envelope, domain handler. The
// signed provider message id doubles as the one-time nonce; the ledger
// turns redeliveries into stored-response replays. Unlike the payment
// surface there is no separate REPLAY_DETECTED rejection here: the
// provider requires a 200 for redeliveries, so a replayed message id
// converges to the stored response instead of an error.
type ChatController struct {
	repo      Repository
	operators operators.Service
	bookings  bookings.Service
	takeovers takeover.Service
	ledger    *idempotency.Ledger
	cfg       *config.Config
	log       *logger.Logger
}

// NewChatController creates a new chat webhook controller instance
func NewChatController(repo Repository, operatorSvc operators.Service, bookingSvc bookings.Service, takeoverSvc takeover.Service, ledger *idempotency.Ledger, cfg *config.Config) *ChatController {
	return &ChatController{
		repo:      repo,
		operators: operatorSvc,
		bookings:  bookingSvc,
		takeovers: takeoverSvc,
		ledger:    ledger,
		cfg:       cfg,
		log:       logger.GetDefault(),
	}
}

// chatResult is the stored (and replayed) chat webhook response
type chatResult struct {
	Handled   bool   `json:"handled"`
	Action    string `json:"action,omitempty"`
	BookingID uint   `json:"booking_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// HandleChatWebhook processes one inbound chat message
func (ctrl *ChatController) HandleChatWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "INVALID_REQUEST", "unable to read body")
		return
	}

	if !signing.VerifyHubSignature(ctrl.cfg.Secrets.WhatsAppWebhook, body, c.GetHeader("x-hub-signature-256")) {
		ctrl.log.LogSignatureFailure(c.Request.Context(), "chat", c.ClientIP())
		response.Fail(c, http.StatusUnauthorized, "INVALID_SIGNATURE", "")
		return
	}

	var envelope chatEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		response.Fail(c, http.StatusBadRequest, "INVALID_REQUEST", "malformed envelope")
		return
	}

	msg, ok := firstMessage(&envelope)
	if !ok {
		// Status callbacks and other non-message events are acknowledged
		// so the provider stops redelivering them.
		response.OK(c, chatResult{Handled: false, Detail: "no message"})
		return
	}
	if msg.ID == "" || msg.From == "" {
		response.Fail(c, http.StatusBadRequest, "INVALID_REQUEST", "message missing id or sender")
		return
	}

	phone := operators.NormalizePhone(msg.From)
	sessionID := "wa:" + phone
	key := msg.ID + ":" + msg.Type

	raw, err := ctrl.ledger.WithIdempotency(c.Request.Context(), idempotency.SourceWhatsApp, msg.Type, key, json.RawMessage(body),
		&idempotency.Options{SessionID: sessionID},
		func(ctx context.Context) (interface{}, error) {
			return ctrl.processMessage(ctx, msg, phone, sessionID)
		})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, json.RawMessage(raw))
}

// VerifyChat answers the provider's subscription handshake
func (ctrl *ChatController) VerifyChat(c *gin.Context) {
	if c.Query("hub.verify_token") == ctrl.cfg.Secrets.WhatsAppWebhook {
		c.String(http.StatusOK, c.Query("hub.challenge"))
		return
	}
	response.Fail(c, http.StatusUnauthorized, "INVALID_SIGNATURE", "")
}

func (ctrl *ChatController) processMessage(ctx context.Context, msg *chatMessage, phone, sessionID string) (*chatResult, error) {
	operator, err := ctrl.operators.GetOperatorByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	fromOperator := operator != nil && operator.Approved

	ctrl.logMessage(ctx, msg, phone, sessionID, fromOperator)

	if fromOperator {
		return ctrl.processOperatorMessage(ctx, msg, operator)
	}
	return ctrl.processCustomerMessage(ctx, msg, phone, sessionID)
}

// processOperatorMessage confirms the operator's most recent active hold
// when the message carries a ticket attachment.
func (ctrl *ChatController) processOperatorMessage(ctx context.Context, msg *chatMessage, operator *operators.Operator) (*chatResult, error) {
	ticket := ticketFromMessage(msg)
	if ticket == nil {
		return &chatResult{Handled: false, Detail: "operator text ignored"}, nil
	}

	booking, err := ctrl.bookings.ConfirmWithTicket(ctx, operator.ID, ticket)
	if err != nil {
		return nil, err
	}
	return &chatResult{
		Handled:   true,
		Action:    "booking_confirmed",
		BookingID: booking.ID,
	}, nil
}

func (ctrl *ChatController) processCustomerMessage(ctx context.Context, msg *chatMessage, phone, sessionID string) (*chatResult, error) {
	// While an operator drives the session the automation stays quiet.
	paused, err := ctrl.takeovers.IsActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if paused {
		return &chatResult{Handled: false, Detail: "session taken over"}, nil
	}

	if msg.Type != MessageTypeText || msg.Text == nil {
		return &chatResult{Handled: false, Detail: "unsupported message type"}, nil
	}

	cmd, err := ParseBookingCommand(msg.Text.Body)
	if err != nil {
		return &chatResult{Handled: false, Detail: err.Error()}, nil
	}
	if cmd == nil {
		return &chatResult{Handled: false, Detail: "not a booking command"}, nil
	}

	booking, err := ctrl.bookings.CreateHold(ctx, &bookings.HoldRequest{
		TripID:        cmd.TripID,
		JourneyDate:   cmd.JourneyDate,
		DepartureTime: cmd.DepartureTime,
		CustomerPhone: phone,
		SeatCount:     cmd.SeatCount,
		SessionID:     sessionID,
	})
	if err != nil {
		return nil, err
	}
	return &chatResult{
		Handled:   true,
		Action:    "hold_created",
		BookingID: booking.ID,
	}, nil
}

// logMessage appends to message_logs. A redelivered message hits the
// unique provider id and is skipped quietly.
func (ctrl *ChatController) logMessage(ctx context.Context, msg *chatMessage, phone, sessionID string, fromOperator bool) {
	entry := &MessageLog{
		ProviderMessageID: msg.ID,
		FromPhone:         phone,
		MessageType:       msg.Type,
		SessionID:         sessionID,
		FromOperator:      fromOperator,
	}
	if msg.Text != nil {
		entry.Body = msg.Text.Body
	}
	if msg.Image != nil {
		entry.MediaID = msg.Image.ID
	}
	if msg.Document != nil {
		entry.MediaID = msg.Document.ID
	}

	if err := ctrl.repo.CreateMessageLog(ctx, entry); err != nil {
		ctrl.log.InfoWithContext(ctx, "Message log insert skipped", map[string]interface{}{
			"provider_message_id": msg.ID,
			"error":               err.Error(),
		})
	}
}

func firstMessage(envelope *chatEnvelope) (*chatMessage, bool) {
	if len(envelope.Entry) == 0 || len(envelope.Entry[0].Changes) == 0 {
		return nil, false
	}
	messages := envelope.Entry[0].Changes[0].Value.Messages
	if len(messages) == 0 {
		return nil, false
	}
	return &messages[0], true
}

func ticketFromMessage(msg *chatMessage) *bookings.TicketInfo {
	switch msg.Type {
	case MessageTypeImage:
		if msg.Image == nil {
			return nil
		}
		return &bookings.TicketInfo{
			ProviderMediaID: msg.Image.ID,
			MimeType:        msg.Image.MimeType,
			ReceivedAt:      time.Now(),
		}
	case MessageTypeDocument:
		if msg.Document == nil {
			return nil
		}
		return &bookings.TicketInfo{
			ProviderMediaID: msg.Document.ID,
			MimeType:        msg.Document.MimeType,
			ReceivedAt:      time.Now(),
		}
	}
	return nil
}
