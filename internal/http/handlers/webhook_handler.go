package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/lead-qualifier/internal/domain"
	"github.com/tbourn/lead-qualifier/internal/http/middleware"
	"github.com/tbourn/lead-qualifier/internal/prompts"
	"github.com/tbourn/lead-qualifier/internal/services"
	"github.com/tbourn/lead-qualifier/internal/whatsapp"
)

const releaseTimeout = 5 * time.Second

// Webhook outcome labels, also used as the metric label.
const (
	webhookInvalid     = "invalid"
	webhookForbidden   = "forbidden"
	webhookIgnored     = "ignored"
	webhookDuplicate   = "duplicate"
	webhookRateLimited = "rate_limited"
	webhookBusy        = "busy"
	webhookFailed      = "failed"
	webhookProcessed   = "processed"
)

// WebhookAck acknowledges a webhook delivery that needs no processing.
type WebhookAck struct {
	Status string `json:"status" example:"ignored"`
	Reason string `json:"reason,omitempty" example:"not a message event"`
}

// WebhookResult reports a processed WhatsApp message. Delivered is false
// when the reply was stored but sending it back failed.
type WebhookResult struct {
	Status                string `json:"status" example:"processed"`
	ConversationID        string `json:"conversationId"`
	LeadQualified         bool   `json:"leadQualified"`
	ShouldTransferToHuman bool   `json:"shouldTransferToHuman"`
	Delivered             bool   `json:"delivered"`
}

// WhatsAppWebhook godoc
// @ID          whatsappWebhook
// @Summary     Evolution API webhook
// @Description Receives WhatsApp events. Only messages.upsert from other parties is processed; the reply is sent back through Evolution.
// @Tags        WhatsApp
// @Accept      json
// @Produce     json
//
// @Param       X-Webhook-Signature  header  string                    false  "hex HMAC-SHA256 of the body"
// @Param       body                 body    whatsapp.WebhookPayload   true   "Evolution payload"
//
// @Success     200  {object}  handlers.WebhookResult  "Processed; ignored, duplicate and busy deliveries answer a WebhookAck"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     429  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /webhook/whatsapp [post]
func (h *Handlers) WhatsAppWebhook(c *gin.Context) {
	var p whatsapp.WebhookPayload
	if err := c.ShouldBindJSON(&p); err != nil || p.Event == "" || p.Instance == "" || p.Data == nil {
		h.webhookOutcome(webhookInvalid)
		fail(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid payload structure")
		return
	}
	if h.d.WhatsAppInstance != "" && p.Instance != h.d.WhatsAppInstance {
		h.webhookOutcome(webhookForbidden)
		fail(c, http.StatusForbidden, ErrCodeForbidden, "wrong instance")
		return
	}
	if !p.IsMessageEvent() {
		h.ack(c, webhookIgnored, "not a message event")
		return
	}
	in, isMsg := whatsapp.ParseInbound(&p)
	if !isMsg {
		h.ack(c, webhookIgnored, "no text content or sent by bot")
		return
	}

	ctx, cancel := h.exchangeContext(c.Request.Context())
	defer cancel()
	lg := middleware.LoggerFrom(c).With().Str("message_id", in.MessageID).Logger()

	claimed := false
	if h.d.Idempotency != nil && in.MessageID != "" {
		err := h.d.Idempotency.Claim(ctx, domain.ScopeWhatsAppMessage, in.Phone, in.MessageID)
		switch {
		case errors.Is(err, services.ErrIdempotencyConflict):
			h.ack(c, webhookDuplicate, "message already handled")
			return
		case err != nil:
			lg.Warn().Err(err).Msg("claim webhook message")
		default:
			claimed = true
		}
	}

	if h.d.WhatsAppLimiter != nil && !h.d.WhatsAppLimiter.Allow("phone:"+in.Phone) {
		// a redelivery after the 429 must not be taken for a duplicate
		if claimed {
			h.release(lg, in)
		}
		if err := h.d.WhatsApp.SendText(ctx, in.Phone, prompts.RateLimitNotice); err != nil {
			lg.Warn().Err(err).Msg("send rate limit notice")
		}
		h.webhookOutcome(webhookRateLimited)
		fail(c, http.StatusTooManyRequests, ErrCodeRateLimited, "rate limit exceeded")
		return
	}

	if err := h.d.WhatsApp.SetPresence(ctx, in.Phone, whatsapp.PresenceComposing); err != nil {
		lg.Debug().Err(err).Msg("set presence")
	}

	res, err := h.d.Chat.Handle(ctx, services.Inbound{
		Channel:    domain.ChannelWhatsApp,
		Identifier: in.Phone,
		Text:       in.Text,
		MediaURL:   in.MediaURL,
	})
	if err != nil {
		// let a redelivery try again
		if claimed {
			h.release(lg, in)
		}
		if errors.Is(err, services.ErrConversationBusy) {
			h.ack(c, webhookBusy, "previous message still being answered")
			return
		}
		if err := h.d.WhatsApp.SendText(ctx, in.Phone, prompts.FallbackReply); err != nil {
			lg.Warn().Err(err).Msg("send fallback reply")
		}
		h.webhookOutcome(webhookFailed)
		status, code, msg := classify(err)
		fail(c, status, code, msg, err)
		return
	}

	out := WebhookResult{
		Status:                webhookProcessed,
		ConversationID:        res.ConversationID,
		LeadQualified:         res.LeadQualified,
		ShouldTransferToHuman: res.ShouldTransferToHuman,
		Delivered:             true,
	}
	if err := h.d.WhatsApp.SendText(ctx, in.Phone, res.Response); err != nil {
		lg.Error().Err(err).Str("conversation_id", res.ConversationID).Msg("send reply")
		out.Delivered = false
	}
	if res.ShouldTransferToHuman {
		lg.Info().Str("conversation_id", res.ConversationID).Msg("human handoff requested")
	}
	if claimed {
		if err := h.d.Idempotency.Complete(ctx, domain.ScopeWhatsAppMessage, in.Phone, in.MessageID, res.MessageID, http.StatusOK, out); err != nil {
			lg.Warn().Err(err).Msg("complete webhook claim")
		}
	}

	h.webhookOutcome(webhookProcessed)
	ok(c, http.StatusOK, out)
}

// ack answers 200 so Evolution does not redeliver.
func (h *Handlers) ack(c *gin.Context, status, reason string) {
	h.webhookOutcome(status)
	ok(c, http.StatusOK, WebhookAck{Status: status, Reason: reason})
}

func (h *Handlers) release(lg zerolog.Logger, in whatsapp.Inbound) {
	// the exchange context may already be past its deadline
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := h.d.Idempotency.Release(ctx, domain.ScopeWhatsAppMessage, in.Phone, in.MessageID); err != nil {
		lg.Warn().Err(err).Msg("release webhook claim")
	}
}

func (h *Handlers) webhookOutcome(status string) {
	if h.d.Webhooks != nil {
		h.d.Webhooks.WebhookHandled(status)
	}
}
