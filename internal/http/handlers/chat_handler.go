package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/lead-qualifier/internal/domain"
	"github.com/tbourn/lead-qualifier/internal/http/middleware"
	"github.com/tbourn/lead-qualifier/internal/prompts"
	"github.com/tbourn/lead-qualifier/internal/services"
)

// historyLimit caps GET /api/chat/history.
const historyLimit = 100

// ChatRequest is the web widget's message.
type ChatRequest struct {
	// Client-generated, persisted in the browser
	SessionID string `json:"sessionId" example:"web-5f0c2a"`
	Message   string `json:"message" example:"Olá, meu nome é Maria Santos"`
}

// ChatResponse is the reply rendered by the widget. Suggestions is null
// unless the subscription offer fired.
type ChatResponse struct {
	Response              string   `json:"response"`
	ConversationID        string   `json:"conversationId"`
	Suggestions           []string `json:"suggestions"`
	LeadQualified         bool     `json:"leadQualified"`
	ShouldTransferToHuman bool     `json:"shouldTransferToHuman"`
}

// HistoryMessage is one visible turn.
type HistoryMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role" example:"assistant"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// HistoryResponse lists the active conversation's turns, oldest first.
// ConversationID is null for an unknown session.
type HistoryResponse struct {
	Messages       []HistoryMessage `json:"messages"`
	ConversationID *string          `json:"conversationId"`
}

var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes line endings, collapses blank-line runs and
// trims the message.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// PostChat godoc
// @ID          postChat
// @Summary     Send a chat message
// @Description Processes one message from the web widget and returns the assistant reply.
// @Description A repeated Idempotency-Key for the same session replays the stored reply.
// @Tags        Chat
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string              false  "Key for safe retries"
// @Param       body             body    handlers.ChatRequest true  "Message"
//
// @Success     200  {object}  handlers.ChatResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing fields or message too long"
// @Failure     409  {object}  handlers.ErrorResponse  "Previous message still being answered"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chat [post]
func (h *Handlers) PostChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidRequest, msgMissingFields)
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	msg := sanitizeContent(req.Message)
	if sessionID == "" || msg == "" {
		fail(c, http.StatusBadRequest, ErrCodeInvalidRequest, msgMissingFields)
		return
	}

	ctx, cancel := h.exchangeContext(c.Request.Context())
	defer cancel()
	lg := middleware.LoggerFrom(c)

	idemKey, hasKey := middleware.GetIdempotencyKey(c)
	hasKey = hasKey && h.d.Idempotency != nil
	if hasKey {
		rec, err := h.d.Idempotency.Lookup(ctx, domain.ScopeWebChat, sessionID, idemKey)
		if err != nil {
			lg.Warn().Err(err).Msg("idempotency lookup")
		}
		if rec != nil && len(rec.Payload) > 0 {
			c.Header("Idempotency-Replayed", "true")
			c.Data(rec.Status, "application/json; charset=utf-8", rec.Payload)
			return
		}
	}

	res, err := h.d.Chat.Handle(ctx, services.Inbound{Channel: domain.ChannelWeb, Identifier: sessionID, Text: msg})
	if err != nil {
		status, code, text := classify(err)
		fail(c, status, code, text, err)
		return
	}

	resp := ChatResponse{
		Response:              res.Response,
		ConversationID:        res.ConversationID,
		LeadQualified:         res.LeadQualified,
		ShouldTransferToHuman: res.ShouldTransferToHuman,
	}
	if res.ShouldOfferSubscription {
		resp.Suggestions = append([]string(nil), prompts.Suggestions...)
	}

	if hasKey {
		err := h.d.Idempotency.Remember(ctx, domain.ScopeWebChat, sessionID, idemKey, res.MessageID, http.StatusOK, resp)
		if err != nil && !errors.Is(err, services.ErrIdempotencyConflict) {
			lg.Warn().Err(err).Msg("idempotency remember")
		}
	}
	ok(c, http.StatusOK, resp)
}

// GetHistory godoc
// @ID          getChatHistory
// @Summary     Chat history
// @Description Returns up to 100 visible messages of the session's active conversation, oldest first.
// @Description An unknown session yields an empty list and a null conversationId.
// @Tags        Chat
// @Produce     json
//
// @Param       sessionId  path  string  true  "Web session id"
//
// @Success     200  {object}  handlers.HistoryResponse
// @Success     304  "Not modified (ETag)"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /chat/history/{sessionId} [get]
func (h *Handlers) GetHistory(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("sessionId"))
	if sessionID == "" {
		fail(c, http.StatusBadRequest, ErrCodeInvalidRequest, "sessionId required")
		return
	}

	msgs, convID, err := h.d.Chat.History(c.Request.Context(), domain.ChannelWeb, sessionID, historyLimit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load history", err)
		return
	}

	etag := historyETag(convID, msgs)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return
	}

	resp := HistoryResponse{Messages: make([]HistoryMessage, 0, len(msgs))}
	if convID != "" {
		resp.ConversationID = &convID
	}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, HistoryMessage{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	ok(c, http.StatusOK, resp)
}

// historyETag changes whenever a message is appended. Messages are
// immutable, so count plus the newest id identifies the list.
func historyETag(convID string, msgs []domain.Message) string {
	last := ""
	if n := len(msgs); n > 0 {
		last = msgs[n-1].ID
	}
	return fmt.Sprintf(`W/"history:%s:%d:%s"`, convID, len(msgs), last)
}
