package handler

import (
	"context"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/interfaces/http/dto"
)

// WebhookProcessor records and processes one inbound push delivery.
type WebhookProcessor interface {
	ProcessWebhook(ctx context.Context, connectionID uuid.UUID, payload []byte, headers map[string]string) (*channel.WebhookEvent, error)
}

// WebhookHandler receives push deliveries from PMS providers
type WebhookHandler struct {
	BaseHandler
	processor WebhookProcessor
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(processor WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// Receive accepts a provider push for the connection named in the path.
// Duplicates are acknowledged with 200 so providers stop redelivering;
// processing failures are retried in the background and still return 202.
func (h *WebhookHandler) Receive(c *gin.Context) {
	connectionID, err := uuid.Parse(c.Param("connectionID"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID")
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.BadRequest(c, "Could not read request body")
		return
	}

	headers := make(map[string]string, len(c.Request.Header))
	for name := range c.Request.Header {
		headers[name] = c.GetHeader(name)
	}

	event, err := h.processor.ProcessWebhook(c.Request.Context(), connectionID, payload, headers)
	if err != nil {
		if errors.Is(err, channel.ErrWebhookDuplicate) {
			h.Success(c, dto.WebhookAckResponse{Status: "duplicate"})
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Accepted(c, dto.WebhookAckResponse{Status: "accepted", EventID: event.EventID})
}
