package webhook

import (
	"context"
	"net/http"

	"whatsapp-inbox/internal/config"
	wa "whatsapp-inbox/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	Config    *config.Config
	Processor *Processor
}

func NewHandler(cfg *config.Config, processor *Processor) *Handler {
	return &Handler{
		Config:    cfg,
		Processor: processor,
	}
}

// VerifyWebhook answers the subscription handshake. It has no side effects.
func (h *Handler) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && h.Config.VerifyToken != "" && token == h.Config.VerifyToken {
		log.Info().Msg("Webhook verified successfully")
		c.Data(http.StatusOK, "text/plain", []byte(challenge))
		return
	}

	log.Warn().Str("mode", mode).Msg("Webhook verification failed")
	c.String(http.StatusForbidden, "Forbidden")
}

// HandleMessage applies an event delivery. Once the body parses the response
// is 200 whatever happens to individual events; only a parse failure or a
// panic yields 500, which makes the provider retry the whole delivery.
func (h *Handler) HandleMessage(c *gin.Context) {
	var payload wa.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		log.Error().Err(err).Msg("Error decoding webhook body")
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Webhook processing panicked")
			c.String(http.StatusInternalServerError, "Internal Server Error")
		}
	}()

	// The provider may hang up early; finish applying what it already sent.
	ctx := context.WithoutCancel(c.Request.Context())
	res := h.Processor.Process(ctx, &payload)

	log.Info().
		Int("messages", res.Messages).
		Int("duplicates", res.Duplicates).
		Int("statuses", res.Statuses).
		Int("no_match", res.NoMatch).
		Int("dropped", res.Dropped).
		Int("failed", res.Failed).
		Msg("Webhook processed")

	c.String(http.StatusOK, "OK")
}
