package api

import (
	"errors"
	"net/http"
	"strings"

	"whatsapp-inbox/internal/database"
	"whatsapp-inbox/internal/middleware"
	"whatsapp-inbox/internal/outbound"
	"whatsapp-inbox/internal/whatsapp"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	Store  *database.Store
	Sender *outbound.Sender
}

func NewMessageHandler(store *database.Store, sender *outbound.Sender) *MessageHandler {
	return &MessageHandler{Store: store, Sender: sender}
}

func (h *MessageHandler) GetMessages(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)
	contactID := c.Param("id")

	if _, err := h.Store.GetContact(ctx, userID, contactID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	messages, err := h.Store.ListMessages(ctx, userID, contactID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, messages)
}

type SendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message text is required"})
		return
	}

	msg, err := h.Sender.Send(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Text)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, msg)
	case errors.Is(err, outbound.ErrNotConfigured):
		c.JSON(http.StatusBadRequest, gin.H{"error": "WhatsApp API not configured. Please add your access token and phone number id in settings."})
	case errors.Is(err, outbound.ErrContactNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
	case msg != nil:
		c.JSON(http.StatusBadGateway, gin.H{"error": whatsapp.UserMessage(err), "message": msg})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
	}
}
