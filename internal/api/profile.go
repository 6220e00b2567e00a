package api

import (
	"net/http"
	"strings"

	"whatsapp-inbox/internal/database"
	"whatsapp-inbox/internal/middleware"
	"whatsapp-inbox/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type ProfileHandler struct {
	Store *database.Store
}

func NewProfileHandler(store *database.Store) *ProfileHandler {
	return &ProfileHandler{Store: store}
}

// ProfileResponse never carries the access token itself.
type ProfileResponse struct {
	*models.Profile
	HasAccessToken bool `json:"has_access_token"`
}

func (h *ProfileHandler) GetProfile(c *gin.Context) {
	profile, err := h.Store.EnsureProfile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		log.Error().Err(err).Msg("Failed to load profile")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}
	c.JSON(http.StatusOK, ProfileResponse{Profile: profile, HasAccessToken: profile.WhatsAppAccessToken != ""})
}

type UpdateWhatsAppConfigRequest struct {
	AccessToken       string `json:"access_token"`
	PhoneNumberID     string `json:"phone_number_id"`
	BusinessAccountID string `json:"business_account_id"`
}

func (h *ProfileHandler) UpdateWhatsAppConfig(c *gin.Context) {
	var req UpdateWhatsAppConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	userID := middleware.UserID(c)
	if _, err := h.Store.EnsureProfile(ctx, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}

	profile, err := h.Store.UpdateProfileAPIConfig(ctx, userID,
		strings.TrimSpace(req.AccessToken),
		strings.TrimSpace(req.PhoneNumberID),
		strings.TrimSpace(req.BusinessAccountID),
	)
	if err != nil {
		if isDuplicate(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "Phone number id is already linked to another profile"})
			return
		}
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to update WhatsApp config")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update WhatsApp configuration"})
		return
	}

	log.Info().Str("user_id", userID).Msg("WhatsApp configuration updated")
	c.JSON(http.StatusOK, ProfileResponse{Profile: profile, HasAccessToken: profile.WhatsAppAccessToken != ""})
}
