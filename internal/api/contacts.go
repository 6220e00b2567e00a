package api

import (
	"errors"
	"net/http"
	"strings"

	"whatsapp-inbox/internal/database"
	"whatsapp-inbox/internal/middleware"
	"whatsapp-inbox/internal/models"
	"whatsapp-inbox/internal/whatsapp"

	"github.com/gin-gonic/gin"
	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type ContactHandler struct {
	Store       *database.Store
	CountryCode string
}

func NewContactHandler(store *database.Store, countryCode string) *ContactHandler {
	return &ContactHandler{Store: store, CountryCode: countryCode}
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, database.ErrDuplicateContact)
}

func (h *ContactHandler) GetContacts(c *gin.Context) {
	contacts, err := h.Store.ListContacts(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, contacts)
}

type CreateContactRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone" binding:"required"`
}

// newContact builds a contact keyed by the normalized phone number. It
// returns nil when nothing dialable is left.
func (h *ContactHandler) newContact(userID, name, phone string) *models.Contact {
	waID := whatsapp.NormalizePhone(phone, h.CountryCode)
	if waID == "" {
		return nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = waID
	}
	return &models.Contact{
		UserID:      userID,
		WhatsAppID:  waID,
		PhoneNumber: "+" + waID,
		Name:        name,
	}
}

func (h *ContactHandler) CreateContact(c *gin.Context) {
	var req CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact := h.newContact(middleware.UserID(c), req.Name, req.Phone)
	if contact == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Phone number must contain digits"})
		return
	}

	if err := h.Store.CreateContact(c.Request.Context(), contact); err != nil {
		if isDuplicate(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "Contact already exists"})
			return
		}
		log.Error().Err(err).Msg("Failed to create contact")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create contact"})
		return
	}

	c.JSON(http.StatusCreated, contact)
}

type UpdateContactRequest struct {
	Name              *string `json:"name"`
	ProfilePictureURL *string `json:"profile_picture_url"`
}

func (h *ContactHandler) UpdateContact(c *gin.Context) {
	var req UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name cannot be empty"})
		return
	}

	contact, err := h.Store.UpdateContact(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Name, req.ProfilePictureURL)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update contact"})
		return
	}

	c.JSON(http.StatusOK, contact)
}

// ContactRow is one line of an imported or exported contacts CSV.
type ContactRow struct {
	Name  string `csv:"name"`
	Phone string `csv:"phone"`
}

type ImportResult struct {
	Imported   int `json:"imported"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
}

func (h *ContactHandler) ImportContacts(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "CSV file is required"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to open file"})
		return
	}
	defer f.Close()

	var rows []*ContactRow
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid CSV: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	userID := middleware.UserID(c)
	var res ImportResult
	for _, row := range rows {
		contact := h.newContact(userID, row.Name, row.Phone)
		if contact == nil {
			res.Skipped++
			continue
		}
		if err := h.Store.CreateContact(ctx, contact); err != nil {
			if isDuplicate(err) {
				res.Duplicates++
				continue
			}
			log.Error().Err(err).Str("user_id", userID).Msg("Contact import aborted")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to import contacts", "result": res})
			return
		}
		res.Imported++
	}

	log.Info().Str("user_id", userID).Int("imported", res.Imported).Int("duplicates", res.Duplicates).Msg("Contacts imported")
	c.JSON(http.StatusOK, res)
}

func (h *ContactHandler) ExportContacts(c *gin.Context) {
	contacts, err := h.Store.ListContacts(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	rows := make([]*ContactRow, 0, len(contacts))
	for _, ct := range contacts {
		rows = append(rows, &ContactRow{Name: ct.Name, Phone: ct.PhoneNumber})
	}
	out, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode CSV"})
		return
	}

	c.Header("Content-Disposition", "attachment; filename=contacts.csv")
	c.Data(http.StatusOK, "text/csv", out)
}
