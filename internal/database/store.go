package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"whatsapp-inbox/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicateContact = errors.New("contact already exists")
)

// Store is the record store for profiles, contacts and messages. Every contact
// and message operation is scoped by the owning user id.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// --- Profiles ---

func (s *Store) CreateProfile(ctx context.Context, p *models.Profile) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *Store) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// EnsureProfile returns the profile with id, creating an empty one the first
// time an authenticated user shows up.
func (s *Store) EnsureProfile(ctx context.Context, id string) (*models.Profile, error) {
	p := models.Profile{ID: id}
	if err := s.db.WithContext(ctx).Where("id = ?", id).FirstOrCreate(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) FindProfileByPhoneNumberID(ctx context.Context, phoneNumberID string) (*models.Profile, error) {
	var p models.Profile
	err := s.db.WithContext(ctx).
		Where("whatsapp_phone_number_id = ?", phoneNumberID).
		First(&p).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// FindProfileByBusinessAccountID returns the single profile owning wabaID.
// Several profiles sharing one business account cannot be routed this way.
func (s *Store) FindProfileByBusinessAccountID(ctx context.Context, wabaID string) (*models.Profile, error) {
	var profiles []models.Profile
	err := s.db.WithContext(ctx).
		Where("whatsapp_business_account_id = ?", wabaID).
		Limit(2).
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	switch len(profiles) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return &profiles[0], nil
	default:
		return nil, fmt.Errorf("business account %s is shared by several profiles", wabaID)
	}
}

// UpdateProfileAPIConfig stores the provider credentials. Empty identifiers are
// stored as NULL so they never collide on the unique routing index.
func (s *Store) UpdateProfileAPIConfig(ctx context.Context, id, accessToken, phoneNumberID, wabaID string) (*models.Profile, error) {
	updates := map[string]interface{}{
		"whatsapp_access_token":        accessToken,
		"whatsapp_phone_number_id":     nullable(phoneNumberID),
		"whatsapp_business_account_id": nullable(wabaID),
	}
	res := s.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetProfile(ctx, id)
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// --- Contacts ---

func (s *Store) FindContact(ctx context.Context, userID, waID string) (*models.Contact, error) {
	var c models.Contact
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND whatsapp_id = ?", userID, waID).
		First(&c).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) GetContact(ctx context.Context, userID, contactID string) (*models.Contact, error) {
	var c models.Contact
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", contactID, userID).
		First(&c).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) CreateContact(ctx context.Context, c *models.Contact) error {
	err := s.db.WithContext(ctx).Create(c).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateContact
	}
	return err
}

// UpsertContact returns the contact for (userID, waID), creating it with
// default display fields when absent. A concurrent create of the same pair
// loses on the unique index and falls back to reading the winner's row.
func (s *Store) UpsertContact(ctx context.Context, userID, waID string) (*models.Contact, bool, error) {
	existing, err := s.FindContact(ctx, userID, waID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("find contact: %w", err)
	}

	c := &models.Contact{
		UserID:      userID,
		WhatsAppID:  waID,
		PhoneNumber: "+" + waID,
		Name:        waID,
	}
	createErr := s.CreateContact(ctx, c)
	if createErr == nil {
		return c, true, nil
	}

	existing, err = s.FindContact(ctx, userID, waID)
	if err == nil {
		return existing, false, nil
	}
	return nil, false, fmt.Errorf("create contact: %w", createErr)
}

// SetProfileName records the name the sender chose on WhatsApp. The
// display name is left to the user.
func (s *Store) SetProfileName(ctx context.Context, contactID, name string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Contact{}).
		Where("id = ? AND (profile_name IS NULL OR profile_name <> ?)", contactID, name).
		UpdateColumn("profile_name", name)
	return res.RowsAffected > 0, res.Error
}

func (s *Store) TouchContact(ctx context.Context, contactID string) error {
	return s.db.WithContext(ctx).Model(&models.Contact{}).
		Where("id = ?", contactID).
		Update("updated_at", time.Now().UTC()).Error
}

func (s *Store) ListContacts(ctx context.Context, userID string) ([]models.Contact, error) {
	contacts := []models.Contact{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&contacts).Error
	return contacts, err
}

// UpdateContact sets the fields that are non-nil.
func (s *Store) UpdateContact(ctx context.Context, userID, contactID string, name, pictureURL *string) (*models.Contact, error) {
	updates := map[string]interface{}{}
	if name != nil {
		updates["name"] = *name
	}
	if pictureURL != nil {
		updates["profile_picture_url"] = *pictureURL
	}
	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&models.Contact{}).
			Where("id = ? AND user_id = ?", contactID, userID).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return s.GetContact(ctx, userID, contactID)
}

// --- Messages ---

func (s *Store) CreateMessage(ctx context.Context, m *models.Message) error {
	return s.db.WithContext(ctx).Create(m).Error
}

// InsertInboundMessage inserts m unless a row with the same provider message id
// already exists for the user. It reports whether a row was written.
func (s *Store) InsertInboundMessage(ctx context.Context, m *models.Message) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(m)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateMessageStatus applies a provider status to the user's message with the
// given provider id. No matching row is not an error; the result reports it.
func (s *Store) UpdateMessageStatus(ctx context.Context, userID, providerID, status string, ts time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("user_id = ? AND message_id = ?", userID, providerID).
		Updates(map[string]interface{}{
			"status":    status,
			"timestamp": ts,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) GetMessage(ctx context.Context, userID, id string) (*models.Message, error) {
	var m models.Message
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (s *Store) MarkMessageSent(ctx context.Context, id, providerID string) error {
	return s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.StatusSent,
			"message_id": providerID,
		}).Error
}

func (s *Store) MarkMessageFailed(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", id).
		Update("status", models.StatusFailed).Error
}

func (s *Store) ListMessages(ctx context.Context, userID, contactID string) ([]models.Message, error) {
	messages := []models.Message{}
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND contact_id = ?", userID, contactID).
		Order("timestamp ASC, created_at ASC").
		Find(&messages).Error
	return messages, err
}
