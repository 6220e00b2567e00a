package outbound

import (
	"context"
	"errors"
	"fmt"
	"time"

	"whatsapp-inbox/internal/database"
	"whatsapp-inbox/internal/models"
	"whatsapp-inbox/internal/whatsapp"

	"github.com/rs/zerolog/log"
)

var (
	ErrNotConfigured   = errors.New("whatsapp api is not configured for this profile")
	ErrContactNotFound = errors.New("contact not found")
)

type Store interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	GetContact(ctx context.Context, userID, contactID string) (*models.Contact, error)
	CreateMessage(ctx context.Context, m *models.Message) error
	MarkMessageSent(ctx context.Context, id, providerID string) error
	MarkMessageFailed(ctx context.Context, id string) error
	TouchContact(ctx context.Context, contactID string) error
}

type Provider interface {
	SendText(ctx context.Context, creds whatsapp.Credentials, to, body string) (string, error)
}

// Notifier hears about every outbound row once its send has settled.
type Notifier interface {
	MessageSent(ctx context.Context, contact *models.Contact, msg *models.Message)
}

// Notifiers fans out to each notifier in order.
type Notifiers []Notifier

func (n Notifiers) MessageSent(ctx context.Context, contact *models.Contact, msg *models.Message) {
	for _, x := range n {
		x.MessageSent(ctx, contact, msg)
	}
}

type Sender struct {
	store    Store
	provider Provider
	notify   Notifier
}

func NewSender(store Store, provider Provider, notify Notifier) *Sender {
	if notify == nil {
		notify = Notifiers(nil)
	}
	return &Sender{store: store, provider: provider, notify: notify}
}

// Send records an outbound text for the contact and hands it to the provider.
// The stored row ends up "sent" with the provider id, or "failed". On a
// provider failure the failed row is returned together with the error.
// The contact's wa_id is already canonical and is sent as stored.
func (s *Sender) Send(ctx context.Context, userID, contactID, text string) (*models.Message, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotConfigured
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if !profile.HasAPIConfig() {
		return nil, ErrNotConfigured
	}

	contact, err := s.store.GetContact(ctx, userID, contactID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("load contact: %w", err)
	}

	content := text
	msg := &models.Message{
		UserID:      userID,
		ContactID:   &contact.ID,
		Content:     &content,
		Direction:   models.DirectionOutbound,
		Status:      models.StatusSending,
		MessageType: models.TypeText,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}

	creds := whatsapp.Credentials{
		AccessToken:   profile.WhatsAppAccessToken,
		PhoneNumberID: *profile.WhatsAppPhoneNumberID,
	}
	providerID, sendErr := s.provider.SendText(ctx, creds, contact.WhatsAppID, text)
	if sendErr != nil {
		log.Error().Err(sendErr).Str("user_id", userID).Str("contact_id", contact.ID).Msg("WhatsApp send failed")
		if err := s.store.MarkMessageFailed(ctx, msg.ID); err != nil {
			log.Error().Err(err).Str("id", msg.ID).Msg("Failed to mark message failed")
		}
		msg.Status = models.StatusFailed
		s.notify.MessageSent(ctx, contact, msg)
		return msg, fmt.Errorf("send message: %w", sendErr)
	}

	if err := s.store.MarkMessageSent(ctx, msg.ID, providerID); err != nil {
		// The provider accepted it; a later status update cannot match without the id.
		log.Error().Err(err).Str("id", msg.ID).Str("message_id", providerID).Msg("Failed to record provider id")
	}
	if err := s.store.TouchContact(ctx, contact.ID); err != nil {
		log.Warn().Err(err).Str("contact_id", contact.ID).Msg("Failed to touch contact")
	}
	msg.Status = models.StatusSent
	msg.MessageID = &providerID

	log.Info().Str("user_id", userID).Str("message_id", providerID).Msg("Outbound message sent")
	s.notify.MessageSent(ctx, contact, msg)
	return msg, nil
}
