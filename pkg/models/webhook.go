package models

import (
	"errors"
	"strconv"
	"time"
)

const (
	ObjectWhatsAppBusinessAccount = "whatsapp_business_account"
	FieldMessages                 = "messages"
)

// WebhookPayload represents the incoming JSON payload from WhatsApp
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one business account's batch of changes. ID is the business account id.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

type ChangeValue struct {
	MessagingProduct string         `json:"messaging_product"`
	Metadata         Metadata       `json:"metadata"`
	Contacts         []ContactInfo  `json:"contacts,omitempty"`
	Messages         []InboundEvent `json:"messages,omitempty"`
	Statuses         []StatusEvent  `json:"statuses,omitempty"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// ContactInfo carries the sender's WhatsApp profile as sent alongside messages.
type ContactInfo struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// InboundEvent is one message received by the business number.
type InboundEvent struct {
	From        string              `json:"from"`
	ID          string              `json:"id"`
	Timestamp   string              `json:"timestamp"`
	Type        string              `json:"type"`
	Text        *TextBody           `json:"text,omitempty"`
	Image       *MediaMessage       `json:"image,omitempty"`
	Video       *MediaMessage       `json:"video,omitempty"`
	Audio       *MediaMessage       `json:"audio,omitempty"`
	Document    *MediaMessage       `json:"document,omitempty"`
	Sticker     *MediaMessage       `json:"sticker,omitempty"`
	Location    *LocationMessage    `json:"location,omitempty"`
	Button      *ButtonMessage      `json:"button,omitempty"`
	Interactive *InteractiveMessage `json:"interactive,omitempty"`
	Reaction    *ReactionMessage    `json:"reaction,omitempty"`
}

type TextBody struct {
	Body string `json:"body"`
}

// MediaMessage represents a media attachment in a WhatsApp message
type MediaMessage struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type LocationMessage struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// ButtonMessage is a quick-reply button press on a template message.
type ButtonMessage struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

// InteractiveMessage represents an interactive message response (buttons, lists)
type InteractiveMessage struct {
	Type        string       `json:"type"`
	ButtonReply *ButtonReply `json:"button_reply,omitempty"`
	ListReply   *ListReply   `json:"list_reply,omitempty"`
}

type ButtonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type ListReply struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type ReactionMessage struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

// StatusEvent reports the lifecycle of a message the business sent.
type StatusEvent struct {
	ID          string        `json:"id"`
	Status      string        `json:"status"`
	Timestamp   string        `json:"timestamp"`
	RecipientID string        `json:"recipient_id"`
	Errors      []StatusError `json:"errors,omitempty"`
}

type StatusError struct {
	Code    int    `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
}

var (
	ErrMissingPhoneNumberID = errors.New("metadata.phone_number_id is required")
	ErrMissingSender        = errors.New("message.from is required")
	ErrMissingMessageID     = errors.New("message.id is required")
	ErrMissingStatusID      = errors.New("status.id is required")
	ErrMissingStatus        = errors.New("status.status is required")
)

func (v *ChangeValue) Validate() error {
	if v.Metadata.PhoneNumberID == "" {
		return ErrMissingPhoneNumberID
	}
	return nil
}

func (m *InboundEvent) Validate() error {
	if m.From == "" {
		return ErrMissingSender
	}
	if m.ID == "" {
		return ErrMissingMessageID
	}
	return nil
}

func (s *StatusEvent) Validate() error {
	if s.ID == "" {
		return ErrMissingStatusID
	}
	if s.Status == "" {
		return ErrMissingStatus
	}
	return nil
}

// ProfileName returns the sender name the provider attached for waID, if any.
func (v *ChangeValue) ProfileName(waID string) string {
	for _, c := range v.Contacts {
		if c.WaID == waID {
			return c.Profile.Name
		}
	}
	return ""
}

// ParseUnixTimestamp converts the provider's Unix-seconds string to a UTC time.
func ParseUnixTimestamp(raw string) (time.Time, error) {
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(secs, 0).UTC(), nil
}
