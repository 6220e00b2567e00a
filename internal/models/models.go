package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

const (
	StatusSending   = "sending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusReceived  = "received"
	StatusFailed    = "failed"
)

const TypeText = "text"

// Profile is one tenant. WhatsAppPhoneNumberID routes inbound webhook traffic back to it.
type Profile struct {
	ID                        string    `gorm:"type:uuid;primaryKey" json:"id"`
	FullName                  string    `gorm:"type:varchar(255)" json:"full_name"`
	PhoneNumber               string    `gorm:"type:varchar(50)" json:"phone_number"`
	WhatsAppAccessToken       string    `gorm:"column:whatsapp_access_token;type:text" json:"-"`
	WhatsAppPhoneNumberID     *string   `gorm:"column:whatsapp_phone_number_id;type:varchar(64);uniqueIndex:idx_profiles_phone_number_id" json:"whatsapp_phone_number_id"`
	WhatsAppBusinessAccountID *string   `gorm:"column:whatsapp_business_account_id;type:varchar(64);index" json:"whatsapp_business_account_id"`
	CreatedAt                 time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                 time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

// BeforeCreate fills the id when the profile is not created from an auth subject.
func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// HasAPIConfig reports whether the profile can call the provider send API.
func (p *Profile) HasAPIConfig() bool {
	return p.WhatsAppAccessToken != "" && p.WhatsAppPhoneNumberID != nil && *p.WhatsAppPhoneNumberID != ""
}

// Contact is a tenant-scoped customer identity.
type Contact struct {
	ID                string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            string    `gorm:"type:uuid;not null;uniqueIndex:idx_contacts_user_wa,priority:1" json:"user_id"`
	WhatsAppID        string    `gorm:"column:whatsapp_id;type:varchar(32);not null;uniqueIndex:idx_contacts_user_wa,priority:2" json:"whatsapp_id"`
	PhoneNumber       string    `gorm:"type:varchar(50)" json:"phone_number"`
	Name              string    `gorm:"type:varchar(255)" json:"name"`
	ProfileName       string    `gorm:"type:varchar(255)" json:"profile_name"`
	ProfilePictureURL string    `gorm:"type:text" json:"profile_picture_url"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime;index" json:"updated_at"`
}

func (Contact) TableName() string {
	return "whatsapp_contacts"
}

func (c *Contact) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Message is one logical message in either direction. MessageID is the
// provider-assigned id and the join key for status updates.
type Message struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      string    `gorm:"type:uuid;not null;index;uniqueIndex:idx_messages_user_provider,priority:1" json:"user_id"`
	ContactID   *string   `gorm:"type:uuid;index" json:"contact_id"`
	MessageID   *string   `gorm:"column:message_id;type:varchar(255);uniqueIndex:idx_messages_user_provider,priority:2" json:"message_id"`
	Content     *string   `gorm:"type:text" json:"content"`
	Direction   string    `gorm:"type:varchar(16);not null" json:"direction"`
	Status      string    `gorm:"type:varchar(16);not null" json:"status"`
	MessageType string    `gorm:"type:varchar(50);default:'text'" json:"message_type"`
	Timestamp   time.Time `gorm:"index" json:"timestamp"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Message) TableName() string {
	return "whatsapp_messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// IsKnownStatus reports whether s is a lifecycle status a message row may hold.
func IsKnownStatus(s string) bool {
	switch s {
	case StatusSending, StatusSent, StatusDelivered, StatusRead, StatusReceived, StatusFailed:
		return true
	}
	return false
}
