package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

const samplePayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "waba-1",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "15550000000", "phone_number_id": "111"},
        "contacts": [{"wa_id": "15551234567", "profile": {"name": "Jane"}}],
        "messages": [{"from": "15551234567", "id": "wamid.abc", "timestamp": "1700000000", "type": "text", "text": {"body": "hi"}}],
        "statuses": [{"id": "wamid.123", "status": "delivered", "timestamp": "1700000000", "recipient_id": "15551234567"}]
      }
    }]
  }]
}`

func TestDecodeWebhookPayload(t *testing.T) {
	var p WebhookPayload
	if err := json.Unmarshal([]byte(samplePayload), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Object != ObjectWhatsAppBusinessAccount {
		t.Fatalf("object = %q", p.Object)
	}
	v := p.Entry[0].Changes[0].Value
	if err := v.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if v.Metadata.PhoneNumberID != "111" {
		t.Fatalf("phone_number_id = %q", v.Metadata.PhoneNumberID)
	}
	if len(v.Messages) != 1 || v.Messages[0].Text == nil || v.Messages[0].Text.Body != "hi" {
		t.Fatalf("unexpected messages %+v", v.Messages)
	}
	if len(v.Statuses) != 1 || v.Statuses[0].Status != "delivered" {
		t.Fatalf("unexpected statuses %+v", v.Statuses)
	}
	if name := v.ProfileName("15551234567"); name != "Jane" {
		t.Fatalf("profile name = %q", name)
	}
}

func TestValidate(t *testing.T) {
	var v ChangeValue
	if err := v.Validate(); !errors.Is(err, ErrMissingPhoneNumberID) {
		t.Fatalf("expected ErrMissingPhoneNumberID, got %v", err)
	}

	tests := []struct {
		name string
		msg  InboundEvent
		want error
	}{
		{"missing from", InboundEvent{ID: "x"}, ErrMissingSender},
		{"missing id", InboundEvent{From: "1"}, ErrMissingMessageID},
		{"ok", InboundEvent{From: "1", ID: "x"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.msg.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}

	s := StatusEvent{ID: "x"}
	if err := s.Validate(); !errors.Is(err, ErrMissingStatus) {
		t.Fatalf("expected ErrMissingStatus, got %v", err)
	}
}

func TestParseUnixTimestamp(t *testing.T) {
	got, err := ParseUnixTimestamp("1700000000")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if want := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if _, err := ParseUnixTimestamp("yesterday"); err == nil {
		t.Fatal("expected error for non-numeric timestamp")
	}
}
