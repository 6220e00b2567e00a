package outbound_test

import (
	"context"
	"errors"
	"testing"

	"whatsapp-inbox/internal/database"
	"whatsapp-inbox/internal/database/testdb"
	"whatsapp-inbox/internal/models"
	"whatsapp-inbox/internal/outbound"
	"whatsapp-inbox/internal/whatsapp"
)

type fakeProvider struct {
	id    string
	err   error
	to    string
	creds whatsapp.Credentials
}

func (f *fakeProvider) SendText(_ context.Context, creds whatsapp.Credentials, to, _ string) (string, error) {
	f.creds = creds
	f.to = to
	return f.id, f.err
}

type recordingNotifier struct {
	sent []models.Message
}

func (r *recordingNotifier) MessageSent(_ context.Context, _ *models.Contact, msg *models.Message) {
	r.sent = append(r.sent, *msg)
}

func setup(t *testing.T, configured bool) (*database.Store, *models.Profile, *models.Contact) {
	t.Helper()
	ctx := context.Background()
	store := database.NewStore(testdb.New(t))

	profile := &models.Profile{FullName: "Acme"}
	if configured {
		phoneID := "111"
		profile.WhatsAppAccessToken = "tok"
		profile.WhatsAppPhoneNumberID = &phoneID
	}
	if err := store.CreateProfile(ctx, profile); err != nil {
		t.Fatalf("profile: %v", err)
	}
	contact := &models.Contact{UserID: profile.ID, WhatsAppID: "915551234567", PhoneNumber: "+915551234567", Name: "Bob"}
	if err := store.CreateContact(ctx, contact); err != nil {
		t.Fatalf("contact: %v", err)
	}
	return store, profile, contact
}

func TestSendMarksSent(t *testing.T) {
	store, profile, contact := setup(t, true)
	provider := &fakeProvider{id: "wamid.out"}
	notes := &recordingNotifier{}
	s := outbound.NewSender(store, provider, notes)

	msg, err := s.Send(context.Background(), profile.ID, contact.ID, "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if provider.to != "915551234567" {
		t.Fatalf("to = %q", provider.to)
	}
	if provider.creds.AccessToken != "tok" || provider.creds.PhoneNumberID != "111" {
		t.Fatalf("creds = %+v", provider.creds)
	}

	stored, err := store.GetMessage(context.Background(), profile.ID, msg.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != models.StatusSent || stored.MessageID == nil || *stored.MessageID != "wamid.out" {
		t.Fatalf("unexpected stored message %+v", stored)
	}
	if stored.Direction != models.DirectionOutbound || *stored.Content != "hello" {
		t.Fatalf("unexpected stored message %+v", stored)
	}
	if len(notes.sent) != 1 || notes.sent[0].ID != msg.ID || notes.sent[0].Status != models.StatusSent {
		t.Fatalf("expected one sent notification, got %+v", notes.sent)
	}
}

func TestSendUsesInboundWhatsAppIDAsIs(t *testing.T) {
	store, profile, _ := setup(t, true)
	ctx := context.Background()

	// A Norwegian sender: ten digits, already carrying its country code.
	contact, _, err := store.UpsertContact(ctx, profile.ID, "4791234567")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	provider := &fakeProvider{id: "wamid.no"}
	s := outbound.NewSender(store, provider, nil)

	if _, err := s.Send(ctx, profile.ID, contact.ID, "hei"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if provider.to != "4791234567" {
		t.Fatalf("to = %q, want the stored wa_id", provider.to)
	}
}

func TestSendMarksFailed(t *testing.T) {
	store, profile, contact := setup(t, true)
	provider := &fakeProvider{err: &whatsapp.APIError{Status: 400, Code: 131026, Message: "Recipient unavailable"}}
	notes := &recordingNotifier{}
	s := outbound.NewSender(store, provider, notes)

	msg, err := s.Send(context.Background(), profile.ID, contact.ID, "hello")
	var apiErr *whatsapp.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if msg == nil {
		t.Fatal("failed send should return the stored row")
	}

	stored, err := store.GetMessage(context.Background(), profile.ID, msg.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != models.StatusFailed || stored.MessageID != nil {
		t.Fatalf("unexpected stored message %+v", stored)
	}
	if len(notes.sent) != 1 || notes.sent[0].Status != models.StatusFailed {
		t.Fatalf("expected one failed notification, got %+v", notes.sent)
	}
}

func TestSendRequiresConfiguredProfile(t *testing.T) {
	store, profile, contact := setup(t, false)
	s := outbound.NewSender(store, &fakeProvider{}, nil)

	if _, err := s.Send(context.Background(), profile.ID, contact.ID, "x"); !errors.Is(err, outbound.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := s.Send(context.Background(), "no-such-user", contact.ID, "x"); !errors.Is(err, outbound.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured for unknown profile, got %v", err)
	}
}

func TestSendUnknownContact(t *testing.T) {
	store, profile, _ := setup(t, true)
	s := outbound.NewSender(store, &fakeProvider{id: "x"}, nil)

	if _, err := s.Send(context.Background(), profile.ID, "missing", "x"); !errors.Is(err, outbound.ErrContactNotFound) {
		t.Fatalf("expected ErrContactNotFound, got %v", err)
	}
}
