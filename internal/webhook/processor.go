package webhook

import (
	"context"
	"errors"
	"time"

	"whatsapp-inbox/internal/models"
	"whatsapp-inbox/internal/tenant"
	wa "whatsapp-inbox/pkg/models"

	"github.com/rs/zerolog/log"
)

// Store is the subset of the record store the processor writes through.
type Store interface {
	UpsertContact(ctx context.Context, userID, waID string) (*models.Contact, bool, error)
	SetProfileName(ctx context.Context, contactID, name string) (bool, error)
	TouchContact(ctx context.Context, contactID string) error
	InsertInboundMessage(ctx context.Context, m *models.Message) (bool, error)
	UpdateMessageStatus(ctx context.Context, userID, providerID, status string, ts time.Time) (bool, error)
}

// Notifier is told about every event the processor applied.
type Notifier interface {
	MessageReceived(ctx context.Context, contact *models.Contact, msg *models.Message)
	StatusUpdated(ctx context.Context, userID, providerID, status string, ts time.Time)
}

// Notifiers fans out to each notifier in order.
type Notifiers []Notifier

func (n Notifiers) MessageReceived(ctx context.Context, contact *models.Contact, msg *models.Message) {
	for _, x := range n {
		x.MessageReceived(ctx, contact, msg)
	}
}

func (n Notifiers) StatusUpdated(ctx context.Context, userID, providerID, status string, ts time.Time) {
	for _, x := range n {
		x.StatusUpdated(ctx, userID, providerID, status, ts)
	}
}

// Result counts what happened to the events of one delivery.
type Result struct {
	Messages   int
	Duplicates int
	Statuses   int
	NoMatch    int
	Dropped    int
	Failed     int
}

// Processor applies webhook deliveries to the store. It keeps no state between
// deliveries; events of one delivery are applied in order, one at a time.
type Processor struct {
	store   Store
	tenants tenant.Resolver
	notify  Notifier
	now     func() time.Time
}

func NewProcessor(store Store, tenants tenant.Resolver, notify Notifier) *Processor {
	if notify == nil {
		notify = Notifiers(nil)
	}
	return &Processor{
		store:   store,
		tenants: tenants,
		notify:  notify,
		now:     time.Now,
	}
}

// Process walks entries, changes, messages and statuses. A failing event is
// logged and skipped; it never stops its siblings.
func (p *Processor) Process(ctx context.Context, payload *wa.WebhookPayload) Result {
	var res Result
	if payload.Object != wa.ObjectWhatsAppBusinessAccount {
		log.Info().Str("object", payload.Object).Msg("Ignoring webhook for unknown object")
		return res
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != wa.FieldMessages {
				log.Debug().Str("field", change.Field).Str("entry", entry.ID).Msg("Skipping non-message change")
				continue
			}
			p.processChange(ctx, entry, &change.Value, &res)
		}
	}
	return res
}

func (p *Processor) processChange(ctx context.Context, entry wa.Entry, value *wa.ChangeValue, res *Result) {
	events := len(value.Messages) + len(value.Statuses)
	if events == 0 {
		return
	}

	if err := value.Validate(); err != nil {
		log.Warn().Err(err).Str("entry", entry.ID).Int("events", events).Msg("Dropping invalid change")
		res.Dropped += events
		return
	}

	profile, err := p.tenants.Resolve(ctx, entry, value.Metadata)
	if err != nil {
		ev := log.Warn()
		if !errors.Is(err, tenant.ErrNotFound) {
			ev = log.Error()
		}
		ev.Err(err).
			Str("phone_number_id", value.Metadata.PhoneNumberID).
			Str("entry", entry.ID).
			Int("events", events).
			Msg("Dropping events: tenant not resolved")
		res.Dropped += events
		return
	}

	for _, msg := range value.Messages {
		dup, err := p.applyMessage(ctx, profile.ID, value, msg)
		switch {
		case err != nil:
			res.Failed++
			log.Error().Err(err).Str("user_id", profile.ID).Str("message_id", msg.ID).Msg("Failed to apply inbound message")
		case dup:
			res.Duplicates++
		default:
			res.Messages++
		}
	}

	for _, st := range value.Statuses {
		matched, err := p.applyStatus(ctx, profile.ID, st)
		switch {
		case err != nil:
			res.Failed++
			log.Error().Err(err).Str("user_id", profile.ID).Str("message_id", st.ID).Msg("Failed to apply status update")
		case matched:
			res.Statuses++
		default:
			res.NoMatch++
		}
	}
}

// applyMessage upserts the sender's contact and records the message. It
// reports true when the provider id was already stored for this tenant.
func (p *Processor) applyMessage(ctx context.Context, userID string, value *wa.ChangeValue, msg wa.InboundEvent) (bool, error) {
	if err := msg.Validate(); err != nil {
		return false, err
	}

	contact, created, err := p.store.UpsertContact(ctx, userID, msg.From)
	if err != nil {
		return false, err
	}
	if created {
		log.Info().Str("user_id", userID).Str("wa_id", msg.From).Msg("Created contact")
	}
	if name := value.ProfileName(msg.From); name != "" && name != contact.ProfileName {
		if _, err := p.store.SetProfileName(ctx, contact.ID, name); err != nil {
			log.Warn().Err(err).Str("contact_id", contact.ID).Msg("Failed to store profile name")
		} else {
			contact.ProfileName = name
		}
	}

	kind := msg.Type
	if kind == "" {
		kind = models.TypeText
	}
	content := ExtractContent(msg)
	providerID := msg.ID
	row := &models.Message{
		UserID:      userID,
		ContactID:   &contact.ID,
		MessageID:   &providerID,
		Content:     &content,
		Direction:   models.DirectionInbound,
		Status:      models.StatusReceived,
		MessageType: kind,
		Timestamp:   p.eventTime(msg.Timestamp),
	}

	inserted, err := p.store.InsertInboundMessage(ctx, row)
	if err != nil {
		return false, err
	}
	if !inserted {
		log.Info().Str("user_id", userID).Str("message_id", msg.ID).Msg("Duplicate inbound message ignored")
		return true, nil
	}

	if err := p.store.TouchContact(ctx, contact.ID); err != nil {
		log.Warn().Err(err).Str("contact_id", contact.ID).Msg("Failed to touch contact")
	}
	log.Info().Str("user_id", userID).Str("message_id", msg.ID).Str("type", kind).Msg("Stored inbound message")
	p.notify.MessageReceived(ctx, contact, row)
	return false, nil
}

// applyStatus reports whether a stored message matched the status event.
func (p *Processor) applyStatus(ctx context.Context, userID string, st wa.StatusEvent) (bool, error) {
	if err := st.Validate(); err != nil {
		return false, err
	}
	if !models.IsKnownStatus(st.Status) {
		log.Warn().Str("status", st.Status).Str("message_id", st.ID).Msg("Ignoring unknown status")
		return false, nil
	}
	for _, e := range st.Errors {
		log.Warn().Int("code", e.Code).Str("title", e.Title).Str("message_id", st.ID).Msg("Provider reported delivery error")
	}

	ts := p.eventTime(st.Timestamp)
	matched, err := p.store.UpdateMessageStatus(ctx, userID, st.ID, st.Status, ts)
	if err != nil {
		return false, err
	}
	if !matched {
		log.Debug().Str("user_id", userID).Str("message_id", st.ID).Msg("Status for unknown message")
		return false, nil
	}
	log.Info().Str("user_id", userID).Str("message_id", st.ID).Str("status", st.Status).Msg("Message status updated")
	p.notify.StatusUpdated(ctx, userID, st.ID, st.Status, ts)
	return true, nil
}

func (p *Processor) eventTime(raw string) time.Time {
	ts, err := wa.ParseUnixTimestamp(raw)
	if err != nil {
		return p.now().UTC()
	}
	return ts
}
