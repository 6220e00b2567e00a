// Package tenant maps webhook traffic to the profile that owns it.
package tenant

import (
	"context"
	"errors"
	"fmt"

	"whatsapp-inbox/internal/database"
	"whatsapp-inbox/internal/models"
	wa "whatsapp-inbox/pkg/models"
)

var ErrNotFound = errors.New("no tenant for webhook metadata")

// Resolver returns the profile owning a change. Implementations return
// ErrNotFound when nothing matches; other errors are lookup failures.
type Resolver interface {
	Resolve(ctx context.Context, entry wa.Entry, meta wa.Metadata) (*models.Profile, error)
}

type ProfileFinder interface {
	FindProfileByPhoneNumberID(ctx context.Context, phoneNumberID string) (*models.Profile, error)
	FindProfileByBusinessAccountID(ctx context.Context, wabaID string) (*models.Profile, error)
}

// PhoneNumberResolver routes by the receiving phone-number id in the change metadata.
type PhoneNumberResolver struct {
	Profiles ProfileFinder
}

func (r PhoneNumberResolver) Resolve(ctx context.Context, _ wa.Entry, meta wa.Metadata) (*models.Profile, error) {
	if meta.PhoneNumberID == "" {
		return nil, ErrNotFound
	}
	return translate(r.Profiles.FindProfileByPhoneNumberID(ctx, meta.PhoneNumberID))
}

// BusinessAccountResolver routes by the entry id, which is the business account id.
type BusinessAccountResolver struct {
	Profiles ProfileFinder
}

func (r BusinessAccountResolver) Resolve(ctx context.Context, entry wa.Entry, _ wa.Metadata) (*models.Profile, error) {
	if entry.ID == "" {
		return nil, ErrNotFound
	}
	return translate(r.Profiles.FindProfileByBusinessAccountID(ctx, entry.ID))
}

func translate(p *models.Profile, err error) (*models.Profile, error) {
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	return p, err
}

// New builds the resolver named by strategy.
func New(strategy string, profiles ProfileFinder) (Resolver, error) {
	switch strategy {
	case "", "phone_number_id":
		return PhoneNumberResolver{Profiles: profiles}, nil
	case "business_account_id":
		return BusinessAccountResolver{Profiles: profiles}, nil
	default:
		return nil, fmt.Errorf("unknown tenant resolver %q", strategy)
	}
}
