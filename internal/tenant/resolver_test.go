package tenant

import (
	"context"
	"errors"
	"testing"

	"whatsapp-inbox/internal/database"
	"whatsapp-inbox/internal/models"
	wa "whatsapp-inbox/pkg/models"
)

type fakeFinder struct {
	byPhone map[string]*models.Profile
	byWABA  map[string]*models.Profile
	err     error
}

func (f fakeFinder) FindProfileByPhoneNumberID(_ context.Context, id string) (*models.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.byPhone[id]; ok {
		return p, nil
	}
	return nil, database.ErrNotFound
}

func (f fakeFinder) FindProfileByBusinessAccountID(_ context.Context, id string) (*models.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.byWABA[id]; ok {
		return p, nil
	}
	return nil, database.ErrNotFound
}

func TestPhoneNumberResolver(t *testing.T) {
	acme := &models.Profile{ID: "acme"}
	r := PhoneNumberResolver{Profiles: fakeFinder{byPhone: map[string]*models.Profile{"111": acme}}}
	ctx := context.Background()

	got, err := r.Resolve(ctx, wa.Entry{}, wa.Metadata{PhoneNumberID: "111"})
	if err != nil || got != acme {
		t.Fatalf("got %v, %v", got, err)
	}
	if _, err := r.Resolve(ctx, wa.Entry{}, wa.Metadata{PhoneNumberID: "222"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := r.Resolve(ctx, wa.Entry{}, wa.Metadata{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty id should not resolve, got %v", err)
	}
}

func TestBusinessAccountResolver(t *testing.T) {
	acme := &models.Profile{ID: "acme"}
	r := BusinessAccountResolver{Profiles: fakeFinder{byWABA: map[string]*models.Profile{"waba-1": acme}}}

	got, err := r.Resolve(context.Background(), wa.Entry{ID: "waba-1"}, wa.Metadata{PhoneNumberID: "ignored"})
	if err != nil || got != acme {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestResolverPassesThroughStoreErrors(t *testing.T) {
	boom := errors.New("connection reset")
	r := PhoneNumberResolver{Profiles: fakeFinder{err: boom}}
	_, err := r.Resolve(context.Background(), wa.Entry{}, wa.Metadata{PhoneNumberID: "111"})
	if !errors.Is(err, boom) || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected lookup error, got %v", err)
	}
}

func TestNew(t *testing.T) {
	if _, err := New("business_account_id", fakeFinder{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := mustNew(t, "").(PhoneNumberResolver); !ok {
		t.Fatal("default strategy should be phone number id")
	}
	if _, err := New("carrier_pigeon", fakeFinder{}); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func mustNew(t *testing.T, s string) Resolver {
	t.Helper()
	r, err := New(s, fakeFinder{})
	if err != nil {
		t.Fatal(err)
	}
	return r
}
