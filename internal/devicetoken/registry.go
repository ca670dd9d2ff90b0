// Package devicetoken keeps the process-wide registry of push-capable devices.
//
// Records live only in memory: a restart discards every registration. Tokens
// are never pruned here; a device that stops receiving pushes stays until it
// is unregistered explicitly.
package devicetoken

import (
	"sort"
	"strings"
	"time"

	"github.com/jcmexdev/storefront-core/internal/pkg/apperr"
	"github.com/jcmexdev/storefront-core/internal/pkg/telemetry"
)

// DefaultPlatform is stored when a registration does not name one.
const DefaultPlatform = "web"

// Record is one registered device. Callers only ever receive copies.
type Record struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId,omitempty"`
	Email     string    `json:"email,omitempty"`
	Platform  string    `json:"platform"`
	DeviceID  string    `json:"deviceId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Attributes is everything a registration may carry besides the token.
type Attributes struct {
	UserID   string
	Email    string
	Platform string
	DeviceID string
}

// Selector resolves tokens by identity. A record matches when its UserID
// equals UserID or its Email equals Email; empty selector fields match nothing.
type Selector struct {
	UserID string
	Email  string
}

func (s Selector) Empty() bool {
	return s.UserID == "" && s.Email == ""
}

func (s Selector) matches(r Record) bool {
	return (s.UserID != "" && r.UserID == s.UserID) ||
		(s.Email != "" && r.Email == s.Email)
}

// Registry is the device token registry.
type Registry struct {
	store Store
	now   func() time.Time
}

type Option func(*Registry)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithStore swaps the backing store.
func WithStore(s Store) Option {
	return func(r *Registry) { r.store = s }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		store: NewMemoryStore(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Upsert registers token or refreshes an existing registration. CreatedAt is
// kept from the first write; every other field takes the latest values, so a
// re-registration without an email clears the stored one.
func (r *Registry) Upsert(token string, attrs Attributes) (Record, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Record{}, apperr.Validation("devicetoken.Upsert", "token is required")
	}
	platform := attrs.Platform
	if platform == "" {
		platform = DefaultPlatform
	}

	rec := r.store.Update(token, func(prev Record, found bool) Record {
		// The clock is read inside the store's critical section so that
		// concurrent writers of one token observe monotonically later times.
		now := r.now()
		created := now
		if found {
			created = prev.CreatedAt
		}
		return Record{
			Token:     token,
			UserID:    attrs.UserID,
			Email:     attrs.Email,
			Platform:  platform,
			DeviceID:  attrs.DeviceID,
			CreatedAt: created,
			UpdatedAt: now,
		}
	})
	return rec, nil
}

// LookupBySelector returns the tokens whose record matches sel, oldest
// registration first. It never fails; no match yields an empty slice.
func (r *Registry) LookupBySelector(sel Selector) []string {
	if sel.Empty() {
		return []string{}
	}
	records := r.store.Snapshot()
	sortRecords(records)

	tokens := make([]string, 0)
	for _, rec := range records {
		if sel.matches(rec) {
			tokens = append(tokens, rec.Token)
		}
	}
	return tokens
}

// Get returns a copy of the record for token.
func (r *Registry) Get(token string) (Record, bool) {
	return r.store.Get(token)
}

// List returns every record with the token cut down to a display preview.
func (r *Registry) List() []Record {
	records := r.store.Snapshot()
	sortRecords(records)
	for i := range records {
		records[i].Token = telemetry.TokenPreview(records[i].Token)
	}
	return records
}

// Unregister removes token and reports whether it was registered.
func (r *Registry) Unregister(token string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, apperr.Validation("devicetoken.Unregister", "token is required")
	}
	return r.store.Delete(token), nil
}

func (r *Registry) Count() int {
	return r.store.Len()
}

func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].Token < records[j].Token
	})
}
