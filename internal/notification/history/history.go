// Package history keeps the notifications devices report as received, so a
// client can render an inbox per device or per user.
//
// Entries live only in memory, like the device registry they are linked to.
package history

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jcmexdev/storefront-core/internal/devicetoken"
	"github.com/jcmexdev/storefront-core/internal/pkg/apperr"
	"github.com/jcmexdev/storefront-core/internal/pkg/telemetry"
)

// Entry is one stored notification. Token is the device that received it;
// UserID is copied from that device's registration at the time of receipt.
type Entry struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId,omitempty"`
	Token     string         `json:"token"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
	Delivered bool           `json:"delivered"`
	Read      bool           `json:"read"`
}

// Received is a device's report of a notification it displayed. A zero
// Timestamp is replaced by the time of the report.
type Received struct {
	Token     string
	Title     string
	Body      string
	Data      map[string]any
	Timestamp time.Time
}

// DeviceLookup resolves a token to its registration.
type DeviceLookup interface {
	Get(token string) (devicetoken.Record, bool)
}

type Log struct {
	store   Store
	devices DeviceLookup
	now     func() time.Time
	newID   func() string
}

type Option func(*Log)

func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

func WithStore(s Store) Option {
	return func(l *Log) { l.store = s }
}

func NewLog(devices DeviceLookup, opts ...Option) *Log {
	l := &Log{
		store:   NewMemoryStore(DefaultCapacity),
		devices: devices,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return "received_" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RecordReceived stores r as delivered and unread.
func (l *Log) RecordReceived(r Received) (Entry, error) {
	token := strings.TrimSpace(r.Token)
	if token == "" || r.Title == "" || r.Body == "" {
		return Entry{}, apperr.Validation("history.RecordReceived", "token, title and body are required")
	}

	e := Entry{
		ID:        l.newID(),
		Token:     token,
		Title:     r.Title,
		Body:      r.Body,
		Data:      r.Data,
		Timestamp: r.Timestamp,
		Delivered: true,
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now()
	}
	if l.devices != nil {
		if rec, ok := l.devices.Get(token); ok {
			e.UserID = rec.UserID
		}
	}

	l.store.Append(e)
	return e, nil
}

// ByToken returns the entries received by token, newest first.
func (l *Log) ByToken(token string) ([]Entry, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.Validation("history.ByToken", "token is required")
	}
	return l.filter(func(e Entry) bool { return e.Token == token }), nil
}

// ByUser returns the entries linked to userID, newest first.
func (l *Log) ByUser(userID string) ([]Entry, error) {
	if userID == "" {
		return nil, apperr.Validation("history.ByUser", "userId is required")
	}
	return l.filter(func(e Entry) bool { return e.UserID == userID }), nil
}

func (l *Log) Count() int {
	return l.store.Len()
}

// filter walks the snapshot from the most recent append so that entries with
// equal timestamps keep newest-first order. Tokens are cut to a preview.
func (l *Log) filter(keep func(Entry) bool) []Entry {
	snapshot := l.store.Snapshot()
	out := make([]Entry, 0)
	for i := len(snapshot) - 1; i >= 0; i-- {
		if keep(snapshot[i]) {
			e := snapshot[i]
			e.Token = telemetry.TokenPreview(e.Token)
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}
