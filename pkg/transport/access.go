package transport

import (
	"context"
	"sync"
)

// AccessEntry collects what the server learns about one request while it
// is published: the user name reported by the output adapter and the
// status line that reached the wire. It is safe for concurrent use.
type AccessEntry struct {
	mu     sync.Mutex
	user   string
	status string
}

// SetUser records the authenticated user name.
func (e *AccessEntry) SetUser(name string) {
	e.mu.Lock()
	e.user = name
	e.mu.Unlock()
}

// User returns the recorded user name, or "-" when none was reported.
func (e *AccessEntry) User() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.user == "" {
		return "-"
	}
	return e.user
}

// SetStatus records the status line sent to the client.
func (e *AccessEntry) SetStatus(status string) {
	e.mu.Lock()
	e.status = status
	e.mu.Unlock()
}

// Status returns the recorded status line, empty until the response began.
func (e *AccessEntry) Status() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

type accessEntryKeyType struct{}

var accessEntryKey = accessEntryKeyType{}

// ContextWithAccessEntry returns a new context carrying e.
func ContextWithAccessEntry(ctx context.Context, e *AccessEntry) context.Context {
	return context.WithValue(ctx, accessEntryKey, e)
}

// AccessEntryFromContext returns the entry stored in ctx, or nil.
func AccessEntryFromContext(ctx context.Context) *AccessEntry {
	e, _ := ctx.Value(accessEntryKey).(*AccessEntry)
	return e
}
