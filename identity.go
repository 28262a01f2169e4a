package luzidos

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// IdentityLookup resolves an email address to the owning user id.
type IdentityLookup interface {
	// UserIDForEmail returns the user id registered for the address. A sender
	// with no registration fails with unknown_sender.
	UserIDForEmail(ctx context.Context, email string) (string, error)
}

// MemoryIdentityLookup is an in-memory address-to-user table.
type MemoryIdentityLookup struct {
	mutex sync.RWMutex
	users map[string]string
}

// NewMemoryIdentityLookup creates an empty lookup table.
func NewMemoryIdentityLookup() *MemoryIdentityLookup {
	return &MemoryIdentityLookup{users: map[string]string{}}
}

// Register maps an email address to a user id. Addresses compare
// case-insensitively.
func (l *MemoryIdentityLookup) Register(email, userID string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.users[strings.ToLower(email)] = userID
}

func (l *MemoryIdentityLookup) UserIDForEmail(ctx context.Context, email string) (string, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	userID, ok := l.users[strings.ToLower(email)]
	if !ok {
		return "", NewAgentError(ErrorTypeUnknownSender,
			fmt.Sprintf("no user registered for address %q", email))
	}
	return userID, nil
}
