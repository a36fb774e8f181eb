package repository

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	"wisefido-shift/internal/domain"
)

// PostgresContactDirectory reads contacts from the users table maintained by
// the account service.
type PostgresContactDirectory struct {
	db *sql.DB
}

func NewPostgresContactDirectory(db *sql.DB) *PostgresContactDirectory {
	return &PostgresContactDirectory{db: db}
}

var _ ContactDirectory = (*PostgresContactDirectory)(nil)

// LookupContact returns ErrNotFound for unknown owners and owners without an email.
func (d *PostgresContactDirectory) LookupContact(ctx context.Context, ownerID string) (*domain.Contact, error) {
	query := `
		SELECT user_id::text, username, COALESCE(email, '')
		FROM users
		WHERE user_id::text = $1
	`
	var c domain.Contact
	if err := d.db.QueryRowContext(ctx, query, ownerID).Scan(&c.OwnerID, &c.Username, &c.Email); err != nil {
		return nil, wrapDBError("lookup contact", err)
	}
	if strings.TrimSpace(c.Email) == "" {
		return nil, ErrNotFound
	}
	return &c, nil
}

// MemoryContactDirectory in-process contacts for demo mode and tests
type MemoryContactDirectory struct {
	mu       sync.RWMutex
	contacts map[string]domain.Contact
}

func NewMemoryContactDirectory(contacts ...domain.Contact) *MemoryContactDirectory {
	d := &MemoryContactDirectory{contacts: map[string]domain.Contact{}}
	for _, c := range contacts {
		d.contacts[c.OwnerID] = c
	}
	return d
}

var _ ContactDirectory = (*MemoryContactDirectory)(nil)

// Upsert adds or replaces a contact.
func (d *MemoryContactDirectory) Upsert(c domain.Contact) {
	d.mu.Lock()
	d.contacts[c.OwnerID] = c
	d.mu.Unlock()
}

func (d *MemoryContactDirectory) LookupContact(_ context.Context, ownerID string) (*domain.Contact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.contacts[ownerID]
	if !ok || strings.TrimSpace(c.Email) == "" {
		return nil, ErrNotFound
	}
	return &c, nil
}
