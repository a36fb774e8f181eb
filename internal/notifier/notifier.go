package notifier

import (
	"context"
	"errors"
	"fmt"

	"wisefido-shift/internal/domain"
)

var (
	// ErrNotifier delivery failed; the reminder may be retried on a later sweep
	ErrNotifier = errors.New("notifier failed")
	// ErrUnknownTemplate no template registered under the id
	ErrUnknownTemplate = errors.New("unknown template")
)

// Notifier delivers a rendered template to a contact address.
// Send blocks until the transport confirms or ctx expires.
type Notifier interface {
	Send(ctx context.Context, to, templateID string, vars map[string]any) error
}

// Addresser is implemented by drivers that do not deliver to the contact email.
type Addresser interface {
	Address(c domain.Contact) string
}

// Recipient the `to` argument n expects for c; the email unless n is an Addresser.
func Recipient(n Notifier, c domain.Contact) string {
	if a, ok := n.(Addresser); ok {
		return a.Address(c)
	}
	return c.Email
}

func wrap(driver string, err error) error {
	return fmt.Errorf("%s: %w: %w", driver, ErrNotifier, err)
}
