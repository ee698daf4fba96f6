package ports

import (
	"context"
	"errors"
	"fmt"
)

// ErrRecordNotFound is returned when a record lookup matches nothing.
var ErrRecordNotFound = errors.New("record not found")

// TransientError wraps a store failure that is safe to retry
// (connectivity, timeout, busy database).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient store failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient marks the error class for the executor's retry policy.
func (e *TransientError) Transient() bool { return true }

// IsTransient reports whether an error belongs to the retryable class.
func IsTransient(err error) bool {
	var t interface{ Transient() bool }
	if errors.As(err, &t) {
		return t.Transient()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Customer is a support-desk view of one customer record.
type Customer struct {
	ID         int64  `json:"customer_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Company    string `json:"company,omitempty"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email"`
}

// InvoiceLine is a single purchased track on a past invoice.
type InvoiceLine struct {
	InvoiceID   int64   `json:"invoice_id"`
	InvoiceDate string  `json:"invoice_date"`
	TrackName   string  `json:"track_name"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    int64   `json:"quantity"`
}

// Album pairs an album title with its artist.
type Album struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// Track pairs a track name with its artist.
type Track struct {
	Name   string `json:"name"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
}

// RecordStore is the persistent store queried and mutated by tools. All
// implementations must parameterize every value derived from user text;
// free-form command construction is forbidden at this boundary.
type RecordStore interface {
	// GetCustomer returns the customer record for the given identity.
	GetCustomer(ctx context.Context, customerID int64) (*Customer, error)

	// UpdateCustomer sets one editable field (Address, Phone or Email) on
	// the customer record. Unknown fields fail without touching the store.
	UpdateCustomer(ctx context.Context, customerID int64, field, value string) error

	// PastInvoices returns the most recent invoice lines for the customer,
	// newest first, bounded by limit.
	PastInvoices(ctx context.Context, customerID int64, limit int) ([]InvoiceLine, error)

	// AlbumsByArtist returns albums whose artist name contains the given
	// fragment.
	AlbumsByArtist(ctx context.Context, artist string) ([]Album, error)

	// TracksByArtist returns tracks whose artist name contains the given
	// fragment.
	TracksByArtist(ctx context.Context, artist string) ([]Track, error)

	// SearchTracks returns tracks whose name contains the given fragment.
	SearchTracks(ctx context.Context, title string) ([]Track, error)
}
