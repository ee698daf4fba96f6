package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cadenzahq/cadenza/pkg/ports"
)

// Records implements ports.RecordStore in memory, seeded with a small
// music-store dataset. Useful for tests and offline development.
type Records struct {
	mu        sync.RWMutex
	customers map[int64]*ports.Customer
	invoices  map[int64][]ports.InvoiceLine
	albums    []ports.Album
	tracks    []ports.Track

	// FailNext injects a failure into the next N store calls; used to
	// exercise the executor's retry policy.
	FailNext int
	FailWith error
}

// NewRecords creates a seeded in-memory record store.
func NewRecords() *Records {
	return &Records{
		customers: map[int64]*ports.Customer{
			42: {
				ID:        42,
				FirstName: "Astrid",
				LastName:  "Gruber",
				Email:     "astrid.gruber@example.com",
				Phone:     "+43 1 5134505",
				Address:   "Rotenturmstrasse 4, 1010 Innere Stadt",
				City:      "Vienna",
				Country:   "Austria",
			},
			7: {
				ID:        7,
				FirstName: "Leonie",
				LastName:  "Koehler",
				Email:     "leonekohler@surfeu.de",
				Phone:     "+49 0711 2842222",
				City:      "Stuttgart",
				Country:   "Germany",
			},
		},
		invoices: map[int64][]ports.InvoiceLine{
			42: {
				{InvoiceID: 316, InvoiceDate: "2025-06-19", TrackName: "Back To Black", UnitPrice: 0.99, Quantity: 1},
				{InvoiceID: 290, InvoiceDate: "2025-02-14", TrackName: "Rehab", UnitPrice: 0.99, Quantity: 1},
			},
		},
		albums: []ports.Album{
			{Title: "Back To Black", Artist: "Amy Winehouse"},
			{Title: "Frank", Artist: "Amy Winehouse"},
			{Title: "Led Zeppelin IV", Artist: "Led Zeppelin"},
		},
		tracks: []ports.Track{
			{Name: "Rehab", Artist: "Amy Winehouse", Album: "Back To Black"},
			{Name: "Back To Black", Artist: "Amy Winehouse", Album: "Back To Black"},
			{Name: "Stairway To Heaven", Artist: "Led Zeppelin", Album: "Led Zeppelin IV"},
		},
	}
}

func (r *Records) maybeFail() error {
	if r.FailNext > 0 {
		r.FailNext--
		if r.FailWith != nil {
			return r.FailWith
		}
		return &ports.TransientError{Err: context.DeadlineExceeded}
	}
	return nil
}

// GetCustomer returns a copy of the customer record.
func (r *Records) GetCustomer(ctx context.Context, customerID int64) (*ports.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.maybeFail(); err != nil {
		return nil, err
	}
	c, ok := r.customers[customerID]
	if !ok {
		return nil, ports.ErrRecordNotFound
	}
	copy := *c
	return &copy, nil
}

// UpdateCustomer sets one editable field on the customer record.
func (r *Records) UpdateCustomer(ctx context.Context, customerID int64, field, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.maybeFail(); err != nil {
		return err
	}
	c, ok := r.customers[customerID]
	if !ok {
		return ports.ErrRecordNotFound
	}
	switch field {
	case "Address":
		c.Address = value
	case "Phone":
		c.Phone = value
	case "Email":
		c.Email = value
	default:
		return fmt.Errorf("field %q is not editable", field)
	}
	return nil
}

// PastInvoices returns the customer's most recent invoice lines.
func (r *Records) PastInvoices(ctx context.Context, customerID int64, limit int) ([]ports.InvoiceLine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lines := r.invoices[customerID]
	if len(lines) > limit {
		lines = lines[:limit]
	}
	return append([]ports.InvoiceLine(nil), lines...), nil
}

// AlbumsByArtist returns albums whose artist contains the fragment.
func (r *Records) AlbumsByArtist(ctx context.Context, artist string) ([]ports.Album, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ports.Album
	for _, a := range r.albums {
		if containsFold(a.Artist, artist) {
			out = append(out, a)
		}
	}
	return out, nil
}

// TracksByArtist returns tracks whose artist contains the fragment.
func (r *Records) TracksByArtist(ctx context.Context, artist string) ([]ports.Track, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ports.Track
	for _, t := range r.tracks {
		if containsFold(t.Artist, artist) {
			out = append(out, t)
		}
	}
	return out, nil
}

// SearchTracks returns tracks whose name contains the fragment.
func (r *Records) SearchTracks(ctx context.Context, title string) ([]ports.Track, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ports.Track
	for _, t := range r.tracks {
		if containsFold(t.Name, title) {
			out = append(out, t)
		}
	}
	return out, nil
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
