// Package tools implements the tool executor: static tool descriptors bound
// to the record store, whitelist enforcement, argument validation, and the
// transient-failure retry policy.
package tools

import (
	"context"
	"fmt"

	"github.com/cadenzahq/cadenza/pkg/domain"
	"github.com/cadenzahq/cadenza/pkg/ports"
	"github.com/cadenzahq/cadenza/pkg/schema"
)

// invoiceLimit bounds the past_invoices lookup.
const invoiceLimit = 5

// Binding pairs a tool descriptor with its implementation.
type Binding struct {
	Descriptor domain.ToolDescriptor

	// NeedsIdentity marks tools that read or write the subject's own
	// record. The executor refuses them while identity is unresolved.
	NeedsIdentity bool

	Run func(ctx context.Context, identity int64, args map[string]any) (any, error)
}

// Catalog builds the static tool set over a record store. Descriptors are
// fixed at build time; nothing here mutates at runtime.
func Catalog(records ports.RecordStore) []Binding {
	return []Binding{
		{
			Descriptor: domain.ToolDescriptor{
				Name:        "get_customer_info",
				Description: "Look up the customer's own record. Returns all customer fields including name, phone, email, and address.",
				Handler:     domain.HandlerAccount,
				Parameters:  schema.Schema{},
			},
			NeedsIdentity: true,
			Run: func(ctx context.Context, identity int64, _ map[string]any) (any, error) {
				return records.GetCustomer(ctx, identity)
			},
		},
		{
			Descriptor: domain.ToolDescriptor{
				Name:        "past_invoices",
				Description: "Look up the customer's most recent purchases.",
				Handler:     domain.HandlerAccount,
				Parameters:  schema.Schema{},
			},
			NeedsIdentity: true,
			Run: func(ctx context.Context, identity int64, _ map[string]any) (any, error) {
				return records.PastInvoices(ctx, identity, invoiceLimit)
			},
		},
		{
			Descriptor: domain.ToolDescriptor{
				Name:        "edit_customer_info",
				Description: "Update one field of the customer's record. parameter must be one of: Address, Phone, Email.",
				Handler:     domain.HandlerAccount,
				Mutating:    true,
				Parameters: schema.Schema{
					"parameter": schema.StringEnum("Address", "Phone", "Email"),
					"value":     schema.String(),
				},
			},
			NeedsIdentity: true,
			Run: func(ctx context.Context, identity int64, args map[string]any) (any, error) {
				field, _ := args["parameter"].(string)
				value, _ := args["value"].(string)
				if err := records.UpdateCustomer(ctx, identity, field, value); err != nil {
					return nil, err
				}
				return fmt.Sprintf("Customer %s updated to %q.", field, value), nil
			},
		},
		{
			Descriptor: domain.ToolDescriptor{
				Name:        "get_albums_by_artist",
				Description: "Get albums by an artist.",
				Handler:     domain.HandlerInventory,
				Parameters:  schema.Schema{"artist": schema.String()},
			},
			Run: func(ctx context.Context, _ int64, args map[string]any) (any, error) {
				artist, _ := args["artist"].(string)
				return records.AlbumsByArtist(ctx, artist)
			},
		},
		{
			Descriptor: domain.ToolDescriptor{
				Name:        "get_tracks_by_artist",
				Description: "Get songs by an artist (or similar artists).",
				Handler:     domain.HandlerInventory,
				Parameters:  schema.Schema{"artist": schema.String()},
			},
			Run: func(ctx context.Context, _ int64, args map[string]any) (any, error) {
				artist, _ := args["artist"].(string)
				return records.TracksByArtist(ctx, artist)
			},
		},
		{
			Descriptor: domain.ToolDescriptor{
				Name:        "check_for_songs",
				Description: "Check if a song exists by its name.",
				Handler:     domain.HandlerInventory,
				Parameters:  schema.Schema{"song_title": schema.String()},
			},
			Run: func(ctx context.Context, _ int64, args map[string]any) (any, error) {
				title, _ := args["song_title"].(string)
				return records.SearchTracks(ctx, title)
			},
		},
	}
}
