// Package sqlite implements the record store over a Chinook-schema SQLite
// database using the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/cadenzahq/cadenza/pkg/ports"
)

// editableFields maps the public field names to their Customer columns. The
// map doubles as the whitelist: anything else never reaches SQL.
var editableFields = map[string]string{
	"Address": "Address",
	"Phone":   "Phone",
	"Email":   "Email",
}

// Records implements ports.RecordStore on SQLite.
type Records struct {
	db *sql.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Records, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite handles one writer at a time; a larger pool just trades
	// contention errors for busy-waiting.
	db.SetMaxOpenConns(1)
	return &Records{db: db}, nil
}

// Close releases the database handle.
func (r *Records) Close() error {
	return r.db.Close()
}

// GetCustomer looks up one customer by ID.
func (r *Records) GetCustomer(ctx context.Context, customerID int64) (*ports.Customer, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT CustomerId, FirstName, LastName,
		       COALESCE(Email, ''), COALESCE(Phone, ''),
		       COALESCE(Address, ''), COALESCE(City, ''), COALESCE(Country, '')
		FROM Customer WHERE CustomerId = ?`, customerID)

	var c ports.Customer
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Address, &c.City, &c.Country)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrRecordNotFound
	}
	if err != nil {
		return nil, classify(fmt.Errorf("get customer %d: %w", customerID, err))
	}
	return &c, nil
}

// UpdateCustomer sets one editable field on the customer record.
func (r *Records) UpdateCustomer(ctx context.Context, customerID int64, field, value string) error {
	column, ok := editableFields[field]
	if !ok {
		return fmt.Errorf("field %q is not editable", field)
	}

	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE Customer SET %s = ? WHERE CustomerId = ?`, column),
		value, customerID)
	if err != nil {
		return classify(fmt.Errorf("update customer %d: %w", customerID, err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if affected == 0 {
		return ports.ErrRecordNotFound
	}
	return nil
}

// PastInvoices returns the customer's most recent invoice lines.
func (r *Records) PastInvoices(ctx context.Context, customerID int64, limit int) ([]ports.InvoiceLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT i.InvoiceId, i.InvoiceDate, t.Name, il.UnitPrice, il.Quantity
		FROM Invoice i
		JOIN InvoiceLine il ON il.InvoiceId = i.InvoiceId
		JOIN Track t ON t.TrackId = il.TrackId
		WHERE i.CustomerId = ?
		ORDER BY i.InvoiceDate DESC, i.InvoiceId DESC
		LIMIT ?`, customerID, limit)
	if err != nil {
		return nil, classify(fmt.Errorf("past invoices for %d: %w", customerID, err))
	}
	defer rows.Close()

	var lines []ports.InvoiceLine
	for rows.Next() {
		var l ports.InvoiceLine
		if err := rows.Scan(&l.InvoiceID, &l.InvoiceDate, &l.TrackName, &l.UnitPrice, &l.Quantity); err != nil {
			return nil, classify(err)
		}
		lines = append(lines, l)
	}
	return lines, classify(rows.Err())
}

// AlbumsByArtist returns albums whose artist name contains the fragment.
func (r *Records) AlbumsByArtist(ctx context.Context, artist string) ([]ports.Album, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT al.Title, ar.Name
		FROM Album al
		JOIN Artist ar ON ar.ArtistId = al.ArtistId
		WHERE ar.Name LIKE ? ESCAPE '\'
		ORDER BY ar.Name, al.Title`, likePattern(artist))
	if err != nil {
		return nil, classify(fmt.Errorf("albums by artist: %w", err))
	}
	defer rows.Close()

	var albums []ports.Album
	for rows.Next() {
		var a ports.Album
		if err := rows.Scan(&a.Title, &a.Artist); err != nil {
			return nil, classify(err)
		}
		albums = append(albums, a)
	}
	return albums, classify(rows.Err())
}

// TracksByArtist returns tracks whose artist name contains the fragment.
func (r *Records) TracksByArtist(ctx context.Context, artist string) ([]ports.Track, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.Name, ar.Name, al.Title
		FROM Track t
		JOIN Album al ON al.AlbumId = t.AlbumId
		JOIN Artist ar ON ar.ArtistId = al.ArtistId
		WHERE ar.Name LIKE ? ESCAPE '\'
		ORDER BY ar.Name, al.Title, t.Name`, likePattern(artist))
	if err != nil {
		return nil, classify(fmt.Errorf("tracks by artist: %w", err))
	}
	defer rows.Close()
	return scanTracks(rows)
}

// SearchTracks returns tracks whose name contains the fragment.
func (r *Records) SearchTracks(ctx context.Context, title string) ([]ports.Track, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.Name, COALESCE(ar.Name, ''), COALESCE(al.Title, '')
		FROM Track t
		LEFT JOIN Album al ON al.AlbumId = t.AlbumId
		LEFT JOIN Artist ar ON ar.ArtistId = al.ArtistId
		WHERE t.Name LIKE ? ESCAPE '\'
		ORDER BY t.Name`, likePattern(title))
	if err != nil {
		return nil, classify(fmt.Errorf("search tracks: %w", err))
	}
	defer rows.Close()
	return scanTracks(rows)
}

func scanTracks(rows *sql.Rows) ([]ports.Track, error) {
	var tracks []ports.Track
	for rows.Next() {
		var t ports.Track
		if err := rows.Scan(&t.Name, &t.Artist, &t.Album); err != nil {
			return nil, classify(err)
		}
		tracks = append(tracks, t)
	}
	return tracks, classify(rows.Err())
}

// likePattern builds a contains-match pattern with LIKE metacharacters
// escaped, so user input cannot widen the search.
func likePattern(fragment string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(fragment)
	return "%" + escaped + "%"
}

// classify wraps lock contention as transient so the executor retries it.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return &ports.TransientError{Err: err}
		}
	}
	return err
}
