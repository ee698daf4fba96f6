package sqlite

import (
	"context"
	"fmt"
)

// schemaDDL is the subset of the Chinook schema the record store touches.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS Artist (
		ArtistId INTEGER PRIMARY KEY,
		Name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS Album (
		AlbumId INTEGER PRIMARY KEY,
		Title TEXT NOT NULL,
		ArtistId INTEGER NOT NULL REFERENCES Artist(ArtistId)
	)`,
	`CREATE TABLE IF NOT EXISTS Track (
		TrackId INTEGER PRIMARY KEY,
		Name TEXT NOT NULL,
		AlbumId INTEGER REFERENCES Album(AlbumId)
	)`,
	`CREATE TABLE IF NOT EXISTS Customer (
		CustomerId INTEGER PRIMARY KEY,
		FirstName TEXT NOT NULL,
		LastName TEXT NOT NULL,
		Address TEXT,
		City TEXT,
		Country TEXT,
		Phone TEXT,
		Email TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS Invoice (
		InvoiceId INTEGER PRIMARY KEY,
		CustomerId INTEGER NOT NULL REFERENCES Customer(CustomerId),
		InvoiceDate TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS InvoiceLine (
		InvoiceLineId INTEGER PRIMARY KEY,
		InvoiceId INTEGER NOT NULL REFERENCES Invoice(InvoiceId),
		TrackId INTEGER NOT NULL REFERENCES Track(TrackId),
		UnitPrice REAL NOT NULL,
		Quantity INTEGER NOT NULL
	)`,
}

var seedDML = []string{
	`INSERT INTO Artist (ArtistId, Name) VALUES
		(1, 'Amy Winehouse'),
		(2, 'Led Zeppelin')`,
	`INSERT INTO Album (AlbumId, Title, ArtistId) VALUES
		(1, 'Back To Black', 1),
		(2, 'Frank', 1),
		(3, 'Led Zeppelin IV', 2)`,
	`INSERT INTO Track (TrackId, Name, AlbumId) VALUES
		(1, 'Rehab', 1),
		(2, 'Back To Black', 1),
		(3, 'Stairway To Heaven', 3)`,
	`INSERT INTO Customer (CustomerId, FirstName, LastName, Address, City, Country, Phone, Email) VALUES
		(42, 'Astrid', 'Gruber', 'Rotenturmstrasse 4, 1010 Innere Stadt', 'Vienna', 'Austria', '+43 1 5134505', 'astrid.gruber@example.com'),
		(7, 'Leonie', 'Koehler', 'Theodor-Heuss-Strasse 34', 'Stuttgart', 'Germany', '+49 0711 2842222', 'leonekohler@surfeu.de')`,
	`INSERT INTO Invoice (InvoiceId, CustomerId, InvoiceDate) VALUES
		(316, 42, '2025-06-19'),
		(290, 42, '2025-02-14')`,
	`INSERT INTO InvoiceLine (InvoiceLineId, InvoiceId, TrackId, UnitPrice, Quantity) VALUES
		(1, 316, 2, 0.99, 1),
		(2, 290, 1, 0.99, 1)`,
}

// Bootstrap creates the schema if missing and seeds demo data when the
// database is empty. Safe to call on an existing Chinook database.
func (r *Records) Bootstrap(ctx context.Context) error {
	for _, ddl := range schemaDDL {
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	var customers int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM Customer`).Scan(&customers); err != nil {
		return fmt.Errorf("inspect database: %w", err)
	}
	if customers > 0 {
		return nil
	}

	for _, dml := range seedDML {
		if _, err := r.db.ExecContext(ctx, dml); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}
	return nil
}
