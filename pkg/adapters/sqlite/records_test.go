package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadenzahq/cadenza/pkg/adapters/sqlite"
	"github.com/cadenzahq/cadenza/pkg/ports"
)

func openSeeded(t *testing.T) *sqlite.Records {
	t.Helper()
	records, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { records.Close() })
	require.NoError(t, records.Bootstrap(context.Background()))
	return records
}

func TestGetCustomer(t *testing.T) {
	records := openSeeded(t)

	customer, err := records.GetCustomer(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "Astrid", customer.FirstName)
	assert.Equal(t, "astrid.gruber@example.com", customer.Email)

	_, err = records.GetCustomer(context.Background(), 12345)
	assert.ErrorIs(t, err, ports.ErrRecordNotFound)
}

func TestUpdateCustomer(t *testing.T) {
	records := openSeeded(t)
	ctx := context.Background()

	require.NoError(t, records.UpdateCustomer(ctx, 42, "Phone", "+43 1 9999999"))

	customer, err := records.GetCustomer(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "+43 1 9999999", customer.Phone)

	err = records.UpdateCustomer(ctx, 42, "LastName", "Hacked")
	assert.Error(t, err, "only whitelisted fields are editable")

	err = records.UpdateCustomer(ctx, 12345, "Email", "x@y.com")
	assert.ErrorIs(t, err, ports.ErrRecordNotFound)
}

func TestPastInvoices(t *testing.T) {
	records := openSeeded(t)

	lines, err := records.PastInvoices(context.Background(), 42, 5)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "Back To Black", lines[0].TrackName, "newest invoice first")
	assert.Equal(t, "Rehab", lines[1].TrackName)

	lines, err = records.PastInvoices(context.Background(), 42, 1)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestAlbumsByArtist(t *testing.T) {
	records := openSeeded(t)

	albums, err := records.AlbumsByArtist(context.Background(), "winehouse")
	require.NoError(t, err)
	require.Len(t, albums, 2)
	assert.Equal(t, "Amy Winehouse", albums[0].Artist)
}

func TestSearchTracks_EscapesLikeMetacharacters(t *testing.T) {
	records := openSeeded(t)

	// A bare "%" would match every track if it reached LIKE unescaped.
	tracks, err := records.SearchTracks(context.Background(), "%")
	require.NoError(t, err)
	assert.Empty(t, tracks)

	tracks, err = records.SearchTracks(context.Background(), "rehab")
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "Rehab", tracks[0].Name)
	assert.Equal(t, "Amy Winehouse", tracks[0].Artist)
}

func TestTracksByArtist(t *testing.T) {
	records := openSeeded(t)

	tracks, err := records.TracksByArtist(context.Background(), "led zeppelin")
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "Stairway To Heaven", tracks[0].Name)
}
