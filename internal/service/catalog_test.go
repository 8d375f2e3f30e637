package service_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickcourt/reservation-core/internal/model"
	"github.com/quickcourt/reservation-core/internal/service"
)

func TestListAvailableCourts(t *testing.T) {
	f := newFixture(t, setup{})
	ctx := context.Background()

	courts, err := f.catalog.ListAvailableCourts(ctx, venueID, "")
	require.NoError(t, err)
	ids := []uint64{}
	for _, c := range courts {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []uint64{courtID, badmintonID}, ids, "inactive courts are hidden")

	courts, err = f.catalog.ListAvailableCourts(ctx, venueID, "Badminton")
	require.NoError(t, err)
	require.Len(t, courts, 1)
	assert.Equal(t, badmintonID, courts[0].ID)

	_, err = f.catalog.ListAvailableCourts(ctx, 999, "")
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestListVenues(t *testing.T) {
	f := newFixture(t, setup{})
	ctx := context.Background()

	vs, err := f.catalog.ListVenues(ctx, model.VenueQuery{})
	require.NoError(t, err)
	assert.Len(t, vs, 2)

	vs, err = f.catalog.ListVenues(ctx, model.VenueQuery{Text: "smash"})
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, otherVenueID, vs[0].ID)

	vs, err = f.catalog.ListVenues(ctx, model.VenueQuery{Sport: "tennis"})
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, venueID, vs[0].ID)
}

func TestSetVenueActive(t *testing.T) {
	f := newFixture(t, setup{})
	ctx := context.Background()

	err := f.catalog.SetVenueActive(ctx, venueID, false, owner)
	assert.ErrorIs(t, err, service.ErrUnauthorized)

	require.NoError(t, f.catalog.SetVenueActive(ctx, venueID, false, admin))

	_, err = f.book(player1, "10:00", time.Hour)
	assert.ErrorIs(t, err, service.ErrNotFound, "deactivated venue cannot be booked")
	courts, err := f.catalog.ListAvailableCourts(ctx, venueID, "")
	require.NoError(t, err)
	assert.Empty(t, courts)
	vs, err := f.catalog.ListVenues(ctx, model.VenueQuery{})
	require.NoError(t, err)
	assert.Len(t, vs, 1)

	require.NoError(t, f.catalog.SetVenueActive(ctx, venueID, true, admin))
	f.mustBook(t, player1, "10:00", time.Hour)

	err = f.catalog.SetVenueActive(ctx, 999, true, admin)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestGetCourtIgnoresActiveFlag(t *testing.T) {
	f := newFixture(t, setup{})
	c, err := f.catalog.GetCourt(context.Background(), closedCourt)
	require.NoError(t, err)
	assert.False(t, c.IsActive)

	_, err = f.catalog.GetCourt(context.Background(), 999)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestReceiptAndQRCode(t *testing.T) {
	f := newFixture(t, setup{})
	ctx := context.Background()
	r := f.mustBook(t, player1, "10:00", time.Hour)

	pdf, got, err := f.orch.Receipt(ctx, r.ID, firstUser)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))

	png, _, err := f.orch.QRCode(ctx, r.ID, owner)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	_, _, err = f.orch.Receipt(ctx, r.ID, otherUser)
	assert.ErrorIs(t, err, service.ErrUnauthorized)
}
