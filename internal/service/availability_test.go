package service_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/quickcourt/reservation-core/internal/model"
	"github.com/quickcourt/reservation-core/internal/service"
)

type windowCacheMock struct{ mock.Mock }

func (m *windowCacheMock) Load(ctx context.Context, courtID uint64, d model.Date) ([]model.TimeSlot, string, bool, error) {
	args := m.Called(ctx, courtID, d)
	slots, _ := args.Get(0).([]model.TimeSlot)
	return slots, args.String(1), args.Bool(2), args.Error(3)
}

func (m *windowCacheMock) Store(ctx context.Context, courtID uint64, d model.Date, version string, slots []model.TimeSlot) error {
	return m.Called(ctx, courtID, d, version, slots).Error(0)
}

func (m *windowCacheMock) Invalidate(ctx context.Context, courtID uint64, d model.Date) error {
	return m.Called(ctx, courtID, d).Error(0)
}

func TestFreeWindows_SubtractsBookings(t *testing.T) {
	f := newFixture(t, setup{})
	assert.Equal(t, []model.TimeSlot{span("06:00", "22:00")}, f.windows(t))

	f.mustBook(t, player1, "12:00", 90*time.Minute)
	f.mustBook(t, player2, "08:00", time.Hour)

	want := []model.TimeSlot{span("06:00", "08:00"), span("09:00", "12:00"), span("13:30", "22:00")}
	assert.Equal(t, want, f.windows(t))
}

func TestFreeWindows_IsRestartable(t *testing.T) {
	f := newFixture(t, setup{})
	f.mustBook(t, player1, "10:00", time.Hour)

	seq, err := f.avail.FreeWindows(context.Background(), courtID, day)
	require.NoError(t, err)
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, first, second)

	// stopping early must not disturb later passes
	for range seq {
		break
	}
	assert.Equal(t, first, slices.Collect(seq))
}

func TestFreeWindows_AgreeWithIsFree(t *testing.T) {
	f := newFixture(t, setup{})
	ctx := context.Background()
	f.mustBook(t, player1, "09:00", time.Hour)
	f.mustBook(t, player2, "14:00", 2*time.Hour)

	for _, w := range f.windows(t) {
		ok, err := f.avail.IsFree(ctx, courtID, day, w.Start, w.Duration())
		require.NoError(t, err)
		assert.True(t, ok, "window %s must be free", w)

		ok, err = f.avail.IsFree(ctx, courtID, day, w.Start, w.Duration()+30*time.Minute)
		require.NoError(t, err)
		assert.False(t, ok, "extending %s past its end must collide or close", w)
	}

	// a whole window can be booked, after which it is gone
	ws := f.windows(t)
	_, err := f.orch.Book(ctx, service.BookRequest{
		CourtID: courtID, Date: day, Start: ws[1].Start, Duration: ws[1].Duration(), UserID: player1, PlayerCount: 1,
	})
	require.NoError(t, err)
	assert.Len(t, f.windows(t), len(ws)-1)
}

func TestFreeWindows_CancelledReservationsDoNotBlock(t *testing.T) {
	f := newFixture(t, setup{})
	r := f.mustBook(t, player1, "10:00", time.Hour)
	_, err := f.ledger.Cancel(context.Background(), r.ID, firstUser)
	require.NoError(t, err)
	assert.Equal(t, []model.TimeSlot{span("06:00", "22:00")}, f.windows(t))
}

func TestFreeWindows_ClipsToOpeningHours(t *testing.T) {
	f := newFixture(t, setup{})
	ctx := context.Background()
	// rows written before the hours were shortened may straddle them
	for _, r := range []model.Reservation{
		{ID: "early", CourtID: courtID, VenueID: venueID, Date: day, Start: at("05:00"), Duration: 2 * time.Hour, Status: model.StatusConfirmed},
		{ID: "late", CourtID: courtID, VenueID: venueID, Date: day, Start: at("21:00"), Duration: 2 * time.Hour, Status: model.StatusConfirmed},
	} {
		_, err := f.mem.InsertIfFree(ctx, r)
		require.NoError(t, err)
	}
	assert.Equal(t, []model.TimeSlot{span("07:00", "21:00")}, f.windows(t))
}

func TestFreeWindows_ClosedDay(t *testing.T) {
	f := newFixture(t, setup{venue: func(v *model.Venue) { delete(v.Hours, time.Saturday) }})
	assert.Empty(t, f.windows(t))

	ok, err := f.avail.IsFree(context.Background(), courtID, day, at("10:00"), time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFreeWindows_UnknownOrInactiveCourt(t *testing.T) {
	f := newFixture(t, setup{})
	_, err := f.avail.FreeWindows(context.Background(), 999, day)
	assert.ErrorIs(t, err, service.ErrNotFound)
	_, err = f.avail.FreeWindows(context.Background(), closedCourt, day)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestIsFree(t *testing.T) {
	f := newFixture(t, setup{})
	ctx := context.Background()
	f.mustBook(t, player1, "15:00", time.Hour)

	cases := []struct {
		start string
		dur   time.Duration
		free  bool
	}{
		{"14:00", time.Hour, true},
		{"16:00", time.Hour, true},
		{"14:30", time.Hour, false},
		{"15:30", 30 * time.Minute, false},
		{"21:30", time.Hour, false},
		{"05:30", time.Hour, false},
	}
	for _, tc := range cases {
		ok, err := f.avail.IsFree(ctx, courtID, day, at(tc.start), tc.dur)
		require.NoError(t, err, tc.start)
		assert.Equal(t, tc.free, ok, tc.start)
	}

	_, err := f.avail.IsFree(ctx, courtID, day, at("10:00"), -time.Hour)
	assert.ErrorIs(t, err, service.ErrInvalidRequest)
	_, err = f.avail.IsFree(ctx, courtID, day, at("10:05"), time.Hour)
	assert.ErrorIs(t, err, service.ErrInvalidRequest)
}

func TestFreeWindows_CacheMissStoresUnderReadVersion(t *testing.T) {
	cache := &windowCacheMock{}
	cache.Test(t)
	f := newFixture(t, setup{cache: cache})
	want := []model.TimeSlot{span("06:00", "22:00")}

	cache.On("Load", mock.Anything, courtID, day).Return(nil, "3", false, nil).Once()
	cache.On("Store", mock.Anything, courtID, day, "3", want).Return(nil).Once()

	assert.Equal(t, want, f.windows(t))
	cache.AssertExpectations(t)
}

func TestFreeWindows_CacheHitSkipsTheLedger(t *testing.T) {
	cache := &windowCacheMock{}
	cache.Test(t)
	f := newFixture(t, setup{cache: cache})
	cached := []model.TimeSlot{span("06:00", "10:00")}

	cache.On("Load", mock.Anything, courtID, day).Return(cached, "7", true, nil).Once()

	assert.Equal(t, cached, f.windows(t))
	cache.AssertExpectations(t)
	cache.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFreeWindows_CacheErrorFallsBackToLedger(t *testing.T) {
	cache := &windowCacheMock{}
	cache.Test(t)
	f := newFixture(t, setup{cache: cache})

	cache.On("Load", mock.Anything, courtID, day).Return(nil, "", false, errors.New("connection refused")).Once()

	assert.Equal(t, []model.TimeSlot{span("06:00", "22:00")}, f.windows(t))
	cache.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAvailability_InvalidatesOnCreateAndCancelOnly(t *testing.T) {
	cache := &windowCacheMock{}
	cache.Test(t)
	f := newFixture(t, setup{cache: cache})
	ctx := context.Background()

	cache.On("Invalidate", mock.Anything, courtID, day).Return(nil)

	r := f.mustBook(t, player1, "10:00", time.Hour)
	cache.AssertNumberOfCalls(t, "Invalidate", 1)

	_, err := f.ledger.Apply(ctx, r.ID, model.ActionApprove, owner)
	require.NoError(t, err)
	cache.AssertNumberOfCalls(t, "Invalidate", 1)

	_, err = f.ledger.Cancel(ctx, r.ID, firstUser)
	require.NoError(t, err)
	cache.AssertNumberOfCalls(t, "Invalidate", 2)
}

func TestAvailability_InvalidateFailureDoesNotFailTheBooking(t *testing.T) {
	cache := &windowCacheMock{}
	cache.Test(t)
	f := newFixture(t, setup{cache: cache})

	cache.On("Invalidate", mock.Anything, courtID, day).Return(errors.New("redis down"))

	_, err := f.book(player1, "10:00", time.Hour)
	assert.NoError(t, err)
}
