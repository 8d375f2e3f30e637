package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickcourt/reservation-core/internal/model"
)

var memDay = model.Date{Year: 2024, Month: time.June, Day: 1}

func reservation(id string, court uint64, start, dur time.Duration) model.Reservation {
	return model.Reservation{
		ID: id, CourtID: court, VenueID: 1, UserID: 100, Date: memDay,
		Start: start, Duration: dur, Status: model.StatusPending,
	}
}

func TestMemory_InsertIfFree(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.InsertIfFree(ctx, reservation("a", 1, 15*time.Hour, time.Hour))
	require.NoError(t, err)

	_, err = m.InsertIfFree(ctx, reservation("b", 1, 15*time.Hour+30*time.Minute, time.Hour))
	assert.ErrorIs(t, err, ErrConflict)

	_, err = m.InsertIfFree(ctx, reservation("c", 1, 16*time.Hour, time.Hour))
	assert.NoError(t, err, "back-to-back")

	_, err = m.InsertIfFree(ctx, reservation("d", 2, 15*time.Hour, time.Hour))
	assert.NoError(t, err, "other court")

	next := reservation("e", 1, 15*time.Hour, time.Hour)
	next.Date = memDay.AddDays(1)
	_, err = m.InsertIfFree(ctx, next)
	assert.NoError(t, err, "other day")
}

func TestMemory_CancelledRowsDoNotBlock(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_, err := m.InsertIfFree(ctx, reservation("a", 1, 15*time.Hour, time.Hour))
	require.NoError(t, err)

	_, err = m.UpdateStatus(ctx, "a", model.StatusPending, model.StatusCancelled, time.Now())
	require.NoError(t, err)

	_, err = m.InsertIfFree(ctx, reservation("b", 1, 15*time.Hour, time.Hour))
	require.NoError(t, err)

	booked, err := m.ListBlocking(ctx, 1, memDay)
	require.NoError(t, err)
	require.Len(t, booked, 1)
	assert.Equal(t, "b", booked[0].ID)
}

func TestMemory_ConcurrentInsertsOneWinner(t *testing.T) {
	m := NewMemory()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.InsertIfFree(context.Background(), reservation(fmt.Sprint(i), 1, 10*time.Hour, time.Hour)); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
}

func TestMemory_InsertHonoursContext(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.InsertIfFree(ctx, reservation("a", 1, 10*time.Hour, time.Hour))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemory_UpdateStatusIsCompareAndSet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_, err := m.InsertIfFree(ctx, reservation("a", 1, 10*time.Hour, time.Hour))
	require.NoError(t, err)

	at := time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)
	r, err := m.UpdateStatus(ctx, "a", model.StatusPending, model.StatusConfirmed, at)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, r.Status)
	assert.Equal(t, at, r.UpdatedAt)

	_, err = m.UpdateStatus(ctx, "a", model.StatusPending, model.StatusCancelled, at)
	assert.ErrorIs(t, err, ErrStale)

	_, err = m.UpdateStatus(ctx, "missing", model.StatusPending, model.StatusCancelled, at)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_ListFiltersAndOrders(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for _, r := range []model.Reservation{
		reservation("late", 1, 18*time.Hour, time.Hour),
		reservation("early", 1, 8*time.Hour, time.Hour),
		reservation("other", 2, 9*time.Hour, time.Hour),
	} {
		_, err := m.InsertIfFree(ctx, r)
		require.NoError(t, err)
	}
	tomorrow := reservation("tomorrow", 1, 7*time.Hour, time.Hour)
	tomorrow.Date = memDay.AddDays(1)
	_, err := m.InsertIfFree(ctx, tomorrow)
	require.NoError(t, err)

	rs, err := m.List(ctx, model.ReservationFilter{CourtID: 1})
	require.NoError(t, err)
	ids := make([]string, len(rs))
	for i, r := range rs {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"early", "late", "tomorrow"}, ids)

	rs, err = m.List(ctx, model.ReservationFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, rs, 2)

	rs, err = m.List(ctx, model.ReservationFilter{From: memDay.AddDays(1)})
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "tomorrow", rs[0].ID)
}

func TestMemory_Accounts(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id, err := m.Create(ctx, " Player@Example.com ", "Player", "secret1", model.RoleUser, 4)
	require.NoError(t, err)
	_, err = m.Create(ctx, "player@example.com", "Dup", "secret1", model.RoleUser, 4)
	assert.ErrorIs(t, err, ErrEmailExists)

	u, err := m.GetByEmail(ctx, "PLAYER@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.True(t, u.IsActive)
	assert.False(t, u.EmailVerified)
	assert.NotEqual(t, "secret1", u.PasswordHash)

	_, err = m.GetByID(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.MarkVerified(ctx, id))
	require.NoError(t, m.SetActive(ctx, id, false))
	u, err = m.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, u.EmailVerified)
	assert.False(t, u.IsActive)
	assert.ErrorIs(t, m.SetActive(ctx, 42, true), ErrNotFound)
}

func TestMemory_ListUsers(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for _, u := range []struct {
		email, name string
		role        model.Role
	}{
		{"ana@example.com", "Ana Silva", model.RoleUser},
		{"owner@example.com", "Olga", model.RoleFacilityOwner},
		{"ben@example.com", "Ben", model.RoleUser},
	} {
		_, err := m.Create(ctx, u.email, u.name, "secret1", u.role, 4)
		require.NoError(t, err)
	}
	require.NoError(t, m.SetActive(ctx, 3, false))

	all, err := m.ListUsers(ctx, model.UserQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, uint64(1), all[0].ID, "ordered by id")

	players, err := m.ListUsers(ctx, model.UserQuery{Role: model.RoleUser})
	require.NoError(t, err)
	assert.Len(t, players, 2)

	active := true
	found, err := m.ListUsers(ctx, model.UserQuery{Search: "SILVA", Active: &active})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "ana@example.com", found[0].Email)

	limited, err := m.ListUsers(ctx, model.UserQuery{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMemory_RefreshTokens(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.StoreRefresh(ctx, 7, "h1", time.Now().Add(time.Hour)))
	require.NoError(t, m.StoreRefresh(ctx, 7, "h2", time.Now().Add(time.Hour)))
	require.NoError(t, m.StoreRefresh(ctx, 8, "expired", time.Now().Add(-time.Minute)))

	uid, err := m.ValidateRefresh(ctx, "h1")
	require.NoError(t, err)
	assert.EqualValues(t, 7, uid)
	_, err = m.ValidateRefresh(ctx, "expired")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.RevokeByHash(ctx, "h1"))
	_, err = m.ValidateRefresh(ctx, "h1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.RevokeAllForUser(ctx, 7))
	_, err = m.ValidateRefresh(ctx, "h2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_SetVenueActiveCascades(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.PutVenue(model.Venue{ID: 1, IsActive: true})
	m.PutCourt(model.Court{ID: 1, VenueID: 1, IsActive: true})
	m.PutCourt(model.Court{ID: 2, VenueID: 1, IsActive: true})

	v, err := m.GetVenue(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, v.CourtIDs)

	require.NoError(t, m.SetVenueActive(ctx, 1, false))
	courts, err := m.ListCourts(ctx, 1)
	require.NoError(t, err)
	for _, c := range courts {
		assert.False(t, c.IsActive)
	}
	assert.ErrorIs(t, m.SetVenueActive(ctx, 9, false), ErrNotFound)
}
