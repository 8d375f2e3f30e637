package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickcourt/reservation-core/internal/model"
)

func TestLoadSeed_BuiltIn(t *testing.T) {
	s, err := LoadSeed("")
	require.NoError(t, err)
	assert.NotEmpty(t, s.Users)
	assert.NotEmpty(t, s.Venues)
}

func TestMemoryApply_BuiltInSeed(t *testing.T) {
	s, err := LoadSeed("")
	require.NoError(t, err)
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Apply(ctx, s, 4))

	owner, err := m.GetByEmail(ctx, "owner@quickcourt.local")
	require.NoError(t, err)
	assert.Equal(t, model.RoleFacilityOwner, owner.Role)
	assert.True(t, owner.EmailVerified, "seeded accounts skip the sign-up code")

	v, err := m.GetVenue(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, v.OwnerID)
	assert.Equal(t, 30*time.Minute, v.Granularity())
	h, ok := v.HoursOn(model.Date{Year: 2024, Month: time.June, Day: 3})
	require.True(t, ok, "Mondays are open")
	assert.Equal(t, 6*time.Hour, h.Open)
	assert.Equal(t, 23*time.Hour, h.Close)

	c, err := m.GetCourt(ctx, 3)
	require.NoError(t, err)
	assert.False(t, c.IsActive)

	// applying twice keeps the accounts
	require.NoError(t, m.Apply(ctx, s, 4))
}

func TestLoadSeed_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	doc := `{
	  "users": [{"email": "o@x.io", "name": "O", "password": "pw1234", "role": "facility_owner"}],
	  "venues": [{
	    "id": 5, "owner_email": "o@x.io", "name": "Court Hub", "inactive": true,
	    "hours": {"Friday": {"open": "08:00", "close": "20:00"}},
	    "courts": [{"id": 50, "name": "A", "sport": "Padel", "hourly_price_cents": 3000}]
	  }]
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	s, err := LoadSeed(path)
	require.NoError(t, err)
	m := NewMemory()
	require.NoError(t, m.Apply(context.Background(), s, 4))

	v, err := m.GetVenue(context.Background(), 5)
	require.NoError(t, err)
	assert.False(t, v.IsActive)
	assert.Equal(t, model.OpeningHours{Open: 8 * time.Hour, Close: 20 * time.Hour}, v.Hours[time.Friday])

	c, err := m.GetCourt(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, "padel", c.Sport)
	assert.False(t, c.IsActive, "courts of an inactive venue are inactive")
}

func TestLoadSeed_Errors(t *testing.T) {
	_, err := LoadSeed(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := Seed{Venues: []SeedVenue{{ID: 1, Hours: map[string]SeedHours{"funday": {Open: "08:00", Close: "20:00"}}}}}
	assert.Error(t, NewMemory().Apply(context.Background(), bad, 4))

	badRole := Seed{Users: []SeedUser{{Email: "a@b.c", Password: "x", Role: "root"}}}
	assert.Error(t, NewMemory().Apply(context.Background(), badRole, 4))

	noOwner := Seed{Venues: []SeedVenue{{ID: 1, OwnerEmail: "ghost@x.io"}}}
	assert.ErrorIs(t, NewMemory().Apply(context.Background(), noOwner, 4), ErrNotFound)
}
