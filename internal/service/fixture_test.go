package service_test

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quickcourt/reservation-core/internal/model"
	"github.com/quickcourt/reservation-core/internal/repository"
	"github.com/quickcourt/reservation-core/internal/service"
)

const (
	adminID    uint64 = 1
	ownerID    uint64 = 10
	rivalOwner uint64 = 11
	player1    uint64 = 100
	player2    uint64 = 101

	venueID      uint64 = 1
	otherVenueID uint64 = 2
	courtID      uint64 = 1
	badmintonID  uint64 = 2
	closedCourt  uint64 = 3
	otherCourtID uint64 = 20

	hourlyCents int64 = 4000
	feeCents    int64 = 500
)

// day is a Saturday; the fixture clock starts the day before.
var day = model.Date{Year: 2024, Month: time.June, Day: 1}

var (
	admin     = model.Actor{UserID: adminID, Role: model.RoleAdmin}
	owner     = model.Actor{UserID: ownerID, Role: model.RoleFacilityOwner}
	rival     = model.Actor{UserID: rivalOwner, Role: model.RoleFacilityOwner}
	firstUser = model.Actor{UserID: player1, Role: model.RoleUser}
	otherUser = model.Actor{UserID: player2, Role: model.RoleUser}
)

type setup struct {
	policy service.Policy
	cache  service.WindowCache
	venue  func(*model.Venue)
}

type fixture struct {
	mem     *repository.Memory
	catalog *service.Catalog
	avail   *service.Availability
	ledger  *service.Ledger
	orch    *service.Orchestrator

	mu    sync.Mutex
	clock time.Time
}

func newFixture(t *testing.T, s setup) *fixture {
	t.Helper()
	if s.policy == (service.Policy{}) {
		s.policy = service.Policy{ServiceFeeCents: feeCents}
	}
	hours := map[time.Weekday]model.OpeningHours{}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		hours[wd] = model.OpeningHours{Open: 6 * time.Hour, Close: 22 * time.Hour}
	}
	venue := model.Venue{
		ID: venueID, OwnerID: ownerID, Name: "Elite Tennis Center", Location: "Downtown",
		Hours: hours, SlotGranularity: 30 * time.Minute, IsActive: true,
	}
	if s.venue != nil {
		s.venue(&venue)
	}

	mem := repository.NewMemory()
	mem.PutVenue(venue)
	mem.PutCourt(model.Court{ID: courtID, VenueID: venueID, Name: "Court 1", Sport: "tennis", HourlyPriceCents: hourlyCents, MaxPlayers: 4, IsActive: true})
	mem.PutCourt(model.Court{ID: badmintonID, VenueID: venueID, Name: "Court 2", Sport: "badminton", HourlyPriceCents: 2000, MaxPlayers: 4, IsActive: true})
	mem.PutCourt(model.Court{ID: closedCourt, VenueID: venueID, Name: "Court 3", Sport: "tennis", HourlyPriceCents: hourlyCents, IsActive: false})
	mem.PutVenue(model.Venue{ID: otherVenueID, OwnerID: rivalOwner, Name: "Smash Hall", Hours: hours, IsActive: true})
	mem.PutCourt(model.Court{ID: otherCourtID, VenueID: otherVenueID, Name: "Hall A", Sport: "badminton", HourlyPriceCents: 3000, IsActive: true})

	f := &fixture{mem: mem, clock: time.Date(2024, time.May, 31, 9, 0, 0, 0, time.UTC)}
	now := func() time.Time {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.clock
	}
	f.catalog = service.NewCatalog(mem, nil)
	f.avail = service.NewAvailability(f.catalog, mem, s.cache, s.policy, now, nil)
	f.ledger = service.NewLedger(f.catalog, f.avail, mem, s.policy, now, nil)
	f.orch = service.NewOrchestrator(f.catalog, f.avail, f.ledger, s.policy, now, nil)
	f.ledger.Subscribe(f.avail)
	return f
}

func (f *fixture) setClock(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = t
}

func at(clock string) time.Duration {
	d, err := model.ParseClock(clock)
	if err != nil {
		panic(err)
	}
	return d
}

func span(from, to string) model.TimeSlot {
	return model.TimeSlot{Date: day, Start: at(from), End: at(to)}
}

func (f *fixture) book(user uint64, start string, d time.Duration) (service.BookingResult, error) {
	return f.orch.Book(context.Background(), service.BookRequest{
		CourtID: courtID, Date: day, Start: at(start), Duration: d, UserID: user, PlayerCount: 2,
	})
}

func (f *fixture) mustBook(t *testing.T, user uint64, start string, d time.Duration) model.Reservation {
	t.Helper()
	res, err := f.book(user, start, d)
	require.NoError(t, err)
	return res.Reservation
}

func (f *fixture) windows(t *testing.T) []model.TimeSlot {
	t.Helper()
	seq, err := f.avail.FreeWindows(context.Background(), courtID, day)
	require.NoError(t, err)
	return slices.Collect(seq)
}

// recorder is an Observer that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []model.ReservationEvent
}

func (r *recorder) ReservationChanged(_ context.Context, ev model.ReservationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []model.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}
