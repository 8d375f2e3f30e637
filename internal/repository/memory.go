package repository

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/quickcourt/reservation-core/internal/model"
	"github.com/quickcourt/reservation-core/internal/utils"
)

type dayKey struct {
	court uint64
	day   model.Date
}

// Memory keeps the catalog, the ledger and accounts in process memory.
// Reservation inserts are serialised per (court, date) by a dedicated
// mutex held across the overlap check and the insert.
type Memory struct {
	mu           sync.RWMutex
	venues       map[uint64]model.Venue
	courts       map[uint64]model.Court
	reservations map[string]model.Reservation
	byDay        map[dayKey][]string
	users        map[uint64]model.User
	tokens       map[string]model.RefreshToken
	nextUserID   uint64
	nextTokenID  uint64

	dayLocks sync.Map // dayKey -> *sync.Mutex
}

func NewMemory() *Memory {
	return &Memory{
		venues:       map[uint64]model.Venue{},
		courts:       map[uint64]model.Court{},
		reservations: map[string]model.Reservation{},
		byDay:        map[dayKey][]string{},
		users:        map[uint64]model.User{},
		tokens:       map[string]model.RefreshToken{},
	}
}

// ---- Catalog ----

// PutVenue inserts or replaces a venue. CourtIDs is maintained by PutCourt.
func (m *Memory) PutVenue(v model.Venue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v.CourtIDs = nil
	for _, c := range m.courts {
		if c.VenueID == v.ID {
			v.CourtIDs = append(v.CourtIDs, c.ID)
		}
	}
	slices.Sort(v.CourtIDs)
	v.Hours = maps.Clone(v.Hours)
	m.venues[v.ID] = v
}

// PutCourt inserts or replaces a court and links it to its venue.
func (m *Memory) PutCourt(c model.Court) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courts[c.ID] = c
	if v, ok := m.venues[c.VenueID]; ok && !slices.Contains(v.CourtIDs, c.ID) {
		v.CourtIDs = append(slices.Clone(v.CourtIDs), c.ID)
		m.venues[c.VenueID] = v
	}
}

func (m *Memory) GetVenue(_ context.Context, id uint64) (model.Venue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.venues[id]
	if !ok {
		return model.Venue{}, ErrNotFound
	}
	return cloneVenue(v), nil
}

func (m *Memory) GetCourt(_ context.Context, id uint64) (model.Court, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.courts[id]
	if !ok {
		return model.Court{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) ListCourts(_ context.Context, venueID uint64) ([]model.Court, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.Court{}
	for _, c := range m.courts {
		if c.VenueID == venueID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b model.Court) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *Memory) ListVenues(_ context.Context, q model.VenueQuery) ([]model.Venue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text := strings.ToLower(strings.TrimSpace(q.Text))
	out := []model.Venue{}
	for _, v := range m.venues {
		if text != "" && !strings.Contains(strings.ToLower(v.Name), text) &&
			!strings.Contains(strings.ToLower(v.Location), text) {
			continue
		}
		if q.Sport != "" && !m.offersSport(v.ID, q.Sport) {
			continue
		}
		out = append(out, cloneVenue(v))
	}
	slices.SortFunc(out, func(a, b model.Venue) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *Memory) offersSport(venueID uint64, sport string) bool {
	for _, c := range m.courts {
		if c.VenueID == venueID && c.IsActive && strings.EqualFold(c.Sport, sport) {
			return true
		}
	}
	return false
}

func (m *Memory) SetVenueActive(_ context.Context, venueID uint64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.venues[venueID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	v.IsActive = active
	v.UpdatedAt = now
	m.venues[venueID] = v
	for id, c := range m.courts {
		if c.VenueID == venueID {
			c.IsActive = active
			c.UpdatedAt = now
			m.courts[id] = c
		}
	}
	return nil
}

func cloneVenue(v model.Venue) model.Venue {
	v.Hours = maps.Clone(v.Hours)
	v.CourtIDs = slices.Clone(v.CourtIDs)
	return v
}

// ---- Reservations ----

func (m *Memory) dayLock(k dayKey) *sync.Mutex {
	l, _ := m.dayLocks.LoadOrStore(k, &sync.Mutex{})
	return l.(*sync.Mutex)
}

func (m *Memory) InsertIfFree(ctx context.Context, r model.Reservation) (model.Reservation, error) {
	k := dayKey{court: r.CourtID, day: r.Date}
	lock := m.dayLock(k)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return model.Reservation{}, err
	}

	m.mu.RLock()
	for _, id := range m.byDay[k] {
		existing := m.reservations[id]
		if existing.Status.Blocking() && existing.Slot().Overlaps(r.Slot()) {
			m.mu.RUnlock()
			return model.Reservation{}, ErrConflict
		}
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservations[r.ID] = r
	m.byDay[k] = append(m.byDay[k], r.ID)
	return r, nil
}

func (m *Memory) Get(_ context.Context, id string) (model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reservations[id]
	if !ok {
		return model.Reservation{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) ListBlocking(_ context.Context, courtID uint64, d model.Date) ([]model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.Reservation{}
	for _, id := range m.byDay[dayKey{court: courtID, day: d}] {
		if r := m.reservations[id]; r.Status.Blocking() {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b model.Reservation) int { return cmp.Compare(a.Start, b.Start) })
	return out, nil
}

func (m *Memory) List(_ context.Context, f model.ReservationFilter) ([]model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.Reservation{}
	for _, r := range m.reservations {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	sortReservations(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// sortReservations orders by date, then start, then creation.
func sortReservations(rs []model.Reservation) {
	slices.SortFunc(rs, func(a, b model.Reservation) int {
		if a.Date != b.Date {
			if a.Date.Before(b.Date) {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(a.Start, b.Start); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

func (m *Memory) UpdateStatus(_ context.Context, id string, from, to model.Status, at time.Time) (model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return model.Reservation{}, ErrNotFound
	}
	if r.Status != from {
		return model.Reservation{}, ErrStale
	}
	r.Status = to
	r.UpdatedAt = at
	m.reservations[id] = r
	return r, nil
}

// ---- Accounts ----

func (m *Memory) Create(_ context.Context, email, name, password string, role model.Role, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return 0, ErrEmailExists
		}
	}
	m.nextUserID++
	now := time.Now().UTC()
	m.users[m.nextUserID] = model.User{
		ID: m.nextUserID, Email: email, Name: name, PasswordHash: hash,
		Role: role, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	return m.nextUserID, nil
}

func (m *Memory) GetByEmail(_ context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (m *Memory) GetByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) MarkVerified(_ context.Context, id uint64) error {
	return m.updateUser(id, func(u *model.User) { u.EmailVerified = true })
}

func (m *Memory) SetActive(_ context.Context, id uint64, active bool) error {
	return m.updateUser(id, func(u *model.User) { u.IsActive = active })
}

func (m *Memory) updateUser(id uint64, fn func(*model.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return nil
}

func (m *Memory) ListUsers(_ context.Context, q model.UserQuery) ([]model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.User
	for _, u := range m.users {
		if q.Match(u) {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b model.User) int { return cmp.Compare(a.ID, b.ID) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Memory) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTokenID++
	m.tokens[tokenHash] = model.RefreshToken{
		ID: m.nextTokenID, UserID: userID, TokenHash: tokenHash, ExpiresAt: exp, CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (m *Memory) ValidateRefresh(_ context.Context, tokenHash string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[tokenHash]
	if !ok || t.RevokedAt != nil || time.Now().UTC().After(t.ExpiresAt) {
		return 0, ErrNotFound
	}
	return t.UserID, nil
}

func (m *Memory) RevokeByHash(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[tokenHash]; ok && t.RevokedAt == nil {
		now := time.Now().UTC()
		t.RevokedAt = &now
		m.tokens[tokenHash] = t
	}
	return nil
}

func (m *Memory) RevokeAllForUser(_ context.Context, userID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for h, t := range m.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			m.tokens[h] = t
		}
	}
	return nil
}
