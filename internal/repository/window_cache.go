package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quickcourt/reservation-core/internal/model"
)

// WindowCache keeps computed free windows in Redis. Each (court, day) has a
// version counter; windows are stored under the version that was current
// when the read started, and writers bump the counter after commit, so a
// window list computed before a write is never served after it.
type WindowCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewWindowCache(rdb *redis.Client, prefix string, ttl time.Duration) *WindowCache {
	if prefix == "" {
		prefix = "avail"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &WindowCache{rdb: rdb, prefix: prefix, ttl: ttl}
}

type cachedWindow struct {
	Start int `json:"s"`
	End   int `json:"e"`
}

// VersionKey never expires; dropping it could resurrect an old version.
func (c *WindowCache) VersionKey(courtID uint64, d model.Date) string {
	return fmt.Sprintf("%s:ver:%d:%s", c.prefix, courtID, d)
}

func (c *WindowCache) DataKey(courtID uint64, d model.Date, version string) string {
	return fmt.Sprintf("%s:win:%d:%s:%s", c.prefix, courtID, d, version)
}

func (c *WindowCache) Load(ctx context.Context, courtID uint64, d model.Date) ([]model.TimeSlot, string, bool, error) {
	version, err := c.rdb.Get(ctx, c.VersionKey(courtID, d)).Result()
	if errors.Is(err, redis.Nil) {
		version = "0"
	} else if err != nil {
		return nil, "", false, err
	}

	raw, err := c.rdb.Get(ctx, c.DataKey(courtID, d, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, version, false, nil
	}
	if err != nil {
		return nil, version, false, err
	}
	var ws []cachedWindow
	if err := json.Unmarshal(raw, &ws); err != nil {
		return nil, version, false, nil
	}
	slots := make([]model.TimeSlot, len(ws))
	for i, w := range ws {
		slots[i] = model.TimeSlot{
			Date:  d,
			Start: time.Duration(w.Start) * time.Minute,
			End:   time.Duration(w.End) * time.Minute,
		}
	}
	return slots, version, true, nil
}

func (c *WindowCache) Store(ctx context.Context, courtID uint64, d model.Date, version string, slots []model.TimeSlot) error {
	body, err := EncodeWindows(slots)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.DataKey(courtID, d, version), body, c.ttl).Err()
}

func (c *WindowCache) Invalidate(ctx context.Context, courtID uint64, d model.Date) error {
	return c.rdb.Incr(ctx, c.VersionKey(courtID, d)).Err()
}

// EncodeWindows is the stored representation of a window list.
func EncodeWindows(slots []model.TimeSlot) (string, error) {
	ws := make([]cachedWindow, len(slots))
	for i, s := range slots {
		ws[i] = cachedWindow{Start: int(s.Start / time.Minute), End: int(s.End / time.Minute)}
	}
	b, err := json.Marshal(ws)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
