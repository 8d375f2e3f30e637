package repository

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOTPStore keeps one pending sign-up code per email as a Redis hash
// {h: code hash, tries: failed attempts} that expires with the code.
type RedisOTPStore struct {
	rdb         *redis.Client
	prefix      string
	maxAttempts int
}

func NewRedisOTPStore(rdb *redis.Client, prefix string, maxAttempts int) *RedisOTPStore {
	if prefix == "" {
		prefix = "otp"
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &RedisOTPStore{rdb: rdb, prefix: prefix, maxAttempts: maxAttempts}
}

func (s *RedisOTPStore) Key(email string) string {
	return s.prefix + ":" + strings.ToLower(strings.TrimSpace(email))
}

// PutOTP replaces any pending code for email.
func (s *RedisOTPStore) PutOTP(ctx context.Context, email, codeHash string, ttl time.Duration) error {
	key := s.Key(email)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, "h", codeHash, "tries", 0)
		p.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	return nil
}

// CheckOTP consumes the pending code when codeHash matches. A miss counts
// as an attempt; the code is discarded after maxAttempts misses.
func (s *RedisOTPStore) CheckOTP(ctx context.Context, email, codeHash string) error {
	key := s.Key(email)
	stored, err := s.rdb.HGet(ctx, key, "h").Result()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load otp: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(codeHash)) == 1 {
		if err := s.rdb.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("consume otp: %w", err)
		}
		return nil
	}
	tries, err := s.rdb.HIncrBy(ctx, key, "tries", 1).Result()
	if err != nil {
		return fmt.Errorf("count otp attempt: %w", err)
	}
	if tries >= int64(s.maxAttempts) {
		_ = s.rdb.Del(ctx, key).Err()
	}
	return ErrOTPMismatch
}

type pendingOTP struct {
	hash  string
	exp   time.Time
	tries int
}

// MemoryOTPStore is the process-local counterpart of RedisOTPStore.
type MemoryOTPStore struct {
	mu          sync.Mutex
	codes       map[string]pendingOTP
	maxAttempts int
	now         func() time.Time
}

func NewMemoryOTPStore(maxAttempts int) *MemoryOTPStore {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &MemoryOTPStore{codes: map[string]pendingOTP{}, maxAttempts: maxAttempts, now: time.Now}
}

func (s *MemoryOTPStore) PutOTP(_ context.Context, email, codeHash string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[strings.ToLower(strings.TrimSpace(email))] = pendingOTP{hash: codeHash, exp: s.now().Add(ttl)}
	return nil
}

func (s *MemoryOTPStore) CheckOTP(_ context.Context, email, codeHash string) error {
	key := strings.ToLower(strings.TrimSpace(email))
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.codes[key]
	if !ok || !s.now().Before(p.exp) {
		delete(s.codes, key)
		return ErrNotFound
	}
	if subtle.ConstantTimeCompare([]byte(p.hash), []byte(codeHash)) == 1 {
		delete(s.codes, key)
		return nil
	}
	p.tries++
	if p.tries >= s.maxAttempts {
		delete(s.codes, key)
	} else {
		s.codes[key] = p
	}
	return ErrOTPMismatch
}

// Pending reports how many codes are waiting.
func (s *MemoryOTPStore) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes)
}
