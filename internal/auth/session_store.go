package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"fileportal/internal/cache"
)

const sessionKeyPrefix = "session:"

// ErrSessionNotFound is returned when a session id is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore keeps the server-side record of live sessions so that logout
// invalidates a token before it expires.
type SessionStore interface {
	Save(ctx context.Context, sessionID string, userID uint, ttl time.Duration) error
	Lookup(ctx context.Context, sessionID string) (uint, error)
	Delete(ctx context.Context, sessionID string) error
}

// RedisSessionStore stores sessions in Redis.
type RedisSessionStore struct {
	cache *cache.Client
}

var _ SessionStore = (*RedisSessionStore)(nil)

// NewRedisSessionStore creates a Redis-backed session store.
func NewRedisSessionStore(cache *cache.Client) *RedisSessionStore {
	return &RedisSessionStore{cache: cache}
}

func (s *RedisSessionStore) Save(ctx context.Context, sessionID string, userID uint, ttl time.Duration) error {
	value := []byte(strconv.FormatUint(uint64(userID), 10))
	if err := s.cache.Set(ctx, sessionKeyPrefix+sessionID, value, ttl); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Lookup(ctx context.Context, sessionID string) (uint, error) {
	data, err := s.cache.Get(ctx, sessionKeyPrefix+sessionID)
	if err != nil {
		return 0, fmt.Errorf("load session: %w", err)
	}
	if data == nil {
		return 0, ErrSessionNotFound
	}
	id, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, ErrSessionNotFound
	}
	return uint(id), nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.cache.Delete(ctx, sessionKeyPrefix+sessionID)
}

type memoryEntry struct {
	userID    uint
	expiresAt time.Time
}

// MemorySessionStore keeps sessions in process memory. Sessions do not
// survive a restart; it is meant for single-instance development setups and tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	now      func() time.Time
}

var _ SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]memoryEntry),
		now:      time.Now,
	}
}

// Save stores the session and drops every expired one, so sessions that are
// never looked up again do not accumulate.
func (s *MemorySessionStore) Save(_ context.Context, sessionID string, userID uint, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, entry := range s.sessions {
		if !now.Before(entry.expiresAt) {
			delete(s.sessions, id)
		}
	}
	s.sessions[sessionID] = memoryEntry{userID: userID, expiresAt: now.Add(ttl)}
	return nil
}

func (s *MemorySessionStore) Lookup(_ context.Context, sessionID string) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return 0, ErrSessionNotFound
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.sessions, sessionID)
		return 0, ErrSessionNotFound
	}
	return entry.userID, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
