package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/conduct-console/internal/config"
)

// ErrRecordNotFound is returned when a session or refresh token is unknown or expired.
var ErrRecordNotFound = errors.New("session record not found")

// RefreshRecord is what an issued refresh token points at.
type RefreshRecord struct {
	UserID    int    `json:"user_id"`
	SessionID string `json:"session_id"`
}

// SessionStore keeps live sessions and their single-use refresh tokens.
type SessionStore interface {
	CreateSession(ctx context.Context, sessionID string, userID int, ttl time.Duration) error
	SessionActive(ctx context.Context, sessionID string) (bool, error)
	DeleteSession(ctx context.Context, sessionID string) error
	SaveRefreshToken(ctx context.Context, token string, rec RefreshRecord, ttl time.Duration) error
	// ConsumeRefreshToken returns and deletes the record in one step, so a token can
	// be exchanged at most once.
	ConsumeRefreshToken(ctx context.Context, token string) (*RefreshRecord, error)
}

// ─── Redis ──────────────────────────────────────────────────────────────────

// RedisSessionStore keeps sessions in Redis so several dev server instances can
// share them.
type RedisSessionStore struct {
	rdb *redis.Client
}

// NewRedisSessionStore creates a RedisSessionStore.
func NewRedisSessionStore(rdb *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb}
}

func (s *RedisSessionStore) CreateSession(ctx context.Context, sessionID string, userID int, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, config.CacheKey.SessionKey(sessionID), userID, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) SessionActive(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, config.CacheKey.SessionKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("check session: %w", err)
	}
	return n == 1, nil
}

func (s *RedisSessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, config.CacheKey.SessionKey(sessionID)).Err()
}

func (s *RedisSessionStore) SaveRefreshToken(ctx context.Context, token string, rec RefreshRecord, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode refresh record: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.RefreshTokenKey(token), raw, ttl)
	pipe.Expire(ctx, config.CacheKey.SessionKey(rec.SessionID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) ConsumeRefreshToken(ctx context.Context, token string) (*RefreshRecord, error) {
	raw, err := s.rdb.GetDel(ctx, config.CacheKey.RefreshTokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}
	var rec RefreshRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode refresh record: %w", err)
	}
	return &rec, nil
}

// ─── Memory ─────────────────────────────────────────────────────────────────

type memoryEntry struct {
	userID    int
	sessionID string
	expiresAt time.Time
}

// MemorySessionStore is the single-process SessionStore.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	refresh  map[string]memoryEntry
	now      func() time.Time
}

// NewMemorySessionStore creates an empty MemorySessionStore.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]memoryEntry),
		refresh:  make(map[string]memoryEntry),
		now:      time.Now,
	}
}

func (s *MemorySessionStore) CreateSession(_ context.Context, sessionID string, userID int, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = memoryEntry{userID: userID, sessionID: sessionID, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemorySessionStore) SessionActive(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return false, nil
	}
	if !e.expiresAt.After(s.now()) {
		delete(s.sessions, sessionID)
		return false, nil
	}
	return true, nil
}

func (s *MemorySessionStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemorySessionStore) SaveRefreshToken(_ context.Context, token string, rec RefreshRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp := s.now().Add(ttl)
	s.refresh[token] = memoryEntry{userID: rec.UserID, sessionID: rec.SessionID, expiresAt: exp}
	if sess, ok := s.sessions[rec.SessionID]; ok {
		sess.expiresAt = exp
		s.sessions[rec.SessionID] = sess
	}
	return nil
}

func (s *MemorySessionStore) ConsumeRefreshToken(_ context.Context, token string) (*RefreshRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.refresh[token]
	if !ok {
		return nil, ErrRecordNotFound
	}
	delete(s.refresh, token)
	if !e.expiresAt.After(s.now()) {
		return nil, ErrRecordNotFound
	}
	return &RefreshRecord{UserID: e.userID, SessionID: e.sessionID}, nil
}

// Sweep drops expired sessions and refresh tokens and returns how many it removed.
func (s *MemorySessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, e := range s.sessions {
		if !e.expiresAt.After(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	for token, e := range s.refresh {
		if !e.expiresAt.After(now) {
			delete(s.refresh, token)
			removed++
		}
	}
	return removed
}
