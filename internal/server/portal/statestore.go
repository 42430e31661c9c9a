package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scukconnect/clientportal/internal/common"
)

// StateEntry is what an OAuth state value resolves back to at callback time.
type StateEntry struct {
	AccountID int64 `json:"account_id"`
	Admin     bool  `json:"admin"`
}

// StateStore holds pending OAuth states between initiate and callback.
// Take removes the entry; a state can be redeemed once.
type StateStore interface {
	Put(ctx context.Context, state string, entry StateEntry) error
	Take(ctx context.Context, state string) (*StateEntry, error)
}

// RedisStateStore keeps states in redis with a TTL, so pending flows
// survive restarts and go stale on their own.
type RedisStateStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStateStore(rdb *redis.Client, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{rdb: rdb, ttl: ttl}
}

func stateKey(state string) string {
	return "oauthstate:" + state
}

func (s *RedisStateStore) Put(ctx context.Context, state string, entry StateEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("error encoding oauth state: %v", err)
	}
	if err := s.rdb.Set(ctx, stateKey(state), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("error storing oauth state: %v", err)
	}
	return nil
}

func (s *RedisStateStore) Take(ctx context.Context, state string) (*StateEntry, error) {
	raw, err := s.rdb.GetDel(ctx, stateKey(state)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error reading oauth state: %v", err)
	}

	entry := &StateEntry{}
	if err := json.Unmarshal([]byte(raw), entry); err != nil {
		return nil, fmt.Errorf("error decoding oauth state: %v", err)
	}
	return entry, nil
}

type memoryStateEntry struct {
	entry   StateEntry
	expires time.Time
}

// MemoryStateStore is the single-process fallback used when redis is not
// configured. Pending flows do not survive restarts.
type MemoryStateStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryStateEntry
}

func NewMemoryStateStore(ttl time.Duration) *MemoryStateStore {
	return &MemoryStateStore{ttl: ttl, entries: make(map[string]memoryStateEntry)}
}

func (s *MemoryStateStore) Put(_ context.Context, state string, entry StateEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[state] = memoryStateEntry{entry: entry, expires: time.Now().Add(s.ttl)}
	return nil
}

func (s *MemoryStateStore) Take(_ context.Context, state string) (*StateEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[state]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(s.entries, state)

	if time.Now().After(e.expires) {
		return nil, common.ErrorNotFound
	}
	return &e.entry, nil
}
