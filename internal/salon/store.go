package salon

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Provider supplies and persists the salon profile.
type Provider interface {
	// Get returns the saved profile, or the defaults when none is saved.
	Get(ctx context.Context) (*Settings, error)
	Set(ctx context.Context, settings *Settings) error
}

const settingsKey = "salon:settings"

// RedisStore keeps the profile as one JSON document in Redis.
type RedisStore struct {
	redis    *redis.Client
	defaults *Settings
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{redis: client}
}

// WithDefaults sets the profile returned while no profile has been saved,
// letting operators seed hours and timezone from the environment.
func (s *RedisStore) WithDefaults(settings *Settings) *RedisStore {
	s.defaults = settings
	return s
}

var _ Provider = (*RedisStore)(nil)

func (s *RedisStore) Get(ctx context.Context) (*Settings, error) {
	data, err := s.redis.Get(ctx, settingsKey).Bytes()
	if err == redis.Nil {
		return fallbackSettings(s.defaults), nil
	}
	if err != nil {
		return nil, fmt.Errorf("salon: get settings: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("salon: unmarshal settings: %w", err)
	}
	return &settings, nil
}

func (s *RedisStore) Set(ctx context.Context, settings *Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("salon: marshal settings: %w", err)
	}
	if err := s.redis.Set(ctx, settingsKey, data, 0).Err(); err != nil {
		return fmt.Errorf("salon: set settings: %w", err)
	}
	return nil
}

// MemoryStore is the Provider used when no Redis is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	settings *Settings
	defaults *Settings
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// WithDefaults sets the profile returned while no profile has been saved.
func (s *MemoryStore) WithDefaults(settings *Settings) *MemoryStore {
	s.mu.Lock()
	s.defaults = settings
	s.mu.Unlock()
	return s
}

var _ Provider = (*MemoryStore)(nil)

func (s *MemoryStore) Get(ctx context.Context) (*Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return fallbackSettings(s.defaults), nil
	}
	cp := *s.settings
	return &cp, nil
}

func (s *MemoryStore) Set(ctx context.Context, settings *Settings) error {
	s.mu.Lock()
	cp := *settings
	s.settings = &cp
	s.mu.Unlock()
	return nil
}

func fallbackSettings(defaults *Settings) *Settings {
	if defaults == nil {
		return DefaultSettings()
	}
	cp := *defaults
	return &cp
}
