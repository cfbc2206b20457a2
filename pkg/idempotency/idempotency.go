package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/guruji-backend/pkg/redis"
)

// Manager records delivered events per consumer using Redis SETNX with a TTL.
// Keys follow the `guruji:idempotency:evt:processed:<consumer>:<event_key>`
// pattern.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewManager builds a guard that remembers claimed events for the given TTL.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// CheckAndMarkProcessed returns true if the event was already claimed and
// otherwise claims it.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer, eventKey string) (bool, error) {
	key, err := m.processedKey(consumer, eventKey)
	if err != nil {
		return false, err
	}
	set, err := m.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), m.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Release forgets a claim so a redelivery of the event is processed again.
func (m *Manager) Release(ctx context.Context, consumer, eventKey string) error {
	key, err := m.processedKey(consumer, eventKey)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) processedKey(consumer, eventKey string) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if strings.TrimSpace(eventKey) == "" {
		return "", errors.New("event key is required")
	}
	scope := fmt.Sprintf("evt:processed:%s", consumer)
	return m.store.IdempotencyKey(scope, eventKey), nil
}
