package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeStore struct {
	setNXResult bool
	setNXError  error
	lastKey     string
	lastTTL     time.Duration
	lastDeleted string
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.lastKey = key
	f.lastTTL = ttl
	return f.setNXResult, f.setNXError
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "guruji:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	if len(keys) > 0 {
		f.lastDeleted = keys[0]
	}
	return nil
}

func TestCheckAndMarkProcessed_FirstTime(t *testing.T) {
	store := &fakeStore{setNXResult: true}
	manager, err := NewManager(store, 72*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	already, err := manager.CheckAndMarkProcessed(context.Background(), "lesson-video-ingest", "b/course-videos/C1/a.mp4#1")
	if err != nil {
		t.Fatalf("CheckAndMarkProcessed: %v", err)
	}
	if already {
		t.Fatalf("expected first call to return false")
	}

	expectedKey := "guruji:idempotency:evt:processed:lesson-video-ingest:b/course-videos/C1/a.mp4#1"
	if store.lastKey != expectedKey {
		t.Fatalf("unexpected key: %q", store.lastKey)
	}
	if store.lastTTL != 72*time.Hour {
		t.Fatalf("unexpected ttl: %v", store.lastTTL)
	}
}

func TestCheckAndMarkProcessed_Duplicate(t *testing.T) {
	manager, _ := NewManager(&fakeStore{setNXResult: false}, time.Hour)
	already, err := manager.CheckAndMarkProcessed(context.Background(), "lesson-video-ingest", "evt")
	if err != nil {
		t.Fatalf("CheckAndMarkProcessed: %v", err)
	}
	if !already {
		t.Fatalf("expected duplicate to be reported")
	}
}

func TestCheckAndMarkProcessed_StoreError(t *testing.T) {
	manager, _ := NewManager(&fakeStore{setNXError: errors.New("redis down")}, time.Hour)
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "c", "evt"); err == nil {
		t.Fatalf("expected store error")
	}
}

func TestValidation(t *testing.T) {
	if _, err := NewManager(nil, time.Hour); err == nil {
		t.Fatalf("expected nil store error")
	}
	if _, err := NewManager(&fakeStore{}, -time.Second); err == nil {
		t.Fatalf("expected negative ttl error")
	}
	manager, _ := NewManager(&fakeStore{}, time.Hour)
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "", "evt"); err == nil {
		t.Fatalf("expected consumer required error")
	}
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "c", "  "); err == nil {
		t.Fatalf("expected event key required error")
	}
}

func TestRelease(t *testing.T) {
	store := &fakeStore{}
	manager, _ := NewManager(store, time.Hour)
	if err := manager.Release(context.Background(), "lesson-video-ingest", "evt"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if store.lastDeleted != "guruji:idempotency:evt:processed:lesson-video-ingest:evt" {
		t.Fatalf("unexpected deleted key %q", store.lastDeleted)
	}
}
