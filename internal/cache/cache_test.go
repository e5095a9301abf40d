package cache

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"salesflow/logger"
	"salesflow/models"

	"github.com/redis/go-redis/v9"
)

func sampleSnapshot() models.Snapshot {
	return models.Snapshot{
		CycleID:     "c1",
		State:       models.StateSuccess,
		Stats:       models.Stats{TotalVolumeEth: 12.5, OwnerCount: 21},
		Sales:       []models.Sale{{TokenID: "42", PriceEth: 2.5, Timestamp: time.Unix(1714560000, 0).UTC()}},
		StartedAt:   time.Unix(1714560000, 0).UTC(),
		CompletedAt: time.Unix(1714560001, 0).UTC(),
	}
}

func TestMemoryStoreEmpty(t *testing.T) {
	store := NewMemoryStore()
	if _, ok, err := store.Latest(context.Background()); ok || err != nil {
		t.Fatalf("expected empty store, got ok=%v err=%v", ok, err)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	snap := sampleSnapshot()
	if err := store.Save(context.Background(), snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := store.Latest(context.Background())
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if got.CycleID != "c1" || len(got.Sales) != 1 || got.Sales[0].TokenID != "42" {
		t.Fatalf("unexpected snapshot %+v", got)
	}

	got.Sales[0].TokenID = "mutated"
	again, _, _ := store.Latest(context.Background())
	if again.Sales[0].TokenID != "42" {
		t.Fatal("Latest must return a copy of the stored sales")
	}
}

func TestMemoryStoreReplaces(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Save(ctx, sampleSnapshot())
	_ = store.Save(ctx, models.FailedSnapshot("c2", time.Now(), time.Now(), nil))

	got, _, _ := store.Latest(ctx)
	if got.CycleID != "c2" || got.View() != models.ViewUnavailable {
		t.Fatalf("expected replaced failed snapshot, got %+v", got)
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	store, err := NewRedisStore(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0, "salesflow:test:snapshot", time.Minute)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()

	if err := store.Save(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := store.Latest(ctx)
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if got.CycleID != "c1" || got.Stats.TotalVolumeEth != 12.5 || !got.Sales[0].Timestamp.Equal(time.Unix(1714560000, 0)) {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

func TestNewRedisStoreUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if _, err := NewRedisStore(ctx, "127.0.0.1:1", "", 0, "k", time.Minute); err == nil {
		t.Fatal("expected ping error for unreachable redis")
	}
}

type brokenStore struct{ MemoryStore }

func (b *brokenStore) Save(context.Context, models.Snapshot) error {
	return errors.New("mirror full")
}

// offlineRedisStore points at a port nothing listens on, without the
// connect-time ping, so every Redis call fails fast.
func offlineRedisStore(mem Store) (*RedisStore, *bytes.Buffer) {
	var out bytes.Buffer
	log := logger.Logger()
	log.SetOutput(&out)
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	return &RedisStore{rdb: rdb, mem: mem, key: "k", ttl: time.Minute, log: log}, &out
}

func TestRedisStoreFallsBackToMemoryMirror(t *testing.T) {
	store, _ := offlineRedisStore(NewMemoryStore())
	defer store.Close()
	ctx := context.Background()

	err := store.Save(ctx, sampleSnapshot())
	if err == nil || !strings.Contains(err.Error(), "redis set k") {
		t.Fatalf("expected redis error, got %v", err)
	}
	if strings.Contains(err.Error(), "memory mirror") {
		t.Fatalf("memory mirror should have succeeded: %v", err)
	}

	got, ok, err := store.Latest(ctx)
	if err != nil || !ok || got.CycleID != "c1" {
		t.Fatalf("expected mirrored snapshot, got ok=%v err=%v snap=%+v", ok, err, got)
	}
}

func TestRedisStoreReportsMirrorFailure(t *testing.T) {
	store, out := offlineRedisStore(&brokenStore{})
	defer store.Close()

	err := store.Save(context.Background(), sampleSnapshot())
	if err == nil || !strings.Contains(err.Error(), "memory mirror: mirror full") || !strings.Contains(err.Error(), "redis set k") {
		t.Fatalf("expected both failures joined, got %v", err)
	}
	if !strings.Contains(out.String(), "memory mirror save failed") {
		t.Fatalf("mirror failure not logged:\n%s", out.String())
	}
}
