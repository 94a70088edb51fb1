package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(nil)
	defer c.Close()

	if err := c.Set(ctx, "key", []byte("value"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "value" {
		t.Errorf("Get() = %s, want value", got)
	}
}

func TestMemoryCache_GetMissing(t *testing.T) {
	c := NewMemoryCache(nil)
	defer c.Close()

	if _, err := c.Get(context.Background(), "nope"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get() error = %v, want ErrKeyNotFound", err)
	}
}

func TestMemoryCache_Expiration(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(nil)
	defer c.Close()

	if err := c.Set(ctx, "short", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if _, err := c.Get(ctx, "short"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expired key: error = %v, want ErrKeyNotFound", err)
	}
}

func TestMemoryCache_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(nil)
	defer c.Close()

	original := []byte("value")
	if err := c.Set(ctx, "key", original, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, _ := c.Get(ctx, "key")
	got[0] = 'X'

	again, _ := c.Get(ctx, "key")
	if string(again) != "value" {
		t.Error("mutating a returned value must not affect the cached copy")
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(nil)
	defer c.Close()

	c.Set(ctx, "key", []byte("v"), time.Minute)
	if err := c.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := c.Get(ctx, "key"); !errors.Is(err, ErrKeyNotFound) {
		t.Error("deleted key must be absent")
	}

	// Удаление отсутствующего ключа не ошибка
	if err := c.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
}

func TestMemoryCache_DeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(nil)
	defer c.Close()

	c.Set(ctx, "matrix:1", []byte("a"), time.Minute)
	c.Set(ctx, "matrix:2", []byte("b"), time.Minute)
	c.Set(ctx, "result:1", []byte("c"), time.Minute)

	n, err := c.DeleteByPrefix(ctx, "matrix:")
	if err != nil {
		t.Fatalf("DeleteByPrefix() error = %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteByPrefix() = %d, want 2", n)
	}
	if _, err := c.Get(ctx, "result:1"); err != nil {
		t.Error("keys outside the prefix must survive")
	}
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(&Options{MaxEntries: 3, DefaultTTL: time.Minute})
	defer c.Close()

	c.Set(ctx, "k1", []byte("1"), 0)
	c.Set(ctx, "k2", []byte("2"), 0)
	c.Set(ctx, "k3", []byte("3"), 0)

	// k1 становится самым свежим, k2 - самым старым
	c.Get(ctx, "k1")

	c.Set(ctx, "k4", []byte("4"), 0)

	if _, err := c.Get(ctx, "k2"); !errors.Is(err, ErrKeyNotFound) {
		t.Error("k2 should have been evicted as least recently used")
	}
	if _, err := c.Get(ctx, "k1"); err != nil {
		t.Error("recently used k1 must survive eviction")
	}
}

func TestMemoryCache_UpdateDoesNotEvict(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(&Options{MaxEntries: 2, DefaultTTL: time.Minute})
	defer c.Close()

	c.Set(ctx, "k1", []byte("1"), 0)
	c.Set(ctx, "k2", []byte("2"), 0)
	// перезапись существующего ключа не должна трогать соседей
	c.Set(ctx, "k2", []byte("22"), 0)

	if _, err := c.Get(ctx, "k1"); err != nil {
		t.Error("updating an existing key must not evict others")
	}
	got, _ := c.Get(ctx, "k2")
	if string(got) != "22" {
		t.Errorf("Get(k2) = %s, want 22", got)
	}
}

func TestMemoryCache_Stats(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(nil)
	defer c.Close()

	c.Set(ctx, "key", []byte("value"), time.Minute)
	c.Get(ctx, "key")
	c.Get(ctx, "missing")

	s, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if s.TotalKeys != 1 {
		t.Errorf("TotalKeys = %d, want 1", s.TotalKeys)
	}
	if s.Hits != 1 || s.Misses != 1 {
		t.Errorf("Hits/Misses = %d/%d, want 1/1", s.Hits, s.Misses)
	}
	if s.HitRate != 0.5 {
		t.Errorf("HitRate = %v, want 0.5", s.HitRate)
	}
	if s.MemoryBytes != int64(len("value")) {
		t.Errorf("MemoryBytes = %d, want %d", s.MemoryBytes, len("value"))
	}
	if s.Backend != BackendMemory {
		t.Errorf("Backend = %s", s.Backend)
	}
}

func TestMemoryCache_Closed(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(nil)
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := c.Get(ctx, "key"); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Get() after Close: error = %v, want ErrCacheClosed", err)
	}
	if err := c.Set(ctx, "key", []byte("v"), 0); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Set() after Close: error = %v, want ErrCacheClosed", err)
	}
	// Повторный Close безопасен
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestMemoryCache_Concurrency(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(&Options{MaxEntries: 100, DefaultTTL: time.Minute})
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k%d", j%50)
				switch j % 3 {
				case 0:
					c.Set(ctx, key, []byte("v"), 0)
				case 1:
					c.Get(ctx, key)
				default:
					c.Delete(ctx, key)
				}
			}
		}(i)
	}
	wg.Wait()
}
