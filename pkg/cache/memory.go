package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryCache - потокобезопасный in-memory кэш с LRU-вытеснением.
// Порядок использования поддерживается двусвязным списком, поэтому
// вытеснение выполняется за O(1), а не сканом всех ключей.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front = самый свежий
	bytes      int64
	defaultTTL time.Duration
	maxEntries int

	hits   atomic.Int64
	misses atomic.Int64

	closed atomic.Bool
	stopCh chan struct{}
	wg     sync.WaitGroup
}

type memEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

func (e *memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemoryCache создаёт кэш и запускает фоновую очистку протухших записей
func NewMemoryCache(opts *Options) *MemoryCache {
	if opts == nil {
		opts = DefaultOptions()
	}

	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultOptions().MaxEntries
	}
	interval := opts.CleanupInterval
	if interval <= 0 {
		interval = DefaultOptions().CleanupInterval
	}

	c := &MemoryCache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		defaultTTL: opts.DefaultTTL,
		maxEntries: maxEntries,
		stopCh:     make(chan struct{}),
	}

	c.wg.Add(1)
	go c.janitor(interval)

	return c
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}

	c.mu.Lock()
	el, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, ErrKeyNotFound
	}
	e := el.Value.(*memEntry)
	if e.expired(time.Now()) {
		c.removeLocked(el)
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, ErrKeyNotFound
	}
	c.order.MoveToFront(el)
	// копия, чтобы вызывающий не мог испортить кэшированное значение
	out := make([]byte, len(e.value))
	copy(out, e.value)
	c.mu.Unlock()

	c.hits.Add(1)
	return out, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}

	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*memEntry)
		c.bytes += int64(len(stored) - len(e.value))
		e.value = stored
		e.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return nil
	}

	for len(c.entries) >= c.maxEntries {
		c.removeLocked(c.order.Back())
	}

	el := c.order.PushFront(&memEntry{key: key, value: stored, expiresAt: expiresAt})
	c.entries[key] = el
	c.bytes += int64(len(stored))
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}

	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		c.removeLocked(el)
	}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	if c.closed.Load() {
		return 0, ErrCacheClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var removed int64
	for key, el := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.removeLocked(el)
			removed++
		}
	}
	return removed, nil
}

func (c *MemoryCache) Stats(ctx context.Context) (*Stats, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}

	c.mu.Lock()
	total := int64(len(c.entries))
	bytes := c.bytes
	c.mu.Unlock()

	s := &Stats{
		TotalKeys:   total,
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		MemoryBytes: bytes,
		Backend:     BackendMemory,
	}
	if lookups := s.Hits + s.Misses; lookups > 0 {
		s.HitRate = float64(s.Hits) / float64(lookups)
	}
	return s, nil
}

func (c *MemoryCache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.stopCh)
	c.wg.Wait()

	c.mu.Lock()
	c.entries = nil
	c.order = nil
	c.bytes = 0
	c.mu.Unlock()
	return nil
}

// removeLocked удаляет элемент; вызывается под mu
func (c *MemoryCache) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	e := el.Value.(*memEntry)
	delete(c.entries, e.key)
	c.order.Remove(el)
	c.bytes -= int64(len(e.value))
}

func (c *MemoryCache) janitor(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *MemoryCache) evictExpired() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, el := range c.entries {
		if el.Value.(*memEntry).expired(now) {
			c.removeLocked(el)
		}
	}
}
