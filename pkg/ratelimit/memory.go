package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryLimiter хранит счётчики в памяти процесса
type MemoryLimiter struct {
	mu     sync.Mutex
	keys   map[string]*keyState
	cfg    *Config
	closed atomic.Bool
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// keyState - состояние одного клиента. Для sliding_window хранятся
// отметки времени запросов, для token_bucket - дробный запас токенов.
type keyState struct {
	stamps   []time.Time
	tokens   float64
	refillAt time.Time
}

// NewMemoryLimiter создаёт лимитер и запускает фоновую чистку ключей
func NewMemoryLimiter(cfg *Config) *MemoryLimiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = DefaultConfig().CleanupInterval
	}

	l := &MemoryLimiter{
		keys:   make(map[string]*keyState),
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.janitor(interval)

	return l
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.closed.Load() {
		return false, ErrLimiterClosed
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.keys[key]
	if !ok {
		s = &keyState{
			tokens:   float64(l.cfg.Requests + l.cfg.BurstSize),
			refillAt: time.Now(),
		}
		l.keys[key] = s
	}

	if l.cfg.Strategy == StrategyTokenBucket {
		return l.takeToken(s), nil
	}
	return l.takeSlot(s), nil
}

// takeToken - token bucket: запас пополняется пропорционально
// прошедшему времени, максимум Requests+BurstSize
func (l *MemoryLimiter) takeToken(s *keyState) bool {
	now := time.Now()
	rate := float64(l.cfg.Requests) / l.cfg.Window.Seconds()
	s.tokens += now.Sub(s.refillAt).Seconds() * rate
	s.refillAt = now

	if full := float64(l.cfg.Requests + l.cfg.BurstSize); s.tokens > full {
		s.tokens = full
	}

	if s.tokens < 1 {
		return false
	}
	s.tokens--
	return true
}

// takeSlot - sliding window: учитываются только запросы внутри окна
func (l *MemoryLimiter) takeSlot(s *keyState) bool {
	now := time.Now()
	s.stamps = pruneStamps(s.stamps, now.Add(-l.cfg.Window))

	if len(s.stamps) >= l.cfg.Requests {
		return false
	}
	s.stamps = append(s.stamps, now)
	return true
}

// pruneStamps отбрасывает отметки старше cutoff, сдвигая хвост на
// место начала, без новой аллокации
func pruneStamps(stamps []time.Time, cutoff time.Time) []time.Time {
	keep := stamps[:0]
	for _, t := range stamps {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	return keep
}

func (l *MemoryLimiter) GetInfo(ctx context.Context, key string) (*LimitInfo, error) {
	if l.closed.Load() {
		return nil, ErrLimiterClosed
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	info := &LimitInfo{
		Limit:   l.cfg.Requests,
		ResetAt: time.Now().Add(l.cfg.Window),
	}

	s, ok := l.keys[key]
	if !ok {
		info.Remaining = l.cfg.Requests
		return info, nil
	}

	if l.cfg.Strategy == StrategyTokenBucket {
		info.Remaining = int(s.tokens)
	} else {
		used := len(pruneStamps(s.stamps, time.Now().Add(-l.cfg.Window)))
		info.Remaining = l.cfg.Requests - used
	}
	if info.Remaining < 0 {
		info.Remaining = 0
	}
	return info, nil
}

func (l *MemoryLimiter) Reset(ctx context.Context, key string) error {
	if l.closed.Load() {
		return ErrLimiterClosed
	}

	l.mu.Lock()
	delete(l.keys, key)
	l.mu.Unlock()
	return nil
}

func (l *MemoryLimiter) Close() error {
	if l.closed.Swap(true) {
		return nil
	}

	close(l.stopCh)
	l.wg.Wait()

	l.mu.Lock()
	l.keys = nil
	l.mu.Unlock()
	return nil
}

func (l *MemoryLimiter) janitor(interval time.Duration) {
	defer l.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.dropIdle()
		}
	}
}

// dropIdle удаляет ключи без активности дольше двух окон
func (l *MemoryLimiter) dropIdle() {
	cutoff := time.Now().Add(-2 * l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, s := range l.keys {
		s.stamps = pruneStamps(s.stamps, cutoff)
		if len(s.stamps) == 0 && s.refillAt.Before(cutoff) {
			delete(l.keys, key)
		}
	}
}
