// Package ratelimit caps how many socket events a user may send per window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether one more event under key is allowed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Config holds rate limiting configuration
type Config struct {
	Window      time.Duration // Time window for rate limiting
	MaxRequests int           // Maximum events per window
}

// DefaultSocketConfig allows 60 events per minute per user
func DefaultSocketConfig() Config {
	return Config{
		Window:      time.Minute,
		MaxRequests: 60,
	}
}

type window struct {
	count int
	start time.Time
}

// MemoryLimiter is a fixed-window limiter local to this process
type MemoryLimiter struct {
	config  Config
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewMemoryLimiter(config Config) *MemoryLimiter {
	return &MemoryLimiter{
		config:  config,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.config.Window {
		l.windows[key] = &window{count: 1, start: now}
		l.sweep(now)
		return true, nil
	}

	if w.count >= l.config.MaxRequests {
		return false, nil
	}
	w.count++
	return true, nil
}

// sweep drops expired windows once the map has grown
func (l *MemoryLimiter) sweep(now time.Time) {
	if len(l.windows) < 1024 {
		return
	}
	for k, w := range l.windows {
		if now.Sub(w.start) >= l.config.Window {
			delete(l.windows, k)
		}
	}
}
