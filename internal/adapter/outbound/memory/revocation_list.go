package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultCleanupInterval is how often expired revocations are dropped.
const DefaultCleanupInterval = 1 * time.Minute

// RevocationList remembers revoked token ids until the tokens would have
// expired on their own. Thread-safe. A background cleanup goroutine removes
// entries past their expiry.
type RevocationList struct {
	revoked         map[string]time.Time
	mu              sync.RWMutex
	stopChan        chan struct{}
	wg              sync.WaitGroup
	cleanupInterval time.Duration
	once            sync.Once
}

// NewRevocationList creates a revocation list with the default cleanup interval.
func NewRevocationList() *RevocationList {
	return NewRevocationListWithConfig(DefaultCleanupInterval)
}

// NewRevocationListWithConfig creates a revocation list with a custom cleanup interval.
func NewRevocationListWithConfig(cleanupInterval time.Duration) *RevocationList {
	return &RevocationList{
		revoked:         make(map[string]time.Time),
		stopChan:        make(chan struct{}),
		cleanupInterval: cleanupInterval,
	}
}

// Revoke marks id as revoked until expiresAt.
func (l *RevocationList) Revoke(id string, expiresAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoked[id] = expiresAt
}

// IsRevoked reports whether id has been revoked.
// Note: expired entries are NOT deleted here; background cleanup handles deletion.
func (l *RevocationList) IsRevoked(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.revoked[id]
	return ok
}

// StartCleanup starts the background cleanup goroutine.
// Call Stop() to stop it gracefully.
func (l *RevocationList) StartCleanup(ctx context.Context) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(l.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-l.stopChan:
				return
			case <-ticker.C:
				l.cleanup()
			}
		}
	}()
}

func (l *RevocationList) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cleaned := 0
	for id, exp := range l.revoked {
		if now.After(exp) {
			delete(l.revoked, id)
			cleaned++
		}
	}

	if cleaned > 0 {
		slog.Debug("cleaned expired revocations", "count", cleaned)
	}
}

// Stop stops the background cleanup goroutine and waits for it to exit.
// Safe to call multiple times.
func (l *RevocationList) Stop() {
	l.once.Do(func() {
		close(l.stopChan)
	})
	l.wg.Wait()
}

// Size returns the number of revocations currently held.
func (l *RevocationList) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.revoked)
}
