package registrar

import (
	"context"
	"sync"
	"time"
)

// registrationCache deduplicates registration attempts. It caches
// completed results per resource id and tracks in-flight attempts so
// that a retry arriving while the original is still pending waits for
// it instead of submitting a second transaction.
type registrationCache struct {
	mu       sync.Mutex
	results  map[string]*RegistrationResult
	expiry   map[string]time.Time
	inFlight map[string]chan struct{}
	ttl      time.Duration
}

func newRegistrationCache(ttl time.Duration) *registrationCache {
	return &registrationCache{
		results:  make(map[string]*RegistrationResult),
		expiry:   make(map[string]time.Time),
		inFlight: make(map[string]chan struct{}),
		ttl:      ttl,
	}
}

type registrationStatus int

const (
	// registrationMiss means no cached result and no in-flight attempt;
	// the caller now owns the slot.
	registrationMiss registrationStatus = iota
	// registrationCached means a completed result was found.
	registrationCached
	// registrationInFlight means another attempt is currently running.
	registrationInFlight
)

// checkAndMark atomically checks the cache and claims the slot on a miss.
// Returns:
// - registrationCached + result if a completed attempt is cached
// - registrationInFlight + wait channel if another attempt is running
// - registrationMiss + done channel if the caller should proceed
func (c *registrationCache) checkAndMark(resourceID string) (registrationStatus, *RegistrationResult, chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if expiry, exists := c.expiry[resourceID]; exists {
		if time.Now().Before(expiry) {
			if result, ok := c.results[resourceID]; ok {
				return registrationCached, result, nil
			}
		}
		delete(c.results, resourceID)
		delete(c.expiry, resourceID)
	}

	if done, exists := c.inFlight[resourceID]; exists {
		return registrationInFlight, nil, done
	}

	done := make(chan struct{})
	c.inFlight[resourceID] = done
	return registrationMiss, nil, done
}

// waitForResult blocks until the in-flight attempt completes or the
// context ends. A nil result with nil error means the attempt failed
// and the caller may retry.
func (c *registrationCache) waitForResult(ctx context.Context, resourceID string, done chan struct{}) (*RegistrationResult, error) {
	select {
	case <-done:
		return c.get(resourceID), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *registrationCache) get(resourceID string) *RegistrationResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiry, exists := c.expiry[resourceID]
	if !exists {
		return nil
	}
	if time.Now().After(expiry) {
		delete(c.results, resourceID)
		delete(c.expiry, resourceID)
		return nil
	}
	return c.results[resourceID]
}

// complete caches the result, releases the slot, and wakes waiters.
func (c *registrationCache) complete(resourceID string, result *RegistrationResult, done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.results[resourceID] = result
	c.expiry[resourceID] = time.Now().Add(c.ttl)
	delete(c.inFlight, resourceID)
	close(done)

	c.cleanupExpiredLocked()
}

// fail releases the slot without caching, so the registration can be
// retried.
func (c *registrationCache) fail(resourceID string, done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inFlight, resourceID)
	close(done)
}

// cleanupExpiredLocked removes expired entries. Must be called with the
// lock held.
func (c *registrationCache) cleanupExpiredLocked() {
	now := time.Now()
	for resourceID, expiry := range c.expiry {
		if now.After(expiry) {
			delete(c.results, resourceID)
			delete(c.expiry, resourceID)
		}
	}
}
