package application

import (
	"sync"
	"time"

	"github.com/example/court-reservations/internal/scheduler"
)

// DefaultPendingTTL bounds how long an offered slot list stays selectable.
const DefaultPendingTTL = 30 * time.Minute

// pendingSelections stores the slots last offered to each user. Entries expire after
// ttl and behave as absent once expired.
type pendingSelections struct {
	mu      sync.RWMutex
	now     func() time.Time
	ttl     time.Duration
	entries map[string]PendingSelection
}

func newPendingSelections(ttl time.Duration, now func() time.Time) *pendingSelections {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	if now == nil {
		now = time.Now
	}
	return &pendingSelections{
		now:     now,
		ttl:     ttl,
		entries: make(map[string]PendingSelection),
	}
}

func (c *pendingSelections) Get(userID string) (PendingSelection, bool) {
	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()
	if !ok {
		return PendingSelection{}, false
	}
	if !c.now().Before(entry.ExpiresAt) {
		c.mu.Lock()
		if current, ok := c.entries[userID]; ok && !c.now().Before(current.ExpiresAt) {
			delete(c.entries, userID)
		}
		c.mu.Unlock()
		return PendingSelection{}, false
	}
	entry.Slots = cloneSlots(entry.Slots)
	return entry, true
}

func (c *pendingSelections) Store(userID string, date time.Time, slots []scheduler.Slot) {
	c.mu.Lock()
	c.entries[userID] = PendingSelection{
		Date:      date,
		Slots:     cloneSlots(slots),
		ExpiresAt: c.now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// Remove drops one hour from the user's selection, discarding the entry when it
// becomes empty.
func (c *pendingSelections) Remove(userID string, hour int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[userID]
	if !ok {
		return
	}
	entry.Slots = scheduler.Without(entry.Slots, hour)
	if len(entry.Slots) == 0 {
		delete(c.entries, userID)
		return
	}
	c.entries[userID] = entry
}

func (c *pendingSelections) Discard(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

// Purge deletes expired entries and returns how many were removed.
func (c *pendingSelections) Purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for userID, entry := range c.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(c.entries, userID)
			removed++
		}
	}
	return removed
}

func (c *pendingSelections) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func cloneSlots(slots []scheduler.Slot) []scheduler.Slot {
	if len(slots) == 0 {
		return nil
	}
	out := make([]scheduler.Slot, len(slots))
	copy(out, slots)
	return out
}
