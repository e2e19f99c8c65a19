// Package autosave turns the stream of fine-grained composer edits into
// infrequent, serialized draft updates. Edits land in an in-memory working
// copy immediately; a quiescence timer flushes the copy with at most one
// in-flight update per draft, so edits are never dropped and never
// interleaved.
package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/threadflow/internal/models"
	"github.com/maheshrc27/threadflow/internal/transfer"
)

// DefaultInterval is the quiescence window between flush attempts.
const DefaultInterval = 1500 * time.Millisecond

// DefaultMaxRetries bounds silent retries before the error callback fires.
const DefaultMaxRetries = 3

// Saver persists the working copy. The draft service satisfies this.
type Saver interface {
	Update(ctx context.Context, userID int64, draftID string, du *transfer.DraftUpdate) (*models.Draft, error)
}

// Coordinator manages the autosave session for one composer. It tracks a
// single active draft at a time; switching drafts flushes pending edits
// synchronously first.
type Coordinator struct {
	saver      Saver
	userID     int64
	interval   time.Duration
	maxRetries int
	// onGiveUp is the recoverable-error signal raised once bounded retries
	// are exhausted. Individual failures before that are not surfaced.
	onGiveUp func(err error)

	mu       sync.Mutex
	cond     *sync.Cond
	draftID  string
	working  []transfer.UnitPayload
	dirty    bool
	inFlight bool
	failures int

	done   chan struct{}
	closed bool
}

func NewCoordinator(saver Saver, userID int64, interval time.Duration, onGiveUp func(error)) *Coordinator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if onGiveUp == nil {
		onGiveUp = func(err error) { slog.Info("autosave gave up", "error", err.Error()) }
	}

	c := &Coordinator{
		saver:      saver,
		userID:     userID,
		interval:   interval,
		maxRetries: DefaultMaxRetries,
		onGiveUp:   onGiveUp,
		done:       make(chan struct{}),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Run drives the quiescence timer until Close. Call it in its own goroutine.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.FlushIfDirty(ctx)
		}
	}
}

// Load makes draftID the active draft. Pending edits of the previous draft
// are flushed synchronously before the switch; the previous timer state is
// discarded with its working copy.
func (c *Coordinator) Load(ctx context.Context, draftID string, units []transfer.UnitPayload) error {
	if err := c.Flush(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.draftID = draftID
	c.working = cloneUnits(units)
	c.dirty = false
	c.failures = 0
	return nil
}

// SetUnitBody applies one local edit and marks the copy dirty. Unknown unit
// ids are appended so a unit created locally is not lost.
func (c *Coordinator) SetUnitBody(unitID, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.working {
		if c.working[i].ID == unitID {
			c.working[i].Body = body
			c.dirty = true
			return
		}
	}
	c.working = append(c.working, transfer.UnitPayload{ID: unitID, Body: body})
	c.dirty = true
}

// SetUnits replaces the whole working copy.
func (c *Coordinator) SetUnits(units []transfer.UnitPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.working = cloneUnits(units)
	c.dirty = true
}

// Snapshot returns a copy of the current working copy, for rendering.
func (c *Coordinator) Snapshot() []transfer.UnitPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneUnits(c.working)
}

// FlushIfDirty is one timer tick: issue a single update when the copy is
// dirty and nothing is in flight. Edits arriving during the flight keep the
// dirty flag set and ride the next tick.
func (c *Coordinator) FlushIfDirty(ctx context.Context) {
	c.mu.Lock()
	if !c.dirty || c.inFlight || c.draftID == "" {
		c.mu.Unlock()
		return
	}
	c.inFlight = true
	c.dirty = false
	draftID := c.draftID
	snapshot := cloneUnits(c.working)
	c.mu.Unlock()

	saved, err := c.saver.Update(ctx, c.userID, draftID, &transfer.DraftUpdate{Units: snapshot})

	c.mu.Lock()
	c.inFlight = false
	if err != nil {
		// Keep the edit for the next tick; stay quiet until retries run out.
		c.dirty = true
		c.failures++
		if c.failures >= c.maxRetries {
			c.failures = 0
			c.mu.Unlock()
			c.cond.Broadcast()
			c.onGiveUp(err)
			return
		}
		c.mu.Unlock()
		c.cond.Broadcast()
		return
	}

	c.failures = 0
	// Reconcile the server echo only when no newer local edits exist;
	// otherwise the echo is stale and would clobber them.
	if !c.dirty && c.draftID == draftID && saved != nil {
		c.working = unitsFromDraft(saved)
	}
	c.mu.Unlock()
	c.cond.Broadcast()
}

// Flush synchronously persists pending edits, waiting out any in-flight
// update first. Used when switching drafts or shutting down.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.mu.Lock()
	for c.inFlight {
		c.cond.Wait()
	}
	if !c.dirty || c.draftID == "" {
		c.mu.Unlock()
		return nil
	}
	// Flush's own update holds the in-flight slot too, so a timer tick firing
	// while it is on the wire cannot issue a second concurrent save.
	c.inFlight = true
	c.dirty = false
	draftID := c.draftID
	snapshot := cloneUnits(c.working)
	c.mu.Unlock()

	_, err := c.saver.Update(ctx, c.userID, draftID, &transfer.DraftUpdate{Units: snapshot})

	c.mu.Lock()
	c.inFlight = false
	if err != nil {
		c.dirty = true
	}
	c.mu.Unlock()
	c.cond.Broadcast()
	return err
}

// Close stops the timer loop and flushes what is left.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	c.mu.Unlock()
	return c.Flush(ctx)
}

func cloneUnits(units []transfer.UnitPayload) []transfer.UnitPayload {
	out := make([]transfer.UnitPayload, len(units))
	copy(out, units)
	return out
}

func unitsFromDraft(d *models.Draft) []transfer.UnitPayload {
	out := make([]transfer.UnitPayload, 0, len(d.Units))
	for _, u := range d.Units {
		out = append(out, transfer.UnitPayload{ID: u.ID, Body: u.Body})
	}
	return out
}
