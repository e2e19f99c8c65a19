package autosave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/maheshrc27/threadflow/internal/models"
	"github.com/maheshrc27/threadflow/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSaver struct {
	mu sync.Mutex

	updates [][]transfer.UnitPayload
	drafts  []string

	errs    []error       // consumed per call, in order
	release chan struct{} // Update blocks here until closed, when non-nil
	entered chan struct{} // closed once the first Update starts

	enterOnce sync.Once
}

func (f *fakeSaver) Update(ctx context.Context, userID int64, draftID string, du *transfer.DraftUpdate) (*models.Draft, error) {
	f.mu.Lock()
	units := make([]transfer.UnitPayload, len(du.Units))
	copy(units, du.Units)
	f.updates = append(f.updates, units)
	f.drafts = append(f.drafts, draftID)
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	f.mu.Unlock()

	if f.entered != nil {
		f.enterOnce.Do(func() { close(f.entered) })
	}
	if f.release != nil {
		<-f.release
	}

	if err != nil {
		return nil, err
	}
	saved := &models.Draft{ID: draftID, UserID: userID}
	for i, u := range units {
		saved.Units = append(saved.Units, &models.ContentUnit{ID: u.ID, DraftID: draftID, Position: i, Body: u.Body})
	}
	return saved, nil
}

func (f *fakeSaver) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

func (f *fakeSaver) lastUpdate() []transfer.UnitPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updates) == 0 {
		return nil
	}
	return f.updates[len(f.updates)-1]
}

func TestRapidEditsCollapseIntoOneUpdate(t *testing.T) {
	saver := &fakeSaver{}
	c := NewCoordinator(saver, 7, DefaultInterval, nil)
	require.NoError(t, c.Load(context.Background(), "d1", []transfer.UnitPayload{{ID: "u1", Body: ""}}))

	// Keystroke-rate edits between two ticks.
	c.SetUnitBody("u1", "h")
	c.SetUnitBody("u1", "he")
	c.SetUnitBody("u1", "hello")

	c.FlushIfDirty(context.Background())

	require.Equal(t, 1, saver.updateCount())
	assert.Equal(t, []transfer.UnitPayload{{ID: "u1", Body: "hello"}}, saver.lastUpdate())

	// Nothing left to flush.
	c.FlushIfDirty(context.Background())
	assert.Equal(t, 1, saver.updateCount())
}

func TestCleanCopyIsNeverSaved(t *testing.T) {
	saver := &fakeSaver{}
	c := NewCoordinator(saver, 7, DefaultInterval, nil)
	require.NoError(t, c.Load(context.Background(), "d1", []transfer.UnitPayload{{ID: "u1", Body: "hello"}}))

	c.FlushIfDirty(context.Background())
	require.NoError(t, c.Flush(context.Background()))
	assert.Equal(t, 0, saver.updateCount())
}

func TestEditsDuringFlightRideTheNextTick(t *testing.T) {
	saver := &fakeSaver{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	c := NewCoordinator(saver, 7, DefaultInterval, nil)
	require.NoError(t, c.Load(context.Background(), "d1", nil))

	c.SetUnitBody("u1", "first")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.FlushIfDirty(context.Background())
	}()

	// Edit lands while the first update is on the wire.
	<-saver.entered
	c.SetUnitBody("u1", "second")

	// A tick during the flight must not start a second update.
	c.FlushIfDirty(context.Background())
	assert.Equal(t, 1, saver.updateCount())

	close(saver.release)
	wg.Wait()

	c.FlushIfDirty(context.Background())
	require.Equal(t, 2, saver.updateCount())
	assert.Equal(t, []transfer.UnitPayload{{ID: "u1", Body: "second"}}, saver.lastUpdate())
}

func TestEditDuringSynchronousFlushDoesNotStartSecondUpdate(t *testing.T) {
	saver := &fakeSaver{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	c := NewCoordinator(saver, 7, DefaultInterval, nil)
	require.NoError(t, c.Load(context.Background(), "d1", nil))

	c.SetUnitBody("u1", "first")

	var wg sync.WaitGroup
	var flushErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		flushErr = c.Flush(context.Background())
	}()

	// Edit lands while the synchronous flush is on the wire; the tick that
	// follows must not open a second concurrent update for the draft.
	<-saver.entered
	c.SetUnitBody("u1", "second")
	c.FlushIfDirty(context.Background())
	assert.Equal(t, 1, saver.updateCount())

	close(saver.release)
	wg.Wait()
	require.NoError(t, flushErr)

	// The newer edit rides the next tick, after the flush settled.
	c.FlushIfDirty(context.Background())
	require.Equal(t, 2, saver.updateCount())
	assert.Equal(t, []transfer.UnitPayload{{ID: "u1", Body: "second"}}, saver.lastUpdate())
}

func TestStaleServerEchoDoesNotClobberNewerEdits(t *testing.T) {
	saver := &fakeSaver{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	c := NewCoordinator(saver, 7, DefaultInterval, nil)
	require.NoError(t, c.Load(context.Background(), "d1", nil))

	c.SetUnitBody("u1", "first")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.FlushIfDirty(context.Background())
	}()

	<-saver.entered
	c.SetUnitBody("u1", "second")
	close(saver.release)
	wg.Wait()

	// The echo of "first" arrived after the local edit to "second" and must
	// not win.
	snapshot := c.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "second", snapshot[0].Body)
}

func TestFailuresRetryQuietlyThenSignal(t *testing.T) {
	saveErr := errors.New("draft update failed")
	saver := &fakeSaver{errs: []error{saveErr, saveErr, saveErr}}

	var gaveUp error
	c := NewCoordinator(saver, 7, DefaultInterval, func(err error) { gaveUp = err })
	require.NoError(t, c.Load(context.Background(), "d1", nil))

	c.SetUnitBody("u1", "hello")

	// First two failures are silent; the copy stays dirty for the next tick.
	c.FlushIfDirty(context.Background())
	assert.NoError(t, gaveUp)
	c.FlushIfDirty(context.Background())
	assert.NoError(t, gaveUp)

	c.FlushIfDirty(context.Background())
	assert.ErrorIs(t, gaveUp, saveErr)
	assert.Equal(t, 3, saver.updateCount())

	// The edit is still there and a recovered saver persists it.
	c.FlushIfDirty(context.Background())
	require.Equal(t, 4, saver.updateCount())
	assert.Equal(t, []transfer.UnitPayload{{ID: "u1", Body: "hello"}}, saver.lastUpdate())
}

func TestLoadFlushesPreviousDraftFirst(t *testing.T) {
	saver := &fakeSaver{}
	c := NewCoordinator(saver, 7, DefaultInterval, nil)
	require.NoError(t, c.Load(context.Background(), "d1", nil))

	c.SetUnitBody("u1", "pending edit")

	require.NoError(t, c.Load(context.Background(), "d2", []transfer.UnitPayload{{ID: "u2", Body: "fresh"}}))

	require.Equal(t, 1, saver.updateCount())
	assert.Equal(t, []string{"d1"}, saver.drafts)
	assert.Equal(t, []transfer.UnitPayload{{ID: "u1", Body: "pending edit"}}, saver.updates[0])

	// The new draft starts clean.
	c.FlushIfDirty(context.Background())
	assert.Equal(t, 1, saver.updateCount())
}

func TestLoadAbortsWhenFlushFails(t *testing.T) {
	saveErr := errors.New("draft update failed")
	saver := &fakeSaver{errs: []error{saveErr}}
	c := NewCoordinator(saver, 7, DefaultInterval, nil)
	require.NoError(t, c.Load(context.Background(), "d1", nil))

	c.SetUnitBody("u1", "pending edit")

	err := c.Load(context.Background(), "d2", nil)
	assert.ErrorIs(t, err, saveErr)

	// The pending edit survives the failed switch.
	require.NoError(t, c.Flush(context.Background()))
	assert.Equal(t, []transfer.UnitPayload{{ID: "u1", Body: "pending edit"}}, saver.lastUpdate())
	assert.Equal(t, []string{"d1", "d1"}, saver.drafts)
}

func TestCloseFlushesRemainingEdits(t *testing.T) {
	saver := &fakeSaver{}
	c := NewCoordinator(saver, 7, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	require.NoError(t, c.Load(ctx, "d1", nil))
	c.SetUnitBody("u1", "last words")

	require.NoError(t, c.Close(context.Background()))
	assert.GreaterOrEqual(t, saver.updateCount(), 1)
	assert.Equal(t, []transfer.UnitPayload{{ID: "u1", Body: "last words"}}, saver.lastUpdate())
}

func TestNewUnitCreatedLocallyIsKept(t *testing.T) {
	saver := &fakeSaver{}
	c := NewCoordinator(saver, 7, DefaultInterval, nil)
	require.NoError(t, c.Load(context.Background(), "d1", []transfer.UnitPayload{{ID: "u1", Body: "one"}}))

	c.SetUnitBody("u2", "two")

	c.FlushIfDirty(context.Background())
	assert.Equal(t, []transfer.UnitPayload{{ID: "u1", Body: "one"}, {ID: "u2", Body: "two"}}, saver.lastUpdate())
}
