package realtime

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/oasistrek/tourops-api/internal/models"
)

// watched is the fixed set of collections the feed tracks.
var watched = []models.Collection{
	models.CollectionAssignments,
	models.CollectionRequests,
	models.CollectionGuides,
	models.CollectionTourists,
}

// Config controls feed behaviour.
type Config struct {
	// DebounceWindow is how long the feed waits after the first event of a
	// burst before flushing one update per dirty collection.
	DebounceWindow time.Duration
	// SendBuffer is the per-subscriber channel capacity.
	SendBuffer int
	Logger     *zap.Logger
}

// Feed is an in-process fan-out hub for collection change notifications.
// Services publish an event after every successful store write; the feed
// coalesces bursts and tells subscribers which collections to refetch.
// Version counters are monotonic, so a dropped update is subsumed by the
// next one a subscriber sees.
type Feed struct {
	debounce   time.Duration
	sendBuffer int
	logger     *zap.Logger

	versions map[models.Collection]*atomic.Uint64

	pendMu  sync.Mutex
	pending map[models.Collection]struct{}
	kick    chan struct{}

	mu          sync.Mutex
	started     bool
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	subscribers map[uint64]chan []models.CollectionUpdate
	nextSubID   uint64
}

// New builds a feed with defaults applied.
func New(cfg Config) *Feed {
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = 250 * time.Millisecond
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 8
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	versions := make(map[models.Collection]*atomic.Uint64, len(watched))
	for _, collection := range watched {
		versions[collection] = &atomic.Uint64{}
	}

	return &Feed{
		debounce:    cfg.DebounceWindow,
		sendBuffer:  cfg.SendBuffer,
		logger:      cfg.Logger,
		versions:    versions,
		pending:     make(map[models.Collection]struct{}),
		kick:        make(chan struct{}, 1),
		subscribers: make(map[uint64]chan []models.CollectionUpdate),
	}
}

// Start launches the flush loop. Safe to call once.
func (f *Feed) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return
	}
	f.ctx, f.cancel = context.WithCancel(ctx)
	f.wg.Add(1)
	go f.run()
	f.started = true
	f.logger.Sugar().Infow("change feed started", "debounce", f.debounce.String())
}

// Stop cancels the flush loop and closes all subscriber channels.
func (f *Feed) Stop() {
	f.mu.Lock()
	if !f.started {
		f.mu.Unlock()
		return
	}
	f.cancel()
	f.mu.Unlock()
	f.wg.Wait()

	f.mu.Lock()
	for id, ch := range f.subscribers {
		delete(f.subscribers, id)
		close(ch)
	}
	f.started = false
	f.mu.Unlock()
	f.logger.Sugar().Infow("change feed stopped")
}

// Publish records a change event. Version counters advance immediately;
// delivery to subscribers happens after the debounce window. Safe on a nil
// feed, which makes the feed optional for services under test.
func (f *Feed) Publish(event models.ChangeEvent) {
	if f == nil {
		return
	}
	collections := collectionsFor(event)
	if len(collections) == 0 {
		return
	}

	for _, collection := range collections {
		f.versions[collection].Add(1)
	}

	f.pendMu.Lock()
	for _, collection := range collections {
		f.pending[collection] = struct{}{}
	}
	f.pendMu.Unlock()

	select {
	case f.kick <- struct{}{}:
	default:
	}
}

// Subscribe registers a listener and returns its channel along with an
// unsubscribe func. The channel is closed on unsubscribe or Stop.
func (f *Feed) Subscribe() (<-chan []models.CollectionUpdate, func()) {
	ch := make(chan []models.CollectionUpdate, f.sendBuffer)

	f.mu.Lock()
	f.nextSubID++
	id := f.nextSubID
	f.subscribers[id] = ch
	f.mu.Unlock()

	unsubscribe := func() {
		f.mu.Lock()
		if sub, ok := f.subscribers[id]; ok {
			delete(f.subscribers, id)
			close(sub)
		}
		f.mu.Unlock()
	}
	return ch, unsubscribe
}

// Version returns the current token for one collection. Safe on nil.
func (f *Feed) Version(collection models.Collection) uint64 {
	if f == nil {
		return 0
	}
	counter, ok := f.versions[collection]
	if !ok {
		return 0
	}
	return counter.Load()
}

// Snapshot returns the current token for every watched collection, in a
// stable order. Used for the websocket hello and collection list metadata.
func (f *Feed) Snapshot() []models.CollectionUpdate {
	updates := make([]models.CollectionUpdate, 0, len(watched))
	for _, collection := range watched {
		updates = append(updates, models.CollectionUpdate{Collection: collection, Version: f.Version(collection)})
	}
	return updates
}

func (f *Feed) run() {
	defer f.wg.Done()

	timer := time.NewTimer(f.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	for {
		select {
		case <-f.ctx.Done():
			timer.Stop()
			return
		case <-f.kick:
			// First event of a burst arms the timer; later events in the
			// window only extend the dirty set, bounding flush latency.
			if !armed {
				timer.Reset(f.debounce)
				armed = true
			}
		case <-timer.C:
			armed = false
			f.flush()
		}
	}
}

func (f *Feed) flush() {
	f.pendMu.Lock()
	if len(f.pending) == 0 {
		f.pendMu.Unlock()
		return
	}
	dirty := make([]models.Collection, 0, len(f.pending))
	for collection := range f.pending {
		dirty = append(dirty, collection)
		delete(f.pending, collection)
	}
	f.pendMu.Unlock()

	sort.Slice(dirty, func(i, j int) bool { return dirty[i] < dirty[j] })

	updates := make([]models.CollectionUpdate, 0, len(dirty))
	for _, collection := range dirty {
		updates = append(updates, models.CollectionUpdate{Collection: collection, Version: f.versions[collection].Load()})
	}

	f.mu.Lock()
	for id, ch := range f.subscribers {
		select {
		case ch <- updates:
		default:
			f.logger.Sugar().Debugw("subscriber lagging, update dropped", "subscriber", id)
		}
	}
	f.mu.Unlock()
}

// collectionsFor maps a source table event to the client-facing collections
// it invalidates. Profile events only count when they touch a tourist
// profile; assignment events also invalidate the derived tourist view.
func collectionsFor(event models.ChangeEvent) []models.Collection {
	switch event.Table {
	case models.TableProfiles:
		if event.UserType == models.UserTypeTourist {
			return []models.Collection{models.CollectionTourists}
		}
		return nil
	case models.TableGuides:
		return []models.Collection{models.CollectionGuides}
	case models.TableAssignments:
		return []models.Collection{models.CollectionAssignments, models.CollectionTourists}
	case models.TableGuideRequests:
		return []models.Collection{models.CollectionRequests}
	default:
		return nil
	}
}
