// Package reconcile keeps the client-side merged view of pinned cities and
// the reference overlay.
package reconcile

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/globepins/internal/adapters/mq/queue"
	"github.com/okian/globepins/internal/adapters/mq/worker"
	"github.com/okian/globepins/internal/domain/model"
	"github.com/okian/globepins/internal/domain/types"
	"github.com/okian/globepins/internal/gateway"
	"github.com/okian/globepins/internal/render"
	"github.com/okian/globepins/pkg/logger"
	"github.com/okian/globepins/pkg/metrics"
)

const defaultMailboxCapacity = 64

// Source provides the live record streams.
type Source interface {
	SubscribePinned(ctx context.Context) (*gateway.Stream, error)
	SubscribeAll(ctx context.Context) (*gateway.Stream, error)
}

// View is an immutable snapshot of the store. Readers must not modify it.
type View struct {
	Version        uint64
	Points         []types.Point
	Catalog        []types.Point
	CatalogReady   bool
	OverlayVisible bool
}

type msgKind int

const (
	msgPinned msgKind = iota
	msgCatalog
	msgCatalogReleased
	msgOverlay
	msgVisibility
	msgBarrier
)

type message struct {
	kind    msgKind
	cities  []model.CityRecord
	overlay []model.OverlayRecord
	visible bool
	done    chan struct{}
}

// Store owns pinnedSet, overlaySet and the lazily hydrated catalog. Only the
// worker goroutine touches them; everything else reads View.
type Store struct {
	src    Source
	sink   render.Sink
	logger logger.Logger

	capacity int
	mailbox  *queue.InMemoryQueue[message]
	worker   *worker.InMemoryWorker[message]
	view     atomic.Pointer[View]

	// owned by the worker
	pinned      []model.CityRecord
	overlay     []model.OverlayRecord
	catalog     []model.CityRecord
	catalogUp   bool
	showOverlay bool
	version     uint64

	mu        sync.Mutex
	running   bool
	pumpCtx   context.Context
	stopPumps context.CancelFunc
	pumps     sync.WaitGroup
	pinnedSub *gateway.Stream
	allSub    *gateway.Stream
	hydrate   singleflight.Group

	// closed by the worker once the first catalog snapshot is in the view
	catalogReady  chan struct{}
	catalogClosed bool
}

// New creates a store reading from src. Call Init before use.
func New(src Source, opts ...Option) *Store {
	cfg := config{sink: render.Nop{}, capacity: defaultMailboxCapacity, logger: logger.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Store{
		src:         src,
		sink:        cfg.sink,
		logger:      cfg.logger.Named("reconcile"),
		capacity:    cfg.capacity,
		showOverlay: cfg.showOverlay,
	}
	s.view.Store(&View{OverlayVisible: cfg.showOverlay})
	return s
}

// Init starts the owner loop and subscribes to the pinned stream.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyStarted
	}

	stream, err := s.src.SubscribePinned(ctx)
	if err != nil {
		return err
	}

	s.mailbox = queue.NewInMemoryQueue[message](queue.WithCapacity(s.capacity), queue.WithName("reconcile"))
	s.worker = worker.NewInMemoryWorker[message](s.mailbox, worker.HandlerFunc[message](s.handle),
		worker.WithName("reconcile"), worker.WithLogger(s.logger))
	go s.worker.Run(context.WithoutCancel(ctx))

	s.pumpCtx, s.stopPumps = context.WithCancel(context.WithoutCancel(ctx))
	s.pinnedSub = stream
	s.startPump(stream, msgPinned)
	s.running = true
	s.logger.Info(ctx, "reconcile store started")
	return nil
}

// Dispose unsubscribes, drains the mailbox and stops the loop. It is safe to
// call more than once.
func (s *Store) Dispose() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	for _, st := range []*gateway.Stream{s.pinnedSub, s.allSub} {
		if st != nil {
			st.Close()
		}
	}
	s.pinnedSub, s.allSub = nil, nil
	s.stopPumps()
	s.mu.Unlock()

	s.pumps.Wait()
	_ = s.mailbox.Close()

	ctx, cancel := context.WithTimeout(context.Background(), worker.ShutdownTimeout)
	defer cancel()
	select {
	case <-s.worker.Done():
	case <-ctx.Done():
		_ = s.worker.Shutdown(ctx)
	}
	s.logger.Info(ctx, "reconcile store disposed")
}

// View returns the current merged view.
func (s *Store) View() *View { return s.view.Load() }

// LoadOverlay replaces the reference dataset.
func (s *Store) LoadOverlay(ctx context.Context, recs []model.OverlayRecord) error {
	return s.post(ctx, message{kind: msgOverlay, overlay: recs})
}

// SetOverlayVisible shows or hides the reference dataset.
func (s *Store) SetOverlayVisible(ctx context.Context, visible bool) error {
	return s.post(ctx, message{kind: msgVisibility, visible: visible})
}

// Flush waits until every message posted before it has been applied.
func (s *Store) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if err := s.post(ctx, message{kind: msgBarrier, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-s.worker.Done():
		return ErrNotStarted
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnsureAllCities hydrates the unfiltered catalog once. Concurrent callers
// share one subscription attempt; later calls are no-ops.
func (s *Store) EnsureAllCities(ctx context.Context) error {
	_, err, _ := s.hydrate.Do("catalog", func() (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.running {
			return nil, ErrNotStarted
		}
		if s.allSub != nil {
			return nil, nil
		}
		stream, err := s.src.SubscribeAll(ctx)
		if err != nil {
			return nil, err
		}
		s.allSub = stream
		s.catalogReady, s.catalogClosed = make(chan struct{}), false
		s.startPump(stream, msgCatalog)
		s.logger.Debug(ctx, "catalog hydration started")
		return nil, nil
	})
	return err
}

// WaitCatalog blocks until the catalog requested by EnsureAllCities is part of
// the published view.
func (s *Store) WaitCatalog(ctx context.Context) error {
	s.mu.Lock()
	running, ready := s.running, s.catalogReady
	var stopped <-chan struct{}
	if s.worker != nil {
		stopped = s.worker.Done()
	}
	s.mu.Unlock()
	if !running {
		return ErrNotStarted
	}
	if ready == nil {
		return ErrCatalogNotRequested
	}
	select {
	case <-ready:
		return nil
	case <-stopped:
		return ErrNotStarted
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReleaseAllCities drops the catalog subscription and its cached records.
func (s *Store) ReleaseAllCities(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotStarted
	}
	stream := s.allSub
	s.allSub, s.catalogReady = nil, nil
	s.mu.Unlock()

	if stream == nil {
		return nil
	}
	stream.Close()
	return s.post(ctx, message{kind: msgCatalogReleased})
}

func (s *Store) post(ctx context.Context, m message) error {
	s.mu.Lock()
	running, mailbox := s.running, s.mailbox
	s.mu.Unlock()
	if !running {
		return ErrNotStarted
	}
	return mailbox.Publish(ctx, m)
}

// startPump forwards stream values into the mailbox. Caller holds mu.
func (s *Store) startPump(stream *gateway.Stream, kind msgKind) {
	ctx := s.pumpCtx
	s.pumps.Add(1)
	go func() {
		defer s.pumps.Done()
		for recs := range stream.C() {
			if err := s.mailbox.Publish(ctx, message{kind: kind, cities: recs}); err != nil {
				return
			}
		}
	}()
}

func (s *Store) handle(ctx context.Context, m message) error {
	switch m.kind {
	case msgPinned:
		s.pinned = m.cities
	case msgCatalog:
		// a late snapshot from a released stream must not resurrect it
		s.mu.Lock()
		live := s.allSub != nil
		s.mu.Unlock()
		if !live {
			return nil
		}
		s.catalog, s.catalogUp = m.cities, true
		err := s.publish(ctx, m.kind)
		s.markCatalogReady()
		return err
	case msgCatalogReleased:
		s.catalog, s.catalogUp = nil, false
	case msgOverlay:
		s.overlay = m.overlay
	case msgVisibility:
		if s.showOverlay == m.visible {
			return nil
		}
		s.showOverlay = m.visible
	case msgBarrier:
		close(m.done)
		return nil
	}
	return s.publish(ctx, m.kind)
}

func (s *Store) markCatalogReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.catalogReady != nil && !s.catalogClosed {
		close(s.catalogReady)
		s.catalogClosed = true
	}
}

func (s *Store) publish(ctx context.Context, kind msgKind) error {
	start := time.Now()
	prev := s.view.Load()
	s.version++
	v := &View{
		Version:        s.version,
		Points:         prev.Points,
		Catalog:        prev.Catalog,
		CatalogReady:   s.catalogUp,
		OverlayVisible: s.showOverlay,
	}
	if kind == msgCatalog || kind == msgCatalogReleased {
		v.Catalog = Catalog(s.catalog)
		s.view.Store(v)
		return nil
	}

	v.Points = Merge(s.pinned, s.overlay, s.showOverlay)
	s.view.Store(v)
	metrics.RecordReconcile(len(v.Points), float64(time.Since(start).Microseconds())/1000)
	if err := s.sink.Render(ctx, v.Points); err != nil {
		s.logger.Warn(ctx, "render failed", logger.Error(err), logger.Int("points", len(v.Points)))
	}
	return nil
}
