package docstore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/globepins/internal/domain/errkind"
	"github.com/okian/globepins/internal/domain/model"
	"github.com/okian/globepins/pkg/logger"
)

// MemStore is an in-process Store. Documents keep their first insertion order.
type MemStore struct {
	mu      sync.RWMutex
	docs    map[string]model.CityRecord
	order   []string
	version uint64
	subs    map[*subscription]struct{}
	closed  bool

	fault  FaultFunc
	writes atomic.Int64
	log    logger.Logger
}

// NewMemStore constructs an empty in-memory store.
func NewMemStore(opts ...MemOption) *MemStore {
	s := &MemStore{
		docs: make(map[string]model.CityRecord),
		subs: make(map[*subscription]struct{}),
		log:  logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed stores records as-is and notifies subscribers. It does not count as a
// write.
func (s *MemStore) Seed(recs ...model.CityRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		s.put(rec)
	}
	s.publishLocked()
}

// Writes returns the number of write calls that reached the store, including
// rejected ones.
func (s *MemStore) Writes() int64 { return s.writes.Load() }

// Get implements Store.Get.
func (s *MemStore) Get(ctx context.Context, id string) (model.CityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.CityRecord{}, ErrClosed
	}
	rec, ok := s.docs[id]
	if !ok {
		return model.CityRecord{}, errkind.Newf("docstore.get", errkind.ErrNotFound, "%s", id)
	}
	return rec, nil
}

// MergeSet implements Store.MergeSet.
func (s *MemStore) MergeSet(ctx context.Context, id string, p Patch) error {
	return s.write(ctx, "merge_set", []Op{{ID: id, Patch: p}}, false)
}

// Update implements Store.Update.
func (s *MemStore) Update(ctx context.Context, id string, p Patch) error {
	return s.write(ctx, "update", []Op{{ID: id, Patch: p}}, true)
}

// Commit implements Store.Commit.
func (s *MemStore) Commit(ctx context.Context, ops []Op) error {
	return s.write(ctx, "commit", ops, false)
}

func (s *MemStore) write(ctx context.Context, op string, ops []Op, mustExist bool) error {
	s.writes.Add(1)
	if err := validateOps(ops); err != nil {
		return errkind.Wrap("docstore."+op, errkind.ErrWriteFailure, err)
	}
	if err := ctx.Err(); err != nil {
		return errkind.Wrap("docstore."+op, errkind.ErrWriteFailure, err)
	}
	if s.fault != nil {
		if err := s.fault(ctx, op, ops); err != nil {
			s.log.Debug(ctx, "write rejected", logger.String("op", op), logger.Int("ops", len(ops)), logger.Error(err))
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if mustExist {
		for _, o := range ops {
			if _, ok := s.docs[o.ID]; !ok {
				return errkind.Newf("docstore."+op, errkind.ErrNotFound, "%s", o.ID)
			}
		}
	}
	for _, o := range ops {
		rec, ok := s.docs[o.ID]
		if !ok {
			rec = model.CityRecord{ID: o.ID}
		}
		o.Patch.Apply(&rec)
		s.put(rec)
	}
	s.publishLocked()
	return nil
}

func validateOps(ops []Op) error {
	if len(ops) > MaxBatchOps {
		return ErrBatchSize
	}
	for _, o := range ops {
		if o.ID == "" {
			return ErrEmptyID
		}
		if o.Patch.Empty() {
			return ErrEmptyPatch
		}
	}
	return nil
}

// put stores rec. Must be called with s.mu held.
func (s *MemStore) put(rec model.CityRecord) {
	if _, ok := s.docs[rec.ID]; !ok {
		s.order = append(s.order, rec.ID)
	}
	s.docs[rec.ID] = rec
}

// Count implements Store.Count.
func (s *MemStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	return len(s.docs), nil
}

// Subscribe implements Store.Subscribe.
func (s *MemStore) Subscribe(ctx context.Context, q Query) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	sub := newSubscription(q, s.unsubscribe)
	s.subs[sub] = struct{}{}
	sub.offer(s.snapshotLocked(q))
	sub.closeOn(ctx)
	return sub, nil
}

// Close implements Store.Close.
func (s *MemStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := make([]*subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	return nil
}

// publishLocked pushes a fresh snapshot to every subscriber. Must be called
// with s.mu held.
func (s *MemStore) publishLocked() {
	s.version++
	for sub := range s.subs {
		sub.offer(s.snapshotLocked(sub.q))
	}
}

func (s *MemStore) snapshotLocked(q Query) Snapshot {
	recs := make([]model.CityRecord, 0, len(s.order))
	for _, id := range s.order {
		if rec := s.docs[id]; q.Match(rec) {
			recs = append(recs, rec)
		}
	}
	return Snapshot{Records: recs, Version: s.version, At: time.Now()}
}

func (s *MemStore) unsubscribe(sub *subscription) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}
