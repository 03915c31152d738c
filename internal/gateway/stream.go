package gateway

import (
	"context"
	"sync"

	"github.com/okian/globepins/internal/adapters/docstore"
	"github.com/okian/globepins/internal/domain/model"
	"github.com/okian/globepins/pkg/metrics"
)

// Stream is a cancellable sequence of full record sets. Each value replaces
// the previous one.
type Stream struct {
	source string
	sub    docstore.Subscription
	out    chan []model.CityRecord
	once   sync.Once
}

// SubscribePinned streams the records with is_pinned set.
func (g *Gateway) SubscribePinned(ctx context.Context) (*Stream, error) {
	return g.subscribe(ctx, "pinned", docstore.Query{PinnedOnly: true})
}

// SubscribeAll streams the whole collection.
func (g *Gateway) SubscribeAll(ctx context.Context) (*Stream, error) {
	return g.subscribe(ctx, "catalog", docstore.Query{})
}

func (g *Gateway) subscribe(ctx context.Context, source string, q docstore.Query) (*Stream, error) {
	sub, err := g.store.Subscribe(ctx, q)
	if err != nil {
		return nil, err
	}
	s := &Stream{source: source, sub: sub, out: make(chan []model.CityRecord)}
	metrics.AddSubscriptions(1)
	go s.pump()
	return s, nil
}

func (s *Stream) pump() {
	defer close(s.out)
	for snap := range s.sub.C() {
		metrics.RecordSnapshot(s.source, len(snap.Records))
		s.out <- snap.Records
	}
}

// C delivers record sets until the stream is closed.
func (s *Stream) C() <-chan []model.CityRecord { return s.out }

// Close releases the underlying subscription. Pending values are dropped.
func (s *Stream) Close() {
	s.once.Do(func() {
		s.sub.Close()
		metrics.AddSubscriptions(-1)
		go func() {
			for range s.out {
			}
		}()
	})
}
