// Package gateway is the only path from the session to the document store.
// Every mutation passes the access gate before the store is touched.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/okian/globepins/internal/adapters/docstore"
	"github.com/okian/globepins/internal/domain/errkind"
	"github.com/okian/globepins/internal/domain/model"
	"github.com/okian/globepins/pkg/logger"
	"github.com/okian/globepins/pkg/metrics"
)

// Gate is the mutation permission check.
type Gate interface {
	Check(op string) error
}

// Gateway wraps a docstore.Store with permission checks, typed streams and
// write metrics.
type Gateway struct {
	store docstore.Store
	gate  Gate
	now   func() time.Time
	log   logger.Logger
}

// New creates a gateway over store guarded by gate.
func New(store docstore.Store, gate Gate, opts ...Option) *Gateway {
	g := &Gateway{
		store: store,
		gate:  gate,
		now:   time.Now,
		log:   logger.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Now returns the gateway clock.
func (g *Gateway) Now() time.Time { return g.now() }

// Get reads one document.
func (g *Gateway) Get(ctx context.Context, id string) (model.CityRecord, error) {
	return g.store.Get(ctx, id)
}

// MergeSet upserts the fields in p.
func (g *Gateway) MergeSet(ctx context.Context, id string, p docstore.Patch) error {
	return g.mutate(ctx, "merge_set", func() error { return g.store.MergeSet(ctx, id, p) })
}

// Update writes the fields in p to an existing document.
func (g *Gateway) Update(ctx context.Context, id string, p docstore.Patch) error {
	return g.mutate(ctx, "update", func() error { return g.store.Update(ctx, id, p) })
}

// Commit applies ops atomically.
func (g *Gateway) Commit(ctx context.Context, ops []docstore.Op) error {
	return g.mutate(ctx, "commit", func() error { return g.store.Commit(ctx, ops) })
}

// TogglePin reads the current pin flag and writes its inverse. Two sessions
// toggling the same city concurrently race; the last write wins.
func (g *Gateway) TogglePin(ctx context.Context, id string) (bool, error) {
	if err := g.gate.Check("toggle_pin"); err != nil {
		return false, err
	}
	rec, err := g.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	pinned := !rec.IsPinned
	err = g.mutate(ctx, "toggle_pin", func() error {
		return g.store.Update(ctx, id, docstore.PinPatch(pinned, g.now()))
	})
	if err != nil {
		return rec.IsPinned, err
	}
	return pinned, nil
}

// SetPin writes an explicit pin value, creating the document if needed.
func (g *Gateway) SetPin(ctx context.Context, id string, pinned bool) error {
	return g.mutate(ctx, "set_pin", func() error {
		return g.store.MergeSet(ctx, id, docstore.PinPatch(pinned, g.now()))
	})
}

// PinRecord pins rec, writing its geometry too so a city known only from the
// reference dataset becomes a full document.
func (g *Gateway) PinRecord(ctx context.Context, rec model.CityRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	p := docstore.GeometryPatch(rec, g.now())
	pinned := true
	p.IsPinned = &pinned
	return g.mutate(ctx, "pin_record", func() error { return g.store.MergeSet(ctx, rec.ID, p) })
}

// SetBrand validates brand and writes it.
func (g *Gateway) SetBrand(ctx context.Context, id, brand string) error {
	b, err := model.ParseBrand(brand)
	if err != nil {
		return err
	}
	return g.mutate(ctx, "set_brand", func() error {
		return g.store.MergeSet(ctx, id, docstore.BrandPatch(b, nil, g.now()))
	})
}

// SetBrandAndPin writes brand and pin flag in one document write.
func (g *Gateway) SetBrandAndPin(ctx context.Context, id, brand string, pinned bool) error {
	b, err := model.ParseBrand(brand)
	if err != nil {
		return err
	}
	return g.mutate(ctx, "set_brand_pin", func() error {
		return g.store.MergeSet(ctx, id, docstore.BrandPatch(b, &pinned, g.now()))
	})
}

// ClearBrand removes the brand of an existing document. The pin flag is left
// as it is.
func (g *Gateway) ClearBrand(ctx context.Context, id string) error {
	return g.mutate(ctx, "clear_brand", func() error {
		return g.store.Update(ctx, id, docstore.BrandPatch(model.BrandNone, nil, g.now()))
	})
}

// BrandRecord brands and pins rec in one write, carrying its geometry.
func (g *Gateway) BrandRecord(ctx context.Context, rec model.CityRecord, brand string) error {
	b, err := model.ParseBrand(brand)
	if err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	pinned := true
	p := docstore.GeometryPatch(rec, g.now())
	p.IsPinned = &pinned
	if b != model.BrandNone {
		p.Brand = &b
	}
	return g.mutate(ctx, "brand_record", func() error { return g.store.MergeSet(ctx, rec.ID, p) })
}

// Count returns the collection size. Failures are logged and returned; they
// must never abort the caller.
func (g *Gateway) Count(ctx context.Context) (int, error) {
	n, err := g.store.Count(ctx)
	if err != nil {
		g.log.Warn(ctx, "count failed", logger.Error(err))
		return 0, err
	}
	return n, nil
}

func (g *Gateway) mutate(ctx context.Context, op string, write func() error) error {
	if err := g.gate.Check(op); err != nil {
		return err
	}
	metrics.RecordStoreWrite(op)
	if err := write(); err != nil {
		metrics.RecordStoreWriteError(op, kindLabel(err))
		g.log.Debug(ctx, "store write failed", logger.String("op", op), logger.Error(err))
		return err
	}
	return nil
}

func kindLabel(err error) string {
	switch {
	case errors.Is(err, errkind.ErrQuotaExceeded):
		return "quota"
	case errors.Is(err, errkind.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "write"
	}
}
