// Package docstore defines the document store capability the session syncs
// against and its adapters.
package docstore

import (
	"context"
	"time"

	"github.com/okian/globepins/internal/domain/model"
)

// Store is a keyed collection of city documents.
type Store interface {
	// Get returns the document stored under id or ErrNotFound.
	Get(ctx context.Context, id string) (model.CityRecord, error)

	// MergeSet upserts only the fields present in p.
	MergeSet(ctx context.Context, id string, p Patch) error

	// Update writes the fields present in p. The document must exist.
	Update(ctx context.Context, id string, p Patch) error

	// Commit applies every merge-set in ops atomically: all or nothing.
	Commit(ctx context.Context, ops []Op) error

	// Count returns the number of documents. Callers treat it as diagnostics.
	Count(ctx context.Context) (int, error)

	// Subscribe delivers a full snapshot of the documents matching q now and
	// after every change until the subscription is closed.
	Subscribe(ctx context.Context, q Query) (Subscription, error)

	Close() error
}

// Subscription is a live snapshot stream.
type Subscription interface {
	// C delivers snapshots. A slow reader only observes the latest one.
	C() <-chan Snapshot
	// Close stops delivery and closes C. It is safe to call more than once.
	Close()
}

// Snapshot is the complete matching record set at some point in time. It
// replaces whatever the reader held before.
type Snapshot struct {
	Records []model.CityRecord
	Version uint64
	At      time.Time
}

// Query filters a subscription.
type Query struct {
	PinnedOnly bool
}

// Match reports whether rec belongs to the query result.
func (q Query) Match(rec model.CityRecord) bool {
	return !q.PinnedOnly || rec.IsPinned
}

// Op is one merge-set inside a batch commit.
type Op struct {
	ID    string
	Patch Patch
}

// Patch lists the fields a write touches. Nil fields are left as stored.
type Patch struct {
	City      *string
	Country   *string
	Label     *string
	Lat       *float64
	Lng       *float64
	IsPinned  *bool
	Brand     *model.Brand
	UpdatedAt *string
}

// GeometryPatch sets the descriptive fields of rec. It never carries pin or
// brand state.
func GeometryPatch(rec model.CityRecord, now time.Time) Patch {
	return Patch{
		City:      ptr(rec.City),
		Country:   ptr(rec.Country),
		Label:     ptr(rec.Label),
		Lat:       ptr(rec.Lat),
		Lng:       ptr(rec.Lng),
		UpdatedAt: ptr(Timestamp(now)),
	}
}

// PinPatch sets the pin flag.
func PinPatch(pinned bool, now time.Time) Patch {
	return Patch{IsPinned: ptr(pinned), UpdatedAt: ptr(Timestamp(now))}
}

// BrandPatch sets the brand and, when pin is not nil, the pin flag.
func BrandPatch(b model.Brand, pin *bool, now time.Time) Patch {
	return Patch{Brand: ptr(b), IsPinned: pin, UpdatedAt: ptr(Timestamp(now))}
}

// Timestamp renders t the way updated_at is stored.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Fields returns the document field names p writes, in a fixed order.
func (p Patch) Fields() []string {
	out := make([]string, 0, 8)
	for _, f := range []struct {
		name string
		set  bool
	}{
		{"city", p.City != nil},
		{"country", p.Country != nil},
		{"label", p.Label != nil},
		{"lat", p.Lat != nil},
		{"lng", p.Lng != nil},
		{"is_pinned", p.IsPinned != nil},
		{"brand", p.Brand != nil},
		{"updated_at", p.UpdatedAt != nil},
	} {
		if f.set {
			out = append(out, f.name)
		}
	}
	return out
}

// Empty reports whether p writes nothing.
func (p Patch) Empty() bool { return len(p.Fields()) == 0 }

// Apply merges p into rec.
func (p Patch) Apply(rec *model.CityRecord) {
	if p.City != nil {
		rec.City = *p.City
	}
	if p.Country != nil {
		rec.Country = *p.Country
	}
	if p.Label != nil {
		rec.Label = *p.Label
	}
	if p.Lat != nil {
		rec.Lat = *p.Lat
	}
	if p.Lng != nil {
		rec.Lng = *p.Lng
	}
	if p.IsPinned != nil {
		rec.IsPinned = *p.IsPinned
	}
	if p.Brand != nil {
		rec.Brand = *p.Brand
	}
	if p.UpdatedAt != nil {
		rec.UpdatedAt = *p.UpdatedAt
	}
}

// Doc returns p as a JSON-ready document fragment. An empty brand is
// written as null.
func (p Patch) Doc() map[string]any {
	doc := make(map[string]any, 8)
	if p.City != nil {
		doc["city"] = *p.City
	}
	if p.Country != nil {
		doc["country"] = *p.Country
	}
	if p.Label != nil {
		doc["label"] = *p.Label
	}
	if p.Lat != nil {
		doc["lat"] = *p.Lat
	}
	if p.Lng != nil {
		doc["lng"] = *p.Lng
	}
	if p.IsPinned != nil {
		doc["is_pinned"] = *p.IsPinned
	}
	if p.Brand != nil {
		if *p.Brand == model.BrandNone {
			doc["brand"] = nil
		} else {
			doc["brand"] = string(*p.Brand)
		}
	}
	if p.UpdatedAt != nil {
		doc["updated_at"] = *p.UpdatedAt
	}
	return doc
}

func ptr[T any](v T) *T { return &v }
