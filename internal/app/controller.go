// Package service turns user gestures into view lookups and gated store
// mutations, and wires a full session together.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/okian/globepins/internal/domain/errkind"
	"github.com/okian/globepins/internal/domain/model"
	"github.com/okian/globepins/internal/domain/types"
	"github.com/okian/globepins/internal/ingest"
	"github.com/okian/globepins/internal/reconcile"
	"github.com/okian/globepins/internal/render"
	"github.com/okian/globepins/pkg/logger"
)

// Management actions offered on a selected city.
const (
	ActionPin         = "pin"
	ActionUnpin       = "unpin"
	ActionAssignBrand = "assign_brand"
)

// Views is the read side of the reconcile store.
type Views interface {
	View() *reconcile.View
	EnsureAllCities(ctx context.Context) error
	WaitCatalog(ctx context.Context) error
}

// Mutations is the write side of the sync gateway.
type Mutations interface {
	Get(ctx context.Context, id string) (model.CityRecord, error)
	TogglePin(ctx context.Context, id string) (bool, error)
	SetPin(ctx context.Context, id string, pinned bool) error
	PinRecord(ctx context.Context, rec model.CityRecord) error
	SetBrand(ctx context.Context, id, brand string) error
	ClearBrand(ctx context.Context, id string) error
	BrandRecord(ctx context.Context, rec model.CityRecord, brand string) error
}

// Importer starts an ingestion run.
type Importer interface {
	Ingest(ctx context.Context, content string, onProgress func(ingest.Progress), onComplete func(ingest.Outcome))
}

// Gate decides whether this session may mutate.
type Gate interface {
	CanMutate() bool
	Check(op string) error
}

// Selection is the outcome of activating a city.
type Selection struct {
	Point   types.Point
	Actions []string
}

// Controller owns the search state machine and the mutation entry points.
type Controller struct {
	views    Views
	mut      Mutations
	importer Importer
	gate     Gate
	sink     render.Sink
	log      logger.Logger

	debounce    time.Duration
	limit       int
	catalogWait time.Duration
	results     *cache.Cache
	onResults   func(query string, results []types.Point)

	mu    sync.Mutex
	state State
	seq   uint64
	timer *time.Timer
}

// NewController creates a controller. importer may be nil when the session
// cannot import.
func NewController(views Views, mut Mutations, importer Importer, gate Gate, opts ...Option) *Controller {
	cfg := settings{
		sink:        render.Nop{},
		debounce:    DefaultDebounce,
		limit:       DefaultSearchLimit,
		cacheTTL:    DefaultSearchCacheTTL,
		catalogWait: DefaultCatalogWait,
		logger:      logger.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Controller{
		views:       views,
		mut:         mut,
		importer:    importer,
		gate:        gate,
		sink:        cfg.sink,
		log:         cfg.logger.Named("controller"),
		debounce:    cfg.debounce,
		limit:       cfg.limit,
		catalogWait: cfg.catalogWait,
		results:     cache.New(cfg.cacheTTL, 2*cfg.cacheTTL),
		onResults:   cfg.onResults,
	}
}

// Select focuses the camera on key and returns the actions this session may
// take on it. The search interaction returns to Idle.
func (c *Controller) Select(ctx context.Context, key string) (Selection, error) {
	p, ok := c.lookup(key)
	if !ok {
		return Selection{}, fmt.Errorf("%w: %s", ErrUnknownCity, key)
	}
	sel := Selection{Point: p, Actions: c.actions(p)}

	c.mu.Lock()
	c.cancelLocked()
	c.state = StateIdle
	c.mu.Unlock()

	if err := c.sink.Focus(ctx, render.Focus{Point: p, Actions: sel.Actions}); err != nil {
		c.log.Warn(ctx, "focus failed", logger.String("key", key), logger.Error(err))
	}
	return sel, nil
}

func (c *Controller) actions(p types.Point) []string {
	if !c.gate.CanMutate() {
		return nil
	}
	if p.Pinned {
		return []string{ActionAssignBrand, ActionUnpin}
	}
	return []string{ActionPin, ActionAssignBrand}
}

// TogglePin inverts the pin flag of key. The stored document decides the
// current value; a city known only from the overlay is written in full on its
// first pin.
func (c *Controller) TogglePin(ctx context.Context, key string) (bool, error) {
	if err := c.gate.Check("toggle_pin"); err != nil {
		return false, err
	}
	stored, err := c.stored(ctx, key)
	if err != nil {
		return false, err
	}
	if stored {
		return c.mut.TogglePin(ctx, key)
	}
	p, ok := c.lookup(key)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownCity, key)
	}
	return true, c.mut.PinRecord(ctx, recordOf(p))
}

// SetPin writes an explicit pin value.
func (c *Controller) SetPin(ctx context.Context, key string, pinned bool) error {
	if err := c.gate.Check("set_pin"); err != nil {
		return err
	}
	if !pinned {
		return c.mut.SetPin(ctx, key, false)
	}
	stored, err := c.stored(ctx, key)
	if err != nil {
		return err
	}
	if p, ok := c.lookup(key); ok && !stored {
		return c.mut.PinRecord(ctx, recordOf(p))
	}
	return c.mut.SetPin(ctx, key, true)
}

// stored reports whether key has a document in the store.
func (c *Controller) stored(ctx context.Context, key string) (bool, error) {
	_, err := c.mut.Get(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errkind.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Unpin clears the pin flag.
func (c *Controller) Unpin(ctx context.Context, key string) error {
	return c.SetPin(ctx, key, false)
}

// AssignBrand sets the brand of key, pinning it in the same write when it is
// not pinned yet. An empty brand clears it.
func (c *Controller) AssignBrand(ctx context.Context, key, brand string) error {
	if err := c.gate.Check("assign_brand"); err != nil {
		return err
	}
	if strings.TrimSpace(brand) == "" {
		return c.mut.ClearBrand(ctx, key)
	}
	if _, err := model.ParseBrand(brand); err != nil {
		return err
	}
	p, ok := c.lookup(key)
	if ok && !p.Pinned {
		return c.mut.BrandRecord(ctx, recordOf(p), brand)
	}
	return c.mut.SetBrand(ctx, key, brand)
}

// Import starts ingesting content. A denied session gets the error back and
// no run is started.
func (c *Controller) Import(ctx context.Context, content string, onProgress func(ingest.Progress), onComplete func(ingest.Outcome)) error {
	if err := c.gate.Check("ingest"); err != nil {
		return err
	}
	if c.importer == nil {
		return fmt.Errorf("import: %w", ErrNotRunning)
	}
	c.importer.Ingest(ctx, content, onProgress, onComplete)
	return nil
}

// lookup finds key in the merged view first, then in the catalog.
func (c *Controller) lookup(key string) (types.Point, bool) {
	v := c.views.View()
	for _, pts := range [][]types.Point{v.Points, v.Catalog} {
		for _, p := range pts {
			if p.Key == key {
				return p, true
			}
		}
	}
	return types.Point{}, false
}

func recordOf(p types.Point) model.CityRecord {
	return model.CityRecord{
		ID:       p.Key,
		City:     firstNonEmpty(p.City, strings.TrimSpace(p.Label)),
		Country:  p.Country,
		Label:    p.Label,
		Lat:      p.Lat,
		Lng:      p.Lng,
		IsPinned: p.Pinned,
		Brand:    p.Brand,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// CatalogReady reports whether the full catalog has been hydrated.
func (c *Controller) CatalogReady() bool {
	return c.views.View().CatalogReady
}
