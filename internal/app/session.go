package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/globepins/internal/access"
	"github.com/okian/globepins/internal/adapters/checkpoint"
	"github.com/okian/globepins/internal/adapters/docstore"
	"github.com/okian/globepins/internal/config"
	"github.com/okian/globepins/internal/domain/model"
	"github.com/okian/globepins/internal/domain/types"
	"github.com/okian/globepins/internal/gateway"
	"github.com/okian/globepins/internal/ingest"
	"github.com/okian/globepins/internal/overlay"
	"github.com/okian/globepins/internal/reconcile"
	"github.com/okian/globepins/internal/render"
	"github.com/okian/globepins/pkg/logger"
)

// Session is one viewer or admin session: a store connection, the access
// gate, the reconciled view and the controller acting on it.
type Session struct {
	mu sync.Mutex

	cfg       *config.Config
	id        string
	store     docstore.Store
	ckpt      checkpoint.Store
	sink      render.Sink
	out       io.Writer
	onResults func(string, []types.Point)
	logger    logger.Logger

	started    bool
	closers    []func() error
	gate       *access.Gate
	gateway    *gateway.Gateway
	views      *reconcile.Store
	ingestor   *ingest.Ingestor
	controller *Controller
}

// SessionOption applies a configuration option to the Session.
type SessionOption func(*Session)

// WithDocStore injects the document store instead of opening one from config.
func WithDocStore(s docstore.Store) SessionOption {
	return func(ss *Session) { ss.store = s }
}

// WithCheckpointStore injects the checkpoint store.
func WithCheckpointStore(c checkpoint.Store) SessionOption {
	return func(ss *Session) { ss.ckpt = c }
}

// WithRenderSink sets the sink merged views and focus requests go to.
// Defaults to JSON lines on stdout.
func WithRenderSink(s render.Sink) SessionOption {
	return func(ss *Session) { ss.sink = s }
}

// WithRenderOutput sets where the default JSON sink writes.
func WithRenderOutput(w io.Writer) SessionOption {
	return func(ss *Session) { ss.out = w }
}

// WithSearchResults registers the debounced search callback.
func WithSearchResults(fn func(query string, results []types.Point)) SessionOption {
	return func(ss *Session) { ss.onResults = fn }
}

// WithSessionLogger sets a custom logger for the session.
func WithSessionLogger(l logger.Logger) SessionOption {
	return func(ss *Session) {
		if l != nil {
			ss.logger = l
		}
	}
}

// NewSession constructs a session from cfg. Nothing is opened until Start.
func NewSession(cfg *config.Config, opts ...SessionOption) *Session {
	s := &Session{cfg: cfg, id: uuid.NewString(), out: os.Stdout, logger: logger.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.String("session", s.id))
	return s
}

// Start opens the backends, subscribes to pinned cities, loads the overlay
// and resolves the admin token. Overlay and token failures are logged; the
// session still starts with the overlay empty or the gate closed.
func (s *Session) Start(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	defer func() {
		if err != nil {
			s.closeAll()
		}
	}()

	s.logger.Info(ctx, "starting session...")

	env, err := access.EnvFromURL(s.cfg.PageURL, s.cfg.InFrame, s.cfg.LocalOverride)
	if err != nil {
		return fmt.Errorf("%w: page_url: %w", config.ErrInvalidConfig, err)
	}
	var gateOpts []access.Option
	gateOpts = append(gateOpts, access.WithLogger(s.logger))
	if s.cfg.JWTSecret != "" {
		gateOpts = append(gateOpts, access.WithResolver(access.NewJWTResolver([]byte(s.cfg.JWTSecret), s.cfg.JWTClaim)))
	}
	s.gate = access.New(access.Policy{
		AdminHosts: s.cfg.AdminHosts,
		AdminPaths: s.cfg.AdminPaths,
		DevHosts:   s.cfg.DevHosts,
	}, env, gateOpts...)

	if s.store == nil {
		if s.store, err = s.openStore(ctx); err != nil {
			return err
		}
		s.closers = append(s.closers, s.store.Close)
	}
	if s.ckpt == nil {
		if s.ckpt, err = s.openCheckpoint(ctx); err != nil {
			return err
		}
	}
	if s.sink == nil {
		s.sink = render.NewJSONSink(s.out, render.HintsFromQuery(env.Query, s.cfg.Mobile, env.Embedded()))
	}

	s.gateway = gateway.New(s.store, s.gate, gateway.WithLogger(s.logger))
	s.views = reconcile.New(s.gateway,
		reconcile.WithSink(s.sink),
		reconcile.WithOverlayVisible(overlayVisible(env, s.cfg.ShowOverlay)),
		reconcile.WithMailboxCapacity(s.cfg.MailboxSize),
		reconcile.WithLogger(s.logger),
	)
	s.ingestor = ingest.New(s.gateway, s.ckpt, s.gate,
		ingest.WithBatchSize(s.cfg.BatchSize),
		ingest.WithInterBatchDelay(s.cfg.InterBatchDelay()),
		ingest.WithRetryPolicy(ingest.RetryPolicy{Base: s.cfg.RetryBase(), Max: s.cfg.RetryMax(), Retries: s.cfg.RetryAttempts}),
		ingest.WithLogger(s.logger),
	)
	s.controller = NewController(s.views, s.gateway, s.ingestor, s.gate,
		WithSink(s.sink),
		WithDebounce(s.cfg.SearchDebounce()),
		WithSearchLimit(s.cfg.SearchLimit),
		WithSearchCacheTTL(s.cfg.SearchCacheTTL()),
		WithResults(s.onResults),
		WithLogger(s.logger),
	)

	var overlayRecs []model.OverlayRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.views.Init(ctx)
	})
	g.Go(func() error {
		recs, err := overlay.NewLoader(s.cfg.OverlaySource, overlay.WithLogger(s.logger)).Load(gctx)
		if err != nil {
			s.logger.Warn(gctx, "overlay unavailable", logger.Error(err))
			return nil
		}
		overlayRecs = recs
		return nil
	})
	if s.cfg.AdminToken != "" {
		g.Go(func() error {
			if err := s.gate.Authenticate(gctx, s.cfg.AdminToken); err != nil {
				s.logger.Warn(gctx, "admin token rejected", logger.Error(err))
			}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return err
	}
	s.closers = append(s.closers, func() error { s.views.Dispose(); return nil })

	if len(overlayRecs) > 0 {
		if err = s.views.LoadOverlay(ctx, overlayRecs); err != nil {
			return err
		}
	}

	s.started = true
	s.logger.Info(ctx, "session started",
		logger.String("store", s.cfg.Store),
		logger.String("checkpoint", s.cfg.Checkpoint),
		logger.Int("overlay", len(overlayRecs)),
		logger.Bool("can_mutate", s.gate.CanMutate()),
	)
	return nil
}

func (s *Session) openStore(ctx context.Context) (docstore.Store, error) {
	switch s.cfg.Store {
	case config.StorePostgres:
		return docstore.OpenPostgres(ctx, s.cfg.PostgresDSN,
			docstore.WithCollection(s.cfg.Collection),
			docstore.WithPostgresLogger(s.logger),
		)
	case config.StoreMemory, "":
		return docstore.NewMemStore(docstore.WithMemLogger(s.logger)), nil
	}
	return nil, fmt.Errorf("%w: unknown store %q", config.ErrInvalidConfig, s.cfg.Store)
}

func (s *Session) openCheckpoint(ctx context.Context) (checkpoint.Store, error) {
	switch s.cfg.Checkpoint {
	case config.CheckpointRedis:
		client, err := checkpoint.OpenRedis(ctx, s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, client.Close)
		return checkpoint.NewRedis(client, s.cfg.CheckpointKey), nil
	case config.CheckpointFile:
		return checkpoint.NewFile(s.cfg.CheckpointPath), nil
	case config.CheckpointMemory, "":
		return checkpoint.NewMemory(), nil
	}
	return nil, fmt.Errorf("%w: unknown checkpoint backend %q", config.ErrInvalidConfig, s.cfg.Checkpoint)
}

// overlayVisible honours an overlay=0|1 query toggle over the configured
// default.
func overlayVisible(env access.Env, def bool) bool {
	switch strings.ToLower(env.Query.Get("overlay")) {
	case "0", "false", "off":
		return false
	case "1", "true", "on":
		return true
	}
	return def
}

// Stop tears the session down in reverse order of Start.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	err := s.closeAll()
	s.logger.Info(context.Background(), "session stopped")
	return err
}

func (s *Session) closeAll() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Controller returns the session's controller.
func (s *Session) Controller() (*Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, ErrNotRunning
	}
	return s.controller, nil
}

// Views returns the reconcile store.
func (s *Session) Views() (*reconcile.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, ErrNotRunning
	}
	return s.views, nil
}

// Gate returns the access gate.
func (s *Session) Gate() (*access.Gate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, ErrNotRunning
	}
	return s.gate, nil
}

// Stats returns session statistics for monitoring.
func (s *Session) Stats(ctx context.Context) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := map[string]any{
		"session": s.id,
		"started": s.started,
	}
	if !s.started {
		return stats
	}
	v := s.views.View()
	stats["version"] = v.Version
	stats["points"] = len(v.Points)
	stats["catalogReady"] = v.CatalogReady
	stats["overlayVisible"] = v.OverlayVisible
	stats["canMutate"] = s.gate.CanMutate()
	stats["searchState"] = s.controller.State().String()
	if n, err := s.gateway.Count(ctx); err == nil {
		stats["cities"] = n
	}
	return stats
}
