package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/okian/globepins/internal/domain/errkind"
	"github.com/okian/globepins/internal/domain/model"
	"github.com/okian/globepins/pkg/logger"
)

var collectionName = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// PostgresStore keeps each document as a JSONB row. Merge writes use the
// jsonb concatenation operator so untouched fields survive, and every write
// sends a NOTIFY that makes subscribers re-query.
type PostgresStore struct {
	db           *sql.DB
	dsn          string
	collection   string
	minReconnect time.Duration
	maxReconnect time.Duration
	log          logger.Logger

	listener *pq.Listener

	mu      sync.Mutex
	subs    map[*subscription]struct{}
	version uint64
	closed  bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// OpenPostgres connects to dsn, ensures the collection table exists and
// starts listening for change notifications.
func OpenPostgres(ctx context.Context, dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	s := &PostgresStore{
		dsn:          dsn,
		collection:   model.Collection,
		minReconnect: 2 * time.Second,
		maxReconnect: time.Minute,
		log:          logger.Default(),
		subs:         make(map[*subscription]struct{}),
		stop:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !collectionName.MatchString(s.collection) {
		return nil, fmt.Errorf("docstore: invalid collection name %q", s.collection)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("docstore: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("docstore: ping: %w", err)
	}
	s.db = db

	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.listener = pq.NewListener(dsn, s.minReconnect, s.maxReconnect, s.listenerEvent)
	if err := s.listener.Listen(s.channel()); err != nil {
		_ = s.listener.Close()
		_ = db.Close()
		return nil, fmt.Errorf("docstore: listen: %w", err)
	}

	s.wg.Add(1)
	go s.dispatch()
	return s, nil
}

func (s *PostgresStore) table() string   { return pq.QuoteIdentifier(s.collection) }
func (s *PostgresStore) channel() string { return s.collection + "_changes" }

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	seq BIGSERIAL,
	id  TEXT PRIMARY KEY,
	doc JSONB NOT NULL DEFAULT '{}'::jsonb
)`, s.table())
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("docstore: ensure schema: %w", err)
	}
	idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s ((doc->>'is_pinned'))`,
		pq.QuoteIdentifier(s.collection+"_pinned_idx"), s.table())
	if _, err := s.db.ExecContext(ctx, idx); err != nil {
		return fmt.Errorf("docstore: ensure index: %w", err)
	}
	return nil
}

// Get implements Store.Get.
func (s *PostgresStore) Get(ctx context.Context, id string) (model.CityRecord, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT id, doc FROM %s WHERE id = $1`, s.table()), id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CityRecord{}, errkind.Newf("docstore.get", errkind.ErrNotFound, "%s", id)
	}
	if err != nil {
		return model.CityRecord{}, classify("docstore.get", err)
	}
	return rec, nil
}

// MergeSet implements Store.MergeSet.
func (s *PostgresStore) MergeSet(ctx context.Context, id string, p Patch) error {
	return s.Commit(ctx, []Op{{ID: id, Patch: p}})
}

// Update implements Store.Update.
func (s *PostgresStore) Update(ctx context.Context, id string, p Patch) error {
	const op = "docstore.update"
	if err := validateOps([]Op{{ID: id, Patch: p}}); err != nil {
		return errkind.Wrap(op, errkind.ErrWriteFailure, err)
	}
	doc, err := json.Marshal(p.Doc())
	if err != nil {
		return errkind.Wrap(op, errkind.ErrWriteFailure, err)
	}
	return s.inTx(ctx, op, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET doc = doc || $2::jsonb WHERE id = $1`, s.table()), id, string(doc))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errkind.Newf(op, errkind.ErrNotFound, "%s", id)
		}
		return nil
	})
}

// Commit implements Store.Commit inside one transaction.
func (s *PostgresStore) Commit(ctx context.Context, ops []Op) error {
	const op = "docstore.commit"
	if err := validateOps(ops); err != nil {
		return errkind.Wrap(op, errkind.ErrWriteFailure, err)
	}
	if len(ops) == 0 {
		return nil
	}
	stmt := fmt.Sprintf(`INSERT INTO %[1]s (id, doc) VALUES ($1, '{"is_pinned": false}'::jsonb || $2::jsonb)
ON CONFLICT (id) DO UPDATE SET doc = %[1]s.doc || $2::jsonb`, s.table())

	return s.inTx(ctx, op, func(tx *sql.Tx) error {
		prepared, err := tx.PrepareContext(ctx, stmt)
		if err != nil {
			return err
		}
		defer prepared.Close()
		for _, o := range ops {
			doc, err := json.Marshal(o.Patch.Doc())
			if err != nil {
				return err
			}
			if _, err := prepared.ExecContext(ctx, o.ID, string(doc)); err != nil {
				return err
			}
		}
		return nil
	})
}

// inTx runs fn and a change notification in one transaction so subscribers
// hear about the write only after it commits.
func (s *PostgresStore) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		var kinded *errkind.Error
		if errors.As(err, &kinded) {
			return err
		}
		return classify(op, err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, s.channel(), op); err != nil {
		_ = tx.Rollback()
		return classify(op, err)
	}
	if err := tx.Commit(); err != nil {
		return classify(op, err)
	}
	return nil
}

// Count implements Store.Count.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, s.table())).Scan(&n); err != nil {
		return 0, classify("docstore.count", err)
	}
	return n, nil
}

// Subscribe implements Store.Subscribe.
// The subscription is registered before the first query so a write landing
// in between is picked up by the next refresh.
func (s *PostgresStore) Subscribe(ctx context.Context, q Query) (Subscription, error) {
	sub := newSubscription(q, s.unsubscribe)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	snap, err := s.query(ctx, q)
	if err != nil {
		sub.Close()
		return nil, err
	}
	sub.offer(snap)
	sub.closeOn(ctx)
	return sub, nil
}

// query reads the version before the rows, so a snapshot never claims a
// version newer than the data it holds.
func (s *PostgresStore) query(ctx context.Context, q Query) (Snapshot, error) {
	s.mu.Lock()
	version := s.version
	s.mu.Unlock()

	stmt := fmt.Sprintf(`SELECT id, doc FROM %s`, s.table())
	if q.PinnedOnly {
		stmt += ` WHERE doc->>'is_pinned' IN ('true', '1')`
	}
	stmt += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return Snapshot{}, classify("docstore.query", err)
	}
	defer rows.Close()

	var recs []model.CityRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return Snapshot{}, classify("docstore.query", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, classify("docstore.query", err)
	}

	return Snapshot{Records: recs, Version: version, At: time.Now()}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (model.CityRecord, error) {
	var (
		id  string
		raw []byte
		rec model.CityRecord
	)
	if err := row.Scan(&id, &raw); err != nil {
		return rec, err
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, fmt.Errorf("decode %s: %w", id, err)
	}
	rec.ID = id
	return rec, nil
}

// dispatch re-queries every subscription whenever a notification arrives or
// the listener reconnects.
func (s *PostgresStore) dispatch() {
	defer s.wg.Done()
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-s.stop:
			return
		case _, ok := <-s.listener.Notify:
			if !ok {
				return
			}
			s.refresh()
		case <-ping.C:
			if err := s.listener.Ping(); err != nil {
				s.log.Warn(context.Background(), "listener ping failed", logger.Error(err))
			}
		}
	}
}

func (s *PostgresStore) refresh() {
	s.mu.Lock()
	s.version++
	subs := make([]*subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, sub := range subs {
		snap, err := s.query(ctx, sub.q)
		if err != nil {
			s.log.Error(ctx, "snapshot re-query failed", logger.Bool("pinned_only", sub.q.PinnedOnly), logger.Error(err))
			continue
		}
		sub.offer(snap)
	}
}

func (s *PostgresStore) listenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
		s.log.Warn(context.Background(), "listener connection lost", logger.Int("event", int(ev)), logger.Error(err))
	case pq.ListenerEventReconnected:
		s.log.Info(context.Background(), "listener reconnected")
	}
}

// Close implements Store.Close.
func (s *PostgresStore) Close() error {
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
	close(s.stop)
	lerr := s.listener.Close()
	s.wg.Wait()
	return errors.Join(lerr, s.db.Close())
}

func (s *PostgresStore) unsubscribe(sub *subscription) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

// classify maps driver errors onto the write error kinds. SQLSTATE class 53
// (insufficient resources) is the server's way of saying "slow down".
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "53" {
		return errkind.Wrap(op, errkind.ErrQuotaExceeded, err)
	}
	return errkind.Wrap(op, errkind.ErrWriteFailure, err)
}
