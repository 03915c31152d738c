package docstore

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/globepins/internal/domain/errkind"
	"github.com/okian/globepins/internal/domain/model"
)

func TestClassify(t *testing.T) {
	assert.NoError(t, classify("op", nil))

	err := classify("docstore.commit", &pq.Error{Code: "53300", Message: "too many connections"})
	assert.True(t, errors.Is(err, errkind.ErrQuotaExceeded))
	assert.False(t, errors.Is(err, errkind.ErrWriteFailure))

	err = classify("docstore.commit", &pq.Error{Code: "23505", Message: "duplicate key"})
	assert.True(t, errors.Is(err, errkind.ErrWriteFailure))

	err = classify("docstore.commit", errors.New("connection reset"))
	assert.True(t, errors.Is(err, errkind.ErrWriteFailure))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestCollectionName(t *testing.T) {
	assert.True(t, collectionName.MatchString(model.Collection))
	assert.False(t, collectionName.MatchString("all cities"))
	assert.False(t, collectionName.MatchString("1cities"))
	assert.False(t, collectionName.MatchString(`x";drop`))
}

func TestSubscriptionKeepsNewestSnapshot(t *testing.T) {
	sub := newSubscription(Query{}, func(*subscription) {})
	defer sub.Close()

	sub.offer(Snapshot{Version: 2, Records: []model.CityRecord{{ID: "new"}}})
	sub.offer(Snapshot{Version: 1, Records: []model.CityRecord{{ID: "old"}}})
	got := <-sub.C()
	assert.Equal(t, uint64(2), got.Version)

	sub.offer(Snapshot{Version: 2, Records: []model.CityRecord{{ID: "again"}}})
	got = <-sub.C()
	assert.Equal(t, "again", got.Records[0].ID)
}

func TestPostgresSubscribeFailureUnregisters(t *testing.T) {
	db, err := sql.Open("postgres", "host=127.0.0.1 port=1 sslmode=disable connect_timeout=1")
	require.NoError(t, err)
	s := &PostgresStore{
		db:         db,
		collection: model.Collection,
		subs:       make(map[*subscription]struct{}),
		stop:       make(chan struct{}),
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = s.Subscribe(ctx, Query{})
	require.Error(t, err)
	assert.Empty(t, s.subs)
}

// TestPostgresStore runs against a real server when GLOBEPINS_TEST_POSTGRES_DSN is set.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("GLOBEPINS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GLOBEPINS_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	coll := "globepins_test_" + time.Now().Format("150405")
	s, err := OpenPostgres(ctx, dsn, WithCollection(coll))
	require.NoError(t, err)
	defer func() {
		_, _ = s.db.ExecContext(context.Background(), "DROP TABLE IF EXISTS "+s.table())
		_ = s.Close()
	}()

	now := time.Now()
	rec := model.CityRecord{City: "Tokyo", Label: "Tokyo", Lat: 35.6762, Lng: 139.6503}
	id := "tokyo_35.6762_139.6503"

	sub, err := s.Subscribe(ctx, Query{PinnedOnly: true})
	require.NoError(t, err)
	defer sub.Close()
	first := <-sub.C()
	assert.Empty(t, first.Records)

	require.NoError(t, s.Commit(ctx, []Op{{ID: id, Patch: GeometryPatch(rec, now)}}))
	require.NoError(t, s.Update(ctx, id, BrandPatch(model.BrandPlaza, ptr(true), now)))
	require.NoError(t, s.MergeSet(ctx, id, GeometryPatch(rec, now)))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.IsPinned)
	assert.Equal(t, model.BrandPlaza, got.Brand)

	err = s.Update(ctx, "missing", PinPatch(true, now))
	assert.True(t, errors.Is(err, errkind.ErrNotFound))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	deadline := time.After(10 * time.Second)
	for {
		select {
		case snap := <-sub.C():
			if len(snap.Records) == 1 {
				assert.Equal(t, id, snap.Records[0].ID)
				return
			}
		case <-deadline:
			t.Fatal("pinned snapshot not delivered")
		}
	}
}
