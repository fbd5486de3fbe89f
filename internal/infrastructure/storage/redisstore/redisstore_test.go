package redisstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"loyalty-tracker/internal/domain/customer"
	"loyalty-tracker/internal/pkg/apperrors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeClient keeps values in a map and can be told to fail.
type fakeClient struct {
	values  map[string]string
	getErr  error
	setErr  error
	setKeys []string

	// beforeSetNX runs once, between a missed GET and the SETNX that follows.
	beforeSetNX func()
}

func newFakeClient() *fakeClient {
	return &fakeClient{values: map[string]string{}}
}

func (f *fakeClient) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.setKeys = append(f.setKeys, key)
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if hook := f.beforeSetNX; hook != nil {
		f.beforeSetNX = nil
		hook()
	}
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.setKeys = append(f.setKeys, key)
	f.values[key] = string(value.([]byte))
	return redis.NewBoolResult(true, nil)
}

func TestLoad_MissingKeyIsInitialized(t *testing.T) {
	client := newFakeClient()
	store := New(client, "", false, logger)

	db, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, db.Customers)
	assert.Equal(t, []string{DefaultKey}, client.setKeys)
	assert.JSONEq(t, `{"customers": []}`, client.values[DefaultKey])
}

func TestLoad_MissingKeyDoesNotOverwriteConcurrentWrite(t *testing.T) {
	client := newFakeClient()
	store := New(client, DefaultKey, false, logger)
	ctx := context.Background()

	alice := &customer.Database{Customers: []*customer.Customer{
		{ID: "c-1", Name: "Alice", NormalizedName: "alice", TotalSpentCents: 0, LastVisitISO: "2024-05-01T12:00:00.000Z"},
	}}
	client.beforeSetNX = func() {
		require.NoError(t, store.Replace(ctx, alice))
	}

	db, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, alice, db)

	reloaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, reloaded.Customers, 1)
	assert.Equal(t, "c-1", reloaded.Customers[0].ID)
}

func TestReplaceThenLoad_RoundTrip(t *testing.T) {
	client := newFakeClient()
	store := New(client, "shop:loyalty", false, logger)
	ctx := context.Background()

	db := &customer.Database{Customers: []*customer.Customer{
		{ID: "c-1", Name: "Alice", NormalizedName: "alice", TotalSpentCents: 2500, LastVisitISO: "2024-05-01T12:00:00.000Z"},
	}}
	require.NoError(t, store.Replace(ctx, db))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, db, loaded)
}

func TestLoad_Malformed(t *testing.T) {
	t.Run("lenient", func(t *testing.T) {
		client := newFakeClient()
		client.values[DefaultKey] = "not json"
		store := New(client, DefaultKey, false, logger)

		db, err := store.Load(context.Background())
		require.NoError(t, err)
		assert.Empty(t, db.Customers)
		assert.Equal(t, "not json", client.values[DefaultKey], "lenient load must not overwrite the value")
	})

	t.Run("strict", func(t *testing.T) {
		client := newFakeClient()
		client.values[DefaultKey] = `{"other": 1}`
		store := New(client, DefaultKey, true, logger)

		db, err := store.Load(context.Background())
		assert.Nil(t, db)
		assert.ErrorIs(t, err, apperrors.ErrCorruptStorage)
	})
}

func TestErrorsPropagate(t *testing.T) {
	ctx := context.Background()

	t.Run("get failure", func(t *testing.T) {
		client := newFakeClient()
		client.getErr = errors.New("connection refused")
		store := New(client, DefaultKey, false, logger)

		_, err := store.Load(ctx)
		assert.ErrorIs(t, err, apperrors.ErrStorage)
	})

	t.Run("set failure", func(t *testing.T) {
		client := newFakeClient()
		client.setErr = errors.New("READONLY You can't write against a read only replica")
		store := New(client, DefaultKey, false, logger)

		err := store.Replace(ctx, customer.NewDatabase())
		assert.ErrorIs(t, err, apperrors.ErrStorage)
	})

	t.Run("initialize failure", func(t *testing.T) {
		client := newFakeClient()
		client.setErr = errors.New("READONLY You can't write against a read only replica")
		store := New(client, DefaultKey, false, logger)

		db, err := store.Load(ctx)
		assert.Nil(t, db)
		assert.ErrorIs(t, err, apperrors.ErrStorage)
	})

	t.Run("nil database", func(t *testing.T) {
		store := New(newFakeClient(), DefaultKey, false, logger)
		assert.ErrorIs(t, store.Replace(ctx, nil), apperrors.ErrInvalidArgument)
	})
}
