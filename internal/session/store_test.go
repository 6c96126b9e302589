package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"forgevision/internal/common/config"
	"forgevision/internal/common/database"
	"forgevision/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helpers
// ==========================

func createTestResult(name string) *models.RenderResult {
	return &models.RenderResult{
		ID:      "res-" + name,
		Request: models.DesignRequest{Concept: "drone", Industry: models.Industries[0], Style: models.Styles[0]},
		Brief: models.DesignBrief{
			Name:        name,
			Philosophy:  "P",
			Innovations: []string{"I1", "I2"},
			Specs:       models.Specs{"materials": "Titanium"},
			ImagePrompt: "a titanium drone",
		},
		Image:       []byte{0x89, 'P', 'N', 'G'},
		ContentType: models.RenderContentType,
		Width:       models.RenderWidth,
		Height:      models.RenderHeight,
		CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

type storeFactory func(t *testing.T) Store

func storeBackends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore(time.Hour)
		},
		"redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return NewRedisStore(client, "test:result:", time.Hour)
		},
	}
}

// ==========================
// Shared contract
// ==========================

func TestStore_Contract(t *testing.T) {
	for name, factory := range storeBackends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			_, err := store.Get(ctx, "s1")
			assert.True(t, errors.Is(err, ErrNotFound))

			first := createTestResult("first")
			require.NoError(t, store.Put(ctx, "s1", first))

			got, err := store.Get(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, first, got)

			second := createTestResult("second")
			require.NoError(t, store.Put(ctx, "s1", second))
			got, err = store.Get(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, "second", got.Brief.Name)

			require.NoError(t, store.Clear(ctx, "s1"))
			_, err = store.Get(ctx, "s1")
			assert.True(t, errors.Is(err, ErrNotFound))

			assert.NoError(t, store.Clear(ctx, "never-set"))
		})
	}
}

func TestStore_SessionsAreIsolated(t *testing.T) {
	for name, factory := range storeBackends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			require.NoError(t, store.Put(ctx, "alice", createTestResult("a")))
			require.NoError(t, store.Put(ctx, "bob", createTestResult("b")))
			require.NoError(t, store.Clear(ctx, "alice"))

			_, err := store.Get(ctx, "alice")
			assert.True(t, errors.Is(err, ErrNotFound))

			got, err := store.Get(ctx, "bob")
			require.NoError(t, err)
			assert.Equal(t, "b", got.Brief.Name)
		})
	}
}

// ==========================
// Memory store
// ==========================

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore(time.Minute)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Put(ctx, "s1", createTestResult("x")))
	require.NoError(t, store.Put(ctx, "s2", createTestResult("y")))

	now = now.Add(30 * time.Second)
	_, err := store.Get(ctx, "s1")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = store.Get(ctx, "s1")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, 1, store.Len())

	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_NoTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewMemoryStore(0)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Put(ctx, "s1", createTestResult("x")))
	now = now.Add(1000 * time.Hour)

	_, err := store.Get(ctx, "s1")
	assert.NoError(t, err)
	assert.Equal(t, 0, store.Sweep())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)
	original := createTestResult("x")
	require.NoError(t, store.Put(ctx, "s1", original))

	original.Image[0] = 0
	original.Brief.Specs["materials"] = "Lead"

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, byte(0x89), got.Image[0])
	assert.Equal(t, "Titanium", got.Brief.Specs.Materials())

	got.Brief.Innovations[0] = "mutated"
	again, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "I1", again.Brief.Innovations[0])
}

// ==========================
// Redis store
// ==========================

func TestRedisStore_KeyAndTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisStore(client, "forgevision:result:", 10*time.Minute)
	require.NoError(t, store.Put(ctx, "abc", createTestResult("x")))

	assert.True(t, mr.Exists("forgevision:result:abc"))
	assert.Equal(t, 10*time.Minute, mr.TTL("forgevision:result:abc"))

	mr.FastForward(11 * time.Minute)
	_, err := store.Get(ctx, "abc")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRedisStore_PutWritesJSON(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()

	result := createTestResult("x")
	data, _ := json.Marshal(result)
	mock.ExpectSet("p:s1", data, time.Hour).SetVal("OK")

	store := NewRedisStore(client, "p:", time.Hour)
	require.NoError(t, store.Put(ctx, "s1", result))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("get failure", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectGet("p:s1").SetErr(errors.New("connection refused"))

		_, err := NewRedisStore(client, "p:", time.Hour).Get(ctx, "s1")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrNotFound))
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("corrupt value", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectGet("p:s1").SetVal("not json")

		_, err := NewRedisStore(client, "p:", time.Hour).Get(ctx, "s1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode stored result")
	})

	t.Run("clear failure", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectDel("p:s1").SetErr(errors.New("READONLY"))

		err := NewRedisStore(client, "p:", time.Hour).Clear(ctx, "s1")
		require.Error(t, err)
	})
}

// ==========================
// Factory
// ==========================

func TestNew(t *testing.T) {
	store, err := New(config.SessionConfig{Backend: config.SessionBackendMemory, TTL: 60}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = New(config.SessionConfig{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	_, err = New(config.SessionConfig{Backend: config.SessionBackendRedis}, nil)
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	rc, err := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer rc.Close()

	store, err = New(config.SessionConfig{Backend: config.SessionBackendRedis, KeyPrefix: "k:", TTL: 60}, rc)
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, store)

	_, err = New(config.SessionConfig{Backend: "etcd"}, nil)
	assert.Error(t, err)
}
