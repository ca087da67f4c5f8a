package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/reqview/internal/domain"
	"github.com/xela07ax/reqview/internal/infra"
	"go.uber.org/zap/zaptest"
)

// fakeRedis подменяет только GET и SET. Остальные методы Cmdable не реализованы
// и упадут на nil-интерфейсе, если RedisStore начнет их вызывать.
type fakeRedis struct {
	redis.Cmdable

	mu     sync.Mutex
	data   map[string]string
	ttl    map[string]time.Duration
	getErr error
	setErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	default:
		return redis.NewStatusResult("", fmt.Errorf("unexpected value type %T", value))
	}
	f.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()

	t.Run("missing key is a cache miss", func(t *testing.T) {
		store := NewRedisStore(newFakeRedis())

		b, err := store.Get(ctx, "reqview:query:absent")

		assert.ErrorIs(t, err, ErrCacheMiss)
		assert.Nil(t, b)
	})

	t.Run("set then get", func(t *testing.T) {
		rdb := newFakeRedis()
		store := NewRedisStore(rdb)

		require.NoError(t, store.Set(ctx, "k", []byte(`{"Status":200}`), 30*time.Second))
		b, err := store.Get(ctx, "k")

		require.NoError(t, err)
		assert.Equal(t, `{"Status":200}`, string(b))
		assert.Equal(t, 30*time.Second, rdb.ttl["k"])
	})

	t.Run("connection errors are not misses", func(t *testing.T) {
		rdb := newFakeRedis()
		rdb.getErr = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")
		rdb.setErr = rdb.getErr
		store := NewRedisStore(rdb)

		_, err := store.Get(ctx, "k")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrCacheMiss)
		assert.Error(t, store.Set(ctx, "k", []byte("v"), time.Second))
	})

	t.Run("cached fetcher over redis", func(t *testing.T) {
		q := domain.RequestsWithApproverAndLogs
		rdb := newFakeRedis()
		f := &scriptedFetcher{steps: []func() (*domain.Response, error){okResp(`{"Request_ID":7}`)}}
		c := NewCachedFetcher(f, NewRedisStore(rdb), time.Minute, infra.SourceREST, nil, zaptest.NewLogger(t))

		_, err := c.Fetch(ctx, q)
		require.NoError(t, err)
		resp, err := c.Fetch(ctx, q)
		require.NoError(t, err)

		assert.Equal(t, 1, f.Calls())
		require.Len(t, resp.Data, 1)
		assert.JSONEq(t, `{"Request_ID":7}`, string(resp.Data[0]))
		assert.Contains(t, rdb.data, infra.QueryCacheKey(infra.SourceREST, q.String()))
	})
}
