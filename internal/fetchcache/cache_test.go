package fetchcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(rdb, nil), mr
}

func TestGetOrLoad_CachesResult(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	var calls int32
	load := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte(`["a","b"]`), nil
	}

	b, err := c.GetOrLoad(ctx, "listings:active", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, string(b))

	b, err = c.GetOrLoad(ctx, "listings:active", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, string(b))

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second read must come from cache")
}

func TestGetOrLoad_StalenessExpires(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	var calls int32
	load := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte(`{}`), nil
	}

	_, err := c.GetOrLoad(ctx, "k", 30*time.Second, load)
	require.NoError(t, err)

	mr.FastForward(31 * time.Second)

	_, err = c.GetOrLoad(ctx, "k", 30*time.Second, load)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "stale entry must be refetched")
}

func TestGetOrLoad_DeduplicatesConcurrentLoads(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	load := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []byte(`"x"`), nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([][]byte, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrLoad(ctx, "dedup", time.Minute, load)
		}(i)
	}

	// Let all goroutines pile onto the flight before the loader finishes.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, `"x"`, string(results[i]))
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "concurrent callers must share one load")
}

func TestGetOrLoad_LoaderErrorNotCached(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	boom := errors.New("upstream down")
	var calls int32
	load := func(ctx context.Context) ([]byte, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, boom
		}
		return []byte(`"ok"`), nil
	}

	_, err := c.GetOrLoad(ctx, "err", time.Minute, load)
	require.ErrorIs(t, err, boom)

	b, err := c.GetOrLoad(ctx, "err", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, `"ok"`, string(b))
}

func TestInvalidate(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	var calls int32
	load := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte(`1`), nil
	}

	_, err := c.GetOrLoad(ctx, "inv", time.Minute, load)
	require.NoError(t, err)

	c.Invalidate(ctx, "inv")

	_, err = c.GetOrLoad(ctx, "inv", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetOrLoad_NoRedisDegradesToPassThrough(t *testing.T) {
	c := New(nil, nil)
	ctx := context.Background()

	var calls int32
	load := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte(`"direct"`), nil
	}

	for i := 0; i < 3; i++ {
		b, err := c.GetOrLoad(ctx, "nc", time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, `"direct"`, string(b))
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "without redis every read hits the loader")
}
