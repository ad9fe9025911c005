package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCallsLoaderOnceAndCaches(t *testing.T) {
	c := New()
	var calls int32
	key := Key{Symbol: "m1", Source: "news"}

	loader := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		return "value", nil
	}

	v1, err := c.Get(key, loader)
	require.NoError(t, err)
	assert.Equal(t, "value", v1)

	v2, err := c.Get(key, loader)
	require.NoError(t, err)
	assert.Equal(t, "value", v2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetIsSingleFlightUnderConcurrency(t *testing.T) {
	c := New()
	var calls int32
	key := Key{Symbol: "m1", Source: "news"}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Get(key, func() (any, error) {
				atomic.AddInt32(&calls, 1)
				return "value", nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetDoesNotCacheOnFailure(t *testing.T) {
	c := New()
	key := Key{Symbol: "m1", Source: "news"}
	failErr := errors.New("upstream down")

	_, err := c.Get(key, func() (any, error) { return nil, failErr })
	assert.ErrorIs(t, err, failErr)

	v, err := c.Get(key, func() (any, error) { return "recovered", nil })
	require.NoError(t, err)
	assert.Equal(t, "recovered", v)
}

func TestResetEvictsEverything(t *testing.T) {
	c := New()
	key := Key{Symbol: "m1", Source: "news"}
	_, _ = c.Get(key, func() (any, error) { return "value", nil })

	c.Reset()

	var calls int32
	_, _ = c.Get(key, func() (any, error) {
		atomic.AddInt32(&calls, 1)
		return "value2", nil
	})
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDistinctKeysDoNotCollide(t *testing.T) {
	c := New()
	a, err := c.Get(Key{Symbol: "m1", Source: "news"}, func() (any, error) { return "a", nil })
	require.NoError(t, err)
	b, err := c.Get(Key{Symbol: "m1", Source: "sentiment"}, func() (any, error) { return "b", nil })
	require.NoError(t, err)
	assert.Equal(t, "a", a)
	assert.Equal(t, "b", b)
}
