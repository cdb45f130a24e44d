package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_SerializesSameKey(t *testing.T) {
	locker := NewLocal()
	ctx := context.Background()

	var inside int32
	var maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			unlock, err := locker.Lock(ctx, ProductKey(1))
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}

	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestLocal_DifferentKeysDoNotWait(t *testing.T) {
	locker := NewLocal()
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, ProductKey(1))
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	other, err := locker.Lock(ctx, ProductKey(2))
	require.NoError(t, err)
	other()
}

func TestLocal_ContextCancelledWhileWaiting(t *testing.T) {
	locker := NewLocal()

	unlock, err := locker.Lock(context.Background(), ImportKey)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(ctx, ImportKey)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()

	again, err := locker.Lock(context.Background(), ImportKey)
	require.NoError(t, err)
	again()

	assert.Empty(t, locker.(*localLocker).keys)
}
