package batch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0mar1/tftai.gg-sub000/errors"
)

// recordingFetch echoes keys back as values, recording every batch.
type recordingFetch struct {
	mu      sync.Mutex
	batches [][]string
	calls   atomic.Int64
}

func (r *recordingFetch) fetch(_ context.Context, keys []string) ([]string, error) {
	r.calls.Add(1)
	r.mu.Lock()
	r.batches = append(r.batches, append([]string(nil), keys...))
	r.mu.Unlock()

	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = "v:" + k
	}
	return values, nil
}

func TestLoadCoalescesDuplicateKeys(t *testing.T) {
	ctx := context.Background()
	rec := &recordingFetch{}
	loader := NewLoader(rec.fetch, Options{Wait: 5 * time.Millisecond})

	t1 := loader.Load(ctx, "k")
	t2 := loader.Load(ctx, "k")
	t3 := loader.Load(ctx, "k")

	for _, thunk := range []*Thunk[string]{t1, t2, t3} {
		v, err := thunk.Value(ctx)
		require.NoError(t, err)
		assert.Equal(t, "v:k", v)
	}

	assert.Equal(t, int64(1), rec.calls.Load())
	assert.Equal(t, [][]string{{"k"}}, rec.batches)
}

func TestLoadGroupsDistinctKeys(t *testing.T) {
	ctx := context.Background()
	rec := &recordingFetch{}
	loader := NewLoader(rec.fetch, Options{Wait: 5 * time.Millisecond})

	ta := loader.Load(ctx, "a")
	tb := loader.Load(ctx, "b")
	tc := loader.Load(ctx, "a")

	va, err := ta.Value(ctx)
	require.NoError(t, err)
	vb, err := tb.Value(ctx)
	require.NoError(t, err)
	vc, err := tc.Value(ctx)
	require.NoError(t, err)

	assert.Equal(t, "v:a", va)
	assert.Equal(t, "v:b", vb)
	assert.Equal(t, "v:a", vc)

	assert.Equal(t, int64(1), rec.calls.Load())
	assert.Equal(t, [][]string{{"a", "b"}}, rec.batches)
}

func TestLoadManyPreservesOrder(t *testing.T) {
	ctx := context.Background()
	rec := &recordingFetch{}
	loader := NewLoader(rec.fetch, Options{Wait: time.Millisecond})

	values, err := loader.LoadMany(ctx, []string{"x", "y", "x", "z"})
	require.NoError(t, err)
	assert.Equal(t, []string{"v:x", "v:y", "v:x", "v:z"}, values)
	assert.Equal(t, int64(1), rec.calls.Load())
	assert.Equal(t, [][]string{{"x", "y", "z"}}, rec.batches)
}

func TestMaxBatchSizeSplitsGroups(t *testing.T) {
	ctx := context.Background()
	rec := &recordingFetch{}
	loader := NewLoader(rec.fetch, Options{MaxBatchSize: 2, Wait: 5 * time.Millisecond})

	values, err := loader.LoadMany(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"v:a", "v:b", "v:c"}, values)

	assert.Equal(t, int64(2), rec.calls.Load())
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"a", "b"}, rec.batches[0])
	assert.Equal(t, []string{"c"}, rec.batches[1])
}

func TestSeparateWindowsSeparateBatches(t *testing.T) {
	ctx := context.Background()
	rec := &recordingFetch{}
	loader := NewLoader(rec.fetch, Options{Wait: time.Millisecond})

	v1, err := loader.Load(ctx, "a").Value(ctx)
	require.NoError(t, err)
	v2, err := loader.Load(ctx, "a").Value(ctx)
	require.NoError(t, err)

	assert.Equal(t, "v:a", v1)
	assert.Equal(t, "v:a", v2)
	// The loader keeps no per-key cache: a later window refetches.
	assert.Equal(t, int64(2), rec.calls.Load())
}

func TestGroupErrorRejectsAllThunks(t *testing.T) {
	ctx := context.Background()
	boom := fmt.Errorf("backend down")
	loader := NewLoader(func(context.Context, []string) ([]string, error) {
		return nil, boom
	}, Options{Wait: time.Millisecond})

	t1 := loader.Load(ctx, "a")
	t2 := loader.Load(ctx, "b")

	_, err1 := t1.Value(ctx)
	_, err2 := t2.Value(ctx)

	require.ErrorIs(t, err1, boom)
	require.ErrorIs(t, err2, boom)
	assert.ErrorIs(t, err1, errors.ErrBatchFetch)
	// Same error for every slot, no silent partial success.
	assert.Equal(t, err1.Error(), err2.Error())
}

func TestResultCountMismatchRejectsGroup(t *testing.T) {
	ctx := context.Background()
	loader := NewLoader(func(_ context.Context, keys []string) ([]string, error) {
		return []string{"only one"}, nil
	}, Options{Wait: time.Millisecond})

	_, err := loader.LoadMany(ctx, []string{"a", "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBatchMismatch)
}

func TestKeyedErrorsResolveIndependently(t *testing.T) {
	ctx := context.Background()
	missing := fmt.Errorf("no such summoner")
	loader := NewLoader(func(_ context.Context, keys []string) ([]string, error) {
		values := make([]string, len(keys))
		keyed := make(KeyedErrors, len(keys))
		for i, k := range keys {
			if k == "bad" {
				keyed[i] = missing
			} else {
				values[i] = "v:" + k
			}
		}
		return values, keyed
	}, Options{Wait: time.Millisecond})

	good := loader.Load(ctx, "good")
	bad := loader.Load(ctx, "bad")

	v, err := good.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v:good", v)

	_, err = bad.Value(ctx)
	require.ErrorIs(t, err, missing)
}

func TestThunkRespectsContextCancellation(t *testing.T) {
	loader := NewLoader(func(ctx context.Context, keys []string) ([]string, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, Options{Wait: time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := loader.Load(ctx, "slow").Value(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConcurrentLoadsSingleBatch(t *testing.T) {
	ctx := context.Background()
	rec := &recordingFetch{}
	loader := NewLoader(rec.fetch, Options{Wait: 20 * time.Millisecond})

	const loaders = 20
	var wg sync.WaitGroup
	wg.Add(loaders)

	for i := 0; i < loaders; i++ {
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", n%5)
			v, err := loader.Load(ctx, key).Value(ctx)
			assert.NoError(t, err)
			assert.Equal(t, "v:"+key, v)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), rec.calls.Load())
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.batches[0], 5)
}

func TestKeyedErrorsMessage(t *testing.T) {
	ke := KeyedErrors{nil, fmt.Errorf("gone"), nil}
	assert.Contains(t, ke.Error(), "[1]: gone")
}
