package trainer

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"math"
	"math/rand"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanonone/nodevec/pkg/model"
	"github.com/sanonone/nodevec/pkg/vocab"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func degreesOf(edges EdgeList) map[uint64]uint64 {
	degrees := make(map[uint64]uint64)
	for _, e := range edges {
		degrees[e.Source]++
		degrees[e.Target]++
	}
	return degrees
}

func newModel(t *testing.T, degrees map[uint64]uint64, size int, downSampling float64) *model.Model {
	t.Helper()
	m, err := model.New(degrees, model.GroundTruth{K: 2}, model.Options{
		Size:         size,
		DownSampling: downSampling,
		Seed:         1,
		TableSize:    10000,
	}, quietLogger())
	require.NoError(t, err)
	return m
}

// waitForGoroutines polls until the goroutine count drops back to base.
func waitForGoroutines(t *testing.T, base int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > base {
		if time.Now().After(deadline) {
			t.Fatalf("goroutine leak: %d running, expected %d", runtime.NumGoroutine(), base)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// twoCommunities returns two 5-cliques (ids 1-5 and 6-10) joined by one edge.
func twoCommunities() EdgeList {
	var edges EdgeList
	for _, group := range [][]uint64{{1, 2, 3, 4, 5}, {6, 7, 8, 9, 10}} {
		for i := range group {
			for j := i + 1; j < len(group); j++ {
				edges = append(edges, vocab.RawEdge{Source: group[i], Target: group[j]})
			}
		}
	}
	return append(edges, vocab.RawEdge{Source: 5, Target: 6})
}

func TestTrainScenarioB(t *testing.T) {
	edges := EdgeList{{Source: 1, Target: 2}, {Source: 2, Target: 3}, {Source: 1, Target: 3}, {Source: 2, Target: 1}}
	m := newModel(t, map[uint64]uint64{1: 5, 2: 3, 3: 2}, 4, 0)

	opts := DefaultOptions()
	opts.Workers = 2
	tr := New(opts, quietLogger())

	stats, err := tr.Train(m, edges, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Processed)
	assert.Equal(t, int64(4), stats.Raw)
	assert.Equal(t, int64(2), stats.Jobs)
	assert.NotEmpty(t, stats.RunID)

	loss := Loss(m, edges)
	assert.False(t, math.IsNaN(loss), "loss is NaN")
	assert.False(t, math.IsInf(loss, 0), "loss is infinite")
	assert.GreaterOrEqual(t, loss, 0.0)
}

func TestTrainEmptyVocabularyScenarioC(t *testing.T) {
	base := runtime.NumGoroutine()
	tr := New(DefaultOptions(), quietLogger())

	_, err := tr.Train(&model.Model{}, EdgeList{{Source: 1, Target: 2}}, 2, 1)
	assert.ErrorIs(t, err, ErrEmptyVocabulary)

	_, err = tr.Train(nil, EdgeList{}, 2, 1)
	assert.ErrorIs(t, err, ErrEmptyVocabulary)

	assert.LessOrEqual(t, runtime.NumGoroutine(), base, "no goroutine may be spawned")
}

func TestTrainRejectsBadLayoutAndArguments(t *testing.T) {
	m := newModel(t, map[uint64]uint64{1: 1, 2: 1}, 4, 0)
	tr := New(DefaultOptions(), quietLogger())

	_, err := tr.Train(m, EdgeList{}, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = tr.Train(m, EdgeList{}, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	m.Store.NodeEmbedding = m.Store.NodeEmbedding[:3]
	_, err = tr.Train(m, EdgeList{}, 1, 1)
	assert.Error(t, err)
}

func TestTrainBackpressureAndLiveness(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	var edges EdgeList
	for i := 0; i < 5000; i++ {
		edges = append(edges, vocab.RawEdge{
			Source: uint64(rng.Intn(50) + 1),
			Target: uint64(rng.Intn(50) + 1),
		})
	}
	degrees := degreesOf(edges)
	degrees[1]++ // the minimum id must exist
	m := newModel(t, degrees, 8, 0)

	for _, workers := range []int{1, 2, 4} {
		base := runtime.NumGoroutine()

		opts := DefaultOptions()
		opts.Workers = workers
		opts.Negative = 3
		stats, err := New(opts, quietLogger()).Train(m, edges, 7, 2)
		require.NoError(t, err)

		assert.Equal(t, 2*workers, stats.QueueCapacity)
		assert.Equal(t, int64(len(edges)*2), stats.Raw)
		assert.Equal(t, stats.Kept, stats.Processed, "every kept edge is processed exactly once")
		assert.Equal(t, (stats.Kept+6)/7, stats.Jobs)

		waitForGoroutines(t, base)
	}
}

func TestTrainRejectsNegativesWithoutTable(t *testing.T) {
	edges := EdgeList{{Source: 1, Target: 2}, {Source: 2, Target: 3}}
	m := newModel(t, map[uint64]uint64{1: 1, 2: 2, 3: 1}, 4, 0)
	m.Table = nil

	base := runtime.NumGoroutine()
	opts := DefaultOptions()
	opts.Negative = 2
	_, err := New(opts, quietLogger()).Train(m, edges, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.LessOrEqual(t, runtime.NumGoroutine(), base)

	// Without negative sampling the table is never read.
	stats, err := New(DefaultOptions(), quietLogger()).Train(m, edges, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Processed)
}

// countingSource records how many edges the producer has pulled.
type countingSource struct {
	src    EdgeSource
	pulled atomic.Int64
}

func (c *countingSource) Len() int { return c.src.Len() }

func (c *countingSource) All() iter.Seq[vocab.RawEdge] {
	return func(yield func(vocab.RawEdge) bool) {
		for e := range c.src.All() {
			c.pulled.Add(1)
			if !yield(e) {
				return
			}
		}
	}
}

// waitForSteady polls fn until it returns the same value for several
// consecutive polls.
func waitForSteady(fn func() int64) int64 {
	deadline := time.Now().Add(2 * time.Second)
	last, stable := fn(), 0
	for stable < 5 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
		if cur := fn(); cur == last {
			stable++
		} else {
			last, stable = cur, 0
		}
	}
	return last
}

func TestTrainProducerBlocksWhileWorkersStall(t *testing.T) {
	edges := twoCommunities()
	m := newModel(t, degreesOf(edges), 4, 0)
	const chunkSize = 2

	for _, workers := range []int{1, 3} {
		src := &countingSource{src: Repeat(edges, 20)}
		total := int64(src.Len())

		opts := DefaultOptions()
		opts.Workers = workers
		opts.LockTimeout = 10 * time.Second
		tr := New(opts, quietLogger())

		// Holding the progress lock parks every worker after its first job.
		started := make(chan *progress, 1)
		tr.onStart = func(p *progress) {
			p.lock.TryAcquire(1)
			started <- p
		}

		type result struct {
			stats Stats
			err   error
		}
		done := make(chan result, 1)
		go func() {
			stats, err := tr.Train(m, src, chunkSize, 1)
			done <- result{stats, err}
		}()

		p := <-started
		pulled := waitForSteady(src.pulled.Load)

		// Each stalled worker holds one job, the queue holds 2w more and the
		// producer holds one full chunk it cannot push.
		upper := int64((3*workers + 1) * chunkSize)
		lower := int64((2*workers + 1) * chunkSize)
		assert.LessOrEqual(t, pulled, upper, "workers=%d", workers)
		assert.GreaterOrEqual(t, pulled, lower, "workers=%d", workers)
		assert.Less(t, upper, total)

		select {
		case r := <-done:
			t.Fatalf("training finished while workers were stalled: %+v %v", r.stats, r.err)
		default:
		}

		p.lock.Release(1)

		select {
		case r := <-done:
			require.NoError(t, r.err)
			assert.Equal(t, total, r.stats.Processed)
			assert.Equal(t, total, src.pulled.Load())
		case <-time.After(10 * time.Second):
			t.Fatalf("training did not finish after releasing workers (workers=%d)", workers)
		}
	}
}

func TestTrainAccountingWithFilteredEdges(t *testing.T) {
	edges := twoCommunities()
	// Unknown nodes are dropped before reaching the kernel.
	edges = append(edges, vocab.RawEdge{Source: 1, Target: 99}, vocab.RawEdge{Source: 77, Target: 2})

	degrees := degreesOf(twoCommunities())
	degrees[5] = 10000 // make node 5 a hub that gets down-sampled
	m := newModel(t, degrees, 8, 0.001)

	opts := DefaultOptions()
	opts.Workers = 3
	stats, err := New(opts, quietLogger()).Train(m, edges, 4, 3)
	require.NoError(t, err)

	assert.Equal(t, int64(len(edges)*3), stats.Raw)
	assert.Less(t, stats.Kept, stats.Raw-6, "OOV and down-sampled edges must be dropped")
	assert.Equal(t, stats.Kept, stats.Processed)
}

func TestTrainReducesLoss(t *testing.T) {
	edges := twoCommunities()
	m := newModel(t, degreesOf(edges), 16, 0)

	before := Loss(m, edges)

	opts := DefaultOptions()
	opts.LearningRate = 0.05
	opts.Negative = 3
	_, err := New(opts, quietLogger()).Train(m, edges, 5, 50)
	require.NoError(t, err)

	after := Loss(m, edges)
	assert.Less(t, after, before)

	// Nodes of the same clique end up closer than nodes across communities.
	var within, across []float64
	for a := uint64(1); a <= 10; a++ {
		for b := a + 1; b <= 10; b++ {
			ea, _ := m.Vocab.Get(a)
			eb, _ := m.Vocab.Get(b)
			sim := m.Store.Similarity(ea.Index, eb.Index)
			if (a <= 5) == (b <= 5) {
				within = append(within, sim)
			} else {
				across = append(across, sim)
			}
		}
	}
	assert.Greater(t, mean(within), mean(across))
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func TestTrainAbortsOnLockTimeout(t *testing.T) {
	edges := twoCommunities()
	m := newModel(t, degreesOf(edges), 4, 0)

	base := runtime.NumGoroutine()
	opts := DefaultOptions()
	opts.Workers = 2
	opts.LockTimeout = 20 * time.Millisecond
	tr := New(opts, quietLogger())
	// Hold the progress lock for the whole run.
	tr.onStart = func(p *progress) { p.lock.TryAcquire(1) }

	_, err := tr.Train(m, Repeat(edges, 10), 1, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLockTimeout), "got %v", err)

	waitForGoroutines(t, base)
}

func TestProgressAdd(t *testing.T) {
	p := newProgress(10, 0.2, time.Hour, 20*time.Millisecond, quietLogger())
	ctx := context.Background()
	require.NoError(t, p.add(ctx, 3))
	require.NoError(t, p.add(ctx, 2))
	n, _ := p.snapshot()
	assert.Equal(t, int64(5), n)
	assert.InDelta(t, 50.0, p.percent(), 1e-9)

	require.True(t, p.lock.TryAcquire(1))
	start := time.Now()
	err := p.add(ctx, 1)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	// A cancelled run is not reported as a lock timeout.
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = p.add(cancelled, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrLockTimeout)

	p.lock.Release(1)
	require.NoError(t, p.add(ctx, 1))
	n, _ = p.snapshot()
	assert.Equal(t, int64(6), n)
}

func TestRepeat(t *testing.T) {
	src := EdgeList{{Source: 1, Target: 2}, {Source: 2, Target: 3}}
	r := Repeat(src, 3)
	assert.Equal(t, 6, r.Len())

	var got []vocab.RawEdge
	for e := range r.All() {
		got = append(got, e)
	}
	require.Len(t, got, 6)
	assert.Equal(t, src[0], got[4])

	// Early termination stops the iteration.
	count := 0
	for range r.All() {
		count++
		if count == 3 {
			break
		}
	}
	assert.Equal(t, 3, count)
}
