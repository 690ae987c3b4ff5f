// Package trainer implements the concurrent order-1 training loop.
//
// A single producer (the goroutine calling Train) streams edges through the
// vocabulary filter, groups them into jobs and pushes them onto a bounded
// queue. A fixed pool of worker goroutines pops jobs and runs the gradient
// kernel on the shared embedding matrices. When the stream is exhausted the
// producer sends one shutdown message per worker and waits for all of them.
//
// Basic usage:
//
//	t := trainer.New(trainer.DefaultOptions(), logger)
//	stats, err := t.Train(m, trainer.EdgeList(edges), 150, 1)
package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sanonone/nodevec/pkg/metrics"
	"github.com/sanonone/nodevec/pkg/model"
	"github.com/sanonone/nodevec/pkg/vecmath"
	"github.com/sanonone/nodevec/pkg/vocab"
)

var (
	// ErrEmptyVocabulary is returned when Train is called before the vocabulary is built.
	ErrEmptyVocabulary = errors.New("trainer: you must first build vocabulary before training the model")
	// ErrLockTimeout is returned when the progress lock cannot be acquired in time.
	ErrLockTimeout = errors.New("trainer: progress lock acquisition timed out")
	// ErrInvalidArgument is returned for non-positive chunk sizes or iteration counts.
	ErrInvalidArgument = errors.New("trainer: invalid argument")
)

// Options configures a Trainer.
type Options struct {
	// Workers is the number of worker goroutines. Values < 1 mean 1.
	Workers int
	// LearningRate is the fixed SGD step size; it is not decayed during a run.
	LearningRate float64
	// Negative is the number of noise nodes drawn per edge.
	Negative int
	// ProgressInterval is the minimum time between two progress log lines.
	ProgressInterval time.Duration
	// LockTimeout bounds the acquisition of the progress lock.
	LockTimeout time.Duration
	// Seed drives down-sampling decisions and negative draws.
	Seed int64
}

// DefaultOptions returns one worker, alpha 0.2 and no
// negative sampling.
func DefaultOptions() Options {
	return Options{
		Workers:          1,
		LearningRate:     0.2,
		Negative:         0,
		ProgressInterval: 5 * time.Second,
		LockTimeout:      30 * time.Second,
		Seed:             1,
	}
}

// Stats summarizes a training run.
type Stats struct {
	RunID string
	// Raw is the number of edges read from the (repeated) source.
	Raw int64
	// Kept is the number of edges that passed the vocabulary filter.
	Kept int64
	// Processed is the number of edges that went through the kernel.
	Processed int64
	// Jobs is the number of jobs pushed onto the queue.
	Jobs int64
	// MaxQueueDepth is the largest number of buffered jobs seen after a push.
	MaxQueueDepth int
	// QueueCapacity is the capacity of the job queue (2 * workers).
	QueueCapacity int
	Elapsed       time.Duration
	Throughput    float64
}

// Trainer runs order-1 training over a model.
type Trainer struct {
	opts   Options
	logger *slog.Logger

	// onStart, when set, is called with the run's progress tracker before
	// workers are spawned.
	onStart func(*progress)
}

// New creates a Trainer. A nil logger falls back to slog.Default().
func New(opts Options, logger *slog.Logger) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 5 * time.Second
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 30 * time.Second
	}
	return &Trainer{opts: opts, logger: logger}
}

// Options returns the effective options.
func (t *Trainer) Options() Options {
	return t.opts
}

type messageKind uint8

const (
	messageJob messageKind = iota
	messageShutdown
)

// message is the unit exchanged on the queue: either a job or a shutdown
// notice for exactly one worker.
type message struct {
	kind  messageKind
	edges []vocab.Edge
}

// Train updates the model's node embeddings from edges, repeated iterations
// times, in jobs of chunkSize edges. It blocks until every worker has exited.
func (t *Trainer) Train(m *model.Model, edges EdgeSource, chunkSize, iterations int) (Stats, error) {
	if m == nil || m.Vocab.Len() == 0 {
		return Stats{}, ErrEmptyVocabulary
	}
	if err := m.Store.CheckLayout(); err != nil {
		return Stats{}, err
	}
	if chunkSize <= 0 {
		return Stats{}, fmt.Errorf("%w: chunk size %d", ErrInvalidArgument, chunkSize)
	}
	if iterations <= 0 {
		return Stats{}, fmt.Errorf("%w: iterations %d", ErrInvalidArgument, iterations)
	}
	if t.opts.Negative > 0 && len(m.Table) == 0 {
		return Stats{}, fmt.Errorf("%w: %d negative samples with an empty noise table", ErrInvalidArgument, t.opts.Negative)
	}

	workers := t.opts.Workers
	stats := Stats{
		RunID:         uuid.NewString(),
		QueueCapacity: 2 * workers,
	}
	logger := t.logger.With("run_id", stats.RunID)

	logger.Info("O1 training model",
		"workers", workers,
		"vocabulary", m.Vocab.Len(),
		"features", m.Size,
		"negative", t.opts.Negative,
		"kernel", vecmath.Implementation(),
	)

	stream := Repeat(edges, iterations)
	total := int64(stream.Len())
	logger.Debug("total edges", "total", total)

	prog := newProgress(total, t.opts.LearningRate, t.opts.ProgressInterval, t.opts.LockTimeout, logger)
	if t.onStart != nil {
		t.onStart(prog)
	}

	// Buffer ahead only a limited number of jobs.
	jobs := make(chan message, stats.QueueCapacity)
	g, ctx := errgroup.WithContext(context.Background())
	for id := 0; id < workers; id++ {
		g.Go(func() error {
			return t.worker(ctx, id, m, jobs, prog)
		})
	}

	produceErr := t.produce(ctx, m, stream, chunkSize, jobs, workers, &stats)
	waitErr := g.Wait()
	metrics.QueueDepth.Set(0)

	stats.Processed, stats.Elapsed = prog.snapshot()
	stats.Throughput = rate(stats.Processed, stats.Elapsed)
	metrics.TrainingDuration.Observe(stats.Elapsed.Seconds())

	// A producer error is only ever the cancellation caused by a failed worker,
	// so the worker error takes precedence.
	err := waitErr
	if err == nil {
		err = produceErr
	}
	if err != nil {
		metrics.TrainingRuns.WithLabelValues("failed").Inc()
		logger.Error("training aborted", "error", err, "processed", stats.Processed)
		return stats, err
	}

	metrics.TrainingRuns.WithLabelValues("completed").Inc()
	metrics.Throughput.Set(stats.Throughput)
	logger.Info("training finished",
		"edges", stats.Processed,
		"elapsed", stats.Elapsed.Round(100*time.Millisecond).String(),
		"edges_per_sec", stats.Throughput,
	)
	return stats, nil
}

// produce filters the stream, groups it into jobs and feeds the queue.
// Pushing blocks while the queue is full.
func (t *Trainer) produce(ctx context.Context, m *model.Model, stream EdgeSource, chunkSize int, jobs chan<- message, workers int, stats *Stats) error {
	push := func(msg message) error {
		select {
		case jobs <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
		if depth := len(jobs); depth > stats.MaxQueueDepth {
			stats.MaxQueueDepth = depth
		}
		metrics.QueueDepth.Set(float64(len(jobs)))
		return nil
	}

	rng := rand.New(rand.NewSource(t.opts.Seed))
	chunk := make([]vocab.Edge, 0, chunkSize)

	for raw := range stream.All() {
		stats.Raw++
		edge, ok := m.Vocab.Filter(raw, rng)
		if !ok {
			metrics.EdgesDropped.Inc()
			continue
		}
		stats.Kept++
		chunk = append(chunk, edge)
		if len(chunk) == chunkSize {
			if err := push(message{kind: messageJob, edges: chunk}); err != nil {
				return err
			}
			stats.Jobs++
			metrics.JobsTotal.Inc()
			chunk = make([]vocab.Edge, 0, chunkSize)
		}
	}
	if len(chunk) > 0 {
		if err := push(message{kind: messageJob, edges: chunk}); err != nil {
			return err
		}
		stats.Jobs++
		metrics.JobsTotal.Inc()
	}

	// Give the workers heads up that they can finish.
	for i := 0; i < workers; i++ {
		if err := push(message{kind: messageShutdown}); err != nil {
			return err
		}
	}
	return nil
}

// worker pops jobs until it receives a shutdown message.
func (t *Trainer) worker(ctx context.Context, id int, m *model.Model, jobs <-chan message, prog *progress) error {
	rng := rand.New(rand.NewSource(t.opts.Seed + int64(id) + 1))
	work := make([]float32, m.Size)
	alpha := float32(t.opts.LearningRate)

	for {
		var msg message
		select {
		case msg = <-jobs:
		case <-ctx.Done():
			return nil
		}
		if msg.kind == messageShutdown {
			return nil
		}

		processed := 0
		for _, edge := range msg.edges {
			if !edge.Valid() {
				continue
			}
			processed += TrainEdge(m.Store, edge, alpha, t.opts.Negative, m.Table, rng, work)
		}
		metrics.EdgesProcessed.Add(float64(processed))

		if err := prog.add(ctx, processed); err != nil {
			return fmt.Errorf("worker %d: %w", id, err)
		}
	}
}
