// Package model holds the complete state of a node embedding model: the
// vocabulary, the negative-sampling table and the embedding matrices,
// together with the scalar settings they were built with.
//
// Basic usage:
//
//	m, err := model.New(degrees, truth, model.DefaultOptions(), logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = m.SaveFile("data", "karate")
package model

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/sanonone/nodevec/pkg/embedding"
	"github.com/sanonone/nodevec/pkg/sampling"
	"github.com/sanonone/nodevec/pkg/vocab"
)

// Options are the construction parameters of a model.
type Options struct {
	// Size is the embedding dimension. Multiples of 4 are fastest.
	Size int
	// DownSampling is the frequent-node threshold; 0 disables it.
	DownSampling float64
	// Seed drives the initial node embeddings.
	Seed int64
	// TableSize is the number of slots of the negative-sampling table.
	TableSize int
}

// DefaultOptions returns a 2-dimensional model with a 1e8-slot table and no down-sampling.
func DefaultOptions() Options {
	return Options{
		Size:         2,
		DownSampling: 0,
		Seed:         1,
		TableSize:    100_000_000,
	}
}

// GroundTruth carries the community label of each node and the number of
// communities. Only K is used here, to size the community arrays.
type GroundTruth struct {
	Labels map[uint64]int
	K      int
}

// Model is the full trainable state.
type Model struct {
	Vocab *vocab.Vocabulary
	Table sampling.Table
	Store *embedding.Store

	Size         int
	DownSampling float64
	Seed         int64
	TableSize    int
	K            int

	// Labels is kept in memory for downstream evaluation; it is not persisted.
	Labels map[uint64]int
}

// New builds the vocabulary, allocates the embeddings and fills the
// negative-sampling table.
func New(degrees map[uint64]uint64, truth GroundTruth, opts Options, logger *slog.Logger) (*Model, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(degrees) == 0 {
		return nil, fmt.Errorf("model not initialized: %w", vocab.ErrMissingDegrees)
	}
	if opts.Size <= 0 {
		return nil, fmt.Errorf("model: size must be > 0, got %d", opts.Size)
	}
	if uint64(opts.Size) > math.MaxUint32 {
		return nil, fmt.Errorf("model: size %d exceeds the file format limit", opts.Size)
	}
	if opts.TableSize <= 0 || uint64(opts.TableSize) > math.MaxUint32 {
		return nil, fmt.Errorf("model: table size must be in (0, %d], got %d", uint64(math.MaxUint32), opts.TableSize)
	}
	if truth.K < 0 || uint64(truth.K) > math.MaxUint32 {
		return nil, fmt.Errorf("model: invalid community count %d", truth.K)
	}
	if opts.Size%4 != 0 {
		logger.Warn("consider setting layer size to a multiple of 4 for greater performance", "size", opts.Size)
	}

	voc, err := vocab.Build(degrees, opts.DownSampling, logger)
	if err != nil {
		return nil, err
	}

	store, err := embedding.New(voc.Len(), opts.Size, truth.K, opts.Seed)
	if err != nil {
		return nil, err
	}

	logger.Info("constructing a table with noise distribution", "nodes", voc.Len(), "table_size", opts.TableSize)
	table, err := sampling.Build(voc.Counts(), opts.TableSize, sampling.Power)
	if err != nil {
		return nil, err
	}
	logger.Debug("negative sampling table built", "max_value", table.Max())

	return &Model{
		Vocab:        voc,
		Table:        table,
		Store:        store,
		Size:         opts.Size,
		DownSampling: opts.DownSampling,
		Seed:         opts.Seed,
		TableSize:    opts.TableSize,
		K:            truth.K,
		Labels:       truth.Labels,
	}, nil
}

// VocabSize returns the number of nodes in the vocabulary.
func (m *Model) VocabSize() int {
	return m.Vocab.Len()
}

// Embedding returns the node embedding of a raw node id.
func (m *Model) Embedding(id uint64) ([]float32, bool) {
	e, ok := m.Vocab.Get(id)
	if !ok {
		return nil, false
	}
	return m.Store.Row(e.Index), true
}
