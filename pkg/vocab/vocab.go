// Package vocab builds the node vocabulary used by the trainer.
//
// Every node of the input graph is assigned a dense 0-based index, in
// ascending raw-id order, and a keep-probability used to down-sample very
// frequent nodes while streaming edges.
package vocab

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/tidwall/btree"
)

var (
	// ErrMissingDegrees is returned when the vocabulary is built without a degree map.
	ErrMissingDegrees = errors.New("vocab: node degree map is required")
	// ErrInvalidMinNodeID is returned when the smallest raw node id is not 1.
	ErrInvalidMinNodeID = errors.New("vocab: minimum node id must be 1")
)

// Entry is the vocabulary record of a single node.
type Entry struct {
	ID                uint64
	Index             uint32
	Count             uint64
	SampleProbability float64
}

// Vocabulary maps raw node ids to their entries. It is immutable after Build.
type Vocabulary struct {
	byID    btree.Map[uint64, *Entry]
	byIndex []*Entry

	downSampling float64
}

// Build creates the vocabulary from a node->degree map.
// downSampling is the frequent-node threshold; 0 disables down-sampling.
func Build(degrees map[uint64]uint64, downSampling float64, logger *slog.Logger) (*Vocabulary, error) {
	if len(degrees) == 0 {
		return nil, ErrMissingDegrees
	}
	if uint64(len(degrees)) > math.MaxUint32 {
		return nil, fmt.Errorf("vocab: %d nodes exceed the uint32 index space", len(degrees))
	}
	if logger == nil {
		logger = slog.Default()
	}

	v := &Vocabulary{downSampling: downSampling}
	for id, count := range degrees {
		v.byID.Set(id, &Entry{ID: id, Count: count})
	}

	minID, _, _ := v.byID.Min()
	if minID != 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMinNodeID, minID)
	}

	// Indices follow the btree order, i.e. ascending raw id.
	v.byIndex = make([]*Entry, 0, v.byID.Len())
	v.byID.Scan(func(_ uint64, e *Entry) bool {
		e.Index = uint32(len(v.byIndex))
		v.byIndex = append(v.byIndex, e)
		return true
	})

	v.precalcSampling(logger)
	return v, nil
}

// Restore rebuilds a vocabulary from entries already ordered by index.
// It is used when decoding a persisted model.
func Restore(entries []Entry, downSampling float64) (*Vocabulary, error) {
	if len(entries) == 0 {
		return nil, ErrMissingDegrees
	}
	v := &Vocabulary{
		byIndex:      make([]*Entry, len(entries)),
		downSampling: downSampling,
	}
	for i := range entries {
		e := entries[i]
		if e.Index != uint32(i) {
			return nil, fmt.Errorf("vocab: entry %d has index %d", i, e.Index)
		}
		v.byIndex[i] = &e
		v.byID.Set(e.ID, &e)
	}
	if v.byID.Len() != len(entries) {
		return nil, fmt.Errorf("vocab: duplicate node ids in %d entries", len(entries))
	}
	if minID, _, _ := v.byID.Min(); minID != 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMinNodeID, minID)
	}
	return v, nil
}

func (v *Vocabulary) precalcSampling(logger *slog.Logger) {
	if v.downSampling <= 0 {
		for _, e := range v.byIndex {
			e.SampleProbability = 1.0
		}
		return
	}

	logger.Info("frequent-node down sampling, progress tallies will be approximate",
		"threshold", v.downSampling)

	var total float64
	for _, e := range v.byIndex {
		total += float64(e.Count)
	}
	thresholdCount := v.downSampling * total

	for _, e := range v.byIndex {
		if e.Count == 0 {
			e.SampleProbability = 1.0
			continue
		}
		count := float64(e.Count)
		prob := (math.Sqrt(count/thresholdCount) + 1) * (thresholdCount / count)
		e.SampleProbability = math.Min(prob, 1.0)
	}
}

// Len returns the number of nodes.
func (v *Vocabulary) Len() int {
	if v == nil {
		return 0
	}
	return len(v.byIndex)
}

// DownSampling returns the threshold the vocabulary was built with.
func (v *Vocabulary) DownSampling() float64 { return v.downSampling }

// Get looks up a node by raw id.
func (v *Vocabulary) Get(id uint64) (*Entry, bool) {
	return v.byID.Get(id)
}

// At returns the entry with the given dense index.
func (v *Vocabulary) At(index uint32) *Entry {
	return v.byIndex[index]
}

// Ascend calls fn for every entry in index order until fn returns false.
func (v *Vocabulary) Ascend(fn func(e *Entry) bool) {
	for _, e := range v.byIndex {
		if !fn(e) {
			return
		}
	}
}

// Counts returns the node counts ordered by index.
func (v *Vocabulary) Counts() []uint64 {
	counts := make([]uint64, len(v.byIndex))
	for i, e := range v.byIndex {
		counts[i] = e.Count
	}
	return counts
}

// Entries returns a copy of all entries ordered by index.
func (v *Vocabulary) Entries() []Entry {
	out := make([]Entry, len(v.byIndex))
	for i, e := range v.byIndex {
		out[i] = *e
	}
	return out
}
