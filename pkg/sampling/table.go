// Package sampling implements the negative-sampling noise table.
//
// The table is a fixed array of node indices in which every node occupies a
// number of slots proportional to count^Power. Drawing a uniform slot is then
// an O(1) draw from the degree-biased noise distribution.
package sampling

import (
	"errors"
	"fmt"
	"math"
)

// Power is the exponent applied to node counts (0.75 in the word2vec paper).
const Power = 0.75

var (
	ErrEmptyCounts = errors.New("sampling: no node counts")
	ErrTableSize   = errors.New("sampling: table size must be > 0")
)

// Table maps slots to node indices. It is read-only after Build.
type Table []uint32

// IntnSource is the subset of *rand.Rand used to draw slots.
type IntnSource interface {
	Intn(n int) int
}

// Build fills a table of the given size from counts ordered by node index.
func Build(counts []uint64, size int, power float64) (Table, error) {
	if len(counts) == 0 {
		return nil, ErrEmptyCounts
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrTableSize, size)
	}

	// Z in the paper.
	var trainWordsPow float64
	for _, c := range counts {
		trainWordsPow += math.Pow(float64(c), power)
	}
	if trainWordsPow == 0 {
		return nil, fmt.Errorf("%w: all counts are zero", ErrEmptyCounts)
	}

	vocabSize := len(counts)
	table := make(Table, size)

	widx := 0
	d1 := math.Pow(float64(counts[widx]), power) / trainWordsPow
	for tidx := 0; tidx < size; tidx++ {
		table[tidx] = uint32(widx)
		if float64(tidx)/float64(size) > d1 {
			widx++
			if widx < vocabSize {
				d1 += math.Pow(float64(counts[widx]), power) / trainWordsPow
			}
		}
		if widx >= vocabSize {
			widx = vocabSize - 1
		}
	}
	return table, nil
}

// Draw returns the node index stored in a uniformly drawn slot.
func (t Table) Draw(rng IntnSource) uint32 {
	return t[rng.Intn(len(t))]
}

// Max returns the largest node index in the table.
func (t Table) Max() uint32 {
	if len(t) == 0 {
		return 0
	}
	// Entries are non-decreasing.
	return t[len(t)-1]
}

// Frequencies counts the slots owned by each of the vocabSize nodes.
func (t Table) Frequencies(vocabSize int) []int {
	freq := make([]int, vocabSize)
	for _, idx := range t {
		if int(idx) < vocabSize {
			freq[idx]++
		}
	}
	return freq
}
