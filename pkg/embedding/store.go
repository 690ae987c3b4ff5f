// Package embedding holds the dense matrices of a node embedding model.
//
// All matrices are stored row-major in flat float32 slices. NodeEmbedding and
// ContextEmbedding are the trained parameters; the community arrays
// (Centroid, Covariance, InvCovariance, Pi) are zero-initialized placeholders
// sized for a community model that is fitted elsewhere.
//
// Concurrency: the trainer's workers read and write rows of NodeEmbedding
// concurrently without any synchronization (Hogwild-style SGD). Row returns a
// view into the shared backing array precisely so that updates land in
// place. Readers outside training must not assume a consistent snapshot while
// a training run is in flight.
package embedding

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/sanonone/nodevec/pkg/vecmath"
)

// ErrLayout is returned when the matrices do not match the declared shape.
var ErrLayout = errors.New("embedding: matrix layout mismatch")

// Store holds every matrix of the model.
type Store struct {
	VocabSize   int
	Dim         int
	Communities int

	NodeEmbedding    []float32 // [VocabSize][Dim]
	ContextEmbedding []float32 // [VocabSize][Dim]

	Centroid      []float32 // [Communities][Dim]
	Covariance    []float32 // [Communities][Dim][Dim]
	InvCovariance []float32 // [Communities][Dim][Dim]
	Pi            []float32 // [VocabSize][Communities]
}

// New allocates the matrices. Node embeddings are drawn uniformly from
// [-1, 1) with the given seed; everything else starts at zero.
func New(vocabSize, dim, communities int, seed int64) (*Store, error) {
	if vocabSize <= 0 || dim <= 0 || communities < 0 {
		return nil, fmt.Errorf("%w: vocab=%d dim=%d communities=%d", ErrLayout, vocabSize, dim, communities)
	}

	s := &Store{
		VocabSize:        vocabSize,
		Dim:              dim,
		Communities:      communities,
		NodeEmbedding:    make([]float32, vocabSize*dim),
		ContextEmbedding: make([]float32, vocabSize*dim),
		Centroid:         make([]float32, communities*dim),
		Covariance:       make([]float32, communities*dim*dim),
		InvCovariance:    make([]float32, communities*dim*dim),
		Pi:               make([]float32, vocabSize*communities),
	}

	rng := rand.New(rand.NewSource(seed))
	for i := range s.NodeEmbedding {
		s.NodeEmbedding[i] = rng.Float32()*2 - 1
	}
	return s, nil
}

// CheckLayout verifies that every matrix has the length implied by the shape.
func (s *Store) CheckLayout() error {
	if s == nil {
		return fmt.Errorf("%w: nil store", ErrLayout)
	}
	v, d, k := s.VocabSize, s.Dim, s.Communities
	checks := []struct {
		name string
		got  int
		want int
	}{
		{"node_embedding", len(s.NodeEmbedding), v * d},
		{"context_embedding", len(s.ContextEmbedding), v * d},
		{"centroid", len(s.Centroid), k * d},
		{"covariance", len(s.Covariance), k * d * d},
		{"inv_covariance", len(s.InvCovariance), k * d * d},
		{"pi", len(s.Pi), v * k},
	}
	if v <= 0 || d <= 0 {
		return fmt.Errorf("%w: vocab=%d dim=%d", ErrLayout, v, d)
	}
	for _, c := range checks {
		if c.got != c.want {
			return fmt.Errorf("%w: %s has %d elements, expected %d", ErrLayout, c.name, c.got, c.want)
		}
	}
	return nil
}

// Row returns the node embedding of index i, sharing the backing array.
func (s *Store) Row(i uint32) []float32 {
	off := int(i) * s.Dim
	return s.NodeEmbedding[off : off+s.Dim : off+s.Dim]
}

// ContextRow returns the context embedding of index i, sharing the backing array.
func (s *Store) ContextRow(i uint32) []float32 {
	off := int(i) * s.Dim
	return s.ContextEmbedding[off : off+s.Dim : off+s.Dim]
}

// Similarity returns the cosine similarity between two node embeddings.
func (s *Store) Similarity(i, j uint32) float64 {
	return vecmath.Cosine(s.Row(i), s.Row(j))
}
