package trainer

import (
	"iter"

	"github.com/sanonone/nodevec/pkg/vocab"
)

// EdgeSource is a re-iterable stream of raw edges with a known length.
type EdgeSource interface {
	// Len is the number of edges yielded by one pass of All.
	Len() int
	// All yields every edge of one pass.
	All() iter.Seq[vocab.RawEdge]
}

// EdgeList is an in-memory EdgeSource.
type EdgeList []vocab.RawEdge

func (l EdgeList) Len() int { return len(l) }

func (l EdgeList) All() iter.Seq[vocab.RawEdge] {
	return func(yield func(vocab.RawEdge) bool) {
		for _, e := range l {
			if !yield(e) {
				return
			}
		}
	}
}

type repeated struct {
	src EdgeSource
	n   int
}

// Repeat concatenates n passes over src without copying it.
func Repeat(src EdgeSource, n int) EdgeSource {
	return repeated{src: src, n: n}
}

func (r repeated) Len() int { return r.src.Len() * r.n }

func (r repeated) All() iter.Seq[vocab.RawEdge] {
	return func(yield func(vocab.RawEdge) bool) {
		for i := 0; i < r.n; i++ {
			for e := range r.src.All() {
				if !yield(e) {
					return
				}
			}
		}
	}
}
