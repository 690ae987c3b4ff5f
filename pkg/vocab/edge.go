package vocab

// RawEdge is an edge as read from the input, expressed in raw node ids.
type RawEdge struct {
	Source uint64
	Target uint64
}

// Edge is an edge whose endpoints passed the vocabulary filter.
// A zero Edge (nil endpoints) carries no work.
type Edge [2]*Entry

// Valid reports whether both endpoints are set.
func (e Edge) Valid() bool {
	return e[0] != nil && e[1] != nil
}

// Source returns the first endpoint.
func (e Edge) Source() *Entry { return e[0] }

// Target returns the second endpoint.
func (e Edge) Target() *Entry { return e[1] }

// Float64Source is the subset of *rand.Rand used for Bernoulli tests.
type Float64Source interface {
	Float64() float64
}

// Filter maps a raw edge onto vocabulary entries.
// Edges touching unknown nodes are dropped. Each endpoint is then kept with
// its SampleProbability; the edge survives only if both endpoints do.
func (v *Vocabulary) Filter(raw RawEdge, rng Float64Source) (Edge, bool) {
	src, ok := v.byID.Get(raw.Source)
	if !ok {
		return Edge{}, false
	}
	dst, ok := v.byID.Get(raw.Target)
	if !ok {
		return Edge{}, false
	}
	if !keep(src, rng) || !keep(dst, rng) {
		return Edge{}, false
	}
	return Edge{src, dst}, true
}

func keep(e *Entry, rng Float64Source) bool {
	if e.SampleProbability >= 1.0 {
		return true
	}
	return e.SampleProbability >= rng.Float64()
}
