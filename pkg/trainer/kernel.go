package trainer

import (
	"math/rand"

	"github.com/sanonone/nodevec/pkg/embedding"
	"github.com/sanonone/nodevec/pkg/model"
	"github.com/sanonone/nodevec/pkg/sampling"
	"github.com/sanonone/nodevec/pkg/vecmath"
	"github.com/sanonone/nodevec/pkg/vocab"
)

// TrainEdge runs one skip-gram negative-sampling update for an order-1 edge.
//
// The edge (u, v) is a positive pair; negative noise nodes are drawn from the
// table and treated as pairs (u, n) with label 0. Every target row is updated
// immediately, while the gradient for u is accumulated in work (len == dim)
// and added to u at the end.
//
// Rows are read and written without locks. Concurrent workers may interleave
// updates on the same rows; the resulting lost or stale updates are the
// accepted cost of lock-free asynchronous SGD.
//
// It returns the number of edges processed (0 or 1).
func TrainEdge(store *embedding.Store, edge vocab.Edge, alpha float32, negative int, table sampling.Table, rng sampling.IntnSource, work []float32) int {
	if !edge.Valid() {
		return 0
	}

	u := store.Row(edge.Source().Index)
	vecmath.Zero(work)

	trainPair(u, store.Row(edge.Target().Index), 1, alpha, work)
	for d := 0; d < negative; d++ {
		noise := table.Draw(rng)
		trainPair(u, store.Row(noise), 0, alpha, work)
	}

	vecmath.Add(u, work)
	return 1
}

func trainPair(u, target []float32, label, alpha float32, work []float32) {
	f := vecmath.Dot(u, target)
	g := (label - vecmath.FastSigmoid(f)) * alpha
	vecmath.Axpy(g, target, work)
	vecmath.Axpy(g, u, target)
}

// Loss returns Σ -log σ(target·source) over the edges that pass the
// vocabulary filter. It is meant for evaluation and never runs during
// training. Down-sampling uses a generator seeded with the model seed, so
// repeated calls on an unchanged model agree.
func Loss(m *model.Model, edges EdgeSource) float64 {
	rng := rand.New(rand.NewSource(m.Seed))

	var loss float64
	for raw := range edges.All() {
		e, ok := m.Vocab.Filter(raw, rng)
		if !ok {
			continue
		}
		x := vecmath.Dot(m.Store.Row(e.Target().Index), m.Store.Row(e.Source().Index))
		loss += vecmath.LogSigmoidLoss(float64(x))
	}
	return loss
}
