// Package vecmath provides the float32 vector primitives used by the
// gradient kernel and by embedding evaluation.
//
// Implementations are selected once at init: when the CPU supports AVX2 and
// FMA the SIMD routines from vek are used for dot products and element-wise
// adds, otherwise the pure Go Gonum BLAS engine is used. Axpy always goes
// through Gonum, which handles its own unrolling.
package vecmath

import (
	"math"

	"github.com/klauspost/cpuid/v2"
	"github.com/viterin/vek/vek32"
	"gonum.org/v1/gonum/blas/gonum"
)

var gonumEngine = gonum.Implementation{}

type (
	dotFunc func(x, y []float32) float32
	addFunc func(dst, src []float32)
)

var (
	dotImpl  dotFunc = dotGonum
	addImpl  addFunc = addGo
	implName         = "gonum"
)

func init() {
	if cpuid.CPU.Has(cpuid.AVX2) && cpuid.CPU.Has(cpuid.FMA3) {
		dotImpl = vek32.Dot
		addImpl = vek32.Add_Inplace
		implName = "vek (AVX2)"
	}
}

// Implementation names the dot-product backend chosen at init.
func Implementation() string {
	return implName
}

// Dot returns the dot product of x and y. The slices must have equal length.
func Dot(x, y []float32) float32 {
	return dotImpl(x, y)
}

// Axpy computes y += alpha*x in place.
func Axpy(alpha float32, x, y []float32) {
	gonumEngine.Saxpy(len(x), alpha, x, 1, y, 1)
}

// Add computes dst += src in place.
func Add(dst, src []float32) {
	addImpl(dst, src)
}

// Zero clears x.
func Zero(x []float32) {
	clear(x)
}

// Norm returns the Euclidean norm of x.
func Norm(x []float32) float64 {
	return float64(gonumEngine.Snrm2(len(x), x, 1))
}

// Cosine returns the cosine similarity of x and y, or 0 if either is the zero vector.
func Cosine(x, y []float32) float64 {
	nx, ny := Norm(x), Norm(y)
	if nx == 0 || ny == 0 {
		return 0
	}
	return float64(Dot(x, y)) / (nx * ny)
}

func dotGonum(x, y []float32) float32 {
	return gonumEngine.Sdot(len(x), x, 1, y, 1)
}

func addGo(dst, src []float32) {
	for i := range dst {
		dst[i] += src[i]
	}
}

// Sigmoid is the exact logistic function in float64.
func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// LogSigmoidLoss returns -log(sigmoid(x)) without overflowing for large |x|.
func LogSigmoidLoss(x float64) float64 {
	if x < 0 {
		return -x + math.Log1p(math.Exp(x))
	}
	return math.Log1p(math.Exp(-x))
}
