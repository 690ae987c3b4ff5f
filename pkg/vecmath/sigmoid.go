package vecmath

import "math"

const (
	// ExpTableSize is the resolution of the precomputed sigmoid table.
	ExpTableSize = 1000
	// MaxExp bounds the domain of the table; inputs outside are clamped.
	MaxExp = 6
)

var expTable = func() [ExpTableSize]float32 {
	var t [ExpTableSize]float32
	for i := range t {
		e := math.Exp((float64(i)/ExpTableSize*2 - 1) * MaxExp)
		t[i] = float32(e / (e + 1))
	}
	return t
}()

// FastSigmoid approximates the logistic function with a lookup table.
// Values beyond ±MaxExp saturate to 0 and 1.
func FastSigmoid(x float32) float32 {
	switch {
	case x <= -MaxExp:
		return 0
	case x >= MaxExp:
		return 1
	}
	idx := int((x + MaxExp) * (ExpTableSize / MaxExp / 2))
	if idx >= ExpTableSize {
		idx = ExpTableSize - 1
	}
	return expTable[idx]
}
