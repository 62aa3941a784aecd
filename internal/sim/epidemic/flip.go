package epidemic

import "seirsim.dev/internal/sim/randsrc"

// Flip draws one uniform value and succeeds when it is <= p.
func Flip(src randsrc.Source, p float64) bool {
	return src.Float64() <= p
}
