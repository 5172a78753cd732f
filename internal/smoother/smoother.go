// Package smoother implements the per-track exponential moving average
// applied to region center/half-size parameters.
package smoother

// DefaultAlpha is the default EMA smoothing factor.
const DefaultAlpha = 0.6

// Params is the 4-tuple smoothed per track: center x, center y, half-width,
// half-height.
type Params [4]float64

// EMA holds per-track smoothing state. State lives only as long as the
// owning detector instance; there is no eviction.
type EMA struct {
	alpha float64
	state map[uint32]Params
}

// New creates an EMA smoother with the given alpha.
func New(alpha float64) *EMA {
	return &EMA{alpha: alpha, state: make(map[uint32]Params)}
}

// NewDefault creates an EMA smoother with DefaultAlpha.
func NewDefault() *EMA {
	return New(DefaultAlpha)
}

// Smooth applies the EMA to params for the given track ID. A nil trackID
// passes params through unmodified and touches no state. The first
// observation for a track is returned unchanged and stored as the seed.
func (e *EMA) Smooth(params Params, trackID *uint32) Params {
	if trackID == nil {
		return params
	}
	prev, ok := e.state[*trackID]
	if !ok {
		e.state[*trackID] = params
		return params
	}
	var out Params
	for i := range params {
		out[i] = e.alpha*params[i] + (1-e.alpha)*prev[i]
	}
	e.state[*trackID] = out
	return out
}
