package detect

import (
	"github.com/faceanon/engine/internal/frame"
	"github.com/faceanon/engine/internal/region"
)

// Cache maps a frame index to the regions the detector produced for it.
// Populated by the preview use case, consumed by a CachedDetector during
// the blur pass so track IDs stay stable between passes.
type Cache map[int][]region.Region

// CachedDetector replays a precomputed detection cache by frame index,
// returning an empty slice for any frame index the cache doesn't contain.
type CachedDetector struct {
	cache Cache
}

// NewCachedDetector wraps cache as a FaceDetector.
func NewCachedDetector(cache Cache) *CachedDetector {
	return &CachedDetector{cache: cache}
}

// Detect implements FaceDetector.
func (c *CachedDetector) Detect(f *frame.Frame) ([]region.Region, error) {
	return c.cache[f.Index], nil
}
