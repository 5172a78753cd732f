package pipeline

import "github.com/faceanon/engine/internal/region"

// Filter re-exports §4.A's include/exclude policy so every mode (video
// blur, image blur, preview re-run) reaches it through this package.
func Filter(regions []region.Region, blurIDs, excludeIDs map[uint32]struct{}) []region.Region {
	return region.Filter(regions, blurIDs, excludeIDs)
}
