package detect

import (
	"errors"
	"fmt"

	"github.com/faceanon/engine/internal/frame"
	"github.com/faceanon/engine/internal/region"
)

type point struct{ x, y int }
type velocity struct{ dx, dy float64 }

// SkipFrameDetector wraps a FaceDetector, running it only every skipInterval
// frames and linearly extrapolating positions for the frames in between
// from each track's most recently observed velocity.
type SkipFrameDetector struct {
	inner         FaceDetector
	skipInterval  int
	frameCount    int
	framesSince   int
	lastRegions   []region.Region
	velocity      map[uint32]velocity
	prevPos       map[uint32]point
}

// NewSkipFrameDetector wraps inner to run once every skipInterval frames.
// skipInterval must be >= 1.
func NewSkipFrameDetector(inner FaceDetector, skipInterval int) (*SkipFrameDetector, error) {
	if skipInterval < 1 {
		return nil, errors.New("detect: skip_interval must be >= 1")
	}
	return &SkipFrameDetector{
		inner:        inner,
		skipInterval: skipInterval,
		velocity:     make(map[uint32]velocity),
		prevPos:      make(map[uint32]point),
	}, nil
}

// Detect implements FaceDetector.
func (s *SkipFrameDetector) Detect(f *frame.Frame) ([]region.Region, error) {
	if s.frameCount%s.skipInterval == 0 {
		regions, err := s.inner.Detect(f)
		if err != nil {
			return nil, fmt.Errorf("skip-frame inner detect: %w", err)
		}
		s.updateVelocity(regions)
		s.lastRegions = regions
		s.framesSince = 0
		s.frameCount++
		return regions, nil
	}

	s.framesSince++
	s.frameCount++
	return s.extrapolate(s.lastRegions, s.framesSince), nil
}

func (s *SkipFrameDetector) updateVelocity(regions []region.Region) {
	newPos := make(map[uint32]point, len(regions))
	for _, r := range regions {
		if r.TrackID == nil {
			continue
		}
		id := *r.TrackID
		newPos[id] = point{r.X, r.Y}
		if old, ok := s.prevPos[id]; ok {
			dx := float64(r.X-old.x) / float64(s.skipInterval)
			dy := float64(r.Y-old.y) / float64(s.skipInterval)
			s.velocity[id] = velocity{dx, dy}
		}
	}
	s.prevPos = newPos
}

func (s *SkipFrameDetector) extrapolate(regions []region.Region, steps int) []region.Region {
	out := make([]region.Region, len(regions))
	for i, r := range regions {
		if r.TrackID == nil {
			out[i] = r
			continue
		}
		v, ok := s.velocity[*r.TrackID]
		if !ok {
			out[i] = r
			continue
		}
		dx := v.dx * float64(steps)
		dy := v.dy * float64(steps)
		out[i] = r.Translate(dx, dy)
	}
	return out
}
