// Package jobs models a single anonymization run and orchestrates its
// execution: a queued job carries a source object key, a mode, and a
// filter policy; running it drives internal/pipeline against media read
// from and written back to object storage.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusPreviewing Status = "previewing"
	StatusAwaiting   Status = "awaiting_selection"
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Mode selects what a job does with its source: a full blur pass, or a
// preview-only scan that produces thumbnails for operator selection.
type Mode string

const (
	ModeBlur    Mode = "blur"
	ModePreview Mode = "preview"
)

// Job is a persisted unit of work: one source object processed through
// the pipeline and written to one output object.
type Job struct {
	ID           uuid.UUID       `json:"id"`
	Mode         Mode            `json:"mode"`
	Status       Status          `json:"status"`
	SourceKey    string          `json:"source_key"`
	OutputKey    string          `json:"output_key,omitempty"`
	CacheKey     string          `json:"cache_key,omitempty"`
	BlurIDs      []uint32        `json:"blur_ids,omitempty"`
	ExcludeIDs   []uint32        `json:"exclude_ids,omitempty"`
	Shape        string          `json:"shape"` // "rectangular" | "elliptical"
	ErrorMessage string          `json:"error_message,omitempty"`
	FramesTotal  int             `json:"frames_total"`
	FramesDone   int             `json:"frames_done"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Identity is one tracked face surfaced by a preview job: its track ID and
// the object key of its thumbnail crop.
type Identity struct {
	JobID        uuid.UUID `json:"job_id"`
	TrackID      uint32    `json:"track_id"`
	ThumbnailKey string    `json:"thumbnail_key"`
	CreatedAt    time.Time `json:"created_at"`
}

// BlurIDSet and ExcludeIDSet convert a Job's ID lists to the set form the
// pipeline's filter policy expects. A nil Job.BlurIDs yields a nil set
// (meaning "no inclusion restriction"), matching region.Filter's contract.
func (j Job) BlurIDSet() map[uint32]struct{} {
	return toSet(j.BlurIDs)
}

func (j Job) ExcludeIDSet() map[uint32]struct{} {
	return toSet(j.ExcludeIDs)
}

func toSet(ids []uint32) map[uint32]struct{} {
	if ids == nil {
		return nil
	}
	set := make(map[uint32]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
