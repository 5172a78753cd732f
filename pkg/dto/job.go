// Package dto holds wire-format request/response types for the job server
// HTTP API.
package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CreateJobRequest submits a new job against an already-uploaded source
// object. Shape defaults to "rectangular" when empty.
type CreateJobRequest struct {
	Mode       string   `json:"mode" binding:"required,oneof=blur preview"`
	SourceKey  string   `json:"source_key" binding:"required"`
	Shape      string   `json:"shape,omitempty" binding:"omitempty,oneof=rectangular elliptical"`
	BlurIDs    []uint32 `json:"blur_ids,omitempty"`
	ExcludeIDs []uint32 `json:"exclude_ids,omitempty"`
}

// JobResponse is the wire representation of a jobs.Job.
type JobResponse struct {
	ID           uuid.UUID       `json:"id"`
	Mode         string          `json:"mode"`
	Status       string          `json:"status"`
	SourceKey    string          `json:"source_key"`
	OutputKey    string          `json:"output_key,omitempty"`
	Shape        string          `json:"shape"`
	BlurIDs      []uint32        `json:"blur_ids,omitempty"`
	ExcludeIDs   []uint32        `json:"exclude_ids,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	FramesTotal  int             `json:"frames_total"`
	FramesDone   int             `json:"frames_done"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}

// JobListResponse wraps a page of jobs.
type JobListResponse struct {
	Jobs  []JobResponse `json:"jobs"`
	Total int           `json:"total"`
}

// IdentityResponse is the wire representation of a preview-discovered
// track identity.
type IdentityResponse struct {
	TrackID      uint32 `json:"track_id"`
	ThumbnailKey string `json:"thumbnail_key"`
}

// IdentityListResponse wraps a job's discovered identities.
type IdentityListResponse struct {
	Identities []IdentityResponse `json:"identities"`
}

// SelectIdentitiesRequest resumes an awaiting_selection job as a blur run
// with the operator's chosen policy.
type SelectIdentitiesRequest struct {
	BlurIDs    []uint32 `json:"blur_ids,omitempty"`
	ExcludeIDs []uint32 `json:"exclude_ids,omitempty"`
}

// JobEvent is a lifecycle/progress message published on the EVENTS stream
// and rebroadcast over the websocket hub.
type JobEvent struct {
	JobID     uuid.UUID `json:"job_id"`
	Type      string    `json:"type"` // "progress" | "completed" | "awaiting_selection" | "failed"
	Done      int       `json:"done,omitempty"`
	Total     int       `json:"total,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
