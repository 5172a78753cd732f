package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/faceanon/engine/internal/jobs"
	"github.com/faceanon/engine/internal/queue"
	"github.com/faceanon/engine/internal/storage"
	"github.com/faceanon/engine/pkg/dto"
)

type JobHandler struct {
	db       *storage.PostgresStore
	producer *queue.Producer
}

func NewJobHandler(db *storage.PostgresStore, producer *queue.Producer) *JobHandler {
	return &JobHandler{db: db, producer: producer}
}

func (h *JobHandler) Create(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	shape := req.Shape
	if shape == "" {
		shape = "rectangular"
	}

	j := &jobs.Job{
		Mode:       jobs.Mode(req.Mode),
		SourceKey:  req.SourceKey,
		Shape:      shape,
		BlurIDs:    req.BlurIDs,
		ExcludeIDs: req.ExcludeIDs,
	}

	if err := h.db.CreateJob(c.Request.Context(), j); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.producer.PublishJob(c.Request.Context(), j.ID.String(), j); err != nil {
		_ = h.db.UpdateJobStatus(c.Request.Context(), j.ID, jobs.StatusFailed, "failed to enqueue job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue job"})
		return
	}

	c.JSON(http.StatusCreated, jobToResponse(j))
}

func (h *JobHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	j, err := h.db.GetJob(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if j == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, jobToResponse(j))
}

func (h *JobHandler) List(c *gin.Context) {
	jobList, err := h.db.ListJobs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.JobResponse, 0, len(jobList))
	for _, j := range jobList {
		resp = append(resp, jobToResponse(&j))
	}
	c.JSON(http.StatusOK, dto.JobListResponse{Jobs: resp, Total: len(resp)})
}

func (h *JobHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	j, err := h.db.GetJob(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if j == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	cmd := map[string]interface{}{"action": "cancel", "job_id": id.String()}
	cmdData, _ := json.Marshal(cmd)
	_ = h.producer.PublishControl(cmdData)

	if err := h.db.UpdateJobStatus(c.Request.Context(), id, jobs.StatusCancelled, ""); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelled", "job_id": id})
}

func (h *JobHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	if err := h.db.DeleteJob(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// ListIdentities returns the identities a preview job discovered, for an
// operator to choose which to blur.
func (h *JobHandler) ListIdentities(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	idents, err := h.db.ListIdentities(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.IdentityResponse, 0, len(idents))
	for _, ident := range idents {
		resp = append(resp, dto.IdentityResponse{TrackID: ident.TrackID, ThumbnailKey: ident.ThumbnailKey})
	}
	c.JSON(http.StatusOK, dto.IdentityListResponse{Identities: resp})
}

// SelectIdentities resumes an awaiting_selection preview job as a blur run
// against the cached detection results, using the operator's chosen
// inclusion/exclusion policy.
func (h *JobHandler) SelectIdentities(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	var req dto.SelectIdentitiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	j, err := h.db.GetJob(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if j == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if j.Status != jobs.StatusAwaiting {
		c.JSON(http.StatusConflict, gin.H{"error": "job is not awaiting identity selection"})
		return
	}

	j.BlurIDs = req.BlurIDs
	j.ExcludeIDs = req.ExcludeIDs
	j.Mode = jobs.ModeBlur

	if err := h.producer.PublishJob(c.Request.Context(), j.ID.String(), j); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue blur run"})
		return
	}
	if err := h.db.UpdateJobStatus(c.Request.Context(), id, jobs.StatusQueued, ""); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, jobToResponse(j))
}

func jobToResponse(j *jobs.Job) dto.JobResponse {
	return dto.JobResponse{
		ID:           j.ID,
		Mode:         string(j.Mode),
		Status:       string(j.Status),
		SourceKey:    j.SourceKey,
		OutputKey:    j.OutputKey,
		Shape:        j.Shape,
		BlurIDs:      j.BlurIDs,
		ExcludeIDs:   j.ExcludeIDs,
		ErrorMessage: j.ErrorMessage,
		FramesTotal:  j.FramesTotal,
		FramesDone:   j.FramesDone,
		Metadata:     j.Metadata,
		CreatedAt:    j.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:    j.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}
