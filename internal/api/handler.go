package api

import (
	"net/http"
	"time"

	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/config"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/db"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/logger"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/model"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/queue"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Handler struct {
	repo     db.Repository
	producer *queue.Producer
	cfg      *config.Config
	log      zerolog.Logger
}

func NewHandler(
	repo db.Repository,
	producer *queue.Producer,
	cfg *config.Config,
) *Handler {
	return &Handler{
		repo:     repo,
		producer: producer,
		cfg:      cfg,
		log:      logger.Get(),
	}
}

type createImportRequest struct {
	TenantID string `json:"tenant_id" binding:"required"`
	S3Path   string `json:"s3_path" binding:"required"`
	FileName string `json:"file_name" binding:"required"`
}

// CreateImport registers an uploaded spreadsheet and queues it for the
// import pipeline.
func (h *Handler) CreateImport(c *gin.Context) {
	var req createImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	run := &model.ImportRun{
		ID:       uuid.NewString(),
		TenantID: req.TenantID,
		FileName: req.FileName,
		S3Path:   req.S3Path,
		Status:   model.RunStatusUploaded,
	}

	if err := h.repo.CreateRun(c.Request.Context(), run); err != nil {
		h.log.Error().Err(err).Msg("Failed to create import run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create import run"})
		return
	}

	job := model.ImportJob{
		RunID:    run.ID,
		TenantID: run.TenantID,
		S3Path:   run.S3Path,
		FileName: run.FileName,
	}

	if err := h.producer.EnqueueImportJob(c.Request.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue import job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue import job"})
		return
	}

	h.log.Info().Str("run_id", run.ID).Str("file", run.FileName).Msg("Import run queued")

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Import queued successfully",
		"run_id":  run.ID,
	})
}

func (h *Handler) GetImportStatus(c *gin.Context) {
	runID := c.Param("run_id")

	run, err := h.repo.GetRun(c.Request.Context(), runID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Import run not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Import run not found"})
		return
	}

	c.JSON(http.StatusOK, run)
}

type triggerEnrollmentRequest struct {
	RunID         string   `json:"run_id"`
	TenantID      string   `json:"tenant_id" binding:"required"`
	StudentIDs    []string `json:"student_ids" binding:"required"`
	CourseIDs     []string `json:"course_ids"`
	OccurrenceIDs []string `json:"occurrence_ids"`
	EffectiveDate string   `json:"effective_date"`
}

// TriggerEnrollment queues a bulk enrollment job. When a run id is given,
// the run must have finished importing first.
func (h *Handler) TriggerEnrollment(c *gin.Context) {
	var req triggerEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if len(req.CourseIDs)+len(req.OccurrenceIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one target is required"})
		return
	}

	effective := time.Now()
	if req.EffectiveDate != "" {
		parsed, err := time.Parse("2006-01-02", req.EffectiveDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid effective_date, expected YYYY-MM-DD"})
			return
		}
		effective = parsed
	}

	if req.RunID != "" {
		run, err := h.repo.GetRun(c.Request.Context(), req.RunID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Import run not found"})
			return
		}
		if run.Status != model.RunStatusImported {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":  "Import run is not ready for enrollment",
				"status": run.Status,
			})
			return
		}
	}

	job := model.EnrollmentJob{
		RunID:         req.RunID,
		TenantID:      req.TenantID,
		StudentIDs:    req.StudentIDs,
		CourseIDs:     req.CourseIDs,
		OccurrenceIDs: req.OccurrenceIDs,
		EffectiveDate: effective,
	}

	if err := h.producer.EnqueueEnrollmentJob(c.Request.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue enrollment job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue enrollment job"})
		return
	}

	h.log.Info().
		Str("run_id", req.RunID).
		Int("students", len(req.StudentIDs)).
		Msg("Enrollment job queued")

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Enrollment queued successfully",
		"job":     job,
	})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.cfg.App.Name,
		"version": h.cfg.App.Version,
	})
}
