package worker

import (
	"context"
	"encoding/json"

	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/config"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/db"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/enroll"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/logger"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/model"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/queue"

	"github.com/rs/zerolog"
)

// EnrollmentWorker consumes enrollment jobs produced after imports and runs
// the bulk synchronizer over the requested (student x target) cross product.
type EnrollmentWorker struct {
	cfg          *config.Config
	repo         db.Repository
	synchronizer *enroll.Synchronizer
	consumer     *queue.Consumer
	workerPool   *WorkerPool
	log          zerolog.Logger
}

func NewEnrollmentWorker(
	cfg *config.Config,
	repo db.Repository,
	redisClient *queue.RedisClient,
) *EnrollmentWorker {
	return &EnrollmentWorker{
		cfg:  cfg,
		repo: repo,
		synchronizer: enroll.NewSynchronizer(
			enroll.NewEnroller(repo),
			enroll.WithFailureDetailLimit(cfg.Enrollment.FailureDetailLimit),
		),
		consumer:   queue.NewConsumer(redisClient, cfg),
		workerPool: NewWorkerPool(cfg.Enrollment.Workers),
		log:        logger.Get(),
	}
}

func (w *EnrollmentWorker) Start(ctx context.Context) error {
	w.log.Info().Msg("Starting enrollment worker")
	w.workerPool.Start(ctx)
	return w.consumer.ConsumeEnrollmentQueue(ctx, w.handleMessage)
}

func (w *EnrollmentWorker) Stop() {
	w.log.Info().Msg("Stopping enrollment worker")
	w.workerPool.Stop()
}

func (w *EnrollmentWorker) handleMessage(ctx context.Context, data []byte) error {
	var job model.EnrollmentJob
	if err := json.Unmarshal(data, &job); err != nil {
		w.log.Error().Err(err).Msg("Failed to unmarshal enrollment job")
		return err
	}

	w.log.Info().
		Str("run_id", job.RunID).
		Int("students", len(job.StudentIDs)).
		Int("courses", len(job.CourseIDs)).
		Int("occurrences", len(job.OccurrenceIDs)).
		Msg("Processing enrollment job")

	w.workerPool.Submit(func(ctx context.Context) error {
		return w.processJob(ctx, job)
	})
	return nil
}

func (w *EnrollmentWorker) processJob(ctx context.Context, job model.EnrollmentJob) error {
	log := w.log.With().Str("run_id", job.RunID).Logger()

	students, err := w.candidates(ctx, job)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load enrollment candidates")
		return err
	}

	targets := make([]model.EnrollmentTarget, 0, len(job.CourseIDs)+len(job.OccurrenceIDs))
	for _, id := range job.CourseIDs {
		targets = append(targets, model.CourseTarget(id))
	}
	for _, id := range job.OccurrenceIDs {
		targets = append(targets, model.OccurrenceTarget(id))
	}

	progress := func(processed, total int) {
		log.Debug().Int("processed", processed).Int("total", total).Msg("Enrollment progress")
	}
	report := w.synchronizer.SyncBulk(ctx, targets, students, job.EffectiveDate, progress)

	if job.RunID != "" {
		if err := w.repo.UpdateRunStatus(ctx, job.RunID, model.RunStatusEnrolled, nil); err != nil {
			log.Error().Err(err).Msg("Failed to mark run enrolled")
			return err
		}
	}

	log.Info().
		Int("successful", report.Successful).
		Int("already_enrolled", report.AlreadyEnrolled).
		Int("failed", len(report.Failed)).
		Msg("Enrollment job completed")
	return nil
}

// candidates resolves the job's student ids against the live record set so
// failure entries carry readable names.
func (w *EnrollmentWorker) candidates(ctx context.Context, job model.EnrollmentJob) ([]enroll.Candidate, error) {
	students, err := w.repo.ListActiveStudents(ctx, job.TenantID)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(students))
	for _, s := range students {
		names[s.ID] = s.FullName()
	}

	out := make([]enroll.Candidate, 0, len(job.StudentIDs))
	for _, id := range job.StudentIDs {
		out = append(out, enroll.Candidate{StudentID: id, Name: names[id]})
	}
	return out, nil
}
