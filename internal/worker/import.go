package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/config"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/dataset"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/db"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/enroll"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/importer"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/logger"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/match"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/model"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/queue"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/resolve"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/storage"

	"github.com/rs/zerolog"
)

// ImportWorker drives the full pipeline for queued spreadsheet uploads:
// download, normalize, match columns, resolve references, validate, execute,
// then enroll each imported student into the targets resolved from its own
// row. This is the headless path; duplicates are retained rather than updated
// because no user is present to arbitrate them.
type ImportWorker struct {
	cfg          *config.Config
	repo         db.Repository
	storage      storage.Storage
	normalizer   dataset.Normalizer
	searcher     resolve.Searcher
	synchronizer *enroll.Synchronizer
	consumer     *queue.Consumer
	workerPool   *WorkerPool
	log          zerolog.Logger
}

func NewImportWorker(
	cfg *config.Config,
	repo db.Repository,
	store storage.Storage,
	searcher resolve.Searcher,
	redisClient *queue.RedisClient,
) *ImportWorker {
	return &ImportWorker{
		cfg:        cfg,
		repo:       repo,
		storage:    store,
		normalizer: dataset.NewExcelNormalizer(),
		searcher:   searcher,
		synchronizer: enroll.NewSynchronizer(
			enroll.NewEnroller(repo),
			enroll.WithFailureDetailLimit(cfg.Enrollment.FailureDetailLimit),
		),
		consumer:   queue.NewConsumer(redisClient, cfg),
		workerPool: NewWorkerPool(cfg.Import.Workers),
		log:        logger.Get(),
	}
}

func (w *ImportWorker) Start(ctx context.Context) error {
	w.log.Info().Msg("Starting import worker")
	w.workerPool.Start(ctx)
	return w.consumer.ConsumeImportQueue(ctx, w.handleMessage)
}

func (w *ImportWorker) Stop() {
	w.log.Info().Msg("Stopping import worker")
	w.workerPool.Stop()
}

func (w *ImportWorker) handleMessage(ctx context.Context, data []byte) error {
	var job model.ImportJob
	if err := json.Unmarshal(data, &job); err != nil {
		w.log.Error().Err(err).Msg("Failed to unmarshal import job")
		return err
	}

	w.log.Info().Str("run_id", job.RunID).Str("s3_path", job.S3Path).Msg("Processing import job")

	w.workerPool.Submit(func(ctx context.Context) error {
		return w.processRun(ctx, job)
	})
	return nil
}

func (w *ImportWorker) processRun(ctx context.Context, job model.ImportJob) error {
	log := w.log.With().Str("run_id", job.RunID).Logger()

	if err := w.repo.UpdateRunStatus(ctx, job.RunID, model.RunStatusProcessing, nil); err != nil {
		log.Error().Err(err).Msg("Failed to mark run processing")
		return err
	}

	report, result, enrollment, err := w.runPipeline(ctx, job, log)
	if err != nil {
		log.Error().Err(err).Msg("Import run failed")
		errorMsg := err.Error()
		if statusErr := w.repo.UpdateRunStatus(ctx, job.RunID, model.RunStatusFailed, &errorMsg); statusErr != nil {
			log.Error().Err(statusErr).Msg("Failed to mark run failed")
		}
		return err
	}

	created, updated, failed := result.Counts()
	if err := w.repo.UpdateRunCounts(ctx, job.RunID, report.TotalRows, created, updated, failed); err != nil {
		log.Error().Err(err).Msg("Failed to persist run counts")
		return err
	}
	if err := w.repo.UpdateRunStatus(ctx, job.RunID, model.RunStatusImported, nil); err != nil {
		log.Error().Err(err).Msg("Failed to mark run imported")
		return err
	}

	if enrollment != nil {
		if err := w.repo.UpdateRunStatus(ctx, job.RunID, model.RunStatusEnrolled, nil); err != nil {
			log.Error().Err(err).Msg("Failed to mark run enrolled")
			return err
		}
		log.Info().
			Int("successful", enrollment.Successful).
			Int("already_enrolled", enrollment.AlreadyEnrolled).
			Int("failed", len(enrollment.Failed)).
			Msg("Row-mapped enrollment completed")
	}

	log.Info().Int("created", created).Int("updated", updated).Int("failed", failed).Msg("Import run completed")
	return nil
}

func (w *ImportWorker) runPipeline(ctx context.Context, job model.ImportJob, log zerolog.Logger) (*model.ValidationReport, *model.ImportResult, *model.EnrollmentReport, error) {
	log.Debug().Msg("Downloading file")
	reader, err := w.storage.Download(ctx, job.S3Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("downloading %s: %w", job.S3Path, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("reading %s: %w", job.S3Path, err)
	}

	log.Debug().Msg("Normalizing spreadsheet")
	ds, err := w.normalizer.Normalize(ctx, job.FileName, data)
	if err != nil {
		return nil, nil, nil, err
	}

	fields := model.StudentImportFields()
	mapping := model.NewColumnMapping()
	matcher := match.NewMatcher(nil)
	autoMatched := matcher.Match(ds.Headers, fields, mapping)
	log.Debug().Strs("auto_matched", autoMatched).Msg("Columns matched")

	if missing := mapping.MissingRequired(fields); len(missing) > 0 {
		return nil, nil, nil, fmt.Errorf("required columns not found in header row: %v", missing)
	}

	resolver := resolve.New(job.TenantID, fields, db.NewOptionSource(w.repo), w.searcher)
	if mapping.HasRelational(fields) {
		if err := resolver.LoadOptions(ctx); err != nil {
			return nil, nil, nil, err
		}
		if err := resolver.AutoMatch(ctx, ds, mapping); err != nil {
			return nil, nil, nil, err
		}
	}
	resolved := resolver.TransformRows(ds, mapping)

	existing, err := w.repo.ListActiveStudents(ctx, job.TenantID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading existing students: %w", err)
	}

	rows := make([]model.SourceRow, len(resolved))
	for i, rr := range resolved {
		rows[i] = rr.Row
	}

	validator := importer.NewValidator(mapping, importer.NewExistingIndex(existing))
	report := validator.Validate(rows)

	if len(report.Valid)+len(report.Duplicates) == 0 {
		return nil, nil, nil, fmt.Errorf("no importable rows: %d invalid of %d total", len(report.Invalid), report.TotalRows)
	}

	executor := importer.NewExecutor(w.repo,
		importer.WithBatchSize(w.cfg.Import.BatchSize),
		importer.WithBatchDelay(w.cfg.Import.BatchDelay),
	)
	progress := func(processed, total int) {
		log.Debug().Int("processed", processed).Int("total", total).Msg("Import progress")
	}
	result, skipped := executor.Execute(ctx, job.TenantID, report.Valid, report.Duplicates, nil, progress)
	log.Debug().Int("skipped_duplicates", len(skipped)).Msg("Import executed")

	// Each student enrolls into whatever its own row's course and occurrence
	// cells resolved to during value mapping.
	var enrollment *model.EnrollmentReport
	if mapped := enroll.MappedEnrollments(result, skipped, resolve.IDIndex(resolved)); len(mapped) > 0 {
		enrollment = w.synchronizer.SyncMapped(ctx, mapped, time.Now(), func(processed, total int) {
			log.Debug().Int("processed", processed).Int("total", total).Msg("Enrollment progress")
		})
	}

	return report, result, enrollment, nil
}
