package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/guruji-backend/pkg/db/models"
	"github.com/angelmondragon/guruji-backend/pkg/logger"
	"github.com/angelmondragon/guruji-backend/pkg/metrics"
)

const (
	StuckLessonJobName = "stuck-lesson-reconcile"

	// StuckLessonMessage is stored on lessons whose worker vanished mid-upload.
	StuckLessonMessage = "upload did not complete before the worker deadline"

	defaultStuckAfter     = 2 * time.Hour
	defaultStuckBatchSize = 100
)

type stuckLessonRepo interface {
	ListStuckProcessing(ctx context.Context, cutoff time.Time, limit int) ([]models.Lesson, error)
	FailStuck(ctx context.Context, ids []uuid.UUID, cutoff time.Time, message string) (int64, error)
}

type StuckLessonJobParams struct {
	Logger     *logger.Logger
	Lessons    stuckLessonRepo
	Metrics    *metrics.CronJobMetrics
	StuckAfter time.Duration
	BatchSize  int
}

// NewStuckLessonJob builds the job that fails lessons left in processing by
// an invocation that never reached a terminal write.
func NewStuckLessonJob(params StuckLessonJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lessons == nil {
		return nil, fmt.Errorf("lesson repository required")
	}
	stuckAfter := params.StuckAfter
	if stuckAfter <= 0 {
		stuckAfter = defaultStuckAfter
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultStuckBatchSize
	}
	return &stuckLessonJob{
		logg:       params.Logger,
		lessons:    params.Lessons,
		metrics:    params.Metrics,
		stuckAfter: stuckAfter,
		batchSize:  batch,
		now:        time.Now,
	}, nil
}

type stuckLessonJob struct {
	logg       *logger.Logger
	lessons    stuckLessonRepo
	metrics    *metrics.CronJobMetrics
	stuckAfter time.Duration
	batchSize  int
	now        func() time.Time
}

func (j *stuckLessonJob) Name() string { return StuckLessonJobName }

func (j *stuckLessonJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.stuckAfter)
	var candidates, failed int64
	for {
		rows, err := j.lessons.ListStuckProcessing(ctx, cutoff, j.batchSize)
		if err != nil {
			return fmt.Errorf("query stuck lessons: %w", err)
		}
		if len(rows) == 0 {
			break
		}
		ids := make([]uuid.UUID, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		candidates += int64(len(rows))

		n, err := j.lessons.FailStuck(ctx, ids, cutoff, StuckLessonMessage)
		if err != nil {
			return fmt.Errorf("fail stuck lessons: %w", err)
		}
		failed += n
		// a short batch, or a batch nobody could move, means we are done
		if len(rows) < j.batchSize || n == 0 {
			break
		}
	}
	j.metrics.AddAffected(StuckLessonJobName, failed)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":      cutoff,
		"stuck_after": j.stuckAfter.String(),
		"candidates":  candidates,
		"failed":      failed,
	})
	j.logg.Info(logCtx, "stuck lesson reconcile complete")
	return nil
}
