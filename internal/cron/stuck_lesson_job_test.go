package cron

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/guruji-backend/internal/lessons"
	"github.com/angelmondragon/guruji-backend/pkg/db/models"
	"github.com/angelmondragon/guruji-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/guruji-backend/pkg/errors"
	"github.com/angelmondragon/guruji-backend/pkg/logger"
)

type stubStuckRepo struct {
	batches  [][]models.Lesson
	lists    int
	failed   [][]uuid.UUID
	cutoffs  []time.Time
	listErr  error
	failErr  error
	moveNone bool
}

func (s *stubStuckRepo) ListStuckProcessing(_ context.Context, cutoff time.Time, _ int) ([]models.Lesson, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.cutoffs = append(s.cutoffs, cutoff)
	if s.lists >= len(s.batches) {
		return nil, nil
	}
	rows := s.batches[s.lists]
	s.lists++
	return rows, nil
}

func (s *stubStuckRepo) FailStuck(_ context.Context, ids []uuid.UUID, _ time.Time, message string) (int64, error) {
	if s.failErr != nil {
		return 0, s.failErr
	}
	if message != StuckLessonMessage {
		return 0, fmt.Errorf("unexpected message %q", message)
	}
	s.failed = append(s.failed, ids)
	if s.moveNone {
		return 0, nil
	}
	return int64(len(ids)), nil
}

func lessonsWithIDs(n int) []models.Lesson {
	rows := make([]models.Lesson, n)
	for i := range rows {
		rows[i].ID = uuid.New()
	}
	return rows
}

func TestStuckLessonJobBatches(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	repo := &stubStuckRepo{batches: [][]models.Lesson{lessonsWithIDs(2), lessonsWithIDs(1)}}
	job, err := NewStuckLessonJob(StuckLessonJobParams{
		Logger:     logger.Nop(),
		Lessons:    repo,
		StuckAfter: time.Hour,
		BatchSize:  2,
	})
	require.NoError(t, err)
	job.(*stuckLessonJob).now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, repo.failed, 2)
	assert.Len(t, repo.failed[0], 2)
	assert.Len(t, repo.failed[1], 1)
	assert.Equal(t, now.Add(-time.Hour), repo.cutoffs[0])
	assert.Equal(t, StuckLessonJobName, job.Name())
}

func TestStuckLessonJobStopsWhenNothingMoves(t *testing.T) {
	rows := lessonsWithIDs(2)
	repo := &stubStuckRepo{batches: [][]models.Lesson{rows, rows, rows}, moveNone: true}
	job, err := NewStuckLessonJob(StuckLessonJobParams{Logger: logger.Nop(), Lessons: repo, BatchSize: 2})
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, repo.failed, 1)
}

func TestStuckLessonJobErrors(t *testing.T) {
	job, _ := NewStuckLessonJob(StuckLessonJobParams{Logger: logger.Nop(), Lessons: &stubStuckRepo{listErr: errors.New("db down")}})
	assert.Error(t, job.Run(context.Background()))

	job, _ = NewStuckLessonJob(StuckLessonJobParams{
		Logger:  logger.Nop(),
		Lessons: &stubStuckRepo{batches: [][]models.Lesson{lessonsWithIDs(1)}, failErr: errors.New("db down")},
	})
	assert.Error(t, job.Run(context.Background()))

	_, err := NewStuckLessonJob(StuckLessonJobParams{Lessons: &stubStuckRepo{}})
	assert.Error(t, err)
	_, err = NewStuckLessonJob(StuckLessonJobParams{Logger: logger.Nop()})
	assert.Error(t, err)
}

func TestStuckLessonJobAgainstStore(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Lesson{}))
	repo := lessons.NewRepository(conn)
	ctx := context.Background()

	now := time.Now().UTC()
	seed := func(status enums.LessonStatus, updatedAt time.Time) *models.Lesson {
		l, err := repo.Create(ctx, &models.Lesson{
			CourseID:  "C1",
			Title:     "lesson",
			Status:    status,
			CreatedAt: updatedAt,
			UpdatedAt: updatedAt,
		})
		require.NoError(t, err)
		return l
	}
	stale := seed(enums.LessonStatusProcessing, now.Add(-3*time.Hour))
	fresh := seed(enums.LessonStatusProcessing, now.Add(-time.Minute))
	idle := seed(enums.LessonStatusNone, now.Add(-5*time.Hour))

	job, err := NewStuckLessonJob(StuckLessonJobParams{Logger: logger.Nop(), Lessons: repo, StuckAfter: 2 * time.Hour})
	require.NoError(t, err)
	require.NoError(t, job.Run(ctx))

	got, err := repo.FindByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.LessonStatusFailed, got.Status)
	require.NotNil(t, got.ErrorCode)
	assert.Equal(t, pkgerrors.CodeUnknown, *got.ErrorCode)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, StuckLessonMessage, *got.ErrorMessage)

	got, err = repo.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.LessonStatusProcessing, got.Status)

	got, err = repo.FindByID(ctx, idle.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.LessonStatusNone, got.Status)
}
