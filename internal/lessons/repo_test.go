package lessons

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/guruji-backend/pkg/db/models"
	"github.com/angelmondragon/guruji-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/guruji-backend/pkg/errors"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Lesson{}))
	return conn
}

func newTestRepo(t *testing.T, now time.Time) *Repository {
	t.Helper()
	repo := NewRepository(setupTestDB(t))
	repo.now = func() time.Time { return now }
	return repo
}

func strPtr(s string) *string { return &s }

func seedLesson(t *testing.T, repo *Repository, courseID, path string, status enums.LessonStatus, updatedAt time.Time) *models.Lesson {
	t.Helper()
	lesson, err := repo.Create(context.Background(), &models.Lesson{
		CourseID:    courseID,
		Title:       "Lesson " + path,
		StoragePath: strPtr(path),
		Status:      status,
		CreatedAt:   updatedAt,
		UpdatedAt:   updatedAt,
	})
	require.NoError(t, err)
	return lesson
}

func TestFindByCoursePath(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newTestRepo(t, now)
	ctx := context.Background()

	want := seedLesson(t, repo, "C1", "course-videos/C1/lec1.mp4", enums.LessonStatusNone, now)
	seedLesson(t, repo, "C2", "course-videos/C1/lec1.mp4", enums.LessonStatusNone, now)

	got, err := repo.FindByCoursePath(ctx, "C1", "course-videos/C1/lec1.mp4")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)

	_, err = repo.FindByCoursePath(ctx, "C1", "course-videos/C1/missing.mp4")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkProcessingThenReady(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newTestRepo(t, now)
	ctx := context.Background()

	lesson := seedLesson(t, repo, "C1", "course-videos/C1/lec1.mp4", enums.LessonStatusFailed, now.Add(-time.Hour))
	require.NoError(t, repo.MarkFailure(ctx, lesson.ID, pkgerrors.CodeAuth, "invalid_grant"))

	require.NoError(t, repo.MarkProcessing(ctx, lesson.ID))
	got, err := repo.FindByID(ctx, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.LessonStatusProcessing, got.Status)
	assert.Nil(t, got.ErrorCode, "processing clears the previous error")
	assert.Nil(t, got.ErrorMessage)

	applied, err := repo.MarkReady(ctx, lesson.ID, "XYZ", "https://www.youtube.com/watch?v=XYZ")
	require.NoError(t, err)
	assert.True(t, applied)

	got, err = repo.FindByID(ctx, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.LessonStatusReady, got.Status)
	require.NotNil(t, got.VideoHostID)
	assert.Equal(t, "XYZ", *got.VideoHostID)
	assert.Equal(t, "https://www.youtube.com/watch?v=XYZ", *got.VideoHostURL)
	assert.Nil(t, got.ErrorCode)
	assert.True(t, got.HasVideo())
	assert.True(t, got.UpdatedAt.Equal(now))
}

func TestReuploadDropsPreviousVideo(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newTestRepo(t, now)
	ctx := context.Background()

	lesson := seedLesson(t, repo, "C1", "course-videos/C1/lec1.mp4", enums.LessonStatusNone, now)
	require.NoError(t, repo.MarkProcessing(ctx, lesson.ID))
	applied, err := repo.MarkReady(ctx, lesson.ID, "OLD", "https://www.youtube.com/watch?v=OLD")
	require.NoError(t, err)
	require.True(t, applied)

	require.NoError(t, repo.MarkProcessing(ctx, lesson.ID))
	got, err := repo.FindByID(ctx, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.LessonStatusProcessing, got.Status)
	assert.Nil(t, got.VideoHostID)
	assert.Nil(t, got.VideoHostURL)
	assert.False(t, got.HasVideo())

	require.NoError(t, repo.MarkFailure(ctx, lesson.ID, pkgerrors.CodeQuotaExceeded, "quota"))
	got, err = repo.FindByID(ctx, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.LessonStatusUploadBlocked, got.Status)
	assert.Nil(t, got.VideoHostID)
	assert.Nil(t, got.VideoHostURL)
	require.NotNil(t, got.ErrorCode)
	assert.Equal(t, pkgerrors.CodeQuotaExceeded, *got.ErrorCode)
}

func TestMarkFailureClearsVideo(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newTestRepo(t, now)
	ctx := context.Background()

	lesson := seedLesson(t, repo, "C1", "course-videos/C1/lec1.mp4", enums.LessonStatusProcessing, now)
	applied, err := repo.MarkReady(ctx, lesson.ID, "XYZ", "https://www.youtube.com/watch?v=XYZ")
	require.NoError(t, err)
	require.True(t, applied)

	require.NoError(t, repo.MarkFailure(ctx, lesson.ID, pkgerrors.CodeAuth, "invalid_grant"))
	got, err := repo.FindByID(ctx, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.LessonStatusFailed, got.Status)
	assert.Nil(t, got.VideoHostID)
	assert.False(t, got.HasVideo())
}

func TestMarkReadyIsGuardedOnProcessing(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newTestRepo(t, now)
	ctx := context.Background()

	lesson := seedLesson(t, repo, "C1", "course-videos/C1/lec1.mp4", enums.LessonStatusFailed, now)

	applied, err := repo.MarkReady(ctx, lesson.ID, "XYZ", "https://www.youtube.com/watch?v=XYZ")
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := repo.FindByID(ctx, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.LessonStatusFailed, got.Status)
	assert.Nil(t, got.VideoHostID)
}

func TestMarkFailureUsesTaxonomyStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newTestRepo(t, now)
	ctx := context.Background()

	cases := []struct {
		code   pkgerrors.Code
		status enums.LessonStatus
	}{
		{pkgerrors.CodeQuotaExceeded, enums.LessonStatusUploadBlocked},
		{pkgerrors.CodeAuth, enums.LessonStatusFailed},
		{pkgerrors.CodeUnknown, enums.LessonStatusFailed},
	}
	for i, tc := range cases {
		lesson := seedLesson(t, repo, "C1", fmt.Sprintf("course-videos/C1/%d.mp4", i), enums.LessonStatusProcessing, now)
		require.NoError(t, repo.MarkFailure(ctx, lesson.ID, tc.code, "msg"))

		got, err := repo.FindByID(ctx, lesson.ID)
		require.NoError(t, err)
		assert.Equal(t, tc.status, got.Status)
		require.NotNil(t, got.ErrorCode)
		assert.Equal(t, tc.code, *got.ErrorCode)
		assert.Equal(t, "msg", *got.ErrorMessage)
	}

	assert.ErrorIs(t, repo.MarkFailure(ctx, uuid.New(), pkgerrors.CodeUnknown, "x"), ErrNotFound)
}

func TestStuckProcessingLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newTestRepo(t, now)
	ctx := context.Background()
	cutoff := now.Add(-2 * time.Hour)

	old := seedLesson(t, repo, "C1", "course-videos/C1/old.mp4", enums.LessonStatusProcessing, now.Add(-3*time.Hour))
	older := seedLesson(t, repo, "C1", "course-videos/C1/older.mp4", enums.LessonStatusProcessing, now.Add(-5*time.Hour))
	seedLesson(t, repo, "C1", "course-videos/C1/fresh.mp4", enums.LessonStatusProcessing, now.Add(-time.Minute))
	seedLesson(t, repo, "C1", "course-videos/C1/done.mp4", enums.LessonStatusReady, now.Add(-5*time.Hour))

	rows, err := repo.ListStuckProcessing(ctx, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, older.ID, rows[0].ID)
	assert.Equal(t, old.ID, rows[1].ID)

	affected, err := repo.FailStuck(ctx, []uuid.UUID{old.ID, older.ID}, cutoff, "timed out")
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	got, err := repo.FindByID(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.LessonStatusFailed, got.Status)
	assert.Equal(t, pkgerrors.CodeUnknown, *got.ErrorCode)

	affected, err = repo.FailStuck(ctx, nil, cutoff, "timed out")
	require.NoError(t, err)
	assert.Zero(t, affected)
}
