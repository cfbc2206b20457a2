package lessons

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/guruji-backend/pkg/db/models"
	"github.com/angelmondragon/guruji-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/guruji-backend/pkg/errors"
)

// ErrNotFound is returned when no lesson matches a lookup.
var ErrNotFound = errors.New("lesson not found")

// Repository persists the ingest-owned lesson columns.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository constructs a lesson repository bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create persists a lesson record. Only the authoring flow and tests create rows.
func (r *Repository) Create(ctx context.Context, lesson *models.Lesson) (*models.Lesson, error) {
	if err := r.db.WithContext(ctx).Create(lesson).Error; err != nil {
		return nil, err
	}
	return lesson, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
	var lesson models.Lesson
	if err := r.db.WithContext(ctx).Take(&lesson, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &lesson, nil
}

// FindByCoursePath returns at most one lesson whose course and storage path
// both match.
func (r *Repository) FindByCoursePath(ctx context.Context, courseID, storagePath string) (*models.Lesson, error) {
	var lesson models.Lesson
	err := r.db.WithContext(ctx).
		Where("course_id = ? AND storage_path = ?", courseID, storagePath).
		Take(&lesson).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &lesson, nil
}

// MarkProcessing flags the lesson as being uploaded and clears the previous
// attempt's outcome. Only a ready lesson carries a hosted video.
func (r *Repository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return r.update(r.db.WithContext(ctx).Where("id = ?", id), map[string]any{
		"status":         enums.LessonStatusProcessing,
		"video_host_id":  nil,
		"video_host_url": nil,
		"error_code":     nil,
		"error_message":  nil,
	})
}

// MarkReady records the hosted video. The write only applies while the row is
// still processing; it reports false when another writer got there first.
func (r *Repository) MarkReady(ctx context.Context, id uuid.UUID, videoID, videoURL string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Lesson{}).
		Where("id = ? AND status = ?", id, enums.LessonStatusProcessing).
		Updates(map[string]any{
			"status":         enums.LessonStatusReady,
			"video_host_id":  videoID,
			"video_host_url": videoURL,
			"error_code":     nil,
			"error_message":  nil,
			"updated_at":     r.now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkFailure writes a terminal failure status with its error pair. The status
// comes from the code's taxonomy metadata (failed or upload_blocked).
func (r *Repository) MarkFailure(ctx context.Context, id uuid.UUID, code pkgerrors.Code, message string) error {
	status, err := enums.ParseLessonStatus(pkgerrors.MetadataFor(code).LessonStatus)
	if err != nil {
		return err
	}
	return r.update(r.db.WithContext(ctx).Where("id = ?", id), map[string]any{
		"status":         status,
		"video_host_id":  nil,
		"video_host_url": nil,
		"error_code":     code,
		"error_message":  message,
	})
}

// ListStuckProcessing returns lessons that have been processing since before
// the cutoff, oldest first.
func (r *Repository) ListStuckProcessing(ctx context.Context, cutoff time.Time, limit int) ([]models.Lesson, error) {
	var rows []models.Lesson
	q := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", enums.LessonStatusProcessing, cutoff).
		Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FailStuck moves the given lessons to failed/UNKNOWN_ERROR, skipping any row
// that left processing or was touched after the cutoff.
func (r *Repository) FailStuck(ctx context.Context, ids []uuid.UUID, cutoff time.Time, message string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Lesson{}).
		Where("id IN ? AND status = ? AND updated_at < ?", ids, enums.LessonStatusProcessing, cutoff).
		Updates(map[string]any{
			"status":        enums.LessonStatusFailed,
			"error_code":    pkgerrors.CodeUnknown,
			"error_message": message,
			"updated_at":    r.now(),
		})
	return res.RowsAffected, res.Error
}

func (r *Repository) update(q *gorm.DB, fields map[string]any) error {
	fields["updated_at"] = r.now()
	res := q.Model(&models.Lesson{}).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
