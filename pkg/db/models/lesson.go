package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/guruji-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/guruji-backend/pkg/errors"
)

// Lesson is one video-bearing unit of a course. The authoring flow owns
// course_id, title and storage_path; the ingest pipeline only writes the
// status, error and video host columns.
type Lesson struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	CourseID     string             `gorm:"column:course_id;not null"`
	Title        string             `gorm:"column:title;not null;default:''"`
	StoragePath  *string            `gorm:"column:storage_path"`
	Status       enums.LessonStatus `gorm:"column:status;type:lesson_status;not null;default:'none'"`
	ErrorCode    *pkgerrors.Code    `gorm:"column:error_code;type:upload_error_code"`
	ErrorMessage *string            `gorm:"column:error_message"`
	VideoHostID  *string            `gorm:"column:video_host_id"`
	VideoHostURL *string            `gorm:"column:video_host_url"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (Lesson) TableName() string { return "lessons" }

// BeforeCreate assigns the id client-side so the model also works on sqlite.
func (l *Lesson) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Status == "" {
		l.Status = enums.LessonStatusNone
	}
	return nil
}

// HasVideo reports whether a successful upload has been recorded.
func (l Lesson) HasVideo() bool {
	return l.VideoHostID != nil && *l.VideoHostID != ""
}
