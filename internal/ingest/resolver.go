package ingest

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/angelmondragon/guruji-backend/internal/lessons"
	"github.com/angelmondragon/guruji-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/guruji-backend/pkg/errors"
	"github.com/angelmondragon/guruji-backend/pkg/logger"
)

// LessonStore is the slice of the lesson repository the pipeline writes to.
type LessonStore interface {
	FindByCoursePath(ctx context.Context, courseID, storagePath string) (*models.Lesson, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkReady(ctx context.Context, id uuid.UUID, videoID, videoURL string) (bool, error)
	MarkFailure(ctx context.Context, id uuid.UUID, code pkgerrors.Code, message string) error
}

// Resolution is the resolver's answer for an in-scope object. Lesson is nil
// when the video landed before its lesson metadata existed.
type Resolution struct {
	Lesson   *models.Lesson
	CourseID string
	Path     ObjectPath
}

// Resolver maps storage objects to lesson records.
type Resolver struct {
	store  LessonStore
	prefix string
	logg   *logger.Logger
}

func NewResolver(store LessonStore, prefix string, logg *logger.Logger) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("lesson store is required")
	}
	if prefix == "" {
		return nil, errors.New("object prefix is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Resolver{store: store, prefix: prefix, logg: logg}, nil
}

// Applicable reports whether the object is a video under the lesson prefix.
func (r *Resolver) Applicable(obj Object) (ObjectPath, bool) {
	if !IsVideoContentType(obj.ContentType) {
		return ObjectPath{}, false
	}
	return ParseObjectPath(r.prefix, obj.Name)
}

// Resolve looks the lesson up and, when found, marks it processing. Store
// failures are logged and treated as "no lesson" so the upload still runs.
func (r *Resolver) Resolve(ctx context.Context, obj Object, p ObjectPath) Resolution {
	res := Resolution{CourseID: p.CourseID, Path: p}
	ctx = r.logg.WithCourseID(ctx, p.CourseID)

	lesson, err := r.store.FindByCoursePath(ctx, p.CourseID, obj.Name)
	switch {
	case errors.Is(err, lessons.ErrNotFound):
		r.logg.Warn(ctx, "no lesson matches uploaded video; uploading without a record")
		return res
	case err != nil:
		r.logg.Error(r.logg.WithField(ctx, "error_dump", pkgerrors.Dump(err)), "lesson lookup failed; uploading without a record", err)
		return res
	}

	res.Lesson = lesson
	ctx = r.logg.WithLessonID(ctx, lesson.ID.String())
	if err := r.store.MarkProcessing(ctx, lesson.ID); err != nil {
		r.logg.Error(ctx, "failed to mark lesson processing", err)
	}
	return res
}
