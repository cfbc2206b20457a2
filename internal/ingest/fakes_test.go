package ingest

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/angelmondragon/guruji-backend/internal/lessons"
	"github.com/angelmondragon/guruji-backend/pkg/db/models"
	"github.com/angelmondragon/guruji-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/guruji-backend/pkg/errors"
	"github.com/angelmondragon/guruji-backend/pkg/youtube"
)

type storeCall struct {
	op      string
	id      uuid.UUID
	code    pkgerrors.Code
	message string
	videoID string
}

type fakeStore struct {
	mu       sync.Mutex
	lessons  []*models.Lesson
	calls    []storeCall
	findErr  error
	markErr  error
	readyErr error
	failErr  error
}

func (f *fakeStore) add(courseID, path, title string) *models.Lesson {
	p := path
	l := &models.Lesson{ID: uuid.New(), CourseID: courseID, StoragePath: &p, Title: title, Status: enums.LessonStatusNone}
	f.lessons = append(f.lessons, l)
	return l
}

func (f *fakeStore) record(c storeCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeStore) writes() []storeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []storeCall{}
	for _, c := range f.calls {
		if c.op != "find" {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeStore) byID(id uuid.UUID) *models.Lesson {
	for _, l := range f.lessons {
		if l.ID == id {
			return l
		}
	}
	return nil
}

func (f *fakeStore) FindByCoursePath(ctx context.Context, courseID, storagePath string) (*models.Lesson, error) {
	f.record(storeCall{op: "find"})
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, l := range f.lessons {
		if l.CourseID == courseID && l.StoragePath != nil && *l.StoragePath == storagePath {
			cp := *l
			return &cp, nil
		}
	}
	return nil, lessons.ErrNotFound
}

func (f *fakeStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	f.record(storeCall{op: "processing", id: id})
	if f.markErr != nil {
		return f.markErr
	}
	l := f.byID(id)
	l.Status = enums.LessonStatusProcessing
	l.VideoHostID, l.VideoHostURL = nil, nil
	l.ErrorCode, l.ErrorMessage = nil, nil
	return nil
}

func (f *fakeStore) MarkReady(ctx context.Context, id uuid.UUID, videoID, videoURL string) (bool, error) {
	f.record(storeCall{op: "ready", id: id, videoID: videoID})
	if f.readyErr != nil {
		return false, f.readyErr
	}
	l := f.byID(id)
	if l.Status != enums.LessonStatusProcessing {
		return false, nil
	}
	l.Status = enums.LessonStatusReady
	l.VideoHostID, l.VideoHostURL = &videoID, &videoURL
	l.ErrorCode, l.ErrorMessage = nil, nil
	return true, nil
}

func (f *fakeStore) MarkFailure(ctx context.Context, id uuid.UUID, code pkgerrors.Code, message string) error {
	f.record(storeCall{op: "failure", id: id, code: code, message: message})
	if f.failErr != nil {
		return f.failErr
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	l := f.byID(id)
	status, _ := enums.ParseLessonStatus(pkgerrors.MetadataFor(code).LessonStatus)
	l.Status = status
	l.VideoHostID, l.VideoHostURL = nil, nil
	l.ErrorCode, l.ErrorMessage = &code, &message
	return nil
}

type fakeDownloader struct {
	body  string
	err   error
	calls int
	dests []string
}

func (d *fakeDownloader) Download(ctx context.Context, bucket, object, dest string) (int64, error) {
	d.calls++
	d.dests = append(d.dests, dest)
	if d.err != nil {
		return 0, d.err
	}
	if err := os.WriteFile(dest, []byte(d.body), 0o600); err != nil {
		return 0, err
	}
	return int64(len(d.body)), nil
}

type fakeUploader struct {
	id       string
	err      error
	block    bool
	calls    int
	gotMeta  youtube.Metadata
	gotBytes string
}

func (u *fakeUploader) Upload(ctx context.Context, meta youtube.Metadata, media io.Reader) (string, error) {
	u.calls++
	u.gotMeta = meta
	b, _ := io.ReadAll(media)
	u.gotBytes = string(b)
	if u.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if u.err != nil {
		return "", u.err
	}
	return u.id, nil
}

type fakeAuth struct {
	uploader *fakeUploader
	err      error
}

func (a *fakeAuth) Authenticate(ctx context.Context, creds youtube.Credentials) (youtube.Uploader, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.uploader, nil
}

var errBoom = errors.New("boom")
