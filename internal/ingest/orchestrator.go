package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/guruji-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/guruji-backend/pkg/errors"
	"github.com/angelmondragon/guruji-backend/pkg/logger"
	"github.com/angelmondragon/guruji-backend/pkg/metrics"
	"github.com/angelmondragon/guruji-backend/pkg/storage/gcs"
	"github.com/angelmondragon/guruji-backend/pkg/youtube"
)

const (
	DefaultUploadTimeout = 30 * time.Minute
	lessonWriteTimeout   = 15 * time.Second
)

// Params wires an Orchestrator.
type Params struct {
	Resolver      *Resolver
	Store         LessonStore
	Downloader    gcs.Downloader
	Authenticator youtube.Authenticator
	Credentials   youtube.Credentials
	Scratch       *Scratch
	UploadTimeout time.Duration
	Metrics       *metrics.IngestMetrics
	Logger        *logger.Logger
}

// Result summarises one invocation.
type Result struct {
	InvocationID string
	State        State
	LessonID     *uuid.UUID
	VideoID      string
	VideoURL     string
	History      []State
}

// Orchestrator drives one storage object from notification to hosted video.
type Orchestrator struct {
	resolver *Resolver
	store    LessonStore
	download gcs.Downloader
	auth     youtube.Authenticator
	creds    youtube.Credentials
	scratch  *Scratch
	timeout  time.Duration
	metrics  *metrics.IngestMetrics
	logg     *logger.Logger
	newID    func() string
	now      func() time.Time
}

func NewOrchestrator(p Params) (*Orchestrator, error) {
	switch {
	case p.Resolver == nil:
		return nil, errors.New("resolver is required")
	case p.Store == nil:
		return nil, errors.New("lesson store is required")
	case p.Downloader == nil:
		return nil, errors.New("downloader is required")
	case p.Authenticator == nil:
		return nil, errors.New("authenticator is required")
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	}
	scratch := p.Scratch
	if scratch == nil {
		scratch = NewScratch("")
	}
	timeout := p.UploadTimeout
	if timeout <= 0 {
		timeout = DefaultUploadTimeout
	}
	return &Orchestrator{
		resolver: p.Resolver,
		store:    p.Store,
		download: p.Downloader,
		auth:     p.Authenticator,
		creds:    p.Credentials,
		scratch:  scratch,
		timeout:  timeout,
		metrics:  p.Metrics,
		logg:     p.Logger,
		newID:    uuid.NewString,
		now:      time.Now,
	}, nil
}

// invocation is the per-object working set.
type invocation struct {
	id     string
	obj    Object
	res    Resolution
	fsm    *machine
	file   *ScratchFile
	result Result
}

func (inv *invocation) lesson() *models.Lesson {
	return inv.res.Lesson
}

// Handle runs the pipeline for obj. A nil error means the invocation
// succeeded from the platform's point of view, which includes skipped
// objects and quota blocks.
func (o *Orchestrator) Handle(ctx context.Context, obj Object) (Result, error) {
	start := o.now()
	inv := &invocation{id: o.newID(), obj: obj, fsm: newMachine()}
	inv.result.InvocationID = inv.id

	ctx = o.logg.WithInvocationID(ctx, inv.id)
	ctx = o.logg.WithFields(ctx, map[string]any{
		"bucket":       obj.Bucket,
		"object":       obj.Name,
		"content_type": obj.ContentType,
		"generation":   obj.Generation,
	})
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	err := o.run(ctx, inv)

	inv.result.State = inv.fsm.state
	inv.result.History = inv.fsm.history
	o.metrics.ObserveInvocation(string(inv.fsm.state), o.now().Sub(start))
	return inv.result, err
}

func (o *Orchestrator) run(ctx context.Context, inv *invocation) error {
	p, ok := o.resolver.Applicable(inv.obj)
	if !ok {
		o.logg.Info(ctx, "object is not a lesson video; skipping")
		return inv.fsm.advance(StateSkipped)
	}
	if err := inv.fsm.advance(StateValidated); err != nil {
		return err
	}

	inv.res = o.resolver.Resolve(ctx, inv.obj, p)
	if l := inv.lesson(); l != nil {
		id := l.ID
		inv.result.LessonID = &id
		ctx = o.logg.WithLessonID(ctx, id.String())
	}
	ctx = o.logg.WithCourseID(ctx, p.CourseID)

	file, err := o.scratch.Acquire(inv.id, inv.obj.Name)
	if err != nil {
		return o.fail(ctx, inv, pkgerrors.Wrap(pkgerrors.CodeUnknown, err, "acquire scratch"))
	}
	inv.file = file
	defer func() {
		if relErr := file.Release(); relErr != nil {
			o.logg.Warn(o.logg.WithField(ctx, "scratch_error", relErr.Error()), "failed to remove scratch file")
		}
	}()

	for _, step := range []func(context.Context, *invocation) error{
		o.stepDownload,
		o.stepUpload,
	} {
		if err := step(ctx, inv); err != nil {
			return o.fail(ctx, inv, err)
		}
	}
	return o.finishReady(ctx, inv)
}

// stepDownload copies the object into scratch space and rejects empty copies.
func (o *Orchestrator) stepDownload(ctx context.Context, inv *invocation) error {
	if _, err := o.download.Download(ctx, inv.obj.Bucket, inv.obj.Name, inv.file.Path); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnknown, err, "download object")
	}
	size, err := checkDownloaded(inv.file.Path)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnknown, err, "download object")
	}
	o.logg.Info(o.logg.WithField(ctx, "size_bytes", size), "object downloaded")
	return inv.fsm.advance(StateDownloaded)
}

// stepUpload authenticates against the host and streams the scratch file.
func (o *Orchestrator) stepUpload(ctx context.Context, inv *invocation) error {
	uploader, err := o.auth.Authenticate(ctx, o.creds)
	if err != nil {
		var missing *youtube.MissingSecretsError
		if errors.As(err, &missing) {
			return pkgerrors.Wrap(pkgerrors.CodeUnknown, err, "video host configuration")
		}
		return Classify(err)
	}
	if err := inv.fsm.advance(StateAuthenticated); err != nil {
		return err
	}

	f, err := os.Open(inv.file.Path)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnknown, err, "open scratch file")
	}
	defer f.Close()

	title := ""
	if l := inv.lesson(); l != nil {
		title = l.Title
	}
	videoID, err := uploader.Upload(ctx, youtube.LessonMetadata(title), f)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return Classify(err)
	}
	inv.result.VideoID = videoID
	inv.result.VideoURL = youtube.WatchURL(videoID)
	return inv.fsm.advance(StateUploaded)
}

func (o *Orchestrator) finishReady(ctx context.Context, inv *invocation) error {
	if err := inv.fsm.advance(StateReady); err != nil {
		return err
	}
	ctx = o.logg.WithFields(ctx, map[string]any{"video_id": inv.result.VideoID, "video_url": inv.result.VideoURL})

	l := inv.lesson()
	if l == nil {
		o.logg.Info(ctx, "video uploaded without a lesson record")
		return nil
	}

	writeCtx, cancel := o.lessonWriteContext(ctx)
	defer cancel()
	applied, err := o.store.MarkReady(writeCtx, l.ID, inv.result.VideoID, inv.result.VideoURL)
	switch {
	case err != nil:
		o.metrics.IncLessonWriteFailure(string(StateReady))
		o.logg.Error(o.logg.WithField(ctx, "error_dump", pkgerrors.Dump(err)), "failed to mark lesson ready", err)
	case !applied:
		o.logg.Warn(ctx, "lesson left processing before upload finished; ready write skipped")
	default:
		o.logg.Info(ctx, "lesson video ready")
	}
	return nil
}

// fail records the classified failure on the lesson (best effort) and decides
// whether the invocation itself fails.
func (o *Orchestrator) fail(ctx context.Context, inv *invocation, err error) error {
	classified := Classify(err)
	terminal := failureState(pkgerrors.MetadataFor(classified.Code()).LessonStatus)
	if !inv.fsm.state.CanTransition(terminal) {
		// A quota signal before the host was reached is not a blocked upload.
		classified = pkgerrors.Wrap(pkgerrors.CodeUnknown, err, "failure before upload")
		terminal = StateFailed
	}
	_ = inv.fsm.advance(terminal)
	meta := pkgerrors.MetadataFor(classified.Code())

	o.metrics.IncError(string(classified.Code()))
	ctx = o.logg.WithFields(ctx, map[string]any{"error_code": string(classified.Code()), "state": string(terminal)})

	if l := inv.lesson(); l != nil {
		writeCtx, cancel := o.lessonWriteContext(ctx)
		if werr := o.store.MarkFailure(writeCtx, l.ID, classified.Code(), classified.LessonMessage()); werr != nil {
			o.metrics.IncLessonWriteFailure(string(terminal))
			o.logg.Error(o.logg.WithField(ctx, "error_dump", pkgerrors.Dump(werr)), "failed to record lesson failure", werr)
		}
		cancel()
	}

	if !meta.Propagate {
		o.logg.Warn(ctx, "video host quota reached; upload blocked")
		return nil
	}
	o.logg.Error(ctx, "lesson video ingest failed", classified)
	return classified
}

// lessonWriteContext outlives the invocation deadline so a timed-out upload
// can still be recorded.
func (o *Orchestrator) lessonWriteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), lessonWriteTimeout)
}
