// internal/submission/session.go
//
// Intake – submission pipeline: session state and Submit orchestration.
//
// Context
//   A Session is one form instance: the Draft, its staged Attachments, and
//   the pipeline State.  Submit is the only code that moves State, and it
//   runs the gates in a fixed order:
//
//      Idle → Validating → CheckingBan → Uploading → Persisting → Succeeded
//
//   Every failure returns the session to Idle with the Draft and
//   attachments untouched.  Success clears both and returns to Idle.
//
// Concurrency
//   The mutex guards fields, not the whole pipeline.  Submit flips Idle to
//   Validating under the lock and then releases it for the network calls, so
//   a second Submit (or any edit) in that window is rejected with ErrBusy
//   rather than queued.
//
// Known gap
//   Blobs uploaded before a later upload or the insert fails are not
//   deleted.  Orphans are logged with their keys.
//
//------------------------------------------------------------------------------

package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yanizio/intake/internal/logger"
	"github.com/yanizio/intake/internal/metrics"
)

// -----------------------------------------------------------------------------
// Collaborators
// -----------------------------------------------------------------------------

// BlobStore stores photo bytes and resolves their public URLs.
type BlobStore interface {
	Put(ctx context.Context, key string, f File) error
	PublicURL(ctx context.Context, key string) (string, error)
}

// RecordStore persists a completed submission.  Insert may set r.ID.
type RecordStore interface {
	Insert(ctx context.Context, r *Record) error
}

// Deps bundles the collaborators a Session calls during Submit.
type Deps struct {
	Gate     BanChecker
	Blobs    BlobStore
	Records  RecordStore
	Previews PreviewRegistry

	// CallTimeout bounds each blob put, URL lookup, and record insert.
	// The ban gate carries its own timeout.  Zero means no deadline.
	CallTimeout time.Duration

	// Now is the clock used for blob keys and CreatedAt.  Nil means time.Now.
	Now func() time.Time
}

// -----------------------------------------------------------------------------
// State
// -----------------------------------------------------------------------------

// State is the pipeline position of a Session.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateCheckingBan
	StateUploading
	StatePersisting
	StateSucceeded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateCheckingBan:
		return "checking_ban"
	case StateUploading:
		return "uploading"
	case StatePersisting:
		return "persisting"
	case StateSucceeded:
		return "succeeded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome reports how one Submit call ended.  Stage is the last state the
// pipeline entered; Err is nil on success and otherwise a sentinel from this
// package (or ValidationErrors).
type Outcome struct {
	Stage  State            `json:"-"`
	Err    error            `json:"-"`
	Notice Notice           `json:"notice"`
	Errors ValidationErrors `json:"errors,omitempty"`
	Record *Record          `json:"record,omitempty"`
}

// OK reports whether the submission was persisted.
func (o Outcome) OK() bool { return o.Err == nil }

// -----------------------------------------------------------------------------
// Session
// -----------------------------------------------------------------------------

// Session holds one form instance.  Safe for concurrent use.
type Session struct {
	id   string
	deps Deps

	mu          sync.Mutex
	state       State
	closed      bool
	draft       Draft
	attachments *Attachments
}

// NewSession returns an Idle session with an empty draft.
func NewSession(id string, deps Deps) *Session {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Session{
		id:          id,
		deps:        deps,
		attachments: NewAttachments(deps.Previews),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current pipeline state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Draft returns a copy of the current draft.
func (s *Session) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SetDraft replaces the draft.  Edits are refused while a submit runs.
func (s *Session) SetDraft(d Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return err
	}
	s.draft = d
	return nil
}

// Attachments returns the staged attachments in selection order.
func (s *Session) Attachments() []Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attachments.Items()
}

// AddFiles stages a batch of photos (all-or-nothing).
func (s *Session) AddFiles(files []File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return err
	}
	err := s.attachments.Add(files)
	if err != nil {
		metrics.AttachmentRejections.WithLabelValues(rejectionReason(err)).Inc()
	}
	return err
}

// RemoveFile unstages the photo at index i.
func (s *Session) RemoveFile(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return err
	}
	return s.attachments.Remove(i)
}

// Close ends the session and revokes every preview handle.  Later edits
// and submits fail with ErrClosed.  A submit in flight keeps its own
// snapshot and is unaffected.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.attachments.Clear()
}

// editable is called with mu held.
func (s *Session) editable() error {
	switch {
	case s.closed:
		return ErrClosed
	case s.state != StateIdle:
		return ErrBusy
	}
	return nil
}

// -----------------------------------------------------------------------------
// Submit
// -----------------------------------------------------------------------------

// Submit runs the pipeline once.  It never panics on collaborator failure
// and never returns a raw collaborator error; causes are logged instead.
func (s *Session) Submit(ctx context.Context) Outcome {
	start := time.Now()
	log := logger.FromContext(ctx).With("session", s.id)
	ctx = logger.WithContext(ctx, log)

	// Guard: Idle → Validating, with a snapshot of the inputs.
	s.mu.Lock()
	if err := s.editable(); err != nil {
		s.mu.Unlock()
		if errors.Is(err, ErrBusy) {
			metrics.Submissions.WithLabelValues("busy").Inc()
		}
		return Outcome{Stage: StateIdle, Err: err, Notice: NoticeFor(err)}
	}
	s.state = StateValidating
	draft := s.draft
	staged := s.attachments.Items()
	s.mu.Unlock()

	out := s.run(ctx, draft, staged, log)
	metrics.SubmitDuration.Observe(time.Since(start).Seconds())

	s.mu.Lock()
	if out.OK() {
		s.draft = Draft{}
		s.attachments.Clear()
	}
	s.state = StateIdle
	s.mu.Unlock()

	return out
}

func (s *Session) run(ctx context.Context, draft Draft, staged []Attachment, log *zap.SugaredLogger) Outcome {
	// 1. Validating
	if verrs := Validate(draft, len(staged)); len(verrs) > 0 {
		metrics.Submissions.WithLabelValues("invalid").Inc()
		return Outcome{Stage: StateValidating, Err: verrs, Notice: NoticeFor(verrs), Errors: verrs}
	}

	// 2. CheckingBan
	s.setState(StateCheckingBan)
	if s.deps.Gate != nil && s.deps.Gate.IsBanned(ctx, draft.Email, draft.Phone) {
		metrics.Submissions.WithLabelValues("blocked").Inc()
		log.Infow("submission blocked")
		return Outcome{Stage: StateCheckingBan, Err: ErrBlocked, Notice: NoticeFor(ErrBlocked)}
	}

	// 3. Uploading, sequentially so URLs keep attachment order.
	s.setState(StateUploading)
	urls := make([]string, 0, len(staged))
	keys := make([]string, 0, len(staged))
	for i, at := range staged {
		key := s.blobKey(at.File)
		url, err := s.upload(ctx, key, at.File)
		if err != nil {
			metrics.Uploads.WithLabelValues("error").Inc()
			metrics.Submissions.WithLabelValues("upload_failed").Inc()
			log.Errorw("photo upload failed",
				"index", i, "key", key, "orphaned_keys", keys, "error", err)
			return Outcome{Stage: StateUploading, Err: ErrUpload, Notice: NoticeFor(ErrUpload)}
		}
		metrics.Uploads.WithLabelValues("ok").Inc()
		keys = append(keys, key)
		urls = append(urls, url)
	}

	// 4. Persisting
	s.setState(StatePersisting)
	rec := newRecord(draft, urls, s.deps.Now())
	ictx, cancel := withTimeout(ctx, s.deps.CallTimeout)
	err := s.deps.Records.Insert(ictx, rec)
	cancel()
	if err != nil {
		metrics.Submissions.WithLabelValues("persist_failed").Inc()
		log.Errorw("record insert failed", "orphaned_keys", keys, "error", err)
		return Outcome{Stage: StatePersisting, Err: ErrPersist, Notice: NoticeFor(ErrPersist)}
	}

	// 5. Succeeded
	s.setState(StateSucceeded)
	metrics.Submissions.WithLabelValues("success").Inc()
	log.Infow("submission stored", "record", rec.ID, "photos", len(urls))
	return Outcome{Stage: StateSucceeded, Notice: NoticeFor(nil), Record: rec}
}

// upload stores one blob and resolves its URL, each under CallTimeout.
func (s *Session) upload(ctx context.Context, key string, f File) (string, error) {
	pctx, cancel := withTimeout(ctx, s.deps.CallTimeout)
	err := s.deps.Blobs.Put(pctx, key, f)
	cancel()
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}

	uctx, cancel := withTimeout(ctx, s.deps.CallTimeout)
	defer cancel()
	url, err := s.deps.Blobs.PublicURL(uctx, key)
	if err != nil {
		return "", fmt.Errorf("public url %s: %w", key, err)
	}
	return url, nil
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// blobKey builds "<unixMillis>-<random>.<ext>".  The extension follows the
// staged content type, never an arbitrary client file name.
func (s *Session) blobKey(f File) string {
	ext := extensionFor(f.Name, f.ContentType)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%d-%s%s", s.deps.Now().UnixMilli(), suffix, ext)
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrCapacity):
		return "capacity"
	case errors.Is(err, ErrFileType):
		return "type"
	case errors.Is(err, ErrFileSize):
		return "size"
	default:
		return "other"
	}
}
