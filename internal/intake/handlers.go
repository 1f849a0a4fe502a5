// internal/intake/handlers.go
//
// HTTP surface for intake sessions.
//
// Context
//   A browser opens a session, edits the draft, stages photos, and submits.
//   Every route below /sessions/{id} resolves the session first; mutating
//   routes also require the X-CSRF-Token issued at creation.
//
//      POST   /sessions                        create → {id, csrf_token}
//      GET    /sessions/{id}                   current view
//      PUT    /sessions/{id}/draft             replace the draft
//      POST   /sessions/{id}/photos            multipart photos[] (or photos)
//      DELETE /sessions/{id}/photos/{index}    unstage one photo
//      GET    /sessions/{id}/previews/{handle} staged photo bytes
//      POST   /sessions/{id}/submit            run the pipeline
//      DELETE /sessions/{id}                   end the session
//
// Status mapping for submit
//   200 success, 422 validation, 403 blocked, 409 busy, 410 session ended
//   underneath the request, 502 upload or persist failure.  The body always carries the user-facing notice.
//
//------------------------------------------------------------------------------

package intake

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/intake/internal/csrf"
	"github.com/yanizio/intake/internal/logger"
	"github.com/yanizio/intake/internal/submission"
)

// CSRFHeader carries the token issued by POST /sessions.
const CSRFHeader = "X-CSRF-Token"

// photoFields are the multipart field names accepted for photo parts.
var photoFields = []string{"photos[]", "photos"}

// maxUploadBody bounds one multipart request: a full batch plus headers.
const maxUploadBody = submission.MaxPhotos*submission.MaxPhotoBytes + 1<<20

// PreviewSource resolves preview handles to staged bytes.
type PreviewSource interface {
	Lookup(h submission.PreviewHandle) (submission.File, bool)
}

// Handler serves the session API.
type Handler struct {
	cache    *Cache
	signer   *csrf.Signer
	previews PreviewSource
}

// NewHandler wires the API to a session cache.
func NewHandler(cache *Cache, signer *csrf.Signer, previews PreviewSource) *Handler {
	return &Handler{cache: cache, signer: signer, previews: previews}
}

// Routes returns the router to mount at /sessions.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Use(h.loadSession)
		r.Get("/", h.show)
		r.Get("/previews/{handle}", h.preview)

		r.Group(func(r chi.Router) {
			r.Use(h.requireCSRF)
			r.Put("/draft", h.putDraft)
			r.Post("/photos", h.addPhotos)
			r.Delete("/photos/{index}", h.removePhoto)
			r.Post("/submit", h.submit)
			r.Delete("/", h.end)
		})
	})
	return r
}

/*────────────────────────────── views ──────────────────────────────*/

type photoView struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Preview     string `json:"preview"`
}

type sessionView struct {
	ID     string           `json:"id"`
	State  string           `json:"state"`
	Draft  submission.Draft `json:"draft"`
	Photos []photoView      `json:"photos"`
}

func viewOf(s *submission.Session) sessionView {
	items := s.Attachments()
	photos := make([]photoView, len(items))
	for i, a := range items {
		photos[i] = photoView{
			Index:       i,
			Name:        a.File.Name,
			ContentType: a.File.ContentType,
			Size:        a.File.Size(),
			Preview:     string(a.Preview),
		}
	}
	return sessionView{ID: s.ID(), State: s.State().String(), Draft: s.Draft(), Photos: photos}
}

type errorBody struct {
	Notice submission.Notice `json:"notice"`
}

/*────────────────────────────── middleware ─────────────────────────*/

type ctxKey struct{}

func (h *Handler) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.cache.Get(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKey{}, sess)
		ctx = logger.WithContext(ctx, logger.FromContext(ctx).With("session", sess.ID()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		if !h.signer.Verify(r.Header.Get(CSRFHeader), sess.ID()) {
			logger.FromContext(r.Context()).Warnw("csrf check failed", "path", r.URL.Path)
			http.Error(w, "invalid csrf token", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sessionFrom(r *http.Request) *submission.Session {
	return r.Context().Value(ctxKey{}).(*submission.Session)
}

/*────────────────────────────── handlers ───────────────────────────*/

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	sess := h.cache.Create()
	tok, err := h.signer.Generate(sess.ID())
	if err != nil {
		_ = h.cache.End(sess.ID())
		logger.FromContext(r.Context()).Errorw("csrf token", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		ID        string `json:"id"`
		CSRFToken string `json:"csrf_token"`
	}{sess.ID(), tok})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewOf(sessionFrom(r)))
}

func (h *Handler) putDraft(w http.ResponseWriter, r *http.Request) {
	var d submission.Draft
	dec := json.NewDecoder(io.LimitReader(r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		http.Error(w, "malformed draft", http.StatusBadRequest)
		return
	}
	sess := sessionFrom(r)
	if err := sess.SetDraft(d); err != nil {
		writeNotice(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (h *Handler) addPhotos(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeNotice(w, http.StatusRequestEntityTooLarge, submission.ErrFileSize)
			return
		}
		http.Error(w, "malformed upload", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	var headers []*multipart.FileHeader
	for _, field := range photoFields {
		headers = append(headers, r.MultipartForm.File[field]...)
	}
	if len(headers) == 0 {
		http.Error(w, "no photos in upload", http.StatusBadRequest)
		return
	}
	files := make([]submission.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			http.Error(w, "malformed upload", http.StatusBadRequest)
			return
		}
		// One byte past the limit is enough for Attachments to reject it.
		data, err := io.ReadAll(io.LimitReader(f, submission.MaxPhotoBytes+1))
		f.Close()
		if err != nil {
			http.Error(w, "malformed upload", http.StatusBadRequest)
			return
		}
		ct := fh.Header.Get("Content-Type")
		if ct == "application/octet-stream" {
			ct = "" // let Attachments sniff
		}
		files = append(files, submission.File{Name: fh.Filename, ContentType: ct, Data: data})
	}

	sess := sessionFrom(r)
	if err := sess.AddFiles(files); err != nil {
		logger.FromContext(r.Context()).Infow("photo batch rejected", "err", err, "count", len(files))
		writeNotice(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (h *Handler) removePhoto(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeNotice(w, http.StatusNotFound, submission.ErrIndex)
		return
	}
	sess := sessionFrom(r)
	if err := sess.RemoveFile(i); err != nil {
		writeNotice(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	handle := submission.PreviewHandle(chi.URLParam(r, "handle"))
	owned := false
	for _, a := range sessionFrom(r).Attachments() {
		if a.Preview == handle {
			owned = true
			break
		}
	}
	f, ok := h.previews.Lookup(handle)
	if !owned || !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(f.Size(), 10))
	_, _ = w.Write(f.Data)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	out := sessionFrom(r).Submit(r.Context())
	writeJSON(w, statusFor(out.Err), out)
}

func (h *Handler) end(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.End(sessionFrom(r).ID()); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

/*────────────────────────────── helpers ────────────────────────────*/

// statusFor maps pipeline and staging errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case submission.IsValidationError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, submission.ErrBlocked):
		return http.StatusForbidden
	case errors.Is(err, submission.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, submission.ErrCapacity),
		errors.Is(err, submission.ErrFileType),
		errors.Is(err, submission.ErrFileSize):
		return http.StatusUnprocessableEntity
	case errors.Is(err, submission.ErrIndex):
		return http.StatusNotFound
	case errors.Is(err, submission.ErrClosed):
		return http.StatusGone
	default:
		return http.StatusBadGateway
	}
}

func writeNotice(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Notice: submission.NoticeFor(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
