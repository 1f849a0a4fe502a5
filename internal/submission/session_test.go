package submission

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	reg      *fakeRegistry
	blobs    *fakeBlobs
	records  *fakeRecords
	previews *MemoryPreviews
	sess     *Session
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		reg:      &fakeRegistry{},
		blobs:    newFakeBlobs(),
		records:  &fakeRecords{},
		previews: NewMemoryPreviews(),
	}
	h.sess = NewSession("s-1", Deps{
		Gate:        NewBanGate(h.reg, time.Second),
		Blobs:       h.blobs,
		Records:     h.records,
		Previews:    h.previews,
		CallTimeout: time.Second,
		Now:         func() time.Time { return time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC) },
	})
	return h
}

func TestSubmitValidationFailureStopsEarly(t *testing.T) {
	h := newHarness(t)
	d := Draft{Name: "", Email: "a@b.com", Phone: "9876543210", Subject: "s", Description: "d"}
	require.NoError(t, h.sess.SetDraft(d))

	out := h.sess.Submit(context.Background())

	require.False(t, out.OK())
	assert.True(t, IsValidationError(out.Err))
	assert.Equal(t, ValidationErrors{"name": "Name is required"}, out.Errors)
	assert.Equal(t, StateValidating, out.Stage)
	assert.Empty(t, h.reg.calls())
	assert.Zero(t, h.records.count())
	assert.Equal(t, d, h.sess.Draft())
	assert.Equal(t, StateIdle, h.sess.State())
}

func TestSubmitStoresNormalizedPhone(t *testing.T) {
	h := newHarness(t)
	d := validDraft()
	d.Phone = "9876543210"
	require.NoError(t, h.sess.SetDraft(d))

	out := h.sess.Submit(context.Background())

	require.True(t, out.OK(), "err: %v", out.Err)
	require.Equal(t, 1, h.records.count())
	rec := h.records.records[0]
	assert.Equal(t, "+919876543210", rec.Phone)
	assert.False(t, rec.IsBanned)
	assert.Empty(t, rec.PhotoURLs)
	assert.Equal(t, NoticeSuccess, out.Notice.Kind)
}

func TestSubmitTwelveDigitPhoneFailsValidation(t *testing.T) {
	h := newHarness(t)
	d := validDraft()
	d.Phone = "919876543210"
	require.NoError(t, h.sess.SetDraft(d))

	// 12 digits fail the 10-digit rule, so the draft is rejected before the
	// normaliser runs; the normaliser itself still canonicalises the value.
	out := h.sess.Submit(context.Background())
	assert.Contains(t, out.Errors, "phone")
	got, ok := NormalizePhone(d.Phone)
	assert.True(t, ok)
	assert.Equal(t, "+919876543210", got)
}

func TestSubmitBlockedSkipsUploadAndInsert(t *testing.T) {
	h := newHarness(t)
	h.reg.match = func(f BanFilter) bool { return f.Email == "asha@example.com" }
	require.NoError(t, h.sess.SetDraft(validDraft()))
	require.NoError(t, h.sess.AddFiles([]File{photo("p1")}))

	out := h.sess.Submit(context.Background())

	require.ErrorIs(t, out.Err, ErrBlocked)
	assert.Equal(t, StateCheckingBan, out.Stage)
	assert.NotContains(t, strings.ToLower(out.Notice.Message), "ban")
	assert.Zero(t, h.blobs.puts)
	assert.Zero(t, h.records.count())
	assert.Equal(t, validDraft(), h.sess.Draft())
	assert.Len(t, h.sess.Attachments(), 1)
}

func TestSubmitUploadsInOrderAndClears(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sess.SetDraft(validDraft()))
	require.NoError(t, h.sess.AddFiles([]File{
		{Name: "front.JPG", ContentType: "image/jpeg", Data: jpegHeader},
		{Name: "back", ContentType: "image/png", Data: pngHeader},
	}))

	out := h.sess.Submit(context.Background())

	require.True(t, out.OK(), "err: %v", out.Err)
	require.NotNil(t, out.Record)
	require.Len(t, out.Record.PhotoURLs, 2)
	require.Len(t, h.blobs.keys, 2)
	for i, key := range h.blobs.keys {
		assert.Equal(t, "https://cdn.example.com/"+key, out.Record.PhotoURLs[i])
	}
	assert.Equal(t, jpegHeader, h.blobs.data[h.blobs.keys[0]])
	assert.True(t, strings.HasPrefix(h.blobs.keys[0], "1792402200000-"))
	assert.True(t, strings.HasSuffix(h.blobs.keys[0], ".jpg"))
	assert.True(t, strings.HasSuffix(h.blobs.keys[1], ".png"))
	assert.NotEqual(t, h.blobs.keys[0], h.blobs.keys[1])
	assert.True(t, h.blobs.deadline, "every blob call should carry a deadline")

	assert.Equal(t, Draft{}, h.sess.Draft())
	assert.Empty(t, h.sess.Attachments())
	assert.Zero(t, h.previews.Len())
	assert.Equal(t, StateIdle, h.sess.State())
}

func TestSubmitUploadFailurePreservesInput(t *testing.T) {
	h := newHarness(t)
	h.blobs.failPut = 2
	require.NoError(t, h.sess.SetDraft(validDraft()))
	require.NoError(t, h.sess.AddFiles(photos(3)))

	out := h.sess.Submit(context.Background())

	require.ErrorIs(t, out.Err, ErrUpload)
	assert.Equal(t, StateUploading, out.Stage)
	assert.Equal(t, NoticeError, out.Notice.Kind)
	assert.Zero(t, h.records.count())
	assert.Len(t, h.blobs.keys, 1, "earlier blob is left in place")
	assert.Equal(t, validDraft(), h.sess.Draft())
	assert.Len(t, h.sess.Attachments(), 3)
	assert.Equal(t, 3, h.previews.Len())
}

func TestSubmitPersistFailurePreservesInput(t *testing.T) {
	h := newHarness(t)
	h.records.err = errors.New("deadlock")
	require.NoError(t, h.sess.SetDraft(validDraft()))
	require.NoError(t, h.sess.AddFiles(photos(1)))

	out := h.sess.Submit(context.Background())

	require.ErrorIs(t, out.Err, ErrPersist)
	assert.Equal(t, StatePersisting, out.Stage)
	assert.NotContains(t, out.Notice.Message, "deadlock")
	assert.Len(t, h.blobs.keys, 1)
	assert.Equal(t, validDraft(), h.sess.Draft())
	assert.Len(t, h.sess.Attachments(), 1)

	// Manual retry succeeds once the store recovers.
	h.records.err = nil
	out = h.sess.Submit(context.Background())
	require.True(t, out.OK())
	assert.Equal(t, 1, h.records.count())
}

func TestSubmitRegistryErrorFailsOpen(t *testing.T) {
	h := newHarness(t)
	h.reg.err = errors.New("registry down")
	require.NoError(t, h.sess.SetDraft(validDraft()))

	out := h.sess.Submit(context.Background())

	assert.True(t, out.OK())
	assert.Equal(t, 1, h.records.count())
}

func TestSubmitRejectsConcurrentAttempt(t *testing.T) {
	h := newHarness(t)
	h.blobs.started = make(chan struct{})
	h.blobs.release = make(chan struct{})
	require.NoError(t, h.sess.SetDraft(validDraft()))
	require.NoError(t, h.sess.AddFiles(photos(1)))

	done := make(chan Outcome, 1)
	go func() { done <- h.sess.Submit(context.Background()) }()
	<-h.blobs.started

	assert.Equal(t, StateUploading, h.sess.State())
	second := h.sess.Submit(context.Background())
	assert.ErrorIs(t, second.Err, ErrBusy)
	assert.ErrorIs(t, h.sess.SetDraft(Draft{}), ErrBusy)
	assert.ErrorIs(t, h.sess.AddFiles(photos(1)), ErrBusy)
	assert.ErrorIs(t, h.sess.RemoveFile(0), ErrBusy)

	close(h.blobs.release)
	first := <-done
	assert.True(t, first.OK())
	assert.Equal(t, 1, h.records.count())
	assert.Equal(t, StateIdle, h.sess.State())
}

func TestCloseRevokesPreviews(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sess.AddFiles(photos(2)))
	require.Equal(t, 2, h.previews.Len())

	h.sess.Close()

	assert.Zero(t, h.previews.Len())
}

func TestClosedSessionRefusesWork(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sess.SetDraft(validDraft()))
	require.NoError(t, h.sess.AddFiles(photos(1)))
	h.sess.Close()

	assert.ErrorIs(t, h.sess.AddFiles(photos(1)), ErrClosed)
	assert.ErrorIs(t, h.sess.SetDraft(Draft{}), ErrClosed)
	assert.ErrorIs(t, h.sess.RemoveFile(0), ErrClosed)
	out := h.sess.Submit(context.Background())
	assert.ErrorIs(t, out.Err, ErrClosed)
	assert.Equal(t, NoticeError, out.Notice.Kind)

	assert.Zero(t, h.previews.Len(), "no preview acquired after close")
	assert.Empty(t, h.reg.calls())
	assert.Zero(t, h.records.count())
}

func TestSubmitKeyExtensionFollowsContentType(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sess.SetDraft(validDraft()))
	require.NoError(t, h.sess.AddFiles([]File{{Name: "evil.html", ContentType: "image/png", Data: pngHeader}}))

	out := h.sess.Submit(context.Background())

	require.True(t, out.OK(), "err: %v", out.Err)
	require.Len(t, h.blobs.keys, 1)
	assert.True(t, strings.HasSuffix(h.blobs.keys[0], ".png"), h.blobs.keys[0])
}

func TestNoticeForBlockedIsNonSpecific(t *testing.T) {
	n := NoticeFor(ErrBlocked)
	assert.Equal(t, NoticeError, n.Kind)
	assert.NotEqual(t, NoticeFor(ErrUpload).Message, n.Message)
	assert.Equal(t, NoticeFor(ErrUpload), NoticeFor(ErrPersist))
}
