package submission

import "errors"

// Sentinel errors.  Callers match with errors.Is; messages shown to users
// come from NoticeFor, never from err.Error().
var (
	ErrBusy     = errors.New("submission already in progress")
	ErrCapacity = errors.New("too many photos")
	ErrFileType = errors.New("unsupported photo type")
	ErrFileSize = errors.New("photo too large")
	ErrIndex    = errors.New("attachment index out of range")
	ErrBlocked  = errors.New("submission blocked")
	ErrUpload   = errors.New("photo upload failed")
	ErrPersist  = errors.New("record insert failed")
	ErrClosed   = errors.New("session closed")
)

// NoticeKind classifies a user notification.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is the single transient message shown after an action.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

const (
	msgSuccess  = "Your request has been submitted successfully."
	msgInvalid  = "Please fix the highlighted fields and try again."
	msgBlocked  = "We are unable to accept your submission at this time."
	msgFailure  = "Something went wrong while submitting.  Please try again."
	msgBusy     = "Your submission is already being processed."
	msgCapacity = "You can upload a maximum of 6 photos."
	msgFileType = "Only JPEG, PNG, and WEBP images are allowed."
	msgFileSize = "Each photo must be 5 MB or smaller."
	msgIndex    = "That photo is no longer attached."
	msgClosed   = "This form has expired.  Please reload the page and start again."
)

// NoticeFor maps a pipeline or staging error to its user-facing notice.
// The blocked message does not mention a ban.  Unknown
// errors map to the generic failure message.
func NoticeFor(err error) Notice {
	switch {
	case err == nil:
		return Notice{Kind: NoticeSuccess, Message: msgSuccess}
	case IsValidationError(err):
		return Notice{Kind: NoticeError, Message: msgInvalid}
	case errors.Is(err, ErrBlocked):
		return Notice{Kind: NoticeError, Message: msgBlocked}
	case errors.Is(err, ErrBusy):
		return Notice{Kind: NoticeError, Message: msgBusy}
	case errors.Is(err, ErrCapacity):
		return Notice{Kind: NoticeError, Message: msgCapacity}
	case errors.Is(err, ErrFileType):
		return Notice{Kind: NoticeError, Message: msgFileType}
	case errors.Is(err, ErrFileSize):
		return Notice{Kind: NoticeError, Message: msgFileSize}
	case errors.Is(err, ErrIndex):
		return Notice{Kind: NoticeError, Message: msgIndex}
	case errors.Is(err, ErrClosed):
		return Notice{Kind: NoticeError, Message: msgClosed}
	default:
		return Notice{Kind: NoticeError, Message: msgFailure}
	}
}
