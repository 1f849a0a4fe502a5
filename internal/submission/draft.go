// internal/submission/draft.go
//
// Intake – submission pipeline: data model.
//
// Context
//   A Draft is the mutable form state owned by one Session.  It is reset to
//   the zero value after a successful submit and left untouched on any
//   failure so the user can retry.  A Record is the persisted shape, built
//   exactly once per successful submit and handed to a RecordStore.
//
//------------------------------------------------------------------------------

package submission

import (
	"strings"
	"time"
)

// Draft holds the raw, user-entered contact details.
type Draft struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

// Identity is the pair of identifiers screened against the ban registry.
// An empty string means the identifier is absent.
type Identity struct {
	Email string
	Phone string // canonical form only
}

// IdentityOf derives the screening identity from d.  The phone is dropped
// when it has no canonical form.
func IdentityOf(d Draft) Identity {
	id := Identity{Email: strings.TrimSpace(d.Email)}
	if p, ok := NormalizePhone(d.Phone); ok {
		id.Phone = p
	}
	return id
}

// Record is the persisted submission.  IsBanned is always false on the
// success path because a banned submitter never reaches persistence.
type Record struct {
	ID          int64     `json:"id,omitempty"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	PhotoURLs   []string  `json:"photo_urls"`
	IsBanned    bool      `json:"is_banned"`
	CreatedAt   time.Time `json:"created_at"`
}

// newRecord builds the persisted shape from a validated draft.  Text fields
// are trimmed and the phone is canonicalised with the same normaliser the
// ban gate uses.
func newRecord(d Draft, photoURLs []string, now time.Time) *Record {
	phone, _ := NormalizePhone(d.Phone)
	urls := make([]string, len(photoURLs))
	copy(urls, photoURLs)
	return &Record{
		Name:        strings.TrimSpace(d.Name),
		Email:       strings.TrimSpace(d.Email),
		Phone:       phone,
		Subject:     strings.TrimSpace(d.Subject),
		Description: strings.TrimSpace(d.Description),
		PhotoURLs:   urls,
		IsBanned:    false,
		CreatedAt:   now.UTC(),
	}
}
