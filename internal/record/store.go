// internal/record/store.go
//
// Persistence for completed submissions.
//
// Context
//   One row per successful Submit:
//
//      submission (id PK, name, email, phone, subject, description,
//                  photo_urls JSON, is_banned, created_at)
//
//   photo_urls keeps upload order.  is_banned is always false on insert;
//   operators flip it later when a submitter is added to the block list.
//
//------------------------------------------------------------------------------

package record

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/intake/internal/submission"
)

// Store implements submission.RecordStore on MySQL.
type Store struct {
	db *sqlx.DB
}

var _ submission.RecordStore = (*Store)(nil)

// New wraps db.
func New(db *sqlx.DB) *Store { return &Store{db: db} }

type row struct {
	ID          int64     `db:"id"`
	Name        string    `db:"name"`
	Email       string    `db:"email"`
	Phone       string    `db:"phone"`
	Subject     string    `db:"subject"`
	Description string    `db:"description"`
	PhotoURLs   []byte    `db:"photo_urls"`
	IsBanned    bool      `db:"is_banned"`
	CreatedAt   time.Time `db:"created_at"`
}

const insertSQL = `
INSERT INTO submission
       (name, email, phone, subject, description, photo_urls, is_banned, created_at)
VALUES (:name, :email, :phone, :subject, :description, :photo_urls, :is_banned, :created_at)`

// Insert writes r and sets r.ID from the generated key.
func (s *Store) Insert(ctx context.Context, r *submission.Record) error {
	urls := r.PhotoURLs
	if urls == nil {
		urls = []string{}
	}
	js, err := json.Marshal(urls)
	if err != nil {
		return fmt.Errorf("encode photo_urls: %w", err)
	}

	res, err := s.db.NamedExecContext(ctx, insertSQL, row{
		Name:        r.Name,
		Email:       r.Email,
		Phone:       r.Phone,
		Subject:     r.Subject,
		Description: r.Description,
		PhotoURLs:   js,
		IsBanned:    r.IsBanned,
		CreatedAt:   r.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("submission id: %w", err)
	}
	r.ID = id
	return nil
}

// Get loads one submission by id.  Returns sql.ErrNoRows (wrapped) when
// the id is unknown.
func (s *Store) Get(ctx context.Context, id int64) (*submission.Record, error) {
	var rw row
	err := s.db.GetContext(ctx, &rw, `
SELECT id, name, email, phone, subject, description, photo_urls, is_banned, created_at
  FROM submission
 WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get submission %d: %w", id, err)
	}

	var urls []string
	if len(rw.PhotoURLs) > 0 {
		if err := json.Unmarshal(rw.PhotoURLs, &urls); err != nil {
			return nil, fmt.Errorf("decode photo_urls: %w", err)
		}
	}
	return &submission.Record{
		ID:          rw.ID,
		Name:        rw.Name,
		Email:       rw.Email,
		Phone:       rw.Phone,
		Subject:     rw.Subject,
		Description: rw.Description,
		PhotoURLs:   urls,
		IsBanned:    rw.IsBanned,
		CreatedAt:   rw.CreatedAt,
	}, nil
}
