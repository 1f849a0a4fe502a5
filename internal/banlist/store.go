// internal/banlist/store.go
//
// Block-list lookups for the submission ban gate.
//
// Context
// -------
// The block list lives in the intake database:
//
//	banned_user (id PK, email NULL, phone NULL, is_active, created_at)
//
// Phones are stored in canonical "+91…" form so they compare equal to the
// output of submission.NormalizePhone.  The gate only needs an existence
// answer, so callers pass Limit 1 and the query exits on the first hit.
//
// Notes
// -----
// • An empty filter is refused rather than scanning the table.
// • Oxford commas, two spaces after periods.
package banlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/intake/internal/submission"
)

// ErrEmptyFilter is returned when neither email nor phone is set.
var ErrEmptyFilter = errors.New("banlist: filter needs email or phone")

// Store implements submission.BanRegistry on MySQL.
type Store struct {
	db *sqlx.DB
}

var _ submission.BanRegistry = (*Store)(nil)

// New wraps db.
func New(db *sqlx.DB) *Store { return &Store{db: db} }

type row struct {
	ID       int64          `db:"id"`
	Email    sql.NullString `db:"email"`
	Phone    sql.NullString `db:"phone"`
	IsActive bool           `db:"is_active"`
}

// Query returns ban records matching f.  With both Email and Phone set a
// record matches on either.
func (s *Store) Query(ctx context.Context, f submission.BanFilter) ([]submission.BanRecord, error) {
	q, args, err := buildQuery(f)
	if err != nil {
		return nil, err
	}

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("query banned_user: %w", err)
	}

	out := make([]submission.BanRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, submission.BanRecord{
			ID:       r.ID,
			Email:    r.Email.String,
			Phone:    r.Phone.String,
			IsActive: r.IsActive,
		})
	}
	return out, nil
}

// buildQuery renders the WHERE clause for f.  Kept separate so tests can
// assert the exact SQL.
func buildQuery(f submission.BanFilter) (string, []any, error) {
	var (
		match []string
		args  []any
	)
	if f.Email != "" {
		match = append(match, "email = ?")
		args = append(args, f.Email)
	}
	if f.Phone != "" {
		match = append(match, "phone = ?")
		args = append(args, f.Phone)
	}
	if len(match) == 0 {
		return "", nil, ErrEmptyFilter
	}

	where := "(" + strings.Join(match, " OR ") + ")"
	if f.ActiveOnly {
		where = "is_active = TRUE AND " + where
	}

	q := `SELECT id, email, phone, is_active FROM banned_user WHERE ` + where
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	return q, args, nil
}

// Ban inserts an active block-list entry.  Either identifier may be empty.
// The phone must already be canonical.
func (s *Store) Ban(ctx context.Context, email, phone string) (int64, error) {
	if email == "" && phone == "" {
		return 0, ErrEmptyFilter
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO banned_user (email, phone, is_active, created_at) VALUES (?, ?, TRUE, UTC_TIMESTAMP())`,
		nullable(email), nullable(phone))
	if err != nil {
		return 0, fmt.Errorf("insert banned_user: %w", err)
	}
	return res.LastInsertId()
}

// CountActive returns the number of active block-list entries.
func (s *Store) CountActive(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM banned_user WHERE is_active = TRUE`); err != nil {
		return 0, fmt.Errorf("count banned_user: %w", err)
	}
	return n, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
