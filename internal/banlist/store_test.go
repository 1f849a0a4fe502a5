// internal/banlist/store_test.go
//
// Unit-tests for banlist.Store using sqlmock.
//
// Run: go test ./internal/banlist -v

package banlist

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/intake/internal/submission"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "mysql")), mock
}

func TestQueryEmailOrPhone(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT id, email, phone, is_active FROM banned_user WHERE is_active = TRUE AND (email = ? OR phone = ?) LIMIT ?`,
	)).
		WithArgs("a@b.com", "+919876543210", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "phone", "is_active"}).
			AddRow(7, nil, "+919876543210", true))

	got, err := s.Query(context.Background(), submission.BanFilter{
		Email: "a@b.com", Phone: "+919876543210", ActiveOnly: true, Limit: 1,
	})
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	want := submission.BanRecord{ID: 7, Phone: "+919876543210", IsActive: true}
	if len(got) != 1 || got[0] != want {
		t.Fatalf("unexpected result: %#v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestQuerySingleField(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT id, email, phone, is_active FROM banned_user WHERE is_active = TRUE AND (phone = ?) LIMIT ?`,
	)).
		WithArgs("+919876543210", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "phone", "is_active"}))

	got, err := s.Query(context.Background(), submission.BanFilter{
		Phone: "+919876543210", ActiveOnly: true, Limit: 1,
	})
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no rows, got %#v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestQueryRefusesEmptyFilter(t *testing.T) {
	s, mock := newMock(t)

	_, err := s.Query(context.Background(), submission.BanFilter{ActiveOnly: true, Limit: 1})
	if !errors.Is(err, ErrEmptyFilter) {
		t.Fatalf("expected ErrEmptyFilter, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected SQL: %v", err)
	}
}

func TestQueryWrapsDriverError(t *testing.T) {
	s, mock := newMock(t)
	boom := errors.New("server has gone away")
	mock.ExpectQuery(`SELECT id, email, phone, is_active FROM banned_user`).WillReturnError(boom)

	_, err := s.Query(context.Background(), submission.BanFilter{Email: "a@b.com"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
}

func TestBan(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO banned_user (email, phone, is_active, created_at)`)).
		WithArgs("spam@x.com", nil).
		WillReturnResult(sqlmock.NewResult(12, 1))

	id, err := s.Ban(context.Background(), "spam@x.com", "")
	if err != nil {
		t.Fatalf("Ban error: %v", err)
	}
	if id != 12 {
		t.Fatalf("id = %d, want 12", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestCountActive(t *testing.T) {
	s, mock := newMock(t)
	count := regexp.QuoteMeta(`SELECT COUNT(*) FROM banned_user WHERE is_active = TRUE`)

	mock.ExpectQuery(count).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(3))
	n, err := s.CountActive(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("CountActive = %d, %v", n, err)
	}

	mock.ExpectQuery(count).WillReturnError(errors.New("table missing"))
	if _, err := s.CountActive(context.Background()); err == nil {
		t.Fatal("expected an error when the count query fails")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
