package db

import (
	"context"
	"testing"
	"time"

	"snipbin/pkg/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

func newMockStore(t *testing.T) (*SQLite, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return New(conn, time.Second), mock
}

func plainPaste(id string) *domain.Paste {
	return &domain.Paste{ID: id, Title: "t", Text: "x", Syntax: domain.DefaultSyntax, CreatedAt: baseTime}
}

var (
	pkViolation = sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}
	fkViolation = sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}
)

func TestCreatePasteMapsPrimaryKeyViolation(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO pastes").WillReturnError(pkViolation)
	mock.ExpectRollback()

	err := s.CreatePaste(context.Background(), plainPaste("coll0000"))
	if !errors.Is(err, ErrIDCollision) {
		t.Fatalf("expected ErrIDCollision, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCreatePastePropagatesOtherConstraintErrors(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO pastes").WillReturnError(fkViolation)
	mock.ExpectRollback()

	err := s.CreatePaste(context.Background(), plainPaste("fk000000"))
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrIDCollision) {
		t.Fatal("foreign key violation must not be treated as an id collision")
	}
	var se sqlite3.Error
	if !errors.As(err, &se) || se.ExtendedCode != sqlite3.ErrConstraintForeignKey {
		t.Errorf("driver error lost in wrapping: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCreatePasteRollsBackOnLinkFailure(t *testing.T) {
	s, mock := newMockStore(t)
	p := plainPaste("link0000")
	p.Tags = domain.NormalizeTags([]string{"go"})

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO pastes").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO tags").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT id, normalized FROM tags").
		WithArgs("go").
		WillReturnRows(sqlmock.NewRows([]string{"id", "normalized"}).AddRow(7, "go"))
	mock.ExpectExec("INSERT INTO paste_tags").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	if err := s.CreatePaste(context.Background(), p); err == nil {
		t.Fatal("expected link failure to surface")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGetPastePropagatesDriverError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("FROM pastes p WHERE p.id").WillReturnError(errors.New("disk I/O error"))

	got, err := s.GetPaste(context.Background(), "any00000", baseTime)
	if err == nil {
		t.Fatal("expected error")
	}
	if got != nil {
		t.Errorf("expected nil paste on error, got %+v", got)
	}
}

func TestCircuitOpensAfterRepeatedFailures(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	for i := 0; i < maxFailures; i++ {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO pastes").WillReturnError(errors.New("disk I/O error"))
		mock.ExpectRollback()
	}
	for i := 0; i < maxFailures; i++ {
		if err := s.CreatePaste(ctx, plainPaste("fail0000")); err == nil {
			t.Fatalf("attempt %d: expected error", i)
		}
	}
	if err := s.CreatePaste(ctx, plainPaste("fail0000")); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCollisionsDoNotTripCircuit(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	for i := 0; i < maxFailures+1; i++ {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO pastes").WillReturnError(pkViolation)
		mock.ExpectRollback()
	}
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO pastes").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	for i := 0; i < maxFailures+1; i++ {
		if err := s.CreatePaste(ctx, plainPaste("coll0000")); !errors.Is(err, ErrIDCollision) {
			t.Fatalf("attempt %d: expected ErrIDCollision, got %v", i, err)
		}
	}
	if err := s.CreatePaste(ctx, plainPaste("free0000")); err != nil {
		t.Fatalf("store should still accept writes: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
