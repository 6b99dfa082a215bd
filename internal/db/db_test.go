package db

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hpungsan/recall/internal/db/dbtest"
	"github.com/hpungsan/recall/internal/errors"
)

func TestOpen(t *testing.T) {
	f := dbtest.New(t)

	db, err := Open(context.Background(), f.DBPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM WindowCapture").Scan(&n); err != nil {
		t.Fatalf("query error = %v", err)
	}
	if n != 0 {
		t.Errorf("count = %d, want 0", n)
	}
}

func TestOpen_ReadOnly(t *testing.T) {
	f := dbtest.New(t)

	db, err := Open(context.Background(), f.DBPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if _, err := db.Exec("INSERT INTO WindowCapture (Id, Name) VALUES (1, 'x')"); err == nil {
		t.Fatal("insert through read-only handle succeeded")
	}
}

func TestOpen_MissingPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.db")

	_, err := Open(context.Background(), path)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("Open() error = %v, want NOT_FOUND", err)
	}
	// Must not create the file.
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Errorf("Open() created %s", path)
	}
}

func TestOpen_Directory(t *testing.T) {
	_, err := Open(context.Background(), t.TempDir())
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("Open() error = %v, want NOT_FOUND", err)
	}
}

func TestOpen_NotADatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.db")
	if err := os.WriteFile(path, []byte(strings.Repeat("this is not sqlite\n", 64)), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	_, err := Open(context.Background(), path)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("Open() error = %v, want NOT_FOUND", err)
	}
}

func TestReadOnlyDSN(t *testing.T) {
	dsn := readOnlyDSN("/evidence/case #1/ukg.db")
	if !strings.HasPrefix(dsn, "file:") {
		t.Errorf("dsn = %q, want file: URI", dsn)
	}
	if !strings.Contains(dsn, "%231") {
		t.Errorf("dsn = %q, want escaped '#'", dsn)
	}
	if !strings.HasSuffix(dsn, "?mode=ro&_pragma=query_only(1)") {
		t.Errorf("dsn = %q, want read-only params", dsn)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		msg    string
		code   errors.ErrorCode
		object string
	}{
		{"SQL logic error: no such table: IdTable (1)", errors.ErrSchema, "IdTable"},
		{"SQL logic error: no such column: text.c2 (1)", errors.ErrSchema, "text.c2"},
		{"file is not a database (26)", errors.ErrNotFound, ""},
		{"disk I/O error", errors.ErrInternal, ""},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := classify("/x.db", &driverErr{tt.msg})
			rErr := errors.As(err)
			if rErr.Code != tt.code {
				t.Fatalf("code = %s, want %s", rErr.Code, tt.code)
			}
			if tt.object != "" && rErr.Details["object"] != tt.object {
				t.Errorf("object = %v, want %s", rErr.Details["object"], tt.object)
			}
		})
	}
}

type driverErr struct{ msg string }

func (e *driverErr) Error() string { return e.msg }
