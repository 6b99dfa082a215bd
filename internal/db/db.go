package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hpungsan/recall/internal/errors"
	_ "modernc.org/sqlite"
)

// Open opens the capture database at path read-only.
//
// The file is never created or written: the DSN carries mode=ro and the
// query_only pragma, and the pool is capped at one connection since every
// Repository call is a single short-lived reader. A path that does not
// exist, is a directory, or is not an SQLite container yields NOT_FOUND.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.NewNotFound(path, err)
	}
	if info.IsDir() {
		return nil, errors.NewNotFound(path, fmt.Errorf("is a directory"))
	}

	db, err := sql.Open("sqlite", readOnlyDSN(path))
	if err != nil {
		return nil, errors.NewNotFound(path, err)
	}
	db.SetMaxOpenConns(1)

	// sql.Open is lazy; touch the header so a non-database file fails here
	// instead of on the first real query.
	var n int
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&n); err != nil {
		db.Close()
		return nil, classify(path, err)
	}

	return db, nil
}

// readOnlyDSN builds a file: URI so paths with '?' or '#' survive intact.
func readOnlyDSN(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String() + "?mode=ro&_pragma=query_only(1)"
}

var missingObjectRE = regexp.MustCompile(`no such (?:table|column): ([\w.]+)`)

// classify converts a driver error into a RecallError. SQLite reports
// schema problems only as message text, so this matches on it the same
// way constraint violations are detected.
func classify(path string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case isSchemaError(msg):
		object := "unknown"
		if m := missingObjectRE.FindStringSubmatch(msg); m != nil {
			object = m[1]
		}
		return errors.NewSchema(object, err)
	case strings.Contains(msg, "file is not a database"),
		strings.Contains(msg, "unable to open database"),
		strings.Contains(msg, "database disk image is malformed"):
		return errors.NewNotFound(path, err)
	default:
		return errors.NewInternal(err)
	}
}

func isSchemaError(msg string) bool {
	return strings.Contains(msg, "no such table") || strings.Contains(msg, "no such column")
}
