package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/hpungsan/recall/internal/capture"
	"github.com/hpungsan/recall/internal/errors"
)

// Repository runs the capture queries against one database file. It holds
// no connection: every method opens, queries and closes.
type Repository struct {
	path string
}

// NewRepository returns a Repository for the database at path.
func NewRepository(path string) *Repository {
	return &Repository{path: path}
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// Stats summarises the capture table.
type Stats struct {
	Captures       int64  `json:"captures"`
	WithImages     int64  `json:"with_images"`
	Apps           int64  `json:"apps"`
	FirstTimestamp *int64 `json:"first_timestamp,omitempty"`
	LastTimestamp  *int64 `json:"last_timestamp,omitempty"`
}

const loadAllQuery = `
	SELECT
		wc.Id, wc.Name, wc.ImageToken, wc.WindowTitle,
		app.Name, wc.TimeStamp, file.Path, web.Uri
	FROM WindowCapture wc
	LEFT JOIN WindowCaptureAppRelation war ON wc.Id = war.WindowCaptureId
	LEFT JOIN App app ON war.AppId = app.Id
	LEFT JOIN WindowCaptureFileRelation wfr ON wc.Id = wfr.WindowCaptureId
	LEFT JOIN File file ON wfr.FileId = file.Id
	LEFT JOIN WindowCaptureWebRelation wwr ON wc.Id = wwr.WindowCaptureId
	LEFT JOIN Web web ON wwr.WebId = web.Id
	ORDER BY wc.Id
`

const withImagesQuery = `
	SELECT wc.Id, wc.TimeStamp, wc.WindowTitle, wc.ImageToken, text.c2
	FROM WindowCapture wc
	LEFT JOIN WindowCaptureTextIndex_content text ON wc.Id = text.rowid
	WHERE wc.ImageToken IS NOT NULL AND wc.ImageToken <> ''
`

// LoadAll returns every capture joined to its app, file and web
// relations, ordered by id.
func (r *Repository) LoadAll(ctx context.Context) ([]capture.Capture, error) {
	var out []capture.Capture
	err := r.with(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, loadAllQuery)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]capture.Capture, 0)
		for rows.Next() {
			c, err := scanCapture(rows)
			if err != nil {
				return err
			}
			out = append(out, *c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LoadWithImages returns captures that carry an image token together with
// their OCR text, ordered by timestamp then id.
func (r *Repository) LoadWithImages(ctx context.Context) ([]capture.CaptureWithOCR, error) {
	return r.loadWithImages(ctx, withImagesQuery+" ORDER BY wc.TimeStamp, wc.Id")
}

// LoadWithImagesInRange is LoadWithImages restricted to
// startMs <= TimeStamp <= endMs. No match is an empty slice, not an error.
func (r *Repository) LoadWithImagesInRange(ctx context.Context, startMs, endMs int64) ([]capture.CaptureWithOCR, error) {
	if startMs > endMs {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("range start %d is after end %d", startMs, endMs))
	}
	query := withImagesQuery + " AND wc.TimeStamp BETWEEN ? AND ? ORDER BY wc.TimeStamp, wc.Id"
	return r.loadWithImages(ctx, query, startMs, endMs)
}

func (r *Repository) loadWithImages(ctx context.Context, query string, args ...any) ([]capture.CaptureWithOCR, error) {
	var out []capture.CaptureWithOCR
	err := r.with(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]capture.CaptureWithOCR, 0)
		for rows.Next() {
			c, err := scanCaptureWithOCR(rows)
			if err != nil {
				return err
			}
			out = append(out, *c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MinMaxImageTimestamp returns the earliest and latest timestamps among
// captures with a non-empty image token. Both are nil when there are none.
func (r *Repository) MinMaxImageTimestamp(ctx context.Context) (*int64, *int64, error) {
	var lo, hi sql.NullInt64
	err := r.with(ctx, func(db *sql.DB) error {
		return db.QueryRowContext(ctx,
			"SELECT MIN(TimeStamp), MAX(TimeStamp) FROM WindowCapture WHERE ImageToken IS NOT NULL AND ImageToken <> ''",
		).Scan(&lo, &hi)
	})
	if err != nil {
		return nil, nil, err
	}
	return fromNullInt64(lo), fromNullInt64(hi), nil
}

// CheckDeletion compares the lowest surviving capture id with the IdTable
// counter. A missing, empty or multi-row IdTable is a SCHEMA_ERROR; it is
// never reported as "no deletion".
func (r *Repository) CheckDeletion(ctx context.Context) (capture.DeletionStatus, error) {
	var first sql.NullInt64
	var next int64
	err := r.with(ctx, func(db *sql.DB) error {
		if err := db.QueryRowContext(ctx, "SELECT MIN(Id) FROM WindowCapture").Scan(&first); err != nil {
			return err
		}
		n, err := readCounter(ctx, db)
		if err != nil {
			return err
		}
		next = n
		return nil
	})
	if err != nil {
		return capture.DeletionStatus{}, err
	}
	return capture.EvaluateDeletion(first.Int64, next), nil
}

// Stats counts captures, captures with images and distinct apps.
func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	s := &Stats{}
	err := r.with(ctx, func(db *sql.DB) error {
		var lo, hi sql.NullInt64
		err := db.QueryRowContext(ctx, `
			SELECT COUNT(*), COUNT(NULLIF(ImageToken, '')), MIN(TimeStamp), MAX(TimeStamp)
			FROM WindowCapture
		`).Scan(&s.Captures, &s.WithImages, &lo, &hi)
		if err != nil {
			return err
		}
		s.FirstTimestamp = fromNullInt64(lo)
		s.LastTimestamp = fromNullInt64(hi)

		return db.QueryRowContext(ctx,
			"SELECT COUNT(DISTINCT AppId) FROM WindowCaptureAppRelation",
		).Scan(&s.Apps)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// with opens the database, runs fn and closes it, converting driver errors
// at this boundary.
func (r *Repository) with(ctx context.Context, fn func(*sql.DB) error) error {
	db, err := Open(ctx, r.path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := fn(db); err != nil {
		if _, ok := err.(*errors.RecallError); ok {
			return err
		}
		return classify(r.path, err)
	}
	return nil
}

// readCounter reads the first column of the sole IdTable row.
func readCounter(ctx context.Context, db *sql.DB) (int64, error) {
	rows, err := db.QueryContext(ctx, "SELECT * FROM IdTable")
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	if len(cols) == 0 {
		return 0, counterInvalid("IdTable has no columns")
	}

	var next int64
	count := 0
	for rows.Next() {
		count++
		if count > 1 {
			return 0, counterInvalid("IdTable has more than one row")
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return 0, err
		}
		next, err = toInt64(vals[0])
		if err != nil {
			return 0, counterInvalid(err.Error())
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, counterInvalid("IdTable is empty")
	}
	return next, nil
}

func counterInvalid(reason string) *errors.RecallError {
	e := errors.NewSchema("IdTable", fmt.Errorf("%s", reason))
	e.Details["reason"] = "COUNTER_INVALID"
	return e
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case string:
		return strconv.ParseInt(n, 10, 64)
	case nil:
		return 0, fmt.Errorf("IdTable counter is NULL")
	default:
		return 0, fmt.Errorf("IdTable counter has unexpected type %T", v)
	}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCapture(s scanner) (*capture.Capture, error) {
	var c capture.Capture
	var name, title sql.NullString
	var token, app, file, web sql.NullString
	var ts sql.NullInt64

	if err := s.Scan(&c.ID, &name, &token, &title, &app, &ts, &file, &web); err != nil {
		return nil, err
	}

	c.Name = name.String
	c.WindowTitle = title.String
	c.Timestamp = ts.Int64
	c.ImageToken = fromNullString(token)
	c.AppName = fromNullString(app)
	c.FilePath = fromNullString(file)
	c.WebURI = fromNullString(web)
	return &c, nil
}

func scanCaptureWithOCR(s scanner) (*capture.CaptureWithOCR, error) {
	var c capture.CaptureWithOCR
	var title, ocr sql.NullString
	var ts sql.NullInt64

	if err := s.Scan(&c.ID, &ts, &title, &c.ImageToken, &ocr); err != nil {
		return nil, err
	}

	c.Timestamp = ts.Int64
	c.WindowTitle = title.String
	c.OCRText = fromNullString(ocr)
	return &c, nil
}

// fromNullString converts sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func fromNullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return &n.Int64
}
