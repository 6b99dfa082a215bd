// Package dbtest builds throwaway Recall capture databases and image stores
// for tests.
package dbtest

import (
	"bytes"
	"database/sql"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// Schema is the subset of the Recall database the viewer reads.
const Schema = `
CREATE TABLE WindowCapture (
	Id INTEGER PRIMARY KEY,
	Name TEXT,
	ImageToken TEXT,
	WindowTitle TEXT,
	TimeStamp INTEGER,
	WindowId INTEGER,
	IsForeground INTEGER
);
CREATE TABLE App (Id INTEGER PRIMARY KEY, Name TEXT, Path TEXT);
CREATE TABLE WindowCaptureAppRelation (WindowCaptureId INTEGER, AppId INTEGER);
CREATE TABLE File (Id INTEGER PRIMARY KEY, Path TEXT);
CREATE TABLE WindowCaptureFileRelation (WindowCaptureId INTEGER, FileId INTEGER);
CREATE TABLE Web (Id INTEGER PRIMARY KEY, Uri TEXT);
CREATE TABLE WindowCaptureWebRelation (WindowCaptureId INTEGER, WebId INTEGER);
CREATE TABLE WindowCaptureTextIndex_content (id INTEGER PRIMARY KEY, c0, c1, c2);
CREATE TABLE IdTable (NextId INTEGER);
INSERT INTO IdTable (NextId) VALUES (1);
`

// Row describes one capture to insert. Empty optional strings are stored
// as absent relations; a nil Token stores NULL.
type Row struct {
	ID        int64
	Name      string
	Token     *string
	Title     string
	Timestamp int64
	App       string
	File      string
	Web       string
	OCR       string
}

// Fixture is a database file plus its sibling ImageStore directory.
type Fixture struct {
	Dir       string
	DBPath    string
	ImageRoot string
}

// New creates an empty capture database in t.TempDir().
func New(t testing.TB) *Fixture {
	t.Helper()
	dir := t.TempDir()
	f := &Fixture{
		Dir:       dir,
		DBPath:    filepath.Join(dir, "ukg.db"),
		ImageRoot: filepath.Join(dir, "ImageStore"),
	}
	require.NoError(t, os.MkdirAll(f.ImageRoot, 0o755))
	f.Exec(t, Schema)
	return f
}

// Token returns a pointer to s for Row.Token.
func Token(s string) *string { return &s }

// Exec runs statements against the fixture database with a writable
// connection.
func (f *Fixture) Exec(t testing.TB, query string, args ...any) {
	t.Helper()
	db, err := sql.Open("sqlite", f.DBPath)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(query, args...)
	require.NoError(t, err)
}

// Insert adds rows and their relations, then sets the IdTable counter to
// MAX(Id)+1. With more than one row the deletion check therefore reports
// the oldest rows as purged; use Delete or SetCounter to model an intact
// store.
func (f *Fixture) Insert(t testing.TB, rows ...Row) {
	t.Helper()
	db, err := sql.Open("sqlite", f.DBPath)
	require.NoError(t, err)
	defer db.Close()

	for _, r := range rows {
		_, err := db.Exec(
			"INSERT INTO WindowCapture (Id, Name, ImageToken, WindowTitle, TimeStamp, WindowId, IsForeground) VALUES (?, ?, ?, ?, ?, 1, 1)",
			r.ID, r.Name, r.Token, r.Title, r.Timestamp,
		)
		require.NoError(t, err)

		if r.App != "" {
			res, err := db.Exec("INSERT INTO App (Name, Path) VALUES (?, ?)", r.App, `C:\Program Files\`+r.App+".exe")
			require.NoError(t, err)
			appID, _ := res.LastInsertId()
			_, err = db.Exec("INSERT INTO WindowCaptureAppRelation (WindowCaptureId, AppId) VALUES (?, ?)", r.ID, appID)
			require.NoError(t, err)
		}
		if r.File != "" {
			res, err := db.Exec("INSERT INTO File (Path) VALUES (?)", r.File)
			require.NoError(t, err)
			fileID, _ := res.LastInsertId()
			_, err = db.Exec("INSERT INTO WindowCaptureFileRelation (WindowCaptureId, FileId) VALUES (?, ?)", r.ID, fileID)
			require.NoError(t, err)
		}
		if r.Web != "" {
			res, err := db.Exec("INSERT INTO Web (Uri) VALUES (?)", r.Web)
			require.NoError(t, err)
			webID, _ := res.LastInsertId()
			_, err = db.Exec("INSERT INTO WindowCaptureWebRelation (WindowCaptureId, WebId) VALUES (?, ?)", r.ID, webID)
			require.NoError(t, err)
		}
		if r.OCR != "" {
			_, err := db.Exec("INSERT INTO WindowCaptureTextIndex_content (id, c0, c1, c2) VALUES (?, ?, ?, ?)", r.ID, r.Title, r.App, r.OCR)
			require.NoError(t, err)
		}
	}

	_, err = db.Exec("UPDATE IdTable SET NextId = (SELECT COALESCE(MAX(Id), 0) + 1 FROM WindowCapture)")
	require.NoError(t, err)
}

// Delete removes captures by id, leaving the counter untouched, the way
// Recall's eviction does.
func (f *Fixture) Delete(t testing.TB, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		f.Exec(t, "DELETE FROM WindowCapture WHERE Id = ?", id)
	}
}

// SetCounter replaces the IdTable rows with one row per value. Passing no
// values leaves the table empty.
func (f *Fixture) SetCounter(t testing.TB, values ...int64) {
	t.Helper()
	f.Exec(t, "DELETE FROM IdTable")
	for _, v := range values {
		f.Exec(t, "INSERT INTO IdTable (NextId) VALUES (?)", v)
	}
}

// DropTable removes a table to simulate a foreign or damaged schema.
func (f *Fixture) DropTable(t testing.TB, name string) {
	t.Helper()
	f.Exec(t, "DROP TABLE "+name)
}

// WriteImage writes a w x h JPEG for token into the image store and
// returns its path.
func (f *Fixture) WriteImage(t testing.TB, token, ext string, w, h int) string {
	t.Helper()
	return f.WriteFile(t, token, ext, JPEG(t, w, h))
}

// WriteFile writes raw bytes for token into the image store.
func (f *Fixture) WriteFile(t testing.TB, token, ext string, data []byte) string {
	t.Helper()
	path := filepath.Join(f.ImageRoot, token+ext)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// JPEG encodes a solid w x h image.
func JPEG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 90, B: 160, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}
