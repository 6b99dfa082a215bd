package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/recall/internal/db/dbtest"
	"github.com/hpungsan/recall/internal/ops"
)

const base = int64(1709283600000) // 2024-03-01 18:00:00 +09:00

var recallEnv = []string{
	"RECALL_DB", "RECALL_IMAGE_ROOT", "RECALL_IMAGE_EXT", "RECALL_UTC_OFFSET",
	"RECALL_LOG_LEVEL", "RECALL_WEB_BIND", "RECALL_WEB_PORT", "RECALL_DISABLED_TOOLS",
}

// setupTestDB isolates the process environment and seeds a capture
// database: four image captures (t14 has no file) and one text-only row.
func setupTestDB(t *testing.T) *dbtest.Fixture {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, k := range recallEnv {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	f := dbtest.New(t)
	f.Insert(t,
		dbtest.Row{ID: 10, Name: "cap", Token: dbtest.Token("t10"), Title: "Inbox - Outlook", Timestamp: base, App: "Outlook", OCR: "weekly sync"},
		dbtest.Row{ID: 11, Name: "cap", Title: "Desktop", Timestamp: base + 60_000},
		dbtest.Row{ID: 12, Name: "cap", Token: dbtest.Token("t12"), Title: "plan.docx", Timestamp: base + 120_000, App: "Word", File: `C:\plan.docx`},
		dbtest.Row{ID: 13, Name: "cap", Token: dbtest.Token("t13"), Title: "Search", Timestamp: base + 180_000, App: "Edge", Web: "https://example.com"},
		dbtest.Row{ID: 14, Name: "cap", Token: dbtest.Token("t14"), Title: "gone", Timestamp: base + 240_000, App: "Edge"},
	)
	f.WriteImage(t, "t10", "", 2000, 1000)
	f.WriteImage(t, "t12", "", 200, 100)
	f.WriteImage(t, "t13", "", 640, 480)
	return f
}

// run executes the CLI with stdin and returns stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newCLIApp(strings.NewReader(stdin), &out)
	full := append([]string{"recall", "--env-file", ""}, args...)
	err := app.Run(full)
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, "", args...)
	if err != nil {
		t.Fatalf("recall %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func assertCLIError(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected [%s] error, got nil", code)
	}
	if !strings.HasPrefix(err.Error(), "["+code+"]") {
		t.Errorf("error = %q, want prefix [%s]", err.Error(), code)
	}
}

// --- list ---

func TestListCmd_JSON(t *testing.T) {
	f := setupTestDB(t)

	out := mustRun(t, "--db", f.DBPath, "list", "--json", "--tokens")
	var output ops.ListOutput
	require.NoError(t, json.Unmarshal([]byte(out), &output))

	require.Len(t, output.Items, 5)
	assert.Equal(t, int64(10), output.Items[0].ID)
	assert.Equal(t, "t10", output.Items[0].ImageToken)
	assert.Equal(t, "Outlook", output.Items[0].AppName)
	assert.Equal(t, "2024-03-01 18:00:00", output.Items[0].Time)
	assert.Equal(t, "X", output.Items[1].Image)
	assert.Equal(t, `C:\plan.docx`, output.Items[2].FilePath)
	assert.Equal(t, "deleted: O, first ID: 10, next ID: 15", output.Status.Text)
}

func TestListCmd_Table(t *testing.T) {
	f := setupTestDB(t)

	out := mustRun(t, "--db", f.DBPath, "list")
	assert.Contains(t, out, "WindowTitle")
	assert.Contains(t, out, "Inbox - Outlook")
	assert.Contains(t, out, "1-5 of 5")
	assert.Contains(t, out, "deleted: O, first ID: 10, next ID: 15")
	assert.NotContains(t, out, "ImageToken")

	out = mustRun(t, "--db", f.DBPath, "list", "--tokens", "--limit", "2", "--offset", "1")
	assert.Contains(t, out, "ImageToken")
	assert.Contains(t, out, "t12")
	assert.NotContains(t, out, "Inbox - Outlook")
	assert.Contains(t, out, "2-3 of 5")
}

func TestListCmd_Purged(t *testing.T) {
	f := setupTestDB(t)
	f.Delete(t, 10)

	out := mustRun(t, "--db", f.DBPath, "list")
	assert.Contains(t, out, "deleted: O, first ID: 11, next ID: 15")
}

func TestListCmd_Errors(t *testing.T) {
	f := setupTestDB(t)

	_, err := run(t, "", "list")
	assertCLIError(t, err, "INVALID_REQUEST")

	_, err = run(t, "", "--db", filepath.Join(f.Dir, "missing.db"), "list")
	assertCLIError(t, err, "NOT_FOUND")
	if _, statErr := os.Stat(filepath.Join(f.Dir, "missing.db")); !os.IsNotExist(statErr) {
		t.Error("a missing database must not be created")
	}

	f.DropTable(t, "Web")
	_, err = run(t, "", "--db", f.DBPath, "list")
	assertCLIError(t, err, "SCHEMA_ERROR")
}

// --- configuration precedence ---

func TestConfigPrecedence(t *testing.T) {
	f := setupTestDB(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	yaml := fmt.Sprintf("db_path: %q\ndisplay_utc_offset: \"+01:00\"\n", f.DBPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o600))

	firstTime := func(args ...string) string {
		t.Helper()
		out := mustRun(t, append(args, "list", "--json", "--limit", "1")...)
		var output ops.ListOutput
		require.NoError(t, json.Unmarshal([]byte(out), &output))
		return output.Items[0].Time
	}

	assert.Equal(t, "2024-03-01 10:00:00", firstTime("--config", cfgPath), "file over defaults")

	t.Setenv("RECALL_UTC_OFFSET", "+02:00")
	assert.Equal(t, "2024-03-01 11:00:00", firstTime("--config", cfgPath), "env over file")

	assert.Equal(t, "2024-03-01 09:00:00", firstTime("--config", cfgPath, "--utc-offset", "Z"), "flag over env")
}

func TestConfigDefaultsFromHome(t *testing.T) {
	f := setupTestDB(t)
	home := os.Getenv("HOME")
	require.NoError(t, os.MkdirAll(filepath.Join(home, baseDirName), 0o700))
	yaml := fmt.Sprintf("db_path: %q\n", f.DBPath)
	require.NoError(t, os.WriteFile(filepath.Join(home, baseDirName, "config.yaml"), []byte(yaml), 0o600))

	out := mustRun(t, "status", "--json")
	assert.Contains(t, out, `"captures": 5`)
}

func TestConfigInvalid(t *testing.T) {
	f := setupTestDB(t)

	_, err := run(t, "", "--db", f.DBPath, "--utc-offset", "tokyo", "list")
	assertCLIError(t, err, "INVALID_REQUEST")

	_, err = run(t, "", "--db", f.DBPath, "--log-level", "loud", "list")
	assertCLIError(t, err, "INVALID_REQUEST")

	_, err = run(t, "", "--db", f.DBPath, "--image-ext", "a/b", "list")
	assertCLIError(t, err, "INVALID_REQUEST")
}

func TestImageExtensionFlag(t *testing.T) {
	f := setupTestDB(t)
	f.WriteImage(t, "t14", ".jpeg", 50, 50)

	out := mustRun(t, "--db", f.DBPath, "--image-ext", ".jpeg", "image", "--json", "t14")
	assert.Contains(t, out, `"width": 50`)
}

// --- browse ---

func TestBrowseCmd_JSON(t *testing.T) {
	f := setupTestDB(t)

	out := mustRun(t, "--db", f.DBPath, "browse", "--json", "--pos", "1")
	var output ops.BrowseOutput
	require.NoError(t, json.Unmarshal([]byte(out), &output))
	assert.Equal(t, 4, output.Total)
	assert.Equal(t, int64(12), output.Current.ID)
	assert.Equal(t, int64(10), output.Previous.ID)
	assert.Equal(t, int64(13), output.Next.ID)
}

func TestBrowseCmd_Interactive(t *testing.T) {
	f := setupTestDB(t)

	script := strings.Join([]string{
		"",  // next
		"p", // back to first
		"p", // already first
		"g 3",
		"n", // already last
		"r 2024-03-01 18:02:00 2024-03-01 18:03:00",
		"r 5 1",
		"n",
		"bogus",
		"q",
	}, "\n") + "\n"

	out, err := run(t, script, "--db", f.DBPath, "browse")
	require.NoError(t, err)

	assert.Contains(t, out, "[1/4] #10  2024-03-01 18:00:00  Inbox - Outlook")
	assert.Contains(t, out, "jpeg 2000x1000 -> 500x250")
	assert.Contains(t, out, "previous: first image")
	assert.Contains(t, out, "ocr:      weekly sync")
	assert.Contains(t, out, "[2/4] #12")
	assert.Contains(t, out, "[INVALID_REQUEST] first image")
	assert.Contains(t, out, "[4/4] #14")
	assert.Contains(t, out, "primary:  cannot load image")
	assert.Contains(t, out, "next:     last image")
	assert.Contains(t, out, "[INVALID_REQUEST] last image")
	assert.Contains(t, out, "[1/2] #12")
	assert.Contains(t, out, "[INVALID_REQUEST] range start is after range end")
	assert.Contains(t, out, "[2/2] #13", "failed search keeps the previous result set")
	assert.Contains(t, out, `unknown command "bogus"`)
}

func TestBrowseCmd_EmptyRange(t *testing.T) {
	f := setupTestDB(t)

	out, err := run(t, "q\n", "--db", f.DBPath, "browse", "--start-ms", "0", "--end-ms", "10")
	require.NoError(t, err)
	assert.Contains(t, out, ops.PlaceholderNoResults)
}

func TestBrowseCmd_BadPosition(t *testing.T) {
	f := setupTestDB(t)

	_, err := run(t, "q\n", "--db", f.DBPath, "browse", "--pos", "9")
	assertCLIError(t, err, "INVALID_REQUEST")
}

func TestParseRangeArgs(t *testing.T) {
	r, err := parseRangeArgs([]string{"100", "200"})
	require.NoError(t, err)
	assert.Equal(t, int64(100), *r.StartMs)
	assert.Equal(t, int64(200), *r.EndMs)

	r, err = parseRangeArgs([]string{"2024-03-01", "18:00:00", "2024-03-01", "18:05:00"})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01 18:00:00", r.Start)
	assert.Equal(t, "2024-03-01 18:05:00", r.End)

	_, err = parseRangeArgs([]string{"a", "b"})
	assert.Error(t, err)
	_, err = parseRangeArgs([]string{"100"})
	assert.Error(t, err)
}

// --- range ---

func TestRangeCmd(t *testing.T) {
	f := setupTestDB(t)

	out := mustRun(t, "--db", f.DBPath, "range", "--start", "2024-03-01 18:02:00", "--end", "2024-03-01 18:04:00")
	assert.Contains(t, out, "plan.docx")
	assert.Contains(t, out, "200x100")
	assert.Contains(t, out, "400x300", "640x480 fitted into the table box")
	assert.Contains(t, out, ops.PlaceholderUnloaded)
	assert.NotContains(t, out, "Inbox - Outlook")
	assert.Contains(t, out, "3 of 3 in 2024-03-01 18:02:00 - 2024-03-01 18:04:00")
}

func TestRangeCmd_DefaultsToFullSpan(t *testing.T) {
	f := setupTestDB(t)

	out := mustRun(t, "--db", f.DBPath, "range", "--json")
	var output ops.SearchOutput
	require.NoError(t, json.Unmarshal([]byte(out), &output))
	assert.Equal(t, 4, output.Pagination.Total)
	assert.Equal(t, base, output.Range.StartMs)
}

func TestRangeCmd_NoMatch(t *testing.T) {
	f := setupTestDB(t)

	out := mustRun(t, "--db", f.DBPath, "range", "--start-ms", "0", "--end-ms", "1000")
	assert.Contains(t, out, ops.PlaceholderNoResults)
}

func TestRangeCmd_Invalid(t *testing.T) {
	f := setupTestDB(t)

	_, err := run(t, "", "--db", f.DBPath, "range", "--start", "2024-03-01 18:04:00", "--end", "2024-03-01 18:00:00")
	assertCLIError(t, err, "INVALID_REQUEST")
}

// --- status ---

func TestStatusCmd(t *testing.T) {
	f := setupTestDB(t)

	out := mustRun(t, "--db", f.DBPath, "status")
	assert.Contains(t, out, f.DBPath)
	assert.Contains(t, out, "(found)")
	assert.Contains(t, out, "UTC+09:00")
	assert.Contains(t, out, "2024-03-01 18:04:00")
	assert.Contains(t, out, "deleted: O")
}

func TestStatusCmd_CounterInvalid(t *testing.T) {
	f := setupTestDB(t)
	f.SetCounter(t)

	out := mustRun(t, "--db", f.DBPath, "status")
	assert.Contains(t, out, "deletion check failed: [SCHEMA_ERROR]")
}

// --- report ---

func TestReportCmd_Stdout(t *testing.T) {
	f := setupTestDB(t)

	out := mustRun(t, "--db", f.DBPath, "report", "--stdout")
	assert.True(t, strings.HasPrefix(out, "# Recall capture report"))
	assert.Contains(t, out, "1 of 4 referenced screenshots are missing")

	out = mustRun(t, "--db", f.DBPath, "report", "--stdout", "--format", "html")
	assert.Contains(t, out, "<h1>Recall capture report</h1>")
}

func TestReportCmd_WritesFile(t *testing.T) {
	f := setupTestDB(t)
	path := filepath.Join(t.TempDir(), "case.md")

	out := mustRun(t, "--db", f.DBPath, "report", "--out", path)
	assert.Contains(t, out, "written to "+path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## Deletion check")
}

func TestReportCmd_DefaultPath(t *testing.T) {
	f := setupTestDB(t)

	out := mustRun(t, "--db", f.DBPath, "report", "--format", "html")
	dir := filepath.Join(os.Getenv("HOME"), baseDirName, "reports")
	assert.Contains(t, out, dir)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "ukg-"))
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".html"))
}

func TestReportCmd_RefusesImageStore(t *testing.T) {
	f := setupTestDB(t)

	_, err := run(t, "", "--db", f.DBPath, "report", "--out", filepath.Join(f.ImageRoot, "r.md"))
	assertCLIError(t, err, "INVALID_REQUEST")
}

// --- image ---

func TestImageCmd(t *testing.T) {
	f := setupTestDB(t)

	out := mustRun(t, "--db", f.DBPath, "image", "t10")
	assert.Contains(t, out, "t10: jpeg 2000x1000 -> 1280x640 (box 1280x960)")

	out = mustRun(t, "--db", f.DBPath, "image", "--box", "preview", "--json", "t10")
	var info imageInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, 300, info.Fitted.W)
	assert.Equal(t, 150, info.Fitted.H)
}

func TestImageCmd_WritesScaled(t *testing.T) {
	f := setupTestDB(t)
	path := filepath.Join(t.TempDir(), "t10.jpg")

	mustRun(t, "--db", f.DBPath, "image", "--box", "400x400", "--out", path, "t10")

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	cfg, _, err := image.DecodeConfig(file)
	require.NoError(t, err)
	assert.Equal(t, 400, cfg.Width)
	assert.Equal(t, 200, cfg.Height)

	_, err = run(t, "", "--db", f.DBPath, "image", "--out", path, "t10")
	assertCLIError(t, err, "INVALID_REQUEST")

	_, err = run(t, "", "--db", f.DBPath, "image", "--out", filepath.Join(f.ImageRoot, "copy.jpg"), "t10")
	assertCLIError(t, err, "INVALID_REQUEST")
}

func TestImageCmd_Errors(t *testing.T) {
	f := setupTestDB(t)
	f.WriteFile(t, "junk", "", []byte("not an image"))

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"no token", []string{"image"}, "INVALID_REQUEST"},
		{"missing file", []string{"image", "t14"}, "MISSING_ASSET"},
		{"undecodable", []string{"image", "junk"}, "DECODE_FAILURE"},
		{"traversal", []string{"image", "../ukg.db"}, "INVALID_REQUEST"},
		{"bad box", []string{"image", "--box", "big", "t10"}, "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, "", append([]string{"--db", f.DBPath}, tt.args...)...)
			assertCLIError(t, err, tt.code)
		})
	}
}

// --- helpers ---

func TestOutputError(t *testing.T) {
	err := outputError(fmt.Errorf("boom"))
	assert.Equal(t, "[INTERNAL] boom", err.Error())
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b c", oneLine("  a\n b\t\tc "))
	assert.Equal(t, "", oneLine(""))
}
