package ops

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/hpungsan/recall/internal/errors"
)

func TestValidateReportPath_TraversalRejected(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"parent traversal", "../report.md"},
		{"deep traversal", "../../etc/report.md"},
		{"mid-path traversal", "/tmp/../etc/report.md"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateReportPath(tc.path, nil)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got: %v", err)
			}
		})
	}
}

func TestValidateReportPath_Extension(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		file    string
		format  string
		wantErr bool
	}{
		{"r.md", FormatMarkdown, false},
		{"r.MARKDOWN", FormatMarkdown, false},
		{"r.html", FormatHTML, false},
		{"r.txt", "", true},
		{"r", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.file, func(t *testing.T) {
			got, err := ValidateReportPath(filepath.Join(dir, tc.file), nil)
			if tc.wantErr {
				if !errors.Is(err, errors.ErrInvalidRequest) {
					t.Errorf("expected ErrInvalidRequest, got: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.format {
				t.Errorf("format = %q, want %q", got, tc.format)
			}
		})
	}
}

func TestValidateReportPath_Evidence(t *testing.T) {
	f, v := fixture(t)

	if _, err := ValidateReportPath(filepath.Join(f.ImageRoot, "x.md"), v); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("image store path: got %v", err)
	}
	if _, err := ValidateReportPath(filepath.Join(f.Dir, "report.md"), v); err != nil {
		t.Errorf("sibling of the database should be allowed: %v", err)
	}
}

func TestValidateReportPath_Symlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	dir := t.TempDir()
	target := filepath.Join(dir, "target.md")
	link := filepath.Join(dir, "link.md")
	if err := os.WriteFile(target, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	if _, err := ValidateReportPath(link, nil); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for symlink, got: %v", err)
	}
}

func TestSanitizeForFilename(t *testing.T) {
	tests := []struct{ in, want string }{
		{"ukg", "ukg"},
		{"../etc/passwd", "etc-passwd"},
		{"a:b", "ab"},
		{"", "unnamed"},
	}
	for _, tc := range tests {
		if got := SanitizeForFilename(tc.in); got != tc.want {
			t.Errorf("SanitizeForFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
