package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/recall/internal/errors"
)

// Report file extensions and the format each selects.
var reportExtensions = map[string]string{
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".html":     FormatHTML,
}

// ValidateReportPath checks a report output path before anything is
// written. It rejects:
// 1. Directory traversal (.. components)
// 2. Extensions other than .md, .markdown and .html
// 3. Paths inside the evidence: the database file itself or the image store
// 4. Symlinks at the final component or its parent directory
//
// It returns the format implied by the extension.
func ValidateReportPath(path string, v *Viewer) (string, error) {
	if path == "" {
		return "", errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return "", errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	format, ok := reportExtensions[strings.ToLower(filepath.Ext(cleaned))]
	if !ok {
		return "", errors.NewInvalidRequest("report path must end in .md, .markdown or .html")
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	if v != nil {
		if dbAbs, err := filepath.Abs(v.Repo.Path()); err == nil && absPath == dbAbs {
			return "", errors.NewInvalidRequest("report path must not overwrite the capture database")
		}
		if isUnder(absPath, v.Images.Root) {
			return "", errors.NewInvalidRequest("report path must not be inside the image store")
		}
	}

	parentDir := filepath.Dir(absPath)
	if info, err := os.Lstat(parentDir); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return "", errors.NewInvalidRequest("parent directory must not be a symlink")
	}
	if info, err := os.Lstat(absPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return "", errors.NewInvalidRequest("path must not be a symlink")
	}

	return format, nil
}

// DefaultReportsDir returns ~/.recall/reports.
func DefaultReportsDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to get home directory: %w", err))
	}
	return filepath.Join(homeDir, ".recall", "reports"), nil
}

func isUnder(path, dir string) bool {
	if dir == "" {
		return false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "..")
}

// containsTraversal checks if path contains ".." directory traversal.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	// Also check for forward slashes on all platforms (e.g., user input)
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}

// SanitizeForFilename sanitizes a string for safe use in a filename.
func SanitizeForFilename(s string) string {
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.ReplaceAll(s, "..", "-")

	var result strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 && r != ':' {
			result.WriteRune(r)
		}
	}
	s = result.String()

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")

	if s == "" {
		s = "unnamed"
	}
	return s
}
