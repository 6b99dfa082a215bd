// Package imagestore locates, decodes and scales Recall screenshots.
package imagestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/recall/internal/errors"
)

// StoreDirName is the image directory Recall keeps next to its database.
const StoreDirName = "ImageStore"

// Resolver maps image tokens to files under Root. Extension is appended
// verbatim: Recall itself stores bare tokens, exported copies are often
// "{token}.jpeg".
type Resolver struct {
	Root      string
	Extension string
}

// DefaultRoot returns the ImageStore directory next to dbPath.
func DefaultRoot(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), StoreDirName)
}

// Resolve returns the path for token. Tokens that could escape Root are
// rejected.
func (r Resolver) Resolve(token string) (string, error) {
	if err := ValidateToken(token); err != nil {
		return "", err
	}
	return filepath.Join(r.Root, token+r.Extension), nil
}

// ValidateToken rejects empty tokens and anything with a path separator or
// a parent reference.
func ValidateToken(token string) error {
	switch {
	case token == "":
		return errors.NewInvalidRequest("image token is empty")
	case strings.ContainsAny(token, `/\`), strings.Contains(token, ".."):
		return errors.NewInvalidRequest(fmt.Sprintf("invalid image token: %q", token))
	}
	return nil
}

// Exists reports whether path is a regular file. Directories, broken
// symlinks and unreadable entries all count as missing.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
