package ops

import (
	"github.com/hpungsan/recall/internal/capture"
	"github.com/hpungsan/recall/internal/config"
	"github.com/hpungsan/recall/internal/db"
	"github.com/hpungsan/recall/internal/errors"
	"github.com/hpungsan/recall/internal/imagestore"
)

// Pagination limits
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Placeholder texts shown in an image slot that has nothing to display.
const (
	PlaceholderFirst     = "first image"
	PlaceholderLast      = "last image"
	PlaceholderUnloaded  = "cannot load image"
	PlaceholderNoResults = "no images in range"
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Viewer bundles what every operation needs to read one capture database:
// the repository, the timestamp codec and the image resolver.
type Viewer struct {
	Repo     *db.Repository
	Codec    capture.Codec
	Images   imagestore.Resolver
	PageSize int
}

// NewViewer builds a Viewer for dbPath from cfg. An empty cfg.ImageRoot
// selects the ImageStore directory next to the database.
func NewViewer(dbPath string, cfg *config.Config) (*Viewer, error) {
	if dbPath == "" {
		return nil, errors.NewInvalidRequest("no capture database given (use --db or RECALL_DB)")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	offset, err := cfg.Offset()
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	root := cfg.ImageRoot
	if root == "" {
		root = imagestore.DefaultRoot(dbPath)
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultListLimit
	}

	return &Viewer{
		Repo:     db.NewRepository(dbPath),
		Codec:    capture.NewCodec(offset),
		Images:   imagestore.Resolver{Root: root, Extension: cfg.Extension()},
		PageSize: pageSize,
	}, nil
}

// ErrorInfo is the serialisable form of a RecallError.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorInfo(err error) *ErrorInfo {
	rErr := errors.As(err)
	return &ErrorInfo{Code: string(rErr.Code), Message: rErr.Message}
}

func (v *Viewer) clampLimit(limit int) int {
	if limit <= 0 {
		limit = v.PageSize
	}
	return min(limit, MaxListLimit)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
