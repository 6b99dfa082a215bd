package ops

import (
	"context"
	"os"

	"github.com/hpungsan/recall/internal/db"
)

// StatusOutput summarises one capture database.
type StatusOutput struct {
	DBPath         string      `json:"db_path"`
	ImageRoot      string      `json:"image_root"`
	ImageRootFound bool        `json:"image_root_found"`
	Zone           string      `json:"zone"`
	Stats          *db.Stats   `json:"stats"`
	FirstCapture   string      `json:"first_capture,omitempty"`
	LastCapture    string      `json:"last_capture,omitempty"`
	Status         *StatusLine `json:"status"`
}

// Status reads the capture counts and runs the deletion check. A database
// that cannot be opened fails the call; a failed deletion check does not.
func Status(ctx context.Context, v *Viewer) (*StatusOutput, error) {
	stats, err := v.Repo.Stats(ctx)
	if err != nil {
		return nil, err
	}

	out := &StatusOutput{
		DBPath:         v.Repo.Path(),
		ImageRoot:      v.Images.Root,
		ImageRootFound: isDir(v.Images.Root),
		Zone:           v.Codec.ZoneName(),
		Stats:          stats,
		Status:         DeletionLine(ctx, v),
	}
	if stats.FirstTimestamp != nil {
		out.FirstCapture = v.Codec.Format(*stats.FirstTimestamp)
	}
	if stats.LastTimestamp != nil {
		out.LastCapture = v.Codec.Format(*stats.LastTimestamp)
	}
	return out, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
