package ops

import (
	"context"

	"github.com/hpungsan/recall/internal/capture"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Limit      int // default: config page size, max: 500
	Offset     int // default: 0
	ShowTokens bool
}

// CaptureRow is one line of the capture table.
type CaptureRow struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Image       string `json:"image"` // O or X
	ImageToken  string `json:"image_token,omitempty"`
	WindowTitle string `json:"window_title"`
	AppName     string `json:"app_name,omitempty"`
	Timestamp   int64  `json:"timestamp"`
	Time        string `json:"time"`
	FilePath    string `json:"file_path,omitempty"`
	WebURI      string `json:"web_uri,omitempty"`
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []CaptureRow `json:"items"`
	Pagination Pagination   `json:"pagination"`
	Sort       string       `json:"sort"`
	Status     *StatusLine  `json:"status"`
}

// StatusLine is the deletion summary shown under a listing. Exactly one of
// Deletion and Error is set.
type StatusLine struct {
	Text     string                  `json:"text"`
	Deletion *capture.DeletionStatus `json:"deletion,omitempty"`
	Error    *ErrorInfo              `json:"error,omitempty"`
}

// List returns one page of the full capture table ordered by id, plus the
// deletion status line. Load errors fail the call; a failed deletion check
// is reported in the status line instead.
func List(ctx context.Context, v *Viewer, input ListInput) (*ListOutput, error) {
	limit := v.clampLimit(input.Limit)
	offset := max(input.Offset, 0)

	all, err := v.Repo.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	total := len(all)
	start := min(offset, total)
	end := min(start+limit, total)

	items := make([]CaptureRow, 0, end-start)
	for _, c := range all[start:end] {
		items = append(items, v.row(c, input.ShowTokens))
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: end < total,
			Total:   total,
		},
		Sort:   "id_asc",
		Status: DeletionLine(ctx, v),
	}, nil
}

// DeletionLine runs the deletion check and renders its status line. A
// failed check is reported as such, never as "no deletion".
func DeletionLine(ctx context.Context, v *Viewer) *StatusLine {
	st, err := v.Repo.CheckDeletion(ctx)
	if err != nil {
		info := errorInfo(err)
		return &StatusLine{
			Text:  "deletion check failed: [" + info.Code + "] " + info.Message,
			Error: info,
		}
	}
	return &StatusLine{Text: st.StatusLine(), Deletion: &st}
}

func (v *Viewer) row(c capture.Capture, showToken bool) CaptureRow {
	r := CaptureRow{
		ID:          c.ID,
		Name:        c.Name,
		Image:       c.ImageMark(),
		WindowTitle: c.WindowTitle,
		AppName:     deref(c.AppName),
		Timestamp:   c.Timestamp,
		Time:        v.Codec.Format(c.Timestamp),
		FilePath:    deref(c.FilePath),
		WebURI:      deref(c.WebURI),
	}
	if showToken {
		r.ImageToken = deref(c.ImageToken)
	}
	return r
}
