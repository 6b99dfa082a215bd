package ops

import (
	"context"
	"fmt"
	"strings"

	"github.com/hpungsan/recall/internal/browser"
	"github.com/hpungsan/recall/internal/capture"
	"github.com/hpungsan/recall/internal/errors"
	"github.com/hpungsan/recall/internal/imagestore"
)

// Frame is one capture as shown in the browsing view.
type Frame struct {
	Index       int             `json:"index"`
	ID          int64           `json:"id"`
	Timestamp   int64           `json:"timestamp"`
	Time        string          `json:"time"`
	WindowTitle string          `json:"window_title"`
	OCRText     string          `json:"ocr_text,omitempty"`
	ImageToken  string          `json:"image_token"`
	ImagePath   string          `json:"image_path,omitempty"`
	ImageSize   imagestore.Size `json:"image_size"`
	DisplaySize imagestore.Size `json:"display_size"`

	// Placeholder is set when the image cannot be shown.
	Placeholder string `json:"placeholder,omitempty"`
}

// TimeRange is an inclusive millisecond range with its rendered bounds.
type TimeRange struct {
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// RangeInput selects a time range either as display strings in the
// configured offset or as milliseconds. Strings win when both are set.
type RangeInput struct {
	Start   string
	End     string
	StartMs *int64
	EndMs   *int64
}

// IsZero reports whether no bound was given.
func (r RangeInput) IsZero() bool {
	return strings.TrimSpace(r.Start) == "" && strings.TrimSpace(r.End) == "" && r.StartMs == nil && r.EndMs == nil
}

// BrowseInput contains parameters for the Browse operation.
type BrowseInput struct {
	Range    RangeInput
	Position int
}

// BrowseOutput is the three-slot view: the current capture plus its
// neighbours.
type BrowseOutput struct {
	Position int    `json:"position"`
	Total    int    `json:"total"`
	Empty    bool   `json:"empty"`
	Message  string `json:"message,omitempty"`
	Current  *Frame `json:"current,omitempty"`
	Previous *Frame `json:"previous,omitempty"`
	Next     *Frame `json:"next,omitempty"`

	// PreviousPlaceholder and NextPlaceholder label empty neighbour slots.
	PreviousPlaceholder string `json:"previous_placeholder,omitempty"`
	NextPlaceholder     string `json:"next_placeholder,omitempty"`

	Range        *TimeRange `json:"range,omitempty"`
	DefaultRange *TimeRange `json:"default_range,omitempty"`
}

// Browse loads the browsing set (all images, or a time range), seeks to
// input.Position and returns the view there. Each call reloads; callers
// that keep state across steps use Load and View directly.
func Browse(ctx context.Context, v *Viewer, input BrowseInput) (*BrowseOutput, error) {
	if input.Position < 0 {
		return nil, errors.NewInvalidRequest("position must be non-negative")
	}

	b, rng, err := Load(ctx, v, input.Range)
	if err != nil {
		return nil, err
	}
	if !b.Empty() && !b.Seek(input.Position) {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("position %d out of range (0..%d)", input.Position, b.Len()-1))
	}

	out := v.View(b)
	out.Range = rng
	out.DefaultRange = DefaultRange(ctx, v)
	return out, nil
}

// Load fills a new Browser over v.Repo. A zero range loads every capture
// with an image.
func Load(ctx context.Context, v *Viewer, r RangeInput) (*browser.Browser, *TimeRange, error) {
	b := browser.New(v.Repo)
	if r.IsZero() {
		if err := b.LoadInitial(ctx); err != nil {
			return nil, nil, err
		}
		return b, nil, nil
	}

	rng, err := v.ResolveRange(r)
	if err != nil {
		return nil, nil, err
	}
	if err := b.Search(ctx, rng.StartMs, rng.EndMs); err != nil {
		return nil, nil, err
	}
	return b, rng, nil
}

// ResolveRange parses r into milliseconds. Both bounds are required.
func (v *Viewer) ResolveRange(r RangeInput) (*TimeRange, error) {
	start, err := v.bound("start", r.Start, r.StartMs)
	if err != nil {
		return nil, err
	}
	end, err := v.bound("end", r.End, r.EndMs)
	if err != nil {
		return nil, err
	}
	if start > end {
		return nil, errors.NewInvalidRequest("range start is after range end")
	}
	return v.timeRange(start, end), nil
}

func (v *Viewer) bound(name, s string, ms *int64) (int64, error) {
	if s = strings.TrimSpace(s); s != "" {
		parsed, err := v.Codec.Parse(s)
		if err != nil {
			return 0, errors.NewInvalidRequest(fmt.Sprintf("invalid %s time %q: want %s", name, s, capture.DisplayLayout))
		}
		return parsed, nil
	}
	if ms == nil {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("range %s is required", name))
	}
	if *ms < 0 {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("range %s must be non-negative", name))
	}
	return *ms, nil
}

func (v *Viewer) timeRange(start, end int64) *TimeRange {
	return &TimeRange{
		StartMs: start,
		EndMs:   end,
		Start:   v.Codec.Format(start),
		End:     v.Codec.Format(end),
	}
}

// DefaultRange is the span of all captures with images, used to seed a
// range search form. Nil when there are none or the query fails.
func DefaultRange(ctx context.Context, v *Viewer) *TimeRange {
	lo, hi, err := v.Repo.MinMaxImageTimestamp(ctx)
	if err != nil || lo == nil || hi == nil {
		return nil
	}
	return v.timeRange(*lo, *hi)
}

// View renders the browser's current position.
func (v *Viewer) View(b *browser.Browser) *BrowseOutput {
	out := &BrowseOutput{
		Position: b.Position(),
		Total:    b.Len(),
		Empty:    b.Empty(),
	}
	if out.Empty {
		out.Message = PlaceholderNoResults
		return out
	}

	if c, ok := b.Current(); ok {
		out.Current = v.Frame(c, b.Position(), imagestore.BoxPrimary)
	}
	if c, ok := b.PeekPrevious(); ok {
		out.Previous = v.Frame(c, b.Position()-1, imagestore.BoxPreview)
	} else {
		out.PreviousPlaceholder = PlaceholderFirst
	}
	if c, ok := b.PeekNext(); ok {
		out.Next = v.Frame(c, b.Position()+1, imagestore.BoxPreview)
	} else {
		out.NextPlaceholder = PlaceholderLast
	}
	return out
}

// Frame renders one capture for a slot of the given box. Only the image
// header is read; a missing or unreadable file sets the placeholder.
func (v *Viewer) Frame(c capture.CaptureWithOCR, index int, box imagestore.Size) *Frame {
	f := &Frame{
		Index:       index,
		ID:          c.ID,
		Timestamp:   c.Timestamp,
		Time:        v.Codec.Format(c.Timestamp),
		WindowTitle: c.WindowTitle,
		OCRText:     c.OCR(),
		ImageToken:  c.ImageToken,
	}

	path, err := v.Images.Resolve(c.ImageToken)
	if err != nil {
		f.Placeholder = PlaceholderUnloaded
		return f
	}
	f.ImagePath = path

	size, _, err := imagestore.DecodeConfig(path)
	if err != nil {
		f.Placeholder = PlaceholderUnloaded
		return f
	}
	f.ImageSize = size
	f.DisplaySize = imagestore.Fit(size, box)
	return f
}
