// Package browser holds one query's result set and a cursor over it.
package browser

//go:generate mockgen -destination=mocks/mock_source.go -package=mocks github.com/hpungsan/recall/internal/browser Source

import (
	"context"

	"github.com/hpungsan/recall/internal/capture"
)

// Source loads the browsing view. *db.Repository satisfies it.
type Source interface {
	LoadWithImages(ctx context.Context) ([]capture.CaptureWithOCR, error)
	LoadWithImagesInRange(ctx context.Context, startMs, endMs int64) ([]capture.CaptureWithOCR, error)
}

// Browser walks captures in the order the Source returned them. Every
// load replaces the result set wholesale and resets the position to 0;
// a failed load leaves the previous state intact. Not safe for concurrent
// use.
type Browser struct {
	src      Source
	results  []capture.CaptureWithOCR
	position int
}

// New returns an empty Browser over src.
func New(src Source) *Browser {
	return &Browser{src: src}
}

// LoadInitial loads every capture that has an image.
func (b *Browser) LoadInitial(ctx context.Context) error {
	rows, err := b.src.LoadWithImages(ctx)
	if err != nil {
		return err
	}
	b.replace(rows)
	return nil
}

// Search loads captures with startMs <= timestamp <= endMs. Zero matches
// is a valid empty state, not an error.
func (b *Browser) Search(ctx context.Context, startMs, endMs int64) error {
	rows, err := b.src.LoadWithImagesInRange(ctx, startMs, endMs)
	if err != nil {
		return err
	}
	b.replace(rows)
	return nil
}

func (b *Browser) replace(rows []capture.CaptureWithOCR) {
	b.results = rows
	b.position = 0
}

// Current returns the capture at the cursor.
func (b *Browser) Current() (capture.CaptureWithOCR, bool) {
	return b.at(b.position)
}

// PeekPrevious returns the capture before the cursor, if any.
func (b *Browser) PeekPrevious() (capture.CaptureWithOCR, bool) {
	return b.at(b.position - 1)
}

// PeekNext returns the capture after the cursor, if any.
func (b *Browser) PeekNext() (capture.CaptureWithOCR, bool) {
	return b.at(b.position + 1)
}

// Advance moves forward one capture. At the last capture it returns false
// and the cursor stays put.
func (b *Browser) Advance() bool {
	if b.position+1 >= len(b.results) {
		return false
	}
	b.position++
	return true
}

// Retreat moves back one capture. At the first capture it returns false.
func (b *Browser) Retreat() bool {
	if b.position <= 0 {
		return false
	}
	b.position--
	return true
}

// Seek jumps to index i. Out-of-range indexes are rejected without moving.
func (b *Browser) Seek(i int) bool {
	if i < 0 || i >= len(b.results) {
		return false
	}
	b.position = i
	return true
}

// Position returns the cursor index.
func (b *Browser) Position() int { return b.position }

// Len returns the number of captures in the result set.
func (b *Browser) Len() int { return len(b.results) }

// Empty reports whether the last load matched nothing.
func (b *Browser) Empty() bool { return len(b.results) == 0 }

// Slice returns a copy of results[from:to], clamped to the result set.
func (b *Browser) Slice(from, to int) []capture.CaptureWithOCR {
	from = max(from, 0)
	to = min(to, len(b.results))
	if from >= to {
		return []capture.CaptureWithOCR{}
	}
	out := make([]capture.CaptureWithOCR, to-from)
	copy(out, b.results[from:to])
	return out
}

func (b *Browser) at(i int) (capture.CaptureWithOCR, bool) {
	if i < 0 || i >= len(b.results) {
		return capture.CaptureWithOCR{}, false
	}
	return b.results[i], true
}
