package ops

import (
	"context"

	"github.com/hpungsan/recall/internal/imagestore"
)

// SearchInput contains parameters for the Search operation.
type SearchInput struct {
	Range  RangeInput
	Limit  int
	Offset int
}

// SearchOutput is a page of frames matching a time range.
type SearchOutput struct {
	Items      []Frame    `json:"items"`
	Pagination Pagination `json:"pagination"`
	Range      *TimeRange `json:"range"`
	Message    string     `json:"message,omitempty"`
}

// Search lists captures with images inside a time range, in browsing
// order. A range with no captures returns an empty page and the
// "no images in range" message, not an error.
func Search(ctx context.Context, v *Viewer, input SearchInput) (*SearchOutput, error) {
	rng, err := v.ResolveRange(input.Range)
	if err != nil {
		return nil, err
	}
	b, _, err := Load(ctx, v, RangeInput{StartMs: &rng.StartMs, EndMs: &rng.EndMs})
	if err != nil {
		return nil, err
	}

	limit := v.clampLimit(input.Limit)
	offset := max(input.Offset, 0)
	page := b.Slice(offset, offset+limit)

	items := make([]Frame, 0, len(page))
	for i, c := range page {
		items = append(items, *v.Frame(c, offset+i, imagestore.BoxTable))
	}

	out := &SearchOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < b.Len(),
			Total:   b.Len(),
		},
		Range: rng,
	}
	if b.Empty() {
		out.Message = PlaceholderNoResults
	}
	return out, nil
}
