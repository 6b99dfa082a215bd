package imagestore

import (
	"fmt"
	"strconv"
	"strings"
)

// Size is a width x height in pixels.
type Size struct {
	W int `json:"width"`
	H int `json:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.W, s.H)
}

// Display boxes used by the views.
var (
	BoxPrimary = Size{W: 500, H: 500}
	BoxPreview = Size{W: 300, H: 300}
	BoxTable   = Size{W: 400, H: 600}
	BoxViewer  = Size{W: 1280, H: 960}
)

// Boxes maps the names accepted by --box and ?box= to display boxes.
var Boxes = map[string]Size{
	"primary": BoxPrimary,
	"preview": BoxPreview,
	"table":   BoxTable,
	"viewer":  BoxViewer,
}

// ParseBox accepts a named box or "WxH".
func ParseBox(s string) (Size, error) {
	if b, ok := Boxes[strings.ToLower(s)]; ok {
		return b, nil
	}
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return Size{}, fmt.Errorf("invalid box %q: want a name or WxH", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil || w <= 0 {
		return Size{}, fmt.Errorf("invalid box width %q", ws)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h <= 0 {
		return Size{}, fmt.Errorf("invalid box height %q", hs)
	}
	return Size{W: w, H: h}, nil
}

// Fit scales src down to fit inside box, preserving aspect ratio. Images
// already inside the box are returned unchanged; Fit never upscales.
func Fit(src, box Size) Size {
	if src.W <= 0 || src.H <= 0 || box.W <= 0 || box.H <= 0 {
		return Size{}
	}
	if src.W <= box.W && src.H <= box.H {
		return src
	}
	// Compare src.W/src.H with box.W/box.H without floats.
	if src.W*box.H >= src.H*box.W {
		return Size{W: box.W, H: max(1, roundDiv(src.H*box.W, src.W))}
	}
	return Size{W: max(1, roundDiv(src.W*box.H, src.H)), H: box.H}
}

func roundDiv(a, b int) int {
	return (a + b/2) / b
}
