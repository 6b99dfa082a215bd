package imagestore

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/hpungsan/recall/internal/errors"
)

// Raster is a fully decoded image.
type Raster struct {
	Image  image.Image
	Format string
	Size   Size
}

// Decoder turns an image file into a Raster.
type Decoder interface {
	Decode(ctx context.Context, path string) (*Raster, error)
}

// FileDecoder decodes JPEG, PNG, GIF and WebP files from disk.
type FileDecoder struct{}

// Decode reads path. A missing file is MISSING_ASSET and unreadable bytes
// are DECODE_FAILURE; no partial raster is ever returned.
func (FileDecoder) Decode(ctx context.Context, path string) (*Raster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !Exists(path) {
		return nil, errors.NewMissingAsset(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewMissingAsset(path)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, errors.NewDecodeFailure(path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := img.Bounds()
	return &Raster{Image: img, Format: format, Size: Size{W: b.Dx(), H: b.Dy()}}, nil
}

// DecodeConfig reads only the header of path to learn its dimensions.
func DecodeConfig(path string) (Size, string, error) {
	if !Exists(path) {
		return Size{}, "", errors.NewMissingAsset(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return Size{}, "", errors.NewMissingAsset(path)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return Size{}, "", errors.NewDecodeFailure(path, err)
	}
	return Size{W: cfg.Width, H: cfg.Height}, format, nil
}

// Scale returns r resized with Fit into box. A raster already inside the
// box is returned as is.
func Scale(r *Raster, box Size) image.Image {
	dst := Fit(r.Size, box)
	if dst == r.Size || dst.W == 0 {
		return r.Image
	}
	out := image.NewRGBA(image.Rect(0, 0, dst.W, dst.H))
	draw.CatmullRom.Scale(out, out.Bounds(), r.Image, r.Image.Bounds(), draw.Over, nil)
	return out
}
