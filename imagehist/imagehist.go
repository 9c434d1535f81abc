// Package imagehist feeds decoded images into a colorhist.Histogram and
// renders clustering results back into images.
package imagehist

import (
	"image"
	"image/color"
	_ "image/gif" // register GIF decoding
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/bmp"

	"github.com/TrevorS/colorhist"
)

// Load decodes the image file at path. PNG, JPEG, GIF and BMP are supported.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open image %s", path)
	}
	defer f.Close()
	img, _, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return img, nil
}

// Decode decodes an image and returns it with its format name.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", errors.Wrap(err, "decode image")
	}
	return img, format, nil
}

// Save encodes img to path, choosing the format from the file extension
// (.png, .bmp, .jpg/.jpeg).
func Save(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := Encode(f, filepath.Ext(path), img); err != nil {
		f.Close()
		return errors.Wrapf(err, "save %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}

// Encode writes img in the format named by ext.
func Encode(w io.Writer, ext string, img image.Image) error {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "png":
		return png.Encode(w, img)
	case "bmp":
		return bmp.Encode(w, img)
	case "jpg", "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	default:
		return errors.Errorf("unsupported image format %q", ext)
	}
}

// PixelKey returns the 8-bit RGB triple of c as a histogram key. Alpha is
// ignored.
func PixelKey(c color.Color) colorhist.Key[uint8] {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return colorhist.MustKey(n.R, n.G, n.B)
}

// FromImage builds a histogram of img's RGB triples, one unit of weight per
// pixel.
func FromImage(img image.Image, opts ...colorhist.Option) (*colorhist.Histogram[uint8], error) {
	h, err := colorhist.New[uint8](3, opts...)
	if err != nil {
		return nil, err
	}
	Accumulate(h, img)
	return h, nil
}

// Accumulate adds one unit of weight per pixel of img to h.
func Accumulate(h *colorhist.Histogram[uint8], img image.Image) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			h.Add(1, PixelKey(img.At(x, y)))
		}
	}
}
