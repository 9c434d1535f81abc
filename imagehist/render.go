package imagehist

import (
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/TrevorS/colorhist"
)

// Projection image layout: three 256x256 planes side by side (R/G, R/B, G/B).
const (
	ProjectionWidth  = 256 * 3
	ProjectionHeight = 256

	// inkScale converts accumulated weight into ink coverage per projected
	// pixel.
	inkScale = 0.15 / 256
)

var basePalette = []color.NRGBA{
	{255, 0, 0, 255},
	{0, 255, 0, 255},
	{0, 0, 255, 255},
	{255, 255, 0, 255},
	{0, 255, 255, 255},
	{255, 0, 255, 255},
	{255, 127, 127, 255},
	{127, 127, 255, 255},
	{127, 255, 127, 255},
}

// Palette returns k distinct display colors for clusters. The first nine are
// fixed primaries and pastels; the rest are evenly spaced hues.
func Palette(k int) []color.NRGBA {
	out := make([]color.NRGBA, 0, k)
	for i := 0; i < k && i < len(basePalette); i++ {
		out = append(out, basePalette[i])
	}
	extra := k - len(out)
	for i := 0; i < extra; i++ {
		// Offset the hues so they fall between the fixed primaries.
		h := 15 + float64(i)*360/float64(extra)
		r, g, b := colorful.Hsv(h, 0.55, 0.8).Clamped().RGB255()
		out = append(out, color.NRGBA{r, g, b, 255})
	}
	return out
}

// Recolor paints every pixel of img with its cluster's palette color. Pixels
// whose color is missing from labels keep their original color.
func Recolor(img image.Image, labels map[colorhist.Key[uint8]]int, palette []color.NRGBA) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.At(x, y)
			if label, ok := labels[PixelKey(c)]; ok {
				out.SetNRGBA(x, y, palette[label])
				continue
			}
			out.Set(x, y, c)
		}
	}
	return out
}

// Projection draws the histogram as three planes (R/G, R/B, G/B) on a white
// background, darkening each projected pixel by the weight that lands on it.
// With nil labels the ink is black; otherwise each key is drawn in its
// cluster's palette color.
func Projection(view colorhist.View[uint8], labels []int, palette []color.NRGBA) *image.NRGBA {
	acc := make([][3]float64, ProjectionWidth*ProjectionHeight)
	for i := 0; i < view.Len(); i++ {
		e := view.At(i)
		ink := color.NRGBA{0, 0, 0, 255}
		if labels != nil {
			ink = palette[labels[i]]
		}
		alpha := min(e.Count*inkScale, 1)
		r, g, b := int(e.Key.At(0)), int(e.Key.At(1)), int(e.Key.At(2))
		for _, p := range [3][2]int{
			{r, 255 - g},
			{256 + r, 255 - b},
			{512 + g, 255 - b},
		} {
			px := &acc[p[1]*ProjectionWidth+p[0]]
			px[0] += alpha * (255 - float64(ink.R))
			px[1] += alpha * (255 - float64(ink.G))
			px[2] += alpha * (255 - float64(ink.B))
		}
	}

	out := image.NewNRGBA(image.Rect(0, 0, ProjectionWidth, ProjectionHeight))
	for i, px := range acc {
		out.SetNRGBA(i%ProjectionWidth, i/ProjectionWidth, color.NRGBA{
			R: clampByte(255 - px[0]),
			G: clampByte(255 - px[1]),
			B: clampByte(255 - px[2]),
			A: 255,
		})
	}
	return out
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}
