package chart

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/vgimg"
)

// RenderPNG rasterizes shapes onto a white width x height canvas and writes
// it as PNG
func RenderPNG(w io.Writer, shapes []Shape, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid canvas size %dx%d", width, height)
	}

	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(width), vg.Length(height)),
		vgimg.UseDPI(int(vg.Inch.Points())),
		vgimg.UseBackgroundColor(color.White),
	)
	h := float64(height)

	for _, s := range shapes {
		switch s := s.(type) {
		case Rect:
			var p vg.Path
			p.Move(point(s.X, s.Y, h))
			p.Line(point(s.X+s.W, s.Y, h))
			p.Line(point(s.X+s.W, s.Y+s.H, h))
			p.Line(point(s.X, s.Y+s.H, h))
			p.Close()
			c.SetColor(s.Fill)
			c.Fill(p)

		case Line:
			var p vg.Path
			p.Move(point(s.X1, s.Y1, h))
			p.Line(point(s.X2, s.Y2, h))
			c.SetColor(s.Stroke)
			c.SetLineWidth(vg.Length(s.Width))
			if s.Dashed {
				c.SetLineDash([]vg.Length{4, 4}, 0)
			} else {
				c.SetLineDash(nil, 0)
			}
			c.Stroke(p)

		case Marker:
			center := point(s.X, s.Y, h)
			r := vg.Length(s.Radius)
			var p vg.Path
			p.Move(vg.Point{X: center.X + r, Y: center.Y})
			p.Arc(center, r, 0, 2*math.Pi)
			p.Close()
			fill := s.Fill
			fill.A = uint8(math.Round(float64(fill.A) * clamp01(s.Opacity)))
			c.SetColor(fill)
			c.Fill(p)
		}
	}

	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(w); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}

// point flips a top-left canvas coordinate into vg's bottom-left space.
// The canvas runs at 72 DPI so one point is one pixel.
func point(x, y, height float64) vg.Point {
	return vg.Point{X: vg.Length(x), Y: vg.Length(height - y)}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
