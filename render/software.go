// Package render implements the default software renderer: committed
// client buffers are blitted back-to-front into a per-output
// framebuffer. It exists so the compositor runs headless and so tests
// can assert on composited output; a GPU renderer satisfies the same
// interface.
package render

import (
	"image"
	"image/color"

	"deedles.dev/tatami/core"
	"deedles.dev/tatami/scene"
	xdraw "golang.org/x/image/draw"
)

type Software struct {
	// Background fills the parts of an output no surface covers.
	Background color.Color

	fbs map[*core.Output]*image.RGBA
}

func NewSoftware() *Software {
	return &Software{
		Background: color.Black,
		fbs:        make(map[*core.Output]*image.RGBA),
	}
}

// Framebuffer returns the last composited frame for out.
func (r *Software) Framebuffer(out *core.Output) *image.RGBA {
	return r.fbs[out]
}

func (r *Software) fb(out *core.Output) *image.RGBA {
	fb := r.fbs[out]
	if fb == nil || fb.Bounds().Size() != out.Geometry.Size() {
		fb = image.NewRGBA(image.Rectangle{Max: out.Geometry.Size()})
		r.fbs[out] = fb
	}
	return fb
}

// Render composites the frame's nodes back-to-front and reports
// completion before returning. Buffers whose source is already gone
// are skipped; the frame still completes.
func (r *Software) Render(f *scene.Frame, done func(error)) {
	done(r.render(f))
}

func (r *Software) render(f *scene.Frame) error {
	fb := r.fb(f.Output)
	xdraw.Draw(fb, fb.Bounds(), image.NewUniform(r.Background), image.Point{}, xdraw.Src)

	for _, n := range f.Nodes {
		st := n.Surface.Committed()
		if st.Buffer == nil || st.Buffer.Source == nil {
			continue
		}
		src := st.Buffer.Source.Image()
		dst := n.Dst.Sub(f.Output.Geometry.Min)

		if src.Bounds().Size() == dst.Size() {
			xdraw.Draw(fb, dst, src, src.Bounds().Min, xdraw.Over)
			continue
		}
		xdraw.NearestNeighbor.Scale(fb, dst, src, src.Bounds(), xdraw.Over, nil)
	}
	return nil
}
