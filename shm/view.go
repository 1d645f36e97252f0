package shm

import (
	"fmt"
	"image"

	"deedles.dev/tatami/core"
	ximage "deedles.dev/ximage/format"
)

// View is one buffer's window into a pool. It implements core.Source
// so the renderer can treat client pixels as an image. Views pin the
// pool mapping; closing the last view of a destroyed pool unmaps it.
type View struct {
	pool    *Pool
	offset  int32
	w, h    int32
	stride  int32
	format  core.Format
	closed  bool
}

// View creates a buffer view into the pool, validating that it fits
// entirely inside the mapped region.
func (p *Pool) View(offset, width, height, stride int32, format core.Format) (*View, error) {
	if p.mmap == nil {
		return nil, fmt.Errorf("view into destroyed pool")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid buffer size: %vx%v", width, height)
	}
	if int64(stride) < int64(width)*4 {
		return nil, fmt.Errorf("stride %v too small for width %v", stride, width)
	}
	// 64-bit arithmetic: stride*height can wrap int32 for sizes a
	// client is free to claim.
	if need := int64(stride) * int64(height); offset < 0 || int64(offset)+need > int64(p.size) {
		return nil, fmt.Errorf("buffer of %v bytes at offset %v exceeds pool size %v", need, offset, p.size)
	}
	switch format {
	case core.FormatARGB8888, core.FormatXRGB8888:
	default:
		return nil, fmt.Errorf("unsupported buffer format: %v", format)
	}

	p.refs++
	return &View{
		pool:   p,
		offset: offset,
		w:      width,
		h:      height,
		stride: stride,
		format: format,
	}, nil
}

func (v *View) Bounds() image.Rectangle {
	return image.Rect(0, 0, int(v.w), int(v.h))
}

// Image returns the client's pixels as an image. Tightly packed
// buffers are viewed zero-copy; padded rows are repacked.
func (v *View) Image() image.Image {
	if v.closed || v.pool.mmap == nil {
		return image.NewRGBA(v.Bounds())
	}
	pix := v.pix()
	return &ximage.Image{
		Format: ximage.ARGB8888,
		Rect:   v.Bounds(),
		Pix:    pix,
	}
}

func (v *View) pix() []byte {
	data := v.pool.mmap[v.offset:]
	if v.stride == v.w*4 {
		return data[:v.w*4*v.h]
	}
	tight := make([]byte, v.w*4*v.h)
	for y := int32(0); y < v.h; y++ {
		copy(tight[y*v.w*4:(y+1)*v.w*4], data[y*v.stride:y*v.stride+v.w*4])
	}
	return tight
}

func (v *View) Close() {
	if v.closed {
		return
	}
	v.closed = true
	v.pool.refs--
	v.pool.release()
}
