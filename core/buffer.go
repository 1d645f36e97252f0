package core

import "image"

// Format identifies the pixel format of a buffer, using the wl_shm
// format codes.
type Format uint32

const (
	FormatARGB8888 Format = 0
	FormatXRGB8888 Format = 1
)

// Source provides read-only access to a buffer's pixel data. The
// shm package implements it for shared-memory buffers; tests use
// in-memory fakes.
type Source interface {
	Image() image.Image
	Close()
}

// Buffer is an opaque handle to client-provided pixel data. Surfaces
// reference it read-only. The reference count covers surface state
// (pending, committed, cached) and in-flight renders; when it drops
// to zero the client is owed exactly one release notification.
type Buffer struct {
	Size   image.Point
	Format Format
	Source Source

	// Release delivers the buffer release notification to the owning
	// client. It is invoked on the core loop, never concurrently.
	Release func(*Buffer)

	refs      int
	destroyed bool
}

func (b *Buffer) Ref() {
	b.refs++
}

// Unref drops one reference. On the last one the owed release event
// fires, or, if the client already destroyed the buffer, the backing
// storage is finally torn down (deferred destruction while a render
// was in flight).
func (b *Buffer) Unref() {
	if b.refs <= 0 {
		panic("buffer reference count underflow")
	}
	b.refs--
	if b.refs > 0 {
		return
	}
	if b.destroyed {
		b.teardown()
		return
	}
	if b.Release != nil {
		b.Release(b)
	}
}

// InUse reports whether any surface state or in-flight render still
// references the buffer.
func (b *Buffer) InUse() bool {
	return b.refs > 0
}

// Destroy handles the client destroying the buffer object. If the
// buffer is still referenced, teardown is deferred until the last
// reference is dropped; no release event is owed after this.
func (b *Buffer) Destroy() {
	b.destroyed = true
	b.Release = nil
	if b.refs == 0 {
		b.teardown()
	}
}

func (b *Buffer) teardown() {
	if b.Source != nil {
		b.Source.Close()
		b.Source = nil
	}
}
