package shm

import (
	"os"
	"testing"

	"deedles.dev/tatami/core"
	ximage "deedles.dev/ximage/format"
)

func tempPool(t *testing.T, size int32) *Pool {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "pool")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		t.Fatal(err)
	}
	p, err := NewPool(f, size)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	t.Cleanup(p.Destroy)
	return p
}

func TestPoolRejectsBadSize(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "pool")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := NewPool(f, 0); err == nil {
		t.Error("zero-size pool accepted")
	}
	if _, err := NewPool(f, -4); err == nil {
		t.Error("negative-size pool accepted")
	}
}

func TestViewValidation(t *testing.T) {
	p := tempPool(t, 64)

	cases := []struct {
		name                 string
		offset, w, h, stride int32
		format               core.Format
	}{
		{"exceeds pool", 0, 4, 8, 16, core.FormatARGB8888},
		{"offset pushes out", 32, 2, 4, 8, core.FormatARGB8888},
		{"negative offset", -4, 2, 2, 8, core.FormatARGB8888},
		{"stride under width", 0, 4, 2, 8, core.FormatARGB8888},
		{"zero width", 0, 0, 2, 8, core.FormatARGB8888},
		{"unknown format", 0, 2, 2, 8, core.Format(0x34325258)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := p.View(c.offset, c.w, c.h, c.stride, c.format); err == nil {
				t.Errorf("view %+v accepted", c)
			}
		})
	}

	v, err := p.View(0, 2, 2, 8, core.FormatARGB8888)
	if err != nil {
		t.Fatalf("valid view rejected: %v", err)
	}
	v.Close()
}

func TestViewRejectsOverflowingSize(t *testing.T) {
	p := tempPool(t, 4096)

	// stride*height wraps int32; the view must still be rejected, not
	// blow up on first pixel access.
	cases := []struct {
		name                 string
		offset, w, h, stride int32
	}{
		{"stride times height wraps", 0, 1, 1 << 20, 4096},
		{"width times four wraps", 0, 1 << 29, 1, 16},
		{"offset plus size wraps", 1 << 30, 4, 4, 1 << 29},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			v, err := p.View(c.offset, c.w, c.h, c.stride, core.FormatARGB8888)
			if err == nil {
				v.Image()
				t.Errorf("view %+v accepted", c)
			}
			if p.refs != 0 {
				t.Errorf("rejected view left %v refs on the pool", p.refs)
			}
		})
	}
}

func TestViewPixels(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "pool")
	if err != nil {
		t.Fatal(err)
	}
	// Two 2-pixel rows with a padded stride of 12 bytes.
	data := []byte{
		1, 2, 3, 4, 5, 6, 7, 8, 0xaa, 0xaa, 0xaa, 0xaa,
		9, 10, 11, 12, 13, 14, 15, 16, 0xbb, 0xbb, 0xbb, 0xbb,
	}
	if _, err := f.Write(data); err != nil {
		t.Fatal(err)
	}
	p, err := NewPool(f, int32(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Destroy()

	v, err := p.View(0, 2, 2, 12, core.FormatARGB8888)
	if err != nil {
		t.Fatal(err)
	}
	defer v.Close()

	img, ok := v.Image().(*ximage.Image)
	if !ok {
		t.Fatalf("view image is %T", v.Image())
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	if string(img.Pix) != string(want) {
		t.Errorf("padding not stripped: got % x, want % x", img.Pix, want)
	}
}

func TestPoolOutlivesDestroyWhileViewed(t *testing.T) {
	p := tempPool(t, 64)
	v, err := p.View(0, 2, 2, 8, core.FormatARGB8888)
	if err != nil {
		t.Fatal(err)
	}

	p.Destroy()
	if p.mmap == nil {
		t.Fatal("pool unmapped while a view exists")
	}
	if v.Image().Bounds().Dx() != 2 {
		t.Error("view unusable after pool destroy")
	}

	v.Close()
	if p.mmap != nil {
		t.Error("pool still mapped after last view closed")
	}
}

func TestResizeOnlyGrows(t *testing.T) {
	p := tempPool(t, 32)
	if err := p.file.Truncate(64); err != nil {
		t.Fatal(err)
	}
	if err := p.Resize(64); err != nil {
		t.Fatalf("grow: %v", err)
	}
	if p.Size() != 64 {
		t.Errorf("size %v after grow", p.Size())
	}
	if err := p.Resize(32); err == nil {
		t.Error("shrink accepted")
	}
}
