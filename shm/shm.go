// Package shm gives the compositor read access to the shared-memory
// pools clients pass over the wire. A pool stays mapped while any
// buffer created from it is alive, even after the client destroys the
// pool object itself.
package shm

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

type Mmap []byte

func Map(file *os.File, size int, prot int) (mmap Mmap, err error) {
	sc, err := file.SyscallConn()
	if err != nil {
		return nil, err
	}

	sc.Control(func(fd uintptr) {
		m, merr := unix.Mmap(int(fd), 0, size, prot, unix.MAP_SHARED)
		mmap, err = Mmap(m), merr
	})

	return mmap, err
}

func (mmap Mmap) Unmap() error {
	return unix.Munmap(mmap)
}

// Pool is a client shared-memory pool mapped into the compositor.
type Pool struct {
	file *os.File
	mmap Mmap
	size int32
	refs int
	dead bool
}

// NewPool maps size bytes of file read-only. The file descriptor was
// received over the wire; the pool takes ownership of it.
func NewPool(file *os.File, size int32) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid pool size: %v", size)
	}
	mmap, err := Map(file, int(size), unix.PROT_READ)
	if err != nil {
		return nil, fmt.Errorf("mmap pool: %w", err)
	}
	return &Pool{
		file: file,
		mmap: mmap,
		size: size,
	}, nil
}

func (p *Pool) Size() int32 {
	return p.size
}

// Resize remaps the pool at its new, larger size. The protocol only
// allows pools to grow.
func (p *Pool) Resize(size int32) error {
	if size < p.size {
		return fmt.Errorf("pool shrunk from %v to %v", p.size, size)
	}
	if size == p.size {
		return nil
	}
	if err := p.mmap.Unmap(); err != nil {
		return fmt.Errorf("unmap pool: %w", err)
	}
	mmap, err := Map(p.file, int(size), unix.PROT_READ)
	if err != nil {
		return fmt.Errorf("remap pool: %w", err)
	}
	p.mmap = mmap
	p.size = size
	return nil
}

// Destroy handles the client destroying the pool object. The mapping
// survives until the last view into it is closed.
func (p *Pool) Destroy() {
	p.dead = true
	p.release()
}

func (p *Pool) release() {
	if !p.dead || p.refs > 0 || p.mmap == nil {
		return
	}
	p.mmap.Unmap()
	p.mmap = nil
	p.file.Close()
}
