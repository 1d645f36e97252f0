// Package wire deals with the framing of Wayland protocol messages.
// The compositor core never interprets raw bytes itself; it consumes
// MessageBuffers that have already been read off the socket and
// produces MessageBuilders to be written back.
package wire

import (
	"io"
	"unsafe"
)

func bytesOf[T ~int32 | ~uint32](v T) [4]byte {
	return *(*[4]byte)(unsafe.Pointer(&v))
}

func valueOf[T ~int32 | ~uint32](data [4]byte) T {
	return *(*T)(unsafe.Pointer(&data))
}

func read[T ~int32 | ~uint32](r io.Reader) (T, error) {
	var data [4]byte
	_, err := io.ReadFull(r, data[:])
	if err != nil {
		return 0, err
	}

	return valueOf[T](data), nil
}

func write[T ~int32 | ~uint32](w io.Writer, v T) error {
	data := bytesOf(v)
	n, err := w.Write(data[:])
	if (err == nil) && (n < len(data)) {
		return io.ErrShortWrite
	}
	return err
}

func padding(length uint32) uint32 {
	return (4 - (length % 4)) % 4
}

// NewID identifies an object being created by a request whose
// interface is not fixed by the protocol.
type NewID struct {
	Interface string
	Version   uint32
	ID        uint32
}

// Object represents a server-side Wayland protocol object. Identity
// is the pair of the owning connection and the ID; the connection
// half is implicit in which store the object lives in.
type Object interface {
	ID() uint32
	SetID(id uint32)

	// Interface is the name of the object's protocol interface, such
	// as "wl_surface".
	Interface() string

	// Dispatch performs the request carried by the message.
	Dispatch(msg *MessageBuffer) error

	// Destroy tears the object down, cascading to objects it owns.
	// It must be safe to call exactly once.
	Destroy()
}
