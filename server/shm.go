package server

import (
	"fmt"
	"image"

	"deedles.dev/tatami/core"
	"deedles.dev/tatami/shm"
	"deedles.dev/tatami/wire"
)

const (
	shmCreatePool = 0

	shmEvtFormat = 0

	shmErrInvalidFormat = 0
	shmErrInvalidStride = 1
	shmErrInvalidFd     = 2
)

var shmFormats = []core.Format{core.FormatARGB8888, core.FormatXRGB8888}

func bindShm(client *Client, g *Global, id wire.NewID) error {
	res := wlShm{client: client}
	res.SetID(id.ID)
	if err := client.store.Add(&res); err != nil {
		return err
	}
	for _, f := range shmFormats {
		msg := wire.NewMessage(&res, shmEvtFormat)
		msg.Method = "format"
		msg.WriteUint(uint32(f))
		client.send(msg)
	}
	return nil
}

type wlShm struct {
	client *Client
	id     uint32
}

func (res *wlShm) ID() uint32        { return res.id }
func (res *wlShm) SetID(id uint32)   { res.id = id }
func (res *wlShm) Interface() string { return "wl_shm" }
func (res *wlShm) Destroy()          {}

func (res *wlShm) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case shmCreatePool:
		id := msg.ReadUint()
		file := msg.ReadFile()
		size := msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}

		pool, err := shm.NewPool(file, size)
		if err != nil {
			file.Close()
			return &core.ProtocolError{
				Object: res.id,
				Code:   shmErrInvalidFd,
				Reason: fmt.Sprintf("mmap pool: %v", err),
			}
		}

		wp := wlShmPool{client: res.client, pool: pool}
		wp.SetID(id)
		return res.client.store.Add(&wp)

	default:
		return wire.UnknownOpError{Interface: "wl_shm", Op: msg.Op()}
	}
}

const (
	shmPoolCreateBuffer = 0
	shmPoolDestroy      = 1
	shmPoolResize       = 2
)

type wlShmPool struct {
	client *Client
	id     uint32
	pool   *shm.Pool
}

func (res *wlShmPool) ID() uint32        { return res.id }
func (res *wlShmPool) SetID(id uint32)   { res.id = id }
func (res *wlShmPool) Interface() string { return "wl_shm_pool" }

func (res *wlShmPool) Destroy() {
	res.pool.Destroy()
}

func (res *wlShmPool) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case shmPoolCreateBuffer:
		id := msg.ReadUint()
		offset := msg.ReadInt()
		width, height := msg.ReadInt(), msg.ReadInt()
		stride := msg.ReadInt()
		format := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}

		if core.Format(format) != core.FormatARGB8888 && core.Format(format) != core.FormatXRGB8888 {
			return &core.ProtocolError{
				Object: res.id,
				Code:   shmErrInvalidFormat,
				Reason: fmt.Sprintf("unsupported format %#x", format),
			}
		}

		view, err := res.pool.View(offset, width, height, stride, core.Format(format))
		if err != nil {
			return &core.ProtocolError{
				Object: res.id,
				Code:   shmErrInvalidStride,
				Reason: err.Error(),
			}
		}

		wb := wlBuffer{client: res.client}
		wb.SetID(id)
		wb.buf = &core.Buffer{
			Size:    image.Pt(int(width), int(height)),
			Format:  core.Format(format),
			Source:  view,
			Release: func(*core.Buffer) { wb.release() },
		}
		return res.client.store.Add(&wb)

	case shmPoolDestroy:
		res.client.remove(res.id)
		return nil

	case shmPoolResize:
		size := msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		return res.pool.Resize(size)

	default:
		return wire.UnknownOpError{Interface: "wl_shm_pool", Op: msg.Op()}
	}
}

const (
	bufferDestroy = 0

	bufferEvtRelease = 0
)

type wlBuffer struct {
	client *Client
	id     uint32
	buf    *core.Buffer
}

func (res *wlBuffer) ID() uint32        { return res.id }
func (res *wlBuffer) SetID(id uint32)   { res.id = id }
func (res *wlBuffer) Interface() string { return "wl_buffer" }

func (res *wlBuffer) Destroy() {
	res.buf.Destroy()
}

func (res *wlBuffer) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case bufferDestroy:
		res.client.remove(res.id)
		return nil

	default:
		return wire.UnknownOpError{Interface: "wl_buffer", Op: msg.Op()}
	}
}

func (res *wlBuffer) release() {
	msg := wire.NewMessage(res, bufferEvtRelease)
	msg.Method = "release"
	res.client.send(msg)
}
