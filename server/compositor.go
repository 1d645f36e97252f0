package server

import (
	"fmt"
	"image"

	"deedles.dev/tatami/core"
	"deedles.dev/tatami/wire"
)

const (
	compositorCreateSurface = 0
	compositorCreateRegion  = 1
)

func bindCompositor(client *Client, g *Global, id wire.NewID) error {
	comp := wlCompositor{client: client}
	comp.SetID(id.ID)
	return client.store.Add(&comp)
}

type wlCompositor struct {
	client *Client
	id     uint32
}

func (comp *wlCompositor) ID() uint32        { return comp.id }
func (comp *wlCompositor) SetID(id uint32)   { comp.id = id }
func (comp *wlCompositor) Interface() string { return "wl_compositor" }
func (comp *wlCompositor) Destroy()          {}

func (comp *wlCompositor) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case compositorCreateSurface:
		id := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}

		res := wlSurface{client: comp.client, surf: core.NewSurface()}
		res.SetID(id)
		if err := comp.client.store.Add(&res); err != nil {
			return err
		}
		res.surf.Listener = &res
		comp.client.server.surfaces[res.surf] = &res
		return nil

	case compositorCreateRegion:
		id := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}

		reg := wlRegion{client: comp.client, region: new(core.Region)}
		reg.SetID(id)
		return comp.client.store.Add(&reg)

	default:
		return wire.UnknownOpError{Interface: "wl_compositor", Op: msg.Op()}
	}
}

const (
	regionDestroy  = 0
	regionAdd      = 1
	regionSubtract = 2
)

type wlRegion struct {
	client *Client
	id     uint32
	region *core.Region
}

func (reg *wlRegion) ID() uint32        { return reg.id }
func (reg *wlRegion) SetID(id uint32)   { reg.id = id }
func (reg *wlRegion) Interface() string { return "wl_region" }
func (reg *wlRegion) Destroy()          {}

func (reg *wlRegion) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case regionDestroy:
		reg.client.remove(reg.id)
		return nil

	case regionAdd, regionSubtract:
		x, y := msg.ReadInt(), msg.ReadInt()
		w, h := msg.ReadInt(), msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		r := image.Rect(int(x), int(y), int(x+w), int(y+h))
		if msg.Op() == regionAdd {
			reg.region.Add(r)
		} else {
			reg.region.Subtract(r)
		}
		return nil

	default:
		return wire.UnknownOpError{Interface: "wl_region", Op: msg.Op()}
	}
}

const (
	surfaceDestroy            = 0
	surfaceAttach             = 1
	surfaceDamage             = 2
	surfaceFrame              = 3
	surfaceSetOpaqueRegion    = 4
	surfaceSetInputRegion     = 5
	surfaceCommit             = 6
	surfaceSetBufferTransform = 7
	surfaceSetBufferScale     = 8
	surfaceDamageBuffer       = 9
	surfaceOffset             = 10

	surfaceEvtEnter = 0
	surfaceEvtLeave = 1

	surfaceErrInvalidScale     = 0
	surfaceErrInvalidTransform = 1
)

type wlSurface struct {
	client *Client
	id     uint32
	surf   *core.Surface
}

func (res *wlSurface) ID() uint32        { return res.id }
func (res *wlSurface) SetID(id uint32)   { res.id = id }
func (res *wlSurface) Interface() string { return "wl_surface" }

func (res *wlSurface) Destroy() {
	res.surf.Destroy()
}

func (res *wlSurface) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case surfaceDestroy:
		res.client.remove(res.id)
		return nil

	case surfaceAttach:
		bufID := msg.ReadUint()
		x, y := msg.ReadInt(), msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}

		var buf *core.Buffer
		if bufID != 0 {
			obj, err := res.client.store.Get(bufID)
			if err != nil {
				return err
			}
			wb, ok := obj.(*wlBuffer)
			if !ok {
				return &core.ProtocolError{
					Object: res.id,
					Code:   core.ErrInvalidObject,
					Reason: fmt.Sprintf("attach of non-buffer object %v", bufID),
				}
			}
			buf = wb.buf
		}
		res.surf.Attach(buf, image.Pt(int(x), int(y)))
		return nil

	case surfaceDamage:
		x, y := msg.ReadInt(), msg.ReadInt()
		w, h := msg.ReadInt(), msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		res.surf.Damage(image.Rect(int(x), int(y), int(x+w), int(y+h)))
		return nil

	case surfaceDamageBuffer:
		x, y := msg.ReadInt(), msg.ReadInt()
		w, h := msg.ReadInt(), msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		res.surf.DamageBuffer(image.Rect(int(x), int(y), int(x+w), int(y+h)))
		return nil

	case surfaceFrame:
		id := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}

		cb := wlCallback{client: res.client}
		cb.SetID(id)
		if err := res.client.store.Add(&cb); err != nil {
			return err
		}
		res.surf.Frame(&core.FrameCallback{Done: cb.done})
		return nil

	case surfaceSetOpaqueRegion, surfaceSetInputRegion:
		regID := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}

		var region *core.Region
		if regID != 0 {
			obj, err := res.client.store.Get(regID)
			if err != nil {
				return err
			}
			wr, ok := obj.(*wlRegion)
			if !ok {
				return &core.ProtocolError{
					Object: res.id,
					Code:   core.ErrInvalidObject,
					Reason: fmt.Sprintf("object %v is not a region", regID),
				}
			}
			region = wr.region
		}
		if msg.Op() == surfaceSetOpaqueRegion {
			res.surf.SetOpaqueRegion(region)
		} else {
			res.surf.SetInputRegion(region)
		}
		return nil

	case surfaceCommit:
		return res.surf.Commit()

	case surfaceSetBufferTransform:
		transform := msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		if transform < 0 || transform > 7 {
			return &core.ProtocolError{
				Object: res.id,
				Code:   surfaceErrInvalidTransform,
				Reason: fmt.Sprintf("invalid buffer transform %v", transform),
			}
		}
		// Output rotation is not implemented; normal is the only
		// transform actually composited.
		return nil

	case surfaceSetBufferScale:
		scale := msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		if scale < 1 {
			return &core.ProtocolError{
				Object: res.id,
				Code:   surfaceErrInvalidScale,
				Reason: fmt.Sprintf("invalid buffer scale %v", scale),
			}
		}
		res.surf.SetScale(scale)
		return nil

	case surfaceOffset:
		x, y := msg.ReadInt(), msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		res.surf.Pending().Offset = image.Pt(int(x), int(y))
		return nil

	default:
		return wire.UnknownOpError{Interface: "wl_surface", Op: msg.Op()}
	}
}

func (res *wlSurface) enter(out *core.Output) {
	for _, wo := range res.client.outputs[out] {
		msg := wire.NewMessage(res, surfaceEvtEnter)
		msg.Method = "enter"
		msg.WriteObject(wo)
		res.client.send(msg)
	}
}

func (res *wlSurface) leave(out *core.Output) {
	for _, wo := range res.client.outputs[out] {
		msg := wire.NewMessage(res, surfaceEvtLeave)
		msg.Method = "leave"
		msg.WriteObject(wo)
		res.client.send(msg)
	}
}

// Committed implements core.SurfaceListener.
func (res *wlSurface) Committed(s *core.Surface) {
	server := res.client.server
	if out := server.wm.OutputFor(s); out != nil {
		server.sched.Dirty(out)
		return
	}
	if s.Mapped() {
		server.sched.DirtyAll()
	}
}

func (res *wlSurface) Mapped(s *core.Surface) {
	server := res.client.server
	if s.Role() == core.RoleToplevel {
		server.wm.Map(s)
	}
	if out := server.wm.OutputFor(s); out != nil {
		res.enter(out)
		server.sched.Dirty(out)
	}
}

func (res *wlSurface) Unmapped(s *core.Surface) {
	server := res.client.server
	out := server.wm.OutputFor(s)
	server.wm.Unmap(s)
	if out != nil {
		res.leave(out)
		server.sched.Dirty(out)
	}
}

func (res *wlSurface) Destroyed(s *core.Surface) {
	server := res.client.server
	server.wm.Unmap(s)
	server.router.SurfaceDestroyed(s)
	delete(server.surfaces, s)
	server.sched.DirtyAll()
}
