package server

import (
	"fmt"
	"image"

	"deedles.dev/tatami/core"
	"deedles.dev/tatami/wire"
)

const (
	subcompositorDestroy       = 0
	subcompositorGetSubsurface = 1
)

func bindSubcompositor(client *Client, g *Global, id wire.NewID) error {
	sub := wlSubcompositor{client: client}
	sub.SetID(id.ID)
	return client.store.Add(&sub)
}

type wlSubcompositor struct {
	client *Client
	id     uint32
}

func (sc *wlSubcompositor) ID() uint32        { return sc.id }
func (sc *wlSubcompositor) SetID(id uint32)   { sc.id = id }
func (sc *wlSubcompositor) Interface() string { return "wl_subcompositor" }
func (sc *wlSubcompositor) Destroy()          {}

func (sc *wlSubcompositor) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case subcompositorDestroy:
		sc.client.remove(sc.id)
		return nil

	case subcompositorGetSubsurface:
		id := msg.ReadUint()
		surfID := msg.ReadUint()
		parentID := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}

		surf, err := sc.client.surface(surfID)
		if err != nil {
			return err
		}
		parent, err := sc.client.surface(parentID)
		if err != nil {
			return err
		}

		if _, err := surf.surf.SetSubsurface(parent.surf); err != nil {
			return roleProtocolError(surfID, err)
		}

		sub := wlSubsurface{client: sc.client, res: surf}
		sub.SetID(id)
		return sc.client.store.Add(&sub)

	default:
		return wire.UnknownOpError{Interface: "wl_subcompositor", Op: msg.Op()}
	}
}

const (
	subsurfaceDestroy     = 0
	subsurfaceSetPosition = 1
	subsurfacePlaceAbove  = 2
	subsurfacePlaceBelow  = 3
	subsurfaceSetSync     = 4
	subsurfaceSetDesync   = 5
)

type wlSubsurface struct {
	client *Client
	id     uint32
	res    *wlSurface
}

func (sub *wlSubsurface) ID() uint32        { return sub.id }
func (sub *wlSubsurface) SetID(id uint32)   { sub.id = id }
func (sub *wlSubsurface) Interface() string { return "wl_subsurface" }
func (sub *wlSubsurface) Destroy()          {}

func (sub *wlSubsurface) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case subsurfaceDestroy:
		sub.client.remove(sub.id)
		return nil

	case subsurfaceSetPosition:
		x, y := msg.ReadInt(), msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		return sub.res.surf.SetPosition(image.Pt(int(x), int(y)))

	case subsurfacePlaceAbove, subsurfacePlaceBelow:
		sibID := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		sibling, err := sub.client.surface(sibID)
		if err != nil {
			return err
		}
		if msg.Op() == subsurfacePlaceAbove {
			return sub.res.surf.PlaceAbove(sibling.surf)
		}
		return sub.res.surf.PlaceBelow(sibling.surf)

	case subsurfaceSetSync:
		return sub.res.surf.SetSync(true)

	case subsurfaceSetDesync:
		return sub.res.surf.SetSync(false)

	default:
		return wire.UnknownOpError{Interface: "wl_subsurface", Op: msg.Op()}
	}
}

// surface resolves an object ID that the protocol requires to be a
// wl_surface.
func (client *Client) surface(id uint32) (*wlSurface, error) {
	obj, err := client.store.Get(id)
	if err != nil {
		return nil, err
	}
	res, ok := obj.(*wlSurface)
	if !ok {
		return nil, &core.ProtocolError{
			Object: id,
			Code:   core.ErrInvalidObject,
			Reason: fmt.Sprintf("object %v is not a wl_surface", id),
		}
	}
	return res, nil
}

// roleProtocolError converts a role violation during object creation,
// which the protocol defines as fatal, into a protocol error. Role
// violations on established objects stay non-fatal.
func roleProtocolError(object uint32, err error) error {
	return &core.ProtocolError{
		Object: object,
		Code:   core.ErrImplementation,
		Reason: err.Error(),
	}
}
