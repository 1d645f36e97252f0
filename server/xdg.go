package server

import (
	"encoding/binary"
	"image"

	"deedles.dev/tatami/core"
	"deedles.dev/tatami/input"
	"deedles.dev/tatami/wire"
)

const (
	wmBaseDestroy          = 0
	wmBaseCreatePositioner = 1
	wmBaseGetXdgSurface    = 2
	wmBasePong             = 3

	wmBaseEvtPing = 0
)

func bindWmBase(client *Client, g *Global, id wire.NewID) error {
	res := xdgWmBase{client: client}
	res.SetID(id.ID)
	return client.store.Add(&res)
}

type xdgWmBase struct {
	client *Client
	id     uint32
}

func (res *xdgWmBase) ID() uint32        { return res.id }
func (res *xdgWmBase) SetID(id uint32)   { res.id = id }
func (res *xdgWmBase) Interface() string { return "xdg_wm_base" }
func (res *xdgWmBase) Destroy()          {}

func (res *xdgWmBase) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case wmBaseDestroy:
		res.client.remove(res.id)
		return nil

	case wmBaseCreatePositioner:
		id := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		pos := xdgPositioner{client: res.client}
		pos.SetID(id)
		return res.client.store.Add(&pos)

	case wmBaseGetXdgSurface:
		id := msg.ReadUint()
		surfID := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		surf, err := res.client.surface(surfID)
		if err != nil {
			return err
		}
		xs := xdgSurface{client: res.client, res: surf}
		xs.SetID(id)
		return res.client.store.Add(&xs)

	case wmBasePong:
		msg.ReadUint()
		return msg.Err()

	default:
		return wire.UnknownOpError{Interface: "xdg_wm_base", Op: msg.Op()}
	}
}

const (
	positionerDestroy                 = 0
	positionerSetSize                 = 1
	positionerSetAnchorRect           = 2
	positionerSetAnchor               = 3
	positionerSetGravity              = 4
	positionerSetConstraintAdjustment = 5
	positionerSetOffset               = 6
)

type xdgPositioner struct {
	client *Client
	id     uint32

	size       image.Point
	anchorRect image.Rectangle
	anchor     uint32
	gravity    uint32
	offset     image.Point
}

func (res *xdgPositioner) ID() uint32        { return res.id }
func (res *xdgPositioner) SetID(id uint32)   { res.id = id }
func (res *xdgPositioner) Interface() string { return "xdg_positioner" }
func (res *xdgPositioner) Destroy()          {}

func (res *xdgPositioner) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case positionerDestroy:
		res.client.remove(res.id)
		return nil

	case positionerSetSize:
		w, h := msg.ReadInt(), msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		res.size = image.Pt(int(w), int(h))
		return nil

	case positionerSetAnchorRect:
		x, y := msg.ReadInt(), msg.ReadInt()
		w, h := msg.ReadInt(), msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		res.anchorRect = image.Rect(int(x), int(y), int(x+w), int(y+h))
		return nil

	case positionerSetAnchor:
		res.anchor = msg.ReadUint()
		return msg.Err()

	case positionerSetGravity:
		res.gravity = msg.ReadUint()
		return msg.Err()

	case positionerSetConstraintAdjustment:
		msg.ReadUint()
		return msg.Err()

	case positionerSetOffset:
		x, y := msg.ReadInt(), msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		res.offset = image.Pt(int(x), int(y))
		return nil

	default:
		return wire.UnknownOpError{Interface: "xdg_positioner", Op: msg.Op()}
	}
}

// position resolves the positioner to a point in the parent surface's
// coordinate space.
func (res *xdgPositioner) position() image.Point {
	r := res.anchorRect
	p := image.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
	switch res.anchor {
	case 1: // top
		p.Y = r.Min.Y
	case 2: // bottom
		p.Y = r.Max.Y
	case 3: // left
		p.X = r.Min.X
	case 4: // right
		p.X = r.Max.X
	case 5: // top_left
		p = r.Min
	case 6: // bottom_left
		p = image.Pt(r.Min.X, r.Max.Y)
	case 7: // top_right
		p = image.Pt(r.Max.X, r.Min.Y)
	case 8: // bottom_right
		p = r.Max
	}
	return p.Add(res.offset)
}

const (
	xdgSurfaceDestroy           = 0
	xdgSurfaceGetToplevel       = 1
	xdgSurfaceGetPopup          = 2
	xdgSurfaceSetWindowGeometry = 3
	xdgSurfaceAckConfigure      = 4

	xdgSurfaceEvtConfigure = 0
)

type xdgSurface struct {
	client *Client
	id     uint32
	res    *wlSurface

	geometry image.Rectangle
	serial   uint32
	acked    uint32
}

func (res *xdgSurface) ID() uint32        { return res.id }
func (res *xdgSurface) SetID(id uint32)   { res.id = id }
func (res *xdgSurface) Interface() string { return "xdg_surface" }
func (res *xdgSurface) Destroy()          {}

func (res *xdgSurface) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case xdgSurfaceDestroy:
		res.client.remove(res.id)
		return nil

	case xdgSurfaceGetToplevel:
		id := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}

		toplevel, err := res.res.surf.SetToplevel()
		if err != nil {
			return roleProtocolError(res.id, err)
		}

		tl := xdgToplevel{client: res.client, xdg: res, toplevel: toplevel}
		tl.SetID(id)
		if err := res.client.store.Add(&tl); err != nil {
			return err
		}

		toplevel.Configure = tl.configure
		toplevel.CloseRequested = tl.closeWindow
		tl.configure(image.Point{}, false, false)
		return nil

	case xdgSurfaceGetPopup:
		id := msg.ReadUint()
		parentID := msg.ReadUint()
		positionerID := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}

		obj, err := res.client.store.Get(positionerID)
		if err != nil {
			return err
		}
		positioner, ok := obj.(*xdgPositioner)
		if !ok {
			return &core.ProtocolError{Object: res.id, Code: core.ErrInvalidObject, Reason: "object is not an xdg_positioner"}
		}

		var parent *core.Surface
		if parentID != 0 {
			pobj, err := res.client.store.Get(parentID)
			if err != nil {
				return err
			}
			pxdg, ok := pobj.(*xdgSurface)
			if !ok {
				return &core.ProtocolError{Object: res.id, Code: core.ErrInvalidObject, Reason: "popup parent is not an xdg_surface"}
			}
			parent = pxdg.res.surf
		}

		pos := positioner.position()
		if _, err := res.res.surf.SetPopup(parent, pos); err != nil {
			return roleProtocolError(res.id, err)
		}

		popup := xdgPopup{client: res.client, xdg: res}
		popup.SetID(id)
		if err := res.client.store.Add(&popup); err != nil {
			return err
		}
		popup.configure(image.Rectangle{Min: pos, Max: pos.Add(positioner.size)})
		res.configure()
		return nil

	case xdgSurfaceSetWindowGeometry:
		x, y := msg.ReadInt(), msg.ReadInt()
		w, h := msg.ReadInt(), msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		res.geometry = image.Rect(int(x), int(y), int(x+w), int(y+h))
		return nil

	case xdgSurfaceAckConfigure:
		serial := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		res.acked = serial
		return nil

	default:
		return wire.UnknownOpError{Interface: "xdg_surface", Op: msg.Op()}
	}
}

func (res *xdgSurface) configure() {
	res.serial = res.client.server.nextSerial()
	msg := wire.NewMessage(res, xdgSurfaceEvtConfigure)
	msg.Method = "configure"
	msg.WriteUint(res.serial)
	res.client.send(msg)
}

const (
	toplevelDestroy         = 0
	toplevelSetParent       = 1
	toplevelSetTitle        = 2
	toplevelSetAppID        = 3
	toplevelShowWindowMenu  = 4
	toplevelMove            = 5
	toplevelResize          = 6
	toplevelSetMaxSize      = 7
	toplevelSetMinSize      = 8
	toplevelSetMaximized    = 9
	toplevelUnsetMaximized  = 10
	toplevelSetFullscreen   = 11
	toplevelUnsetFullscreen = 12
	toplevelSetMinimized    = 13

	toplevelEvtConfigure = 0
	toplevelEvtClose     = 1

	toplevelStateFullscreen = 2
	toplevelStateActivated  = 4
)

type xdgToplevel struct {
	client   *Client
	id       uint32
	xdg      *xdgSurface
	toplevel *core.Toplevel
}

func (res *xdgToplevel) ID() uint32        { return res.id }
func (res *xdgToplevel) SetID(id uint32)   { res.id = id }
func (res *xdgToplevel) Interface() string { return "xdg_toplevel" }

func (res *xdgToplevel) Destroy() {
	res.toplevel.Configure = nil
	res.toplevel.CloseRequested = nil
	res.client.server.wm.Unmap(res.xdg.res.surf)
	res.client.server.sched.DirtyAll()
}

func (res *xdgToplevel) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case toplevelDestroy:
		res.client.remove(res.id)
		return nil

	case toplevelSetParent:
		msg.ReadUint()
		return msg.Err()

	case toplevelSetTitle:
		title := msg.ReadString()
		if err := msg.Err(); err != nil {
			return err
		}
		res.toplevel.Title = title
		return nil

	case toplevelSetAppID:
		appID := msg.ReadString()
		if err := msg.Err(); err != nil {
			return err
		}
		res.toplevel.AppID = appID
		return nil

	case toplevelShowWindowMenu:
		msg.ReadUint()
		msg.ReadUint()
		msg.ReadInt()
		msg.ReadInt()
		return msg.Err()

	case toplevelMove:
		msg.ReadUint() // seat
		msg.ReadUint() // serial
		if err := msg.Err(); err != nil {
			return err
		}
		res.startMove()
		return nil

	case toplevelResize:
		msg.ReadUint() // seat
		msg.ReadUint() // serial
		edges := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		res.startResize(edges)
		return nil

	case toplevelSetMaxSize, toplevelSetMinSize:
		msg.ReadInt()
		msg.ReadInt()
		return msg.Err()

	case toplevelSetMaximized, toplevelUnsetMaximized, toplevelSetMinimized:
		// Tiled layout already decides window sizes.
		return nil

	case toplevelSetFullscreen:
		msg.ReadUint() // output, ignored: fullscreen goes to the window's own output
		res.client.server.wm.SetFullscreen(res.xdg.res.surf, true)
		return nil

	case toplevelUnsetFullscreen:
		res.client.server.wm.SetFullscreen(res.xdg.res.surf, false)
		return nil

	default:
		return wire.UnknownOpError{Interface: "xdg_toplevel", Op: msg.Op()}
	}
}

func (res *xdgToplevel) configure(size image.Point, activated, fullscreen bool) {
	var states []byte
	if activated {
		states = binary.LittleEndian.AppendUint32(states, toplevelStateActivated)
	}
	if fullscreen {
		states = binary.LittleEndian.AppendUint32(states, toplevelStateFullscreen)
	}

	msg := wire.NewMessage(res, toplevelEvtConfigure)
	msg.Method = "configure"
	msg.WriteInt(int32(size.X))
	msg.WriteInt(int32(size.Y))
	msg.WriteArray(states)
	res.client.send(msg)

	res.xdg.configure()
}

func (res *xdgToplevel) closeWindow() {
	msg := wire.NewMessage(res, toplevelEvtClose)
	msg.Method = "close"
	res.client.send(msg)
}

// startMove begins an interactive move. Tiled windows do not move
// freely; the request is honored only for floating ones.
func (res *xdgToplevel) startMove() {
	server := res.client.server
	surf := res.xdg.res.surf
	c := server.wm.Container(surf)
	if c == nil || !c.Floating() {
		return
	}

	start := server.seat.PointerPos()
	orig := c.Geometry()
	server.router.StartGrab(&input.Grab{
		Surface: surf,
		OnMotion: func(pos image.Point) {
			server.wm.SetFloatingGeometry(surf, orig.Add(pos.Sub(start)))
		},
	})
}

const (
	resizeEdgeTop    = 1
	resizeEdgeBottom = 2
	resizeEdgeLeft   = 4
	resizeEdgeRight  = 8
)

func (res *xdgToplevel) startResize(edges uint32) {
	server := res.client.server
	surf := res.xdg.res.surf
	c := server.wm.Container(surf)
	if c == nil || !c.Floating() {
		return
	}

	start := server.seat.PointerPos()
	orig := c.Geometry()
	server.router.StartGrab(&input.Grab{
		Surface: surf,
		OnMotion: func(pos image.Point) {
			d := pos.Sub(start)
			geo := orig
			if edges&resizeEdgeTop != 0 {
				geo.Min.Y += d.Y
			}
			if edges&resizeEdgeBottom != 0 {
				geo.Max.Y += d.Y
			}
			if edges&resizeEdgeLeft != 0 {
				geo.Min.X += d.X
			}
			if edges&resizeEdgeRight != 0 {
				geo.Max.X += d.X
			}
			if geo.Dx() < 1 || geo.Dy() < 1 {
				return
			}
			server.wm.SetFloatingGeometry(surf, geo)
		},
	})
}

const (
	popupDestroy = 0
	popupGrab    = 1

	popupEvtConfigure = 0
	popupEvtPopupDone = 1
)

type xdgPopup struct {
	client *Client
	id     uint32
	xdg    *xdgSurface
}

func (res *xdgPopup) ID() uint32        { return res.id }
func (res *xdgPopup) SetID(id uint32)   { res.id = id }
func (res *xdgPopup) Interface() string { return "xdg_popup" }
func (res *xdgPopup) Destroy()          {}

func (res *xdgPopup) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case popupDestroy:
		res.client.remove(res.id)
		return nil

	case popupGrab:
		msg.ReadUint()
		msg.ReadUint()
		return msg.Err()

	default:
		return wire.UnknownOpError{Interface: "xdg_popup", Op: msg.Op()}
	}
}

func (res *xdgPopup) configure(geo image.Rectangle) {
	msg := wire.NewMessage(res, popupEvtConfigure)
	msg.Method = "configure"
	msg.WriteInt(int32(geo.Min.X))
	msg.WriteInt(int32(geo.Min.Y))
	msg.WriteInt(int32(geo.Dx()))
	msg.WriteInt(int32(geo.Dy()))
	res.client.send(msg)
}
