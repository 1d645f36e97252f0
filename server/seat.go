package server

import (
	"image"
	"os"

	"deedles.dev/tatami/core"
	"deedles.dev/tatami/internal/logger"
	"deedles.dev/tatami/internal/xslices"
	"deedles.dev/tatami/wire"
)

const (
	seatGetPointer  = 0
	seatGetKeyboard = 1
	seatGetTouch    = 2
	seatRelease     = 3

	seatEvtCapabilities = 0
	seatEvtName         = 1

	seatErrMissingCapability = 0
)

func bindSeat(client *Client, g *Global, id wire.NewID) error {
	res := wlSeat{client: client, seat: client.server.seat, version: id.Version}
	res.SetID(id.ID)
	if err := client.store.Add(&res); err != nil {
		return err
	}

	caps := wire.NewMessage(&res, seatEvtCapabilities)
	caps.Method = "capabilities"
	caps.WriteUint(uint32(res.seat.Caps))
	client.send(caps)

	if id.Version >= 2 {
		name := wire.NewMessage(&res, seatEvtName)
		name.Method = "name"
		name.WriteString(res.seat.Name)
		client.send(name)
	}
	return nil
}

type wlSeat struct {
	client  *Client
	id      uint32
	version uint32
	seat    *core.Seat
}

func (res *wlSeat) ID() uint32        { return res.id }
func (res *wlSeat) SetID(id uint32)   { res.id = id }
func (res *wlSeat) Interface() string { return "wl_seat" }
func (res *wlSeat) Destroy()          {}

func (res *wlSeat) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case seatGetPointer:
		id := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if res.seat.Caps&core.CapPointer == 0 {
			return &core.ProtocolError{Object: res.id, Code: seatErrMissingCapability, Reason: "seat has no pointer"}
		}
		p := wlPointer{client: res.client}
		p.SetID(id)
		if err := res.client.store.Add(&p); err != nil {
			return err
		}
		res.client.pointers = append(res.client.pointers, &p)
		return nil

	case seatGetKeyboard:
		id := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if res.seat.Caps&core.CapKeyboard == 0 {
			return &core.ProtocolError{Object: res.id, Code: seatErrMissingCapability, Reason: "seat has no keyboard"}
		}
		kb := wlKeyboard{client: res.client, version: res.version}
		kb.SetID(id)
		if err := res.client.store.Add(&kb); err != nil {
			return err
		}
		res.client.keyboards = append(res.client.keyboards, &kb)
		kb.keymap()
		return nil

	case seatGetTouch:
		id := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if res.seat.Caps&core.CapTouch == 0 {
			return &core.ProtocolError{Object: res.id, Code: seatErrMissingCapability, Reason: "seat has no touch"}
		}
		t := wlTouch{client: res.client}
		t.SetID(id)
		if err := res.client.store.Add(&t); err != nil {
			return err
		}
		res.client.touches = append(res.client.touches, &t)
		return nil

	case seatRelease:
		res.client.remove(res.id)
		return nil

	default:
		return wire.UnknownOpError{Interface: "wl_seat", Op: msg.Op()}
	}
}

const (
	pointerSetCursor = 0
	pointerRelease   = 1

	pointerEvtEnter  = 0
	pointerEvtLeave  = 1
	pointerEvtMotion = 2
	pointerEvtButton = 3
)

type wlPointer struct {
	client *Client
	id     uint32
}

func (res *wlPointer) ID() uint32        { return res.id }
func (res *wlPointer) SetID(id uint32)   { res.id = id }
func (res *wlPointer) Interface() string { return "wl_pointer" }

func (res *wlPointer) Destroy() {
	res.client.pointers = xslices.Remove(res.client.pointers, res)
}

func (res *wlPointer) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case pointerSetCursor:
		msg.ReadUint() // serial
		surfID := msg.ReadUint()
		x, y := msg.ReadInt(), msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		if surfID == 0 {
			return nil
		}
		surf, err := res.client.surface(surfID)
		if err != nil {
			return err
		}
		if err := surf.surf.SetCursor(image.Pt(int(x), int(y))); err != nil {
			if surf.surf.Role() != core.RoleCursor {
				return roleProtocolError(surfID, err)
			}
			surf.surf.Cursor().Hotspot = image.Pt(int(x), int(y))
		}
		return nil

	case pointerRelease:
		res.client.remove(res.id)
		return nil

	default:
		return wire.UnknownOpError{Interface: "wl_pointer", Op: msg.Op()}
	}
}

const (
	keyboardRelease = 0

	keyboardEvtKeymap    = 0
	keyboardEvtEnter     = 1
	keyboardEvtLeave     = 2
	keyboardEvtKey       = 3
	keyboardEvtModifiers = 4

	keymapFormatNone = 0
)

type wlKeyboard struct {
	client  *Client
	id      uint32
	version uint32
}

func (res *wlKeyboard) ID() uint32        { return res.id }
func (res *wlKeyboard) SetID(id uint32)   { res.id = id }
func (res *wlKeyboard) Interface() string { return "wl_keyboard" }

func (res *wlKeyboard) Destroy() {
	res.client.keyboards = xslices.Remove(res.client.keyboards, res)
}

func (res *wlKeyboard) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case keyboardRelease:
		res.client.remove(res.id)
		return nil

	default:
		return wire.UnknownOpError{Interface: "wl_keyboard", Op: msg.Op()}
	}
}

// keymap tells the client no keymap is available. Raw evdev keycodes
// are delivered as-is; keymap handling stays on the client.
func (res *wlKeyboard) keymap() {
	f, err := os.CreateTemp("", "keymap")
	if err != nil {
		logger.Error("keymap file", "err", err)
		return
	}
	defer f.Close()
	defer os.Remove(f.Name())

	msg := wire.NewMessage(res, keyboardEvtKeymap)
	msg.Method = "keymap"
	msg.WriteUint(keymapFormatNone)
	msg.WriteFile(f)
	msg.WriteUint(0)
	res.client.send(msg)
}

const (
	touchRelease = 0

	touchEvtDown   = 0
	touchEvtUp     = 1
	touchEvtMotion = 2
	touchEvtFrame  = 3
)

type wlTouch struct {
	client *Client
	id     uint32
}

func (res *wlTouch) ID() uint32        { return res.id }
func (res *wlTouch) SetID(id uint32)   { res.id = id }
func (res *wlTouch) Interface() string { return "wl_touch" }

func (res *wlTouch) Destroy() {
	res.client.touches = xslices.Remove(res.client.touches, res)
}

func (res *wlTouch) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case touchRelease:
		res.client.remove(res.id)
		return nil

	default:
		return wire.UnknownOpError{Interface: "wl_touch", Op: msg.Op()}
	}
}

// forwarder delivers routed input to the client owning the target
// surface. It implements input.Forwarder.
type forwarder Server

func (f *forwarder) resources(s *core.Surface) *Client {
	res := f.surfaces[s]
	if res == nil {
		return nil
	}
	return res.client
}

func (f *forwarder) PointerMotion(s *core.Surface, t uint32, pos image.Point) {
	client := f.resources(s)
	if client == nil {
		return
	}
	for _, p := range client.pointers {
		msg := wire.NewMessage(p, pointerEvtMotion)
		msg.Method = "motion"
		msg.WriteUint(t)
		msg.WriteFixed(wire.FixedInt(pos.X))
		msg.WriteFixed(wire.FixedInt(pos.Y))
		client.send(msg)
	}
}

func (f *forwarder) PointerButton(s *core.Surface, t uint32, button uint32, pressed bool) {
	client := f.resources(s)
	if client == nil {
		return
	}
	serial := (*Server)(f).nextSerial()
	state := uint32(0)
	if pressed {
		state = 1
	}
	for _, p := range client.pointers {
		msg := wire.NewMessage(p, pointerEvtButton)
		msg.Method = "button"
		msg.WriteUint(serial)
		msg.WriteUint(t)
		msg.WriteUint(button)
		msg.WriteUint(state)
		client.send(msg)
	}
}

func (f *forwarder) Key(s *core.Surface, t uint32, code uint32, pressed bool) {
	client := f.resources(s)
	if client == nil {
		return
	}
	serial := (*Server)(f).nextSerial()
	state := uint32(0)
	if pressed {
		state = 1
	}
	for _, kb := range client.keyboards {
		msg := wire.NewMessage(kb, keyboardEvtKey)
		msg.Method = "key"
		msg.WriteUint(serial)
		msg.WriteUint(t)
		msg.WriteUint(code)
		msg.WriteUint(state)
		client.send(msg)
	}
}

func (f *forwarder) Touch(s *core.Surface, t uint32, id int32, pos image.Point, pressed bool) {
	client := f.resources(s)
	if client == nil {
		return
	}
	res := f.surfaces[s]
	serial := (*Server)(f).nextSerial()
	for _, tc := range client.touches {
		if pressed {
			msg := wire.NewMessage(tc, touchEvtDown)
			msg.Method = "down"
			msg.WriteUint(serial)
			msg.WriteUint(t)
			msg.WriteObject(res)
			msg.WriteInt(id)
			msg.WriteFixed(wire.FixedInt(pos.X))
			msg.WriteFixed(wire.FixedInt(pos.Y))
			client.send(msg)
		} else {
			msg := wire.NewMessage(tc, touchEvtUp)
			msg.Method = "up"
			msg.WriteUint(serial)
			msg.WriteUint(t)
			msg.WriteInt(id)
			client.send(msg)
		}

		frame := wire.NewMessage(tc, touchEvtFrame)
		frame.Method = "frame"
		client.send(frame)
	}
}

// seatEvents translates focus changes into enter and leave events. It
// implements core.SeatListener.
type seatEvents Server

func (se *seatEvents) KeyboardFocusChanged(old, new *core.Surface) {
	server := (*Server)(se)
	if old != nil {
		if res := server.surfaces[old]; res != nil {
			serial := server.nextSerial()
			for _, kb := range res.client.keyboards {
				msg := wire.NewMessage(kb, keyboardEvtLeave)
				msg.Method = "leave"
				msg.WriteUint(serial)
				msg.WriteObject(res)
				res.client.send(msg)
			}
		}
	}
	if new != nil {
		if res := server.surfaces[new]; res != nil {
			serial := server.nextSerial()
			for _, kb := range res.client.keyboards {
				msg := wire.NewMessage(kb, keyboardEvtEnter)
				msg.Method = "enter"
				msg.WriteUint(serial)
				msg.WriteObject(res)
				msg.WriteArray(nil) // no keys held
				res.client.send(msg)

				mods := wire.NewMessage(kb, keyboardEvtModifiers)
				mods.Method = "modifiers"
				mods.WriteUint(serial)
				mods.WriteUint(0)
				mods.WriteUint(0)
				mods.WriteUint(0)
				mods.WriteUint(0)
				res.client.send(mods)
			}
		}
	}
}

func (se *seatEvents) PointerFocusChanged(old, new *core.Surface, pos image.Point) {
	server := (*Server)(se)
	if old != nil {
		if res := server.surfaces[old]; res != nil {
			serial := server.nextSerial()
			for _, p := range res.client.pointers {
				msg := wire.NewMessage(p, pointerEvtLeave)
				msg.Method = "leave"
				msg.WriteUint(serial)
				msg.WriteObject(res)
				res.client.send(msg)
			}
		}
	}
	if new != nil {
		if res := server.surfaces[new]; res != nil {
			serial := server.nextSerial()
			for _, p := range res.client.pointers {
				msg := wire.NewMessage(p, pointerEvtEnter)
				msg.Method = "enter"
				msg.WriteUint(serial)
				msg.WriteObject(res)
				msg.WriteFixed(wire.FixedInt(pos.X))
				msg.WriteFixed(wire.FixedInt(pos.Y))
				res.client.send(msg)
			}
		}
	}
}
