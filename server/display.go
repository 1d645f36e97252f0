package server

import (
	"deedles.dev/tatami/core"
	"deedles.dev/tatami/wire"
)

const (
	displaySync        = 0
	displayGetRegistry = 1

	displayEvtError    = 0
	displayEvtDeleteID = 1
)

type wlDisplay struct {
	client *Client
	id     uint32
}

func (d *wlDisplay) ID() uint32        { return d.id }
func (d *wlDisplay) SetID(id uint32)   { d.id = id }
func (d *wlDisplay) Interface() string { return "wl_display" }
func (d *wlDisplay) Destroy()          {}

func (d *wlDisplay) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case displaySync:
		id := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		cb := wlCallback{client: d.client}
		cb.SetID(id)
		if err := d.client.store.Add(&cb); err != nil {
			return err
		}
		// sync completes once every prior request has been
		// processed, which on a serialized loop is right now.
		cb.done(d.client.server.nextSerial())
		return nil

	case displayGetRegistry:
		id := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		reg := wlRegistry{client: d.client}
		reg.SetID(id)
		if err := d.client.store.Add(&reg); err != nil {
			return err
		}
		d.client.registries = append(d.client.registries, &reg)
		for _, g := range d.client.server.globals {
			reg.global(g)
		}
		return nil

	default:
		return wire.UnknownOpError{Interface: "wl_display", Op: msg.Op()}
	}
}

func (d *wlDisplay) error(perr *core.ProtocolError) {
	msg := wire.NewMessage(d, displayEvtError)
	msg.Method = "error"
	msg.WriteUint(perr.Object)
	msg.WriteUint(perr.Code)
	msg.WriteString(perr.Reason)
	d.client.send(msg)
}

func (d *wlDisplay) deleteID(id uint32) {
	msg := wire.NewMessage(d, displayEvtDeleteID)
	msg.Method = "delete_id"
	msg.WriteUint(id)
	d.client.send(msg)
}

const callbackEvtDone = 0

// wlCallback is the short-lived object behind wl_display.sync and
// wl_surface.frame. It fires exactly once and then its ID is retired.
type wlCallback struct {
	client *Client
	id     uint32
}

func (cb *wlCallback) ID() uint32        { return cb.id }
func (cb *wlCallback) SetID(id uint32)   { cb.id = id }
func (cb *wlCallback) Interface() string { return "wl_callback" }
func (cb *wlCallback) Destroy()          {}

func (cb *wlCallback) Dispatch(msg *wire.MessageBuffer) error {
	return wire.UnknownOpError{Interface: "wl_callback", Op: msg.Op()}
}

func (cb *wlCallback) done(data uint32) {
	msg := wire.NewMessage(cb, callbackEvtDone)
	msg.Method = "done"
	msg.WriteUint(data)
	cb.client.send(msg)
	cb.client.destroyed(cb.id)
}
