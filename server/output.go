package server

import (
	"time"

	"deedles.dev/tatami/core"
	"deedles.dev/tatami/internal/xslices"
	"deedles.dev/tatami/wire"
)

const (
	outputRelease = 0

	outputEvtGeometry = 0
	outputEvtMode     = 1
	outputEvtDone     = 2
	outputEvtScale    = 3

	outputModeCurrent   = 1
	outputModePreferred = 2
)

func bindOutputGlobal(out *core.Output) func(*Client, *Global, wire.NewID) error {
	return func(client *Client, g *Global, id wire.NewID) error {
		res := wlOutput{client: client, out: out, version: id.Version}
		res.SetID(id.ID)
		if err := client.store.Add(&res); err != nil {
			return err
		}
		client.outputs[out] = append(client.outputs[out], &res)
		res.describe()
		return nil
	}
}

type wlOutput struct {
	client  *Client
	id      uint32
	version uint32
	out     *core.Output
}

func (res *wlOutput) ID() uint32        { return res.id }
func (res *wlOutput) SetID(id uint32)   { res.id = id }
func (res *wlOutput) Interface() string { return "wl_output" }

func (res *wlOutput) Destroy() {
	res.client.outputs[res.out] = xslices.Remove(res.client.outputs[res.out], res)
}

func (res *wlOutput) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case outputRelease:
		res.client.remove(res.id)
		return nil

	default:
		return wire.UnknownOpError{Interface: "wl_output", Op: msg.Op()}
	}
}

// describe sends the full description of the output, ending with done
// so the client treats it as atomic.
func (res *wlOutput) describe() {
	geo := wire.NewMessage(res, outputEvtGeometry)
	geo.Method = "geometry"
	geo.WriteInt(int32(res.out.Geometry.Min.X))
	geo.WriteInt(int32(res.out.Geometry.Min.Y))
	geo.WriteInt(0) // physical size unknown
	geo.WriteInt(0)
	geo.WriteInt(0) // subpixel unknown
	geo.WriteString(res.out.Make)
	geo.WriteString(res.out.Model)
	geo.WriteInt(0) // transform normal
	res.client.send(geo)

	mode := wire.NewMessage(res, outputEvtMode)
	mode.Method = "mode"
	mode.WriteUint(outputModeCurrent | outputModePreferred)
	mode.WriteInt(int32(res.out.Geometry.Dx()))
	mode.WriteInt(int32(res.out.Geometry.Dy()))
	mode.WriteInt(int32(time.Second * 1000 / res.out.Interval()))
	res.client.send(mode)

	if res.version >= 2 {
		scale := wire.NewMessage(res, outputEvtScale)
		scale.Method = "scale"
		scale.WriteInt(res.out.Scale)
		res.client.send(scale)

		done := wire.NewMessage(res, outputEvtDone)
		done.Method = "done"
		res.client.send(done)
	}
}
