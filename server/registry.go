package server

import (
	"fmt"

	"deedles.dev/tatami/core"
	"deedles.dev/tatami/wire"
)

// Global is one entry in the registry: an interface the compositor
// offers and a constructor run when a client binds it.
type Global struct {
	Name      uint32
	Interface string
	Version   uint32
	Bind      func(client *Client, g *Global, id wire.NewID) error
}

const (
	registryBind = 0

	registryEvtGlobal       = 0
	registryEvtGlobalRemove = 1
)

type wlRegistry struct {
	client *Client
	id     uint32
}

func (reg *wlRegistry) ID() uint32        { return reg.id }
func (reg *wlRegistry) SetID(id uint32)   { reg.id = id }
func (reg *wlRegistry) Interface() string { return "wl_registry" }
func (reg *wlRegistry) Destroy()          {}

func (reg *wlRegistry) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case registryBind:
		name := msg.ReadUint()
		id := msg.ReadNewID()
		if err := msg.Err(); err != nil {
			return err
		}

		for _, g := range reg.client.server.globals {
			if g.Name != name {
				continue
			}
			if id.Interface != g.Interface || id.Version > g.Version {
				return &core.ProtocolError{
					Object: reg.id,
					Code:   core.ErrInvalidObject,
					Reason: fmt.Sprintf("bind %v v%v does not match global %v v%v", id.Interface, id.Version, g.Interface, g.Version),
				}
			}
			return g.Bind(reg.client, g, id)
		}
		return &core.ProtocolError{
			Object: reg.id,
			Code:   core.ErrInvalidObject,
			Reason: fmt.Sprintf("bind to unknown global %v", name),
		}

	default:
		return wire.UnknownOpError{Interface: "wl_registry", Op: msg.Op()}
	}
}

func (reg *wlRegistry) global(g *Global) {
	msg := wire.NewMessage(reg, registryEvtGlobal)
	msg.Method = "global"
	msg.WriteUint(g.Name)
	msg.WriteString(g.Interface)
	msg.WriteUint(g.Version)
	reg.client.send(msg)
}

func (reg *wlRegistry) globalRemove(g *Global) {
	msg := wire.NewMessage(reg, registryEvtGlobalRemove)
	msg.Method = "global_remove"
	msg.WriteUint(g.Name)
	reg.client.send(msg)
}
