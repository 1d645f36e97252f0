// Package server glues the compositor together: it owns the listening
// socket, the protocol objects of every connected client, and the
// single event loop on which all compositor state is mutated.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"sync"
	"time"

	"deedles.dev/tatami/config"
	"deedles.dev/tatami/core"
	"deedles.dev/tatami/input"
	"deedles.dev/tatami/internal/ev"
	"deedles.dev/tatami/internal/logger"
	"deedles.dev/tatami/internal/set"
	"deedles.dev/tatami/internal/xslices"
	"deedles.dev/tatami/scene"
	"deedles.dev/tatami/wire"
	"deedles.dev/tatami/wm"
)

type Server struct {
	done  chan struct{}
	close sync.Once
	lis   *net.UnixListener
	queue *ev.Queue

	session  Session
	renderer scene.Renderer
	seat     *core.Seat
	wm       *wm.Manager
	sched    *scene.Scheduler
	router   *input.Router

	clients  set.Set[*Client]
	surfaces map[*core.Surface]*wlSurface
	globals  []*Global
	nextName uint32
	outputs  map[*core.Output]*outputGlobal
	serial   uint32
	socket   string
	terminal string
}

type outputGlobal struct {
	global *Global
	stop   chan struct{}
}

// New assembles a compositor from its parts. Run must be called for
// anything to happen.
func New(cfg *config.Config, session Session, renderer scene.Renderer) (*Server, error) {
	bindings, err := input.ParseBindings(cfg.Bindings)
	if err != nil {
		return nil, fmt.Errorf("parse bindings: %w", err)
	}

	seat := core.NewSeat("seat0", core.CapPointer|core.CapKeyboard|core.CapTouch)

	server := Server{
		done:     make(chan struct{}),
		queue:    ev.NewQueue(),
		session:  session,
		renderer: renderer,
		seat:     seat,
		clients:  make(set.Set[*Client]),
		surfaces: make(map[*core.Surface]*wlSurface),
		outputs:  make(map[*core.Output]*outputGlobal),
		nextName: 1,
	}

	server.wm = wm.NewManager(policyFromConfig(cfg), seat)
	server.sched = scene.NewScheduler(server.wm)
	server.wm.OnDirty = server.sched.Dirty
	server.router = input.NewRouter(seat, server.sched, (*forwarder)(&server), server.action)
	server.router.OnPress = server.wm.FocusSurface
	server.router.SetBindings(bindings)
	seat.Listener = (*seatEvents)(&server)

	server.addGlobal("wl_compositor", 4, bindCompositor)
	server.addGlobal("wl_subcompositor", 1, bindSubcompositor)
	server.addGlobal("wl_shm", 1, bindShm)
	server.addGlobal("wl_seat", 7, bindSeat)
	server.addGlobal("xdg_wm_base", 1, bindWmBase)

	return &server, nil
}

func policyFromConfig(cfg *config.Config) wm.Policy {
	policy := wm.Policy{FloatSize: cfg.Layout.FloatSize}
	if cfg.Layout.DefaultSplit == "vertical" {
		policy.DefaultSplit = wm.Vertical
	}
	return policy
}

// Socket is the name of the listening socket, suitable for a client's
// $WAYLAND_DISPLAY.
func (server *Server) Socket() string {
	return server.socket
}

func (server *Server) Seat() *core.Seat            { return server.seat }
func (server *Server) Manager() *wm.Manager        { return server.wm }
func (server *Server) Scheduler() *scene.Scheduler { return server.sched }
func (server *Server) Router() *input.Router       { return server.router }

// Listen binds the Wayland socket, picking the first free display
// name.
func (server *Server) Listen() error {
	socket, err := wire.NewSocketPath()
	if err != nil {
		return err
	}
	lis, err := wire.ListenAt(socket)
	if err != nil {
		return err
	}
	server.lis = lis
	server.socket = socket[strings.LastIndexByte(socket, '/')+1:]
	go server.listen()
	logger.Info("listening", "socket", server.socket)
	return nil
}

func (server *Server) listen() {
	for {
		c, err := server.lis.AcceptUnix()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}

			ev.Post(server.queue, server.done, func() error { return err })
			continue
		}

		ev.Post(server.queue, server.done, func() error {
			server.addClient(c)
			return nil
		})
	}
}

func (server *Server) addClient(c *net.UnixConn) {
	client := newClient(server, wire.NewConn(c))
	server.clients.Add(client)
	logger.Debug("client connected", "clients", len(server.clients))
}

func (server *Server) removeClient(client *Client) {
	if !server.clients.Has(client) {
		return
	}
	server.clients.Remove(client)
	client.shutdown()
	logger.Debug("client disconnected", "clients", len(server.clients))
}

// Run drives the event loop until ctx is canceled or Stop is called.
// Everything that touches compositor state happens on this goroutine.
func (server *Server) Run(ctx context.Context) error {
	defer server.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-server.done:
			return nil

		case events := <-server.queue.Get():
			if err := events.Flush(); err != nil {
				logger.Error("event loop", "err", err)
			}
			server.flushClients()

		case change := <-server.session.Outputs():
			if change.Gone {
				server.removeOutput(change.Output)
			} else {
				server.addOutput(change.Output)
			}

		case event := <-server.session.Input():
			server.router.Handle(event)
			server.flushClients()
		}
	}
}

// Stop shuts the compositor down. It may be called from any
// goroutine.
func (server *Server) Stop() {
	server.close.Do(func() { close(server.done) })
}

func (server *Server) shutdown() {
	server.Stop()
	if server.lis != nil {
		server.lis.Close()
	}
	for client := range server.clients {
		client.shutdown()
	}
	clear(server.clients)
	for out := range server.outputs {
		server.removeOutput(out)
	}
}

func (server *Server) nextSerial() uint32 {
	server.serial++
	return server.serial
}

func (server *Server) addGlobal(iface string, version uint32, bind func(*Client, *Global, wire.NewID) error) *Global {
	g := &Global{
		Name:      server.nextName,
		Interface: iface,
		Version:   version,
		Bind:      bind,
	}
	server.nextName++
	server.globals = append(server.globals, g)
	for client := range server.clients {
		client.announce(g)
	}
	return g
}

func (server *Server) removeGlobal(g *Global) {
	server.globals = xslices.Remove(server.globals, g)
	for client := range server.clients {
		client.retract(g)
	}
}

func (server *Server) addOutput(out *core.Output) {
	if _, ok := server.outputs[out]; ok {
		server.sched.AddOutput(out)
		return
	}

	server.wm.AddOutput(out)
	server.sched.AddOutput(out)

	og := outputGlobal{
		global: server.addGlobal("wl_output", 3, bindOutputGlobal(out)),
		stop:   make(chan struct{}),
	}
	server.outputs[out] = &og
	go server.frameClock(out, og.stop)
	logger.Info("output added", "name", out.Name, "geometry", out.Geometry)
}

func (server *Server) removeOutput(out *core.Output) {
	og, ok := server.outputs[out]
	if !ok {
		return
	}
	delete(server.outputs, out)
	close(og.stop)
	server.removeGlobal(og.global)
	server.sched.RemoveOutput(out)
	server.wm.RemoveOutput(out)
	logger.Info("output removed", "name", out.Name)
}

// frameClock posts a tick per refresh interval. The scheduler decides
// whether a tick actually produces a frame, so an idle output costs a
// timer wakeup and nothing else.
func (server *Server) frameClock(out *core.Output, stop <-chan struct{}) {
	t := time.NewTicker(out.Interval())
	defer t.Stop()

	for {
		select {
		case <-server.done:
			return
		case <-stop:
			return
		case <-t.C:
			ev.Post(server.queue, server.done, func() error {
				server.tick(out)
				return nil
			})
		}
	}
}

func (server *Server) tick(out *core.Output) {
	frame := server.sched.Tick(out)
	if frame == nil {
		return
	}

	// The renderer may finish on another goroutine; completion comes
	// back as an event, never as a call into loop state.
	server.renderer.Render(frame, func(renderErr error) {
		now := time.Now()
		ev.Post(server.queue, server.done, func() error {
			server.complete(out, frame, renderErr, now)
			return nil
		})
	})
}

func (server *Server) complete(out *core.Output, frame *scene.Frame, renderErr error, now time.Time) {
	err := server.sched.Complete(frame, renderErr, now)
	if err != nil {
		logger.Error("render", "err", err)
		if server.sched.Degraded(out) {
			logger.Warn("output degraded", "name", out.Name)
		}
	}
}

// flushClients writes out events queued during the last batch of
// work. A client whose socket has failed is disconnected here.
func (server *Server) flushClients() {
	for client := range server.clients {
		if err := client.flush(); err != nil {
			logger.Warn("client flush", "err", err)
			server.removeClient(client)
		}
	}
}

// Reload applies a changed configuration. Only keybindings take
// effect without a restart.
func (server *Server) Reload(cfg *config.Config) error {
	bindings, err := input.ParseBindings(cfg.Bindings)
	if err != nil {
		return fmt.Errorf("parse bindings: %w", err)
	}
	done := make(chan struct{})
	ev.Post(server.queue, server.done, func() error {
		server.router.SetBindings(bindings)
		close(done)
		return nil
	})
	select {
	case <-done:
	case <-server.done:
	}
	logger.Info("configuration reloaded")
	return nil
}

func (server *Server) action(name string) {
	switch {
	case name == "quit":
		server.Stop()
	case name == "close":
		server.wm.CloseFocused()
	case name == "fullscreen":
		server.wm.ToggleFullscreen()
	case name == "float":
		server.wm.ToggleFloating()
	case name == "split":
		server.wm.ToggleSplit()
	case name == "focus-next":
		server.wm.FocusNext()
	case name == "focus-prev":
		server.wm.FocusPrev()
	case name == "spawn-terminal":
		server.spawn(server.terminal)
	case strings.HasPrefix(name, "spawn:"):
		server.spawn(strings.TrimPrefix(name, "spawn:"))
	case strings.HasPrefix(name, "workspace:"):
		server.wm.SwitchWorkspace(strings.TrimPrefix(name, "workspace:"))
	case strings.HasPrefix(name, "move-to-workspace:"):
		server.wm.MoveFocusedToWorkspace(strings.TrimPrefix(name, "move-to-workspace:"))
	default:
		logger.Warn("unknown action", "action", name)
	}
}

// SetTerminal sets the command run by the spawn-terminal action.
func (server *Server) SetTerminal(cmd string) {
	server.terminal = cmd
}

func (server *Server) spawn(cmdline string) {
	if cmdline == "" {
		logger.Warn("spawn with no command")
		return
	}
	args := strings.Fields(cmdline)
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Env = append(cmd.Environ(), "WAYLAND_DISPLAY="+server.socket)
	if err := cmd.Start(); err != nil {
		logger.Error("spawn", "cmd", cmdline, "err", err)
		return
	}
	go cmd.Wait()
}
