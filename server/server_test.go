package server

import (
	"context"
	"image"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"deedles.dev/tatami/config"
	"deedles.dev/tatami/core"
	"deedles.dev/tatami/render"
	"deedles.dev/tatami/scene"
	"deedles.dev/tatami/wire"
)

type testObj uint32

func (o testObj) ID() uint32                     { return uint32(o) }
func (o testObj) SetID(uint32)                   {}
func (o testObj) Interface() string              { return "test" }
func (o testObj) Dispatch(*wire.MessageBuffer) error { return nil }
func (o testObj) Destroy()                       {}

func startServer(t *testing.T) (*Server, *StaticSession, *core.Output) {
	return startServerWith(t, render.NewSoftware())
}

func startServerWith(t *testing.T, renderer scene.Renderer) (*Server, *StaticSession, *core.Output) {
	t.Helper()
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	out := &core.Output{Name: "test-1", Geometry: image.Rect(0, 0, 640, 480), Scale: 1}
	session := NewStaticSession(out)
	srv, err := New(&config.DefaultConfig, session, renderer)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := srv.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		srv.Stop()
		<-done
	})
	return srv, session, out
}

// testClient speaks the wire protocol directly against a running
// server.
type testClient struct {
	t      *testing.T
	uc     *net.UnixConn
	conn   *wire.Conn
	nextID uint32
}

func dialClient(t *testing.T, srv *Server) *testClient {
	t.Helper()
	path := filepath.Join(os.Getenv("XDG_RUNTIME_DIR"), srv.Socket())
	uc, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { uc.Close() })
	return &testClient{t: t, uc: uc, conn: wire.NewConn(uc), nextID: 2}
}

func (c *testClient) newID() uint32 {
	id := c.nextID
	c.nextID++
	return id
}

func (c *testClient) request(sender uint32, op uint16, build func(*wire.MessageBuilder)) {
	c.t.Helper()
	msg := wire.NewMessage(testObj(sender), op)
	if build != nil {
		build(msg)
	}
	if err := msg.Build(c.conn); err != nil {
		c.t.Fatalf("send request to %v op %v: %v", sender, op, err)
	}
}

// event reads messages until one from sender with op arrives. Other
// events are discarded.
func (c *testClient) event(sender uint32, op uint16) *wire.MessageBuffer {
	c.t.Helper()
	c.uc.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		msg, err := wire.ReadMessage(c.conn)
		if err != nil {
			c.t.Fatalf("waiting for event %v from %v: %v", op, sender, err)
		}
		if msg.Sender() == sender && msg.Op() == op {
			return msg
		}
	}
}

// roundtrip issues wl_display.sync and waits for the callback, which
// proves every prior request has been processed.
func (c *testClient) roundtrip() {
	c.t.Helper()
	id := c.newID()
	c.request(1, displaySync, func(m *wire.MessageBuilder) { m.WriteUint(id) })
	c.event(id, callbackEvtDone)
}

// registry fetches the global list, returning interface -> name.
func (c *testClient) registry() (uint32, map[string]uint32) {
	c.t.Helper()
	regID := c.newID()
	c.request(1, displayGetRegistry, func(m *wire.MessageBuilder) { m.WriteUint(regID) })

	syncID := c.newID()
	c.request(1, displaySync, func(m *wire.MessageBuilder) { m.WriteUint(syncID) })

	globals := make(map[string]uint32)
	c.uc.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		msg, err := wire.ReadMessage(c.conn)
		if err != nil {
			c.t.Fatalf("reading registry: %v", err)
		}
		switch {
		case msg.Sender() == regID && msg.Op() == registryEvtGlobal:
			name := msg.ReadUint()
			iface := msg.ReadString()
			msg.ReadUint()
			globals[iface] = name
		case msg.Sender() == syncID && msg.Op() == callbackEvtDone:
			return regID, globals
		}
	}
}

func (c *testClient) bind(regID uint32, globals map[string]uint32, iface string, version uint32) uint32 {
	c.t.Helper()
	name, ok := globals[iface]
	if !ok {
		c.t.Fatalf("no %v global", iface)
	}
	id := c.newID()
	c.request(regID, registryBind, func(m *wire.MessageBuilder) {
		m.WriteUint(name)
		m.WriteNewID(wire.NewID{Interface: iface, Version: version, ID: id})
	})
	return id
}

// createBuffer makes a w-by-h ARGB shm buffer backed by a temp file.
func (c *testClient) createBuffer(shmID uint32, w, h int) uint32 {
	c.t.Helper()
	f, err := os.CreateTemp(c.t.TempDir(), "shm")
	if err != nil {
		c.t.Fatal(err)
	}
	c.t.Cleanup(func() { f.Close() })
	if err := f.Truncate(int64(w * h * 4)); err != nil {
		c.t.Fatal(err)
	}

	pool := c.newID()
	c.request(shmID, shmCreatePool, func(m *wire.MessageBuilder) {
		m.WriteUint(pool)
		m.WriteFile(f)
		m.WriteInt(int32(w * h * 4))
	})
	buf := c.newID()
	c.request(pool, shmPoolCreateBuffer, func(m *wire.MessageBuilder) {
		m.WriteUint(buf)
		m.WriteInt(0)
		m.WriteInt(int32(w))
		m.WriteInt(int32(h))
		m.WriteInt(int32(w * 4))
		m.WriteUint(uint32(core.FormatARGB8888))
	})
	return buf
}

func TestRegistryAnnouncesGlobals(t *testing.T) {
	srv, _, _ := startServer(t)
	c := dialClient(t, srv)

	_, globals := c.registry()
	for _, iface := range []string{"wl_compositor", "wl_subcompositor", "wl_shm", "wl_seat", "wl_output", "xdg_wm_base"} {
		if _, ok := globals[iface]; !ok {
			t.Errorf("global %v not announced", iface)
		}
	}
}

func TestSurfaceMapAndFrame(t *testing.T) {
	srv, _, out := startServer(t)
	c := dialClient(t, srv)

	regID, globals := c.registry()
	comp := c.bind(regID, globals, "wl_compositor", 4)
	shmID := c.bind(regID, globals, "wl_shm", 1)
	wmBase := c.bind(regID, globals, "xdg_wm_base", 1)

	surf := c.newID()
	c.request(comp, compositorCreateSurface, func(m *wire.MessageBuilder) { m.WriteUint(surf) })

	xdgSurf := c.newID()
	c.request(wmBase, wmBaseGetXdgSurface, func(m *wire.MessageBuilder) {
		m.WriteUint(xdgSurf)
		m.WriteUint(surf)
	})
	toplevel := c.newID()
	c.request(xdgSurf, xdgSurfaceGetToplevel, func(m *wire.MessageBuilder) { m.WriteUint(toplevel) })

	// The initial configure arrives before any buffer is attached.
	cfg := c.event(xdgSurf, xdgSurfaceEvtConfigure)
	serial := cfg.ReadUint()
	c.request(xdgSurf, xdgSurfaceAckConfigure, func(m *wire.MessageBuilder) { m.WriteUint(serial) })

	// Shared-memory buffer the size of the whole output.
	w, h := out.Geometry.Dx(), out.Geometry.Dy()
	buf := c.createBuffer(shmID, w, h)

	c.request(surf, surfaceAttach, func(m *wire.MessageBuilder) {
		m.WriteUint(buf)
		m.WriteInt(0)
		m.WriteInt(0)
	})
	frame := c.newID()
	c.request(surf, surfaceFrame, func(m *wire.MessageBuilder) { m.WriteUint(frame) })
	c.request(surf, surfaceCommit, nil)

	// Mapping puts the window in the tiling layout, which reconfigures
	// it to the full output.
	cfgTop := c.event(toplevel, toplevelEvtConfigure)
	cw, ch := cfgTop.ReadInt(), cfgTop.ReadInt()
	if int(cw) != w || int(ch) != h {
		t.Errorf("configured size %vx%v, want %vx%v", cw, ch, w, h)
	}

	// The frame callback fires once the frame is composited.
	c.event(frame, callbackEvtDone)
	c.event(1, displayEvtDeleteID)
}

// goroutineRenderer completes frames off the loop, like a GPU queue
// would.
type goroutineRenderer struct{}

func (goroutineRenderer) Render(f *scene.Frame, done func(error)) {
	go func() {
		time.Sleep(time.Millisecond)
		done(nil)
	}()
}

func TestAsyncRendererCompletion(t *testing.T) {
	srv, _, _ := startServerWith(t, goroutineRenderer{})
	c := dialClient(t, srv)

	regID, globals := c.registry()
	comp := c.bind(regID, globals, "wl_compositor", 4)
	shmID := c.bind(regID, globals, "wl_shm", 1)
	wmBase := c.bind(regID, globals, "xdg_wm_base", 1)

	surf := c.newID()
	c.request(comp, compositorCreateSurface, func(m *wire.MessageBuilder) { m.WriteUint(surf) })
	xdgSurf := c.newID()
	c.request(wmBase, wmBaseGetXdgSurface, func(m *wire.MessageBuilder) {
		m.WriteUint(xdgSurf)
		m.WriteUint(surf)
	})
	toplevel := c.newID()
	c.request(xdgSurf, xdgSurfaceGetToplevel, func(m *wire.MessageBuilder) { m.WriteUint(toplevel) })
	serial := c.event(xdgSurf, xdgSurfaceEvtConfigure).ReadUint()
	c.request(xdgSurf, xdgSurfaceAckConfigure, func(m *wire.MessageBuilder) { m.WriteUint(serial) })

	buf := c.createBuffer(shmID, 16, 16)
	c.request(surf, surfaceAttach, func(m *wire.MessageBuilder) {
		m.WriteUint(buf)
		m.WriteInt(0)
		m.WriteInt(0)
	})
	frame := c.newID()
	c.request(surf, surfaceFrame, func(m *wire.MessageBuilder) { m.WriteUint(frame) })
	c.request(surf, surfaceCommit, nil)

	// Completion is posted back onto the loop, so the callback still
	// arrives even though the render finished on another goroutine.
	c.event(frame, callbackEvtDone)
}

func TestProtocolErrorDisconnects(t *testing.T) {
	srv, _, _ := startServer(t)
	c := dialClient(t, srv)

	regID, globals := c.registry()
	comp := c.bind(regID, globals, "wl_compositor", 4)

	// Two surfaces with the same ID.
	surf := c.newID()
	c.request(comp, compositorCreateSurface, func(m *wire.MessageBuilder) { m.WriteUint(surf) })
	c.request(comp, compositorCreateSurface, func(m *wire.MessageBuilder) { m.WriteUint(surf) })

	errEvt := c.event(1, displayEvtError)
	errEvt.ReadUint()
	code := errEvt.ReadUint()
	if code != core.ErrInvalidObject {
		t.Errorf("error code %v, want invalid object", code)
	}

	// The connection is gone; a second client is unaffected.
	c.uc.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, err := wire.ReadMessage(c.conn); err != nil {
			break
		}
	}

	c2 := dialClient(t, srv)
	_, globals2 := c2.registry()
	if len(globals2) == 0 {
		t.Error("second client got no globals after first misbehaved")
	}
}

func TestRoleErrorSurvives(t *testing.T) {
	srv, _, _ := startServer(t)
	c := dialClient(t, srv)

	regID, globals := c.registry()
	comp := c.bind(regID, globals, "wl_compositor", 4)
	shmID := c.bind(regID, globals, "wl_shm", 1)

	surf := c.newID()
	c.request(comp, compositorCreateSurface, func(m *wire.MessageBuilder) { m.WriteUint(surf) })

	buf := c.createBuffer(shmID, 1, 1)

	// Committing content with no role is rejected, but the connection
	// survives and further requests work.
	c.request(surf, surfaceAttach, func(m *wire.MessageBuilder) {
		m.WriteUint(buf)
		m.WriteInt(0)
		m.WriteInt(0)
	})
	c.request(surf, surfaceCommit, nil)
	c.roundtrip()
}

func TestOutputHotplug(t *testing.T) {
	srv, session, _ := startServer(t)
	c := dialClient(t, srv)

	_, globals := c.registry()
	if _, ok := globals["wl_output"]; !ok {
		t.Fatal("no wl_output global")
	}

	second := &core.Output{Name: "test-2", Geometry: image.Rect(640, 0, 1280, 480), Scale: 1}
	session.Plug(second)

	// The new output is announced on the existing registry.
	found := false
	c.uc.SetReadDeadline(time.Now().Add(5 * time.Second))
	for !found {
		msg, err := wire.ReadMessage(c.conn)
		if err != nil {
			t.Fatalf("waiting for hotplug announcement: %v", err)
		}
		if msg.Op() == registryEvtGlobal {
			msg.ReadUint()
			if msg.ReadString() == "wl_output" {
				found = true
			}
		}
	}

	session.Unplug(second)
	c.roundtrip()
}
