package input

import (
	"image"

	"deedles.dev/tatami/core"
)

// HitTester finds the topmost surface under a point, honoring input
// regions. The scene scheduler implements it.
type HitTester interface {
	SurfaceAt(p image.Point) (*core.Surface, image.Point)
}

// Forwarder delivers input to a client as protocol events. The
// server's protocol glue implements it; tests record.
type Forwarder interface {
	PointerMotion(s *core.Surface, t uint32, pos image.Point)
	PointerButton(s *core.Surface, t uint32, button uint32, pressed bool)
	Key(s *core.Surface, t uint32, code uint32, pressed bool)
	Touch(s *core.Surface, t uint32, id int32, pos image.Point, pressed bool)
}

// Grab routes all pointer events to one holder regardless of hit
// testing, for interactive move/resize. It ends on button release or
// when the holder is destroyed.
type Grab struct {
	Surface  *core.Surface
	OnMotion func(pos image.Point)
	OnEnd    func()
}

// Router maintains pointer and keyboard focus for one seat and
// dispatches each incoming event exactly once: to a keybinding, to a
// grab, to the focused surface, or to the floor.
type Router struct {
	// OnPress is called with the surface under a pointer press so the
	// window manager can implement click-to-focus.
	OnPress func(*core.Surface)

	seat     *core.Seat
	hit      HitTester
	fwd      Forwarder
	act      func(action string)
	bindings Bindings
	grab     *Grab
}

func NewRouter(seat *core.Seat, hit HitTester, fwd Forwarder, act func(string)) *Router {
	return &Router{
		seat: seat,
		hit:  hit,
		fwd:  fwd,
		act:  act,
	}
}

// SetBindings swaps the active binding set. In-flight state is not
// disturbed; the new set simply applies to the next key event.
func (r *Router) SetBindings(b Bindings) {
	r.bindings = b
}

func (r *Router) StartGrab(g *Grab) {
	r.grab = g
}

func (r *Router) EndGrab() {
	if r.grab == nil {
		return
	}
	g := r.grab
	r.grab = nil
	if g.OnEnd != nil {
		g.OnEnd()
	}
}

func (r *Router) Grabbed() bool {
	return r.grab != nil
}

// SurfaceDestroyed drops any focus or grab held by s. A grab is
// released automatically on the grabbing surface's destruction.
func (r *Router) SurfaceDestroyed(s *core.Surface) {
	if r.grab != nil && r.grab.Surface == s {
		r.EndGrab()
	}
	r.seat.Forget(s)
}

// Handle dispatches one input event.
func (r *Router) Handle(ev Event) {
	switch ev := ev.(type) {
	case Key:
		r.key(ev)
	case PointerMotion:
		r.motion(ev)
	case PointerButton:
		r.button(ev)
	case Touch:
		r.touch(ev)
	}
}

func (r *Router) key(ev Key) {
	if ev.Pressed && r.bindings != nil {
		if action, ok := r.bindings.Lookup(ev.Mods, ev.Code); ok {
			// Bindings take priority and are never client-visible.
			if r.act != nil {
				r.act(action)
			}
			return
		}
	}
	focus := r.seat.KeyboardFocus()
	if focus == nil {
		return
	}
	r.fwd.Key(focus, ev.Time, ev.Code, ev.Pressed)
}

func (r *Router) motion(ev PointerMotion) {
	r.seat.SetPointerPos(ev.Pos)

	if r.grab != nil {
		if r.grab.OnMotion != nil {
			r.grab.OnMotion(ev.Pos)
		}
		return
	}

	s, local := r.hit.SurfaceAt(ev.Pos)
	r.seat.SetPointerFocus(s, local)
	if s == nil {
		return
	}
	r.fwd.PointerMotion(s, ev.Time, local)
}

func (r *Router) button(ev PointerButton) {
	if r.grab != nil {
		target := r.grab.Surface
		if !ev.Pressed {
			r.EndGrab()
		}
		if target != nil {
			r.fwd.PointerButton(target, ev.Time, ev.Button, ev.Pressed)
		}
		return
	}

	focus := r.seat.PointerFocus()
	if focus == nil {
		return
	}
	if ev.Pressed && r.OnPress != nil {
		r.OnPress(focus)
	}
	r.fwd.PointerButton(focus, ev.Time, ev.Button, ev.Pressed)
}

func (r *Router) touch(ev Touch) {
	s, local := r.hit.SurfaceAt(ev.Pos)
	if s == nil {
		return
	}
	r.fwd.Touch(s, ev.Time, ev.ID, local, ev.Pressed)
}
