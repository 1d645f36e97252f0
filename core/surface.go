// Package core implements the compositor's central state: surfaces
// with double-buffered pending/committed state, buffers with their
// release discipline, outputs, and per-seat focus. Everything here is
// mutated only from the single core event loop; none of it is safe
// for concurrent use, and none of it needs to be.
package core

import (
	"fmt"
	"image"
	"slices"
)

// Role is the protocol-defined purpose of a surface. It is assigned
// exactly once and is immutable thereafter.
type Role uint8

const (
	RoleNone Role = iota
	RoleToplevel
	RolePopup
	RoleSubsurface
	RoleCursor
)

func (r Role) String() string {
	switch r {
	case RoleNone:
		return "none"
	case RoleToplevel:
		return "toplevel"
	case RolePopup:
		return "popup"
	case RoleSubsurface:
		return "subsurface"
	case RoleCursor:
		return "cursor"
	default:
		return fmt.Sprintf("invalid role %d", uint8(r))
	}
}

// Toplevel is the role payload of a top-level window surface.
type Toplevel struct {
	Title      string
	AppID      string
	Fullscreen bool

	// Configure asks the client to take on a new size and state. Set
	// by the protocol glue; may be nil in tests.
	Configure func(size image.Point, activated, fullscreen bool)

	// CloseRequested asks the client to close the window.
	CloseRequested func()
}

// Popup is the role payload of a popup surface.
type Popup struct {
	Parent   *Surface
	Position image.Point
}

// Subsurface is the role payload of a surface glued to a parent
// surface's coordinate space.
type Subsurface struct {
	Position image.Point

	sync  bool
	below bool
}

// Sync reports whether commits on the subsurface are deferred until
// the parent's next commit.
func (sub *Subsurface) Sync() bool { return sub.sync }

// Below reports whether the subsurface stacks below its parent
// rather than above it.
func (sub *Subsurface) Below() bool { return sub.below }

// Cursor is the role payload of a surface used as a pointer image.
type Cursor struct {
	Hotspot image.Point
}

// State is one snapshot of a surface's double-buffered state. The
// pending copy accumulates requests; commit atomically replaces the
// committed copy with it. The committed copy is only ever swapped
// whole, so a buffer update is never visible without its damage and
// region updates.
type State struct {
	Buffer *Buffer
	Offset image.Point
	Scale  int32
	Damage []image.Rectangle
	Opaque *Region
	Input  *Region

	// Frames holds callbacks owed a frame-done event the next time
	// the surface is part of a presented frame.
	Frames []*FrameCallback
}

// SurfaceListener receives surface lifecycle notifications. All
// methods are called on the core loop.
type SurfaceListener interface {
	Committed(s *Surface)
	Mapped(s *Surface)
	Unmapped(s *Surface)
	Destroyed(s *Surface)
}

// Surface is a rectangular area of pixels a client wants displayed.
type Surface struct {
	Listener SurfaceListener

	role     Role
	toplevel *Toplevel
	popup    *Popup
	sub      *Subsurface
	cursor   *Cursor

	pending   State
	committed State
	cached    *State

	parent   *Surface
	children []*Surface
	popups   []*Surface

	mapped    bool
	destroyed bool
}

func NewSurface() *Surface {
	return &Surface{
		pending: State{Scale: 1},
	}
}

func (s *Surface) Role() Role           { return s.role }
func (s *Surface) Mapped() bool         { return s.mapped }
func (s *Surface) Destroyed() bool      { return s.destroyed }
func (s *Surface) Parent() *Surface     { return s.parent }
func (s *Surface) Committed() *State    { return &s.committed }
func (s *Surface) Pending() *State      { return &s.pending }
func (s *Surface) Toplevel() *Toplevel  { return s.toplevel }
func (s *Surface) Popup() *Popup        { return s.popup }
func (s *Surface) Subrole() *Subsurface { return s.sub }
func (s *Surface) Cursor() *Cursor      { return s.cursor }

// Children returns the surface's subsurfaces in back-to-front order
// among themselves. The returned slice is the surface's own; callers
// must not modify it.
func (s *Surface) Children() []*Surface { return s.children }

// Popups returns the popup surfaces parented to s, oldest first. The
// returned slice is the surface's own; callers must not modify it.
func (s *Surface) Popups() []*Surface { return s.popups }

// Size is the size of the committed content in surface coordinates.
func (s *Surface) Size() image.Point {
	if s.committed.Buffer == nil {
		return image.Point{}
	}
	sz := s.committed.Buffer.Size
	if s.committed.Scale > 1 {
		sz = sz.Div(int(s.committed.Scale))
	}
	return sz
}

// InputAt reports whether p, in surface-local coordinates, is inside
// the surface's committed input region. A nil input region means the
// whole surface accepts input.
func (s *Surface) InputAt(p image.Point) bool {
	if !p.In(image.Rectangle{Max: s.Size()}) {
		return false
	}
	if s.committed.Input == nil {
		return true
	}
	return s.committed.Input.Contains(p)
}

func (s *Surface) setRole(r Role) error {
	if s.role != RoleNone {
		return &RoleError{Role: s.role, Op: "assign role " + r.String()}
	}
	s.role = r
	return nil
}

// SetToplevel assigns the top-level window role.
func (s *Surface) SetToplevel() (*Toplevel, error) {
	if err := s.setRole(RoleToplevel); err != nil {
		return nil, err
	}
	s.toplevel = &Toplevel{}
	return s.toplevel, nil
}

// SetPopup assigns the popup role with the given parent.
func (s *Surface) SetPopup(parent *Surface, pos image.Point) (*Popup, error) {
	if err := s.setRole(RolePopup); err != nil {
		return nil, err
	}
	s.popup = &Popup{Parent: parent, Position: pos}
	parent.popups = append(parent.popups, s)
	return s.popup, nil
}

// SetSubsurface assigns the subsurface role, attaching s to parent's
// subsurface tree. The parent owns the child: destroying the parent
// destroys s. Subsurfaces start out synchronous, per the protocol.
func (s *Surface) SetSubsurface(parent *Surface) (*Subsurface, error) {
	for p := parent; p != nil; p = p.parent {
		if p == s {
			return nil, &ProtocolError{Code: ErrInvalidObject, Reason: "subsurface parent loop"}
		}
	}
	if err := s.setRole(RoleSubsurface); err != nil {
		return nil, err
	}
	s.sub = &Subsurface{sync: true}
	s.parent = parent
	parent.children = append(parent.children, s)
	return s.sub, nil
}

// SetCursor assigns the cursor role.
func (s *Surface) SetCursor(hotspot image.Point) error {
	if err := s.setRole(RoleCursor); err != nil {
		return err
	}
	s.cursor = &Cursor{Hotspot: hotspot}
	return nil
}

// Attach sets the pending buffer. A nil buffer unmaps the surface on
// the next commit.
func (s *Surface) Attach(b *Buffer, off image.Point) {
	if b != nil {
		b.Ref()
	}
	if s.pending.Buffer != nil {
		s.pending.Buffer.Unref()
	}
	s.pending.Buffer = b
	s.pending.Offset = off
}

func (s *Surface) Damage(r image.Rectangle) {
	s.pending.Damage = append(s.pending.Damage, r)
}

// DamageBuffer records damage given in buffer coordinates. It is
// converted to surface coordinates using the pending scale.
func (s *Surface) DamageBuffer(r image.Rectangle) {
	if sc := int(s.pending.Scale); sc > 1 {
		r = image.Rect(r.Min.X/sc, r.Min.Y/sc, (r.Max.X+sc-1)/sc, (r.Max.Y+sc-1)/sc)
	}
	s.pending.Damage = append(s.pending.Damage, r)
}

func (s *Surface) SetOpaqueRegion(r *Region) {
	s.pending.Opaque = r.Clone()
}

func (s *Surface) SetInputRegion(r *Region) {
	s.pending.Input = r.Clone()
}

func (s *Surface) SetScale(scale int32) {
	if scale < 1 {
		scale = 1
	}
	s.pending.Scale = scale
}

// Frame registers a callback to be fired when the surface is next
// part of a presented frame.
func (s *Surface) Frame(cb *FrameCallback) {
	s.pending.Frames = append(s.pending.Frames, cb)
}

// Commit atomically publishes the pending state. For a synchronous
// subsurface the state is instead cached and becomes visible
// atomically with the parent's next commit. Committing content on a
// surface that has no role yet is a role error.
func (s *Surface) Commit() error {
	if s.destroyed {
		return nil
	}
	if s.role == RoleNone && s.pending.Buffer != nil {
		return &RoleError{Role: s.role, Op: "commit"}
	}

	st := s.snapshotPending()
	if s.role == RoleSubsurface && s.sub.sync {
		s.cache(st)
		return nil
	}
	s.apply(st)
	return nil
}

// snapshotPending copies the pending state for publication. Damage
// and frame callbacks move out of the pending state; the attached
// buffer is sticky and stays pending for the next commit too.
func (s *Surface) snapshotPending() State {
	st := s.pending
	if st.Buffer != nil {
		st.Buffer.Ref()
	}
	st.Opaque = st.Opaque.Clone()
	st.Input = st.Input.Clone()
	s.pending.Damage = nil
	s.pending.Frames = nil
	return st
}

// cache merges st into the cached slot of a synchronous subsurface.
// Damage and callbacks accumulate; everything else is replaced.
func (s *Surface) cache(st State) {
	if s.cached == nil {
		s.cached = &st
		return
	}
	st.Damage = append(s.cached.Damage, st.Damage...)
	st.Frames = append(s.cached.Frames, st.Frames...)
	if s.cached.Buffer != nil {
		s.cached.Buffer.Unref()
	}
	*s.cached = st
}

func (s *Surface) apply(st State) {
	old := s.committed

	// Frame callbacks not yet presented carry over; coalesced commits
	// all get their done event from the same presented frame.
	st.Frames = append(old.Frames, st.Frames...)
	s.committed = st
	if old.Buffer != nil {
		old.Buffer.Unref()
	}

	switch {
	case !s.mapped && s.committed.Buffer != nil:
		s.mapped = true
		if s.Listener != nil {
			s.Listener.Mapped(s)
		}
	case s.mapped && s.committed.Buffer == nil:
		s.mapped = false
		if s.Listener != nil {
			s.Listener.Unmapped(s)
		}
	}
	if s.Listener != nil {
		s.Listener.Committed(s)
	}

	// A synchronous child's cached state becomes visible atomically
	// with this commit.
	for _, c := range s.children {
		if c.sub.sync && c.cached != nil {
			cst := *c.cached
			c.cached = nil
			c.apply(cst)
		}
	}
}

// SetSync switches a subsurface between synchronous and desynchronized
// commit modes. Leaving sync mode flushes any cached state.
func (s *Surface) SetSync(sync bool) error {
	if s.role != RoleSubsurface {
		return &RoleError{Role: s.role, Op: "set_sync"}
	}
	s.sub.sync = sync
	if !sync && s.cached != nil {
		st := *s.cached
		s.cached = nil
		s.apply(st)
	}
	return nil
}

// SetPosition sets a subsurface's position in its parent's coordinate
// space. Takes effect immediately; position is not double-buffered
// here.
func (s *Surface) SetPosition(pos image.Point) error {
	if s.role != RoleSubsurface {
		return &RoleError{Role: s.role, Op: "set_position"}
	}
	s.sub.Position = pos
	return nil
}

// PlaceAbove restacks s directly above sibling, which must be the
// parent or another child of the parent.
func (s *Surface) PlaceAbove(sibling *Surface) error {
	return s.place(sibling, true)
}

// PlaceBelow restacks s directly below sibling.
func (s *Surface) PlaceBelow(sibling *Surface) error {
	return s.place(sibling, false)
}

func (s *Surface) place(sibling *Surface, above bool) error {
	if s.role != RoleSubsurface {
		return &RoleError{Role: s.role, Op: "place"}
	}
	p := s.parent
	if sibling == p {
		s.sub.below = !above
		return nil
	}
	i := slices.Index(p.children, sibling)
	if i < 0 || sibling.role != RoleSubsurface {
		return &ProtocolError{Code: ErrInvalidObject, Reason: "restack target is not a sibling"}
	}
	p.children = slices.DeleteFunc(p.children, func(c *Surface) bool { return c == s })
	i = slices.Index(p.children, sibling)
	if above {
		i++
	}
	p.children = slices.Insert(p.children, i, s)
	s.sub.below = sibling.sub.below
	return nil
}

// Destroy tears the surface down, cascading to its subsurface tree
// and popups. A subsurface never outlives its parent. Buffers referenced only by
// this surface's state get their release or deferred teardown.
func (s *Surface) Destroy() {
	if s.destroyed {
		return
	}
	s.destroyed = true

	for _, c := range slices.Clone(s.children) {
		c.Destroy()
	}
	s.children = nil

	if s.parent != nil {
		s.parent.children = slices.DeleteFunc(s.parent.children, func(c *Surface) bool { return c == s })
		s.parent = nil
	}
	if s.popup != nil && s.popup.Parent != nil {
		p := s.popup.Parent
		p.popups = slices.DeleteFunc(p.popups, func(c *Surface) bool { return c == s })
		s.popup.Parent = nil
	}
	for _, p := range slices.Clone(s.popups) {
		p.Destroy()
	}
	s.popups = nil

	if s.pending.Buffer != nil {
		s.pending.Buffer.Unref()
		s.pending.Buffer = nil
	}
	if s.committed.Buffer != nil {
		s.committed.Buffer.Unref()
		s.committed.Buffer = nil
	}
	if s.cached != nil && s.cached.Buffer != nil {
		s.cached.Buffer.Unref()
	}
	s.cached = nil

	if s.mapped {
		s.mapped = false
		if s.Listener != nil {
			s.Listener.Unmapped(s)
		}
	}
	if s.Listener != nil {
		s.Listener.Destroyed(s)
	}
}
