package wm

import (
	"image"
	"strconv"

	"deedles.dev/tatami/core"
	"deedles.dev/tatami/internal/xslices"
)

// Policy is the configurable part of window-management behavior.
type Policy struct {
	// DefaultSplit is the orientation used when a lone leaf gets
	// split by a newly mapped window.
	DefaultSplit Orientation

	// FloatSize is the initial size of a container switched to
	// floating, as a fraction of its output. Zero means half.
	FloatSize float64
}

// Manager is the window-management state machine. All methods run on
// the core loop.
type Manager struct {
	// OnDirty is called whenever layout changes make an output need a
	// repaint.
	OnDirty func(*core.Output)

	policy     Policy
	seat       *core.Seat
	workspaces map[string]*Workspace
	active     map[*core.Output]*Workspace
	outputs    []*core.Output
	containers map[*core.Surface]*Container
	focus      *Container
	nextWS     int
}

func NewManager(policy Policy, seat *core.Seat) *Manager {
	return &Manager{
		policy:     policy,
		seat:       seat,
		workspaces: make(map[string]*Workspace),
		active:     make(map[*core.Output]*Workspace),
		containers: make(map[*core.Surface]*Container),
		nextWS:     1,
	}
}

func (m *Manager) dirty(ws *Workspace) {
	if ws != nil && ws.output != nil && m.OnDirty != nil {
		m.OnDirty(ws.output)
	}
}

func (m *Manager) workspace(name string) *Workspace {
	ws, ok := m.workspaces[name]
	if !ok {
		ws = newWorkspace(name)
		m.workspaces[name] = ws
	}
	return ws
}

// AddOutput starts managing out, activating a fresh workspace on it.
func (m *Manager) AddOutput(out *core.Output) *Workspace {
	var ws *Workspace
	for {
		ws = m.workspace(strconv.Itoa(m.nextWS))
		m.nextWS++
		if ws.output == nil {
			break
		}
	}
	ws.output = out
	m.active[out] = ws
	m.outputs = append(m.outputs, out)
	m.layout(ws)
	return ws
}

// RemoveOutput stops managing out. Its workspace keeps its tree and
// becomes assignable to another output.
func (m *Manager) RemoveOutput(out *core.Output) {
	ws := m.active[out]
	delete(m.active, out)
	m.outputs = xslices.Remove(m.outputs, out)
	if ws != nil {
		ws.output = nil
	}
}

// activeWorkspace is the workspace new windows go to: the focused
// container's, else the first output's active workspace, else an
// unassigned one so clients that map before any output exists are
// still tracked.
func (m *Manager) activeWorkspace() *Workspace {
	if m.focus != nil && m.focus.ws != nil {
		return m.focus.ws
	}
	for _, out := range m.outputs {
		if ws := m.active[out]; ws != nil {
			return ws
		}
	}
	return m.workspace(strconv.Itoa(m.nextWS))
}

// Map inserts a newly mapped top-level surface as a leaf after the
// focused leaf and focuses it. Surfaces with other roles are placed
// by their parents, not by the window manager.
func (m *Manager) Map(s *core.Surface) {
	if s.Role() != core.RoleToplevel {
		return
	}
	if _, ok := m.containers[s]; ok {
		return
	}

	leaf := newLeaf(s)
	ws := m.activeWorkspace()
	var after *Container
	if m.focus != nil && m.focus.ws == ws && m.focus.Leaf() && !m.focus.floating {
		after = m.focus
	}
	ws.attachTiled(leaf, after, m.policy.DefaultSplit)
	m.containers[s] = leaf
	m.Focus(leaf)
	m.layout(ws)
}

// Unmap removes s's container from its tree, collapsing any split
// left with one child, and moves focus to a neighbor.
func (m *Manager) Unmap(s *core.Surface) {
	c, ok := m.containers[s]
	if !ok {
		return
	}
	delete(m.containers, s)
	ws := c.ws

	var next *Container
	if m.focus == c {
		next = m.neighbor(c)
	}

	if c.floating {
		ws.detachFloating(c)
	} else {
		ws.detachTiled(c)
	}
	c.surface = nil

	if m.focus == c {
		m.Focus(next)
	}
	m.layout(ws)
}

// OutputFor reports the output a surface is shown on, walking up to
// the managed ancestor for subsurfaces and popups. It returns nil for
// surfaces not on any visible workspace.
func (m *Manager) OutputFor(s *core.Surface) *core.Output {
	for {
		if p := s.Parent(); p != nil {
			s = p
			continue
		}
		if pu := s.Popup(); pu != nil && pu.Parent != nil {
			s = pu.Parent
			continue
		}
		break
	}
	c, ok := m.containers[s]
	if !ok || c.ws == nil {
		return nil
	}
	return c.ws.output
}

// neighbor picks the container that inherits focus when c goes away:
// the previous leaf in tree order, else the next one.
func (m *Manager) neighbor(c *Container) *Container {
	leaves := c.ws.Leaves()
	for i, l := range leaves {
		if l == c {
			if i > 0 {
				return leaves[i-1]
			}
			if i+1 < len(leaves) {
				return leaves[i+1]
			}
			return nil
		}
	}
	return nil
}

// Focus gives c keyboard focus, reconfiguring the old and new
// toplevels so their activated state is right.
func (m *Manager) Focus(c *Container) {
	old := m.focus
	m.focus = c
	if m.seat != nil {
		if c != nil {
			m.seat.SetKeyboardFocus(c.surface)
		} else {
			m.seat.SetKeyboardFocus(nil)
		}
	}
	if old != nil && old != c && old.surface != nil {
		m.configure(old)
	}
	if c != nil {
		m.configure(c)
	}
}

func (m *Manager) FocusSurface(s *core.Surface) {
	if c, ok := m.containers[s]; ok {
		m.Focus(c)
	}
}

// Focused returns the surface holding window-manager focus, or nil.
func (m *Manager) Focused() *core.Surface {
	if m.focus == nil {
		return nil
	}
	return m.focus.surface
}

func (m *Manager) FocusNext() { m.cycleFocus(1) }
func (m *Manager) FocusPrev() { m.cycleFocus(-1) }

func (m *Manager) cycleFocus(dir int) {
	ws := m.activeWorkspace()
	leaves := ws.Leaves()
	if len(leaves) == 0 {
		return
	}
	i := 0
	for j, l := range leaves {
		if l == m.focus {
			i = (j + dir + len(leaves)) % len(leaves)
			break
		}
	}
	m.Focus(leaves[i])
}

// Container exposes the container wrapping s, mainly for tests and
// interactive grabs.
func (m *Manager) Container(s *core.Surface) *Container {
	return m.containers[s]
}

// SetFullscreen makes s the sole visible container on its output, or
// restores it. The tree is left untouched while fullscreen, so
// un-fullscreening restores the exact prior geometry and position.
func (m *Manager) SetFullscreen(s *core.Surface, full bool) {
	c, ok := m.containers[s]
	if !ok {
		return
	}
	ws := c.ws
	if full {
		ws.fullscreen = c
	} else if ws.fullscreen == c {
		ws.fullscreen = nil
	}
	if tl := s.Toplevel(); tl != nil {
		tl.Fullscreen = full && ws.fullscreen == c
	}
	m.layout(ws)
}

// ToggleFullscreen toggles fullscreen on the focused container.
func (m *Manager) ToggleFullscreen() {
	if m.focus == nil || m.focus.surface == nil {
		return
	}
	ws := m.focus.ws
	m.SetFullscreen(m.focus.surface, ws.fullscreen != m.focus)
}

// ToggleFloating switches the focused container between tiled and
// floating without touching the wrapped surface.
func (m *Manager) ToggleFloating() {
	c := m.focus
	if c == nil || !c.Leaf() {
		return
	}
	ws := c.ws
	if !c.floating {
		ws.detachTiled(c)
		c.floating = true
		c.geo = m.floatRect(ws, c)
		ws.floating = append(ws.floating, c)
	} else {
		ws.detachFloating(c)
		c.floating = false
		ws.attachTiled(c, nil, m.policy.DefaultSplit)
	}
	m.layout(ws)
}

func (m *Manager) floatRect(ws *Workspace, c *Container) image.Rectangle {
	if ws.output == nil {
		return c.geo
	}
	g := ws.output.Geometry
	frac := m.policy.FloatSize
	if frac <= 0 || frac > 1 {
		frac = 0.5
	}
	sz := image.Pt(int(float64(g.Dx())*frac), int(float64(g.Dy())*frac))
	min := g.Min.Add(g.Size().Sub(sz).Div(2))
	return image.Rectangle{Min: min, Max: min.Add(sz)}
}

// SetFloatingGeometry moves or resizes a floating container, for use
// by interactive move/resize grabs.
func (m *Manager) SetFloatingGeometry(s *core.Surface, geo image.Rectangle) {
	c, ok := m.containers[s]
	if !ok || !c.floating {
		return
	}
	c.geo = geo
	m.configure(c)
	m.dirty(c.ws)
}

// ToggleSplit flips the orientation of the focused container's parent
// split.
func (m *Manager) ToggleSplit() {
	if m.focus == nil {
		return
	}
	target := m.focus.parent
	if target == nil && !m.focus.Leaf() {
		target = m.focus
	}
	if target == nil {
		if m.focus.ws != nil && m.focus.ws.root != nil && !m.focus.ws.root.Leaf() {
			target = m.focus.ws.root
		} else {
			return
		}
	}
	target.orient = target.orient.Other()
	m.layout(m.focus.ws)
}

// CloseFocused asks the focused window's client to close it.
func (m *Manager) CloseFocused() {
	s := m.Focused()
	if s == nil {
		return
	}
	if tl := s.Toplevel(); tl != nil && tl.CloseRequested != nil {
		tl.CloseRequested()
	}
}

// SwitchWorkspace activates the named workspace on the focused
// output, creating it on demand.
func (m *Manager) SwitchWorkspace(name string) {
	cur := m.activeWorkspace()
	out := cur.output
	if out == nil {
		return
	}
	ws := m.workspace(name)
	if ws == cur {
		return
	}
	if ws.output != nil && ws.output != out {
		// Already visible on another output; don't steal it.
		return
	}
	cur.output = nil
	ws.output = out
	m.active[out] = ws

	leaves := ws.Leaves()
	if len(leaves) > 0 {
		m.Focus(leaves[len(leaves)-1])
	} else {
		m.Focus(nil)
	}
	m.layout(ws)
	m.dirty(ws)
}

// MoveFocusedToWorkspace sends the focused container to the named
// workspace and refocuses a neighbor here.
func (m *Manager) MoveFocusedToWorkspace(name string) {
	c := m.focus
	if c == nil || !c.Leaf() {
		return
	}
	src := c.ws
	dst := m.workspace(name)
	if dst == src {
		return
	}

	next := m.neighbor(c)
	if c.floating {
		src.detachFloating(c)
		dst.floating = append(dst.floating, c)
		c.setWorkspace(dst)
	} else {
		src.detachTiled(c)
		dst.attachTiled(c, nil, m.policy.DefaultSplit)
	}
	m.Focus(next)
	m.layout(src)
	m.layout(dst)
}
