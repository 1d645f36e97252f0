package wm

import (
	"image"

	"deedles.dev/tatami/core"
	"deedles.dev/tatami/scene"
)

// layout recomputes container geometry top-down, dividing each
// split's space among its children by their ratios, then marks the
// workspace's output dirty.
func (m *Manager) layout(ws *Workspace) {
	if ws == nil || ws.output == nil {
		return
	}
	g := ws.output.Geometry

	if ws.fullscreen != nil {
		ws.fullscreen.geo = g
		m.configure(ws.fullscreen)
	}
	if ws.root != nil {
		m.layoutTree(ws.root, g)
	}
	for _, c := range ws.floating {
		m.configure(c)
	}
	m.dirty(ws)
}

func (m *Manager) layoutTree(c *Container, g image.Rectangle) {
	c.geo = g
	if c.Leaf() {
		if c.ws.fullscreen != c {
			m.configure(c)
		}
		return
	}

	pos := g.Min
	for i, ch := range c.children {
		var cg image.Rectangle
		last := i == len(c.children)-1
		if c.orient == Horizontal {
			w := int(float64(g.Dx()) * c.ratios[i])
			if last {
				w = g.Max.X - pos.X
			}
			cg = image.Rect(pos.X, g.Min.Y, pos.X+w, g.Max.Y)
			pos.X += w
		} else {
			h := int(float64(g.Dy()) * c.ratios[i])
			if last {
				h = g.Max.Y - pos.Y
			}
			cg = image.Rect(g.Min.X, pos.Y, g.Max.X, pos.Y+h)
			pos.Y += h
		}
		m.layoutTree(ch, cg)
	}
}

// configure tells a leaf's client its size and state.
func (m *Manager) configure(c *Container) {
	if c.surface == nil {
		return
	}
	tl := c.surface.Toplevel()
	if tl == nil || tl.Configure == nil {
		return
	}
	tl.Configure(c.geo.Size(), c == m.focus, tl.Fullscreen)
}

// Visible implements scene.Layout: the back-to-front list of surfaces
// on out, derived from the active workspace's tree. A fullscreen
// container hides everything else on the output while the rest of the
// tree is retained.
func (m *Manager) Visible(out *core.Output) []scene.Node {
	ws := m.active[out]
	if ws == nil {
		return nil
	}

	if fs := ws.fullscreen; fs != nil && fs.surface != nil && fs.surface.Mapped() {
		return appendPopups(scene.Flatten(fs.surface, fs.geo, nil), fs.surface, fs.geo.Min)
	}

	var nodes []scene.Node
	if ws.root != nil {
		for _, leaf := range ws.root.leaves(nil) {
			if leaf.surface != nil && leaf.surface.Mapped() {
				nodes = scene.Flatten(leaf.surface, leaf.geo, nodes)
				nodes = appendPopups(nodes, leaf.surface, leaf.geo.Min)
			}
		}
	}
	for _, c := range ws.floating {
		if c.surface != nil && c.surface.Mapped() {
			nodes = scene.Flatten(c.surface, c.geo, nodes)
			nodes = appendPopups(nodes, c.surface, c.geo.Min)
		}
	}
	return nodes
}

// appendPopups places s's mapped popups above the surface they
// extend, at their offset from its origin, recursing for nested
// menus.
func appendPopups(nodes []scene.Node, s *core.Surface, origin image.Point) []scene.Node {
	for _, p := range s.Popups() {
		if !p.Mapped() {
			continue
		}
		pos := origin.Add(p.Popup().Position)
		nodes = scene.Flatten(p, image.Rectangle{Min: pos, Max: pos.Add(p.Size())}, nodes)
		nodes = appendPopups(nodes, p, pos)
	}
	return nodes
}
