// Package wm implements window-management policy: the workspace and
// container trees, tiling, floating and fullscreen placement, and
// keyboard focus. It consumes surface lifecycle events and assigns
// geometry; the scene scheduler asks it for the visible list each
// frame.
package wm

import (
	"image"

	"deedles.dev/tatami/core"
	"deedles.dev/tatami/internal/xslices"
)

// Orientation is the direction a split container divides its space.
type Orientation uint8

const (
	Horizontal Orientation = iota
	Vertical
)

func (o Orientation) String() string {
	if o == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// Other returns the opposite orientation.
func (o Orientation) Other() Orientation {
	if o == Vertical {
		return Horizontal
	}
	return Vertical
}

// Container is a node in a workspace's tree: either a leaf wrapping
// one top-level surface, or a split with ordered children and size
// ratios. Parents own children; the child's parent pointer is a
// non-owning back-reference.
type Container struct {
	parent   *Container
	children []*Container
	ratios   []float64
	orient   Orientation

	surface  *core.Surface
	floating bool
	geo      image.Rectangle

	ws *Workspace
}

func newLeaf(s *core.Surface) *Container {
	return &Container{surface: s}
}

func newSplit(orient Orientation) *Container {
	return &Container{orient: orient}
}

func (c *Container) Leaf() bool               { return c.surface != nil }
func (c *Container) Surface() *core.Surface   { return c.surface }
func (c *Container) Floating() bool           { return c.floating }
func (c *Container) Geometry() image.Rectangle { return c.geo }
func (c *Container) Parent() *Container       { return c.parent }
func (c *Container) Orientation() Orientation { return c.orient }
func (c *Container) Children() []*Container   { return c.children }

func (c *Container) setWorkspace(ws *Workspace) {
	c.ws = ws
	for _, ch := range c.children {
		ch.setWorkspace(ws)
	}
}

// index returns c's position among its parent's children, or -1 for
// a root.
func (c *Container) index() int {
	if c.parent == nil {
		return -1
	}
	for i, ch := range c.parent.children {
		if ch == c {
			return i
		}
	}
	return -1
}

// insertChild places child at index i with an equal share of the
// split, renormalizing the other ratios.
func (c *Container) insertChild(i int, child *Container) {
	n := float64(len(c.children) + 1)
	for j := range c.ratios {
		c.ratios[j] *= (n - 1) / n
	}
	c.children = xslices.Insert(c.children, i, child)
	c.ratios = xslices.Insert(c.ratios, i, 1/n)
	child.parent = c
	child.setWorkspace(c.ws)
}

// removeChild detaches child and redistributes its share.
func (c *Container) removeChild(child *Container) {
	i := child.index()
	if i < 0 {
		return
	}
	c.children = append(c.children[:i], c.children[i+1:]...)
	c.ratios = append(c.ratios[:i], c.ratios[i+1:]...)
	child.parent = nil

	var total float64
	for _, r := range c.ratios {
		total += r
	}
	if total > 0 {
		for j := range c.ratios {
			c.ratios[j] /= total
		}
	}
}

func (c *Container) normalize() {
	var total float64
	for _, r := range c.ratios {
		total += r
	}
	if total <= 0 {
		return
	}
	for j := range c.ratios {
		c.ratios[j] /= total
	}
}

// leaves appends every leaf under c in tree order.
func (c *Container) leaves(out []*Container) []*Container {
	if c.Leaf() {
		return append(out, c)
	}
	for _, ch := range c.children {
		out = ch.leaves(out)
	}
	return out
}
