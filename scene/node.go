// Package scene maintains the per-output visible-surface lists and
// paces frame production: at most one composited frame per output
// refresh interval, with intermediate commits coalesced.
package scene

import (
	"image"

	"deedles.dev/tatami/core"
)

// Transform is an output transform, using the wl_output enum values.
type Transform uint8

const (
	TransformNormal Transform = iota
	Transform90
	Transform180
	Transform270
	TransformFlipped
	TransformFlipped90
	TransformFlipped180
	TransformFlipped270
)

// Node is one surface placed on an output. Lists of nodes are ordered
// back-to-front.
type Node struct {
	Surface   *core.Surface
	Dst       image.Rectangle
	Transform Transform
}

// Layout produces the back-to-front visible list for an output. The
// window manager implements this; the scheduler walks it whenever a
// frame is produced, so output surface lists are always derived from
// the current tree, never stored.
type Layout interface {
	Visible(out *core.Output) []Node
}

// Flatten appends nodes for s placed at dst together with its mapped
// subsurface tree, preserving stacking: children placed below the
// parent first, then the parent, then the rest, recursively.
func Flatten(s *core.Surface, dst image.Rectangle, nodes []Node) []Node {
	below := make([]*core.Surface, 0, len(s.Children()))
	above := make([]*core.Surface, 0, len(s.Children()))
	for _, c := range s.Children() {
		if !c.Mapped() {
			continue
		}
		if c.Subrole().Below() {
			below = append(below, c)
		} else {
			above = append(above, c)
		}
	}

	child := func(nodes []Node, c *core.Surface) []Node {
		pos := dst.Min.Add(c.Subrole().Position)
		return Flatten(c, image.Rectangle{Min: pos, Max: pos.Add(c.Size())}, nodes)
	}

	for _, c := range below {
		nodes = child(nodes, c)
	}
	nodes = append(nodes, Node{Surface: s, Dst: dst})
	for _, c := range above {
		nodes = child(nodes, c)
	}
	return nodes
}
