package wm

import (
	"deedles.dev/tatami/core"
	"deedles.dev/tatami/internal/xslices"
)

// Workspace holds one container tree plus its floating containers.
// Workspaces are assigned to outputs many-to-one; at most one is
// active per output at a time.
type Workspace struct {
	Name string

	output     *core.Output
	root       *Container
	floating   []*Container
	fullscreen *Container
}

func newWorkspace(name string) *Workspace {
	return &Workspace{Name: name}
}

func (ws *Workspace) Output() *core.Output    { return ws.output }
func (ws *Workspace) Root() *Container        { return ws.root }
func (ws *Workspace) Fullscreen() *Container  { return ws.fullscreen }
func (ws *Workspace) Floating() []*Container  { return ws.floating }

// Empty reports whether the workspace holds no containers at all.
func (ws *Workspace) Empty() bool {
	return ws.root == nil && len(ws.floating) == 0
}

// Leaves returns every tiled leaf in tree order followed by the
// floating containers.
func (ws *Workspace) Leaves() []*Container {
	var out []*Container
	if ws.root != nil {
		out = ws.root.leaves(out)
	}
	return append(out, ws.floating...)
}

// attachTiled inserts leaf into the tiled tree after the focused
// leaf's position in its parent split; the deterministic tie-break
// when several insertion points are valid. A lone root leaf gets
// wrapped in a new split first.
func (ws *Workspace) attachTiled(leaf *Container, after *Container, split Orientation) {
	leaf.setWorkspace(ws)
	switch {
	case ws.root == nil:
		ws.root = leaf

	case after != nil && after.parent != nil:
		after.parent.insertChild(after.index()+1, leaf)

	case ws.root.Leaf() || (after == ws.root):
		old := ws.root
		s := newSplit(split)
		s.setWorkspace(ws)
		ws.root = s
		s.insertChild(0, old)
		s.insertChild(1, leaf)

	default:
		ws.root.insertChild(len(ws.root.children), leaf)
	}
}

// detachTiled removes leaf from the tiled tree, collapsing any split
// left with a single child so tree depth never grows without bound.
func (ws *Workspace) detachTiled(leaf *Container) {
	if ws.fullscreen == leaf {
		ws.fullscreen = nil
	}
	p := leaf.parent
	if p == nil {
		if ws.root == leaf {
			ws.root = nil
		}
		return
	}
	p.removeChild(leaf)
	ws.collapse(p)
}

// collapse replaces a single-child split with that child, walking up
// in case the replacement makes the grandparent collapsible too.
func (ws *Workspace) collapse(c *Container) {
	for c != nil && !c.Leaf() {
		if len(c.children) != 1 {
			return
		}
		only := c.children[0]
		c.removeChild(only)
		p := c.parent
		if p == nil {
			only.parent = nil
			ws.root = only
		} else {
			i := c.index()
			ratio := p.ratios[i]
			p.removeChild(c)
			p.insertChild(i, only)
			p.ratios[i] = ratio
			p.normalize()
		}
		c = p
	}
}

func (ws *Workspace) detachFloating(c *Container) {
	if ws.fullscreen == c {
		ws.fullscreen = nil
	}
	ws.floating = xslices.Remove(ws.floating, c)
}
