package wm

import (
	"image"
	"testing"

	"deedles.dev/tatami/core"
)

func testOutput() *core.Output {
	return &core.Output{Name: "test-1", Geometry: image.Rect(0, 0, 600, 400), Scale: 1}
}

func testManager(t *testing.T, policy Policy) (*Manager, *core.Output) {
	t.Helper()
	m := NewManager(policy, core.NewSeat("seat0", core.CapKeyboard))
	out := testOutput()
	m.AddOutput(out)
	return m, out
}

// window creates a mapped toplevel and hands it to the manager.
func window(t *testing.T, m *Manager) *core.Surface {
	t.Helper()
	s := core.NewSurface()
	if _, err := s.SetToplevel(); err != nil {
		t.Fatalf("set toplevel: %v", err)
	}
	s.Attach(&core.Buffer{Size: image.Pt(10, 10)}, image.Point{})
	if err := s.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	m.Map(s)
	return s
}

func geos(m *Manager, surfs ...*core.Surface) []image.Rectangle {
	out := make([]image.Rectangle, 0, len(surfs))
	for _, s := range surfs {
		out = append(out, m.Container(s).Geometry())
	}
	return out
}

func TestMapTilesHorizontally(t *testing.T) {
	m, out := testManager(t, Policy{})

	a := window(t, m)
	if got := m.Container(a).Geometry(); got != out.Geometry {
		t.Fatalf("single window geometry = %v, want the whole output", got)
	}

	b := window(t, m)
	got := geos(m, a, b)
	want := []image.Rectangle{image.Rect(0, 0, 300, 400), image.Rect(300, 0, 600, 400)}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("window %v geometry = %v, want %v", i, got[i], want[i])
		}
	}

	if m.Focused() != b {
		t.Error("newly mapped window not focused")
	}
}

func TestMapInsertsAfterFocused(t *testing.T) {
	m, _ := testManager(t, Policy{})
	a := window(t, m)
	b := window(t, m)

	// Focus back on a; the next window lands between a and b.
	m.FocusSurface(a)
	c := window(t, m)

	ws := m.Container(a).ws
	leaves := ws.Leaves()
	want := []*core.Surface{a, c, b}
	for i, l := range leaves {
		if l.Surface() != want[i] {
			t.Fatalf("leaf order %v: got %v", i, leaves)
		}
	}
}

func TestVerticalSplitPolicy(t *testing.T) {
	m, _ := testManager(t, Policy{DefaultSplit: Vertical})
	a := window(t, m)
	b := window(t, m)

	got := geos(m, a, b)
	want := []image.Rectangle{image.Rect(0, 0, 600, 200), image.Rect(0, 200, 600, 400)}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("window %v geometry = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestUnmapCollapsesSplit(t *testing.T) {
	m, out := testManager(t, Policy{})
	a := window(t, m)
	b := window(t, m)
	c := window(t, m)

	ws := m.Container(a).ws

	m.Unmap(b)
	if n := len(ws.Leaves()); n != 2 {
		t.Fatalf("%v leaves after unmap, want 2", n)
	}

	m.Unmap(c)
	if ws.Root() != m.Container(a) {
		t.Error("lone leaf did not become the root after collapse")
	}
	if got := m.Container(a).Geometry(); got != out.Geometry {
		t.Errorf("remaining window geometry = %v, want the whole output", got)
	}
	if m.Focused() != a {
		t.Error("focus did not move to the neighbor")
	}
}

func TestFullscreenRoundTrip(t *testing.T) {
	m, out := testManager(t, Policy{})
	a := window(t, m)
	b := window(t, m)

	before := geos(m, a, b)

	m.SetFullscreen(b, true)
	if got := m.Container(b).Geometry(); got != out.Geometry {
		t.Errorf("fullscreen geometry = %v, want the whole output", got)
	}
	if !b.Toplevel().Fullscreen {
		t.Error("toplevel fullscreen state not set")
	}
	if nodes := m.Visible(out); len(nodes) != 1 || nodes[0].Surface != b {
		t.Errorf("fullscreen does not hide the rest: %v nodes", len(nodes))
	}

	m.SetFullscreen(b, false)
	after := geos(m, a, b)
	for i := range before {
		if after[i] != before[i] {
			t.Errorf("geometry %v not restored: %v != %v", i, after[i], before[i])
		}
	}
	if nodes := m.Visible(out); len(nodes) != 2 {
		t.Errorf("%v visible after unfullscreen, want 2", len(nodes))
	}
}

func TestFullscreenWindowUnmapped(t *testing.T) {
	m, out := testManager(t, Policy{})
	a := window(t, m)
	b := window(t, m)
	m.SetFullscreen(b, true)

	m.Unmap(b)
	if nodes := m.Visible(out); len(nodes) != 1 || nodes[0].Surface != a {
		t.Error("remaining window not visible after fullscreen window unmapped")
	}
	if got := m.Container(a).Geometry(); got != out.Geometry {
		t.Errorf("remaining window geometry = %v", got)
	}
}

func TestFullscreenFloatingUnmapped(t *testing.T) {
	m, out := testManager(t, Policy{FloatSize: 0.5})
	a := window(t, m)
	b := window(t, m)
	m.ToggleFloating()
	m.SetFullscreen(b, true)

	m.Unmap(b)
	ws := m.active[out]
	if ws.fullscreen != nil {
		t.Error("workspace still fullscreen after the floating window unmapped")
	}
	if nodes := m.Visible(out); len(nodes) != 1 || nodes[0].Surface != a {
		t.Error("remaining window not visible after fullscreen floating window unmapped")
	}
}

func TestToggleFloating(t *testing.T) {
	m, out := testManager(t, Policy{FloatSize: 0.5})
	a := window(t, m)
	b := window(t, m)

	m.ToggleFloating()
	c := m.Container(b)
	if !c.Floating() {
		t.Fatal("focused window not floating after toggle")
	}
	want := image.Rect(150, 100, 450, 300)
	if c.Geometry() != want {
		t.Errorf("floating geometry = %v, want centered %v", c.Geometry(), want)
	}
	if got := m.Container(a).Geometry(); got != out.Geometry {
		t.Error("tiled remainder did not relayout after float")
	}

	// Floating windows render above tiled ones.
	nodes := m.Visible(out)
	if len(nodes) != 2 || nodes[len(nodes)-1].Surface != b {
		t.Error("floating window not on top")
	}

	m.ToggleFloating()
	if m.Container(b).Floating() {
		t.Error("window still floating after second toggle")
	}
	if n := len(m.Container(a).ws.Root().Children()); n != 2 {
		t.Errorf("retiled tree has %v children, want 2", n)
	}
}

func TestToggleSplit(t *testing.T) {
	m, _ := testManager(t, Policy{})
	a := window(t, m)
	_ = window(t, m)

	root := m.Container(a).ws.Root()
	if root.Orientation() != Horizontal {
		t.Fatalf("initial orientation %v", root.Orientation())
	}
	m.ToggleSplit()
	if root.Orientation() != Vertical {
		t.Error("split orientation did not flip")
	}
	if got := m.Container(a).Geometry(); got != image.Rect(0, 0, 600, 200) {
		t.Errorf("geometry after flip = %v", got)
	}
}

func TestSwitchWorkspace(t *testing.T) {
	m, out := testManager(t, Policy{})
	a := window(t, m)

	m.SwitchWorkspace("2")
	if m.Visible(out) != nil {
		t.Error("old workspace contents still visible")
	}
	b := window(t, m)
	if m.Container(b).ws == m.Container(a).ws {
		t.Error("new window landed on the inactive workspace")
	}

	m.SwitchWorkspace("1")
	nodes := m.Visible(out)
	if len(nodes) != 1 || nodes[0].Surface != a {
		t.Error("switching back did not restore the workspace")
	}
	if m.Focused() != a {
		t.Error("focus did not follow the workspace switch")
	}
}

func TestSwitchWorkspaceWontSteal(t *testing.T) {
	m, _ := testManager(t, Policy{})
	out2 := &core.Output{Name: "test-2", Geometry: image.Rect(600, 0, 1200, 400), Scale: 1}
	m.AddOutput(out2)

	// Workspace 2 came up on the second output; the first output's
	// switch to it is refused.
	window(t, m)
	ws := m.activeWorkspace()
	m.SwitchWorkspace("2")
	if m.activeWorkspace() != ws {
		t.Error("workspace visible on another output was stolen")
	}
}

func TestMoveFocusedToWorkspace(t *testing.T) {
	m, out := testManager(t, Policy{})
	a := window(t, m)
	b := window(t, m)

	m.MoveFocusedToWorkspace("5")
	if len(m.Visible(out)) != 1 {
		t.Error("moved window still visible")
	}
	if m.Focused() != a {
		t.Error("focus did not fall back to the neighbor")
	}

	m.SwitchWorkspace("5")
	nodes := m.Visible(out)
	if len(nodes) != 1 || nodes[0].Surface != b {
		t.Error("moved window not on the target workspace")
	}
}

func TestFocusCycle(t *testing.T) {
	m, _ := testManager(t, Policy{})
	a := window(t, m)
	b := window(t, m)
	c := window(t, m)

	m.FocusNext()
	if m.Focused() != a {
		t.Errorf("focus after wrap = %v, want first window", m.Focused())
	}
	m.FocusPrev()
	if m.Focused() != c {
		t.Error("focus prev did not wrap back")
	}
	m.FocusPrev()
	if m.Focused() != b {
		t.Error("focus prev did not move to the middle window")
	}
}

func TestOutputFor(t *testing.T) {
	m, out := testManager(t, Policy{})
	a := window(t, m)

	sub := core.NewSurface()
	sub.SetSubsurface(a)

	if m.OutputFor(a) != out {
		t.Error("toplevel not attributed to its output")
	}
	if m.OutputFor(sub) != out {
		t.Error("subsurface not attributed to its ancestor's output")
	}
	if m.OutputFor(core.NewSurface()) != nil {
		t.Error("unmanaged surface attributed to an output")
	}

	p := core.NewSurface()
	p.SetPopup(a, image.Pt(10, 10))
	if m.OutputFor(p) != out {
		t.Error("popup not attributed to its parent's output")
	}
}

// popup creates a mapped popup surface parented to parent.
func popup(t *testing.T, parent *core.Surface, pos image.Point, size image.Point) *core.Surface {
	t.Helper()
	p := core.NewSurface()
	if _, err := p.SetPopup(parent, pos); err != nil {
		t.Fatalf("set popup: %v", err)
	}
	p.Attach(&core.Buffer{Size: size}, image.Point{})
	if err := p.Commit(); err != nil {
		t.Fatalf("commit popup: %v", err)
	}
	return p
}

func TestPopupComposited(t *testing.T) {
	m, out := testManager(t, Policy{})
	parent := window(t, m)
	p := popup(t, parent, image.Pt(40, 30), image.Pt(20, 10))
	nested := popup(t, p, image.Pt(5, 5), image.Pt(8, 8))

	nodes := m.Visible(out)
	idx := make(map[*core.Surface]int)
	for i, n := range nodes {
		idx[n.Surface] = i
	}
	pi, ok := idx[p]
	if !ok {
		t.Fatal("mapped popup absent from the visible list")
	}
	if pi < idx[parent] {
		t.Error("popup stacked below its parent")
	}
	if ni, ok := idx[nested]; !ok || ni < pi {
		t.Error("nested popup missing or stacked below its opener")
	}
	if want := image.Rect(40, 30, 60, 40); nodes[pi].Dst != want {
		t.Errorf("popup placed at %v, want %v", nodes[pi].Dst, want)
	}
	if want := image.Rect(45, 35, 53, 43); nodes[idx[nested]].Dst != want {
		t.Errorf("nested popup placed at %v, want %v", nodes[idx[nested]].Dst, want)
	}

	// Dismissal takes it out of the composited list.
	p.Attach(nil, image.Point{})
	p.Commit()
	for _, n := range m.Visible(out) {
		if n.Surface == p {
			t.Error("unmapped popup still composited")
		}
	}
}

func TestPopupOverFullscreen(t *testing.T) {
	m, out := testManager(t, Policy{})
	a := window(t, m)
	m.SetFullscreen(a, true)
	p := popup(t, a, image.Pt(1, 2), image.Pt(4, 4))

	var found bool
	for _, n := range m.Visible(out) {
		if n.Surface == p {
			found = true
		}
	}
	if !found {
		t.Error("popup of a fullscreen window not composited")
	}
}

func TestConfigureCarriesActivation(t *testing.T) {
	m, _ := testManager(t, Policy{})
	a := window(t, m)
	b := window(t, m)

	type cfg struct {
		size      image.Point
		activated bool
	}
	var last map[*core.Surface]cfg
	record := func(s *core.Surface) func(image.Point, bool, bool) {
		return func(size image.Point, activated, fullscreen bool) {
			last[s] = cfg{size: size, activated: activated}
		}
	}
	last = make(map[*core.Surface]cfg)
	a.Toplevel().Configure = record(a)
	b.Toplevel().Configure = record(b)

	m.FocusSurface(a)
	if !last[a].activated {
		t.Error("focused window not configured activated")
	}
	if last[b].activated {
		t.Error("unfocused window configured activated")
	}
	if last[a].size != image.Pt(300, 400) {
		t.Errorf("configured size = %v", last[a].size)
	}
}
