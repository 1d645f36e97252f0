package scene

import (
	"errors"
	"image"
	"testing"
	"time"

	"deedles.dev/tatami/core"
)

// stackLayout is a Layout with an explicit surface list per output.
type stackLayout struct {
	visible map[*core.Output][]*core.Surface
}

func (l *stackLayout) Visible(out *core.Output) []Node {
	var nodes []Node
	for _, s := range l.visible[out] {
		nodes = Flatten(s, image.Rectangle{Max: s.Size()}, nodes)
	}
	return nodes
}

func testOutput(name string) *core.Output {
	return &core.Output{Name: name, Geometry: image.Rect(0, 0, 640, 480), Scale: 1}
}

func mappedSurface(t *testing.T, released *int) *core.Surface {
	t.Helper()
	s := core.NewSurface()
	s.SetToplevel()
	s.Attach(&core.Buffer{Size: image.Pt(64, 64), Release: func(*core.Buffer) { *released++ }}, image.Point{})
	if err := s.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return s
}

func TestTickCoalesces(t *testing.T) {
	out := testOutput("a")
	var rel int
	surf := mappedSurface(t, &rel)
	layout := stackLayout{visible: map[*core.Output][]*core.Surface{out: {surf}}}
	sched := NewScheduler(&layout)
	sched.AddOutput(out)

	f := sched.Tick(out)
	if f == nil {
		t.Fatal("no frame for a dirty output")
	}

	// No second frame while one is in flight, however dirty.
	sched.Dirty(out)
	if sched.Tick(out) != nil {
		t.Fatal("frame produced while another is in flight")
	}

	if err := sched.Complete(f, nil, time.Now()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// Still dirty from the commit during the render, so the next tick
	// produces exactly one frame for the coalesced updates.
	if sched.Tick(out) == nil {
		t.Fatal("no frame after completion of the previous one")
	}

	// A clean output produces nothing.
	f = sched.Tick(out)
	if f != nil {
		t.Fatalf("frame for a clean output: %+v", f)
	}
}

func TestFrameCallbacksFireOncePerParticipation(t *testing.T) {
	outA, outB := testOutput("a"), testOutput("b")
	var rel int
	surf := mappedSurface(t, &rel)

	// The surface is visible on output A only.
	layout := stackLayout{visible: map[*core.Output][]*core.Surface{outA: {surf}}}
	sched := NewScheduler(&layout)
	sched.AddOutput(outA)
	sched.AddOutput(outB)

	var fired int
	surf.Frame(&core.FrameCallback{Done: func(uint32) { fired++ }})
	surf.Commit()

	// A frame on B does not involve the surface and must not fire its
	// callback.
	fb := sched.Tick(outB)
	sched.Complete(fb, nil, time.Now())
	if fired != 0 {
		t.Fatal("callback fired for a frame the surface was not part of")
	}

	fa := sched.Tick(outA)
	sched.Complete(fa, nil, time.Now())
	if fired != 1 {
		t.Fatalf("callback fired %v times, want 1", fired)
	}

	// Presenting again does not re-fire it.
	sched.Dirty(outA)
	fa = sched.Tick(outA)
	sched.Complete(fa, nil, time.Now())
	if fired != 1 {
		t.Fatalf("callback fired %v times after second frame", fired)
	}
}

func TestRenderFailureRequeuesCallbacks(t *testing.T) {
	out := testOutput("a")
	var rel int
	surf := mappedSurface(t, &rel)
	layout := stackLayout{visible: map[*core.Output][]*core.Surface{out: {surf}}}
	sched := NewScheduler(&layout)
	sched.AddOutput(out)

	var fired int
	surf.Frame(&core.FrameCallback{Done: func(uint32) { fired++ }})
	surf.Commit()

	f := sched.Tick(out)
	err := sched.Complete(f, errors.New("lost"), time.Now())
	var rerr *RendererError
	if !errors.As(err, &rerr) {
		t.Fatalf("complete after failure: %v", err)
	}
	if fired != 0 {
		t.Fatal("callback fired for a failed frame")
	}

	// The callback went back to the surface and fires with the retry.
	f = sched.Tick(out)
	if f == nil {
		t.Fatal("no retry frame after failure")
	}
	if err := sched.Complete(f, nil, time.Now()); err != nil {
		t.Fatalf("complete retry: %v", err)
	}
	if fired != 1 {
		t.Fatalf("callback fired %v times, want 1", fired)
	}
}

func TestOutputDegradesAndRedeems(t *testing.T) {
	out := testOutput("a")
	layout := stackLayout{visible: map[*core.Output][]*core.Surface{}}
	sched := NewScheduler(&layout)
	sched.AddOutput(out)

	for i := 0; i < DefaultDegradeAfter; i++ {
		f := sched.Tick(out)
		if f == nil {
			t.Fatalf("no frame for retry %v", i)
		}
		sched.Complete(f, errors.New("lost"), time.Now())
	}

	if !sched.Degraded(out) {
		t.Fatal("output not degraded after repeated failures")
	}
	if sched.Tick(out) != nil {
		t.Fatal("degraded output still produces frames")
	}

	// Re-adding the output redeems it.
	sched.AddOutput(out)
	if sched.Degraded(out) {
		t.Fatal("output still degraded after re-add")
	}
	if sched.Tick(out) == nil {
		t.Fatal("redeemed output produces no frame")
	}
}

func TestBufferPinnedDuringRender(t *testing.T) {
	out := testOutput("a")
	var rel int
	surf := mappedSurface(t, &rel)
	layout := stackLayout{visible: map[*core.Output][]*core.Surface{out: {surf}}}
	sched := NewScheduler(&layout)
	sched.AddOutput(out)

	f := sched.Tick(out)

	// The surface drops its buffer mid-render. The release must wait
	// for the frame to complete.
	surf.Attach(nil, image.Point{})
	surf.Commit()
	if rel != 0 {
		t.Fatal("buffer released while a render had it pinned")
	}

	sched.Complete(f, nil, time.Now())
	if rel != 1 {
		t.Fatalf("buffer released %v times after completion, want 1", rel)
	}
}

func TestSurfaceAt(t *testing.T) {
	out := testOutput("a")
	var rel int
	bottom := mappedSurface(t, &rel)
	top := mappedSurface(t, &rel)
	layout := stackLayout{visible: map[*core.Output][]*core.Surface{out: {bottom, top}}}
	sched := NewScheduler(&layout)
	sched.AddOutput(out)

	f := sched.Tick(out)
	sched.Complete(f, nil, time.Now())

	got, local := sched.SurfaceAt(image.Pt(10, 10))
	if got != top {
		t.Errorf("hit %v, want the topmost surface", got)
	}
	if local != image.Pt(10, 10) {
		t.Errorf("local coordinates %v", local)
	}

	if got, _ := sched.SurfaceAt(image.Pt(600, 400)); got != nil {
		t.Errorf("hit %v outside every surface", got)
	}
}
