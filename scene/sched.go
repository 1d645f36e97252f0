package scene

import (
	"image"
	"time"

	"deedles.dev/tatami/core"
)

// DefaultDegradeAfter is how many consecutive render failures exclude
// an output from compositing until the session provider re-adds it.
const DefaultDegradeAfter = 3

// Frame is a snapshot handed to the renderer: the visible list plus
// each surface's committed buffer, with the buffers pinned so that
// destruction during an in-flight render is deferred, never a crash.
type Frame struct {
	Output *core.Output
	Nodes  []Node
	Serial uint64

	// pinned is the exact set of buffers Ref'd at Tick time. Committed
	// state may change mid-render, so unpinning never re-reads it.
	pinned    []*core.Buffer
	callbacks []ownedCallback
}

type ownedCallback struct {
	cb    *core.FrameCallback
	owner *core.Surface
}

type outputState struct {
	out      *core.Output
	dirty    bool
	inflight *Frame
	fails    int
	degraded bool

	// last successfully composited list, used for hit testing
	visible []Node
}

// Scheduler drives the repaint loop for every output. It is a pure
// state machine: the server loop feeds it vsync ticks and render
// completions and it hands back frames to render. All methods run on
// the core loop.
type Scheduler struct {
	Layout       Layout
	DegradeAfter int

	outputs map[*core.Output]*outputState
	serial  uint64
}

func NewScheduler(layout Layout) *Scheduler {
	return &Scheduler{
		Layout:       layout,
		DegradeAfter: DefaultDegradeAfter,
		outputs:      make(map[*core.Output]*outputState),
	}
}

// AddOutput starts compositing for out. Re-adding a degraded output
// redeems it, which is how a session provider signal brings an output
// back.
func (s *Scheduler) AddOutput(out *core.Output) {
	if os, ok := s.outputs[out]; ok {
		os.degraded = false
		os.fails = 0
		os.dirty = true
		return
	}
	s.outputs[out] = &outputState{out: out, dirty: true}
}

// RemoveOutput stops compositing for out. An in-flight frame for it
// still completes and releases its buffers.
func (s *Scheduler) RemoveOutput(out *core.Output) {
	delete(s.outputs, out)
}

func (s *Scheduler) Outputs() []*core.Output {
	outs := make([]*core.Output, 0, len(s.outputs))
	for out := range s.outputs {
		outs = append(outs, out)
	}
	return outs
}

// Dirty marks out as needing a repaint at the next frame slot.
func (s *Scheduler) Dirty(out *core.Output) {
	if os, ok := s.outputs[out]; ok {
		os.dirty = true
	}
}

// DirtyAll marks every output as needing a repaint.
func (s *Scheduler) DirtyAll() {
	for _, os := range s.outputs {
		os.dirty = true
	}
}

// Degraded reports whether out has been excluded from compositing
// after repeated renderer failures.
func (s *Scheduler) Degraded(out *core.Output) bool {
	os, ok := s.outputs[out]
	return ok && os.degraded
}

// Tick is called once per output refresh interval. If the output
// needs a repaint and has no frame in flight, it returns the frame to
// render; otherwise nil. Commits that happened between two ticks are
// coalesced: only the latest committed state is in the frame.
func (s *Scheduler) Tick(out *core.Output) *Frame {
	os, ok := s.outputs[out]
	if !ok || os.degraded || !os.dirty || os.inflight != nil {
		return nil
	}

	s.serial++
	f := &Frame{
		Output: out,
		Nodes:  s.Layout.Visible(out),
		Serial: s.serial,
	}

	// Pin every included buffer and collect the frame callbacks due.
	// Callbacks of surfaces not in this frame stay with the surface;
	// they only fire for frames their surface participates in.
	for _, n := range f.Nodes {
		st := n.Surface.Committed()
		if st.Buffer != nil {
			st.Buffer.Ref()
			f.pinned = append(f.pinned, st.Buffer)
		}
		for _, cb := range st.Frames {
			f.callbacks = append(f.callbacks, ownedCallback{cb: cb, owner: n.Surface})
		}
		st.Frames = nil
	}

	os.dirty = false
	os.inflight = f
	return f
}

// Complete reports the outcome of rendering f. On success the owed
// frame callbacks fire, each exactly once. On failure the callbacks
// return to their surfaces, the output is marked dirty again for a
// retry, and after enough consecutive failures it degrades. Either
// way the buffer snapshot is unpinned, which is what finally tears
// down buffers destroyed mid-render.
func (s *Scheduler) Complete(f *Frame, renderErr error, now time.Time) error {
	for _, b := range f.pinned {
		b.Unref()
	}
	f.pinned = nil

	os, ok := s.outputs[f.Output]
	if ok && os.inflight == f {
		os.inflight = nil
	}

	if renderErr != nil {
		for _, oc := range f.callbacks {
			if !oc.cb.Fired() && !oc.owner.Destroyed() {
				st := oc.owner.Committed()
				st.Frames = append(st.Frames, oc.cb)
			}
		}
		if ok {
			os.dirty = true
			os.fails++
			after := s.DegradeAfter
			if after <= 0 {
				after = DefaultDegradeAfter
			}
			if os.fails >= after {
				os.degraded = true
			}
		}
		return &RendererError{Output: f.Output.Name, Err: renderErr}
	}

	t := uint32(now.UnixMilli())
	for _, oc := range f.callbacks {
		oc.cb.Fire(t)
	}
	if ok {
		os.fails = 0
		os.visible = f.Nodes
	}
	return nil
}

// SurfaceAt hit-tests the most recently composited visible lists,
// topmost first, honoring each surface's input region. It returns the
// surface and the point in its local coordinates.
func (s *Scheduler) SurfaceAt(p image.Point) (*core.Surface, image.Point) {
	for _, os := range s.outputs {
		if os.degraded || !p.In(os.out.Geometry) {
			continue
		}
		for i := len(os.visible) - 1; i >= 0; i-- {
			n := os.visible[i]
			if n.Surface.Destroyed() {
				continue
			}
			local := p.Sub(n.Dst.Min)
			if p.In(n.Dst) && n.Surface.InputAt(local) {
				return n.Surface, local
			}
		}
	}
	return nil, image.Point{}
}
