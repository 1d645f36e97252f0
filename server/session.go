package server

import (
	"fmt"
	"image"
	"time"

	"deedles.dev/tatami/config"
	"deedles.dev/tatami/core"
	"deedles.dev/tatami/input"
)

// Session is the source of outputs and input events. A real backend
// watches hardware; tests and headless runs use a StaticSession.
type Session interface {
	Outputs() <-chan OutputChange
	Input() <-chan input.Event
}

// OutputChange reports an output appearing or, with Gone set,
// disappearing.
type OutputChange struct {
	Output *core.Output
	Gone   bool
}

// StaticSession is a Session with a fixed set of outputs and
// externally injected input. It backs headless operation and tests.
type StaticSession struct {
	outputs chan OutputChange
	input   chan input.Event
}

func NewStaticSession(outs ...*core.Output) *StaticSession {
	s := StaticSession{
		outputs: make(chan OutputChange, len(outs)+16),
		input:   make(chan input.Event, 64),
	}
	for _, out := range outs {
		s.outputs <- OutputChange{Output: out}
	}
	return &s
}

func (s *StaticSession) Outputs() <-chan OutputChange { return s.outputs }
func (s *StaticSession) Input() <-chan input.Event    { return s.input }

// Inject delivers an input event to the compositor.
func (s *StaticSession) Inject(ev input.Event) {
	s.input <- ev
}

// Plug adds an output at runtime.
func (s *StaticSession) Plug(out *core.Output) {
	s.outputs <- OutputChange{Output: out}
}

// Unplug removes an output at runtime.
func (s *StaticSession) Unplug(out *core.Output) {
	s.outputs <- OutputChange{Output: out, Gone: true}
}

// OutputsFromConfig builds the output list a static session starts
// with. With no outputs configured, a single 1920x1080 one is
// assumed.
func OutputsFromConfig(cfg *config.Config) []*core.Output {
	if len(cfg.Outputs) == 0 {
		return []*core.Output{{
			Name:     "headless-1",
			Make:     "tatami",
			Model:    "headless",
			Geometry: image.Rect(0, 0, 1920, 1080),
			Scale:    1,
		}}
	}

	outs := make([]*core.Output, 0, len(cfg.Outputs))
	for i, oc := range cfg.Outputs {
		name := oc.Name
		if name == "" {
			name = fmt.Sprintf("headless-%v", i+1)
		}
		out := core.Output{
			Name:     name,
			Make:     "tatami",
			Model:    "headless",
			Geometry: image.Rect(oc.X, oc.Y, oc.X+oc.Width, oc.Y+oc.Height),
			Scale:    int32(oc.Scale),
		}
		if out.Scale < 1 {
			out.Scale = 1
		}
		if oc.Refresh > 0 {
			out.Refresh = time.Second * 1000 / time.Duration(oc.Refresh)
		}
		outs = append(outs, &out)
	}
	return outs
}
