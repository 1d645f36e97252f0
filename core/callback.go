package core

// FrameCallback is a client's request to be told when its surface is
// next presented. It fires at most once, and only for a frame the
// surface was actually part of.
type FrameCallback struct {
	// Done delivers the callback to the client with a presentation
	// timestamp in milliseconds.
	Done func(t uint32)

	fired bool
}

func (cb *FrameCallback) Fire(t uint32) {
	if cb.fired {
		return
	}
	cb.fired = true
	if cb.Done != nil {
		cb.Done(t)
	}
}

func (cb *FrameCallback) Fired() bool {
	return cb.fired
}
