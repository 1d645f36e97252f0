package scene

import "fmt"

// Renderer composites frames. Render may do its work on another
// goroutine or hardware queue; it reports the outcome through done,
// from any goroutine, exactly once. The caller routes done back onto
// the core loop and calls Scheduler.Complete there; the frame's
// buffer snapshot is immutable until then.
type Renderer interface {
	Render(f *Frame, done func(error))
}

// RendererError indicates the external renderer could not produce a
// frame for an output. The frame is skipped and retried on the next
// tick; repeated failure degrades the output.
type RendererError struct {
	Output string
	Err    error
}

func (err *RendererError) Error() string {
	return fmt.Sprintf("render output %v: %v", err.Output, err.Err)
}

func (err *RendererError) Unwrap() error {
	return err.Err
}
