package core

import (
	"image"
	"time"
)

// Output represents a physical display. Geometry is its position and
// size in the global layout space. The ordered surface list shown on
// an output is derived from the window manager's tree each layout
// pass, never stored here.
type Output struct {
	Name     string
	Make     string
	Model    string
	Geometry image.Rectangle
	Scale    int32
	Refresh  time.Duration
}

// Interval is the output's refresh interval, defaulting to 60Hz when
// unset. Frames are produced at most once per interval.
func (o *Output) Interval() time.Duration {
	if o.Refresh <= 0 {
		return time.Second / 60
	}
	return o.Refresh
}
