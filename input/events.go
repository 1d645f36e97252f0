// Package input routes abstract input events: keybindings to the
// window manager, everything else to the focused surface. It owns
// pointer focus by hit-testing the scene and honors exclusive grabs.
package input

import "image"

// Modifiers is a bitmask of held modifier keys.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModCtrl
	ModAlt
	ModSuper
)

// Event is one abstract input event from the external input source.
// Timestamps are in milliseconds with an arbitrary epoch; Device
// names the originating device.
type Event interface {
	event()
}

type PointerMotion struct {
	Time   uint32
	Device string
	Pos    image.Point
}

type PointerButton struct {
	Time    uint32
	Device  string
	Button  uint32
	Pressed bool
}

type Key struct {
	Time    uint32
	Device  string
	Code    uint32
	Pressed bool
	Mods    Modifiers
}

type Touch struct {
	Time    uint32
	Device  string
	ID      int32
	Pos     image.Point
	Pressed bool
}

func (PointerMotion) event() {}
func (PointerButton) event() {}
func (Key) event()           {}
func (Touch) event()         {}
