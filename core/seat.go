package core

import "image"

// Capability is a bitmask of the input devices a seat offers.
type Capability uint32

const (
	CapPointer Capability = 1 << iota
	CapKeyboard
	CapTouch
)

// SeatListener is told about focus changes so the protocol glue can
// emit enter/leave events. Called on the core loop.
type SeatListener interface {
	KeyboardFocusChanged(old, new *Surface)
	PointerFocusChanged(old, new *Surface, pos image.Point)
}

// Seat is the explicit per-seat focus context. At most one surface
// holds keyboard focus and one holds pointer focus at any instant;
// only the input router and window manager mutate these.
type Seat struct {
	Name     string
	Caps     Capability
	Listener SeatListener

	keyboard   *Surface
	pointer    *Surface
	pointerPos image.Point
}

func NewSeat(name string, caps Capability) *Seat {
	return &Seat{Name: name, Caps: caps}
}

func (s *Seat) KeyboardFocus() *Surface { return s.keyboard }
func (s *Seat) PointerFocus() *Surface  { return s.pointer }
func (s *Seat) PointerPos() image.Point { return s.pointerPos }

func (s *Seat) SetKeyboardFocus(surf *Surface) {
	if surf == s.keyboard {
		return
	}
	old := s.keyboard
	s.keyboard = surf
	if s.Listener != nil {
		s.Listener.KeyboardFocusChanged(old, surf)
	}
}

// SetPointerFocus moves pointer focus to surf, with pos being the
// pointer position in surf's local coordinates.
func (s *Seat) SetPointerFocus(surf *Surface, pos image.Point) {
	if surf == s.pointer {
		return
	}
	old := s.pointer
	s.pointer = surf
	if s.Listener != nil {
		s.Listener.PointerFocusChanged(old, surf, pos)
	}
}

func (s *Seat) SetPointerPos(pos image.Point) {
	s.pointerPos = pos
}

// Forget clears any focus held by surf, for use when surf is
// destroyed.
func (s *Seat) Forget(surf *Surface) {
	if s.keyboard == surf {
		s.SetKeyboardFocus(nil)
	}
	if s.pointer == surf {
		s.SetPointerFocus(nil, image.Point{})
	}
}
