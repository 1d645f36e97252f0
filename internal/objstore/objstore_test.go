package objstore

import (
	"errors"
	"testing"

	"deedles.dev/tatami/wire"
)

type stub struct {
	id        uint32
	destroyed *[]uint32
}

func (s *stub) ID() uint32                            { return s.id }
func (s *stub) SetID(id uint32)                       { s.id = id }
func (s *stub) Interface() string                     { return "stub" }
func (s *stub) Dispatch(msg *wire.MessageBuffer) error { return nil }

func (s *stub) Destroy() {
	if s.destroyed != nil {
		*s.destroyed = append(*s.destroyed, s.id)
	}
}

func TestAddAndGet(t *testing.T) {
	s := New(1 << 24)

	obj := &stub{id: 3}
	if err := s.Add(obj); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := s.Get(3)
	if err != nil || got != obj {
		t.Fatalf("get: %v, %v", got, err)
	}

	if _, err := s.Get(4); !errors.As(err, new(UnknownIDError)) {
		t.Errorf("get unknown id: %v", err)
	}
}

func TestDuplicateID(t *testing.T) {
	s := New(1 << 24)
	s.Add(&stub{id: 3})

	err := s.Add(&stub{id: 3})
	if !errors.As(err, new(DuplicateIDError)) {
		t.Fatalf("duplicate add: %v", err)
	}
}

func TestServerAllocatedIDs(t *testing.T) {
	s := New(1 << 24)

	a, b := &stub{}, &stub{}
	s.Add(a)
	s.Add(b)
	if a.id < 1<<24 || b.id != a.id+1 {
		t.Errorf("allocated ids %v, %v", a.id, b.id)
	}
}

func TestDeleteRunsDestructorReleaseDoesNot(t *testing.T) {
	var destroyed []uint32
	s := New(1 << 24)
	s.Add(&stub{id: 1, destroyed: &destroyed})
	s.Add(&stub{id: 2, destroyed: &destroyed})

	s.Delete(1)
	s.Release(2)
	if len(destroyed) != 1 || destroyed[0] != 1 {
		t.Errorf("destroyed = %v, want only 1", destroyed)
	}
	if s.Len() != 0 {
		t.Errorf("len = %v", s.Len())
	}
	s.Delete(1) // gone already; must not panic
}

func TestClearCascades(t *testing.T) {
	var destroyed []uint32
	s := New(1 << 24)
	for id := uint32(1); id <= 5; id++ {
		s.Add(&stub{id: id, destroyed: &destroyed})
	}

	s.Clear()
	if len(destroyed) != 5 {
		t.Errorf("%v objects destroyed, want 5", len(destroyed))
	}
	if s.Len() != 0 {
		t.Errorf("len = %v after clear", s.Len())
	}
}
