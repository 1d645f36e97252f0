// Package objstore tracks the protocol objects owned by a single
// client connection. Object identity is (connection, id); the store
// is the per-connection half of that pair.
package objstore

import (
	"fmt"

	"deedles.dev/tatami/wire"
	"golang.org/x/exp/maps"
)

// DuplicateIDError indicates a client request tried to create an
// object with an ID that is already live on the same connection.
type DuplicateIDError struct {
	ID uint32
}

func (err DuplicateIDError) Error() string {
	return fmt.Sprintf("object ID already in use: %v", err.ID)
}

// UnknownIDError indicates a request referenced an object ID that is
// not live on the connection.
type UnknownIDError struct {
	ID uint32
}

func (err UnknownIDError) Error() string {
	return fmt.Sprintf("unknown object ID: %v", err.ID)
}

type Store struct {
	objects map[uint32]wire.Object
	nextID  uint32
}

// New creates a store whose server-allocated IDs begin at start.
// Client-allocated IDs live below start.
func New(start uint32) *Store {
	return &Store{
		objects: make(map[uint32]wire.Object),
		nextID:  start,
	}
}

// Add registers obj. If obj has no ID yet, one is allocated from the
// server range.
func (s *Store) Add(obj wire.Object) error {
	id := obj.ID()
	if id == 0 {
		id = s.nextID
		obj.SetID(id)
		s.nextID++
	}

	if _, ok := s.objects[id]; ok {
		return DuplicateIDError{ID: id}
	}
	s.objects[id] = obj
	return nil
}

func (s *Store) Get(id uint32) (wire.Object, error) {
	obj, ok := s.objects[id]
	if !ok {
		return nil, UnknownIDError{ID: id}
	}
	return obj, nil
}

// Delete removes the object and runs its destructor. Destructors may
// delete further objects; the map is safe against that.
func (s *Store) Delete(id uint32) {
	obj, ok := s.objects[id]
	if !ok {
		return
	}
	delete(s.objects, id)
	obj.Destroy()
}

// Release removes the object without running its destructor. It is
// used when the protocol object goes away but the entity it fronted
// lives on, such as a buffer still referenced by a surface.
func (s *Store) Release(id uint32) {
	delete(s.objects, id)
}

// Clear destroys every object in the store. It is called when the
// owning connection goes away, cascading destruction of everything
// the client owned.
func (s *Store) Clear() {
	for _, obj := range maps.Values(s.objects) {
		s.Delete(obj.ID())
	}
}

func (s *Store) Len() int {
	return len(s.objects)
}
