package proof

import (
	"sync"

	"github.com/provideplatform/datapool/fault"
)

// Registry is the process-wide set of consumed proof handles; handles are reserved for the
// duration of a pool operation and either committed (permanently) or released on rollback
type Registry interface {
	Contains(handle string) bool
	Reserve(handle string) error
	Commit(handle string) error
	Release(handle string)
	Size() int
}

// MemoryRegistry is an in-memory proof registry
type MemoryRegistry struct {
	mutex     sync.Mutex
	committed map[string]struct{}
	reserved  map[string]struct{}
}

// NewMemoryRegistry initializes an empty in-memory proof registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		committed: map[string]struct{}{},
		reserved:  map[string]struct{}{},
	}
}

// Contains returns true if the handle has been committed
func (r *MemoryRegistry) Contains(handle string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	_, ok := r.committed[handle]
	return ok
}

// Reserve the handle; fails if the handle is committed or reserved by another operation
func (r *MemoryRegistry) Reserve(handle string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.committed[handle]; ok {
		return fault.ErrProofAlreadyConsumed
	}
	if _, ok := r.reserved[handle]; ok {
		return fault.ErrProofAlreadyConsumed
	}

	r.reserved[handle] = struct{}{}
	return nil
}

// Commit a previously reserved handle
func (r *MemoryRegistry) Commit(handle string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.reserved[handle]; !ok {
		return fault.ErrInvalidState
	}

	delete(r.reserved, handle)
	r.committed[handle] = struct{}{}
	return nil
}

// Release a reservation; committed handles are never released
func (r *MemoryRegistry) Release(handle string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.reserved, handle)
}

// Size returns the number of committed handles
func (r *MemoryRegistry) Size() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.committed)
}
