package pool

import (
	"github.com/provideplatform/datapool/common"
)

// txn journals the mutations of a single pool operation; on failure every recorded undo
// is replayed in reverse and reserved proof handles are released, on success reserved
// handles are committed and queued events are dispatched
type txn struct {
	events   []*Event
	reserved []string
	undo     []func()
}

func (p *Pool) begin() *txn {
	return &txn{
		events:   make([]*Event, 0),
		reserved: make([]string, 0),
		undo:     make([]func(), 0),
	}
}

// record an undo for a mutation already applied
func (t *txn) record(undo func()) {
	t.undo = append(t.undo, undo)
}

func (t *txn) reserve(handle string) {
	t.reserved = append(t.reserved, handle)
}

func (t *txn) emit(evt *Event) {
	t.events = append(t.events, evt)
}

// savepoint marks the current journal position
type savepoint struct {
	events int
	undo   int
}

func (t *txn) savepoint() savepoint {
	return savepoint{events: len(t.events), undo: len(t.undo)}
}

// rollbackTo undoes every mutation recorded after the savepoint
func (t *txn) rollbackTo(sp savepoint) {
	for i := len(t.undo) - 1; i >= sp.undo; i-- {
		t.undo[i]()
	}
	t.undo = t.undo[:sp.undo]
	t.events = t.events[:sp.events]
}

// end completes the operation; must be called with the pool mutex held
func (p *Pool) end(t *txn, err error) error {
	if err != nil {
		t.rollbackTo(savepoint{})
		for _, handle := range t.reserved {
			p.proofs.Release(handle)
		}
		common.Log.Debugf("rolled back operation on pool %s; %s", p.ID, err.Error())
		return err
	}

	for _, handle := range t.reserved {
		if cerr := p.proofs.Commit(handle); cerr != nil {
			// the reservation is kept so the handle stays unusable
			common.Log.Warningf("failed to commit proof handle %s for pool %s; %s", handle, p.ID, cerr.Error())
		}
	}

	for _, evt := range t.events {
		p.dispatch(evt)
	}

	return nil
}
