package pool

import (
	"time"

	uuid "github.com/kthomas/go.uuid"
	"github.com/provideplatform/datapool/common"
	"github.com/provideplatform/datapool/proof"
)

// pool event types
const (
	EventSellerJoined              = "seller.joined"
	EventProofSubmitted            = "proof.submitted"
	EventSellerFullyVerified       = "seller.fully_verified"
	EventSettlementPaid            = "settlement.paid"
	EventSettlementBudgetExhausted = "settlement.budget_exhausted"
	EventSettlementAlreadySettled  = "settlement.already_settled"
	EventDataStored                = "data.stored"
	EventAccessGranted             = "access.granted"
	EventBulkSettled               = "pool.bulk_settled"
	EventPoolClosed                = "pool.closed"
)

// Event is emitted for every committed state change of a pool
type Event struct {
	Type      string       `json:"type"`
	PoolID    uuid.UUID    `json:"pool_id"`
	Seller    string       `json:"seller,omitempty"`
	Buyer     string       `json:"buyer,omitempty"`
	ProofName string       `json:"proof_name,omitempty"`
	Handle    string       `json:"handle,omitempty"`
	Source    proof.Source `json:"source,omitempty"`
	ContentID string       `json:"content_id,omitempty"`
	Amount    uint64       `json:"amount,omitempty"`
	Remaining uint64       `json:"remaining_budget"`
	Timestamp time.Time    `json:"timestamp"`
}

// Dispatcher delivers committed pool events
type Dispatcher interface {
	Dispatch(evt *Event) error
}

func (p *Pool) event(typ, seller string) *Event {
	return &Event{
		Type:      typ,
		PoolID:    p.ID,
		Seller:    seller,
		Remaining: p.remaining,
		Timestamp: time.Now(),
	}
}

func (p *Pool) dispatch(evt *Event) {
	if p.dispatcher == nil {
		common.Log.Tracef("pool %s event %s; seller: %s", p.ID, evt.Type, evt.Seller)
		return
	}

	err := p.dispatcher.Dispatch(evt)
	if err != nil {
		common.Log.Warningf("failed to dispatch %s notification for pool %s; %s", evt.Type, p.ID, err.Error())
	}
}
