package pool

import (
	"context"
	"strings"
	"time"

	"github.com/provideplatform/datapool/common"
	"github.com/provideplatform/datapool/fault"
	"github.com/provideplatform/datapool/proof"
)

// State of a seller within a pool
type State string

// seller states
const (
	StateNotJoined         State = "not_joined"
	StateJoined            State = "joined"
	StatePartiallyVerified State = "partially_verified"
	StateFullyVerified     State = "fully_verified"
)

// VerificationSource records which edge moved a seller into the fully verified state
type VerificationSource string

// verification sources
const (
	VerifiedByProofs   VerificationSource = "proofs"
	VerifiedByOverride VerificationSource = "override"
)

// Seller is the per-seller record of a pool; records are never deleted
type Seller struct {
	Identity      string                       `json:"identity"`
	Joined        bool                         `json:"joined"`
	JoinedAt      time.Time                    `json:"joined_at"`
	Proofs        map[string]*proof.Submission `json:"proofs"`
	Verified      bool                         `json:"verified"`
	FullyVerified bool                         `json:"fully_verified"`
	VerifiedBy    VerificationSource           `json:"verified_by,omitempty"`
	Paid          bool                         `json:"paid"`
	PaidAmount    uint64                       `json:"paid_amount"`
	State         State                        `json:"state"`

	data *EncryptedData
}

// state derives the seller state from its flags
func (s *Seller) state() State {
	if s == nil || !s.Joined {
		return StateNotJoined
	}
	if s.FullyVerified {
		return StateFullyVerified
	}
	for _, submission := range s.Proofs {
		if submission.Submitted {
			return StatePartiallyVerified
		}
	}
	return StateJoined
}

// copy returns a detached copy of the seller record
func (s *Seller) copy() *Seller {
	_s := *s
	_s.Proofs = make(map[string]*proof.Submission, len(s.Proofs))
	for name, submission := range s.Proofs {
		_submission := *submission
		_s.Proofs[name] = &_submission
	}
	_s.State = s.state()
	_s.data = nil
	return &_s
}

// Join registers the seller with the pool
func (p *Pool) Join(ctx context.Context, seller string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.active {
		return fault.ErrPoolInactive
	}

	if strings.TrimSpace(seller) == "" {
		return fault.ErrInvalidState
	}

	if s, ok := p.sellers[seller]; ok && s.Joined {
		return fault.ErrAlreadyJoined
	}

	tx := p.begin()

	p.sellers[seller] = &Seller{
		Identity: seller,
		Joined:   true,
		JoinedAt: time.Now(),
		Proofs:   map[string]*proof.Submission{},
	}
	p.joined = append(p.joined, seller)
	tx.record(func() {
		delete(p.sellers, seller)
		p.joined = p.joined[:len(p.joined)-1]
	})
	tx.emit(p.event(EventSellerJoined, seller))

	common.Log.Debugf("seller %s joined pool %s", seller, p.ID)
	return p.end(tx, nil)
}

// Seller returns a copy of the seller record
func (p *Pool) Seller(seller string) (*Seller, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	s, ok := p.sellers[seller]
	if !ok {
		return nil, fault.ErrSellerNotFound
	}
	return s.copy(), nil
}

// SellerState returns the state of the seller; unknown sellers are not joined
func (p *Pool) SellerState(seller string) State {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.sellers[seller].state()
}

// ProofStatus returns the seller's submission for the named proof requirement
func (p *Pool) ProofStatus(seller, proofName string) (*proof.Submission, bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	s, ok := p.sellers[seller]
	if !ok {
		return nil, false
	}

	submission, ok := s.Proofs[proofName]
	if !ok {
		return nil, false
	}

	_submission := *submission
	return &_submission, true
}
