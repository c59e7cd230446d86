package pool

import (
	"context"

	"github.com/provideplatform/datapool/common"
	"github.com/provideplatform/datapool/fault"
)

// Verify marks the seller fully verified regardless of submitted proofs; only the creator
// may verify, and verifying a fully verified seller has no effect
func (p *Pool) Verify(ctx context.Context, caller, seller string) (*Receipt, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if caller != p.Creator {
		return nil, fault.ErrNotCreator
	}

	if !p.active {
		return nil, fault.ErrPoolInactive
	}

	s, ok := p.sellers[seller]
	if !ok || !s.Joined {
		return nil, fault.ErrNotJoined
	}

	receipt := &Receipt{Seller: seller}

	tx := p.begin()
	err := p.transition(ctx, tx, s, VerifiedByOverride, receipt)
	if err = p.end(tx, err); err != nil {
		return nil, err
	}

	return receipt, nil
}

// transition moves the seller into the fully verified state and settles; it is a no-op
// for a seller already fully verified, whichever edge got it there
func (p *Pool) transition(ctx context.Context, tx *txn, s *Seller, source VerificationSource, receipt *Receipt) error {
	if s.FullyVerified {
		return nil
	}

	wasVerified := s.Verified
	s.FullyVerified = true
	s.VerifiedBy = source
	if !wasVerified {
		s.Verified = true
		p.verified = append(p.verified, s.Identity)
	}
	tx.record(func() {
		s.FullyVerified = false
		s.VerifiedBy = ""
		if !wasVerified {
			s.Verified = false
			p.verified = p.verified[:len(p.verified)-1]
		}
	})
	tx.emit(p.event(EventSellerFullyVerified, s.Identity))

	common.Log.Debugf("seller %s fully verified in pool %s by %s", s.Identity, p.ID, source)
	receipt.FullyVerified = true

	settlement, err := p.settle(ctx, tx, s)
	if err != nil {
		return err
	}

	receipt.Settlement = settlement
	receipt.AccessGranted = settlement.AccessGranted
	return nil
}
