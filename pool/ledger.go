package pool

import (
	"context"

	"github.com/provideplatform/datapool/common"
	"github.com/provideplatform/datapool/fault"
	"github.com/provideplatform/datapool/proof"
)

// Receipt describes the effects of a committed seller operation
type Receipt struct {
	Seller        string      `json:"seller"`
	Handle        string      `json:"handle,omitempty"`
	FullyVerified bool        `json:"fully_verified"`
	Settlement    *Settlement `json:"settlement,omitempty"`
	AccessGranted bool        `json:"access_granted"`
}

// SubmitProof records a proof value supplied directly by the seller
func (p *Pool) SubmitProof(ctx context.Context, seller, proofName, value string) (*Receipt, error) {
	return p.submitFrom(ctx, seller, proofName, value, proof.SourceDirect)
}

// SubmitOracleProof records a proof value attested by the proof oracle
func (p *Pool) SubmitOracleProof(ctx context.Context, seller, proofName, value string) (*Receipt, error) {
	return p.submitFrom(ctx, seller, proofName, value, proof.SourceOracle)
}

func (p *Pool) submitFrom(ctx context.Context, seller, proofName, value string, source proof.Source) (*Receipt, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	tx := p.begin()
	receipt, err := p.submit(ctx, tx, seller, proofName, value, source)
	if err = p.end(tx, err); err != nil {
		return nil, err
	}
	return receipt, nil
}

// submit validates and records a proof submission, then runs the completion check
func (p *Pool) submit(ctx context.Context, tx *txn, seller, proofName, value string, source proof.Source) (*Receipt, error) {
	if !p.active {
		return nil, fault.ErrPoolInactive
	}

	s, ok := p.sellers[seller]
	if !ok || !s.Joined {
		return nil, fault.ErrNotJoined
	}

	// a resubmitted proof is a duplicate whether or not the seller is fully verified
	if submission, ok := s.Proofs[proofName]; ok && submission.Submitted {
		return nil, fault.ErrDuplicateSubmission
	}

	if s.FullyVerified {
		return nil, fault.ErrAlreadyFullyVerified
	}

	if p.requirement(proofName) == nil {
		return nil, fault.ErrUnknownProof
	}

	handle := proof.DeriveHandle(seller, proofName, value, p.ID)
	err := p.proofs.Reserve(handle)
	if err != nil {
		common.Log.Debugf("rejected %s proof %s for seller %s in pool %s; %s", source, proofName, seller, p.ID, err.Error())
		return nil, err
	}
	tx.reserve(handle)

	s.Proofs[proofName] = &proof.Submission{
		Submitted: true,
		Handle:    handle,
		Source:    source,
	}
	tx.record(func() { delete(s.Proofs, proofName) })

	evt := p.event(EventProofSubmitted, seller)
	evt.ProofName = proofName
	evt.Handle = handle
	evt.Source = source
	tx.emit(evt)

	common.Log.Debugf("accepted %s proof %s for seller %s in pool %s", source, proofName, seller, p.ID)

	receipt := &Receipt{
		Seller: seller,
		Handle: handle,
	}

	if p.complete(s) {
		err = p.transition(ctx, tx, s, VerifiedByProofs, receipt)
		if err != nil {
			return nil, err
		}
	}

	return receipt, nil
}

// complete returns true if the seller has submitted every required proof
func (p *Pool) complete(s *Seller) bool {
	for _, req := range p.Requirements {
		if !req.Required {
			continue
		}
		submission, ok := s.Proofs[req.Name]
		if !ok || !submission.Submitted {
			return false
		}
	}
	return true
}
