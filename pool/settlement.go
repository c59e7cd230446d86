package pool

import (
	"context"
	"fmt"

	"github.com/provideplatform/datapool/common"
	"github.com/provideplatform/datapool/fault"
)

// SettlementOutcome of a settlement attempt
type SettlementOutcome string

// settlement outcomes
const (
	SettlementPaid            SettlementOutcome = "paid"
	SettlementBudgetExhausted SettlementOutcome = "budget_exhausted"
	SettlementAlreadySettled  SettlementOutcome = "already_settled"
)

// Settlement is the result of settling a single seller
type Settlement struct {
	Outcome       SettlementOutcome `json:"outcome"`
	Amount        uint64            `json:"amount"`
	Remaining     uint64            `json:"remaining_budget"`
	AccessGranted bool              `json:"access_granted"`
}

// BulkSettlement summarizes a settle-all operation
type BulkSettlement struct {
	Paid      []string `json:"paid"`
	Settled   []string `json:"already_settled"`
	Unfunded  []string `json:"unfunded"`
	Failed    []string `json:"failed"`
	Amount    uint64   `json:"amount"`
	Remaining uint64   `json:"remaining_budget"`
}

// settle pays the price per unit to a seller entering the fully verified state; an
// exhausted budget skips payment and is not an error
func (p *Pool) settle(ctx context.Context, tx *txn, s *Seller) (*Settlement, error) {
	if s.Paid {
		tx.emit(p.event(EventSettlementAlreadySettled, s.Identity))
		return &Settlement{Outcome: SettlementAlreadySettled, Remaining: p.remaining}, nil
	}

	if p.remaining < p.PricePerUnit {
		common.Log.Debugf("skipped settlement of seller %s in pool %s; remaining budget %d is less than price per unit %d", s.Identity, p.ID, p.remaining, p.PricePerUnit)
		tx.emit(p.event(EventSettlementBudgetExhausted, s.Identity))
		return &Settlement{Outcome: SettlementBudgetExhausted, Remaining: p.remaining}, nil
	}

	granted, err := p.disburse(ctx, tx, s)
	if err != nil {
		return nil, err
	}

	return &Settlement{
		Outcome:       SettlementPaid,
		Amount:        p.PricePerUnit,
		Remaining:     p.remaining,
		AccessGranted: granted,
	}, nil
}

// disburse debits the budget, credits the seller and grants access to any stored data;
// the caller has checked the budget covers the price per unit
func (p *Pool) disburse(ctx context.Context, tx *txn, s *Seller) (bool, error) {
	price := p.PricePerUnit

	p.remaining -= price
	p.units++
	s.Paid = true
	s.PaidAmount += price
	tx.record(func() {
		p.remaining += price
		p.units--
		s.Paid = false
		s.PaidAmount -= price
	})

	err := p.transferer.Transfer(ctx, s.Identity, price)
	if err != nil {
		common.Log.Warningf("failed to transfer %d to seller %s from pool %s; %s", price, s.Identity, p.ID, err.Error())
		return false, fmt.Errorf("%w; %s", fault.ErrTransferFailure, err.Error())
	}

	evt := p.event(EventSettlementPaid, s.Identity)
	evt.Amount = price
	tx.emit(evt)

	common.Log.Debugf("paid %d to seller %s from pool %s; remaining budget: %d", price, s.Identity, p.ID, p.remaining)

	return p.grantAccess(tx, s), nil
}

// SettleAll pays every joined seller not yet paid, in join order, regardless of
// verification state, until the budget no longer covers the price per unit; a seller whose
// transfer fails is left unpaid and reported without aborting the others
func (p *Pool) SettleAll(ctx context.Context, caller string) (*BulkSettlement, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if caller != p.Creator {
		return nil, fault.ErrNotCreator
	}

	if !p.active {
		return nil, fault.ErrPoolInactive
	}

	result := &BulkSettlement{
		Paid:     make([]string, 0),
		Settled:  make([]string, 0),
		Unfunded: make([]string, 0),
		Failed:   make([]string, 0),
	}

	tx := p.begin()

	for _, seller := range p.joined {
		s := p.sellers[seller]

		if s.Paid {
			result.Settled = append(result.Settled, seller)
			continue
		}

		if p.remaining < p.PricePerUnit {
			result.Unfunded = append(result.Unfunded, seller)
			continue
		}

		sp := tx.savepoint()
		_, err := p.disburse(ctx, tx, s)
		if err != nil {
			tx.rollbackTo(sp)
			result.Failed = append(result.Failed, seller)
			continue
		}

		result.Paid = append(result.Paid, seller)
		result.Amount += p.PricePerUnit
	}

	result.Remaining = p.remaining

	evt := p.event(EventBulkSettled, "")
	evt.Amount = result.Amount
	tx.emit(evt)

	common.Log.Debugf("bulk settled pool %s; paid %d seller(s) %d; %d unfunded; %d failed", p.ID, len(result.Paid), result.Amount, len(result.Unfunded), len(result.Failed))
	return result, p.end(tx, nil)
}
