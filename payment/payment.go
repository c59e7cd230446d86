package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/provideplatform/datapool/common"
)

// Transferer moves funds held in escrow to a recipient
type Transferer interface {
	Transfer(ctx context.Context, to string, amount uint64) error
}

// Ledger is an in-memory Transferer crediting recipient balances; recipients may be
// blocked to simulate rejected transfers
type Ledger struct {
	mutex    sync.Mutex
	balances map[string]uint64
	blocked  map[string]bool
	paid     uint64
}

// NewLedger initializes an empty ledger
func NewLedger() *Ledger {
	return &Ledger{
		balances: map[string]uint64{},
		blocked:  map[string]bool{},
	}
}

// Transfer credits the given amount to the recipient
func (l *Ledger) Transfer(ctx context.Context, to string, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	if to == "" {
		return fmt.Errorf("failed to transfer %d; recipient required", amount)
	}

	if l.blocked[to] {
		return fmt.Errorf("failed to transfer %d to %s; recipient rejected transfer", amount, to)
	}

	l.balances[to] += amount
	l.paid += amount
	common.Log.Tracef("transferred %d to %s", amount, to)
	return nil
}

// Block causes subsequent transfers to the recipient to fail
func (l *Ledger) Block(recipient string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.blocked[recipient] = true
}

// Unblock reverses Block
func (l *Ledger) Unblock(recipient string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	delete(l.blocked, recipient)
}

// BalanceOf returns the balance credited to the recipient
func (l *Ledger) BalanceOf(recipient string) uint64 {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.balances[recipient]
}

// Paid returns the sum of all successful transfers
func (l *Ledger) Paid() uint64 {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.paid
}
