package pool

import (
	"context"
	"strings"
	"time"

	"github.com/provideplatform/datapool/common"
	"github.com/provideplatform/datapool/fault"
)

// EncryptedData references a seller's encrypted payload held by the content store
type EncryptedData struct {
	ContentID         string    `json:"content_id"`
	AccessCondition   string    `json:"access_condition"`
	Encrypted         bool      `json:"encrypted"`
	AccessTransferred bool      `json:"access_transferred"`
	StoredAt          time.Time `json:"stored_at"`
}

// RegisterData stores the reference to a fully verified seller's encrypted data; a seller
// who has already been paid grants the buyer access immediately
func (p *Pool) RegisterData(ctx context.Context, seller, contentID, accessCondition string) (*Receipt, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	s, ok := p.sellers[seller]
	if !ok || !s.Joined {
		return nil, fault.ErrNotJoined
	}

	if !s.FullyVerified {
		return nil, fault.ErrNotFullyVerified
	}

	if s.data != nil && s.data.ContentID != "" {
		return nil, fault.ErrAlreadyStored
	}

	if strings.TrimSpace(contentID) == "" {
		return nil, fault.ErrEmptyContentID
	}

	tx := p.begin()

	s.data = &EncryptedData{
		ContentID:       contentID,
		AccessCondition: accessCondition,
		Encrypted:       true,
		StoredAt:        time.Now(),
	}
	tx.record(func() { s.data = nil })

	evt := p.event(EventDataStored, seller)
	evt.ContentID = contentID
	tx.emit(evt)

	receipt := &Receipt{Seller: seller}
	if s.Paid {
		receipt.AccessGranted = p.grantAccess(tx, s)
	}

	common.Log.Debugf("stored data reference %s for seller %s in pool %s", contentID, seller, p.ID)
	return receipt, p.end(tx, nil)
}

// grantAccess gives the buyer access to the seller's encrypted data at most once
func (p *Pool) grantAccess(tx *txn, s *Seller) bool {
	data := s.data
	if data == nil || !data.Encrypted || data.AccessTransferred {
		return false
	}

	buyer := p.Creator
	data.AccessTransferred = true
	p.buyerAccess[buyer] = append(p.buyerAccess[buyer], data.ContentID)
	tx.record(func() {
		data.AccessTransferred = false
		p.buyerAccess[buyer] = p.buyerAccess[buyer][:len(p.buyerAccess[buyer])-1]
	})

	evt := p.event(EventAccessGranted, s.Identity)
	evt.Buyer = buyer
	evt.ContentID = data.ContentID
	tx.emit(evt)

	common.Log.Debugf("granted buyer %s access to %s of seller %s in pool %s", buyer, data.ContentID, s.Identity, p.ID)
	return true
}

// TransferAccess grants the buyer access to the data of every verified seller not yet
// granted; returns the number of grants made
func (p *Pool) TransferAccess(ctx context.Context, caller string) (int, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if caller != p.Creator {
		return 0, fault.ErrNotCreator
	}

	tx := p.begin()

	granted := 0
	for _, seller := range p.verified {
		if p.grantAccess(tx, p.sellers[seller]) {
			granted++
		}
	}

	return granted, p.end(tx, nil)
}

// Data returns a copy of the seller's encrypted data reference
func (p *Pool) Data(seller string) (*EncryptedData, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	s, ok := p.sellers[seller]
	if !ok {
		return nil, fault.ErrSellerNotFound
	}

	if s.data == nil {
		return nil, fault.ErrDataNotFound
	}

	data := *s.data
	return &data, nil
}

// AccessibleContent returns the content identifiers the buyer may access, in grant order
func (p *Pool) AccessibleContent(buyer string) []string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]string{}, p.buyerAccess[buyer]...)
}
