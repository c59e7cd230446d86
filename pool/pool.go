/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package pool

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	uuid "github.com/kthomas/go.uuid"
	"github.com/provideplatform/datapool/common"
	"github.com/provideplatform/datapool/fault"
	"github.com/provideplatform/datapool/payment"
	"github.com/provideplatform/datapool/proof"
)

// Config is supplied by the pool creator when the pool is created
type Config struct {
	Name         string               `json:"name"`
	Description  string               `json:"description"`
	DataType     string               `json:"data_type"`
	Requirements []*proof.Requirement `json:"requirements"`
	PricePerUnit uint64               `json:"price_per_unit"`
	TotalBudget  uint64               `json:"total_budget"`
	Creator      string               `json:"creator"`
	Deadline     time.Time            `json:"deadline"`
}

// Pool is a single funded data collection campaign; every mutating method is one atomic
// operation serialized by the pool mutex
type Pool struct {
	ID           uuid.UUID
	Name         string
	Description  string
	DataType     string
	Requirements []*proof.Requirement
	PricePerUnit uint64
	TotalBudget  uint64
	Creator      string
	CreatedAt    time.Time
	Deadline     time.Time

	active    bool
	remaining uint64
	units     uint64

	sellers     map[string]*Seller
	joined      []string
	verified    []string
	buyerAccess map[string][]string

	proofs     proof.Registry
	transferer payment.Transferer
	dispatcher Dispatcher

	mutex sync.Mutex
}

// Details is a point-in-time view of a pool
type Details struct {
	ID              uuid.UUID            `json:"id"`
	Name            string               `json:"name"`
	Description     string               `json:"description"`
	DataType        string               `json:"data_type"`
	Requirements    []*proof.Requirement `json:"requirements"`
	PricePerUnit    uint64               `json:"price_per_unit"`
	TotalBudget     uint64               `json:"total_budget"`
	RemainingBudget uint64               `json:"remaining_budget"`
	UnitsCollected  uint64               `json:"units_collected"`
	Creator         string               `json:"creator"`
	Active          bool                 `json:"active"`
	CreatedAt       time.Time            `json:"created_at"`
	Deadline        time.Time            `json:"deadline"`
	JoinedCount     int                  `json:"joined_count"`
	VerifiedCount   int                  `json:"verified_count"`
}

// New initializes an active pool; the proof registry is shared by reference with every
// other pool of the deployment
func New(cfg *Config, proofs proof.Registry, transferer payment.Transferer, dispatcher Dispatcher) (*Pool, error) {
	if cfg == nil {
		return nil, fault.ErrInvalidConfig
	}
	if proofs == nil || transferer == nil {
		return nil, fmt.Errorf("failed to initialize pool %s; proof registry and transferer required; %w", cfg.Name, fault.ErrInvalidConfig)
	}

	err := cfg.validate()
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to generate pool id; %s", err.Error())
	}

	requirements := make([]*proof.Requirement, len(cfg.Requirements))
	for i, req := range cfg.Requirements {
		_req := *req
		_req.Type, _ = proof.ParseType(string(req.Type))
		requirements[i] = &_req
	}

	p := &Pool{
		ID:           id,
		Name:         cfg.Name,
		Description:  cfg.Description,
		DataType:     cfg.DataType,
		Requirements: requirements,
		PricePerUnit: cfg.PricePerUnit,
		TotalBudget:  cfg.TotalBudget,
		Creator:      cfg.Creator,
		CreatedAt:    time.Now(),
		Deadline:     cfg.Deadline,

		active:    true,
		remaining: cfg.TotalBudget,

		sellers:     map[string]*Seller{},
		joined:      make([]string, 0),
		verified:    make([]string, 0),
		buyerAccess: map[string][]string{},

		proofs:     proofs,
		transferer: transferer,
		dispatcher: dispatcher,
	}

	common.Log.Debugf("initialized pool %s (%s); price per unit: %d; budget: %d; %d proof requirement(s)", p.ID, p.Name, p.PricePerUnit, p.TotalBudget, len(p.Requirements))
	return p, nil
}

// validate the pool config
func (cfg *Config) validate() error {
	errs := make([]string, 0)

	if strings.TrimSpace(cfg.Name) == "" {
		errs = append(errs, "name required")
	}

	if strings.TrimSpace(cfg.Creator) == "" {
		errs = append(errs, "creator required")
	}

	if cfg.PricePerUnit == 0 {
		errs = append(errs, "positive price per unit required")
	}

	names := map[string]bool{}
	for i, req := range cfg.Requirements {
		if req == nil || strings.TrimSpace(req.Name) == "" {
			errs = append(errs, fmt.Sprintf("requirement %d name required", i))
			continue
		}
		if names[req.Name] {
			errs = append(errs, fmt.Sprintf("duplicate requirement %s", req.Name))
		}
		names[req.Name] = true

		if _, ok := proof.ParseType(string(req.Type)); !ok {
			errs = append(errs, fmt.Sprintf("requirement %s has unknown proof type %s", req.Name, req.Type))
		}
	}

	if !cfg.Deadline.IsZero() && !cfg.Deadline.After(time.Now()) {
		errs = append(errs, "deadline must be in the future")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s; %w", strings.Join(errs, "; "), fault.ErrInvalidConfig)
	}

	return nil
}

// Details returns a point-in-time view of the pool
func (p *Pool) Details() *Details {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	requirements := make([]*proof.Requirement, len(p.Requirements))
	for i, req := range p.Requirements {
		_req := *req
		requirements[i] = &_req
	}

	return &Details{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		DataType:        p.DataType,
		Requirements:    requirements,
		PricePerUnit:    p.PricePerUnit,
		TotalBudget:     p.TotalBudget,
		RemainingBudget: p.remaining,
		UnitsCollected:  p.units,
		Creator:         p.Creator,
		Active:          p.active,
		CreatedAt:       p.CreatedAt,
		Deadline:        p.Deadline,
		JoinedCount:     len(p.joined),
		VerifiedCount:   len(p.verified),
	}
}

// Active returns true if the pool accepts sellers and proofs
func (p *Pool) Active() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.active
}

// Expired returns true if the pool has a deadline at or before the given time
func (p *Pool) Expired(now time.Time) bool {
	return !p.Deadline.IsZero() && !now.Before(p.Deadline)
}

// RemainingBudget returns the unspent budget
func (p *Pool) RemainingBudget() uint64 {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.remaining
}

// UnitsCollected returns the number of units paid for
func (p *Pool) UnitsCollected() uint64 {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.units
}

// Joined returns the identities of joined sellers in join order
func (p *Pool) Joined() []string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]string{}, p.joined...)
}

// Verified returns the identities of verified sellers in verification order
func (p *Pool) Verified() []string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]string{}, p.verified...)
}

// Close deactivates the pool; only the creator may close it
func (p *Pool) Close(ctx context.Context, caller string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if caller != p.Creator {
		return fault.ErrNotCreator
	}

	if !p.active {
		return nil
	}

	tx := p.begin()
	p.active = false
	tx.record(func() { p.active = true })
	tx.emit(p.event(EventPoolClosed, ""))

	common.Log.Debugf("closed pool %s", p.ID)
	return p.end(tx, nil)
}

// requirement returns the named requirement, or nil
func (p *Pool) requirement(name string) *proof.Requirement {
	for _, req := range p.Requirements {
		if req.Name == name {
			return req
		}
	}
	return nil
}
