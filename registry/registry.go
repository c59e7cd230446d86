package registry

import (
	"fmt"
	"os"
	"sync"

	dbconf "github.com/kthomas/go-db-config"
	uuid "github.com/kthomas/go.uuid"
	"github.com/provideplatform/datapool/common"
	"github.com/provideplatform/datapool/fault"
	"github.com/provideplatform/datapool/payment"
	"github.com/provideplatform/datapool/pool"
	"github.com/provideplatform/datapool/proof"
)

// Registry creates and owns the pools of a deployment, and the proof registry they share
type Registry struct {
	dispatcher pool.Dispatcher
	mutex      sync.RWMutex
	pools      map[uuid.UUID]*pool.Pool
	proofs     proof.Registry
	transferer payment.Transferer
}

// NewRegistry initializes a pool registry; every pool it creates shares the given proof
// registry by reference
func NewRegistry(proofs proof.Registry, transferer payment.Transferer, dispatcher pool.Dispatcher) *Registry {
	return &Registry{
		dispatcher: dispatcher,
		pools:      map[uuid.UUID]*pool.Pool{},
		proofs:     proofs,
		transferer: transferer,
	}
}

// Create a pool from the given config
func (r *Registry) Create(cfg *pool.Config) (*pool.Pool, error) {
	p, err := pool.New(cfg, r.proofs, r.transferer, r.dispatcher)
	if err != nil {
		return nil, err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.pools[p.ID] = p

	common.Log.Debugf("registered pool %s created by %s", p.ID, p.Creator)
	return p, nil
}

// Find the pool with the given id
func (r *Registry) Find(id uuid.UUID) (*pool.Pool, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	p, ok := r.pools[id]
	if !ok {
		return nil, fault.ErrPoolNotFound
	}
	return p, nil
}

// Proofs returns the proof registry shared by every pool
func (r *Registry) Proofs() proof.Registry {
	return r.proofs
}

// RequireProofRegistry initializes the configured proof registry provider
func RequireProofRegistry() (proof.Registry, error) {
	switch common.ProofRegistryProvider {
	case common.ProofRegistryProviderMemory:
		common.Log.Debug("initialized in-memory proof registry")
		return proof.NewMemoryRegistry(), nil
	case common.ProofRegistryProviderSparseMerkleTree:
		id := uuid.Nil
		if os.Getenv("PROOF_REGISTRY_ID") != "" {
			var err error
			id, err = uuid.FromString(os.Getenv("PROOF_REGISTRY_ID"))
			if err != nil {
				return nil, fmt.Errorf("failed to parse PROOF_REGISTRY_ID; %s", err.Error())
			}
		}

		registry, err := proof.InitTreeRegistry(dbconf.DatabaseConnection(), id, proof.HashFactory(common.ProofRegistryCurve))
		if err != nil {
			return nil, err
		}

		common.Log.Debugf("initialized sparse merkle tree proof registry %s with %d handle(s)", id, registry.Size())
		return registry, nil
	}

	return nil, fmt.Errorf("failed to initialize proof registry; unknown provider: %s", common.ProofRegistryProvider)
}
