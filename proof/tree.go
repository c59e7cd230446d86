package proof

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"sync"

	"github.com/jinzhu/gorm"
	uuid "github.com/kthomas/go.uuid"
	"github.com/providenetwork/smt"
	"github.com/provideplatform/datapool/common"
	"github.com/provideplatform/datapool/fault"
)

// TreeRegistry is a proof registry backed by a sparse merkle tree keyed by the digest of each
// committed handle; when a database is given, every commit persists a snapshot of the tree
type TreeRegistry struct {
	db       *gorm.DB
	hash     hash.Hash
	id       uuid.UUID
	mutex    sync.Mutex
	reserved map[string]struct{}
	size     int
	tree     *smt.SparseMerkleTree
}

// InitTreeRegistry initializes the sparse merkle tree registry with the given id, loading the
// latest persisted snapshot if one exists
func InitTreeRegistry(db *gorm.DB, id uuid.UUID, h hash.Hash) (*TreeRegistry, error) {
	var tree *smt.SparseMerkleTree
	size := 0

	if db != nil {
		var err error
		tree, size, err = loadTree(db, id, h)
		if err != nil {
			return nil, err
		}
	}

	if tree == nil {
		tree = smt.NewSparseMerkleTree(smt.NewSimpleMap(), smt.NewSimpleMap(), h)
	}

	return &TreeRegistry{
		db:       db,
		hash:     h,
		id:       id,
		reserved: map[string]struct{}{},
		size:     size,
		tree:     tree,
	}, nil
}

func loadTree(db *gorm.DB, id uuid.UUID, h hash.Hash) (*smt.SparseMerkleTree, int, error) {
	var tree *smt.SparseMerkleTree
	size := 0

	rows, err := db.Raw("SELECT nodes, \"values\", root, size FROM proof_registry_trees WHERE registry_id = ? ORDER BY id", id).Rows()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to resolve proof registry tree %s; %s", id, err.Error())
	}
	defer rows.Close()

	for rows.Next() {
		var nodesRaw json.RawMessage
		var valuesRaw json.RawMessage
		var root string

		err = rows.Scan(&nodesRaw, &valuesRaw, &root, &size)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan proof registry tree %s; %s", id, err.Error())
		}

		var nodes *smt.SimpleMap
		var values *smt.SimpleMap

		err = json.Unmarshal(nodesRaw, &nodes)
		if err == nil && nodes == nil {
			err = fmt.Errorf("null nodes")
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to decode nodes of proof registry tree %s; %s", id, err.Error())
		}

		err = json.Unmarshal(valuesRaw, &values)
		if err == nil && values == nil {
			err = fmt.Errorf("null values")
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to decode values of proof registry tree %s; %s", id, err.Error())
		}

		var rootBytes []byte
		rootBytes, err = hex.DecodeString(root)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to decode root of proof registry tree %s; %s", id, err.Error())
		}

		tree = smt.ImportSparseMerkleTree(nodes, values, h, rootBytes)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read proof registry tree %s; %s", id, err.Error())
	}

	if tree != nil {
		common.Log.Debugf("imported proof registry tree %s with %d handle(s)", id, size)
	}

	return tree, size, nil
}

// commit persists a snapshot of the tree; caller holds the mutex
func (r *TreeRegistry) commit() error {
	if r.db == nil {
		return nil
	}

	nodes, _ := json.Marshal(r.tree.Nodes())
	values, _ := json.Marshal(r.tree.Values())
	root := hex.EncodeToString(r.tree.Root())

	db := r.db.Exec("INSERT INTO proof_registry_trees (registry_id, nodes, \"values\", root, size) VALUES (?, ?, ?, ?, ?)", r.id, nodes, values, root, r.size)
	if db.RowsAffected == 0 {
		return fmt.Errorf("failed to persist proof registry tree %s", r.id)
	}

	return nil
}

// digest is called with the mutex held
func (r *TreeRegistry) digest(val []byte) []byte {
	r.hash.Reset()
	r.hash.Write(val)
	digest := r.hash.Sum(nil)
	r.hash.Reset()
	return digest
}

// contains is called with the mutex held
func (r *TreeRegistry) contains(handle string) bool {
	val, err := r.tree.Get(r.digest([]byte(handle)))
	if err != nil {
		common.Log.Warningf("failed to read proof registry tree %s; %s", r.id, err.Error())
		return false
	}
	return bytes.Equal(val, []byte(handle))
}

// Contains returns true if the handle has been committed to the tree
func (r *TreeRegistry) Contains(handle string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.contains(handle)
}

// Reserve the handle; fails if the handle is in the tree or reserved by another operation
func (r *TreeRegistry) Reserve(handle string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.reserved[handle]; ok || r.contains(handle) {
		return fault.ErrProofAlreadyConsumed
	}

	r.reserved[handle] = struct{}{}
	return nil
}

// Commit inserts a previously reserved handle into the tree
func (r *TreeRegistry) Commit(handle string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.reserved[handle]; !ok {
		return fault.ErrInvalidState
	}

	val := []byte(handle)
	_, err := r.tree.Update(r.digest(val), val)
	if err != nil {
		return fmt.Errorf("failed to insert handle into proof registry tree %s; %s", r.id, err.Error())
	}

	delete(r.reserved, handle)
	r.size++

	err = r.commit()
	if err != nil {
		common.Log.Warningf("failed to persist proof registry tree %s; %s", r.id, err.Error())
	}

	common.Log.Debugf("committed proof handle %s; registry %s root: %s", handle, r.id, hex.EncodeToString(r.tree.Root()))
	return nil
}

// Release a reservation
func (r *TreeRegistry) Release(handle string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.reserved, handle)
}

// Root returns the hex-encoded root of the tree
func (r *TreeRegistry) Root() string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return hex.EncodeToString(r.tree.Root())
}

// Size returns the number of committed handles
func (r *TreeRegistry) Size() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.size
}
