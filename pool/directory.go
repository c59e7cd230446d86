package pool

import uuid "github.com/kthomas/go.uuid"

// Directory creates pools and resolves them by id
type Directory interface {
	Create(cfg *Config) (*Pool, error)
	Find(id uuid.UUID) (*Pool, error)
}
