// Package auth keeps the operator allowlist that gates destructive commands.
package auth

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var ErrEmptyID = errors.New("operator id must not be empty")

type Operator struct {
	ID      string    `json:"id"`
	Name    string    `json:"name,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

type Repository interface {
	LoadAll() ([]Operator, error)
	Upsert(op Operator) error
	Remove(id string) error
}

type Service struct {
	repo      Repository
	mu        sync.RWMutex
	operators map[string]Operator
}

// NewWithRepo preloads operators from repo and merges the seed ids (from the
// environment) on top. repo may be nil.
func NewWithRepo(repo Repository, seed ...string) (*Service, error) {
	s := &Service{repo: repo, operators: make(map[string]Operator)}
	if repo != nil {
		ops, err := repo.LoadAll()
		if err != nil {
			return nil, err
		}
		for _, op := range ops {
			s.operators[op.ID] = op
		}
	}
	for _, id := range seed {
		if id == "" {
			continue
		}
		if _, ok := s.operators[id]; !ok {
			s.operators[id] = Operator{ID: id}
		}
	}
	return s, nil
}

func (s *Service) IsOperator(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.operators[id]
	return ok
}

func (s *Service) Add(op Operator) error {
	if op.ID == "" {
		return ErrEmptyID
	}
	if op.AddedAt.IsZero() {
		op.AddedAt = time.Now().UTC()
	}
	s.mu.Lock()
	s.operators[op.ID] = op
	s.mu.Unlock()
	if s.repo != nil {
		return s.repo.Upsert(op)
	}
	return nil
}

func (s *Service) Remove(id string) error {
	s.mu.Lock()
	delete(s.operators, id)
	s.mu.Unlock()
	if s.repo != nil {
		return s.repo.Remove(id)
	}
	return nil
}

// List returns operators sorted by id.
func (s *Service) List() []Operator {
	s.mu.RLock()
	out := make([]Operator, 0, len(s.operators))
	for _, op := range s.operators {
		out = append(out, op)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
