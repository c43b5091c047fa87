package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileRepository stores operators as one JSON array. An empty or malformed
// file reads as no operators.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

func NewFileRepository(path string) (*FileRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("touch file: %w", err)
	}
	_ = f.Close()
	return &FileRepository{path: path}, nil
}

func (r *FileRepository) LoadAll() ([]Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadUnlocked()
}

func (r *FileRepository) Upsert(op Operator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops, err := r.loadUnlocked()
	if err != nil {
		return err
	}
	updated := false
	for i, o := range ops {
		if o.ID == op.ID {
			ops[i] = op
			updated = true
			break
		}
	}
	if !updated {
		ops = append(ops, op)
	}
	return r.saveUnlocked(ops)
}

func (r *FileRepository) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops, err := r.loadUnlocked()
	if err != nil {
		return err
	}
	out := make([]Operator, 0, len(ops))
	for _, o := range ops {
		if o.ID != id {
			out = append(out, o)
		}
	}
	return r.saveUnlocked(out)
}

func (r *FileRepository) loadUnlocked() ([]Operator, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	var ops []Operator
	if err := json.Unmarshal(data, &ops); err != nil {
		return []Operator{}, nil
	}
	return ops, nil
}

func (r *FileRepository) saveUnlocked(ops []Operator) error {
	data, err := json.MarshalIndent(ops, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := os.WriteFile(r.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
