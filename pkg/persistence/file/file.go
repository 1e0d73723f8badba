// Package file provides a file-system backed persistence implementation.
// One JSON document per aggregate; good for development, tests and
// single-node deployments.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zaplane/zaplane/pkg/persistence"
)

// Persistence implements persistence.Persistence on top of a root directory.
type Persistence struct {
	root string

	automationRepo *AutomationRepository
	executionRepo  *ExecutionRepository
	pendingRepo    *PendingWaitRepository
	contactRepo    *ContactRepository
}

func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	store := &store{root: cleanRoot}

	return &Persistence{
		root:           cleanRoot,
		automationRepo: &AutomationRepository{store: store},
		executionRepo:  &ExecutionRepository{store: store},
		pendingRepo:    &PendingWaitRepository{store: store},
		contactRepo:    &ContactRepository{store: store},
	}
}

func (p *Persistence) AutomationRepository() persistence.AutomationRepository {
	return p.automationRepo
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}

func (p *Persistence) PendingWaitRepository() persistence.PendingWaitRepository {
	return p.pendingRepo
}

func (p *Persistence) ContactRepository() persistence.ContactRepository {
	return p.contactRepo
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// store serializes all file access. File persistence trades throughput for
// simplicity; a single lock keeps multi-goroutine dispatch correct.
type store struct {
	root string
	mu   sync.Mutex
}

func (s *store) write(collection, id string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.root, collection)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", collection, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", collection, id, err)
	}

	return os.WriteFile(filepath.Join(dir, id+".json"), data, 0o644)
}

func (s *store) read(collection, id string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.root, collection, id+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fs.ErrNotExist
		}

		return fmt.Errorf("failed to read %s %s: %w", collection, id, err)
	}

	return json.Unmarshal(data, v)
}

func (s *store) remove(collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(filepath.Join(s.root, collection, id+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return fs.ErrNotExist
	}

	return err
}

// readAll decodes every document of a collection through decode, which
// receives the raw bytes of one file.
func (s *store) readAll(collection string, decode func(data []byte) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.root, collection)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("failed to list %s: %w", collection, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}

		if err := decode(data); err != nil {
			return err
		}
	}

	return nil
}
