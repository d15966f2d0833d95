package database

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository is an in-process index with the same semantics as
// Repository. It backs STORE_DRIVER=memory and the service tests; data is
// lost on restart.
type MemoryRepository struct {
	mu    sync.Mutex
	keys  map[string]*AccessKey
	files []*FileRecord
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{keys: make(map[string]*AccessKey)}
}

func (m *MemoryRepository) CreateKey(_ context.Context, key *AccessKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.keys[key.Key]; exists {
		return ErrDuplicateKey
	}
	stored := *key
	m.keys[key.Key] = &stored
	return nil
}

func (m *MemoryRepository) IsKeyActive(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.keys[key]
	return ok && k.Active, nil
}

func (m *MemoryRepository) DeactivateKey(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.keys[key]
	if !ok || !k.Active {
		return ErrKeyNotFound
	}
	k.Active = false
	return nil
}

func (m *MemoryRepository) ListActiveKeys(_ context.Context) ([]*AccessKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := []*AccessKey{}
	for _, k := range m.keys {
		if k.Active {
			c := *k
			keys = append(keys, &c)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CreatedAt.Equal(keys[j].CreatedAt) {
			return keys[i].Key < keys[j].Key
		}
		return keys[i].CreatedAt.Before(keys[j].CreatedAt)
	})
	return keys, nil
}

func (m *MemoryRepository) CreateFile(_ context.Context, file *FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if owner, ok := m.keys[file.OwnerKey]; !ok || !owner.Active {
		return ErrKeyNotFound
	}
	if file.Active && m.activeFile(file.FileKey) != nil {
		return ErrDuplicateKey
	}
	stored := *file
	m.files = append(m.files, &stored)
	return nil
}

func (m *MemoryRepository) GetActiveFile(_ context.Context, fileKey string) (*FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f := m.activeFile(fileKey)
	if f == nil {
		return nil, ErrFileNotFound
	}
	c := *f
	return &c, nil
}

func (m *MemoryRepository) DeactivateFilesByOwner(_ context.Context, ownerKey string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, f := range m.files {
		if f.OwnerKey == ownerKey && f.Active {
			f.Active = false
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) DeactivateFile(_ context.Context, ownerKey, fileKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, f := range m.files {
		if f.OwnerKey == ownerKey && f.FileKey == fileKey && f.Active {
			f.Active = false
			return nil
		}
	}
	return ErrFileNotFound
}

func (m *MemoryRepository) GetStats(_ context.Context) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &Stats{TotalKeys: int64(len(m.keys)), TotalFiles: int64(len(m.files))}
	for _, k := range m.keys {
		if k.Active {
			stats.ActiveKeys++
		}
	}
	for _, f := range m.files {
		if f.Active {
			stats.ActiveFiles++
			stats.ActiveBytes += f.SizeBytes
		}
	}
	return stats, nil
}

// HealthCheck always succeeds.
func (m *MemoryRepository) HealthCheck(context.Context) error {
	return nil
}

// activeFile must be called with mu held.
func (m *MemoryRepository) activeFile(fileKey string) *FileRecord {
	for _, f := range m.files {
		if f.FileKey == fileKey && f.Active {
			return f
		}
	}
	return nil
}
