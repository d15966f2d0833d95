package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"filegate/internal/server/config"
	"filegate/internal/server/database"
)

var errStoreDown = errors.New("connection refused")

// faultyStore wraps MemoryRepository and injects failures per method.
type faultyStore struct {
	*database.MemoryRepository

	mu             sync.Mutex
	failCreateKey  error
	failCreateFile error
	failIsActive   error
	failDeactivate error
	failByOwner    error
	// duplicates makes the next N create calls report ErrDuplicateKey.
	duplicates int
	// activeChecks counts IsKeyActive round trips.
	activeChecks int
}

func newFaultyStore() *faultyStore {
	return &faultyStore{MemoryRepository: database.NewMemoryRepository()}
}

func (s *faultyStore) takeDuplicate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.duplicates > 0 {
		s.duplicates--
		return true
	}
	return false
}

func (s *faultyStore) CreateKey(ctx context.Context, key *database.AccessKey) error {
	if s.failCreateKey != nil {
		return s.failCreateKey
	}
	if s.takeDuplicate() {
		return database.ErrDuplicateKey
	}
	return s.MemoryRepository.CreateKey(ctx, key)
}

func (s *faultyStore) CreateFile(ctx context.Context, file *database.FileRecord) error {
	if s.failCreateFile != nil {
		return s.failCreateFile
	}
	if s.takeDuplicate() {
		return database.ErrDuplicateKey
	}
	return s.MemoryRepository.CreateFile(ctx, file)
}

func (s *faultyStore) IsKeyActive(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	s.activeChecks++
	s.mu.Unlock()
	if s.failIsActive != nil {
		return false, s.failIsActive
	}
	return s.MemoryRepository.IsKeyActive(ctx, key)
}

func (s *faultyStore) DeactivateKey(ctx context.Context, key string) error {
	if s.failDeactivate != nil {
		return s.failDeactivate
	}
	return s.MemoryRepository.DeactivateKey(ctx, key)
}

func (s *faultyStore) DeactivateFilesByOwner(ctx context.Context, ownerKey string) (int64, error) {
	if s.failByOwner != nil {
		return 0, s.failByOwner
	}
	return s.MemoryRepository.DeactivateFilesByOwner(ctx, ownerKey)
}

// memorySink records stored blobs and hands out sequential ids.
type memorySink struct {
	mu    sync.Mutex
	blobs map[string][]byte
	err   error
}

func newMemorySink() *memorySink {
	return &memorySink{blobs: make(map[string][]byte)}
}

func (s *memorySink) Kind() string { return "memory" }

func (s *memorySink) Store(_ context.Context, name string, data io.Reader, _ int64) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	content, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("blob-%d-%s", len(s.blobs)+1, name)
	s.blobs[id] = content
	return id, nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

func testConfig() *config.Config {
	return &config.Config{
		MaxFileSize:     1024,
		BaseURL:         "http://files.test",
		AccessKeyLength: 10,
		FileKeyLength:   8,
	}
}
