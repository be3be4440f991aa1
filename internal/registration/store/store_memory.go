package store

import (
	"context"
	"sync"

	"formintake/internal/registration/models"
	id "formintake/pkg/domain"
)

// InMemoryStore keeps records in maps guarded by a mutex. Used for tests and the
// "memory" driver.
type InMemoryStore struct {
	mu    sync.RWMutex
	byID  map[id.RegistrationID]*models.Registration
	byRef map[models.ReferenceCode]id.RegistrationID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:  make(map[id.RegistrationID]*models.Registration),
		byRef: make(map[models.ReferenceCode]id.RegistrationID),
	}
}

func (s *InMemoryStore) Insert(_ context.Context, reg *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[reg.ID]; ok {
		return &DuplicateKeyError{Field: KeyID}
	}
	if _, ok := s.byRef[reg.ReferenceNumber]; ok {
		return &DuplicateKeyError{Field: KeyReferenceNumber}
	}
	s.byID[reg.ID] = reg.Clone()
	s.byRef[reg.ReferenceNumber] = reg.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, regID id.RegistrationID) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if reg, ok := s.byID[regID]; ok {
		return reg.Clone(), nil
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) ExistsByReference(_ context.Context, code models.ReferenceCode) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byRef[code]
	return ok, nil
}

func (s *InMemoryStore) Ping(context.Context) error {
	return nil
}
