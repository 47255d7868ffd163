package store

import (
	"context"
	"errors"
	"sync"

	"certreg/internal/certification/models"
	"certreg/internal/certification/ports"
	"certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
	"certreg/pkg/platform/sentinel"
)

// InMemory keeps the registry in maps. RunInTx serializes all mutations and
// stages their writes, applying them atomically on success so readers never
// observe a half-applied mint or burn.
type InMemory struct {
	txMu sync.Mutex

	mu      sync.RWMutex
	entries map[domain.CertID]models.Entry
	config  *models.RegistryConfig
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[domain.CertID]models.Entry)}
}

func (s *InMemory) Get(_ context.Context, id domain.CertID) (*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneEntry(e), nil
}

func (s *InMemory) Exists(_ context.Context, id domain.CertID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[id]
	return ok, nil
}

func (s *InMemory) Insert(_ context.Context, entry *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entry.ID]; ok {
		return sentinel.ErrConflict
	}
	s.entries[entry.ID] = *cloneEntry(*entry)
	return nil
}

func (s *InMemory) Delete(_ context.Context, id domain.CertID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *InMemory) Load(_ context.Context) (*models.RegistryConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.config == nil {
		return nil, sentinel.ErrNotFound
	}
	cfg := s.config.Clone()
	return &cfg, nil
}

// LoadForUpdate outside RunInTx provides no locking; the service only calls
// it from inside a transaction.
func (s *InMemory) LoadForUpdate(ctx context.Context, defaults models.RegistryConfig) (*models.RegistryConfig, error) {
	cfg, err := s.Load(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		d := defaults.Clone()
		return &d, nil
	}
	return cfg, err
}

func (s *InMemory) Save(_ context.Context, cfg *models.RegistryConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := cfg.Clone()
	s.config = &c
	return nil
}

// RunInTx implements ports.RegistryTx.
func (s *InMemory) RunInTx(ctx context.Context, fn func(stores ports.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	// Once queued, a transaction runs to completion: nothing in it waits on
	// I/O, so there is no deadline to honor.
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memoryTx{
		base:    s,
		inserts: make(map[domain.CertID]models.Entry),
		deletes: make(map[domain.CertID]struct{}),
	}
	if err := fn(ports.Stores{Certs: tx, Config: tx}); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// memoryTx stages writes over the base maps. It is only used while the
// owning InMemory's txMu is held, so the base cannot change underneath it.
type memoryTx struct {
	base    *InMemory
	inserts map[domain.CertID]models.Entry
	deletes map[domain.CertID]struct{}
	config  *models.RegistryConfig
}

func (t *memoryTx) Get(ctx context.Context, id domain.CertID) (*models.Entry, error) {
	if e, ok := t.inserts[id]; ok {
		return cloneEntry(e), nil
	}
	if _, ok := t.deletes[id]; ok {
		return nil, sentinel.ErrNotFound
	}
	return t.base.Get(ctx, id)
}

func (t *memoryTx) Exists(ctx context.Context, id domain.CertID) (bool, error) {
	_, err := t.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (t *memoryTx) Insert(ctx context.Context, entry *models.Entry) error {
	exists, err := t.Exists(ctx, entry.ID)
	if err != nil {
		return err
	}
	if exists {
		return sentinel.ErrConflict
	}
	delete(t.deletes, entry.ID)
	t.inserts[entry.ID] = *cloneEntry(*entry)
	return nil
}

func (t *memoryTx) Delete(ctx context.Context, id domain.CertID) error {
	exists, err := t.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	delete(t.inserts, id)
	t.deletes[id] = struct{}{}
	return nil
}

func (t *memoryTx) Load(ctx context.Context) (*models.RegistryConfig, error) {
	if t.config != nil {
		cfg := t.config.Clone()
		return &cfg, nil
	}
	return t.base.Load(ctx)
}

func (t *memoryTx) LoadForUpdate(ctx context.Context, defaults models.RegistryConfig) (*models.RegistryConfig, error) {
	cfg, err := t.Load(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		d := defaults.Clone()
		return &d, nil
	}
	return cfg, err
}

func (t *memoryTx) Save(_ context.Context, cfg *models.RegistryConfig) error {
	c := cfg.Clone()
	t.config = &c
	return nil
}

func (t *memoryTx) commit() {
	t.base.mu.Lock()
	defer t.base.mu.Unlock()
	for id := range t.deletes {
		delete(t.base.entries, id)
	}
	for id, e := range t.inserts {
		t.base.entries[id] = e
	}
	if t.config != nil {
		t.base.config = t.config
	}
}

func cloneEntry(e models.Entry) *models.Entry {
	return &models.Entry{ID: e.ID, Record: e.Record.Clone(), Owner: e.Owner}
}
