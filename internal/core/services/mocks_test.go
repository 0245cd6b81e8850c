package services

import (
	"context"
	"time"

	"github.com/wizarding-anonymous/cryo-sub006/internal/core/domain"
	"github.com/wizarding-anonymous/cryo-sub006/internal/core/ports"
)

// mockCounterStore simula o key/value compartilhado em memória. TTLs são
// registrados, não aplicados: os testes verificam o valor armado.
type mockCounterStore struct {
	counts map[string]int64
	ttls   map[string]time.Duration
	blocks map[string]time.Duration

	failWith error
}

func newMockCounterStore() *mockCounterStore {
	return &mockCounterStore{
		counts: make(map[string]int64),
		ttls:   make(map[string]time.Duration),
		blocks: make(map[string]time.Duration),
	}
}

func (m *mockCounterStore) CheckAndIncrement(_ context.Context, counterKey, penaltyKey string) (ports.CounterSnapshot, error) {
	if m.failWith != nil {
		return ports.CounterSnapshot{}, m.failWith
	}
	m.counts[counterKey]++
	ttl, ok := m.ttls[counterKey]
	if !ok {
		ttl = -1
	}
	return ports.CounterSnapshot{
		Count:        m.counts[counterKey],
		PenaltyLevel: m.counts[penaltyKey],
		TTL:          ttl,
	}, nil
}

func (m *mockCounterStore) Increment(_ context.Context, key string, window time.Duration) (int64, error) {
	if m.failWith != nil {
		return 0, m.failWith
	}
	m.counts[key]++
	if _, ok := m.ttls[key]; !ok {
		m.ttls[key] = window
	}
	return m.counts[key], nil
}

func (m *mockCounterStore) IncrementPenalty(_ context.Context, key string) (int64, error) {
	if m.failWith != nil {
		return 0, m.failWith
	}
	m.counts[key]++
	return m.counts[key], nil
}

func (m *mockCounterStore) GetCount(_ context.Context, key string) (int64, error) {
	if m.failWith != nil {
		return 0, m.failWith
	}
	return m.counts[key], nil
}

func (m *mockCounterStore) Expire(_ context.Context, ttl time.Duration, keys ...string) error {
	if m.failWith != nil {
		return m.failWith
	}
	for _, key := range keys {
		m.ttls[key] = ttl
	}
	return nil
}

func (m *mockCounterStore) SetBlock(_ context.Context, key string, ttl time.Duration) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.blocks[key] = ttl
	return nil
}

func (m *mockCounterStore) IsBlocked(_ context.Context, key string) (bool, error) {
	if m.failWith != nil {
		return false, m.failWith
	}
	_, ok := m.blocks[key]
	return ok, nil
}

func (m *mockCounterStore) Delete(_ context.Context, keys ...string) error {
	if m.failWith != nil {
		return m.failWith
	}
	for _, key := range keys {
		delete(m.counts, key)
		delete(m.ttls, key)
		delete(m.blocks, key)
	}
	return nil
}

// mockBlockStore simula o armazenamento durável de bloqueios.
type mockBlockStore struct {
	records map[string]*domain.IPBlockRecord

	createErr     error
	findErr       error
	deactivateErr error
}

func newMockBlockStore() *mockBlockStore {
	return &mockBlockStore{records: make(map[string]*domain.IPBlockRecord)}
}

func (m *mockBlockStore) Create(_ context.Context, record domain.IPBlockRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	copied := record
	m.records[record.ID] = &copied
	return nil
}

func (m *mockBlockStore) FindActive(_ context.Context, ip string) (*domain.IPBlockRecord, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	var latest *domain.IPBlockRecord
	for _, record := range m.records {
		if record.IP != ip || !record.IsActive {
			continue
		}
		if latest == nil || record.CreatedAt.After(latest.CreatedAt) {
			latest = record
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (m *mockBlockStore) Deactivate(_ context.Context, id string) error {
	if m.deactivateErr != nil {
		return m.deactivateErr
	}
	record, ok := m.records[id]
	if !ok {
		return domain.ErrBlockNotFound
	}
	record.IsActive = false
	return nil
}

// stubGate responde com um estado fixo de bloqueio.
type stubGate struct {
	blocked bool
}

func (g stubGate) IsIPBlocked(context.Context, string) bool { return g.blocked }

func (g stubGate) BlockIP(context.Context, string, string, string, time.Duration) error {
	return nil
}

// stubReputation devolve uma reputação fixa ou um erro fixo.
type stubReputation struct {
	rep domain.Reputation
	err error
}

func (r stubReputation) Lookup(context.Context, string) (domain.Reputation, error) {
	return r.rep, r.err
}
