// Package ports define contratos que conectam o domínio a implementações externas.
package ports

import (
	"context"
	"time"

	"github.com/wizarding-anonymous/cryo-sub006/internal/core/domain"
)

// CounterSnapshot é o retorno da unidade atômica de checagem: leitura do
// nível de penalidade, incremento do contador e leitura do TTL em uma única
// ida ao store.
type CounterSnapshot struct {
	Count        int64
	PenaltyLevel int64
	// TTL negativo significa que o contador ainda não tem expiração.
	TTL time.Duration
}

// CounterStore é o key/value compartilhado que sustenta contadores e o cache
// de bloqueio. Implementações devem delegar a atomicidade ao próprio store
// (transação/pipeline), nunca a locks no processo.
type CounterStore interface {
	// CheckAndIncrement executa GET penalidade + INCR contador + TTL contador
	// como uma unidade atômica.
	CheckAndIncrement(ctx context.Context, counterKey, penaltyKey string) (CounterSnapshot, error)

	// Increment incrementa o contador e arma o TTL apenas se ausente.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)

	// IncrementPenalty incrementa o nível de penalidade e retorna o novo valor.
	IncrementPenalty(ctx context.Context, key string) (int64, error)

	// GetCount lê o contador sem mutação. Valores ausentes ou corrompidos
	// contam como zero.
	GetCount(ctx context.Context, key string) (int64, error)

	// Expire rearma o TTL das chaves informadas.
	Expire(ctx context.Context, ttl time.Duration, keys ...string) error

	// SetBlock grava uma entrada de bloqueio. TTL não positivo significa
	// entrada sem expiração.
	SetBlock(ctx context.Context, key string, ttl time.Duration) error

	// IsBlocked verifica a presença de uma entrada de bloqueio.
	IsBlocked(ctx context.Context, key string) (bool, error)

	// Delete remove as chaves informadas.
	Delete(ctx context.Context, keys ...string) error
}

// BlockStore é o armazenamento durável dos registros de bloqueio de IP,
// fonte de verdade do BlockGate.
type BlockStore interface {
	Create(ctx context.Context, record domain.IPBlockRecord) error

	// FindActive retorna o registro ativo mais recente para o IP, ou nil
	// quando não há bloqueio ativo.
	FindActive(ctx context.Context, ip string) (*domain.IPBlockRecord, error)

	// Deactivate marca um registro como inativo (reconciliação preguiçosa de
	// expiração). Retorna domain.ErrBlockNotFound se o registro não existe.
	Deactivate(ctx context.Context, id string) error
}
