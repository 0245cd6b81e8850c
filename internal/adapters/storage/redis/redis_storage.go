// Package redis disponibiliza a implementação do CounterStore baseada em Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/wizarding-anonymous/cryo-sub006/internal/core/ports"
)

type Storage struct {
	client *redis.Client
}

var _ ports.CounterStore = (*Storage)(nil)

type Config struct {
	Addr     string
	Password string
	DB       int
}

func New(cfg Config) (*Storage, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Storage{client: client}, nil
}

// NewWithClient embrulha um cliente já construído (testes, pooling externo).
func NewWithClient(client *redis.Client) *Storage {
	return &Storage{client: client}
}

func (s *Storage) Close() error {
	return s.client.Close()
}

// CheckAndIncrement lê a penalidade, incrementa o contador e lê o TTL em um
// único MULTI/EXEC. Chamadores concorrentes da mesma chave observam valores
// serializados pelo próprio Redis.
func (s *Storage) CheckAndIncrement(ctx context.Context, counterKey, penaltyKey string) (ports.CounterSnapshot, error) {
	pipe := s.client.TxPipeline()
	penalty := pipe.Get(ctx, penaltyKey)
	counter := pipe.Incr(ctx, counterKey)
	ttl := pipe.TTL(ctx, counterKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return ports.CounterSnapshot{}, err
	}

	return ports.CounterSnapshot{
		Count:        counter.Val(),
		PenaltyLevel: coerceInt64(penalty),
		TTL:          ttl.Val(),
	}, nil
}

func (s *Storage) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	counter := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return counter.Val(), nil
}

func (s *Storage) IncrementPenalty(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

func (s *Storage) GetCount(ctx context.Context, key string) (int64, error) {
	cmd := s.client.Get(ctx, key)
	if err := cmd.Err(); err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	return coerceInt64(cmd), nil
}

func (s *Storage) Expire(ctx context.Context, ttl time.Duration, keys ...string) error {
	pipe := s.client.TxPipeline()
	for _, key := range keys {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Storage) SetBlock(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		// Entrada sem expiração: bloqueio sem prazo.
		return s.client.Set(ctx, key, "1", 0).Err()
	}
	return s.client.Set(ctx, key, "1", ttl).Err()
}

func (s *Storage) IsBlocked(ctx context.Context, key string) (bool, error) {
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

func (s *Storage) Delete(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

// coerceInt64 trata valores ausentes ou corrompidos como zero em vez de
// derrubar a checagem.
func coerceInt64(cmd *redis.StringCmd) int64 {
	v, err := cmd.Int64()
	if err != nil {
		return 0
	}
	return v
}
