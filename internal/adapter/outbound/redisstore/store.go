// Package redisstore persists the session slots in Redis so that several
// processes can share one named scope.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sentinel-Gate/sessionguard/internal/domain/session"
)

// DefaultPrefix is used when no key prefix is configured.
const DefaultPrefix = "sessionguard"

// SlotStore implements session.SlotStore with two Redis keys per scope:
// <prefix>:<scope>:authToken and <prefix>:<scope>:adminUser.
// Both keys are written and deleted inside one MULTI/EXEC transaction.
type SlotStore struct {
	client redis.UniversalClient
	prefix string
	scope  string
	ttl    time.Duration
}

// New creates a Redis slot store. A ttl of zero stores keys without expiry.
func New(client redis.UniversalClient, prefix, scope string, ttl time.Duration) *SlotStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if scope == "" {
		scope = "default"
	}
	return &SlotStore{
		client: client,
		prefix: prefix,
		scope:  scope,
		ttl:    ttl,
	}
}

// Load reads both keys with a single MGET.
func (s *SlotStore) Load(ctx context.Context) (session.Slots, error) {
	vals, err := s.client.MGet(ctx, s.credentialKey(), s.principalKey()).Result()
	if err != nil {
		return session.Slots{}, fmt.Errorf("redis load slots: %w", err)
	}

	var slots session.Slots
	if v, ok := vals[0].(string); ok {
		slots.Credential = v
	}
	if v, ok := vals[1].(string); ok && v != "" {
		slots.Principal = []byte(v)
	}
	return slots, nil
}

// Save writes both keys in one transaction.
func (s *SlotStore) Save(ctx context.Context, slots session.Slots) error {
	if !slots.Complete() {
		return session.ErrIncompleteSlots
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.credentialKey(), slots.Credential, s.ttl)
		pipe.Set(ctx, s.principalKey(), slots.Principal, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save slots: %w", err)
	}
	return nil
}

// Clear deletes both keys. Missing keys are not an error.
func (s *SlotStore) Clear(ctx context.Context) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.credentialKey(), s.principalKey())
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis clear slots: %w", err)
	}
	return nil
}

// Ping checks connectivity to the Redis server.
func (s *SlotStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *SlotStore) Close() error {
	return s.client.Close()
}

func (s *SlotStore) credentialKey() string {
	return s.prefix + ":" + s.scope + ":" + session.SlotCredential
}

func (s *SlotStore) principalKey() string {
	return s.prefix + ":" + s.scope + ":" + session.SlotPrincipal
}

// Compile-time interface verification.
var _ session.SlotStore = (*SlotStore)(nil)
