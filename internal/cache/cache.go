package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/feedback-portal/feedback-service/internal/domain"
)

// ErrMiss is returned when a key is absent or no client is configured.
var ErrMiss = errors.New("cache: miss")

const (
	officersPrefix   = "officers:"
	filterOptionsKey = "filters:options"
	revokedPrefix    = "revoked:"

	defaultOfficersTTL      = 5 * time.Minute
	defaultFilterOptionsTTL = 10 * time.Minute
)

// Store keeps read-mostly directory data and revoked token ids in Redis.
type Store struct {
	client           *redis.Client
	officersTTL      time.Duration
	filterOptionsTTL time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithOfficersTTL sets how long eligible officer lists live.
func WithOfficersTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.officersTTL = ttl
		}
	}
}

// WithFilterOptionsTTL sets how long filter options live.
func WithFilterOptionsTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.filterOptionsTTL = ttl
		}
	}
}

// NewStore wraps a go-redis client. A nil client yields a store that always
// misses.
func NewStore(client *redis.Client, opts ...Option) *Store {
	s := &Store{
		client:           client,
		officersTTL:      defaultOfficersTTL,
		filterOptionsTTL: defaultFilterOptionsTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func officersKey(branchCode string) string {
	return officersPrefix + branchCode
}

func (s *Store) enabled() bool {
	return s != nil && s.client != nil
}

// Officers returns the cached eligible officers of a branch.
func (s *Store) Officers(ctx context.Context, branchCode string) ([]domain.Officer, error) {
	var officers []domain.Officer
	if err := s.getJSON(ctx, officersKey(branchCode), &officers); err != nil {
		return nil, err
	}
	return officers, nil
}

// SetOfficers caches the eligible officers of a branch.
func (s *Store) SetOfficers(ctx context.Context, branchCode string, officers []domain.Officer) error {
	return s.setJSON(ctx, officersKey(branchCode), officers, s.officersTTL)
}

// FilterOptions returns the cached dashboard filter options.
func (s *Store) FilterOptions(ctx context.Context) (*domain.FilterOptions, error) {
	var options domain.FilterOptions
	if err := s.getJSON(ctx, filterOptionsKey, &options); err != nil {
		return nil, err
	}
	return &options, nil
}

// SetFilterOptions caches the dashboard filter options.
func (s *Store) SetFilterOptions(ctx context.Context, options *domain.FilterOptions) error {
	return s.setJSON(ctx, filterOptionsKey, options, s.filterOptionsTTL)
}

// InvalidateDirectory drops the filter options and the officer lists of the
// given branches. With no branches every officer list is dropped.
func (s *Store) InvalidateDirectory(ctx context.Context, branchCodes ...string) error {
	if !s.enabled() {
		return nil
	}

	keys := []string{filterOptionsKey}
	if len(branchCodes) == 0 {
		iter := s.client.Scan(ctx, 0, officersPrefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("redis scan failed: %w", err)
		}
	}
	for _, code := range branchCodes {
		if code != "" {
			keys = append(keys, officersKey(code))
		}
	}

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// RevokeToken marks a token id as revoked for the rest of its lifetime.
func (s *Store) RevokeToken(ctx context.Context, tokenID string, remaining time.Duration) error {
	if !s.enabled() {
		return nil
	}
	if remaining <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedPrefix+tokenID, "1", remaining).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// IsRevoked reports whether a token id was revoked.
func (s *Store) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if !s.enabled() {
		return false, nil
	}
	n, err := s.client.Exists(ctx, revokedPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists failed: %w", err)
	}
	return n > 0, nil
}

func (s *Store) getJSON(ctx context.Context, key string, dest any) error {
	if !s.enabled() {
		return ErrMiss
	}
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

func (s *Store) setJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !s.enabled() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
