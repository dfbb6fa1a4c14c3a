package signal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Alias1177/HydraX/models"
)

// RedisMirror keeps the last N decisions per symbol in a Redis list
type RedisMirror struct {
	rdb       *redis.Client
	namespace string
	size      int64
}

// NewRedisMirror creates a mirror. Namespace defaults to "hydra:signals".
func NewRedisMirror(rdb *redis.Client, namespace string, size int) *RedisMirror {
	if namespace == "" {
		namespace = "hydra:signals"
	}
	if size <= 0 {
		size = DefaultLogSize
	}
	return &RedisMirror{rdb: rdb, namespace: namespace, size: int64(size)}
}

// Key returns the list key for a symbol
func (m *RedisMirror) Key(symbol string) string {
	return fmt.Sprintf("%s:%s", m.namespace, symbol)
}

// Push prepends the decision and trims the list to size; newest first
func (m *RedisMirror) Push(ctx context.Context, d models.SignalDecision) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}

	key := m.Key(d.Symbol)
	if err := m.rdb.LPush(ctx, key, payload).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", key, err)
	}
	if err := m.rdb.LTrim(ctx, key, 0, m.size-1).Err(); err != nil {
		return fmt.Errorf("ltrim %s: %w", key, err)
	}
	return nil
}

// Recent reads back up to limit decisions for a symbol, newest first
func (m *RedisMirror) Recent(ctx context.Context, symbol string, limit int64) ([]models.SignalDecision, error) {
	if limit <= 0 {
		limit = m.size
	}
	raw, err := m.rdb.LRange(ctx, m.Key(symbol), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange: %w", err)
	}

	out := make([]models.SignalDecision, 0, len(raw))
	for _, r := range raw {
		var d models.SignalDecision
		if err := json.Unmarshal([]byte(r), &d); err != nil {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}
