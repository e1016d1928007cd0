package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mahawthada/legal-assistant/internal/types"
)

const historyKeyPrefix = "legal-assistant:history:"

// HistoryCache keeps each user's conversation list as JSON.
type HistoryCache struct {
	client *Client
	ttl    time.Duration
}

// NewHistoryCache returns a cache whose entries expire after ttl.
func NewHistoryCache(client *Client, ttl time.Duration) *HistoryCache {
	return &HistoryCache{client: client, ttl: ttl}
}

func historyKey(userID int64) string {
	return historyKeyPrefix + strconv.FormatInt(userID, 10)
}

// Get returns the cached history and whether there was one.
func (h *HistoryCache) Get(ctx context.Context, userID int64) ([]types.Conversation, bool, error) {
	data, err := h.client.Get(ctx, historyKey(userID))
	if errors.Is(err, ErrMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get history: %w", err)
	}

	var history []types.Conversation
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, false, fmt.Errorf("decode history: %w", err)
	}
	return history, true, nil
}

// Set replaces the cached history.
func (h *HistoryCache) Set(ctx context.Context, userID int64, history []types.Conversation) error {
	if history == nil {
		history = []types.Conversation{}
	}
	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := h.client.Set(ctx, historyKey(userID), data, h.ttl); err != nil {
		return fmt.Errorf("set history: %w", err)
	}
	return nil
}

// Invalidate drops the cached history.
func (h *HistoryCache) Invalidate(ctx context.Context, userID int64) error {
	return h.client.Delete(ctx, historyKey(userID))
}
