package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"estategate/service/gateway"
)

// RecentCache keeps a capped redis stream of delivered messages per
// conversation so reconnecting clients can re-fetch a tail without
// hitting the primary store.
type RecentCache struct {
	maxLen int64
}

func NewRecentCache(maxLen int64) *RecentCache {
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &RecentCache{maxLen: maxLen}
}

func recentKey(conversationID string) string { return "gw:conv:" + conversationID + ":recent" }

func (c *RecentCache) Append(ctx context.Context, m gateway.Message) error {
	if rdb == nil {
		return errors.New("redis not initialized")
	}
	args := &redis.XAddArgs{
		Stream: recentKey(m.ConversationID),
		Approx: true,
		MaxLen: c.maxLen,
		Values: map[string]any{
			"id":        m.ID,
			"sender_id": m.SenderID,
			"body":      m.Body,
			"ts":        m.CreatedAt.UnixMilli(),
		},
	}
	return rdb.XAdd(ctx, args).Err()
}

// Tail returns up to n most recent messages, oldest first.
func (c *RecentCache) Tail(ctx context.Context, conversationID string, n int) ([]gateway.Message, error) {
	if rdb == nil {
		return nil, errors.New("redis not initialized")
	}
	if n <= 0 {
		n = 50
	}
	entries, err := rdb.XRevRangeN(ctx, recentKey(conversationID), "+", "-", int64(n)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]gateway.Message, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entryToMessage(conversationID, entries[i]))
	}
	return out, nil
}

func entryToMessage(conversationID string, e redis.XMessage) gateway.Message {
	m := gateway.Message{ConversationID: conversationID}
	if v, ok := e.Values["id"].(string); ok {
		m.ID = v
	}
	if v, ok := e.Values["sender_id"].(string); ok {
		m.SenderID = v
	}
	if v, ok := e.Values["body"].(string); ok {
		m.Body = v
	}
	if v, ok := e.Values["ts"].(string); ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			m.CreatedAt = time.UnixMilli(ms)
		}
	}
	return m
}
