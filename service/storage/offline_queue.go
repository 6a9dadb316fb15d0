package storage

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"estategate/service/gateway"
)

// OfflineQueue buffers notifications for identities with no live
// connection: one redis list per identity, LPUSH + LTRIM as a rolling
// window, drained FIFO from the tail.
type OfflineQueue struct {
	maxLen int64
}

func NewOfflineQueue(maxLen int64) *OfflineQueue {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &OfflineQueue{maxLen: maxLen}
}

func offlineKey(identityID string) string { return "gw:offline:" + identityID }

func (q *OfflineQueue) Enqueue(ctx context.Context, n gateway.Notification) error {
	if rdb == nil {
		return errors.New("redis not initialized")
	}
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	pipe := rdb.TxPipeline()
	pipe.LPush(ctx, offlineKey(n.IdentityID), b)
	pipe.LTrim(ctx, offlineKey(n.IdentityID), 0, q.maxLen-1)
	_, err = pipe.Exec(ctx)
	return err
}

// Drain pops up to n notifications in FIFO order and removes them from
// the queue.
func (q *OfflineQueue) Drain(ctx context.Context, identityID string, n int) ([]gateway.Notification, error) {
	if rdb == nil {
		return nil, errors.New("redis not initialized")
	}
	if n <= 0 {
		n = 100
	}

	key := offlineKey(identityID)
	llen, err := rdb.LLen(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if llen == 0 {
		return nil, nil
	}
	if int64(n) > llen {
		n = int(llen)
	}

	// oldest entries sit at the tail
	start := llen - int64(n)
	vals, err := rdb.LRange(ctx, key, start, llen-1).Result()
	if err != nil {
		return nil, err
	}
	if err := rdb.LTrim(ctx, key, 0, start-1).Err(); err != nil {
		return nil, err
	}

	out := make([]gateway.Notification, 0, len(vals))
	for i := len(vals) - 1; i >= 0; i-- {
		var m gateway.Notification
		if err := json.Unmarshal([]byte(vals[i]), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
