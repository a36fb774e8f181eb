package events

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	rediscommon "wisefido-shift/owl-common/redis"
)

// Recent returns the last count events of the stream, oldest first.
func Recent(ctx context.Context, client *redis.Client, stream string, count int64) ([]Event, error) {
	if stream == "" {
		stream = DefaultStream
	}
	msgs, err := rediscommon.ReadLatest(ctx, client, stream, count)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", stream, err)
	}

	out := make([]Event, 0, len(msgs))
	for _, msg := range msgs {
		ev, err := Decode(msg)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", msg.ID, err)
		}
		out = append(out, ev)
	}
	return out, nil
}
