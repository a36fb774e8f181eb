package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"wisefido-shift/internal/domain"
	rediscommon "wisefido-shift/owl-common/redis"
)

// StreamPublisher appends events to a capped Redis stream.
//
// Entry fields:
//   - event_id: uuid
//   - event_type: shift.punched_in | shift.punched_out | reminder.sent
//   - owner_id, record_id
//   - occurred_at: RFC3339Nano
//   - record: JSON of the persisted record shape
type StreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

func NewStreamPublisher(client *redis.Client, stream string, maxLen int64, loc *time.Location, logger *zap.Logger) *StreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	if loc == nil {
		loc = time.UTC
	}
	return &StreamPublisher{
		client: client,
		stream: stream,
		maxLen: maxLen,
		loc:    loc,
		now:    time.Now,
		logger: logger,
	}
}

func (p *StreamPublisher) Publish(ctx context.Context, t Type, rec *domain.AttendanceRecord) error {
	view := rec.View(p.loc)
	body, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	values := map[string]interface{}{
		"event_id":    uuid.NewString(),
		"event_type":  string(t),
		"owner_id":    rec.OwnerID,
		"record_id":   rec.ID,
		"occurred_at": p.now().UTC().Format(time.RFC3339Nano),
		"record":      string(body),
	}

	id, err := rediscommon.PublishToStream(ctx, p.client, p.stream, p.maxLen, values)
	if err != nil {
		return fmt.Errorf("publish %s: %w", t, err)
	}
	p.logger.Debug("Published shift event",
		zap.String("stream", p.stream),
		zap.String("message_id", id),
		zap.String("event_type", string(t)),
		zap.Int64("record_id", rec.ID),
	)
	return nil
}

// Decode turns a stream entry back into an Event.
func Decode(msg rediscommon.StreamMessage) (Event, error) {
	var ev Event
	ev.ID = field(msg, "event_id")
	ev.Type = Type(field(msg, "event_type"))
	if ts := field(msg, "occurred_at"); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return ev, fmt.Errorf("parse occurred_at: %w", err)
		}
		ev.OccurredAt = t
	}
	if err := json.Unmarshal([]byte(field(msg, "record")), &ev.Record); err != nil {
		return ev, fmt.Errorf("decode record: %w", err)
	}
	return ev, nil
}

func field(msg rediscommon.StreamMessage, key string) string {
	s, _ := msg.Values[key].(string)
	return s
}
