package eventlog

import (
	"context"

	rediscommon "wisefido-carehub/common/redis"
	"wisefido-carehub/internal/models"

	"github.com/go-redis/redis/v8"
)

// StreamSink 将事件发布到 Redis Streams，供下游服务消费
type StreamSink struct {
	client *redis.Client
	stream string
}

func NewStreamSink(client *redis.Client, stream string) *StreamSink {
	return &StreamSink{client: client, stream: stream}
}

func (s *StreamSink) Record(ctx context.Context, entry models.AlertEntry) error {
	_, err := rediscommon.PublishJSONToStream(ctx, s.client, s.stream, entry)
	return err
}
