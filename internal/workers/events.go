package workers

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// EventPublisher пишет события в Redis-стрим, который читают чат-бот и
// телеграм-бот. Бэкенд только публикует; доставкой занимаются боты.
type EventPublisher struct {
	rdb       *redis.Client
	streamKey string
	log       zerolog.Logger
}

func NewEventPublisher(rdb *redis.Client, streamKey string, log zerolog.Logger) *EventPublisher {
	return &EventPublisher{rdb: rdb, streamKey: streamKey, log: log}
}

// Announce queues a public chat message for the channel.
func (p *EventPublisher) Announce(ctx context.Context, channel, message string) error {
	return p.publish(ctx, map[string]any{
		"type":    "announce",
		"channel": channel,
		"message": message,
	})
}

// Notify queues a private message for a linked account.
func (p *EventPublisher) Notify(ctx context.Context, accountID int64, message string) error {
	return p.publish(ctx, map[string]any{
		"type":       "notify",
		"account_id": strconv.FormatInt(accountID, 10),
		"message":    message,
	})
}

func (p *EventPublisher) publish(ctx context.Context, values map[string]any) error {
	id, err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.streamKey,
		Values: values,
	}).Result()
	if err != nil {
		return err
	}
	p.log.Debug().Str("stream", p.streamKey).Str("id", id).Interface("event", values["type"]).Msg("event published")
	return nil
}
