package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-desk/internal/config"
	"github.com/spec-kit/ticket-desk/internal/events"
)

// NotificationService relays domain events to Redis pub/sub so the browser UI
// can live-update without polling.
type NotificationService struct {
	dispatcher events.Dispatcher
	redis      *redis.Client
	logger     *zap.Logger
	cfg        config.EventsConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, redisClient *redis.Client, logger *zap.Logger, cfg config.EventsConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		redis:      redisClient,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to every event type.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.Types() {
		n.dispatcher.Subscribe(eventType, n.relay)
	}
}

func (n *NotificationService) relay(ctx context.Context, event events.Event) error {
	n.logger.Info("event",
		zap.String("type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.String("actor", event.Actor))

	if n.redis == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("marshal event", zap.Error(err))
		return err
	}
	if err := n.redis.Publish(ctx, n.cfg.RedisChannel, payload).Err(); err != nil {
		n.logger.Warn("publish event to redis", zap.Error(err))
		return err
	}
	return nil
}
