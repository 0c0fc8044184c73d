package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/checkin-service/internal/config"
	"github.com/spec-kit/checkin-service/internal/events"
)

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTokenIssued, n.handleTokenIssued)
	n.dispatcher.Subscribe(events.EventTokenRedeemed, n.handleTokenRedeemed)
	n.dispatcher.Subscribe(events.EventScanRejected, n.handleScanRejected)
	n.dispatcher.Subscribe(events.EventAttendanceOverridden, n.handleAttendanceOverridden)
}

func (n *NotificationService) handleTokenIssued(ctx context.Context, event events.Event) error {
	n.logger.Info("TokenIssued", zap.String("player_id", event.PlayerID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTokenRedeemed(ctx context.Context, event events.Event) error {
	n.logger.Info("TokenRedeemed", zap.String("player_id", event.PlayerID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleScanRejected(ctx context.Context, event events.Event) error {
	n.logger.Info("ScanRejected", zap.String("player_id", event.PlayerID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleAttendanceOverridden(ctx context.Context, event events.Event) error {
	n.logger.Info("AttendanceOverridden", zap.String("player_id", event.PlayerID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("player_id", event.PlayerID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("player_id", event.PlayerID),
		zap.String("event_type", string(event.Type)))
}
