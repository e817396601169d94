package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/repository"
)

// NotificationService persists notifications and fans them out over a
// per-user redis channel. Persistence is the source of truth; the redis
// publish is fire-and-forget and its failure never surfaces to callers.
type NotificationService struct {
	notifications repository.NotificationRepository
	redis         *persistence.Redis
	prefix        string
	timeout       time.Duration
	logger        *zap.Logger
}

// NotificationDependencies bundles notification service wiring.
type NotificationDependencies struct {
	NotificationRepo repository.NotificationRepository
	Redis            *persistence.Redis
	Config           config.NotificationConfig
	Logger           *zap.Logger
}

// NewNotificationService constructs the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	return &NotificationService{
		notifications: deps.NotificationRepo,
		redis:         deps.Redis,
		prefix:        deps.Config.ChannelPrefix,
		timeout:       deps.Config.PublishTimeout,
		logger:        deps.Logger,
	}
}

type notificationPayload struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Message  string  `json:"message"`
	Category string  `json:"category"`
	TicketID *string `json:"ticket_id,omitempty"`
	SentAt   string  `json:"sent_at"`
}

// Notify stores one notification row and publishes it to the user's
// channel. Only the store failure is returned; a dead redis costs the
// live push, not the notification.
func (s *NotificationService) Notify(ctx context.Context, userID, title, message string, category domain.NotificationCategory, ticketID *string) error {
	notification := &domain.Notification{
		UserID:   userID,
		Title:    title,
		Message:  message,
		Category: category,
		TicketID: ticketID,
	}
	if err := s.notifications.Create(ctx, notification); err != nil {
		return err
	}
	s.publish(notification)
	return nil
}

// ListForUser returns the user's most recent notifications.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	return s.notifications.ListByUser(ctx, userID, limit)
}

func (s *NotificationService) publish(notification *domain.Notification) {
	client := s.redis.ClientHandle()
	if client == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("notification publish panicked", zap.Any("panic", r))
		}
	}()

	payload, err := json.Marshal(notificationPayload{
		ID:       notification.ID,
		Title:    notification.Title,
		Message:  notification.Message,
		Category: string(notification.Category),
		TicketID: notification.TicketID,
		SentAt:   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.logger.Error("notification payload marshal failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	channel := s.prefix + ":" + notification.UserID
	if err := client.Publish(ctx, channel, payload).Err(); err != nil {
		s.logger.Warn("notification publish failed",
			zap.String("channel", channel),
			zap.Error(err))
	}
}
