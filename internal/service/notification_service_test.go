package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository/memory"
)

func TestNotifyPersistsWithoutRedis(t *testing.T) {
	store := memory.NewStore()
	svc := NewNotificationService(NotificationDependencies{
		NotificationRepo: store.Notifications(),
		Redis:            nil, // fan-out unavailable, persistence still works
		Config:           config.NotificationConfig{ChannelPrefix: "notifications", PublishTimeout: 100 * time.Millisecond},
		Logger:           zap.NewNop(),
	})

	ticketID := "t-1"
	err := svc.Notify(context.Background(), "u-1", "Ticket TCK-1 received", "hello", domain.NotifyTicketUpdate, &ticketID)
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	stored, err := svc.ListForUser(context.Background(), "u-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected one stored notification, got %d", len(stored))
	}
	if stored[0].Category != domain.NotifyTicketUpdate || stored[0].TicketID == nil {
		t.Fatalf("unexpected notification %+v", stored[0])
	}
	if stored[0].IsRead {
		t.Fatal("new notifications start unread")
	}
}
