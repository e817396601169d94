package automation

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
)

func newIdleScanner(f *engineFixture, threshold time.Duration) *IdleScanner {
	return NewIdleScanner(f.store.Tickets(), f.store.Rules(), f.engine, threshold, 100, zap.NewNop())
}

func seedIdleTicket(t *testing.T, f *engineFixture, id string, age time.Duration) {
	t.Helper()
	past := time.Now().UTC().Add(-age)
	f.store.SetClock(func() time.Time { return past })
	ticket := openTicket()
	ticket.ID = id
	ticket.TicketKey = "TCK-" + id
	if err := f.store.Tickets().Create(context.Background(), ticket); err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
	f.store.SetClock(time.Now)
}

func TestIdleScanSkipsWithoutRules(t *testing.T) {
	f := newEngineFixture(t)
	seedIdleTicket(t, f, "stale", 48*time.Hour)

	processed, err := newIdleScanner(f, 24*time.Hour).Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if processed != 0 {
		t.Fatalf("scan without active idle rules must process nothing, got %d", processed)
	}
}

func TestIdleScanProcessesStaleTickets(t *testing.T) {
	f := newEngineFixture(t)
	f.addRule(t, &domain.AutomationRule{
		Name:         "escalate idle",
		TriggerEvent: domain.TriggerTicketIdle,
		ActionType:   domain.ActionEscalate,
	})
	seedIdleTicket(t, f, "stale", 48*time.Hour)
	seedIdleTicket(t, f, "fresh", time.Hour)

	processed, err := newIdleScanner(f, 24*time.Hour).Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if processed != 1 {
		t.Fatalf("only tickets past the threshold qualify, processed %d", processed)
	}

	entries := f.logs(t, "stale")
	if len(entries) != 1 || entries[0].Outcome != domain.OutcomeSuccess {
		t.Fatalf("stale ticket must get one successful execution, got %+v", entries)
	}
	if fresh := f.logs(t, "fresh"); len(fresh) != 0 {
		t.Fatalf("fresh ticket must be untouched, got %d entries", len(fresh))
	}
}

func TestIdleScanIgnoresTerminalTickets(t *testing.T) {
	f := newEngineFixture(t)
	f.addRule(t, &domain.AutomationRule{
		Name:         "escalate idle",
		TriggerEvent: domain.TriggerTicketIdle,
		ActionType:   domain.ActionEscalate,
	})

	past := time.Now().UTC().Add(-72 * time.Hour)
	f.store.SetClock(func() time.Time { return past })
	ticket := openTicket()
	ticket.ID = "resolved"
	ticket.Status = domain.TicketStatusResolved
	if err := f.store.Tickets().Create(context.Background(), ticket); err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
	f.store.SetClock(time.Now)

	processed, err := newIdleScanner(f, 24*time.Hour).Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if processed != 0 {
		t.Fatalf("resolved tickets are never idle candidates, processed %d", processed)
	}
}
