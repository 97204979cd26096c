package flow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/chowline/orderbot/internal/models"
	"github.com/chowline/orderbot/internal/store"
)

func saveTrackingOrder(t *testing.T, records store.Store, id, owner string, status models.RecordStatus, at time.Time) {
	t.Helper()
	if err := records.SaveOrder(models.OrderRecord{
		ID:          id,
		OwnerKey:    owner,
		Items:       []models.OrderItem{{Name: "Jollof Rice", Quantity: 1, UnitPrice: 1500}},
		TotalAmount: 2150,
		Status:      status,
		Timestamp:   at,
	}); err != nil {
		t.Fatalf("SaveOrder(%s) error = %v", id, err)
	}
}

func TestTrackOrderNoOrders(t *testing.T) {
	env := newTestEnv(nil)
	sess := env.newSession("u1")
	sess.Transition(models.HandlerGreeting, models.StateGreeting)

	msg := env.engine.handleGreeting(context.Background(), sess, textInput("track my order"))

	if !strings.Contains(msg.Body, "No orders found") {
		t.Errorf("reply = %q, want no-orders message", msg.Body)
	}
	if sess.CurrentState != models.StateGreeting {
		t.Errorf("state = %s, want return to main menu", sess.CurrentState)
	}
	if len(msg.Buttons) != 3 {
		t.Errorf("buttons = %d, want main menu options", len(msg.Buttons))
	}
}

func TestTrackOrderReportsLatestStatus(t *testing.T) {
	env := newTestEnv(nil)
	saveTrackingOrder(t, env.records, "ORD-OLD", "u1", models.RecordStatusDelivered, testClock.Add(-time.Hour))
	saveTrackingOrder(t, env.records, "ORD-NEW", "u1", models.RecordStatusInTransit, testClock)

	sess := env.newSession("u1")
	sess.Transition(models.HandlerGreeting, models.StateGreeting)
	msg := env.engine.handleGreeting(context.Background(), sess, textInput("status"))

	if !strings.Contains(msg.Body, "ORD-NEW") {
		t.Errorf("reply = %q, want most recent order id", msg.Body)
	}
	if !strings.Contains(msg.Body, "on its way") {
		t.Errorf("reply = %q, want in-transit status line", msg.Body)
	}
	if sess.CurrentState != models.StateGreeting {
		t.Errorf("state = %s, want return to main menu", sess.CurrentState)
	}
}

func TestTrackOrderStatusLines(t *testing.T) {
	tests := []struct {
		status models.RecordStatus
		want   string
	}{
		{models.RecordStatusPending, "awaiting confirmation"},
		{models.RecordStatusConfirmed, "being prepared"},
		{models.RecordStatusInTransit, "on its way"},
		{models.RecordStatusDelivered, "has been delivered"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			env := newTestEnv(nil)
			saveTrackingOrder(t, env.records, "ORD-1", "u1", tt.status, testClock)

			sess := env.newSession("u1")
			sess.Transition(models.HandlerGreeting, models.StateGreeting)
			msg := env.engine.handleGreeting(context.Background(), sess, textInput("track"))

			if !strings.Contains(msg.Body, tt.want) {
				t.Errorf("reply = %q, want %q", msg.Body, tt.want)
			}
		})
	}
}

func TestTrackOrderUnknownStatus(t *testing.T) {
	env := newTestEnv(nil)
	saveTrackingOrder(t, env.records, "ORD-1", "u1", models.RecordStatusSkipped, testClock)

	sess := env.newSession("u1")
	sess.Transition(models.HandlerGreeting, models.StateGreeting)
	msg := env.engine.handleGreeting(context.Background(), sess, textInput("track"))

	if !strings.Contains(msg.Body, "Unable to retrieve your order status") {
		t.Errorf("reply = %q, want unknown-status fallback", msg.Body)
	}
	if sess.CurrentState != models.StateGreeting {
		t.Errorf("state = %s, want return to main menu", sess.CurrentState)
	}
}

func TestTrackOrderScopedToOwner(t *testing.T) {
	env := newTestEnv(nil)
	saveTrackingOrder(t, env.records, "ORD-OTHER", "u2", models.RecordStatusDelivered, testClock)

	sess := env.newSession("u1")
	sess.Transition(models.HandlerGreeting, models.StateGreeting)
	msg := env.engine.handleGreeting(context.Background(), sess, textInput("track order"))

	if !strings.Contains(msg.Body, "No orders found") {
		t.Errorf("reply = %q, want no-orders message for other owner's orders", msg.Body)
	}
}
