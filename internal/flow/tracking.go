package flow

import (
	"context"
	"log/slog"

	"github.com/chowline/orderbot/internal/models"
)

// orderStatusMessages maps an order's lifecycle status to the line shown
// when the user asks where their order is.
var orderStatusMessages = map[models.RecordStatus]string{
	models.RecordStatusPending:   "Your order has been received and is awaiting confirmation.",
	models.RecordStatusConfirmed: "Your order is confirmed and being prepared for delivery.",
	models.RecordStatusInTransit: "Your order is on its way, it has been sent out.",
	models.RecordStatusDelivered: "Your order has been delivered.",
}

// trackLatestOrder looks up the user's most recent order and reports its
// status, then returns the session to the main menu. Tracking has no
// awaited state of its own.
func (e *Engine) trackLatestOrder(ctx context.Context, sess *models.Session) models.OutboundMessage {
	orders, err := e.records.ListOrders(sess.ID)
	if err != nil {
		slog.Error("Flow order tracking lookup failed", "session", sess.ID, "error", err)
		return e.backToMainMenu(ctx, sess,
			"⚠️ An error occurred while tracking your order. Please try again or contact support.\n\nWhat would you like to do next?")
	}
	if len(orders) == 0 {
		slog.Info("Flow order tracking found no orders", "session", sess.ID)
		return e.backToMainMenu(ctx, sess,
			"No orders found for your account. Would you like to place a new order or do something else?")
	}

	// ListOrders returns oldest first.
	latest := orders[len(orders)-1]
	statusLine, ok := orderStatusMessages[latest.Status]
	if !ok {
		slog.Warn("Flow order tracking unknown status", "session", sess.ID,
			"order", latest.ID, "status", latest.Status)
		return e.backToMainMenu(ctx, sess,
			"Unable to retrieve your order status at this time. Please contact support or try again later.\n\nWhat would you like to do next?")
	}

	slog.Info("Flow order tracking reported status", "session", sess.ID,
		"order", latest.ID, "status", latest.Status)
	return e.backToMainMenu(ctx, sess,
		"📍 Order Status for Order ID: "+latest.ID+"\n"+
			"Placed on: "+latest.Timestamp.Format("2006-01-02 15:04:05")+"\n\n"+
			statusLine+"\n\n"+
			"What would you like to do next?")
}
