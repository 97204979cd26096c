package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/chowline/orderbot/internal/models"
	"github.com/chowline/orderbot/internal/util"
)

// Order charge constants.
const (
	// DeliveryFee is the flat delivery charge in naira.
	DeliveryFee = 500.00
	// ServiceChargeRate is the service charge as a fraction of the subtotal.
	ServiceChargeRate = 0.10
)

// Order flow option ids.
const (
	optionCheckout     = "checkout"
	optionOrderMore    = "order_more"
	optionAddNote      = "add_note"
	optionProceed      = "proceed_to_confirmation"
	optionFinalConfirm = "final_confirm"
	optionUpdateAddr   = "update_address"
	optionCancelOrder  = "cancel_order"
)

// formatCart renders the cart lines and total.
func formatCart(cart models.Cart) string {
	if cart.IsEmpty() {
		return "Your cart is empty."
	}
	var b strings.Builder
	b.WriteString("🛒 *Your Cart:*\n")
	for _, item := range cart {
		fmt.Fprintf(&b, "• %dx %s - ₦%.2f\n", item.Quantity, item.Name, float64(item.Quantity)*item.UnitPrice)
	}
	fmt.Fprintf(&b, "\nSubtotal: ₦%.2f", cart.Total())
	return b.String()
}

// orderSummaryMessage builds the standard order summary prompt.
func (e *Engine) orderSummaryMessage(sess *models.Session) models.OutboundMessage {
	body := formatCart(sess.Cart) + "\n\nWhat would you like to do next?\n\n" +
		"Press 'Checkout' to finalize.\n" +
		"Press 'Order More' to add more items.\n" +
		"Press 'Add Note' to add a note to your order.\n" +
		"Or, type 'remove' to remove an item, or 'cancel' to cancel your order."
	return models.ButtonMessage(sess.ID, body,
		models.Button{ID: optionCheckout, Title: "Checkout"},
		models.Button{ID: optionOrderMore, Title: "Order More"},
		models.Button{ID: optionAddNote, Title: "Add Note"},
	)
}

// handleQuantity captures the quantity for the selected item and adds it to
// the cart.
func (e *Engine) handleQuantity(ctx context.Context, sess *models.Session, in Input) models.OutboundMessage {
	quantity, err := strconv.Atoi(in.Text)
	if err != nil || quantity <= 0 {
		return models.TextMessage(sess.ID, "Please enter a number greater than zero.")
	}

	if sess.MenuFlow == nil || sess.MenuFlow.SelectedItem == "" {
		slog.Warn("Flow quantity without selected item", "session", sess.ID)
		return e.enterMenu(ctx, sess, in)
	}

	item, ok := e.catalog.FindItem(sess.MenuFlow.SelectedCategory, sess.MenuFlow.SelectedItem)
	if !ok {
		sess.Transition(models.HandlerMenu, models.StateMenu)
		return models.TextMessage(sess.ID,
			"The selected item is no longer available. Please choose from the menu again.")
	}

	sess.Cart = sess.Cart.Add(item.Name, quantity, item.Price)
	sess.MenuFlow.SelectedItem = ""
	sess.MenuFlow.SelectedPrice = 0
	sess.Transition(models.HandlerOrder, models.StateOrderSummary)
	slog.Info("Flow cart item added", "session", sess.ID, "item", item.Name, "quantity", quantity)

	return e.orderSummaryMessage(sess)
}

// handleOrderSummary handles the order summary actions.
func (e *Engine) handleOrderSummary(ctx context.Context, sess *models.Session, in Input) models.OutboundMessage {
	switch matchOption(in.Text, optionCheckout, optionOrderMore, optionAddNote) {
	case optionCheckout:
		return e.startCheckout(ctx, sess, in)
	case optionOrderMore:
		return e.enterMoreItems(ctx, sess, in)
	case optionAddNote:
		sess.Transition(models.HandlerOrder, models.StateAddNote)
		return models.TextMessage(sess.ID,
			"Please type your note for the order (e.g., 'Please deliver after 5 PM'). Type 'back' to return to the order summary.")
	}

	switch in.Text {
	case "remove":
		if sess.Cart.IsEmpty() {
			return models.TextMessage(sess.ID, "Your cart is empty. Nothing to remove!")
		}
		sess.Transition(models.HandlerOrder, models.StateRemoveItemSelection)
		var b strings.Builder
		b.WriteString("Which item would you like to remove?\n\n")
		for i, item := range sess.Cart {
			fmt.Fprintf(&b, "%d. %s\n", i+1, item.Name)
		}
		b.WriteString("\nReply with a number or the exact item name. Type 'back' to go back to the order summary.")
		return models.TextMessage(sess.ID, b.String())
	case "cancel":
		sess.Cart = nil
		return e.backToMainMenu(ctx, sess, "Your order has been cancelled. How can I help you today?")
	case "note":
		sess.Transition(models.HandlerOrder, models.StateAddNote)
		return models.TextMessage(sess.ID,
			"Please type your note for the order (e.g., 'Please deliver after 5 PM'). Type 'back' to return to the order summary.")
	}

	return models.TextMessage(sess.ID,
		"Please select 'Checkout', 'Order More', 'Add Note', or type 'remove' or 'cancel'.")
}

// enterMoreItems returns to category browsing while keeping the cart.
func (e *Engine) enterMoreItems(ctx context.Context, sess *models.Session, in Input) models.OutboundMessage {
	cart := sess.Cart
	msg := e.enterMenu(ctx, sess, in)
	sess.Cart = cart
	return msg
}

// handleRemoveItemSelection removes the chosen cart line.
func (e *Engine) handleRemoveItemSelection(ctx context.Context, sess *models.Session, in Input) models.OutboundMessage {
	if in.Text == "back" {
		sess.Transition(models.HandlerOrder, models.StateOrderSummary)
		return e.orderSummaryMessage(sess)
	}

	index := -1
	if n, err := strconv.Atoi(in.Text); err == nil && n >= 1 && n <= len(sess.Cart) {
		index = n - 1
	} else {
		for i, item := range sess.Cart {
			if strings.EqualFold(item.Name, strings.TrimSpace(in.Original)) {
				index = i
				break
			}
		}
	}

	if index < 0 {
		return models.TextMessage(sess.ID, fmt.Sprintf(
			"❌ '%s' is not in your cart. Reply with a number or the exact item name, or 'back' to return.",
			strings.TrimSpace(in.Original)))
	}

	removed := sess.Cart[index].Name
	sess.Cart = sess.Cart.RemoveAt(index)
	slog.Info("Flow cart item removed", "session", sess.ID, "item", removed)

	if sess.Cart.IsEmpty() {
		return e.backToMainMenu(ctx, sess, fmt.Sprintf(
			"'%s' has been removed. Your cart is now empty. What would you like to do next?", removed))
	}

	sess.Transition(models.HandlerOrder, models.StateOrderSummary)
	msg := e.orderSummaryMessage(sess)
	msg.Body = fmt.Sprintf("'%s' has been removed.\n\n%s", removed, msg.Body)
	return msg
}

// startCheckout moves toward confirmation, collecting a delivery address
// first when none is saved.
func (e *Engine) startCheckout(ctx context.Context, sess *models.Session, in Input) models.OutboundMessage {
	if sess.Cart.IsEmpty() {
		return e.backToMainMenu(ctx, sess, "It looks like your cart is empty. Let's start fresh. How can I help you today?")
	}
	if sess.Address == "" {
		slog.Info("Flow checkout needs address", "session", sess.ID)
		return e.enterAddressFlow(ctx, sess, false)
	}
	return e.promptAddNote(sess)
}

// promptAddNote asks whether to attach a note before final confirmation.
func (e *Engine) promptAddNote(sess *models.Session) models.OutboundMessage {
	sess.Transition(models.HandlerOrder, models.StatePromptAddNote)
	return models.ButtonMessage(sess.ID,
		"Would you like to add a note to your order (e.g., 'Please deliver after 5 PM')?",
		models.Button{ID: optionAddNote, Title: "📝 Yes"},
		models.Button{ID: optionProceed, Title: "❌ No"},
	)
}

// handlePromptAddNote handles the yes/no note prompt.
func (e *Engine) handlePromptAddNote(ctx context.Context, sess *models.Session, in Input) models.OutboundMessage {
	switch matchOption(in.Text, optionAddNote, optionProceed) {
	case optionAddNote:
		sess.Transition(models.HandlerOrder, models.StateAddNote)
		return models.TextMessage(sess.ID,
			"Please type your note for the order (e.g., 'Please deliver after 5 PM'). Type 'back' to skip adding a note.")
	case optionProceed:
		return e.showOrderConfirmation(ctx, sess)
	}
	return models.ButtonMessage(sess.ID,
		"I didn't understand that. Would you like to add a note to your order?",
		models.Button{ID: optionAddNote, Title: "📝 Yes"},
		models.Button{ID: optionProceed, Title: "❌ No"},
	)
}

// handleAddNote captures the order note.
func (e *Engine) handleAddNote(ctx context.Context, sess *models.Session, in Input) models.OutboundMessage {
	if in.Text == "back" {
		if sess.PreviousState == models.StateOrderSummary {
			sess.Transition(models.HandlerOrder, models.StateOrderSummary)
			return e.orderSummaryMessage(sess)
		}
		return e.showOrderConfirmation(ctx, sess)
	}

	if sess.MenuFlow == nil {
		sess.MenuFlow = &models.MenuData{}
	}
	sess.MenuFlow.Note = strings.TrimSpace(in.Original)
	slog.Info("Flow order note added", "session", sess.ID)
	return e.showOrderConfirmation(ctx, sess)
}

// showOrderConfirmation renders the final order confirmation with the cart
// summary, delivery details, and cost breakdown.
func (e *Engine) showOrderConfirmation(ctx context.Context, sess *models.Session) models.OutboundMessage {
	if sess.Cart.IsEmpty() {
		return e.backToMainMenu(ctx, sess,
			"Your cart is empty. Please add items before confirming an order.")
	}

	sess.Transition(models.HandlerOrder, models.StateConfirmOrder)

	subtotal := sess.Cart.Total()
	charges := DeliveryFee + subtotal*ServiceChargeRate
	total := subtotal + charges

	note := "None"
	if sess.MenuFlow != nil && sess.MenuFlow.Note != "" {
		note = sess.MenuFlow.Note
	}

	var b strings.Builder
	b.WriteString("🛒 *Final Order Confirmation*\n\n📋 *Items Ordered:*\n")
	for _, item := range sess.Cart {
		fmt.Fprintf(&b, "• %dx %s - ₦%.2f\n", item.Quantity, item.Name, float64(item.Quantity)*item.UnitPrice)
	}
	b.WriteString("\n📍 *Delivery Details:*\n")
	fmt.Fprintf(&b, "👤 Name: %s\n", sess.DisplayName())
	fmt.Fprintf(&b, "📱 Phone: %s\n", sess.ID)
	fmt.Fprintf(&b, "🏠 Address: %s\n", sess.Address)
	if sess.MapLink != "" {
		fmt.Fprintf(&b, "🗺️ Map: %s\n", sess.MapLink)
	}
	fmt.Fprintf(&b, "📝 Note: %s\n", note)
	b.WriteString("\n💰 *Cost Breakdown:*\n")
	fmt.Fprintf(&b, "Subtotal: ₦%.2f\n", subtotal)
	fmt.Fprintf(&b, "Charges: ₦%.2f\n", charges)
	fmt.Fprintf(&b, "Total Amount: ₦%.2f\n\n", total)
	b.WriteString("Please confirm your order or update your delivery address.")

	return models.ButtonMessage(sess.ID, b.String(),
		models.Button{ID: optionFinalConfirm, Title: "✅ Confirm"},
		models.Button{ID: optionUpdateAddr, Title: "📍 Update Address"},
		models.Button{ID: optionCancelOrder, Title: "❌ Cancel Order"},
	)
}

// handleConfirmOrder handles the final confirmation actions.
func (e *Engine) handleConfirmOrder(ctx context.Context, sess *models.Session, in Input) models.OutboundMessage {
	switch matchOption(in.Text, optionFinalConfirm, optionUpdateAddr, optionCancelOrder) {
	case optionFinalConfirm:
		return e.completeOrder(ctx, sess)
	case optionUpdateAddr:
		return e.enterAddressFlow(ctx, sess, true)
	case optionCancelOrder:
		sess.Cart = nil
		return e.backToMainMenu(ctx, sess, "Your order has been cancelled. How can I help you today?")
	}
	return e.showOrderConfirmation(ctx, sess)
}

// completeOrder persists the order and hands the session to the feedback
// flow.
func (e *Engine) completeOrder(ctx context.Context, sess *models.Session) models.OutboundMessage {
	if sess.Cart.IsEmpty() {
		return e.backToMainMenu(ctx, sess,
			"Your cart is empty. Please add items before confirming an order.")
	}

	now := e.now()
	subtotal := sess.Cart.Total()
	total := subtotal + DeliveryFee + subtotal*ServiceChargeRate

	items := make([]models.OrderItem, 0, len(sess.Cart))
	for _, line := range sess.Cart {
		items = append(items, models.OrderItem{Name: line.Name, Quantity: line.Quantity, UnitPrice: line.UnitPrice})
	}

	order := models.OrderRecord{
		ID:               util.GenerateOrderID(now),
		OwnerKey:         sess.ID,
		UserName:         sess.DisplayName(),
		Address:          sess.Address,
		Note:             "",
		Items:            items,
		TotalAmount:      total,
		PaymentReference: "TEMP-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		Status:           models.RecordStatusPending,
		Timestamp:        now,
	}
	if sess.MenuFlow != nil {
		order.Note = sess.MenuFlow.Note
	}
	if sess.Coordinates != nil {
		lat, lon := sess.Coordinates.Latitude, sess.Coordinates.Longitude
		order.Latitude = &lat
		order.Longitude = &lon
	}

	if err := e.records.SaveOrder(order); err != nil {
		slog.Error("Flow order save failed", "session", sess.ID, "order", order.ID, "error", err)
		return models.TextMessage(sess.ID,
			"❌ Sorry, there was an error processing your order. Please try again or contact support.")
	}
	slog.Info("Flow order saved", "session", sess.ID, "order", order.ID, "total", total)

	profile := models.UserProfile{
		OwnerKey:      sess.ID,
		Name:          sess.UserName,
		PreferredName: sess.PreferredName,
		Address:       sess.Address,
		MapLink:       sess.MapLink,
		UpdatedAt:     now,
	}
	if sess.Coordinates != nil {
		lat, lon := sess.Coordinates.Latitude, sess.Coordinates.Longitude
		profile.Latitude = &lat
		profile.Longitude = &lon
	}
	if err := e.records.UpsertUserProfile(profile); err != nil {
		slog.Error("Flow order profile upsert failed", "session", sess.ID, "error", err)
	}

	sess.Cart = nil
	sess.ClearFlowData()

	return e.initiateFeedback(ctx, sess, order.ID)
}
