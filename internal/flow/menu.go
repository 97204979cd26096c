package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/chowline/orderbot/internal/models"
)

// enterMenu shows the menu categories and moves the session into the menu
// flow. Categories render as a numbered list because their count exceeds
// the channel's button limit.
func (e *Engine) enterMenu(ctx context.Context, sess *models.Session, _ Input) models.OutboundMessage {
	categories := e.catalog.Categories()
	if len(categories) == 0 {
		slog.Warn("Flow menu has no categories", "session", sess.ID)
		return e.backToMainMenu(ctx, sess, "Sorry, the menu is currently unavailable. Please try again later.")
	}

	sess.ClearFlowData()
	sess.MenuFlow = &models.MenuData{}
	sess.Transition(models.HandlerMenu, models.StateMenu)

	var b strings.Builder
	b.WriteString("🍽️ *Our Menu*\n\nChoose a category to browse items:\n\n")
	for i, cat := range categories {
		fmt.Fprintf(&b, "%d. %s\n", i+1, cat.Name)
	}
	b.WriteString("\nReply with a number or the category name. Type 'menu' to return to the main menu.")
	return models.TextMessage(sess.ID, b.String())
}

// handleMenu handles category selection. The router's global menu command
// skips the menu flow, so "menu" is honored here alongside "back".
func (e *Engine) handleMenu(ctx context.Context, sess *models.Session, in Input) models.OutboundMessage {
	if in.Text == "back" || in.Text == "menu" {
		return e.backToMainMenu(ctx, sess, "Welcome back! How can I help you today?")
	}

	categories := e.catalog.Categories()
	selected := ""
	if n, err := strconv.Atoi(in.Text); err == nil && n >= 1 && n <= len(categories) {
		selected = categories[n-1].Name
	} else {
		for _, cat := range categories {
			if strings.EqualFold(cat.Name, strings.TrimSpace(in.Original)) {
				selected = cat.Name
				break
			}
		}
	}

	if selected == "" {
		names := make([]string, len(categories))
		for i, cat := range categories {
			names[i] = cat.Name
		}
		return models.TextMessage(sess.ID, fmt.Sprintf(
			"❌ Invalid selection: '%s'\n\nPlease select from these categories:\n%s\n\nOr type 'back' to return to the main menu.",
			strings.TrimSpace(in.Original), strings.Join(names, ", ")))
	}

	category, ok := e.catalog.Category(selected)
	if !ok || len(category.Items) == 0 {
		return models.TextMessage(sess.ID, fmt.Sprintf(
			"Sorry, no items available in %s right now. Please try another category.", selected))
	}

	if sess.MenuFlow == nil {
		sess.MenuFlow = &models.MenuData{}
	}
	sess.MenuFlow.SelectedCategory = selected
	sess.Transition(models.HandlerMenu, models.StateCategorySelected)
	slog.Info("Flow menu category selected", "session", sess.ID, "category", selected)

	var b strings.Builder
	fmt.Fprintf(&b, "🍽️ *%s*\n\nSelect an item to add to your cart:\n\n", selected)
	for i, item := range category.Items {
		fmt.Fprintf(&b, "%d. %s (₦%.0f)\n", i+1, item.Name, item.Price)
	}
	b.WriteString("\nReply with a number or the item name. Type 'back' to choose a different category.")
	return models.TextMessage(sess.ID, b.String())
}

// handleCategorySelected handles item selection within a category and moves
// to quantity capture.
func (e *Engine) handleCategorySelected(ctx context.Context, sess *models.Session, in Input) models.OutboundMessage {
	if in.Text == "back" || in.Text == "menu" {
		return e.enterMenu(ctx, sess, in)
	}

	if sess.MenuFlow == nil || sess.MenuFlow.SelectedCategory == "" {
		slog.Warn("Flow item selection without category", "session", sess.ID)
		return e.enterMenu(ctx, sess, in)
	}

	category, ok := e.catalog.Category(sess.MenuFlow.SelectedCategory)
	if !ok {
		return e.enterMenu(ctx, sess, in)
	}

	var selected string
	var price float64
	if n, err := strconv.Atoi(in.Text); err == nil && n >= 1 && n <= len(category.Items) {
		selected = category.Items[n-1].Name
		price = category.Items[n-1].Price
	} else {
		for _, item := range category.Items {
			if strings.EqualFold(item.Name, strings.TrimSpace(in.Original)) {
				selected = item.Name
				price = item.Price
				break
			}
		}
	}

	if selected == "" {
		names := make([]string, len(category.Items))
		for i, item := range category.Items {
			names[i] = item.Name
		}
		return models.TextMessage(sess.ID, fmt.Sprintf(
			"❌ Invalid item: '%s'\n\n📋 Available items in %s:\n%s\n\nPlease select a valid item or type 'back' to choose a different category.",
			strings.TrimSpace(in.Original), category.Name, strings.Join(names, ", ")))
	}

	sess.MenuFlow.SelectedItem = selected
	sess.MenuFlow.SelectedPrice = price
	sess.Transition(models.HandlerOrder, models.StateQuantity)
	slog.Info("Flow menu item selected", "session", sess.ID, "item", selected)

	return models.TextMessage(sess.ID, fmt.Sprintf(
		"🛒 *%s*\nPrice: ₦%.0f\n\nHow many would you like to order?\n\nPlease enter a number (e.g., 1, 2, 3...):",
		selected, price))
}
