package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/chowline/orderbot/internal/models"
)

// Main menu option ids.
const (
	optionOrderMenu = "order_menu"
	optionEnquiry   = "enquiry"
	optionComplain  = "complain"
)

// mainMenuButtons returns the standard main menu options. Titles stay
// within the channel's 20-character button title limit.
func mainMenuButtons() []models.Button {
	return []models.Button{
		{ID: optionOrderMenu, Title: "🍔 Order Menu"},
		{ID: optionEnquiry, Title: "❓ Enquiry"},
		{ID: optionComplain, Title: "📝 Complain"},
	}
}

// mainMenuMessage builds the main menu prompt with the given lead-in text.
func mainMenuMessage(to, lead string) models.OutboundMessage {
	return models.ButtonMessage(to, lead, mainMenuButtons()...)
}

// backToMainMenu clears order and flow scratch data, returns the session to
// the greeting state, and sends the main menu with the given message.
func (e *Engine) backToMainMenu(_ context.Context, sess *models.Session, message string) models.OutboundMessage {
	sess.ResetToMainMenu()
	slog.Info("Flow returned session to main menu", "session", sess.ID)
	if message == "" {
		message = "How can I help you today?"
	}
	return mainMenuMessage(sess.ID, message)
}

// ReturnToMainMenu resets the session to the main menu with the given
// lead-in message. Used by the router for the global menu command and for
// recovery from unroutable states.
func (e *Engine) ReturnToMainMenu(ctx context.Context, sess *models.Session, message string) models.OutboundMessage {
	return e.backToMainMenu(ctx, sess, message)
}

// handleStart is the entry point for brand-new or fully reset sessions. A
// known user goes straight to the main menu; an unknown one is asked for a
// preferred name first.
func (e *Engine) handleStart(ctx context.Context, sess *models.Session, _ Input) models.OutboundMessage {
	profile, err := e.records.GetUserProfile(sess.ID)
	if err != nil {
		slog.Error("Flow start profile lookup failed", "session", sess.ID, "error", err)
	}
	if profile != nil {
		if sess.PreferredName == "" {
			sess.PreferredName = profile.PreferredName
		}
		if sess.UserName == "" {
			sess.UserName = profile.Name
		}
		if sess.Address == "" {
			sess.Address = profile.Address
			if profile.Latitude != nil && profile.Longitude != nil {
				sess.Coordinates = &models.Coordinates{Latitude: *profile.Latitude, Longitude: *profile.Longitude}
			}
			sess.MapLink = profile.MapLink
		}
	}

	if sess.DisplayName() != "Guest" {
		sess.Transition(models.HandlerGreeting, models.StateGreeting)
		return mainMenuMessage(sess.ID, "Welcome back "+sess.DisplayName()+"! 👋\n\nHow can I help you today?")
	}

	sess.Transition(models.HandlerGreeting, models.StateCollectPreferredName)
	return models.TextMessage(sess.ID,
		"👋 Welcome! I'm your ordering assistant.\n\nWhat should we call you?")
}

// handleCollectPreferredName captures the user's preferred name and saves
// it to the profile before showing the main menu.
func (e *Engine) handleCollectPreferredName(ctx context.Context, sess *models.Session, in Input) models.OutboundMessage {
	name := strings.TrimSpace(in.Original)
	if name == "" {
		return models.TextMessage(sess.ID, "Please tell us what we should call you.")
	}

	sess.PreferredName = name
	profile := models.UserProfile{
		OwnerKey:      sess.ID,
		Name:          sess.UserName,
		PreferredName: name,
		Address:       sess.Address,
		UpdatedAt:     e.now(),
	}
	if err := e.records.UpsertUserProfile(profile); err != nil {
		// Name still lives on the session; the menu works without the profile.
		slog.Error("Flow preferred name save failed", "session", sess.ID, "error", err)
	}

	sess.Transition(models.HandlerGreeting, models.StateGreeting)
	return mainMenuMessage(sess.ID, "Nice to meet you, "+name+"! 👋\n\nHow can I help you today?")
}

// handleGreeting routes main menu selections to their flows.
func (e *Engine) handleGreeting(ctx context.Context, sess *models.Session, in Input) models.OutboundMessage {
	switch matchOption(in.Text, optionOrderMenu, optionEnquiry, optionComplain) {
	case optionOrderMenu:
		return e.enterMenu(ctx, sess, in)
	case optionEnquiry:
		return e.enterEnquiry(ctx, sess, in)
	case optionComplain:
		return e.enterComplaint(ctx, sess, in)
	}

	// Common synonyms typed instead of selected. "track" is matched before
	// "order" so "track my order" checks status instead of opening the menu.
	switch {
	case strings.Contains(in.Text, "track"), strings.Contains(in.Text, "status"):
		return e.trackLatestOrder(ctx, sess)
	case strings.Contains(in.Text, "order"), in.Text == "menu":
		return e.enterMenu(ctx, sess, in)
	case strings.Contains(in.Text, "complain"), strings.Contains(in.Text, "complaint"):
		return e.enterComplaint(ctx, sess, in)
	case strings.Contains(in.Text, "enquir"), strings.Contains(in.Text, "question"):
		return e.enterEnquiry(ctx, sess, in)
	}

	slog.Debug("Flow greeting invalid option", "session", sess.ID, "input", in.Text)
	return mainMenuMessage(sess.ID,
		"I'm sorry, I didn't understand that. Please select a valid option from the menu.")
}
