// Package router dispatches inbound messages to flow handlers by session
// state.
//
// The dispatch table is built once at construction from the flow engine's
// closed state enumeration. Unknown or stale states never crash a session:
// they fall back to the owning flow's entry point, and failing that, to the
// main menu. Panics inside a handler are recovered and converted to an
// apology with a reset, so no failure mode wedges a conversation.
package router

import (
	"context"
	"log/slog"
	"strings"

	"github.com/chowline/orderbot/internal/flow"
	"github.com/chowline/orderbot/internal/models"
	"github.com/chowline/orderbot/internal/session"
)

// menuCommand is the global literal that returns to the main menu from any
// flow.
const menuCommand = "menu"

// Router routes inbound messages for the messaging dispatcher.
type Router struct {
	sessions *session.Store
	engine   *flow.Engine
	handlers map[models.StateType]flow.HandlerFunc
	entries  map[models.HandlerTag]flow.HandlerFunc
}

// New builds a router over the engine's dispatch table.
func New(sessions *session.Store, engine *flow.Engine) *Router {
	return &Router{
		sessions: sessions,
		engine:   engine,
		handlers: engine.Handlers(),
		entries:  engine.EntryPoints(),
	}
}

// Handle routes one inbound text message and returns the reply.
func (r *Router) Handle(ctx context.Context, from, text string, timestamp int64) (msg models.OutboundMessage, err error) {
	sess := r.sessions.GetOrCreate(from)

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Router recovered from handler panic",
				"session", from, "state", sess.CurrentState, "panic", rec)
			sess.ResetToMainMenu()
			msg = models.TextMessage(from, "⚠️ Something went wrong. Let's start fresh. Please try again.")
			err = nil
		}
	}()

	in := flow.Input{
		Text:     strings.ToLower(strings.TrimSpace(text)),
		Original: text,
	}

	// The menu command works from any flow except the greeting flow itself,
	// where it would discard the prompt the user is answering.
	if in.Text == menuCommand && sess.CurrentHandler != models.HandlerGreeting && sess.CurrentHandler != models.HandlerMenu {
		slog.Debug("Router global menu command", "session", from, "state", sess.CurrentState)
		return r.engine.ReturnToMainMenu(ctx, sess, "Welcome back! How can I help you today?"), nil
	}

	handler := r.resolve(sess)
	slog.Debug("Router dispatch", "session", from, "state", sess.CurrentState, "handler", sess.CurrentHandler)
	return handler(ctx, sess, in), nil
}

// HandleLocation routes one inbound location share.
func (r *Router) HandleLocation(ctx context.Context, from string, location models.Location, timestamp int64) (msg models.OutboundMessage, err error) {
	sess := r.sessions.GetOrCreate(from)

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Router recovered from location handler panic",
				"session", from, "state", sess.CurrentState, "panic", rec)
			sess.ResetToMainMenu()
			msg = models.TextMessage(from, "⚠️ Something went wrong. Let's start fresh. Please try again.")
			err = nil
		}
	}()

	if sess.CurrentHandler == models.HandlerAddress && acceptsLocation(sess.CurrentState) {
		slog.Debug("Router location dispatch", "session", from, "state", sess.CurrentState)
		return r.engine.HandleLiveLocation(ctx, sess, location), nil
	}

	// Location shared outside the address flow; acknowledge without
	// hijacking the current state.
	slog.Debug("Router location outside address flow", "session", from, "state", sess.CurrentState)
	return models.TextMessage(from,
		"📍 Location received!\n\nTo use this as your delivery address, please start an order and choose 'Share current location' when asked for your address."), nil
}

// acceptsLocation reports whether the address-flow state consumes a shared
// location directly.
func acceptsLocation(state models.StateType) bool {
	switch state {
	case models.StateAwaitingLiveLocation,
		models.StateAddressCollectionMenu,
		models.StateMapsSearchInput,
		models.StateManualAddressEntry:
		return true
	default:
		return false
	}
}

// resolve returns the handler for the session's current state, recovering
// through the flow entry point and then the main menu when the state is
// unknown.
func (r *Router) resolve(sess *models.Session) flow.HandlerFunc {
	if handler, ok := r.handlers[sess.CurrentState]; ok {
		return handler
	}
	slog.Warn("Router unknown state", "session", sess.ID, "state", sess.CurrentState, "handler", sess.CurrentHandler)
	if entry, ok := r.entries[sess.CurrentHandler]; ok {
		return entry
	}
	return func(ctx context.Context, sess *models.Session, _ flow.Input) models.OutboundMessage {
		return r.engine.ReturnToMainMenu(ctx, sess,
			"I'm sorry, I didn't quite understand that. Let's get back to the main menu.")
	}
}
