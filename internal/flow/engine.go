// Package flow implements the conversation flow handlers for orderbot.
//
// Each flow owns a connected set of session states and the transitions
// between them: greeting and the main menu, menu browsing and cart
// building, address collection, complaint capture, feedback collection,
// and enquiry capture. The Engine exposes a dispatch table consumed by the
// dialogue router.
package flow

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/chowline/orderbot/internal/catalog"
	"github.com/chowline/orderbot/internal/geo"
	"github.com/chowline/orderbot/internal/models"
	"github.com/chowline/orderbot/internal/session"
	"github.com/chowline/orderbot/internal/store"
)

// Input carries one inbound message into a handler. Text is the normalized
// form (trimmed, lowercased) used for option matching; Original preserves
// the user's casing for free-text capture. Location is non-nil only for
// location shares.
type Input struct {
	Text     string
	Original string
	Location *models.Location
}

// HandlerFunc handles one inbound message for the session's current state
// and returns the outbound reply. Handlers mutate the session in place and
// never return collaborator errors; failures degrade to user-visible
// fallback messages.
type HandlerFunc func(ctx context.Context, sess *models.Session, in Input) models.OutboundMessage

// Engine holds the collaborators shared by all flow handlers.
type Engine struct {
	sessions *session.Store
	records  store.Store
	geocoder geo.Geocoder
	catalog  catalog.Provider
	now      func() time.Time
}

// Opts holds optional Engine configuration.
type Opts struct {
	// Clock overrides the time source. Used in tests.
	Clock func() time.Time
}

// Option configures optional Engine settings.
type Option func(*Opts)

// WithClock sets the time source used for record ids and timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *Opts) { o.Clock = clock }
}

// NewEngine creates a flow engine over the given collaborators.
func NewEngine(sessions *session.Store, records store.Store, geocoder geo.Geocoder, provider catalog.Provider, opts ...Option) *Engine {
	var cfg Opts
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Engine{
		sessions: sessions,
		records:  records,
		geocoder: geocoder,
		catalog:  provider,
		now:      cfg.Clock,
	}
}

// Handlers returns the state dispatch table. Every state the engine can
// leave a session in has an entry here.
func (e *Engine) Handlers() map[models.StateType]HandlerFunc {
	return map[models.StateType]HandlerFunc{
		models.StateStart:                e.handleStart,
		models.StateGreeting:             e.handleGreeting,
		models.StateCollectPreferredName: e.handleCollectPreferredName,

		models.StateMenu:             e.handleMenu,
		models.StateCategorySelected: e.handleCategorySelected,

		models.StateQuantity:            e.handleQuantity,
		models.StateOrderSummary:        e.handleOrderSummary,
		models.StateRemoveItemSelection: e.handleRemoveItemSelection,
		models.StatePromptAddNote:       e.handlePromptAddNote,
		models.StateAddNote:             e.handleAddNote,
		models.StateConfirmOrder:        e.handleConfirmOrder,

		models.StateAddressCollectionMenu:   e.handleAddressCollectionMenu,
		models.StateAwaitingLiveLocation:    e.handleAwaitingLiveLocation,
		models.StateMapsSearchInput:         e.handleMapsSearchInput,
		models.StateManualAddressEntry:      e.handleManualAddressEntry,
		models.StateConfirmDetectedLocation: e.handleConfirmDetectedLocation,
		models.StateConfirmMapsResult:       e.handleConfirmMapsResult,
		models.StateConfirmCoordinates:      e.handleConfirmCoordinates,

		models.StateComplain: e.handleComplain,

		models.StateFeedbackRating:  e.handleFeedbackRating,
		models.StateFeedbackComment: e.handleFeedbackComment,

		models.StateEnquiry: e.handleEnquiry,
	}
}

// EntryPoints returns per-flow recovery handlers. The router falls back to
// the entry point of the session's current handler tag when the state is
// not in the dispatch table.
func (e *Engine) EntryPoints() map[models.HandlerTag]HandlerFunc {
	return map[models.HandlerTag]HandlerFunc{
		models.HandlerGreeting:  e.handleStart,
		models.HandlerMenu:      e.enterMenu,
		models.HandlerOrder:     e.recoverToMainMenu,
		models.HandlerAddress:   e.enterAddressMenu,
		models.HandlerComplaint: e.enterComplaint,
		models.HandlerFeedback:  e.recoverToMainMenu,
		models.HandlerEnquiry:   e.enterEnquiry,
	}
}

// recoverToMainMenu is the generic recovery handler for flows whose scratch
// state cannot be resumed safely.
func (e *Engine) recoverToMainMenu(ctx context.Context, sess *models.Session, _ Input) models.OutboundMessage {
	return e.backToMainMenu(ctx, sess, "Sorry, something went wrong. Let's start over.")
}

// matchOption resolves normalized input against an ordered option id list.
// It accepts either the option id itself or the option's 1-based position,
// mirroring how button prompts are rendered as numbered lists on channels
// without interactive buttons. Returns "" when nothing matches.
func matchOption(input string, options ...string) string {
	for _, opt := range options {
		if input == opt {
			return opt
		}
	}
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(options) {
		return options[n-1]
	}
	return ""
}

// truncatePreview bounds free text to limit runes, appending an ellipsis
// marker when truncated.
func truncatePreview(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

// containsAnyKeyword reports whether the lowercased text contains any of
// the given keywords.
func containsAnyKeyword(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
