// Package models defines the core data structures for orderbot.
//
// It includes the outbound message descriptor, persisted record types, and
// the shared enumerations used across modules.
package models

import (
	"errors"
	"strings"
	"time"
)

// Validation constants for outbound messages.
const (
	// MaxButtonTitleLength is the WhatsApp limit for reply button titles.
	MaxButtonTitleLength = 20
	// MaxButtonsPerMessage is the channel limit for reply buttons on a single message.
	MaxButtonsPerMessage = 3
	// MaxMessageBodyLength defines the maximum allowed length for message body content.
	MaxMessageBodyLength = 4096
)

// Error variables for better error handling and testability.
var (
	ErrEmptyRecipient     = errors.New("recipient cannot be empty")
	ErrEmptyBody          = errors.New("message body cannot be empty")
	ErrBodyTooLong        = errors.New("message body exceeds maximum length")
	ErrTooManyButtons     = errors.New("too many buttons for a single message")
	ErrEmptyButtonID      = errors.New("button id cannot be empty")
	ErrEmptyButtonTitle   = errors.New("button title cannot be empty")
	ErrButtonTitleTooLong = errors.New("button title exceeds maximum length")
)

// Button is a single tappable reply option on an outbound message.
type Button struct {
	ID    string `json:"id"`    // option identifier returned by the channel on tap
	Title string `json:"title"` // label shown to the user
}

// OutboundMessage is the descriptor a flow handler produces for delivery.
// A message with no buttons is delivered as plain text; a message with
// buttons is delivered as an interactive reply-button message.
type OutboundMessage struct {
	To      string   `json:"to"`
	Body    string   `json:"body"`
	Buttons []Button `json:"buttons,omitempty"`
}

// TextMessage builds a plain-text outbound message descriptor.
func TextMessage(to, body string) OutboundMessage {
	return OutboundMessage{To: to, Body: body}
}

// ButtonMessage builds an outbound message descriptor with reply buttons.
func ButtonMessage(to, body string, buttons ...Button) OutboundMessage {
	return OutboundMessage{To: to, Body: body, Buttons: buttons}
}

// Validate performs comprehensive validation on an OutboundMessage.
func (m *OutboundMessage) Validate() error {
	if m.To == "" {
		return ErrEmptyRecipient
	}
	if strings.TrimSpace(m.Body) == "" {
		return ErrEmptyBody
	}
	if len(m.Body) > MaxMessageBodyLength {
		return ErrBodyTooLong
	}
	if len(m.Buttons) > MaxButtonsPerMessage {
		return ErrTooManyButtons
	}
	for _, b := range m.Buttons {
		if b.ID == "" {
			return ErrEmptyButtonID
		}
		if b.Title == "" {
			return ErrEmptyButtonTitle
		}
		if len([]rune(b.Title)) > MaxButtonTitleLength {
			return ErrButtonTitleTooLong
		}
	}
	return nil
}

// RecordKind identifies the collection a persisted record belongs to.
type RecordKind string

const (
	RecordKindOrder     RecordKind = "orders"
	RecordKindComplaint RecordKind = "complaints"
	RecordKindFeedback  RecordKind = "feedback"
	RecordKindEnquiry   RecordKind = "enquiries"
)

// RecordStatus represents the lifecycle status of a persisted record.
type RecordStatus string

const (
	// RecordStatusPending indicates the record awaits downstream processing.
	RecordStatusPending RecordStatus = "pending"
	// RecordStatusReceived indicates the record was received and acknowledged.
	RecordStatusReceived RecordStatus = "received"
	// RecordStatusConfirmed indicates the record was confirmed by a follow-up action.
	RecordStatusConfirmed RecordStatus = "confirmed"
	// RecordStatusSkipped indicates the user declined to provide the content.
	RecordStatusSkipped RecordStatus = "skipped"
	// RecordStatusInTransit indicates a dispatched order on its way to the customer.
	RecordStatusInTransit RecordStatus = "in_transit"
	// RecordStatusDelivered indicates a completed, delivered order.
	RecordStatusDelivered RecordStatus = "delivered"
)

// IsValidOrderStatus checks whether the status is part of the order
// lifecycle. Kitchen staff move an order pending → confirmed → in_transit
// → delivered.
func IsValidOrderStatus(s RecordStatus) bool {
	switch s {
	case RecordStatusPending, RecordStatusConfirmed, RecordStatusInTransit, RecordStatusDelivered:
		return true
	default:
		return false
	}
}

// Priority classifies complaint and enquiry urgency.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
)

// Rating represents a feedback rating selection.
type Rating string

const (
	// RatingExcellent is the positive-high rating.
	RatingExcellent Rating = "excellent"
	// RatingGood is the positive-low rating.
	RatingGood Rating = "good"
	// RatingBad is the negative rating.
	RatingBad Rating = "bad"
	// RatingSkipped marks feedback the user skipped at the rating step.
	RatingSkipped Rating = "skipped"
)

// IsValidRating checks whether the rating is one of the selectable options.
// RatingSkipped is recorded internally and is not selectable.
func IsValidRating(r Rating) bool {
	switch r {
	case RatingExcellent, RatingGood, RatingBad:
		return true
	default:
		return false
	}
}

// ComplaintRecord is a persisted complaint submission.
type ComplaintRecord struct {
	ID        string       `json:"id"`
	OwnerKey  string       `json:"owner_key"`
	UserName  string       `json:"user_name,omitempty"`
	Text      string       `json:"text"`
	Priority  Priority     `json:"priority"`
	Status    RecordStatus `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
}

// FeedbackRecord is a persisted post-order feedback entry.
// SessionDuration is nil when the flow start timestamp was missing or
// malformed; the field is then omitted rather than recorded as zero.
type FeedbackRecord struct {
	ID              string       `json:"id"`
	OwnerKey        string       `json:"owner_key"`
	UserName        string       `json:"user_name,omitempty"`
	OrderID         string       `json:"order_id"`
	Rating          Rating       `json:"rating"`
	Comment         string       `json:"comment"`
	Status          RecordStatus `json:"status"`
	SessionDuration *float64     `json:"session_duration,omitempty"` // seconds
	Timestamp       time.Time    `json:"timestamp"`
}

// OrderItem is a single line of a completed order.
type OrderItem struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// OrderRecord is a persisted order.
type OrderRecord struct {
	ID               string       `json:"id"`
	OwnerKey         string       `json:"owner_key"`
	UserName         string       `json:"user_name,omitempty"`
	Address          string       `json:"address"`
	Latitude         *float64     `json:"latitude,omitempty"`
	Longitude        *float64     `json:"longitude,omitempty"`
	Note             string       `json:"note,omitempty"`
	Items            []OrderItem  `json:"items"`
	TotalAmount      float64      `json:"total_amount"`
	PaymentReference string       `json:"payment_reference,omitempty"`
	Status           RecordStatus `json:"status"`
	Timestamp        time.Time    `json:"timestamp"`
}

// EnquiryRecord is a persisted open-ended enquiry.
type EnquiryRecord struct {
	ID        string       `json:"id"`
	OwnerKey  string       `json:"owner_key"`
	UserName  string       `json:"user_name,omitempty"`
	Text      string       `json:"text"`
	Priority  Priority     `json:"priority"`
	Status    RecordStatus `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
}

// UserProfile holds durable per-user details keyed by the owner identifier.
// Writing the same address repeatedly overwrites the current pointer only.
type UserProfile struct {
	OwnerKey      string    `json:"owner_key"`
	Name          string    `json:"name"`
	PreferredName string    `json:"preferred_name,omitempty"`
	Address       string    `json:"address,omitempty"`
	Latitude      *float64  `json:"latitude,omitempty"`
	Longitude     *float64  `json:"longitude,omitempty"`
	MapLink       string    `json:"map_link,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DisplayName returns the name to greet the user with.
func (p *UserProfile) DisplayName() string {
	if p == nil {
		return "Guest"
	}
	if p.PreferredName != "" {
		return p.PreferredName
	}
	if p.Name != "" {
		return p.Name
	}
	return "Guest"
}

// FeedbackPreview is a recent feedback entry with a bounded comment preview.
type FeedbackPreview struct {
	OrderID   string    `json:"order_id"`
	Rating    Rating    `json:"rating"`
	Comment   string    `json:"comment"`
	Timestamp time.Time `json:"timestamp"`
}

// FeedbackAnalytics summarizes the persisted feedback set.
type FeedbackAnalytics struct {
	TotalFeedback     int                `json:"total_feedback"`
	RatingCounts      map[Rating]int     `json:"rating_counts"`
	RatingPercentages map[Rating]float64 `json:"rating_percentages"`
	TotalComments     int                `json:"total_comments"`
	CommentPercentage float64            `json:"comment_percentage"`
	RecentFeedback    []FeedbackPreview  `json:"recent_feedback"`
	LastUpdated       time.Time          `json:"last_updated"`
}
