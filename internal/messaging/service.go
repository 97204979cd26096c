// Package messaging provides the pluggable message delivery layer for orderbot.
//
// A Service delivers outbound messages over a channel (WhatsApp via
// whatsmeow, or Twilio's WhatsApp API) and surfaces incoming user messages
// on a channel for the dispatcher to consume.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/chowline/orderbot/internal/models"
)

// Constants for messaging service configuration
const (
	// DefaultChannelBufferSize defines the default buffer size for response channels
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the default timeout for non-blocking channel operations
	DefaultChannelTimeout = 1 * time.Second
	// MinPhoneNumberDigits is the minimum digit count accepted for a recipient
	MinPhoneNumberDigits = 6
)

// ErrServiceStopped is returned when a send is attempted after Stop.
var ErrServiceStopped = errors.New("messaging service stopped")

// phoneNumberRegex matches everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient identifier.
	// Returns the canonicalized recipient and an error if validation fails.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage delivers an outbound message. Implementations that
	// cannot render reply buttons fall back to a numbered text list.
	SendMessage(ctx context.Context, msg models.OutboundMessage) error

	// Start begins any background processing (e.g., event polling).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Responses returns a channel of incoming user messages.
	Responses() <-chan models.Response
}

// CanonicalizePhoneNumber strips non-digits from a recipient and validates
// the result. Both services share these rules.
func CanonicalizePhoneNumber(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}

	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < MinPhoneNumberDigits {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum %d digits required)", canonical, MinPhoneNumberDigits)
	}

	if recipient != canonical {
		slog.Debug("Canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// RenderAsText flattens an outbound message into plain text. Buttons become
// a numbered option list so users on channels without interactive messages
// can reply with the option number.
func RenderAsText(msg models.OutboundMessage) string {
	if len(msg.Buttons) == 0 {
		return msg.Body
	}

	var b strings.Builder
	b.WriteString(msg.Body)
	b.WriteString("\n")
	for i, btn := range msg.Buttons {
		b.WriteString(fmt.Sprintf("\n%d. %s", i+1, btn.Title))
	}
	b.WriteString("\n\nReply with a number or type your choice.")
	return b.String()
}
