package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chowline/orderbot/internal/models"
)

// MessageRouter routes an incoming message to the active conversation flow
// and returns the reply to send. Defined here to avoid a circular import
// with the router package.
type MessageRouter interface {
	Handle(ctx context.Context, from, text string, timestamp int64) (models.OutboundMessage, error)
	HandleLocation(ctx context.Context, from string, location models.Location, timestamp int64) (models.OutboundMessage, error)
}

// Dispatcher consumes incoming messages from a Service and drives them
// through the router, sending each reply back over the same service.
type Dispatcher struct {
	msgService Service
	router     MessageRouter
}

// NewDispatcher creates a Dispatcher over the given service and router.
func NewDispatcher(msgService Service, router MessageRouter) *Dispatcher {
	return &Dispatcher{msgService: msgService, router: router}
}

// Start begins processing responses from the messaging service.
// This should be called once to start the processing loop.
func (d *Dispatcher) Start(ctx context.Context) {
	slog.Info("Dispatcher starting message processing")

	go func() {
		defer slog.Info("Dispatcher stopped message processing")

		for {
			select {
			case response, ok := <-d.msgService.Responses():
				if !ok {
					slog.Debug("Dispatcher responses channel closed")
					return
				}
				if err := d.Process(ctx, response); err != nil {
					slog.Error("Dispatcher failed to process message", "error", err, "from", response.From)
				}

			case <-ctx.Done():
				slog.Debug("Dispatcher stopping due to context cancellation")
				return
			}
		}
	}()
}

// Process routes one incoming message and sends the reply.
func (d *Dispatcher) Process(ctx context.Context, response models.Response) error {
	canonicalFrom, err := d.msgService.ValidateAndCanonicalizeRecipient(response.From)
	if err != nil {
		slog.Error("Dispatcher sender validation failed", "error", err, "from", response.From)
		return fmt.Errorf("invalid sender: %w", err)
	}

	slog.Debug("Dispatcher processing message", "from", canonicalFrom,
		"body_length", len(response.Body), "has_location", response.Location != nil)

	var reply models.OutboundMessage
	if response.Location != nil {
		reply, err = d.router.HandleLocation(ctx, canonicalFrom, *response.Location, response.Time)
	} else {
		reply, err = d.router.Handle(ctx, canonicalFrom, response.Body, response.Time)
	}
	if err != nil {
		slog.Error("Dispatcher routing failed", "error", err, "from", canonicalFrom)
		return fmt.Errorf("routing failed: %w", err)
	}

	if reply.Body == "" {
		slog.Debug("Dispatcher router produced no reply", "from", canonicalFrom)
		return nil
	}
	reply.To = canonicalFrom

	if err := d.msgService.SendMessage(ctx, reply); err != nil {
		slog.Error("Dispatcher failed to send reply", "error", err, "to", canonicalFrom)
		return fmt.Errorf("failed to send reply: %w", err)
	}

	slog.Info("Dispatcher reply sent", "to", canonicalFrom)
	return nil
}
