package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/chowline/orderbot/internal/models"
)

// enquiryPreviewLimit bounds the echoed enquiry text in confirmations.
const enquiryPreviewLimit = 50

// enterEnquiry switches the session into enquiry capture.
func (e *Engine) enterEnquiry(_ context.Context, sess *models.Session, _ Input) models.OutboundMessage {
	sess.ClearFlowData()
	sess.Transition(models.HandlerEnquiry, models.StateEnquiry)
	slog.Info("Flow enquiry capture started", "session", sess.ID)
	return models.TextMessage(sess.ID,
		"❓ What would you like to know? Please type your question and we'll get back to you soon!")
}

// handleEnquiry captures the enquiry text, persists it, and returns to the
// main menu. Empty text re-prompts; a save failure apologizes and keeps the
// session in the capture state.
func (e *Engine) handleEnquiry(ctx context.Context, sess *models.Session, in Input) models.OutboundMessage {
	if in.Text == "back" {
		return e.backToMainMenu(ctx, sess, "Welcome back! How can I help you today?")
	}

	text := strings.TrimSpace(in.Original)
	if text == "" {
		slog.Warn("Flow enquiry empty text", "session", sess.ID)
		return models.TextMessage(sess.ID,
			"It looks like you didn't enter a question. Please type your question or 'back' to return to the main menu.")
	}

	enquiry := models.EnquiryRecord{
		ID:        uuid.NewString(),
		OwnerKey:  sess.ID,
		UserName:  sess.DisplayName(),
		Text:      text,
		Priority:  AssessPriority(text),
		Status:    models.RecordStatusPending,
		Timestamp: e.now(),
	}

	if err := e.records.SaveEnquiry(enquiry); err != nil {
		slog.Error("Flow enquiry save failed", "session", sess.ID, "error", err)
		return models.TextMessage(sess.ID,
			"⚠️ Sorry, there was an issue saving your enquiry. Please try again or contact support.")
	}

	preview := truncatePreview(text, enquiryPreviewLimit)
	slog.Info("Flow enquiry saved", "session", sess.ID, "enquiry", enquiry.ID, "priority", enquiry.Priority)

	confirmation := fmt.Sprintf(
		"✅ Thank you for your enquiry!\n\n*Enquiry ID:* %s\n\n"+
			"We've received your question: \"%s\"\n\n"+
			"Our team will respond within 24 hours. Please reference enquiry ID %s in future communications.",
		enquiry.ID, preview, enquiry.ID)

	return e.backToMainMenu(ctx, sess, confirmation+"\n\nWhat would you like to do next?")
}
