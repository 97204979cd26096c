package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chowline/orderbot/internal/models"
	"github.com/chowline/orderbot/internal/util"
)

// complaintPreviewLimit bounds the echoed complaint text in confirmations.
const complaintPreviewLimit = 50

// urgentKeywords mark a complaint or enquiry as high priority when any of
// them appears in the text, case-insensitively.
var urgentKeywords = []string{
	"urgent", "emergency", "asap", "immediately", "critical", "broken", "not working",
}

// AssessPriority classifies free text as high priority when it contains an
// urgent keyword, normal otherwise.
func AssessPriority(text string) models.Priority {
	if containsAnyKeyword(text, urgentKeywords) {
		return models.PriorityHigh
	}
	return models.PriorityNormal
}

// enterComplaint switches the session into complaint capture and asks the
// open-ended question.
func (e *Engine) enterComplaint(_ context.Context, sess *models.Session, _ Input) models.OutboundMessage {
	sess.ClearFlowData()
	sess.Transition(models.HandlerComplaint, models.StateComplain)
	slog.Info("Flow complaint capture started", "session", sess.ID)
	return models.TextMessage(sess.ID,
		"📝 What issue are you experiencing? Please describe your complaint in detail and we'll get back to you as soon as possible.")
}

// handleComplain captures the complaint text, persists it, and returns to
// the main menu. Empty text re-prompts without creating a record; a save
// failure apologizes and keeps the session in the capture state so the user
// can retry.
func (e *Engine) handleComplain(ctx context.Context, sess *models.Session, in Input) models.OutboundMessage {
	text := strings.TrimSpace(in.Original)
	if text == "" {
		slog.Warn("Flow complaint empty text", "session", sess.ID)
		return models.TextMessage(sess.ID,
			"Please tell us about your complaint. What issue are you experiencing?")
	}

	now := e.now()
	complaint := models.ComplaintRecord{
		ID:        util.GenerateComplaintID(now),
		OwnerKey:  sess.ID,
		UserName:  sess.DisplayName(),
		Text:      text,
		Priority:  AssessPriority(text),
		Status:    models.RecordStatusPending,
		Timestamp: now,
	}

	if err := e.records.SaveComplaint(complaint); err != nil {
		slog.Error("Flow complaint save failed", "session", sess.ID, "error", err)
		return models.TextMessage(sess.ID,
			"⚠️ Sorry, there was an issue saving your complaint. Please try again or contact support.")
	}

	preview := truncatePreview(text, complaintPreviewLimit)
	slog.Info("Flow complaint saved", "session", sess.ID, "complaint", complaint.ID, "priority", complaint.Priority)

	confirmation := fmt.Sprintf(
		"✅ Thank you for your complaint, %s!\n\n*Complaint ID:* %s\n\n"+
			"We've received your issue: \"%s\"\n\n"+
			"Our team will respond within 24 hours. Please reference complaint ID %s in future communications.",
		sess.DisplayName(), complaint.ID, preview, complaint.ID)

	return e.backToMainMenu(ctx, sess, confirmation+"\n\nWhat would you like to do next?")
}
