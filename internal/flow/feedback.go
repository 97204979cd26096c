package flow

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/chowline/orderbot/internal/models"
	"github.com/chowline/orderbot/internal/util"
)

// Feedback flow constants.
const (
	// SkipToken is the literal input that skips the rating or comment step.
	SkipToken = "skip"
	// feedbackPreviewLimit bounds comment previews in analytics.
	feedbackPreviewLimit = 100
	// DefaultRecentFeedback is the default number of recent entries in
	// analytics.
	DefaultRecentFeedback = 10
)

// ratingButtons are the three-way rating options.
func ratingButtons() []models.Button {
	return []models.Button{
		{ID: string(models.RatingExcellent), Title: "🤩 Excellent"},
		{ID: string(models.RatingGood), Title: "😊 Good"},
		{ID: string(models.RatingBad), Title: "😞 Bad"},
	}
}

// InitiateFeedback starts feedback collection for a completed order. Any
// failure to produce the interactive prompt degrades to a plain-text prompt
// and a no-button completion path instead of losing the interaction.
func (e *Engine) InitiateFeedback(ctx context.Context, sess *models.Session, orderID string) models.OutboundMessage {
	return e.initiateFeedback(ctx, sess, orderID)
}

func (e *Engine) initiateFeedback(_ context.Context, sess *models.Session, orderID string) models.OutboundMessage {
	sess.ClearFlowData()
	sess.FeedbackFlow = &models.FeedbackData{
		OrderID:   orderID,
		StartedAt: e.now().Format(time.RFC3339),
	}
	sess.Transition(models.HandlerFeedback, models.StateFeedbackRating)
	slog.Info("Flow feedback initiated", "session", sess.ID, "order", orderID)

	body := fmt.Sprintf(
		"🎉 *Thank you for your order!*\n\n📋 Order ID: %s\n\n"+
			"💬 *How was your ordering experience?*\n"+
			"Your feedback helps us improve our service! Type 'skip' to skip.",
		orderID)

	msg := models.ButtonMessage(sess.ID, body, ratingButtons()...)
	if err := msg.Validate(); err != nil {
		slog.Error("Flow feedback prompt degraded to text", "session", sess.ID, "error", err)
		sess.FeedbackFlow.Degraded = true
		return models.TextMessage(sess.ID,
			"How was your ordering experience?\n\n1. Excellent\n2. Good\n3. Bad\n\nReply with a number, or 'skip' to skip.")
	}
	return msg
}

// handleFeedbackRating handles the rating selection. Valid ratings move to
// the optional comment step; the skip token ends the flow; anything else
// re-prompts with the choices unchanged.
func (e *Engine) handleFeedbackRating(ctx context.Context, sess *models.Session, in Input) models.OutboundMessage {
	if sess.FeedbackFlow == nil {
		sess.FeedbackFlow = &models.FeedbackData{}
	}

	if in.Text == SkipToken {
		return e.skipFeedback(ctx, sess, models.RatingSkipped)
	}

	rating := models.Rating(matchOption(in.Text,
		string(models.RatingExcellent), string(models.RatingGood), string(models.RatingBad)))
	if !models.IsValidRating(rating) {
		slog.Debug("Flow feedback invalid rating", "session", sess.ID, "input", in.Text)
		if sess.FeedbackFlow.Degraded {
			return models.TextMessage(sess.ID,
				"❌ Please reply with 1 (Excellent), 2 (Good), 3 (Bad), or 'skip'.")
		}
		return models.ButtonMessage(sess.ID,
			"❌ Please select a valid rating option.", ratingButtons()...)
	}

	sess.FeedbackFlow.Rating = rating

	// The degraded path cannot render the comment prompt reliably; record
	// the rating directly and finish.
	if sess.FeedbackFlow.Degraded {
		return e.finishFeedback(ctx, sess, rating, "", models.RecordStatusReceived)
	}

	sess.Transition(models.HandlerFeedback, models.StateFeedbackComment)

	if rating == models.RatingBad {
		return models.TextMessage(sess.ID,
			"😞 We're sorry your experience wasn't great. Please tell us what went wrong so we can do better, or type 'skip'.")
	}
	return models.TextMessage(sess.ID,
		"🎉 Wonderful! We'd love to hear more. Share a comment about your experience, or type 'skip'.")
}

// handleFeedbackComment handles the optional comment step.
func (e *Engine) handleFeedbackComment(ctx context.Context, sess *models.Session, in Input) models.OutboundMessage {
	if sess.FeedbackFlow == nil {
		sess.FeedbackFlow = &models.FeedbackData{}
	}

	if in.Text == SkipToken {
		return e.skipFeedback(ctx, sess, sess.FeedbackFlow.Rating)
	}

	comment := strings.TrimSpace(in.Original)
	return e.finishFeedback(ctx, sess, sess.FeedbackFlow.Rating, comment, models.RecordStatusReceived)
}

// skipFeedback records a skipped entry with an empty comment and clears the
// full session.
func (e *Engine) skipFeedback(_ context.Context, sess *models.Session, rating models.Rating) models.OutboundMessage {
	if rating == "" {
		rating = models.RatingSkipped
	}
	record := e.buildFeedbackRecord(sess, rating, "", models.RecordStatusSkipped)
	if err := e.records.SaveFeedback(record); err != nil {
		// Feedback loss is acceptable; the user still gets the thank-you.
		slog.Error("Flow feedback skip save failed", "session", sess.ID, "error", err)
	} else {
		slog.Info("Flow feedback skipped", "session", sess.ID, "order", record.OrderID)
	}

	e.sessions.Clear(sess.ID)
	return models.TextMessage(sess.ID, "Thank you! Have a great day. 👋")
}

// finishFeedback persists the feedback record, clears feedback-scoped
// fields, and ends the flow with a thank-you regardless of save outcome.
func (e *Engine) finishFeedback(ctx context.Context, sess *models.Session, rating models.Rating, comment string, status models.RecordStatus) models.OutboundMessage {
	record := e.buildFeedbackRecord(sess, rating, comment, status)
	if err := e.records.SaveFeedback(record); err != nil {
		slog.Error("Flow feedback save failed", "session", sess.ID, "error", err)
	} else {
		slog.Info("Flow feedback saved", "session", sess.ID, "order", record.OrderID, "rating", rating)
	}

	sess.FeedbackFlow = nil
	sess.Transition(models.HandlerGreeting, models.StateGreeting)
	return models.TextMessage(sess.ID, "Thank you for your feedback! 🙏")
}

// buildFeedbackRecord assembles the persisted entry from the session's
// scratch state.
func (e *Engine) buildFeedbackRecord(sess *models.Session, rating models.Rating, comment string, status models.RecordStatus) models.FeedbackRecord {
	now := e.now()
	record := models.FeedbackRecord{
		ID:        util.GenerateFeedbackID(now),
		OwnerKey:  sess.ID,
		UserName:  sess.DisplayName(),
		Rating:    rating,
		Comment:   comment,
		Status:    status,
		Timestamp: now,
	}
	if sess.FeedbackFlow != nil {
		record.OrderID = sess.FeedbackFlow.OrderID
		record.SessionDuration = feedbackDuration(sess.FeedbackFlow.StartedAt, now)
	}
	return record
}

// feedbackDuration computes the seconds between the stored start timestamp
// and now, non-negative and rounded to two decimals. A missing or malformed
// start timestamp yields nil so the field is omitted rather than recorded
// as zero.
func feedbackDuration(startedAt string, now time.Time) *float64 {
	if startedAt == "" {
		return nil
	}
	start, err := time.Parse(time.RFC3339, startedAt)
	if err != nil {
		slog.Warn("Flow feedback malformed start timestamp", "started_at", startedAt, "error", err)
		return nil
	}
	seconds := now.Sub(start).Seconds()
	if seconds < 0 {
		seconds = 0
	}
	seconds = math.Round(seconds*100) / 100
	return &seconds
}

// FeedbackAnalytics summarizes the persisted feedback set: totals,
// per-rating counts and percentages, comment counts, and the most recent
// entries with bounded comment previews. Zero records yields zero
// percentages rather than a division error.
func (e *Engine) FeedbackAnalytics(recentLimit int) (models.FeedbackAnalytics, error) {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentFeedback
	}

	entries, err := e.records.ListFeedback()
	if err != nil {
		return models.FeedbackAnalytics{}, fmt.Errorf("list feedback: %w", err)
	}

	analytics := models.FeedbackAnalytics{
		TotalFeedback:     len(entries),
		RatingCounts:      make(map[models.Rating]int),
		RatingPercentages: make(map[models.Rating]float64),
		LastUpdated:       e.now(),
	}

	for _, entry := range entries {
		analytics.RatingCounts[entry.Rating]++
		if strings.TrimSpace(entry.Comment) != "" {
			analytics.TotalComments++
		}
	}

	if analytics.TotalFeedback > 0 {
		for rating, count := range analytics.RatingCounts {
			analytics.RatingPercentages[rating] = roundOneDecimal(
				float64(count) / float64(analytics.TotalFeedback) * 100)
		}
		analytics.CommentPercentage = roundOneDecimal(
			float64(analytics.TotalComments) / float64(analytics.TotalFeedback) * 100)
	}

	// Newest entries first.
	for i := len(entries) - 1; i >= 0 && len(analytics.RecentFeedback) < recentLimit; i-- {
		entry := entries[i]
		analytics.RecentFeedback = append(analytics.RecentFeedback, models.FeedbackPreview{
			OrderID:   entry.OrderID,
			Rating:    entry.Rating,
			Comment:   truncatePreview(entry.Comment, feedbackPreviewLimit),
			Timestamp: entry.Timestamp,
		})
	}

	return analytics, nil
}

// roundOneDecimal rounds to one decimal place.
func roundOneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}
