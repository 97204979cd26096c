package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/chowline/orderbot/internal/models"
	"github.com/chowline/orderbot/internal/store"
)

// capturingEnquiryStore records saved enquiries for inspection.
type capturingEnquiryStore struct {
	store.Store
	saved []models.EnquiryRecord
}

func (c *capturingEnquiryStore) SaveEnquiry(enquiry models.EnquiryRecord) error {
	c.saved = append(c.saved, enquiry)
	return c.Store.SaveEnquiry(enquiry)
}

func TestEnquiryEmptyTextCreatesNoRecord(t *testing.T) {
	captured := &capturingEnquiryStore{Store: store.NewInMemoryStore()}
	env := newTestEnv(captured)
	ctx := context.Background()
	sess := env.newSession("u1")
	env.engine.enterEnquiry(ctx, sess, Input{})

	msg := env.engine.handleEnquiry(ctx, sess, textInput("   "))
	if !strings.Contains(msg.Body, "didn't enter a question") {
		t.Errorf("expected re-prompt, got %q", msg.Body)
	}
	if sess.CurrentState != models.StateEnquiry {
		t.Errorf("state = %s, want unchanged", sess.CurrentState)
	}
	if len(captured.saved) != 0 {
		t.Errorf("empty enquiry created %d records", len(captured.saved))
	}
}

func TestEnquirySavedWithPendingStatus(t *testing.T) {
	captured := &capturingEnquiryStore{Store: store.NewInMemoryStore()}
	env := newTestEnv(captured)
	ctx := context.Background()
	sess := env.newSession("u1")
	sess.PreferredName = "Tolu"
	env.engine.enterEnquiry(ctx, sess, Input{})

	msg := env.engine.handleEnquiry(ctx, sess, textInput("Do you deliver to Lekki Phase 1?"))
	if len(captured.saved) != 1 {
		t.Fatalf("want one record, got %d", len(captured.saved))
	}
	enquiry := captured.saved[0]
	if len(enquiry.ID) != 36 {
		t.Errorf("enquiry id = %q, want a UUID", enquiry.ID)
	}
	if enquiry.Status != models.RecordStatusPending {
		t.Errorf("status = %s, want pending", enquiry.Status)
	}
	if enquiry.Priority != models.PriorityNormal {
		t.Errorf("priority = %s, want normal", enquiry.Priority)
	}
	if enquiry.UserName != "Tolu" {
		t.Errorf("user name = %q", enquiry.UserName)
	}
	if enquiry.Text != "Do you deliver to Lekki Phase 1?" {
		t.Errorf("text = %q", enquiry.Text)
	}
	if !strings.Contains(msg.Body, enquiry.ID) {
		t.Errorf("confirmation %q missing enquiry id %s", msg.Body, enquiry.ID)
	}
	if sess.CurrentState != models.StateGreeting {
		t.Errorf("state = %s, want back at main menu", sess.CurrentState)
	}
}

func TestEnquiryUrgentKeywordRaisesPriority(t *testing.T) {
	captured := &capturingEnquiryStore{Store: store.NewInMemoryStore()}
	env := newTestEnv(captured)
	ctx := context.Background()
	sess := env.newSession("u1")
	env.engine.enterEnquiry(ctx, sess, Input{})

	env.engine.handleEnquiry(ctx, sess, textInput("URGENT: is my order on the way?"))
	if len(captured.saved) != 1 || captured.saved[0].Priority != models.PriorityHigh {
		t.Errorf("saved = %+v, want one high-priority record", captured.saved)
	}
}

func TestEnquiryLongTextPreviewTruncated(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()
	sess := env.newSession("u1")
	env.engine.enterEnquiry(ctx, sess, Input{})

	long := strings.Repeat("where is my order ", 10)
	msg := env.engine.handleEnquiry(ctx, sess, textInput(long))
	preview := truncatePreview(strings.TrimSpace(long), enquiryPreviewLimit)
	if !strings.Contains(msg.Body, "\""+preview+"\"") {
		t.Errorf("confirmation %q missing truncated preview %q", msg.Body, preview)
	}
}

func TestEnquirySaveFailureKeepsState(t *testing.T) {
	env := newTestEnv(&failingStore{Store: store.NewInMemoryStore(), failEnquiries: true})
	ctx := context.Background()
	sess := env.newSession("u1")
	env.engine.enterEnquiry(ctx, sess, Input{})

	msg := env.engine.handleEnquiry(ctx, sess, textInput("Do you take card payments?"))
	if !strings.Contains(msg.Body, "issue saving your enquiry") {
		t.Errorf("expected apology, got %q", msg.Body)
	}
	if sess.CurrentState != models.StateEnquiry {
		t.Errorf("state = %s, want unchanged for retry", sess.CurrentState)
	}
}

func TestEnquiryBackReturnsToMainMenu(t *testing.T) {
	captured := &capturingEnquiryStore{Store: store.NewInMemoryStore()}
	env := newTestEnv(captured)
	ctx := context.Background()
	sess := env.newSession("u1")
	env.engine.enterEnquiry(ctx, sess, Input{})

	msg := env.engine.handleEnquiry(ctx, sess, textInput("back"))
	if sess.CurrentState != models.StateGreeting {
		t.Errorf("state = %s, want main menu", sess.CurrentState)
	}
	if len(msg.Buttons) != 3 {
		t.Errorf("main menu buttons = %d, want 3", len(msg.Buttons))
	}
	if len(captured.saved) != 0 {
		t.Errorf("back created %d records", len(captured.saved))
	}
}
