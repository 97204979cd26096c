package session

import (
	"testing"
	"time"

	"github.com/chowline/orderbot/internal/models"
)

func TestGetOrCreateNewSession(t *testing.T) {
	s := NewStore()

	sess := s.GetOrCreate("2348001")
	if sess == nil {
		t.Fatal("GetOrCreate returned nil")
	}
	if sess.ID != "2348001" {
		t.Errorf("session ID = %q, want %q", sess.ID, "2348001")
	}
	if sess.CurrentState != models.StateStart {
		t.Errorf("new session state = %q, want %q", sess.CurrentState, models.StateStart)
	}
	if sess.CurrentHandler != models.HandlerGreeting {
		t.Errorf("new session handler = %q, want %q", sess.CurrentHandler, models.HandlerGreeting)
	}
	if s.Count() != 1 {
		t.Errorf("Count = %d, want 1", s.Count())
	}

	// Second call returns the same session.
	again := s.GetOrCreate("2348001")
	if again != sess {
		t.Error("GetOrCreate returned a different session for the same ID")
	}
}

func TestSessionMutationPersists(t *testing.T) {
	s := NewStore()

	sess := s.GetOrCreate("2348001")
	sess.UserName = "Ada"
	sess.Transition(models.HandlerComplaint, models.StateComplain)

	again := s.GetOrCreate("2348001")
	if again.UserName != "Ada" {
		t.Errorf("UserName = %q, want %q", again.UserName, "Ada")
	}
	if again.CurrentState != models.StateComplain {
		t.Errorf("CurrentState = %q, want %q", again.CurrentState, models.StateComplain)
	}
}

func TestTimeoutResetPreservesIdentity(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	s := NewStore(WithTimeout(30*time.Minute), WithClock(clock))

	sess := s.GetOrCreate("2348001")
	sess.UserName = "Ada"
	sess.PreferredName = "Adaeze"
	sess.Address = "12 Riverside Close"
	sess.Cart = sess.Cart.Add("Jollof Rice", 2, 1500)
	sess.FeedbackFlow = &models.FeedbackData{OrderID: "ORD-1"}
	sess.Transition(models.HandlerFeedback, models.StateFeedbackRating)

	// Advance past the timeout.
	now = now.Add(31 * time.Minute)

	sess = s.GetOrCreate("2348001")
	if sess.UserName != "Ada" || sess.PreferredName != "Adaeze" {
		t.Errorf("identity not preserved across reset: %q / %q", sess.UserName, sess.PreferredName)
	}
	if sess.Address != "12 Riverside Close" {
		t.Errorf("address not preserved across reset: %q", sess.Address)
	}
	if !sess.Cart.IsEmpty() {
		t.Errorf("cart not cleared on reset: %+v", sess.Cart)
	}
	if sess.FeedbackFlow != nil {
		t.Error("flow scratch data not cleared on reset")
	}
	if sess.CurrentState != models.StateStart {
		t.Errorf("state after reset = %q, want %q", sess.CurrentState, models.StateStart)
	}
}

func TestTimeoutNotTriggeredWhileActive(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	s := NewStore(WithTimeout(30*time.Minute), WithClock(clock))

	sess := s.GetOrCreate("2348001")
	sess.Cart = sess.Cart.Add("Jollof Rice", 1, 1500)

	// Repeated access inside the window keeps the session alive.
	for i := 0; i < 3; i++ {
		now = now.Add(20 * time.Minute)
		sess = s.GetOrCreate("2348001")
	}
	if sess.Cart.IsEmpty() {
		t.Error("cart cleared despite activity inside the timeout window")
	}
}

func TestClearRemovesSession(t *testing.T) {
	s := NewStore()
	sess := s.GetOrCreate("2348001")
	sess.UserName = "Ada"

	s.Clear("2348001")
	if s.Get("2348001") != nil {
		t.Error("Get returned a session after Clear")
	}

	// Fresh session has no remembered identity.
	sess = s.GetOrCreate("2348001")
	if sess.UserName != "" {
		t.Errorf("UserName survived Clear: %q", sess.UserName)
	}
}

func TestCleanupExpired(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	s := NewStore(WithTimeout(30*time.Minute), WithClock(clock))

	s.GetOrCreate("2348001")
	now = now.Add(10 * time.Minute)
	s.GetOrCreate("2348002")

	now = now.Add(25 * time.Minute)
	removed := s.CleanupExpired()
	if removed != 1 {
		t.Errorf("CleanupExpired removed %d sessions, want 1", removed)
	}
	if s.Get("2348001") != nil {
		t.Error("expired session still present after cleanup")
	}
	if s.Get("2348002") == nil {
		t.Error("active session removed by cleanup")
	}
}
