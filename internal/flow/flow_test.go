package flow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/chowline/orderbot/internal/catalog"
	"github.com/chowline/orderbot/internal/models"
	"github.com/chowline/orderbot/internal/session"
	"github.com/chowline/orderbot/internal/store"
	"github.com/chowline/orderbot/internal/testutil"
)

var testClock = time.Date(2024, 3, 15, 10, 30, 45, 0, time.UTC)

// testEnv bundles an engine with its collaborators for flow tests.
type testEnv struct {
	engine   *Engine
	sessions *session.Store
	records  store.Store
	geocoder *testutil.FakeGeocoder
	clock    *time.Time
}

func newTestEnv(records store.Store) *testEnv {
	if records == nil {
		records = store.NewInMemoryStore()
	}
	sessions := session.NewStore()
	geocoder := testutil.NewFakeGeocoder()
	now := testClock
	env := &testEnv{
		sessions: sessions,
		records:  records,
		geocoder: geocoder,
		clock:    &now,
	}
	env.engine = NewEngine(sessions, records, geocoder, catalog.NewDefaultProvider(),
		WithClock(func() time.Time { return *env.clock }))
	return env
}

func (env *testEnv) newSession(id string) *models.Session {
	return env.sessions.GetOrCreate(id)
}

func textInput(text string) Input {
	return Input{Text: strings.ToLower(strings.TrimSpace(text)), Original: text}
}

// fillCart puts one line into the cart so confirmation paths can proceed.
func fillCart(sess *models.Session) {
	sess.Cart = sess.Cart.Add("Jollof Rice", 2, 1500)
}

// failingStore wraps a Store and fails selected save operations.
type failingStore struct {
	store.Store
	failComplaints bool
	failFeedback   bool
	failOrders     bool
	failEnquiries  bool
}

type errSave struct{}

func (errSave) Error() string { return "store unavailable" }

func (f *failingStore) SaveComplaint(c models.ComplaintRecord) error {
	if f.failComplaints {
		return errSave{}
	}
	return f.Store.SaveComplaint(c)
}

func (f *failingStore) SaveFeedback(r models.FeedbackRecord) error {
	if f.failFeedback {
		return errSave{}
	}
	return f.Store.SaveFeedback(r)
}

func (f *failingStore) SaveOrder(o models.OrderRecord) error {
	if f.failOrders {
		return errSave{}
	}
	return f.Store.SaveOrder(o)
}

func (f *failingStore) SaveEnquiry(e models.EnquiryRecord) error {
	if f.failEnquiries {
		return errSave{}
	}
	return f.Store.SaveEnquiry(e)
}

func TestGreetingNewUserCollectsPreferredName(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()
	sess := env.newSession("2348012345678")

	msg := env.engine.handleStart(ctx, sess, textInput("hi"))
	if sess.CurrentState != models.StateCollectPreferredName {
		t.Fatalf("state = %s, want %s", sess.CurrentState, models.StateCollectPreferredName)
	}
	if !strings.Contains(msg.Body, "call you") {
		t.Errorf("expected name prompt, got %q", msg.Body)
	}

	msg = env.engine.handleCollectPreferredName(ctx, sess, textInput("Ada"))
	if sess.CurrentState != models.StateGreeting {
		t.Errorf("state = %s, want %s", sess.CurrentState, models.StateGreeting)
	}
	if !strings.Contains(msg.Body, "Ada") {
		t.Errorf("expected greeting with name, got %q", msg.Body)
	}
	if len(msg.Buttons) != 3 {
		t.Errorf("main menu buttons = %d, want 3", len(msg.Buttons))
	}

	profile, err := env.records.GetUserProfile(sess.ID)
	if err != nil || profile == nil {
		t.Fatalf("GetUserProfile() = %v, %v", profile, err)
	}
	if profile.PreferredName != "Ada" {
		t.Errorf("profile preferred name = %q, want Ada", profile.PreferredName)
	}
}

func TestGreetingKnownUserGoesStraightToMenu(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()
	if err := env.records.UpsertUserProfile(models.UserProfile{
		OwnerKey:      "2348012345678",
		PreferredName: "Ada",
		Address:       "12 Allen Avenue, Ikeja, Lagos",
		UpdatedAt:     testClock,
	}); err != nil {
		t.Fatalf("UpsertUserProfile() error = %v", err)
	}

	sess := env.newSession("2348012345678")
	msg := env.engine.handleStart(ctx, sess, textInput("hello"))
	if sess.CurrentState != models.StateGreeting {
		t.Fatalf("state = %s, want %s", sess.CurrentState, models.StateGreeting)
	}
	if !strings.Contains(msg.Body, "Welcome back Ada") {
		t.Errorf("expected welcome back, got %q", msg.Body)
	}
	if sess.Address != "12 Allen Avenue, Ikeja, Lagos" {
		t.Errorf("session address = %q, want profile address", sess.Address)
	}
}

func TestGreetingInvalidOptionRepromptsMenu(t *testing.T) {
	env := newTestEnv(nil)
	sess := env.newSession("u1")
	sess.Transition(models.HandlerGreeting, models.StateGreeting)

	msg := env.engine.handleGreeting(context.Background(), sess, textInput("xyzzy"))
	if sess.CurrentState != models.StateGreeting {
		t.Errorf("state changed to %s on invalid option", sess.CurrentState)
	}
	if len(msg.Buttons) != 3 {
		t.Errorf("expected main menu buttons, got %d", len(msg.Buttons))
	}
}

func TestMenuBrowseAndAddToCart(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()
	sess := env.newSession("u1")
	sess.Transition(models.HandlerGreeting, models.StateGreeting)

	msg := env.engine.handleGreeting(ctx, sess, textInput("1"))
	if sess.CurrentState != models.StateMenu {
		t.Fatalf("state = %s, want %s", sess.CurrentState, models.StateMenu)
	}
	if !strings.Contains(msg.Body, "Rice Dishes") {
		t.Errorf("expected categories listed, got %q", msg.Body)
	}

	msg = env.engine.handleMenu(ctx, sess, textInput("1"))
	if sess.CurrentState != models.StateCategorySelected {
		t.Fatalf("state = %s, want %s", sess.CurrentState, models.StateCategorySelected)
	}

	msg = env.engine.handleCategorySelected(ctx, sess, textInput("Jollof Rice"))
	if sess.CurrentState != models.StateQuantity {
		t.Fatalf("state = %s, want %s", sess.CurrentState, models.StateQuantity)
	}
	if !strings.Contains(msg.Body, "How many") {
		t.Errorf("expected quantity prompt, got %q", msg.Body)
	}

	msg = env.engine.handleQuantity(ctx, sess, textInput("2"))
	if sess.CurrentState != models.StateOrderSummary {
		t.Fatalf("state = %s, want %s", sess.CurrentState, models.StateOrderSummary)
	}
	if len(sess.Cart) != 1 || sess.Cart[0].Quantity != 2 {
		t.Errorf("cart = %+v, want one line of quantity 2", sess.Cart)
	}
	if !strings.Contains(msg.Body, "Jollof Rice") {
		t.Errorf("expected cart summary, got %q", msg.Body)
	}
}

func TestQuantityRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	for _, input := range []string{"zero", "-1", "0", ""} {
		sess := env.newSession("u-" + input)
		sess.MenuFlow = &models.MenuData{SelectedCategory: "Rice Dishes", SelectedItem: "Jollof Rice"}
		sess.Transition(models.HandlerOrder, models.StateQuantity)

		msg := env.engine.handleQuantity(ctx, sess, textInput(input))
		if sess.CurrentState != models.StateQuantity {
			t.Errorf("input %q: state = %s, want unchanged", input, sess.CurrentState)
		}
		if !strings.Contains(msg.Body, "greater than zero") {
			t.Errorf("input %q: expected re-prompt, got %q", input, msg.Body)
		}
	}
}

func TestOrderSummaryRemoveAndCancel(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	sess := env.newSession("u1")
	fillCart(sess)
	sess.Cart = sess.Cart.Add("Coke", 1, 500)
	sess.Transition(models.HandlerOrder, models.StateOrderSummary)

	msg := env.engine.handleOrderSummary(ctx, sess, textInput("remove"))
	if sess.CurrentState != models.StateRemoveItemSelection {
		t.Fatalf("state = %s, want %s", sess.CurrentState, models.StateRemoveItemSelection)
	}

	msg = env.engine.handleRemoveItemSelection(ctx, sess, textInput("2"))
	if len(sess.Cart) != 1 || sess.Cart[0].Name != "Jollof Rice" {
		t.Errorf("cart after removal = %+v", sess.Cart)
	}
	if sess.CurrentState != models.StateOrderSummary {
		t.Errorf("state = %s, want back at summary", sess.CurrentState)
	}

	msg = env.engine.handleOrderSummary(ctx, sess, textInput("cancel"))
	if !sess.Cart.IsEmpty() {
		t.Errorf("cart not cleared on cancel: %+v", sess.Cart)
	}
	if sess.CurrentState != models.StateGreeting {
		t.Errorf("state = %s, want %s", sess.CurrentState, models.StateGreeting)
	}
	if !strings.Contains(msg.Body, "cancelled") {
		t.Errorf("expected cancellation message, got %q", msg.Body)
	}
}

func TestCheckoutWithoutAddressEntersAddressFlow(t *testing.T) {
	env := newTestEnv(nil)
	sess := env.newSession("u1")
	fillCart(sess)
	sess.Transition(models.HandlerOrder, models.StateOrderSummary)

	env.engine.handleOrderSummary(context.Background(), sess, textInput("checkout"))
	if sess.CurrentState != models.StateAddressCollectionMenu {
		t.Fatalf("state = %s, want %s", sess.CurrentState, models.StateAddressCollectionMenu)
	}
	if sess.AddressFlow == nil || sess.AddressFlow.FromConfirmOrder {
		t.Errorf("AddressFlow = %+v, want scratch without FromConfirmOrder", sess.AddressFlow)
	}
}

func TestCompleteOrderSavesRecordAndStartsFeedback(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()
	sess := env.newSession("2348012345678")
	sess.PreferredName = "Ada"
	sess.Address = "12 Allen Avenue, Ikeja, Lagos"
	fillCart(sess)
	sess.Transition(models.HandlerOrder, models.StateOrderSummary)

	msg := env.engine.handleOrderSummary(ctx, sess, textInput("checkout"))
	if sess.CurrentState != models.StatePromptAddNote {
		t.Fatalf("state = %s, want %s", sess.CurrentState, models.StatePromptAddNote)
	}

	msg = env.engine.handlePromptAddNote(ctx, sess, textInput("2"))
	if sess.CurrentState != models.StateConfirmOrder {
		t.Fatalf("state = %s, want %s", sess.CurrentState, models.StateConfirmOrder)
	}
	if !strings.Contains(msg.Body, "12 Allen Avenue") || !strings.Contains(msg.Body, "Jollof Rice") {
		t.Errorf("confirmation missing address or cart: %q", msg.Body)
	}

	msg = env.engine.handleConfirmOrder(ctx, sess, textInput("final_confirm"))
	if sess.CurrentState != models.StateFeedbackRating {
		t.Fatalf("state = %s, want %s", sess.CurrentState, models.StateFeedbackRating)
	}
	if !strings.Contains(msg.Body, "Order ID: ORD-") {
		t.Errorf("expected order id in feedback prompt, got %q", msg.Body)
	}
	if !sess.Cart.IsEmpty() {
		t.Errorf("cart not cleared after order completion")
	}

	orders, err := env.records.ListOrders(sess.ID)
	if err != nil || len(orders) != 1 {
		t.Fatalf("ListOrders() = %v, %v, want one order", orders, err)
	}
	order := orders[0]
	if !strings.HasPrefix(order.ID, "ORD-") {
		t.Errorf("order id = %q, want ORD- prefix", order.ID)
	}
	if order.Status != models.RecordStatusPending {
		t.Errorf("order status = %s, want pending", order.Status)
	}
	// Subtotal 3000 + delivery 500 + 10% service.
	if order.TotalAmount != 3000+500+300 {
		t.Errorf("order total = %v, want 3800", order.TotalAmount)
	}
	if sess.FeedbackFlow == nil || sess.FeedbackFlow.OrderID != order.ID {
		t.Errorf("feedback flow = %+v, want order id %s", sess.FeedbackFlow, order.ID)
	}
}

func TestCompleteOrderSaveFailureKeepsState(t *testing.T) {
	env := newTestEnv(&failingStore{Store: store.NewInMemoryStore(), failOrders: true})
	sess := env.newSession("u1")
	sess.Address = "12 Allen Avenue, Ikeja, Lagos"
	fillCart(sess)
	sess.Transition(models.HandlerOrder, models.StateConfirmOrder)

	msg := env.engine.handleConfirmOrder(context.Background(), sess, textInput("final_confirm"))
	if !strings.Contains(msg.Body, "error processing your order") {
		t.Errorf("expected apology, got %q", msg.Body)
	}
	if sess.CurrentState != models.StateConfirmOrder {
		t.Errorf("state = %s, want unchanged for retry", sess.CurrentState)
	}
	if sess.Cart.IsEmpty() {
		t.Errorf("cart cleared despite save failure")
	}
}
