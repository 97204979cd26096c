package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/chowline/orderbot/internal/geo"
	"github.com/chowline/orderbot/internal/models"
)

func TestAddressMenuOmitsMapsSearchWhenUnavailable(t *testing.T) {
	env := newTestEnv(nil)
	env.geocoder.Available = false
	sess := env.newSession("u1")

	msg := env.engine.enterAddressFlow(context.Background(), sess, false)
	if strings.Contains(msg.Body, "Search on maps") {
		t.Errorf("menu offers maps search while geocoding unavailable: %q", msg.Body)
	}
	for _, opt := range sess.AddressFlow.MenuOptions {
		if opt == optionSearchOnMaps {
			t.Errorf("menu options include %s while unavailable", optionSearchOnMaps)
		}
	}
}

func TestAddressMenuProbesAvailabilityPerOffer(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()
	sess := env.newSession("u1")

	env.geocoder.Available = false
	msg := env.engine.enterAddressFlow(ctx, sess, false)
	if strings.Contains(msg.Body, "Search on maps") {
		t.Fatalf("maps search offered while unavailable")
	}

	// A credential fix is picked up on the next offer.
	env.geocoder.Available = true
	msg = env.engine.enterAddressFlow(ctx, sess, false)
	if !strings.Contains(msg.Body, "Search on maps") {
		t.Errorf("maps search not re-offered after availability restored: %q", msg.Body)
	}
}

func TestLiveLocationPlaceholderLabelReverseGeocodes(t *testing.T) {
	env := newTestEnv(nil)
	env.geocoder.ReverseResult = "12 Example St"
	ctx := context.Background()
	sess := env.newSession("u1")
	fillCart(sess)
	env.engine.enterAddressFlow(ctx, sess, false)

	msg := env.engine.HandleLiveLocation(ctx, sess, models.Location{
		Latitude: 6.5, Longitude: 3.3, Name: "unknown",
	})
	if sess.CurrentState != models.StateConfirmDetectedLocation {
		t.Fatalf("state = %s, want %s", sess.CurrentState, models.StateConfirmDetectedLocation)
	}
	if sess.AddressFlow.TempAddress != "12 Example St" {
		t.Errorf("temp address = %q, want resolved address", sess.AddressFlow.TempAddress)
	}
	if len(msg.Buttons) != 2 || msg.Buttons[0].ID != optionConfirmLoc || msg.Buttons[1].ID != optionChooseDiff {
		t.Errorf("buttons = %+v, want confirm/choose-different pair", msg.Buttons)
	}

	msg = env.engine.handleConfirmDetectedLocation(ctx, sess, textInput("confirm_location"))
	if sess.CurrentState != models.StateConfirmOrder {
		t.Fatalf("state = %s, want %s", sess.CurrentState, models.StateConfirmOrder)
	}
	if sess.Address != "12 Example St" {
		t.Errorf("session address = %q, want confirmed address", sess.Address)
	}
	if !strings.Contains(msg.Body, "12 Example St") {
		t.Errorf("order confirmation missing address: %q", msg.Body)
	}
}

func TestLiveLocationTrustsExplicitLabel(t *testing.T) {
	env := newTestEnv(nil)
	env.geocoder.ReverseErr = errSave{} // reverse geocoding must not be consulted
	sess := env.newSession("u1")

	env.engine.HandleLiveLocation(context.Background(), sess, models.Location{
		Latitude: 6.45, Longitude: 3.4, Address: "Eko Hotel, Victoria Island",
	})
	if sess.CurrentState != models.StateConfirmDetectedLocation {
		t.Fatalf("state = %s, want %s", sess.CurrentState, models.StateConfirmDetectedLocation)
	}
	if sess.AddressFlow.TempAddress != "Eko Hotel, Victoria Island" {
		t.Errorf("temp address = %q, want transport label", sess.AddressFlow.TempAddress)
	}
}

func TestLiveLocationReverseFailureFallsBackToCoordinates(t *testing.T) {
	env := newTestEnv(nil)
	env.geocoder.ReverseErr = errSave{}
	sess := env.newSession("u1")

	msg := env.engine.HandleLiveLocation(context.Background(), sess, models.Location{
		Latitude: 6.5, Longitude: 3.3,
	})
	if sess.CurrentState != models.StateConfirmCoordinates {
		t.Fatalf("state = %s, want %s", sess.CurrentState, models.StateConfirmCoordinates)
	}
	if !strings.Contains(msg.Body, "6.5") || !strings.Contains(msg.Body, "3.3") {
		t.Errorf("expected raw coordinates in prompt, got %q", msg.Body)
	}
	if sess.AddressFlow.TempAddress != "Location: 6.500000, 3.300000" {
		t.Errorf("temp address = %q", sess.AddressFlow.TempAddress)
	}
}

func TestConfirmCoordinatesAccept(t *testing.T) {
	env := newTestEnv(nil)
	env.geocoder.ReverseErr = errSave{}
	ctx := context.Background()
	sess := env.newSession("u1")
	fillCart(sess)

	env.engine.HandleLiveLocation(ctx, sess, models.Location{Latitude: 6.5, Longitude: 3.3})
	env.engine.handleConfirmCoordinates(ctx, sess, textInput("use_coordinates"))

	if sess.CurrentState != models.StateConfirmOrder {
		t.Fatalf("state = %s, want %s", sess.CurrentState, models.StateConfirmOrder)
	}
	if sess.Address != "Location: 6.500000, 3.300000" {
		t.Errorf("session address = %q, want coordinates fallback", sess.Address)
	}
	if sess.Coordinates == nil || sess.Coordinates.Latitude != 6.5 {
		t.Errorf("session coordinates = %+v", sess.Coordinates)
	}
}

func TestConfirmCoordinatesRejectGoesToManualEntry(t *testing.T) {
	env := newTestEnv(nil)
	env.geocoder.ReverseErr = errSave{}
	ctx := context.Background()
	sess := env.newSession("u1")

	env.engine.HandleLiveLocation(ctx, sess, models.Location{Latitude: 6.5, Longitude: 3.3})
	env.engine.handleConfirmCoordinates(ctx, sess, textInput("type_address_instead"))

	if sess.CurrentState != models.StateManualAddressEntry {
		t.Errorf("state = %s, want %s", sess.CurrentState, models.StateManualAddressEntry)
	}
}

func TestConfirmAddressWithEmptyCartResets(t *testing.T) {
	env := newTestEnv(nil)
	env.geocoder.ReverseResult = "12 Example St"
	ctx := context.Background()
	sess := env.newSession("u1")

	env.engine.HandleLiveLocation(ctx, sess, models.Location{Latitude: 6.5, Longitude: 3.3, Name: "unknown"})
	msg := env.engine.handleConfirmDetectedLocation(ctx, sess, textInput("confirm_location"))

	if !strings.Contains(msg.Body, "cart is empty") {
		t.Errorf("expected empty-cart error, got %q", msg.Body)
	}
	if sess.CurrentState != models.StateGreeting {
		t.Errorf("state = %s, want reset to %s", sess.CurrentState, models.StateGreeting)
	}
}

func TestTextWhileAwaitingLocationReoffersOptions(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()
	sess := env.newSession("u1")
	env.engine.enterAddressFlow(ctx, sess, false)
	env.engine.handleAddressCollectionMenu(ctx, sess, textInput("1"))
	if sess.CurrentState != models.StateAwaitingLiveLocation {
		t.Fatalf("state = %s, want %s", sess.CurrentState, models.StateAwaitingLiveLocation)
	}

	msg := env.engine.handleAwaitingLiveLocation(ctx, sess, textInput("hello?"))
	if sess.CurrentState != models.StateAddressCollectionMenu {
		t.Errorf("state = %s, want back at collection menu", sess.CurrentState)
	}
	if !strings.Contains(msg.Body, "Share current location") {
		t.Errorf("share option not re-offered: %q", msg.Body)
	}
}

func TestMapsSearchEmptyInputReprompts(t *testing.T) {
	env := newTestEnv(nil)
	sess := env.newSession("u1")
	sess.AddressFlow = &models.AddressData{}
	sess.Transition(models.HandlerAddress, models.StateMapsSearchInput)

	msg := env.engine.handleMapsSearchInput(context.Background(), sess, textInput("   "))
	if sess.CurrentState != models.StateMapsSearchInput {
		t.Errorf("state changed on empty input: %s", sess.CurrentState)
	}
	if !strings.Contains(msg.Body, "type a place") {
		t.Errorf("expected re-prompt, got %q", msg.Body)
	}
}

func TestMapsSearchNoMatchOffersAlternatives(t *testing.T) {
	env := newTestEnv(nil)
	sess := env.newSession("u1")
	sess.AddressFlow = &models.AddressData{}
	sess.Transition(models.HandlerAddress, models.StateMapsSearchInput)

	msg := env.engine.handleMapsSearchInput(context.Background(), sess, textInput("Nonexistent Place 12345"))
	if sess.CurrentState != models.StateMapsSearchInput {
		t.Errorf("state = %s, want unchanged", sess.CurrentState)
	}
	if !strings.Contains(msg.Body, "couldn't find") {
		t.Errorf("expected not-found message, got %q", msg.Body)
	}
	if !strings.Contains(msg.Body, "location") || !strings.Contains(msg.Body, "manually") {
		t.Errorf("not-found message missing alternatives: %q", msg.Body)
	}
}

func TestMapsSearchResolvesToConfirmation(t *testing.T) {
	env := newTestEnv(nil)
	env.geocoder.ForwardResult = &geo.Result{
		Address:     "Allen Avenue, Ikeja, Lagos",
		Coordinates: models.Coordinates{Latitude: 6.6, Longitude: 3.35},
	}
	sess := env.newSession("u1")
	sess.AddressFlow = &models.AddressData{}
	sess.Transition(models.HandlerAddress, models.StateMapsSearchInput)

	msg := env.engine.handleMapsSearchInput(context.Background(), sess, textInput("allen avenue"))
	if sess.CurrentState != models.StateConfirmMapsResult {
		t.Fatalf("state = %s, want %s", sess.CurrentState, models.StateConfirmMapsResult)
	}
	if !strings.Contains(msg.Body, "Allen Avenue, Ikeja, Lagos") {
		t.Errorf("result address not shown: %q", msg.Body)
	}
	if len(msg.Buttons) != 3 {
		t.Errorf("buttons = %d, want 3", len(msg.Buttons))
	}
}

func TestMapsSearchCoordinatesWithoutLabelFallsBack(t *testing.T) {
	env := newTestEnv(nil)
	env.geocoder.ForwardResult = &geo.Result{
		Coordinates: models.Coordinates{Latitude: 6.6, Longitude: 3.35},
	}
	sess := env.newSession("u1")
	sess.AddressFlow = &models.AddressData{}
	sess.Transition(models.HandlerAddress, models.StateMapsSearchInput)

	env.engine.handleMapsSearchInput(context.Background(), sess, textInput("somewhere"))
	if sess.CurrentState != models.StateConfirmCoordinates {
		t.Errorf("state = %s, want %s", sess.CurrentState, models.StateConfirmCoordinates)
	}
}

func TestManualAddressValidation(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"too short", "a", false},
		{"short street", "12 Main", false},
		{"punctuation only", "!!!???...!!!???", false},
		{"full address", "12 Example Street, Lagos", true},
		{"letters only but long", "Behind the big water tank", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := validManualAddress(tt.input); got != tt.valid {
				t.Errorf("validManualAddress(%q) = %v, want %v", tt.input, got, tt.valid)
			}
		})
	}
}

func TestManualAddressRejectedThenAccepted(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()
	sess := env.newSession("u1")
	fillCart(sess)
	sess.AddressFlow = &models.AddressData{}
	sess.Transition(models.HandlerAddress, models.StateManualAddressEntry)

	msg := env.engine.handleManualAddressEntry(ctx, sess, textInput("a"))
	if sess.CurrentState != models.StateManualAddressEntry {
		t.Fatalf("state = %s, want unchanged after rejection", sess.CurrentState)
	}
	if !strings.Contains(msg.Body, "street") {
		t.Errorf("rejection should explain expected shape: %q", msg.Body)
	}

	msg = env.engine.handleManualAddressEntry(ctx, sess, textInput("12 Example Street, Lagos"))
	if sess.CurrentState != models.StateConfirmOrder {
		t.Fatalf("state = %s, want %s", sess.CurrentState, models.StateConfirmOrder)
	}
	if sess.Address != "12 Example Street, Lagos" {
		t.Errorf("session address = %q", sess.Address)
	}
}

func TestManualAddressGeocodeFailureDoesNotBlock(t *testing.T) {
	env := newTestEnv(nil)
	env.geocoder.ForwardErr = errSave{}
	sess := env.newSession("u1")
	fillCart(sess)
	sess.AddressFlow = &models.AddressData{}
	sess.Transition(models.HandlerAddress, models.StateManualAddressEntry)

	env.engine.handleManualAddressEntry(context.Background(), sess, textInput("12 Example Street, Lagos"))
	if sess.CurrentState != models.StateConfirmOrder {
		t.Errorf("state = %s, want %s despite geocode failure", sess.CurrentState, models.StateConfirmOrder)
	}
	if sess.Coordinates != nil {
		t.Errorf("coordinates = %+v, want nil", sess.Coordinates)
	}
}

func TestSavedAddressShortcut(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()
	if err := env.records.UpsertUserProfile(models.UserProfile{
		OwnerKey:  "u1",
		Address:   "45 Awolowo Road, Ikoyi",
		UpdatedAt: testClock,
	}); err != nil {
		t.Fatalf("UpsertUserProfile() error = %v", err)
	}
	sess := env.newSession("u1")
	fillCart(sess)

	msg := env.engine.enterAddressFlow(ctx, sess, false)
	if !strings.Contains(msg.Body, "Use saved address") {
		t.Fatalf("saved address option missing: %q", msg.Body)
	}

	savedIdx := 0
	for i, opt := range sess.AddressFlow.MenuOptions {
		if opt == optionUseSaved {
			savedIdx = i + 1
		}
	}
	msg = env.engine.handleAddressCollectionMenu(ctx, sess, textInput(string(rune('0'+savedIdx))))
	if sess.CurrentState != models.StateConfirmOrder {
		t.Fatalf("state = %s, want %s", sess.CurrentState, models.StateConfirmOrder)
	}
	if sess.Address != "45 Awolowo Road, Ikoyi" {
		t.Errorf("session address = %q, want saved address", sess.Address)
	}
}

func TestAddressMenuFromConfirmOrderOmitsSavedOption(t *testing.T) {
	env := newTestEnv(nil)
	if err := env.records.UpsertUserProfile(models.UserProfile{
		OwnerKey:  "u1",
		Address:   "45 Awolowo Road, Ikoyi",
		UpdatedAt: testClock,
	}); err != nil {
		t.Fatalf("UpsertUserProfile() error = %v", err)
	}
	sess := env.newSession("u1")

	msg := env.engine.enterAddressFlow(context.Background(), sess, true)
	if strings.Contains(msg.Body, "Use saved address") {
		t.Errorf("saved address offered while replacing it: %q", msg.Body)
	}
	if !sess.AddressFlow.FromConfirmOrder {
		t.Errorf("FromConfirmOrder not recorded")
	}
}
