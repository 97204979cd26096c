package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/chowline/orderbot/internal/geo"
	"github.com/chowline/orderbot/internal/models"
)

// Manual address validation bounds.
const minManualAddressLength = 10

// Address flow option ids.
const (
	optionShareLocation  = "share_current_location"
	optionSearchOnMaps   = "search_on_maps"
	optionTypeManually   = "type_address_manually"
	optionUseSaved       = "use_saved_address"
	optionConfirmLoc     = "confirm_location"
	optionChooseDiff     = "choose_different"
	optionUseMapsResult  = "use_maps_result"
	optionSearchAgain    = "search_again"
	optionManualInstead  = "type_manually"
	optionUseCoordinates = "use_coordinates"
	optionTypeInstead    = "type_address_instead"
)

// addressMenuLabels maps option ids to their display labels.
var addressMenuLabels = map[string]string{
	optionShareLocation: "📍 Share current location",
	optionSearchOnMaps:  "🔎 Search on maps",
	optionTypeManually:  "⌨️ Type address manually",
	optionUseSaved:      "🏠 Use saved address",
}

// enterAddressFlow presents the address collection menu. The geocoding
// capability is probed on every offer so a credential fix is picked up on
// the next prompt; the map-search option is omitted while unavailable. The
// saved-address shortcut appears only when a profile address exists and the
// flow was not entered to replace that very address.
func (e *Engine) enterAddressFlow(ctx context.Context, sess *models.Session, fromConfirmOrder bool) models.OutboundMessage {
	options := []string{optionShareLocation}
	if e.geocoder.IsAvailable(ctx) {
		options = append(options, optionSearchOnMaps)
	} else {
		slog.Info("Flow address menu omitting maps search", "session", sess.ID)
	}
	options = append(options, optionTypeManually)

	savedAddress := ""
	if !fromConfirmOrder {
		if profile, err := e.records.GetUserProfile(sess.ID); err != nil {
			slog.Error("Flow address profile lookup failed", "session", sess.ID, "error", err)
		} else if profile != nil && profile.Address != "" {
			savedAddress = profile.Address
			options = append(options, optionUseSaved)
		}
	}

	sess.AddressFlow = &models.AddressData{
		FromConfirmOrder: fromConfirmOrder,
		MenuOptions:      options,
	}
	sess.Transition(models.HandlerAddress, models.StateAddressCollectionMenu)

	var b strings.Builder
	b.WriteString("📍 *Delivery Address*\n\nHow would you like to provide your delivery address?\n\n")
	for i, opt := range options {
		label := addressMenuLabels[opt]
		if opt == optionUseSaved {
			label = fmt.Sprintf("%s (%s)", label, truncatePreview(savedAddress, 40))
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, label)
	}
	b.WriteString("\nReply with a number.")
	return models.TextMessage(sess.ID, b.String())
}

// enterAddressMenu adapts enterAddressFlow to the recovery handler shape.
func (e *Engine) enterAddressMenu(ctx context.Context, sess *models.Session, _ Input) models.OutboundMessage {
	fromConfirmOrder := sess.AddressFlow != nil && sess.AddressFlow.FromConfirmOrder
	return e.enterAddressFlow(ctx, sess, fromConfirmOrder)
}

// handleAddressCollectionMenu resolves the menu selection against the
// options actually offered.
func (e *Engine) handleAddressCollectionMenu(ctx context.Context, sess *models.Session, in Input) models.OutboundMessage {
	if sess.AddressFlow == nil {
		return e.enterAddressFlow(ctx, sess, false)
	}

	choice := matchOption(in.Text, sess.AddressFlow.MenuOptions...)
	if choice == "" {
		switch {
		case strings.Contains(in.Text, "share"), strings.Contains(in.Text, "location"):
			choice = optionShareLocation
		case strings.Contains(in.Text, "map"), strings.Contains(in.Text, "search"):
			choice = optionSearchOnMaps
		case strings.Contains(in.Text, "manual"), strings.Contains(in.Text, "type"):
			choice = optionTypeManually
		case strings.Contains(in.Text, "saved"):
			choice = optionUseSaved
		}
	}
	offered := false
	for _, opt := range sess.AddressFlow.MenuOptions {
		if opt == choice {
			offered = true
			break
		}
	}
	if !offered {
		choice = ""
	}

	switch choice {
	case optionShareLocation:
		sess.Transition(models.HandlerAddress, models.StateAwaitingLiveLocation)
		return models.TextMessage(sess.ID,
			"📍 Please share your current location:\n\nTap the attachment (📎) icon, choose *Location*, then *Send your current location*.")
	case optionSearchOnMaps:
		sess.Transition(models.HandlerAddress, models.StateMapsSearchInput)
		return e.mapsSearchPrompt(sess)
	case optionTypeManually:
		sess.Transition(models.HandlerAddress, models.StateManualAddressEntry)
		return e.manualEntryPrompt(sess)
	case optionUseSaved:
		return e.useSavedAddress(ctx, sess)
	}

	slog.Debug("Flow address menu invalid option", "session", sess.ID, "input", in.Text)
	fromConfirmOrder := sess.AddressFlow.FromConfirmOrder
	msg := e.enterAddressFlow(ctx, sess, fromConfirmOrder)
	msg.Body = "I didn't understand that.\n\n" + msg.Body
	return msg
}

func (e *Engine) mapsSearchPrompt(sess *models.Session) models.OutboundMessage {
	return models.TextMessage(sess.ID,
		"🔎 Type the name of a place, street, or area to search (e.g., 'Allen Avenue, Ikeja'):")
}

func (e *Engine) manualEntryPrompt(sess *models.Session) models.OutboundMessage {
	return models.TextMessage(sess.ID,
		"⌨️ Please type your full delivery address, including street, area, and city (e.g., '12 Allen Avenue, Ikeja, Lagos'):")
}

// useSavedAddress applies the profile address and proceeds to order
// confirmation.
func (e *Engine) useSavedAddress(ctx context.Context, sess *models.Session) models.OutboundMessage {
	profile, err := e.records.GetUserProfile(sess.ID)
	if err != nil {
		slog.Error("Flow saved address lookup failed", "session", sess.ID, "error", err)
	}
	if profile == nil || profile.Address == "" {
		fromConfirmOrder := sess.AddressFlow != nil && sess.AddressFlow.FromConfirmOrder
		msg := e.enterAddressFlow(ctx, sess, fromConfirmOrder)
		msg.Body = "No saved address found.\n\n" + msg.Body
		return msg
	}

	sess.Address = profile.Address
	if profile.Latitude != nil && profile.Longitude != nil {
		sess.Coordinates = &models.Coordinates{Latitude: *profile.Latitude, Longitude: *profile.Longitude}
	}
	sess.MapLink = profile.MapLink
	sess.AddressFlow = nil
	slog.Info("Flow saved address applied", "session", sess.ID)
	return e.showOrderConfirmation(ctx, sess)
}

// HandleLiveLocation processes a shared location while the address flow is
// active. An explicit human label from the transport is trusted; absent or
// placeholder labels are reverse-geocoded, and a resolution failure falls
// back to a coordinates-only confirmation rather than failing the flow.
func (e *Engine) HandleLiveLocation(ctx context.Context, sess *models.Session, loc models.Location) models.OutboundMessage {
	coords := models.Coordinates{Latitude: loc.Latitude, Longitude: loc.Longitude}

	label := strings.TrimSpace(loc.Address)
	if label == "" {
		label = strings.TrimSpace(loc.Name)
	}

	address := label
	if label == "" || strings.Contains(strings.ToLower(label), "unknown") {
		resolved, err := e.geocoder.ReverseGeocode(ctx, coords)
		if err != nil || resolved == "" {
			if err != nil {
				slog.Warn("Flow reverse geocode failed", "session", sess.ID, "error", err)
			}
			return e.confirmCoordinates(sess, coords)
		}
		address = resolved
	}

	if sess.AddressFlow == nil {
		sess.AddressFlow = &models.AddressData{}
	}
	sess.AddressFlow.TempAddress = address
	sess.AddressFlow.TempCoordinates = &coords
	sess.AddressFlow.TempMapLink = geo.MapsLink(coords)
	e.saveAddressToProfile(sess, address, &coords, sess.AddressFlow.TempMapLink)

	sess.Transition(models.HandlerAddress, models.StateConfirmDetectedLocation)
	slog.Info("Flow live location resolved", "session", sess.ID, "address", address)

	return models.ButtonMessage(sess.ID,
		fmt.Sprintf("📍 We detected your location as:\n\n*%s*\n\nIs this your delivery address?", address),
		models.Button{ID: optionConfirmLoc, Title: "✅ Yes, use this"},
		models.Button{ID: optionChooseDiff, Title: "🔄 Choose different"},
	)
}

// confirmCoordinates offers the raw coordinates as the address of last
// resort.
func (e *Engine) confirmCoordinates(sess *models.Session, coords models.Coordinates) models.OutboundMessage {
	if sess.AddressFlow == nil {
		sess.AddressFlow = &models.AddressData{}
	}
	sess.AddressFlow.TempAddress = fmt.Sprintf("Location: %.6f, %.6f", coords.Latitude, coords.Longitude)
	sess.AddressFlow.TempCoordinates = &coords
	sess.AddressFlow.TempMapLink = geo.MapsLink(coords)
	sess.Transition(models.HandlerAddress, models.StateConfirmCoordinates)

	return models.ButtonMessage(sess.ID,
		fmt.Sprintf("We couldn't determine the street address for your location.\n\n"+
			"📍 Coordinates: %.6f, %.6f\n🗺️ Map: %s\n\n"+
			"Would you like to use these coordinates as your delivery address?",
			coords.Latitude, coords.Longitude, sess.AddressFlow.TempMapLink),
		models.Button{ID: optionUseCoordinates, Title: "✅ Use coordinates"},
		models.Button{ID: optionTypeInstead, Title: "⌨️ Type address"},
	)
}

// handleAwaitingLiveLocation handles a text message arriving while a
// location share is awaited. Not an error; the options are re-offered.
func (e *Engine) handleAwaitingLiveLocation(ctx context.Context, sess *models.Session, in Input) models.OutboundMessage {
	if in.Location != nil {
		return e.HandleLiveLocation(ctx, sess, *in.Location)
	}
	fromConfirmOrder := sess.AddressFlow != nil && sess.AddressFlow.FromConfirmOrder
	msg := e.enterAddressFlow(ctx, sess, fromConfirmOrder)
	msg.Body = "We haven't received a location share yet. You can still share it, or pick another option:\n\n" + msg.Body
	return msg
}

// handleMapsSearchInput forward-geocodes a free-text place query.
func (e *Engine) handleMapsSearchInput(ctx context.Context, sess *models.Session, in Input) models.OutboundMessage {
	query := strings.TrimSpace(in.Original)
	if query == "" {
		return models.TextMessage(sess.ID, "Please type a place name, street, or area to search.")
	}

	result, err := e.geocoder.ForwardGeocode(ctx, query)
	if err != nil {
		slog.Warn("Flow maps search failed", "session", sess.ID, "query", query, "error", err)
	}
	if err != nil || result == nil {
		// State unchanged so the next message is treated as a new search.
		return models.TextMessage(sess.ID, fmt.Sprintf(
			"🔍 We couldn't find \"%s\".\n\nYou can:\n"+
				"• Try a different search\n"+
				"• Share your current location instead\n"+
				"• Type your address manually (reply 'manual')\n\n"+
				"Type another place name to search again.", query))
	}

	coords := result.Coordinates
	label := strings.TrimSpace(result.Address)
	if label == "" {
		resolved, revErr := e.geocoder.ReverseGeocode(ctx, coords)
		if revErr != nil {
			slog.Warn("Flow maps result reverse geocode failed", "session", sess.ID, "error", revErr)
		}
		label = strings.TrimSpace(resolved)
	}
	if label == "" {
		return e.confirmCoordinates(sess, coords)
	}

	if sess.AddressFlow == nil {
		sess.AddressFlow = &models.AddressData{}
	}
	sess.AddressFlow.TempAddress = label
	sess.AddressFlow.TempCoordinates = &coords
	sess.AddressFlow.TempMapLink = geo.MapsLink(coords)
	sess.Transition(models.HandlerAddress, models.StateConfirmMapsResult)
	slog.Info("Flow maps search resolved", "session", sess.ID, "address", label)

	return models.ButtonMessage(sess.ID,
		fmt.Sprintf("🔎 Found:\n\n*%s*\n🗺️ Map: %s\n\nUse this as your delivery address?",
			label, sess.AddressFlow.TempMapLink),
		models.Button{ID: optionUseMapsResult, Title: "✅ Yes, use this"},
		models.Button{ID: optionSearchAgain, Title: "🔎 Search again"},
		models.Button{ID: optionManualInstead, Title: "⌨️ Type manually"},
	)
}

// validManualAddress applies the heuristic manual-entry check: long enough
// and containing at least one digit or letter.
func validManualAddress(text string) bool {
	runes := []rune(text)
	if len(runes) < minManualAddressLength {
		return false
	}
	hasDigit, hasLetter := false, false
	for _, r := range runes {
		if unicode.IsDigit(r) {
			hasDigit = true
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasDigit || hasLetter
}

// handleManualAddressEntry validates typed addresses, geocodes best-effort,
// and always accepts valid input forward.
func (e *Engine) handleManualAddressEntry(ctx context.Context, sess *models.Session, in Input) models.OutboundMessage {
	text := strings.TrimSpace(in.Original)
	if !validManualAddress(text) {
		return models.TextMessage(sess.ID,
			"That doesn't look like a complete address. Please include your street, area, and city (e.g., '12 Allen Avenue, Ikeja, Lagos').")
	}

	var coords *models.Coordinates
	mapLink := ""
	if e.geocoder.IsAvailable(ctx) {
		if result, err := e.geocoder.ForwardGeocode(ctx, text); err != nil {
			// Best effort only; a geocode failure never blocks manual entry.
			slog.Warn("Flow manual address geocode failed", "session", sess.ID, "error", err)
		} else if result != nil {
			c := result.Coordinates
			coords = &c
			mapLink = geo.MapsLink(c)
		}
	}

	sess.Address = text
	sess.Coordinates = coords
	sess.MapLink = mapLink
	e.saveAddressToProfile(sess, text, coords, mapLink)
	sess.AddressFlow = nil
	slog.Info("Flow manual address accepted", "session", sess.ID)

	return e.showOrderConfirmation(ctx, sess)
}

// handleConfirmDetectedLocation handles the detected-location confirmation.
func (e *Engine) handleConfirmDetectedLocation(ctx context.Context, sess *models.Session, in Input) models.OutboundMessage {
	switch matchOption(in.Text, optionConfirmLoc, optionChooseDiff) {
	case optionConfirmLoc:
		return e.acceptAddress(ctx, sess)
	case optionChooseDiff:
		fromConfirmOrder := sess.AddressFlow != nil && sess.AddressFlow.FromConfirmOrder
		return e.enterAddressFlow(ctx, sess, fromConfirmOrder)
	}
	address := ""
	if sess.AddressFlow != nil {
		address = sess.AddressFlow.TempAddress
	}
	return models.ButtonMessage(sess.ID,
		fmt.Sprintf("Please confirm:\n\n*%s*\n\nIs this your delivery address?", address),
		models.Button{ID: optionConfirmLoc, Title: "✅ Yes, use this"},
		models.Button{ID: optionChooseDiff, Title: "🔄 Choose different"},
	)
}

// handleConfirmMapsResult handles the maps-result confirmation.
func (e *Engine) handleConfirmMapsResult(ctx context.Context, sess *models.Session, in Input) models.OutboundMessage {
	switch matchOption(in.Text, optionUseMapsResult, optionSearchAgain, optionManualInstead) {
	case optionUseMapsResult:
		return e.acceptAddress(ctx, sess)
	case optionSearchAgain:
		sess.Transition(models.HandlerAddress, models.StateMapsSearchInput)
		return e.mapsSearchPrompt(sess)
	case optionManualInstead:
		sess.Transition(models.HandlerAddress, models.StateManualAddressEntry)
		return e.manualEntryPrompt(sess)
	}
	address := ""
	if sess.AddressFlow != nil {
		address = sess.AddressFlow.TempAddress
	}
	return models.ButtonMessage(sess.ID,
		fmt.Sprintf("Please confirm:\n\n*%s*\n\nUse this as your delivery address?", address),
		models.Button{ID: optionUseMapsResult, Title: "✅ Yes, use this"},
		models.Button{ID: optionSearchAgain, Title: "🔎 Search again"},
		models.Button{ID: optionManualInstead, Title: "⌨️ Type manually"},
	)
}

// handleConfirmCoordinates handles the coordinates-only confirmation.
// Rejecting a coordinates-only result drops to manual entry, since the
// alternatives already failed to produce a label.
func (e *Engine) handleConfirmCoordinates(ctx context.Context, sess *models.Session, in Input) models.OutboundMessage {
	switch matchOption(in.Text, optionUseCoordinates, optionTypeInstead) {
	case optionUseCoordinates:
		return e.acceptAddress(ctx, sess)
	case optionTypeInstead:
		sess.Transition(models.HandlerAddress, models.StateManualAddressEntry)
		return e.manualEntryPrompt(sess)
	}
	return models.ButtonMessage(sess.ID,
		"Would you like to use the shared coordinates as your delivery address?",
		models.Button{ID: optionUseCoordinates, Title: "✅ Use coordinates"},
		models.Button{ID: optionTypeInstead, Title: "⌨️ Type address"},
	)
}

// acceptAddress persists the pending address onto the session and the user
// profile, clears the flow scratch, and proceeds to order confirmation.
func (e *Engine) acceptAddress(ctx context.Context, sess *models.Session) models.OutboundMessage {
	if sess.AddressFlow == nil || sess.AddressFlow.TempAddress == "" {
		slog.Warn("Flow address accept without pending address", "session", sess.ID)
		return e.enterAddressFlow(ctx, sess, false)
	}

	sess.Address = sess.AddressFlow.TempAddress
	sess.Coordinates = sess.AddressFlow.TempCoordinates
	sess.MapLink = sess.AddressFlow.TempMapLink
	e.saveAddressToProfile(sess, sess.Address, sess.Coordinates, sess.MapLink)
	sess.AddressFlow = nil
	slog.Info("Flow address confirmed", "session", sess.ID, "address", sess.Address)

	return e.showOrderConfirmation(ctx, sess)
}

// saveAddressToProfile upserts the address onto the user profile. Failures
// are logged; the session copy is authoritative for the current order.
func (e *Engine) saveAddressToProfile(sess *models.Session, address string, coords *models.Coordinates, mapLink string) {
	profile := models.UserProfile{
		OwnerKey:      sess.ID,
		Name:          sess.UserName,
		PreferredName: sess.PreferredName,
		Address:       address,
		MapLink:       mapLink,
		UpdatedAt:     e.now(),
	}
	if coords != nil {
		lat, lon := coords.Latitude, coords.Longitude
		profile.Latitude = &lat
		profile.Longitude = &lon
	}
	if err := e.records.UpsertUserProfile(profile); err != nil {
		slog.Error("Flow address profile upsert failed", "session", sess.ID, "error", err)
	}
}
