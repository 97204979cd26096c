// Package models defines session state structures for orderbot flows.
package models

import "time"

// StateType identifies a single state in a conversation flow.
type StateType string

// HandlerTag identifies the flow handler that owns a state. It disambiguates
// recovery routing when a session carries a state the dispatch table no
// longer recognizes.
type HandlerTag string

// Handler tags.
const (
	HandlerGreeting  HandlerTag = "greeting"
	HandlerMenu      HandlerTag = "menu"
	HandlerOrder     HandlerTag = "order"
	HandlerAddress   HandlerTag = "address"
	HandlerComplaint HandlerTag = "complaint"
	HandlerFeedback  HandlerTag = "feedback"
	HandlerEnquiry   HandlerTag = "enquiry"
)

// Greeting flow states.
const (
	StateStart                StateType = "start"
	StateGreeting             StateType = "greeting"
	StateCollectPreferredName StateType = "collect_preferred_name"
)

// Menu flow states.
const (
	StateMenu             StateType = "menu"
	StateCategorySelected StateType = "category_selected"
)

// Order flow states.
const (
	StateQuantity            StateType = "quantity"
	StateOrderSummary        StateType = "order_summary"
	StateRemoveItemSelection StateType = "remove_item_selection"
	StatePromptAddNote       StateType = "prompt_add_note"
	StateAddNote             StateType = "add_note"
	StateConfirmOrder        StateType = "confirm_order"
)

// Address/location flow states.
const (
	StateAddressCollectionMenu   StateType = "address_collection_menu"
	StateAwaitingLiveLocation    StateType = "awaiting_live_location"
	StateMapsSearchInput         StateType = "maps_search_input"
	StateManualAddressEntry      StateType = "manual_address_entry"
	StateConfirmDetectedLocation StateType = "confirm_detected_location"
	StateConfirmMapsResult       StateType = "confirm_maps_result"
	StateConfirmCoordinates      StateType = "confirm_coordinates"
)

// Complaint flow states.
const (
	StateComplain StateType = "complain"
)

// Feedback flow states.
const (
	StateFeedbackRating  StateType = "feedback_rating"
	StateFeedbackComment StateType = "feedback_comment"
)

// Enquiry flow states.
const (
	StateEnquiry StateType = "enquiry"
)

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CartItem is one line of an order in progress.
type CartItem struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// Cart is an order in progress. Insertion order is preserved so cart
// summaries render in the order items were added.
type Cart []CartItem

// Add merges quantity into an existing line for the same item, or appends a
// new line at the end.
func (c Cart) Add(name string, quantity int, unitPrice float64) Cart {
	for i := range c {
		if c[i].Name == name {
			c[i].Quantity += quantity
			c[i].UnitPrice = unitPrice
			return c
		}
	}
	return append(c, CartItem{Name: name, Quantity: quantity, UnitPrice: unitPrice})
}

// RemoveAt deletes the line at index i, preserving order of the rest.
func (c Cart) RemoveAt(i int) Cart {
	if i < 0 || i >= len(c) {
		return c
	}
	return append(c[:i], c[i+1:]...)
}

// Total returns the cart total amount.
func (c Cart) Total() float64 {
	var total float64
	for _, item := range c {
		total += float64(item.Quantity) * item.UnitPrice
	}
	return total
}

// IsEmpty reports whether the cart has no lines.
func (c Cart) IsEmpty() bool { return len(c) == 0 }

// AddressData is the address flow's scratch state. It exists only while the
// address flow is active; leaving the flow replaces the whole struct.
type AddressData struct {
	TempAddress      string       `json:"temp_address,omitempty"`
	TempCoordinates  *Coordinates `json:"temp_coordinates,omitempty"`
	TempMapLink      string       `json:"temp_map_link,omitempty"`
	FromConfirmOrder bool         `json:"from_confirm_order,omitempty"`
	// MenuOptions records the option ids offered by the last collection
	// menu, in display order, so numeric replies resolve against the menu
	// the user actually saw.
	MenuOptions []string `json:"menu_options,omitempty"`
}

// FeedbackData is the feedback flow's scratch state.
type FeedbackData struct {
	OrderID   string `json:"order_id"`
	StartedAt string `json:"started_at"` // RFC 3339; parsed best-effort for duration
	Rating    Rating `json:"rating,omitempty"`
	// Degraded marks a session where the interactive rating prompt could
	// not be delivered and the flow fell back to plain text.
	Degraded bool `json:"degraded,omitempty"`
}

// MenuData is the menu/order flow's scratch state.
type MenuData struct {
	SelectedCategory string  `json:"selected_category,omitempty"`
	SelectedItem     string  `json:"selected_item,omitempty"`
	SelectedPrice    float64 `json:"selected_price,omitempty"`
	Note             string  `json:"note,omitempty"`
}

// Session is the mutable per-user conversation record. One exists per active
// conversation identifier (phone number). Handlers mutate it in place during
// message handling; the session store guarantees single-writer semantics per
// message.
type Session struct {
	ID             string     `json:"id"` // conversation identifier (phone number)
	CurrentState   StateType  `json:"current_state"`
	CurrentHandler HandlerTag `json:"current_handler"`
	PreviousState  StateType  `json:"previous_state,omitempty"`

	UserName      string `json:"user_name,omitempty"`
	PreferredName string `json:"preferred_name,omitempty"`

	// Current delivery address and its resolution, mirrored to the user
	// profile store on confirmation.
	Address     string       `json:"address,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	MapLink     string       `json:"map_link,omitempty"`

	Cart Cart `json:"cart,omitempty"`

	// Per-flow scratch data. Exactly the pointers for the active flow are
	// non-nil; clearing a flow is replacing its pointer with nil so stale
	// fields cannot leak into another flow.
	AddressFlow  *AddressData  `json:"address_flow,omitempty"`
	FeedbackFlow *FeedbackData `json:"feedback_flow,omitempty"`
	MenuFlow     *MenuData     `json:"menu_flow,omitempty"`

	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// DisplayName returns the name to address the user with.
func (s *Session) DisplayName() string {
	if s.PreferredName != "" {
		return s.PreferredName
	}
	if s.UserName != "" {
		return s.UserName
	}
	return "Guest"
}

// Transition records the current state as the previous one and moves the
// session to the given handler and state.
func (s *Session) Transition(handler HandlerTag, state StateType) {
	s.PreviousState = s.CurrentState
	s.CurrentState = state
	s.CurrentHandler = handler
}

// ClearFlowData drops all per-flow scratch state. Called on every cross-flow
// transition so a finished flow cannot leak into the next.
func (s *Session) ClearFlowData() {
	s.AddressFlow = nil
	s.FeedbackFlow = nil
	s.MenuFlow = nil
}

// ResetToMainMenu clears the cart and all flow scratch data and returns the
// session to the greeting state. User identity and the saved address are
// preserved.
func (s *Session) ResetToMainMenu() {
	s.Cart = nil
	s.ClearFlowData()
	s.Transition(HandlerGreeting, StateGreeting)
}
