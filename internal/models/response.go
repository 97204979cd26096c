package models

// Location is a shared location attached to an incoming message.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// Response is an incoming message from a user. Either Body carries text or
// Location carries a shared location; a message with both keeps both.
type Response struct {
	From     string    `json:"from"`
	Body     string    `json:"body"`
	Location *Location `json:"location,omitempty"`
	Time     int64     `json:"time"` // unix seconds
}
