package types

import "time"

// EventType names an account lifecycle event.
type EventType string

const (
	EventUserRegistered EventType = "user.registered"
	EventUserUpdated    EventType = "user.updated"
	EventUserLoggedIn   EventType = "user.logged_in"
	EventUserLoggedOut  EventType = "user.logged_out"
)

// AccountEvent is the payload published to the events channel.
type AccountEvent struct {
	Type       EventType `json:"type"`
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username"`
	OccurredAt time.Time `json:"occurred_at"`
}
