// Package events defines the domain events exchanged over the message queue
// and the publisher used by the identity service. Events are flat JSON
// objects discriminated by the "event" field; consumers match on the name
// structurally and drop unrecognised ones.
package events

// Event names recognised on the wire.
const (
	EventUserRegistered = "UserRegistered"
)

// UserRegistered is emitted after a successful registration.
type UserRegistered struct {
	Event  string `json:"event"`
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
}

// NewUserRegistered builds the wire representation for a registration.
func NewUserRegistered(userID int64, email string) UserRegistered {
	return UserRegistered{
		Event:  EventUserRegistered,
		UserID: userID,
		Email:  email,
	}
}

// Envelope carries only the discriminator, for the consumer's first-pass
// decode before dispatching on the event name.
type Envelope struct {
	Event string `json:"event"`
}
