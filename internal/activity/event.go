// Package activity names the notifications emitted when another user interacts
// with a user's recipes or profile.
package activity

import "time"

// Event types.
const (
	TypeRecipeFavourited = "recipe-favourited"
	TypeRecipeCommented  = "recipe-commented"
	TypeRecipeForked     = "recipe-forked"
	TypeNewFollower      = "new-follower"
)

// Event is delivered to Recipient. Recipe is empty for follow events.
type Event struct {
	Recipient string    `json:"-"`
	Type      string    `json:"type"`
	Actor     string    `json:"actor"`
	Recipe    string    `json:"recipe,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher accepts events. Implementations must not block.
type Publisher interface {
	Publish(Event)
}

// Discard drops every event.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(Event) {}
