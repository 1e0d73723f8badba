package models

import "time"

// Contact is the collaborator-owned contact record; the engine only reads
// the fields it needs to address outbound messages.
type Contact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Phone     string    `json:"phone"`
	ChannelID string    `json:"channel_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is the collaborator-owned chat thread between one contact and
// one channel.
type Conversation struct {
	ID        string    `json:"id"`
	ContactID string    `json:"contact_id"`
	ChannelID string    `json:"channel_id"`
	CreatedAt time.Time `json:"created_at"`
}

// InboundMessage is the engine's view of a received WhatsApp message: free
// text, or a structured button click when the contact tapped an interactive
// reply button.
type InboundMessage struct {
	Text        string       `json:"text,omitempty"`
	ButtonClick *ButtonClick `json:"button_click,omitempty"`
}

// ButtonClick carries the provider's structured reply-button payload.
type ButtonClick struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
