package web

import "github.com/zaplane/zaplane/pkg/models"

// WebhookPayload is the WhatsApp Cloud API webhook envelope, reduced to the
// fields the engine consumes.
type WebhookPayload struct {
	Entry []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	Metadata WebhookMetadata  `json:"metadata"`
	Contacts []WebhookContact `json:"contacts"`
	Messages []WebhookMessage `json:"messages"`
}

type WebhookMetadata struct {
	PhoneNumberID string `json:"phone_number_id"`
}

type WebhookContact struct {
	WaID    string         `json:"wa_id"`
	Profile WebhookProfile `json:"profile"`
}

type WebhookProfile struct {
	Name string `json:"name"`
}

type WebhookMessage struct {
	ID          string              `json:"id"`
	From        string              `json:"from"`
	Type        string              `json:"type"`
	Text        *WebhookText        `json:"text,omitempty"`
	Interactive *WebhookInteractive `json:"interactive,omitempty"`
	Button      *WebhookButtonReply `json:"button,omitempty"`
}

type WebhookText struct {
	Body string `json:"body"`
}

type WebhookInteractive struct {
	Type        string              `json:"type"`
	ButtonReply *WebhookButtonReply `json:"button_reply,omitempty"`
}

type WebhookButtonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text,omitempty"`
}

// inboundMessage converts a webhook message into the engine's inbound model.
// Interactive button replies and legacy template button taps both map to a
// structured button click.
func (m WebhookMessage) inboundMessage() models.InboundMessage {
	if m.Interactive != nil && m.Interactive.ButtonReply != nil {
		return models.InboundMessage{
			ButtonClick: &models.ButtonClick{
				ID:    m.Interactive.ButtonReply.ID,
				Title: m.Interactive.ButtonReply.Title,
			},
		}
	}

	if m.Button != nil {
		title := m.Button.Title
		if title == "" {
			title = m.Button.Text
		}

		return models.InboundMessage{
			ButtonClick: &models.ButtonClick{
				ID:    m.Button.ID,
				Title: title,
			},
		}
	}

	if m.Text != nil {
		return models.InboundMessage{Text: m.Text.Body}
	}

	return models.InboundMessage{}
}
