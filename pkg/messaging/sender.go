// Package messaging re-exports the outbound messaging ports and provides
// test doubles. The WhatsApp Cloud API client itself lives outside this
// repository; the engine only depends on these interfaces.
package messaging

import (
	"context"
	"sync"

	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/protocol"
)

// SentMessage records one outbound call made through the fake sender.
type SentMessage struct {
	Kind       string // "text", "template" or "interactive"
	Phone      string
	Text       string
	TemplateID string
	Parameters []string
	Buttons    []models.Button
	ChannelID  string
}

// FakeSender is an in-memory protocol.Sender recording every send, used by
// tests and by the dry-run mode of the CLI.
type FakeSender struct {
	mu   sync.Mutex
	sent []SentMessage

	// FailInteractive makes interactive sends fail, exercising the
	// numbered-list fallback path.
	FailInteractive bool

	// FailAll makes every send fail.
	FailAll bool
}

var _ protocol.Sender = (*FakeSender)(nil)

func (f *FakeSender) SendText(_ context.Context, phone, text, channelID string) error {
	if f.FailAll {
		return ErrSendFailed
	}

	f.record(SentMessage{Kind: "text", Phone: phone, Text: text, ChannelID: channelID})

	return nil
}

func (f *FakeSender) SendTemplate(_ context.Context, phone, templateID string, parameters []string, channelID string) error {
	if f.FailAll {
		return ErrSendFailed
	}

	f.record(SentMessage{Kind: "template", Phone: phone, TemplateID: templateID, Parameters: parameters, ChannelID: channelID})

	return nil
}

func (f *FakeSender) SendInteractiveButtons(_ context.Context, phone, text string, buttons []models.Button, channelID string) (string, error) {
	if f.FailAll || f.FailInteractive {
		return "", ErrSendFailed
	}

	f.record(SentMessage{Kind: "interactive", Phone: phone, Text: text, Buttons: buttons, ChannelID: channelID})

	return "wamid.fake", nil
}

func (f *FakeSender) record(msg SentMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, msg)
}

// Sent returns a copy of all recorded messages.
func (f *FakeSender) Sent() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]SentMessage, len(f.sent))
	copy(out, f.sent)

	return out
}

// FakeAssigner records conversation assignments.
type FakeAssigner struct {
	mu          sync.Mutex
	Assignments map[string]string // conversation id -> assignee id
}

var _ protocol.Assigner = (*FakeAssigner)(nil)

func (f *FakeAssigner) AssignConversation(_ context.Context, conversationID, assigneeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Assignments == nil {
		f.Assignments = make(map[string]string)
	}

	f.Assignments[conversationID] = assigneeID

	return nil
}
